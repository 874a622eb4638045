package scheduler

// The `programs` import surface names, as seen by the replay program's
// WAVM/native code (spec.md §4.3's "programs.new_program(...)... ->
// start_program -> ... -> send_response/get_request -> pop"), supplemented
// per SPEC_FULL.md §C.2a with the exact wire names the original uses. No
// other package references these constants: internal/wavm's hostimport
// table matches the same names as string literals, and internal/jit's
// Executor.Hostio dispatches on its own literals (link_module,
// unlink_module, new_cothread, pop_cothread, switch_thread).
//
// Grounded on _examples/original_source/arbitrator/prover/src/host.rs's
// `programs` hostio names.
const (
	ImportNewProgram      = "new_program"
	ImportLinkModule      = "link_module"
	ImportUnlinkModule    = "unlink_module"
	ImportStartProgram    = "start_program"
	ImportProgramCallMain = "program_call_main"
	ImportSendResponse    = "send_response"
	ImportGetRequest      = "get_request"
	ImportGetRequestData  = "get_request_data"
	ImportPopProgram      = "pop_program"
)
