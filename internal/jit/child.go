package jit

import (
	"errors"

	"github.com/stepchain/wavm-prover/internal/evmapi"
	"github.com/stepchain/wavm-prover/internal/machine"
	"github.com/stepchain/wavm-prover/internal/scheduler"
)

var (
	ErrUnknownHostio    = errors.New("jit: unknown native hostio call")
	ErrUnknownLinkage   = errors.New("jit: link_module referenced an unknown module hash")
	ErrNoLinkedModules  = errors.New("jit: unlink_module called with nothing linked")
	ErrUnknownCoThread  = errors.New("jit: pop_cothread called with no running child")
)

// ModuleLoader resolves a module hash (as the guest supplies to
// `programs.link_module`) to the ChildFunc that will actually run it --
// built, in a full implementation, by compiling and instrumenting the
// Stylus program's WAVM module the way internal/wavm's middleware
// pipeline does for any other user program, then wrapping its
// entrypoint call in a ChildFunc that feeds hostio calls back through a
// scheduler.Cothread. executor_test.go supplies a fake covering the
// observable contract instead of a real compiled module.
type ModuleLoader func(hash [32]byte) (scheduler.ChildFunc, error)

type linkedModule struct {
	hash [32]byte
	run  scheduler.ChildFunc
}

// Executor.Host (an evmapi.Handler) answers the EVM-API requests a running
// child issues, per spec.md §4.4; it is the same request/response shape
// internal/stylus.Env uses.

func (e *Executor) linkModule(args []machine.Value) ([]machine.Value, error) {
	var hash [32]byte
	putBEU64(hash[0:8], args[0].Payload)
	putBEU64(hash[8:16], args[1].Payload)
	putBEU64(hash[16:24], args[2].Payload)
	putBEU64(hash[24:32], args[3].Payload)

	if e.Loader == nil {
		return nil, ErrUnknownLinkage
	}
	run, err := e.Loader(hash)
	if err != nil {
		return nil, err
	}
	idx := uint32(len(e.linked))
	e.linked = append(e.linked, linkedModule{hash: hash, run: run})
	return []machine.Value{machine.I32(idx)}, nil
}

func (e *Executor) unlinkModule() error {
	if len(e.linked) == 0 {
		return ErrNoLinkedModules
	}
	e.linked = e.linked[:len(e.linked)-1]
	return nil
}

func (e *Executor) newCoThread(args []machine.Value) ([]machine.Value, error) {
	idx := args[0].AsU32()
	if int(idx) >= len(e.linked) {
		return nil, ErrUnknownLinkage
	}
	lm := e.linked[idx]
	handle := e.Scheduler.NewProgram(lm.hash, lm.run)
	childrenRun.Inc()
	return []machine.Value{machine.I32(uint32(handle))}, nil
}

func (e *Executor) popCoThread() error {
	_, top, ok := e.Scheduler.Top()
	if !ok {
		return ErrUnknownCoThread
	}
	return e.Scheduler.PopLastProgram(top)
}

// switchThread drives the currently-topmost child one round: it waits for
// the child's next EVM-API request, answers it through e.Host, and
// delivers the reply -- or, if the child has already finished, encodes
// its outcome for the guest to inspect (spec.md §4.3's three-/five-class
// outcome, SPEC_FULL.md §C.3). This collapses the original's separate
// get_request/send_response/get_request_data hostios into one round-trip
// per call (internal/scheduler is exercised directly, hostio-granularity
// round trip, by its own tests).
func (e *Executor) switchThread(args []machine.Value) ([]machine.Value, error) {
	handle := scheduler.ProgramHandle(args[0].AsU32())
	req, ok, err := e.Scheduler.GetRequest(handle)
	if err != nil {
		return nil, err
	}
	if !ok {
		out, err := e.Scheduler.Outcome(handle)
		if err != nil {
			return nil, err
		}
		return []machine.Value{machine.I32(uint32(out.Kind))}, nil
	}
	var rsp evmapi.Response
	if e.Host != nil {
		rsp = e.Host.Do(req)
	}
	if err := e.Scheduler.SendResponse(handle, rsp); err != nil {
		return nil, err
	}
	return []machine.Value{machine.I32(uint32(len(rsp.RawData)))}, nil
}

func putBEU64(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
