package machine

import "errors"

// ErrNoHostDispatcher's text is the ErrorString a machine records when a
// module calls into a native function (a hostio or a `programs.*`
// scheduler call) but the Machine was built without a dispatcher attached;
// the machine enters StatusErrored. A pure-replay machine that never makes
// such a call needs no dispatcher.
var ErrNoHostDispatcher = errors.New("machine: native call with no host dispatcher attached")

// NativeFunc describes one function implemented natively (in Go) rather
// than as a WAVM instruction stream: a Stylus hostio, or one of the
// `programs.*` scheduler entry points spec.md §4.3 names. It is addressed
// the same way an ordinary function is -- by (module, func) index via
// Call/CrossModuleCall -- so the interpreter's call machinery stays
// uniform; only the dispatch target differs.
//
// Grounded on spec.md §9's "Cyclic module references... All inter-module
// calls are encoded as CrossModuleCall" -- a native function is simply a
// module whose "body" is a Go closure instead of WAVM bytecode, the same
// trick _examples/wyf-ACCEPT-eth2030/pkg/core/vm/ewasm_precompiles.go uses
// for EVM precompiles living at fixed addresses inside an otherwise
// uniform call surface.
type NativeFunc struct {
	Name       string
	NumParams  int
	NumResults int
}

// HostDispatcher resolves one native call's arguments to its results.
// During proving this is a synchronous oracle lookup (no goroutines): the
// same value a prior JIT run observed and committed to, replayed
// identically here exactly as ReadPreImage/ReadInboxMessage already are.
// During JIT execution the same interface is backed by
// internal/jit's live EVM-API/scheduler wiring.
type HostDispatcher interface {
	// Hostio dispatches a call into fn, given its popped arguments in
	// WASM calling-convention order (first-pushed first), and returns
	// its results in push order.
	Hostio(fn NativeFunc, args []Value) ([]Value, error)
}

// NativeFuncs lets a Module provide native functions alongside (or
// instead of) compiled WAVM ones; call consults this map before pushing a
// frame.
func (mod *Module) nativeFunc(idx uint32) (NativeFunc, bool) {
	if mod.NativeFuncs == nil {
		return NativeFunc{}, false
	}
	nf, ok := mod.NativeFuncs[idx]
	return nf, ok
}

// dispatchScheduler routes one of the five `programs.*` opcodes (spec.md
// §4.3, SPEC_FULL.md §C.2a) through the same HostDispatcher a Stylus
// hostio uses, rather than giving the module-linking machinery its own
// interface: the interpreter doesn't need to know the difference between
// "ask the host for a storage slot" and "ask the host to switch which
// child is executing" -- both are opaque native calls from its point of
// view.
func (m *Machine) dispatchScheduler(name string, numParams, numResults int) {
	m.callNative(NativeFunc{Name: name, NumParams: numParams, NumResults: numResults})
}

func (m *Machine) callNative(nf NativeFunc) {
	if m.Dispatcher == nil {
		m.fail(ErrNoHostDispatcher.Error())
		return
	}
	args := make([]Value, nf.NumParams)
	for i := nf.NumParams - 1; i >= 0; i-- {
		args[i] = m.ValueStack.Pop()
	}
	results, err := m.Dispatcher.Hostio(nf, args)
	if err != nil {
		m.fail(err.Error())
		return
	}
	for _, r := range results {
		m.ValueStack.Push(r)
	}
}
