package wavm

import "github.com/stepchain/wavm-prover/internal/wasmbin"

const (
	stackLeftGlobalName   = "stylus_stack_left"
	stackStatusGlobalName = "stylus_stack_status"
)

// applyDepthChecker implements the depth-checker pass, spec.md §4.1: caps
// the guest call stack depth independently of the host's own native stack,
// since a WASM call can recurse far deeper than the host stack would
// tolerate before the host itself faults. A single "stack left" counter is
// shared across the whole instance (including calls in and out of other
// Stylus sub-programs reached via CrossModuleCall, a form of "frame
// contention": a deeply-recursive callee can exhaust budget the caller was
// still counting on). The counter is decremented in every function's
// prologue and restored at every return point; hitting zero sets the
// status global and traps, which the scheduler reports as OutOfStack.
func applyDepthChecker(mm wasmbin.ModuleMod, cfg InstrumentConfig) error {
	maxDepth := cfg.MaxDepth
	if maxDepth == 0 {
		maxDepth = defaultMaxStackDepth
	}
	stackLeft, err := mm.AddGlobal(stackLeftGlobalName, wasmbinI32, uint64(maxDepth))
	if err != nil {
		return err
	}
	stackStatus, err := mm.AddGlobal(stackStatusGlobalName, wasmbinI32, 0)
	if err != nil {
		return err
	}

	n := mm.NumFunctions()
	imported := mm.NumImportedFuncs()
	for i := uint32(0); i < n; i++ {
		fn, err := mm.GetFunction(imported + i)
		if err != nil {
			return err
		}
		fn.Body = guardDepth(fn.Body, stackLeft, stackStatus)
	}
	return nil
}

// defaultMaxStackDepth mirrors the reference depth limit used when a
// program does not specify one of its own (spec.md §4.1's "host-enforced
// upper bound").
const defaultMaxStackDepth = 1024

func guardDepth(body []wasmbin.Operator, stackLeft, stackStatus uint32) []wasmbin.Operator {
	out := make([]wasmbin.Operator, 0, len(body)+16)
	out = append(out, depthEnterSequence(stackLeft, stackStatus)...)
	for _, op := range body {
		if op.Op == wasmbin.OpReturn {
			out = append(out, depthExitSequence(stackLeft)...)
		}
		out = append(out, op)
	}
	// The trailing End closing the function's implicit outer scope is part
	// of body; splice an exit sequence in immediately before it so the
	// fall-off-the-end return path also restores stackLeft.
	return spliceBeforeFinalEnd(out, depthExitSequence(stackLeft))
}

func spliceBeforeFinalEnd(ops []wasmbin.Operator, seq []wasmbin.Operator) []wasmbin.Operator {
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].Op == wasmbin.OpEnd {
			out := make([]wasmbin.Operator, 0, len(ops)+len(seq))
			out = append(out, ops[:i]...)
			out = append(out, seq...)
			out = append(out, ops[i:]...)
			return out
		}
	}
	return ops
}

func depthEnterSequence(stackLeft, stackStatus uint32) []wasmbin.Operator {
	return []wasmbin.Operator{
		{Op: wasmbin.OpGlobalGet, Idx: stackLeft},
		{Op: wasmbin.OpI32Const, I32: 0},
		rawOp(0x46), // i32.eq: stackLeft == 0
		{Op: wasmbin.OpIf, Block: wasmbin.BlockType{Empty: true}},
		{Op: wasmbin.OpI32Const, I32: 1},
		{Op: wasmbin.OpGlobalSet, Idx: stackStatus},
		{Op: wasmbin.OpUnreachable},
		{Op: wasmbin.OpEnd},
		{Op: wasmbin.OpGlobalGet, Idx: stackLeft},
		{Op: wasmbin.OpI32Const, I32: 1},
		rawOp(0x6B), // i32.sub
		{Op: wasmbin.OpGlobalSet, Idx: stackLeft},
	}
}

func depthExitSequence(stackLeft uint32) []wasmbin.Operator {
	return []wasmbin.Operator{
		{Op: wasmbin.OpGlobalGet, Idx: stackLeft},
		{Op: wasmbin.OpI32Const, I32: 1},
		rawOp(0x6A), // i32.add
		{Op: wasmbin.OpGlobalSet, Idx: stackLeft},
	}
}
