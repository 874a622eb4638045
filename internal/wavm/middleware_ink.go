package wavm

import (
	"github.com/stepchain/wavm-prover/internal/wasmbin"
)

const (
	inkLeftGlobalName   = "stylus_ink_left"
	inkStatusGlobalName = "stylus_ink_status"
)

// defaultInkCost is charged for any opcode without an explicit entry in
// InkPricesByOp.
const defaultInkCost = 1

// applyInkMeter implements the (static) ink meter pass, spec.md §4.1: adds
// an i64 "ink left" global and an i32 "ink status" global, then rewrites
// every function body so that each basic block is preceded by a check-and-
// deduct sequence sized to that block's static cost. Running out of ink
// sets the status global and traps via unreachable, which the scheduler
// distinguishes from an ordinary trap by reading the status global back
// (spec.md §5's OutOfInk outcome).
func applyInkMeter(mm wasmbin.ModuleMod, cfg InstrumentConfig) error {
	inkLeft, err := mm.AddGlobal(inkLeftGlobalName, wasmbinI64, 0)
	if err != nil {
		return err
	}
	inkStatus, err := mm.AddGlobal(inkStatusGlobalName, wasmbinI32, 0)
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
		fn.Body = meterInk(fn.Body, inkLeft, inkStatus, cfg.InkPricesByOp)
	}
	return nil
}

func isBasicBlockBoundary(op wasmbin.Opcode) bool {
	switch op {
	case wasmbin.OpBlock, wasmbin.OpLoop, wasmbin.OpIf, wasmbin.OpElse, wasmbin.OpEnd,
		wasmbin.OpBr, wasmbin.OpBrIf, wasmbin.OpBrTable, wasmbin.OpReturn,
		wasmbin.OpCall, wasmbin.OpCallIndirect, wasmbin.OpUnreachable:
		return true
	}
	return false
}

// meterInk walks body once, accumulating the static cost of each
// straight-line basic block -- a run of instructions ending with (and
// including) the control op that terminates it, or the function's final
// End -- and prefixes that whole run with a deduction sequence sized to
// its total cost, per spec.md §4.1: "Before each straight-line basic
// block ... emit: if stylus_ink_left < cost then ...; set
// stylus_ink_left -= cost." The deduction must be buffered out ahead of
// the run it guards, not appended after it, or the block's body would
// already have executed by the time the check/charge ran.
func meterInk(body []wasmbin.Operator, inkLeft, inkStatus uint32, prices map[byte]uint64) []wasmbin.Operator {
	out := make([]wasmbin.Operator, 0, len(body)+len(body)/4+4)
	var pending uint64
	var run []wasmbin.Operator
	flush := func() {
		if pending > 0 {
			out = append(out, inkDeductSequence(inkLeft, inkStatus, pending)...)
			pending = 0
		}
		out = append(out, run...)
		run = run[:0]
	}
	for _, op := range body {
		cost := prices[byte(op.Op)]
		if cost == 0 {
			cost = defaultInkCost
		}
		pending += cost
		run = append(run, op)
		if isBasicBlockBoundary(op.Op) {
			flush()
		}
	}
	flush()
	return out
}

// inkDeductSequence builds the operator sequence:
//
//	global.get inkLeft; i64.const cost; i64.lt_u
//	if
//	  i32.const 1; global.set inkStatus
//	  unreachable
//	end
//	global.get inkLeft; i64.const cost; i64.sub; global.set inkLeft
func inkDeductSequence(inkLeft, inkStatus uint32, cost uint64) []wasmbin.Operator {
	return []wasmbin.Operator{
		{Op: wasmbin.OpGlobalGet, Idx: inkLeft},
		{Op: wasmbin.OpI64Const, I64: int64(cost)},
		rawOp(0x54), // i64.lt_u
		{Op: wasmbin.OpIf, Block: wasmbin.BlockType{Empty: true}},
		{Op: wasmbin.OpI32Const, I32: 1},
		{Op: wasmbin.OpGlobalSet, Idx: inkStatus},
		{Op: wasmbin.OpUnreachable},
		{Op: wasmbin.OpEnd},
		{Op: wasmbin.OpGlobalGet, Idx: inkLeft},
		{Op: wasmbin.OpI64Const, I64: int64(cost)},
		rawOp(0x7D), // i64.sub
		{Op: wasmbin.OpGlobalSet, Idx: inkLeft},
	}
}

// rawOp builds a synthetic arithmetic/comparison operator carrying only an
// opcode byte, for opcodes intentionally left unnamed in wasmbin.Opcode
// (see operator.go's note on the 0x45-0xC4 range).
func rawOp(b byte) wasmbin.Operator {
	return wasmbin.Operator{Op: wasmbin.Opcode(b), Raw: b}
}

const (
	wasmbinI32 = wasmbin.ValI32
	wasmbinI64 = wasmbin.ValI64
)
