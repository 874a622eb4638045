package wavm

import "github.com/stepchain/wavm-prover/internal/wasmbin"

const growScratchGlobalName = "stylus_grow_scratch"

// applyDynamicInkMeter implements the dynamic ink meter pass, spec.md
// §4.1: some operations have a cost that depends on a runtime operand
// rather than being knowable statically. The only such operation in the
// accepted opcode subset is memory.grow, whose cost scales with the page
// count requested; this pass reuses the ink-meter's globals (added by the
// preceding pass, looked up by name) and inserts a dynamic check-and-
// deduct sequence immediately before every memory.grow.
func applyDynamicInkMeter(mm wasmbin.ModuleMod, cfg InstrumentConfig) error {
	inkLeft, ok := wasmbin.GlobalIndexByName(mm, inkLeftGlobalName)
	if !ok {
		return nil // ink meter pass did not run; nothing to meter dynamically
	}
	inkStatus, _ := wasmbin.GlobalIndexByName(mm, inkStatusGlobalName)
	scratch, err := mm.AddGlobal(growScratchGlobalName, wasmbinI32, 0)
	if err != nil {
		return err
	}

	perPage := cfg.DynamicInkCostFn[byte(wasmbin.OpMemoryGrow)]
	if perPage == 0 {
		perPage = defaultInkCost
	}

	n := mm.NumFunctions()
	imported := mm.NumImportedFuncs()
	for i := uint32(0); i < n; i++ {
		fn, err := mm.GetFunction(imported + i)
		if err != nil {
			return err
		}
		fn.Body = meterDynamic(fn.Body, inkLeft, inkStatus, scratch, perPage)
	}
	return nil
}

// meterDynamic inserts, before every memory.grow, a sequence that stashes
// the requested page count in a scratch global, prices it at perPage ink
// per page, checks and deducts from inkLeft, then restores the page count
// operand for memory.grow itself.
func meterDynamic(body []wasmbin.Operator, inkLeft, inkStatus, scratch uint32, perPage uint64) []wasmbin.Operator {
	out := make([]wasmbin.Operator, 0, len(body)+16)
	for _, op := range body {
		if op.Op != wasmbin.OpMemoryGrow {
			out = append(out, op)
			continue
		}
		out = append(out, growCostSequence(inkLeft, inkStatus, scratch, perPage)...)
		out = append(out, op)
	}
	return out
}

func growCostSequence(inkLeft, inkStatus, scratch uint32, perPage uint64) []wasmbin.Operator {
	costOperand := func() []wasmbin.Operator {
		return []wasmbin.Operator{
			{Op: wasmbin.OpGlobalGet, Idx: scratch},
			rawOp(0xAC), // i64.extend_i32_u
			{Op: wasmbin.OpI64Const, I64: int64(perPage)},
			rawOp(0x7E), // i64.mul
		}
	}
	seq := []wasmbin.Operator{
		{Op: wasmbin.OpGlobalSet, Idx: scratch}, // stash requested page count
	}
	seq = append(seq, costOperand()...)
	seq = append(seq,
		wasmbin.Operator{Op: wasmbin.OpGlobalGet, Idx: inkLeft},
		rawOp(0x53), // i64.gt_u: cost > inkLeft
		wasmbin.Operator{Op: wasmbin.OpIf, Block: wasmbin.BlockType{Empty: true}},
		wasmbin.Operator{Op: wasmbin.OpI32Const, I32: 1},
		wasmbin.Operator{Op: wasmbin.OpGlobalSet, Idx: inkStatus},
		wasmbin.Operator{Op: wasmbin.OpUnreachable},
		wasmbin.Operator{Op: wasmbin.OpEnd},
		wasmbin.Operator{Op: wasmbin.OpGlobalGet, Idx: inkLeft},
	)
	seq = append(seq, costOperand()...)
	seq = append(seq,
		rawOp(0x7D), // i64.sub
		wasmbin.Operator{Op: wasmbin.OpGlobalSet, Idx: inkLeft},
		wasmbin.Operator{Op: wasmbin.OpGlobalGet, Idx: scratch}, // restore memory.grow's operand
	)
	return seq
}
