package wavm

import "github.com/stepchain/wavm-prover/internal/wasmbin"

const opCountGlobalName = "stylus_op_count"

// applyOpCounter implements the optional opcode-counter pass, spec.md
// §4.1: counts executed instructions per basic block for cost-model
// calibration and benchmarking. It never runs as part of on-chain proving
// instrumentation (DefaultPipeline only includes it when explicitly
// requested), since the counter itself would otherwise need to be
// accounted for in the step proof.
func applyOpCounter(mm wasmbin.ModuleMod, cfg InstrumentConfig) error {
	count, err := mm.AddGlobal(opCountGlobalName, wasmbinI64, 0)
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
		fn.Body = countOps(fn.Body, count)
	}
	return nil
}

func countOps(body []wasmbin.Operator, counter uint32) []wasmbin.Operator {
	out := make([]wasmbin.Operator, 0, len(body)+len(body)/4)
	var pending int64
	flush := func() {
		if pending == 0 {
			return
		}
		out = append(out,
			wasmbin.Operator{Op: wasmbin.OpGlobalGet, Idx: counter},
			wasmbin.Operator{Op: wasmbin.OpI64Const, I64: pending},
			rawOp(0x7C), // i64.add
			wasmbin.Operator{Op: wasmbin.OpGlobalSet, Idx: counter},
		)
		pending = 0
	}
	for _, op := range body {
		if isBasicBlockBoundary(op.Op) {
			flush()
		}
		pending++
		out = append(out, op)
	}
	flush()
	return out
}
