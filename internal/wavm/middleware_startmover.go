package wavm

import "github.com/stepchain/wavm-prover/internal/wasmbin"

// applyStartMover implements the start-mover pass (spec.md §4.1): a user
// program's WASM start function, if any, is unexported from the implicit
// module-instantiation path and re-exported under a fixed name so the
// scheduler can invoke it explicitly as the first step of running the
// program, instead of it running opaquely during linking.
func applyStartMover(mm wasmbin.ModuleMod, cfg InstrumentConfig) error {
	name := cfg.StartExportName
	if name == "" {
		name = "stylus_start"
	}
	return mm.RenameStart(name)
}
