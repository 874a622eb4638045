package wavm

import "github.com/stepchain/wavm-prover/internal/wasmbin"

// CompiledModule is the output of instrumentation + lowering: every
// locally-defined function's flat WAVM instruction stream, plus enough of
// the original module's shape for internal/machine to build runtime
// state (globals, memory, tables, exports) from it.
type CompiledModule struct {
	Types     []wasmbin.FunctionType
	Imports   []wasmbin.Import
	Functions []Function
	FuncTypes []uint32
	Tables    []wasmbin.Table
	Memories  []wasmbin.Memory
	Globals   []wasmbin.Global
	Exports   []wasmbin.Export
	Elements  []wasmbin.ElementSegment
	Datas     []wasmbin.DataSegment
	Data      StylusData
}

// Compile instruments m in place per pipeline/cfg, then lowers every
// function body into flat WAVM, returning the combined result. m is
// mutated (globals/exports added by middleware); callers that need the
// pre-instrumentation module should pass a copy.
func Compile(m *wasmbin.Module, pipeline []Middleware, cfg InstrumentConfig, lowerOpts LowerOptions, costParams ActivationCostParams) (*CompiledModule, error) {
	if err := Instrument(m, pipeline, cfg); err != nil {
		return nil, err
	}

	functions := make([]Function, len(m.Functions))
	for i, fn := range m.Functions {
		lowered, err := LowerFunction(m.Types, fn, lowerOpts)
		if err != nil {
			return nil, err
		}
		functions[i] = lowered
	}

	return &CompiledModule{
		Types:     m.Types,
		Imports:   m.Imports,
		Functions: functions,
		FuncTypes: m.FuncTypes,
		Tables:    m.Tables,
		Memories:  m.Memories,
		Globals:   m.Globals,
		Exports:   m.Exports,
		Elements:  m.Elements,
		Datas:     m.Datas,
		Data:      BuildStylusData(m, [32]byte{}, costParams), // ModuleHash is left zero here
	}, nil
}
