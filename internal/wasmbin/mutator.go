package wasmbin

import "fmt"

// ModuleMod is the module mutator interface named in spec.md §4.1 ("Module
// mutator interface"). It is implemented here for the in-memory AST, which
// the prover's lowering/instrumentation pipeline uses; no other package
// implements it.
type ModuleMod interface {
	AddGlobal(name string, ty ValType, init uint64) (uint32, error)
	GetGlobal(idx uint32) (Global, error)
	GetSignature(typeIdx uint32) (FunctionType, error)
	GetFunction(idx uint32) (*Function, error)
	RenameStart(exportName string) error
	AllFunctionTypes() []uint32
	// NumFunctions returns the count of locally-defined (non-imported)
	// functions, for middleware passes that rewrite every function body.
	NumFunctions() uint32
	// NumImportedFuncs returns the count of imported functions, so callers
	// can compute the full-index-space function index from a local one.
	NumImportedFuncs() uint32
}

// astModMod adapts *Module to ModuleMod.
type astModMod struct {
	m *Module
	// addedGlobalNames records the well-known names middleware gives the
	// globals it introduces, so later middleware stages (and the cost
	// estimator) can find them again by name.
	addedGlobalNames map[string]uint32
}

// NewModuleMod wraps m for use by the middleware pipeline.
func NewModuleMod(m *Module) ModuleMod {
	return &astModMod{m: m, addedGlobalNames: map[string]uint32{}}
}

func (a *astModMod) AddGlobal(name string, ty ValType, init uint64) (uint32, error) {
	idx := uint32(len(a.m.Globals))
	a.m.Globals = append(a.m.Globals, Global{Type: ty, Mutable: true, Init: init})
	a.addedGlobalNames[name] = idx
	return idx, nil
}

func (a *astModMod) GetGlobal(idx uint32) (Global, error) {
	if int(idx) >= len(a.m.Globals) {
		return Global{}, fmt.Errorf("wasmbin: global index %d out of range", idx)
	}
	return a.m.Globals[idx], nil
}

func (a *astModMod) GetSignature(typeIdx uint32) (FunctionType, error) {
	if int(typeIdx) >= len(a.m.Types) {
		return FunctionType{}, fmt.Errorf("wasmbin: type index %d out of range", typeIdx)
	}
	return a.m.Types[typeIdx], nil
}

func (a *astModMod) GetFunction(idx uint32) (*Function, error) {
	imported := a.m.NumImportedFuncs()
	if int(idx) < imported {
		return nil, fmt.Errorf("wasmbin: function %d is an import, has no body", idx)
	}
	i := int(idx) - imported
	if i >= len(a.m.Functions) {
		return nil, fmt.Errorf("wasmbin: function index %d out of range", idx)
	}
	return &a.m.Functions[i], nil
}

// RenameStart implements the start-mover middleware's module-level effect:
// unset the module's declared start function and export it under
// exportName so the caller can invoke it explicitly, per spec.md §4.1.
func (a *astModMod) RenameStart(exportName string) error {
	if !a.m.HasStart {
		return nil
	}
	idx := a.m.StartFunc
	a.m.HasStart = false
	for _, exp := range a.m.Exports {
		if exp.Name == exportName {
			return fmt.Errorf("wasmbin: export name %q already in use", exportName)
		}
	}
	a.m.Exports = append(a.m.Exports, Export{Name: exportName, Kind: ImportFunc, Idx: idx})
	return nil
}

func (a *astModMod) AllFunctionTypes() []uint32 {
	return a.m.FuncTypes
}

func (a *astModMod) NumFunctions() uint32 {
	return uint32(len(a.m.Functions))
}

func (a *astModMod) NumImportedFuncs() uint32 {
	return uint32(a.m.NumImportedFuncs())
}

// GlobalIndexByName looks up a global added via AddGlobal by the name it
// was given, used by middleware that needs to read back another
// middleware's global (e.g. the cost estimator reading stylus_ink_left).
func GlobalIndexByName(mm ModuleMod, name string) (uint32, bool) {
	a, ok := mm.(*astModMod)
	if !ok {
		return 0, false
	}
	idx, ok := a.addedGlobalNames[name]
	return idx, ok
}
