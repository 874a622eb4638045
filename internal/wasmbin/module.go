// Package wasmbin decodes the WebAssembly 1.0 binary format into an
// in-memory module AST and validates it against the feature subset and
// anti-DoS limits this substrate accepts.
//
// Grounded on the teacher's pkg/core/vm/ewasm_jit.go (binary header /
// section-table constants and validation shape) and on
// _examples/original_source/arbitrator/prover/src/binary.rs for the exact
// feature-gating and limit rules.
package wasmbin

import "fmt"

// ValType is a WebAssembly value type.
type ValType byte

const (
	ValI32     ValType = 0x7F
	ValI64     ValType = 0x7E
	ValF32     ValType = 0x7D
	ValF64     ValType = 0x7C
	ValFuncRef ValType = 0x70
)

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValFuncRef:
		return "funcref"
	default:
		return fmt.Sprintf("valtype(%#x)", byte(v))
	}
}

// FunctionType is a WASM function signature.
type FunctionType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two function types have identical signatures.
func (f FunctionType) Equal(o FunctionType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// Limits describes the min/max page (or element) count of a memory or table.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// ImportKind distinguishes the four importable entity kinds.
type ImportKind byte

const (
	ImportFunc ImportKind = iota
	ImportTable
	ImportMemory
	ImportGlobal
)

// Import is a single entry of the import section.
type Import struct {
	Module string
	Name   string
	Kind   ImportKind
	// TypeIdx is meaningful when Kind == ImportFunc.
	TypeIdx uint32
	// GlobalType/GlobalMutable are meaningful when Kind == ImportGlobal.
	GlobalType    ValType
	GlobalMutable bool
	// TableLimits/MemLimits are meaningful when Kind == ImportTable/ImportMemory.
	TableLimits Limits
	MemLimits   Limits
}

// Global is a module-defined global with a constant initializer.
type Global struct {
	Type    ValType
	Mutable bool
	// Init is the constant-expression initializer, already evaluated:
	// an i32/i64/f32/f64 payload sign/bit-pattern, or (for a
	// global.get initializer) the referenced import global's value
	// copied at module-build time.
	Init uint64
}

// Table is a module-defined table of function references.
type Table struct {
	ElemType ValType
	Limits   Limits
}

// Memory is a module-defined linear memory declaration (pages of 64 KiB).
type Memory struct {
	Limits Limits
}

// ExportKind mirrors ImportKind for the export section.
type ExportKind = ImportKind

// Export is a single entry of the export section.
type Export struct {
	Name string
	Kind ExportKind
	Idx  uint32
}

// ElementSegment is an active element segment initializing a table range.
type ElementSegment struct {
	TableIdx uint32
	Offset   uint32 // resolved constant i32 offset
	FuncIdxs []uint32
}

// DataSegment is an active data segment initializing a memory range.
type DataSegment struct {
	MemIdx uint32
	Offset uint32
	Bytes  []byte
}

// Function is a module-defined function: its signature index, its locals
// (beyond the signature's params), and its raw structured operator stream.
type Function struct {
	TypeIdx uint32
	Locals  []ValType
	Body    []Operator
}

// NameSection holds the (optional) custom "name" section's function names,
// the only part of it this substrate preserves.
type NameSection struct {
	ModuleName string
	FuncNames  map[uint32]string
}

// Module is the fully parsed and validated in-memory AST of a WASM binary,
// per spec.md §3.4/§4.1.
type Module struct {
	Types      []FunctionType
	Imports    []Import
	Functions  []Function
	FuncTypes  []uint32 // type index of every function (imported funcs first, then defined)
	Tables     []Table
	Memories   []Memory
	Globals    []Global
	Exports    []Export
	Elements   []ElementSegment
	Datas      []DataSegment
	StartFunc  uint32
	HasStart   bool
	Names      NameSection
	DataCount  uint32
	HasDataCnt bool
}

// NumImportedFuncs returns how many of Module.FuncTypes came from imports,
// i.e. the index of the first function defined in this module's own code
// section. This is the basis for the prover's "internals offset" concept
// once synthetic internal helpers are appended (see internal/wavm).
func (m *Module) NumImportedFuncs() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == ImportFunc {
			n++
		}
	}
	return n
}
