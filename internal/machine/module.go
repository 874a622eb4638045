package machine

import (
	"github.com/stepchain/wavm-prover/internal/merkle"
	"github.com/stepchain/wavm-prover/internal/wavm"
)

// Module is one instantiated WAVM module's runtime state: its compiled
// functions, mutable globals, linear memory, an optional table (for
// call_indirect), and the "internals offset" spec.md §4.1 defines as the
// first function index past the module's own declared functions, where
// internal helper functions (soft-float routines, memory.copy/fill
// helpers) are appended.
type Module struct {
	Functions      []wavm.Function
	FuncTypes      []uint32
	Types          []FunctionTypeLite
	Globals        []Value
	Memory         *Memory
	Table          []Value // func refs, RefNull for holes
	Name           string
	InternalsOffset uint32

	// NativeFuncs marks function indices that are implemented in Go
	// rather than WAVM bytecode (a Stylus hostio, or a `programs.*`
	// scheduler entry point). A module that has any is a "library"
	// module, loaded alongside the guest's own modules at fixed indices
	// -- spec.md §9's forward-only module dependency order.
	NativeFuncs map[uint32]NativeFunc
}

// FunctionTypeLite is the minimal signature shape the machine needs at
// runtime (arity for call_indirect type checks and for `return` lowering
// already baked into the instruction stream).
type FunctionTypeLite struct {
	NumParams  int
	NumResults int
}

func globalsHash(globals []Value) [32]byte {
	hashes := make([][32]byte, len(globals))
	for i, g := range globals {
		hashes[i] = g.Hash()
	}
	return merkle.StackHash("Globals hash:", reversed(hashes))
}

func (m *Module) functionsTree() *merkle.Tree {
	depth := 0
	for (1 << uint(depth)) < len(m.Functions) {
		depth++
	}
	if depth == 0 {
		depth = 1
	}
	leaves := make([][32]byte, len(m.Functions))
	for i, fn := range m.Functions {
		leaves[i] = functionCodeHash(fn)
	}
	return merkle.NewTree(depth, leaves)
}

// functionCodeHash hashes a function's flat instruction stream, used both
// as a code Merkle leaf and as part of CallIndirect's proving argument
// (spec.md §4.2).
func functionCodeHash(fn wavm.Function) [32]byte {
	var buf []byte
	for _, ins := range fn.Code {
		var b [10]byte
		b[0] = byte(ins.Opcode >> 8)
		b[1] = byte(ins.Opcode)
		for i := 0; i < 8; i++ {
			b[2+i] = byte(ins.ArgumentData >> uint(56-8*i))
		}
		buf = append(buf, b[:]...)
	}
	return merkle.Keccak256([]byte("Code:"), buf)
}

func (m *Module) tableTree() *merkle.Tree {
	leaves := make([][32]byte, len(m.Table))
	for i, v := range m.Table {
		leaves[i] = v.Hash()
	}
	depth := 0
	for (1 << uint(depth)) < len(leaves) && len(leaves) > 0 {
		depth++
	}
	return merkle.NewTree(depth, leaves)
}

// Hash composes the module's state hash per spec.md §3.3: keccak of the
// globals hash, the memory root, the function-code Merkle root, the table
// Merkle root, and the internals offset.
func (m *Module) Hash() [32]byte {
	gh := globalsHash(m.Globals)
	var memRoot [32]byte
	if m.Memory != nil {
		memRoot = m.Memory.Root()
	}
	fnRoot := m.functionsTree().Root()
	tblRoot := m.tableTree().Root()
	var off [4]byte
	putU32(off[:], m.InternalsOffset)
	return merkle.Keccak256([]byte("Module:"), gh[:], memRoot[:], fnRoot[:], tblRoot[:], off[:])
}
