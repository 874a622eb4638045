package wavm

// Instruction is a single flat WAVM instruction, per spec.md §4.1/GLOSSARY:
// a 2-byte opcode plus 32 bytes of argument data. ArgumentData holds the
// common case (an integer packed into 8 bytes); ProvingArgumentData holds
// the rarer 32-byte payload some opcodes need in their proof (e.g.
// call_indirect's "Call indirect:" hash) without forcing every
// instruction to carry a full 32-byte field in memory.
type Instruction struct {
	Opcode              Opcode
	ArgumentData        uint64
	ProvingArgumentData [32]byte
	HasProvingArgument  bool
}

// Function is one lowered function: its resolved type index and its flat
// instruction stream. Jump targets inside Code are absolute indices into
// this same slice, resolved during lowering.
type Function struct {
	TypeIdx uint32
	NumLocals uint32
	LocalTypes []LocalType
	Code    []Instruction
}

// LocalType carries wasmbin.ValType's byte encoding; LowerFunction converts
// each local's wasmbin type to it, and internal/machine's FromWAVMLocalType
// turns it into a zero Value.
type LocalType byte

const (
	LocalI32 LocalType = 0x7F
	LocalI64 LocalType = 0x7E
	LocalF32 LocalType = 0x7D
	LocalF64 LocalType = 0x7C
)
