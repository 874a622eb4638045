package wasmbin

// Opcode is a raw WASM (pre-lowering) instruction opcode: the opcode byte,
// widened to 16 bits so the synthetic 0xFC-prefixed OpMemoryFill and
// OpMemoryCopy values below fit. Only the subset named in spec.md §4.1 is
// recognized by the parser; anything else is a parse error.
type Opcode uint16

const (
	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpBlock       Opcode = 0x02
	OpLoop        Opcode = 0x03
	OpIf          Opcode = 0x04
	OpElse        Opcode = 0x05
	OpEnd         Opcode = 0x0B
	OpBr          Opcode = 0x0C
	OpBrIf        Opcode = 0x0D
	OpBrTable     Opcode = 0x0E
	OpReturn      Opcode = 0x0F
	OpCall        Opcode = 0x10
	OpCallIndirect Opcode = 0x11

	OpDrop   Opcode = 0x1A
	OpSelect Opcode = 0x1B

	OpLocalGet  Opcode = 0x20
	OpLocalSet  Opcode = 0x21
	OpLocalTee  Opcode = 0x22
	OpGlobalGet Opcode = 0x23
	OpGlobalSet Opcode = 0x24

	OpI32Load  Opcode = 0x28
	OpI64Load  Opcode = 0x29
	OpF32Load  Opcode = 0x2A
	OpF64Load  Opcode = 0x2B
	OpI32Load8S  Opcode = 0x2C
	OpI32Load8U  Opcode = 0x2D
	OpI32Load16S Opcode = 0x2E
	OpI32Load16U Opcode = 0x2F
	OpI64Load8S  Opcode = 0x30
	OpI64Load8U  Opcode = 0x31
	OpI64Load16S Opcode = 0x32
	OpI64Load16U Opcode = 0x33
	OpI64Load32S Opcode = 0x34
	OpI64Load32U Opcode = 0x35
	OpI32Store   Opcode = 0x36
	OpI64Store   Opcode = 0x37
	OpF32Store   Opcode = 0x38
	OpF64Store   Opcode = 0x39
	OpI32Store8  Opcode = 0x3A
	OpI32Store16 Opcode = 0x3B
	OpI64Store8  Opcode = 0x3C
	OpI64Store16 Opcode = 0x3D
	OpI64Store32 Opcode = 0x3E

	OpMemorySize Opcode = 0x3F
	OpMemoryGrow Opcode = 0x40

	OpI32Const Opcode = 0x41
	OpI64Const Opcode = 0x42
	OpF32Const Opcode = 0x43
	OpF64Const Opcode = 0x44

	// Comparisons and arithmetic: kept as a contiguous range per the spec,
	// 0x45 (i32.eqz) through 0xC4 (i64.extend32_s) in the real encoding;
	// we store the raw byte and dispatch on it directly rather than
	// enumerate every mnemonic here.

	OpMemoryFill Opcode = 0xFC0B // synthetic: 0xFC 0x0B in the wire encoding
	OpMemoryCopy Opcode = 0xFC0A // synthetic: 0xFC 0x0A in the wire encoding
)

// BlockType describes the signature of a block/loop/if. Per the MVP+
// multi-value encoding: Empty, a single ValType, or a type-section index.
type BlockType struct {
	Empty   bool
	Val     ValType
	HasVal  bool
	TypeIdx int64 // valid when !Empty && !HasVal
}

// Operator is one decoded, still-structured WASM instruction.
type Operator struct {
	Op Opcode

	// Block/Loop/If
	Block BlockType

	// LocalGet/Set/Tee, GlobalGet/Set, Call, type index for CallIndirect
	Idx uint32
	// CallIndirect's table index (almost always 0 in the accepted subset).
	TableIdx uint32

	// Br/BrIf: relative label depth.
	Depth uint32
	// BrTable: per-target relative depths plus the default.
	Targets []uint32
	Default uint32

	// Const immediates.
	I32 int32
	I64 int64
	F32 uint32 // raw IEEE-754 bit pattern
	F64 uint64 // raw IEEE-754 bit pattern

	// Memory access immediates (align is log2 and discarded after parsing
	// since the interpreter does not need it; Offset is kept).
	Offset uint32

	// Raw byte for opcodes in the arithmetic/comparison range that do not
	// need any payload beyond the opcode itself (see isArithOpcode in body.go).
	Raw byte
}
