package machine

import (
	"math/bits"

	"github.com/stepchain/wavm-prover/internal/wavm"
)

// execArith dispatches the plain WASM integer arithmetic/comparison
// opcodes the lowering stage passes through by raw byte value (wavm's
// opcode.go deliberately does not name each one; see its comment).
// Division and remainder by zero yield 0 rather than trapping, per
// spec.md §4.2's note that these differ from ordinary WASM -- the
// well-formedness of a Stylus program is checked at activation, not at
// every division, so the proving machine must still make forward
// progress on a malicious or buggy program rather than getting stuck.
func (m *Machine) execArith(ins wavm.Instruction) {
	op := byte(ins.Opcode)
	switch {
	case op == 0x45: // i32.eqz
		m.ValueStack.Push(boolVal(m.ValueStack.Pop().AsU32() == 0))
	case op >= 0x46 && op <= 0x4F: // i32 comparisons
		b, a := m.ValueStack.Pop().AsU32(), m.ValueStack.Pop().AsU32()
		m.ValueStack.Push(boolVal(i32Compare(op, a, b)))
	case op == 0x50: // i64.eqz
		m.ValueStack.Push(boolVal(m.ValueStack.Pop().Payload == 0))
	case op >= 0x51 && op <= 0x5A: // i64 comparisons
		b, a := m.ValueStack.Pop().Payload, m.ValueStack.Pop().Payload
		m.ValueStack.Push(boolVal(i64Compare(op, a, b)))
	case op >= 0x67 && op <= 0x69: // i32.clz/ctz/popcnt
		a := m.ValueStack.Pop().AsU32()
		m.ValueStack.Push(I32(uint32(i32Unary(op, a))))
	case op >= 0x71 && op <= 0x78: // i32 bitwise/shift
		m.execI32Arith(op)
	case op >= 0x79 && op <= 0x7B: // i64.clz/ctz/popcnt
		a := m.ValueStack.Pop().Payload
		m.ValueStack.Push(I64(i64Unary(op, a)))
	case op >= 0x83 && op <= 0x8A: // i64 bitwise/shift
		m.execI64Arith(op)
	case op == 0x6A: // i32.add
		b, a := m.ValueStack.Pop().AsU32(), m.ValueStack.Pop().AsU32()
		m.ValueStack.Push(I32(a + b))
	case op == 0x6B: // i32.sub
		b, a := m.ValueStack.Pop().AsU32(), m.ValueStack.Pop().AsU32()
		m.ValueStack.Push(I32(a - b))
	case op == 0x6C: // i32.mul
		b, a := m.ValueStack.Pop().AsU32(), m.ValueStack.Pop().AsU32()
		m.ValueStack.Push(I32(a * b))
	case op == 0x6D: // i32.div_s
		b, a := int32(m.ValueStack.Pop().AsU32()), int32(m.ValueStack.Pop().AsU32())
		if b == 0 {
			m.ValueStack.Push(I32(0))
			return
		}
		m.ValueStack.Push(I32(uint32(a / b)))
	case op == 0x6E: // i32.div_u
		b, a := m.ValueStack.Pop().AsU32(), m.ValueStack.Pop().AsU32()
		if b == 0 {
			m.ValueStack.Push(I32(0))
			return
		}
		m.ValueStack.Push(I32(a / b))
	case op == 0x6F: // i32.rem_s
		b, a := int32(m.ValueStack.Pop().AsU32()), int32(m.ValueStack.Pop().AsU32())
		if b == 0 {
			m.ValueStack.Push(I32(0))
			return
		}
		m.ValueStack.Push(I32(uint32(a % b)))
	case op == 0x70: // i32.rem_u
		b, a := m.ValueStack.Pop().AsU32(), m.ValueStack.Pop().AsU32()
		if b == 0 {
			m.ValueStack.Push(I32(0))
			return
		}
		m.ValueStack.Push(I32(a % b))
	case op == 0x7C: // i64.add
		b, a := m.ValueStack.Pop().Payload, m.ValueStack.Pop().Payload
		m.ValueStack.Push(I64(a + b))
	case op == 0x7D: // i64.sub
		b, a := m.ValueStack.Pop().Payload, m.ValueStack.Pop().Payload
		m.ValueStack.Push(I64(a - b))
	case op == 0x7E: // i64.mul
		b, a := m.ValueStack.Pop().Payload, m.ValueStack.Pop().Payload
		m.ValueStack.Push(I64(a * b))
	case op == 0x7F: // i64.div_s
		b, a := int64(m.ValueStack.Pop().Payload), int64(m.ValueStack.Pop().Payload)
		if b == 0 {
			m.ValueStack.Push(I64(0))
			return
		}
		m.ValueStack.Push(I64(uint64(a / b)))
	case op == 0x80: // i64.div_u
		b, a := m.ValueStack.Pop().Payload, m.ValueStack.Pop().Payload
		if b == 0 {
			m.ValueStack.Push(I64(0))
			return
		}
		m.ValueStack.Push(I64(a / b))
	case op == 0x81: // i64.rem_s
		b, a := int64(m.ValueStack.Pop().Payload), int64(m.ValueStack.Pop().Payload)
		if b == 0 {
			m.ValueStack.Push(I64(0))
			return
		}
		m.ValueStack.Push(I64(uint64(a % b)))
	case op == 0x82: // i64.rem_u
		b, a := m.ValueStack.Pop().Payload, m.ValueStack.Pop().Payload
		if b == 0 {
			m.ValueStack.Push(I64(0))
			return
		}
		m.ValueStack.Push(I64(a % b))
	case op == 0xA7: // i32.wrap_i64 -- pure width truncation, no float bits
		m.ValueStack.Push(I32(uint32(m.ValueStack.Pop().Payload)))
	case op == 0xAC: // i64.extend_i32_s
		m.ValueStack.Push(I64(uint64(int64(int32(m.ValueStack.Pop().AsU32())))))
	case op == 0xAD: // i64.extend_i32_u
		m.ValueStack.Push(I64(uint64(m.ValueStack.Pop().AsU32())))
	case op >= 0xC0 && op <= 0xC4: // sign-extension proposal, enabled per spec.md §4.1
		m.execSignExtend(op)
	default:
		m.fail("unimplemented arithmetic opcode")
	}
}

func (m *Machine) execI32Arith(op byte) {
	b, a := m.ValueStack.Pop().AsU32(), m.ValueStack.Pop().AsU32()
	switch op {
	case 0x71: // and
		m.ValueStack.Push(I32(a & b))
	case 0x72: // or
		m.ValueStack.Push(I32(a | b))
	case 0x73: // xor
		m.ValueStack.Push(I32(a ^ b))
	case 0x74: // shl
		m.ValueStack.Push(I32(a << (b & 31)))
	case 0x75: // shr_s
		m.ValueStack.Push(I32(uint32(int32(a) >> (b & 31))))
	case 0x76: // shr_u
		m.ValueStack.Push(I32(a >> (b & 31)))
	case 0x77: // rotl
		m.ValueStack.Push(I32(bits.RotateLeft32(a, int(b&31))))
	case 0x78: // rotr
		m.ValueStack.Push(I32(bits.RotateLeft32(a, -int(b&31))))
	default:
		m.fail("unimplemented i32 arithmetic opcode")
	}
}

func (m *Machine) execI64Arith(op byte) {
	b, a := m.ValueStack.Pop().Payload, m.ValueStack.Pop().Payload
	switch op {
	case 0x83: // and
		m.ValueStack.Push(I64(a & b))
	case 0x84: // or
		m.ValueStack.Push(I64(a | b))
	case 0x85: // xor
		m.ValueStack.Push(I64(a ^ b))
	case 0x86: // shl
		m.ValueStack.Push(I64(a << (b & 63)))
	case 0x87: // shr_s
		m.ValueStack.Push(I64(uint64(int64(a) >> (b & 63))))
	case 0x88: // shr_u
		m.ValueStack.Push(I64(a >> (b & 63)))
	case 0x89: // rotl
		m.ValueStack.Push(I64(bits.RotateLeft64(a, int(b&63))))
	case 0x8A: // rotr
		m.ValueStack.Push(I64(bits.RotateLeft64(a, -int(b&63))))
	default:
		m.fail("unimplemented i64 arithmetic opcode")
	}
}

// execSignExtend implements the sign-extension proposal's five ops
// (i32.extend8_s, i32.extend16_s, i64.extend8_s, i64.extend16_s,
// i64.extend32_s), enabled per spec.md §4.1: each sign-extends the
// operand from the named narrower width without otherwise touching it.
func (m *Machine) execSignExtend(op byte) {
	switch op {
	case 0xC0: // i32.extend8_s
		a := m.ValueStack.Pop().AsU32()
		m.ValueStack.Push(I32(uint32(int32(int8(a)))))
	case 0xC1: // i32.extend16_s
		a := m.ValueStack.Pop().AsU32()
		m.ValueStack.Push(I32(uint32(int32(int16(a)))))
	case 0xC2: // i64.extend8_s
		a := m.ValueStack.Pop().Payload
		m.ValueStack.Push(I64(uint64(int64(int8(a)))))
	case 0xC3: // i64.extend16_s
		a := m.ValueStack.Pop().Payload
		m.ValueStack.Push(I64(uint64(int64(int16(a)))))
	case 0xC4: // i64.extend32_s
		a := m.ValueStack.Pop().Payload
		m.ValueStack.Push(I64(uint64(int64(int32(a)))))
	default:
		m.fail("unimplemented sign-extension opcode")
	}
}

func i32Unary(op byte, a uint32) int {
	switch op {
	case 0x67:
		return bits.LeadingZeros32(a)
	case 0x68:
		return bits.TrailingZeros32(a)
	default:
		return bits.OnesCount32(a)
	}
}

func i64Unary(op byte, a uint64) uint64 {
	switch op {
	case 0x79:
		return uint64(bits.LeadingZeros64(a))
	case 0x7A:
		return uint64(bits.TrailingZeros64(a))
	default:
		return uint64(bits.OnesCount64(a))
	}
}

func boolVal(b bool) Value {
	if b {
		return I32(1)
	}
	return I32(0)
}

func i32Compare(op byte, a, b uint32) bool {
	switch op {
	case 0x46:
		return a == b
	case 0x47:
		return a != b
	case 0x48:
		return int32(a) < int32(b)
	case 0x49:
		return a < b
	case 0x4A:
		return int32(a) > int32(b)
	case 0x4B:
		return a > b
	case 0x4C:
		return int32(a) <= int32(b)
	case 0x4D:
		return a <= b
	case 0x4E:
		return int32(a) >= int32(b)
	case 0x4F:
		return a >= b
	}
	return false
}

func i64Compare(op byte, a, b uint64) bool {
	switch op {
	case 0x51:
		return a == b
	case 0x52:
		return a != b
	case 0x53:
		return int64(a) < int64(b)
	case 0x54:
		return a < b
	case 0x55:
		return int64(a) > int64(b)
	case 0x56:
		return a > b
	case 0x57:
		return int64(a) <= int64(b)
	case 0x58:
		return a <= b
	case 0x59:
		return int64(a) >= int64(b)
	case 0x5A:
		return a >= b
	}
	return false
}
