package machine

import (
	"encoding/binary"

	"github.com/stepchain/wavm-prover/internal/wavm"
)

// execMemOp implements the i32/i64 load and store family (opcodes
// 0x28-0x37, plus the narrow/sign-extended variants through 0x3E), per
// spec.md §4.2's "Memory loads: idx = argument_data + base_from_stack;
// out-of-bounds or u64-overflow sets status=Errored." f32/f64 loads and
// stores lower to the same-width integer opcode (internal/wavm/lower.go's
// floatLoadStoreAsInt) since they move raw bits with no arithmetic, so
// this never needs to distinguish float width from int width. The
// lowering stage packs the static memarg offset into the instruction's
// argument_data, shifted into the high 32 bits so the low bits stay free
// for a future alignment hint; only the offset is load-bearing here.
func (m *Machine) execMemOp(ins wavm.Instruction) {
	offset := ins.ArgumentData >> 32
	op := byte(ins.Opcode)

	if op >= 0x36 { // stores: pop value then base
		m.execMemStore(op, offset)
		return
	}
	m.execMemLoad(op, offset)
}

func (m *Machine) memAddr(offset uint64) (uint32, bool) {
	base := uint64(m.ValueStack.Pop().AsU32())
	idx := base + offset
	if idx > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(idx), true
}

func (m *Machine) execMemLoad(op byte, offset uint64) {
	addr, ok := m.memAddr(offset)
	if !ok {
		m.fail("memory access out of bounds")
		return
	}
	mem := m.CurrentModule().Memory

	readN := func(n int) ([]byte, bool) { return mem.Load(addr, n) }

	switch op {
	case 0x28: // i32.load
		b, ok := readN(4)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I32(binary.LittleEndian.Uint32(b)))
	case 0x29: // i64.load
		b, ok := readN(8)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I64(binary.LittleEndian.Uint64(b)))
	case 0x2C: // i32.load8_s
		b, ok := readN(1)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I32(uint32(int32(int8(b[0])))))
	case 0x2D: // i32.load8_u
		b, ok := readN(1)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I32(uint32(b[0])))
	case 0x2E: // i32.load16_s
		b, ok := readN(2)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I32(uint32(int32(int16(binary.LittleEndian.Uint16(b))))))
	case 0x2F: // i32.load16_u
		b, ok := readN(2)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I32(uint32(binary.LittleEndian.Uint16(b))))
	case 0x30: // i64.load8_s
		b, ok := readN(1)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I64(uint64(int64(int8(b[0])))))
	case 0x31: // i64.load8_u
		b, ok := readN(1)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I64(uint64(b[0])))
	case 0x32: // i64.load16_s
		b, ok := readN(2)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I64(uint64(int64(int16(binary.LittleEndian.Uint16(b))))))
	case 0x33: // i64.load16_u
		b, ok := readN(2)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I64(uint64(binary.LittleEndian.Uint16(b))))
	case 0x34: // i64.load32_s
		b, ok := readN(4)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I64(uint64(int64(int32(binary.LittleEndian.Uint32(b))))))
	case 0x35: // i64.load32_u
		b, ok := readN(4)
		if !ok {
			m.fail("memory access out of bounds")
			return
		}
		m.ValueStack.Push(I64(uint64(binary.LittleEndian.Uint32(b))))
	default:
		m.fail("unimplemented memory load opcode")
	}
}

func (m *Machine) execMemStore(op byte, offset uint64) {
	value := m.ValueStack.Pop()
	addr, ok := m.memAddr(offset)
	if !ok {
		m.fail("memory access out of bounds")
		return
	}
	mem := m.CurrentModule().Memory

	var buf []byte
	switch op {
	case 0x36: // i32.store
		buf = make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, value.AsU32())
	case 0x37: // i64.store
		buf = make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, value.Payload)
	case 0x3A, 0x3C: // i32.store8, i64.store8
		buf = []byte{byte(value.Payload)}
	case 0x3B, 0x3D: // i32.store16, i64.store16
		buf = make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(value.Payload))
	case 0x3E: // i64.store32
		buf = make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(value.Payload))
	default:
		m.fail("unimplemented memory store opcode")
		return
	}
	if !mem.Store(addr, buf) {
		m.fail("memory access out of bounds")
	}
}
