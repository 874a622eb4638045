package wasmbin

import (
	"encoding/binary"
	"fmt"
)

// disallowedOpcode reports whether op belongs to an explicitly rejected
// WASM 1.0+ extension (reference-types, SIMD, threads/atomics,
// exception-handling, tail calls, memory64, multi-memory, component
// model), per spec.md §4.1.
func disallowedOpcode(op byte) bool {
	switch op {
	case 0xD0, 0xD1, 0xD2, // ref.null, ref.is_null, ref.func (reference-types)
		0xFE,      // atomic prefix (threads)
		0xFD,      // SIMD prefix
		0x06, 0x07, // try, catch (exception-handling, legacy encoding)
		0x12, 0x13: // return_call, return_call_indirect (tail calls)
		return true
	}
	return false
}

// parseOperators decodes a function body's structured operator stream,
// rejecting bulk-memory ops other than memory.fill/memory.copy per the open
// question recorded in spec.md §9 and SPEC_FULL.md §E.
func parseOperators(body []byte) ([]Operator, error) {
	r := &reader{buf: body}
	var ops []Operator
	depth := 0
	for r.remaining() > 0 {
		opByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		if disallowedOpcode(opByte) {
			return nil, fmt.Errorf("%w: disallowed opcode %#x", ErrBadOpcode, opByte)
		}
		op := Operator{Op: Opcode(opByte), Raw: opByte}
		switch Opcode(opByte) {
		case OpBlock, OpLoop, OpIf:
			bt, err := parseBlockType(r)
			if err != nil {
				return nil, err
			}
			op.Block = bt
			depth++
		case OpElse, OpEnd:
			if Opcode(opByte) == OpEnd {
				if depth > 0 {
					depth--
				}
			}
		case OpBr, OpBrIf:
			d, err := r.u32()
			if err != nil {
				return nil, err
			}
			op.Depth = d
		case OpBrTable:
			n, err := r.u32()
			if err != nil {
				return nil, err
			}
			targets := make([]uint32, n)
			for i := range targets {
				if targets[i], err = r.u32(); err != nil {
					return nil, err
				}
			}
			def, err := r.u32()
			if err != nil {
				return nil, err
			}
			op.Targets = targets
			op.Default = def
		case OpCall:
			idx, err := r.u32()
			if err != nil {
				return nil, err
			}
			op.Idx = idx
		case OpCallIndirect:
			typeIdx, err := r.u32()
			if err != nil {
				return nil, err
			}
			tableIdx, err := r.u32()
			if err != nil {
				return nil, err
			}
			op.Idx = typeIdx
			op.TableIdx = tableIdx
		case OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
			idx, err := r.u32()
			if err != nil {
				return nil, err
			}
			op.Idx = idx
		case OpI32Const:
			v, err := r.sleb()
			if err != nil {
				return nil, err
			}
			op.I32 = int32(v)
		case OpI64Const:
			v, err := r.sleb()
			if err != nil {
				return nil, err
			}
			op.I64 = v
		case OpF32Const:
			b, err := r.bytesN(4)
			if err != nil {
				return nil, err
			}
			op.F32 = binary.LittleEndian.Uint32(b)
		case OpF64Const:
			b, err := r.bytesN(8)
			if err != nil {
				return nil, err
			}
			op.F64 = binary.LittleEndian.Uint64(b)
		case OpMemorySize, OpMemoryGrow:
			if _, err := r.byte(); err != nil { // reserved memidx byte, must be 0
				return nil, err
			}
		case OpUnreachable, OpNop, OpReturn, OpDrop, OpSelect:
			// no immediates
		default:
			if isLoadStoreOpcode(opByte) {
				align, err := r.u32()
				if err != nil {
					return nil, err
				}
				off, err := r.u32()
				if err != nil {
					return nil, err
				}
				_ = align
				op.Offset = off
			} else if opByte == 0xFC {
				sub, err := r.u32()
				if err != nil {
					return nil, err
				}
				switch {
				case sub <= 7:
					// saturating-float-to-int conversions: enabled feature,
					// no immediates beyond the sub-opcode.
					op.Raw = byte(sub)
				case sub == 10: // memory.copy
					if _, err := r.byte(); err != nil {
						return nil, err
					}
					if _, err := r.byte(); err != nil {
						return nil, err
					}
					op.Op = OpMemoryCopy
				case sub == 11: // memory.fill
					if _, err := r.byte(); err != nil {
						return nil, err
					}
					op.Op = OpMemoryFill
				default:
					return nil, fmt.Errorf("%w: bulk-memory-operations extension not fully supported (sub-opcode %d)", ErrBadOpcode, sub)
				}
			} else if isArithOpcode(opByte) {
				// no immediates: plain stack arithmetic/comparison/conversion.
			} else {
				return nil, fmt.Errorf("%w: %#x", ErrBadOpcode, opByte)
			}
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func parseBlockType(r *reader) (BlockType, error) {
	b, err := r.byte()
	if err != nil {
		return BlockType{}, err
	}
	if b == 0x40 {
		return BlockType{Empty: true}, nil
	}
	switch ValType(b) {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef:
		return BlockType{Val: ValType(b), HasVal: true}, nil
	}
	// Multi-value: signed LEB128 type index, re-read as sleb from this byte.
	r.pos--
	idx, err := r.sleb()
	if err != nil {
		return BlockType{}, err
	}
	if idx < 0 {
		return BlockType{}, fmt.Errorf("%w: bad block type", ErrBadSection)
	}
	return BlockType{TypeIdx: idx}, nil
}

func isLoadStoreOpcode(b byte) bool {
	return b >= 0x28 && b <= 0x3E
}

// isArithOpcode reports whether b is one of the no-immediate numeric
// instructions (comparisons 0x45-0x66, arithmetic/bitwise/conversion
// 0x67-0xC4 excluding the const opcodes and the disallowed saturating
// conversions' prefix, which this substrate allows per "saturating-float-
// to-int" being an enabled feature — those live under the 0xFC prefix as
// sub-opcodes 0-7 and are handled alongside memory.fill/copy).
func isArithOpcode(b byte) bool {
	if b >= 0x45 && b <= 0xC4 {
		switch Opcode(b) {
		case OpI32Const, OpI64Const, OpF32Const, OpF64Const:
			return false
		}
		return true
	}
	return false
}
