// Package machine implements the deterministic, step-by-step proving
// machine described in spec.md §3-§4: a WAVM interpreter whose entire
// state (value/internal/block/frame stacks, linear memory, globals,
// module table, global state) is Merkleized so that any single
// instruction's execution can be proven to an on-chain verifier without
// replaying the whole computation.
//
// Grounded on _examples/original_source/arbitrator/prover/src/{value,machine,memory}.rs
// for exact hashing/semantics, and on
// _examples/wyf-ACCEPT-eth2030/pkg/core/vm/ewasm_jit.go for the Go idiom of
// a tagged-union stack value dispatched by a type switch rather than an
// interface per value kind (SPEC_FULL.md §D).
package machine

import (
	"encoding/binary"

	"github.com/stepchain/wavm-prover/internal/merkle"
	"github.com/stepchain/wavm-prover/internal/wavm"
)

// ValueType discriminates the tagged union Value holds, per spec.md §3.4.
type ValueType byte

const (
	TypeI32 ValueType = iota
	TypeI64
	TypeF32
	TypeF64
	TypeRefNull
	TypeFuncRef
	TypeInternalRef
	// TypeStackBoundary marks a value-stack sentinel pushed at a call
	// boundary so `return` can find where to stop unwinding (spec.md §4.1).
	TypeStackBoundary
)

// Value is a single WAVM stack cell. Floats are stored as their raw bit
// pattern throughout, per spec.md's "float arithmetic never executes
// natively" rule: only the integer lowering ever manipulates payload.
type Value struct {
	Type    ValueType
	Payload uint64 // i32 (low 32 bits), i64, f32 (low 32 bits), f64, or a function/internal index
}

func I32(v uint32) Value         { return Value{Type: TypeI32, Payload: uint64(v)} }
func I64(v uint64) Value         { return Value{Type: TypeI64, Payload: v} }
func F32Bits(v uint32) Value     { return Value{Type: TypeF32, Payload: uint64(v)} }
func F64Bits(v uint64) Value     { return Value{Type: TypeF64, Payload: v} }
func FuncRef(idx uint32) Value   { return Value{Type: TypeFuncRef, Payload: uint64(idx)} }
func InternalRef(pc uint64) Value { return Value{Type: TypeInternalRef, Payload: pc} }
func RefNull() Value             { return Value{Type: TypeRefNull} }
func StackBoundary() Value       { return Value{Type: TypeStackBoundary} }

// Hash returns the leaf hash spec.md §3.4 assigns a single value:
// keccak("Value:" || type_byte || payload_be).
func (v Value) Hash() [32]byte {
	var buf [9]byte
	buf[0] = byte(v.Type)
	binary.BigEndian.PutUint64(buf[1:], v.Payload)
	return merkle.Keccak256([]byte("Value:"), buf[:])
}

// AsU32 truncates the payload to 32 bits, for i32/f32 values.
func (v Value) AsU32() uint32 { return uint32(v.Payload) }

// FromWAVMLocalType maps a wavm.LocalType to the zero Value of that type,
// used to initialize a frame's locals.
func FromWAVMLocalType(t wavm.LocalType) Value {
	switch t {
	case wavm.LocalI32:
		return I32(0)
	case wavm.LocalI64:
		return I64(0)
	case wavm.LocalF32:
		return F32Bits(0)
	case wavm.LocalF64:
		return F64Bits(0)
	}
	return I32(0)
}
