package wavm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/stepchain/wavm-prover/internal/merkle"
	"github.com/stepchain/wavm-prover/internal/wasmbin"
)

var (
	ErrUnsupportedFloat = errors.New("wavm: float op requires a configured soft-float helper module")
)

// scope tracks one open block/loop/if while lowering a function body.
type scope struct {
	isLoop bool
	// loopTarget is the instruction index to jump to for `br` targeting a
	// loop (the loop's own first instruction); only valid when isLoop.
	loopTarget int
	// endPatches holds the indices of instructions whose ArgumentData
	// (jump offset) must be patched to "one past this scope's EndBlock"
	// once that EndBlock is emitted.
	endPatches []int
	// elseJumpPatch, for an `if`, is the index of the conditional jump
	// instruction that must be patched to land on the `else` branch (or
	// the matching `end` if there is none).
	elseJumpPatch int
	hasElse       bool
}

// lowerer holds the state for lowering a single function.
type lowerer struct {
	code    []Instruction
	scopes  []scope
	resultArity int
	floatHelperModule uint32
	haveFloatHelper   bool
	// types is the module's function type table, needed by call_indirect
	// to compute its proving_argument_data (spec.md §4.1: "proving_argument_data
	// is keccak(\"Call indirect:\" || u64_be(table) || ty.hash())").
	types []wasmbin.FunctionType
}

func (l *lowerer) emit(op Opcode, arg uint64) int {
	l.code = append(l.code, Instruction{Opcode: op, ArgumentData: arg})
	return len(l.code) - 1
}

func (l *lowerer) emitProven(op Opcode, arg uint64, proving [32]byte) int {
	l.code = append(l.code, Instruction{Opcode: op, ArgumentData: arg, ProvingArgumentData: proving, HasProvingArgument: true})
	return len(l.code) - 1
}

func (l *lowerer) patchJumpHere(idx int) {
	l.code[idx].ArgumentData = uint64(len(l.code))
}

// LowerOptions configures function lowering, in particular the soft-float
// helper module index named in spec.md §4.1.
type LowerOptions struct {
	HasFloatHelper    bool
	FloatHelperModule uint32
	// FloatHelperFuncOf maps a float opcode's raw WASM byte to the helper
	// module's function index implementing it.
	FloatHelperFuncOf map[byte]uint32
	// Imports resolves a call to an imported function index to the
	// internal opcode that should replace it, per hostimport.go; a
	// missing entry (or one mapped to OpCall) means "ordinary call".
	Imports ImportTable
}

// LowerFunction lowers one wasmbin.Function's structured operator stream
// into a flat wavm.Function, per spec.md §4.1.
func LowerFunction(types []wasmbin.FunctionType, fn wasmbin.Function, opts LowerOptions) (Function, error) {
	ft := types[fn.TypeIdx]
	l := &lowerer{resultArity: len(ft.Results), floatHelperModule: opts.FloatHelperModule, haveFloatHelper: opts.HasFloatHelper, types: types}
	// The function body itself is an implicit outermost scope, closed by
	// the final `end` operator (which parseOperators already balances).
	l.scopes = append(l.scopes, scope{})

	for _, op := range fn.Body {
		if err := l.lowerOp(op, opts); err != nil {
			return Function{}, err
		}
	}

	localTypes := make([]LocalType, len(fn.Locals))
	for i, v := range fn.Locals {
		localTypes[i] = LocalType(v)
	}
	return Function{
		TypeIdx:    fn.TypeIdx,
		NumLocals:  uint32(len(fn.Locals)),
		LocalTypes: localTypes,
		Code:       l.code,
	}, nil
}

func (l *lowerer) currentScope() *scope { return &l.scopes[len(l.scopes)-1] }

func (l *lowerer) lowerOp(op wasmbin.Operator, opts LowerOptions) error {
	switch op.Op {
	case wasmbin.OpBlock:
		l.scopes = append(l.scopes, scope{})
	case wasmbin.OpLoop:
		l.scopes = append(l.scopes, scope{isLoop: true, loopTarget: len(l.code)})
	case wasmbin.OpIf:
		idx := l.emit(OpInternalArbJumpIf, 0)
		// ArbitraryJumpIf as written here is "jump if FALSE" (i.e. jump
		// over the if-branch when the condition is zero); the condition
		// is negated by the caller's wasm `if` semantics being "execute
		// then-branch when nonzero", so the emitted jump fires when the
		// top-of-stack, negated, is true. The interpreter (internal/machine)
		// implements ArbitraryJumpIf as "pop; if zero, jump", matching
		// this usage.
		l.scopes = append(l.scopes, scope{elseJumpPatch: idx})

	case wasmbin.OpElse:
		s := l.currentScope()
		endJump := l.emit(OpInternalArbJump, 0)
		s.endPatches = append(s.endPatches, endJump)
		l.patchJumpHere(s.elseJumpPatch)
		s.hasElse = true

	case wasmbin.OpEnd:
		s := l.scopes[len(l.scopes)-1]
		if !s.isLoop && s.elseJumpPatch != 0 && !s.hasElse {
			l.patchJumpHere(s.elseJumpPatch)
		}
		l.emit(OpInternalEndBlock, 0)
		for _, p := range s.endPatches {
			l.patchJumpHere(p)
		}
		l.scopes = l.scopes[:len(l.scopes)-1]

	case wasmbin.OpBr:
		l.lowerBranch(int(op.Depth), false)
	case wasmbin.OpBrIf:
		l.lowerBranch(int(op.Depth), true)
	case wasmbin.OpBrTable:
		l.lowerBrTable(op)

	case wasmbin.OpReturn:
		l.lowerReturn()

	case wasmbin.OpLocalTee:
		l.emit(OpInternalDup, 0)
		l.emit(OpLocalSet, uint64(op.Idx))

	case wasmbin.OpCallIndirect:
		packed := uint64(op.TableIdx) | uint64(op.Idx)<<32
		tyHash := functionTypeHash(l.types[op.Idx])
		proving := merkle.Keccak256([]byte("Call indirect:"), u64be(uint64(op.TableIdx)), tyHash[:])
		l.emitProven(OpCallIndirect, packed, proving)

	case wasmbin.OpMemoryFill:
		l.emit(OpMemoryFill, 0)
	case wasmbin.OpMemoryCopy:
		l.emit(OpMemoryCopy, 0)

	case wasmbin.OpCall:
		if resolved, ok := opts.Imports[op.Idx]; ok && resolved != OpCall {
			l.emit(resolved, 0)
		} else {
			l.emit(OpCall, uint64(op.Idx))
		}
	case wasmbin.OpLocalGet:
		l.emit(OpLocalGet, uint64(op.Idx))
	case wasmbin.OpLocalSet:
		l.emit(OpLocalSet, uint64(op.Idx))
	case wasmbin.OpGlobalGet:
		l.emit(OpGlobalGet, uint64(op.Idx))
	case wasmbin.OpGlobalSet:
		l.emit(OpGlobalSet, uint64(op.Idx))
	case wasmbin.OpI32Const:
		l.emit(OpI32Const, uint64(uint32(op.I32)))
	case wasmbin.OpI64Const:
		l.emit(OpI64Const, uint64(op.I64))
	case wasmbin.OpF32Const, wasmbin.OpF64Const:
		return l.lowerFloatConst(op, opts)
	case wasmbin.OpUnreachable:
		l.emit(OpUnreachable, 0)
	case wasmbin.OpNop:
		l.emit(OpNop, 0)
	case wasmbin.OpDrop:
		l.emit(OpDrop, 0)
	case wasmbin.OpSelect:
		l.emit(OpSelect, 0)
	case wasmbin.OpMemorySize:
		l.emit(OpMemorySize, 0)
	case wasmbin.OpMemoryGrow:
		l.emit(OpMemoryGrow, 0)
	default:
		if intOp, ok := floatLoadStoreAsInt(op.Raw); ok {
			// f32/f64 load and store move raw bits only -- no arithmetic
			// happens, so unlike float arithmetic these never need the
			// soft-float helper module. Lowering them as the same-width
			// plain integer load/store keeps every value on the stack
			// tagged I32/I64 until a real float op needs to reinterpret
			// it, matching how f32/f64 consts are lowered just above.
			l.emit(intOp, uint64(op.Offset)<<32)
			return nil
		}
		if isFloatOpcode(op.Raw) {
			return l.lowerFloatOp(op, opts)
		}
		if isLoadStoreRange(byte(op.Op)) {
			l.emit(Opcode(op.Op), (uint64(op.Offset) << 32))
			return nil
		}
		// Plain integer arithmetic/comparison: pass the raw opcode
		// through; the interpreter dispatches on it directly (spec.md
		// §4.2 notes only the behaviors that differ from WASM, e.g.
		// wrap-on-overflow and division-by-zero yielding 0).
		l.emit(Opcode(op.Raw), 0)
	}
	return nil
}

func isLoadStoreRange(b byte) bool { return b >= 0x28 && b <= 0x3E }

// floatLoadStoreAsInt maps a float load/store's raw opcode to the
// same-width plain integer opcode it lowers to.
func floatLoadStoreAsInt(raw byte) (Opcode, bool) {
	switch raw {
	case 0x2A: // f32.load
		return OpI32Load, true
	case 0x2B: // f64.load
		return OpI64Load, true
	case 0x38: // f32.store
		return OpI32Store, true
	case 0x39: // f64.store
		return OpI64Store, true
	}
	return 0, false
}

// isFloatOpcode reports whether raw is one of the WASM float instructions
// that requires arithmetic (0x43-0x44 consts handled separately, 0x5B-0x66
// float comparisons, 0x8B-0xBF float unary/binary/convert ops). Float
// loads/stores are handled by floatLoadStoreAsInt above instead, since they
// never reach the soft-float helper.
//
// Three opcodes inside the 0x8B-0xBF span carry no float bits at all:
// i32.wrap_i64 (0xA7), i64.extend_i32_s (0xAC), and i64.extend_i32_u
// (0xAD) are pure integer width conversions, so they are excluded here and
// dispatched directly by internal/machine/arith.go instead of being routed
// into the soft-float helper's CrossModuleCall, which has no function
// registered for them.
func isFloatOpcode(raw byte) bool {
	switch raw {
	case 0xA7, 0xAC, 0xAD:
		return false
	}
	switch {
	case raw >= 0x5B && raw <= 0x66: // float comparisons
		return true
	case raw >= 0x8B && raw <= 0xBF: // float unary/binary/convert ops
		return true
	}
	return false
}

// lowerFloatConst and lowerFloatOp implement spec.md §4.1's rule that
// float arithmetic never executes natively: each float op reinterprets its
// integer-bit-pattern operands, routes them through the internal stack in
// reverse order, and issues a CrossModuleCall into the configured
// soft-float helper module, reinterpreting the result back.
func (l *lowerer) lowerFloatConst(op wasmbin.Operator, opts LowerOptions) error {
	if op.Op == wasmbin.OpF32Const {
		l.emit(OpI32Const, uint64(op.F32))
	} else {
		l.emit(OpI64Const, op.F64)
	}
	return nil
}

func (l *lowerer) lowerFloatOp(op wasmbin.Operator, opts LowerOptions) error {
	if !opts.HasFloatHelper {
		return fmt.Errorf("%w: opcode %#x", ErrUnsupportedFloat, op.Raw)
	}
	helperFunc, ok := opts.FloatHelperFuncOf[op.Raw]
	if !ok {
		return fmt.Errorf("%w: no helper registered for opcode %#x", ErrUnsupportedFloat, op.Raw)
	}
	// Arguments are already integer-reinterpreted on the value stack by
	// virtue of f32/f64 consts and loads being lowered as plain i32/i64;
	// move them through the internal stack in reverse order so the
	// helper sees them in its own calling convention, then cross-call.
	l.emit(OpInternalMoveToInternal, 0)
	l.emit(OpInternalMoveToInternal, 0)
	l.emit(OpInternalMoveFromInternal, 0)
	l.emit(OpInternalMoveFromInternal, 0)
	packed := uint64(l.floatHelperModule)<<32 | uint64(helperFunc)
	l.emit(OpInternalCrossModuleCall, packed)
	return nil
}

// lowerBranch implements br/br_if (spec.md §4.1): br unwinds `depth` scopes
// by emitting `depth` EndBlock then one unconditional jump to the target
// scope's label (loop target for loops, end target for blocks); br_if does
// the same with EndBlockIf/ArbitraryJumpIf so the conditional is only
// consumed once, at the final jump. Those two act when the top of stack is
// zero, so br_if first inverts its condition with i32.eqz.
func (l *lowerer) lowerBranch(depth int, conditional bool) {
	n := len(l.scopes)
	target := &l.scopes[n-1-depth]
	endOp := OpInternalEndBlock
	jumpOp := OpInternalArbJump
	if conditional {
		l.emit(Opcode(0x45), 0) // i32.eqz
		endOp = OpInternalEndBlockIf
		jumpOp = OpInternalArbJumpIf
	}
	for i := 0; i < depth; i++ {
		l.emit(endOp, 0)
	}
	if target.isLoop {
		l.emit(jumpOp, uint64(target.loopTarget))
	} else {
		idx := l.emit(jumpOp, 0)
		target.endPatches = append(target.endPatches, idx)
	}
}

// lowerBrTable lowers br_table into a sequence of duplicate-compare-jump
// trampolines culminating in the default target, per spec.md §4.1: "this
// is expressed entirely in WAVM and therefore provable."
func (l *lowerer) lowerBrTable(op wasmbin.Operator) {
	for i, depth := range op.Targets {
		l.emit(OpInternalDup, 0)
		// candidate == position in Targets: compare the duplicated index
		// against i using a const+eq pair.
		l.emit(OpI32Const, uint64(i))
		l.emit(Opcode(0x46), 0) // i32.eq
		skip := l.emit(OpInternalArbJumpIf, 0) // not equal: skip this candidate
		l.emit(OpDrop, 0) // equal: drop the index, then take the branch
		l.lowerBranch(int(depth), false)
		l.patchJumpHere(skip)
	}
	l.emit(OpDrop, 0) // drop the original index before falling into the default
	l.lowerBranch(int(op.Default), false)
}

func candidateOrdinal(op wasmbin.Operator, depth uint32) int {
	for i, d := range op.Targets {
		if d == depth {
			return i
		}
	}
	return 0
}

// lowerReturn implements spec.md §4.1's `return` lowering: move result
// values to the internal stack, loop popping the value stack until a
// StackBoundary is encountered, close all open scopes, move the results
// back, then Return.
func (l *lowerer) lowerReturn() {
	for i := 0; i < l.resultArity; i++ {
		l.emit(OpInternalMoveToInternal, 0)
	}
	loopStart := len(l.code)
	l.emit(OpInternalIsStackBoundary, 0)
	l.emit(Opcode(0x45), 0) // i32.eqz
	brIfIdx := l.emit(OpInternalArbJumpIf, 0)
	l.emit(OpDrop, 0)
	l.emit(OpInternalArbJump, uint64(loopStart))
	l.patchJumpHere(brIfIdx)
	for i := len(l.scopes) - 1; i >= 1; i-- {
		l.emit(OpInternalEndBlock, 0)
	}
	for i := 0; i < l.resultArity; i++ {
		l.emit(OpInternalMoveFromInternal, 0)
	}
	l.emit(OpReturn, 0)
}

// functionTypeHash digests a function signature as
// keccak("Function type:" || n_params || params || n_results || results),
// each ValType byte as-is, so call_indirect's proving data commits to the
// exact signature the caller expects rather than just a type index (which
// carries no meaning once module boundaries are crossed).
func functionTypeHash(ft wasmbin.FunctionType) [32]byte {
	buf := make([]byte, 0, 2+len(ft.Params)+len(ft.Results))
	buf = append(buf, byte(len(ft.Params)))
	for _, p := range ft.Params {
		buf = append(buf, byte(p))
	}
	buf = append(buf, byte(len(ft.Results)))
	for _, r := range ft.Results {
		buf = append(buf, byte(r))
	}
	return merkle.Keccak256([]byte("Function type:"), buf)
}

func u64be(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
