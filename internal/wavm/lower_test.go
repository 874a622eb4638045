package wavm

import (
	"testing"

	"github.com/stepchain/wavm-prover/internal/merkle"
	"github.com/stepchain/wavm-prover/internal/wasmbin"
)

func identityType() []wasmbin.FunctionType {
	return []wasmbin.FunctionType{{
		Params:  []wasmbin.ValType{wasmbin.ValI32},
		Results: []wasmbin.ValType{wasmbin.ValI32},
	}}
}

func TestLowerFunctionConstAndEnd(t *testing.T) {
	fn := wasmbin.Function{
		TypeIdx: 0,
		Body: []wasmbin.Operator{
			{Op: wasmbin.OpI32Const, I32: 42},
			{Op: wasmbin.OpEnd},
		},
	}
	lowered, err := LowerFunction(identityType(), fn, LowerOptions{})
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	if len(lowered.Code) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(lowered.Code))
	}
	if lowered.Code[0].Opcode != OpI32Const || lowered.Code[0].ArgumentData != 42 {
		t.Fatalf("instruction 0 = %+v, want i32.const 42", lowered.Code[0])
	}
	if lowered.Code[1].Opcode != OpInternalEndBlock {
		t.Fatalf("instruction 1 = %+v, want OpInternalEndBlock", lowered.Code[1])
	}
}

func TestLowerFunctionLocalTeeDuplicatesBeforeSet(t *testing.T) {
	fn := wasmbin.Function{
		TypeIdx: 0,
		Body: []wasmbin.Operator{
			{Op: wasmbin.OpLocalTee, Idx: 0},
			{Op: wasmbin.OpEnd},
		},
	}
	lowered, err := LowerFunction(identityType(), fn, LowerOptions{})
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	if lowered.Code[0].Opcode != OpInternalDup {
		t.Fatalf("instruction 0 = %+v, want OpInternalDup", lowered.Code[0])
	}
	if lowered.Code[1].Opcode != OpLocalSet || lowered.Code[1].ArgumentData != 0 {
		t.Fatalf("instruction 1 = %+v, want local.set 0", lowered.Code[1])
	}
}

func TestLowerFunctionCallRespectsImportTable(t *testing.T) {
	fn := wasmbin.Function{
		TypeIdx: 0,
		Body: []wasmbin.Operator{
			{Op: wasmbin.OpCall, Idx: 3},
			{Op: wasmbin.OpEnd},
		},
	}
	opts := LowerOptions{Imports: ImportTable{3: OpInternalReadPreImage}}
	lowered, err := LowerFunction(identityType(), fn, opts)
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	if lowered.Code[0].Opcode != OpInternalReadPreImage {
		t.Fatalf("instruction 0 = %+v, want OpInternalReadPreImage", lowered.Code[0])
	}
}

func TestLowerFunctionCallFallsBackToOrdinaryCall(t *testing.T) {
	fn := wasmbin.Function{
		TypeIdx: 0,
		Body: []wasmbin.Operator{
			{Op: wasmbin.OpCall, Idx: 7},
			{Op: wasmbin.OpEnd},
		},
	}
	lowered, err := LowerFunction(identityType(), fn, LowerOptions{})
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	if lowered.Code[0].Opcode != OpCall || lowered.Code[0].ArgumentData != 7 {
		t.Fatalf("instruction 0 = %+v, want call 7", lowered.Code[0])
	}
}

func TestLowerFunctionIfElsePatchesJumps(t *testing.T) {
	fn := wasmbin.Function{
		TypeIdx: 0,
		Body: []wasmbin.Operator{
			{Op: wasmbin.OpLocalGet, Idx: 0},
			{Op: wasmbin.OpIf, Block: wasmbin.BlockType{Empty: true}},
			{Op: wasmbin.OpI32Const, I32: 1},
			{Op: wasmbin.OpElse},
			{Op: wasmbin.OpI32Const, I32: 0},
			{Op: wasmbin.OpEnd},
			{Op: wasmbin.OpEnd},
		},
	}
	lowered, err := LowerFunction(identityType(), fn, LowerOptions{})
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	// local.get, ArbJumpIf, const 1, ArbJump, [else target] const 0, EndBlock, EndBlock
	ifJump := lowered.Code[1]
	if ifJump.Opcode != OpInternalArbJumpIf {
		t.Fatalf("instruction 1 = %+v, want OpInternalArbJumpIf", ifJump)
	}
	elseTarget := int(ifJump.ArgumentData)
	if elseTarget <= 1 || elseTarget >= len(lowered.Code) {
		t.Fatalf("if-jump target %d out of range [2, %d)", elseTarget, len(lowered.Code))
	}
	if lowered.Code[elseTarget].Opcode != OpI32Const {
		t.Fatalf("else target instruction = %+v, want i32.const 0", lowered.Code[elseTarget])
	}
}

func TestLowerFunctionFloatLoadStoreNeedNoHelper(t *testing.T) {
	// f32.load and f64.store move raw bits only; they must lower to the
	// same-width plain integer opcode and never require a float helper,
	// unlike f32.add and friends below.
	fn := wasmbin.Function{
		TypeIdx: 0,
		Body: []wasmbin.Operator{
			{Op: wasmbin.OpF32Load, Raw: 0x2A, Offset: 8},
			{Op: wasmbin.OpF64Store, Raw: 0x39, Offset: 16},
			{Op: wasmbin.OpEnd},
		},
	}
	lowered, err := LowerFunction(identityType(), fn, LowerOptions{})
	if err != nil {
		t.Fatalf("LowerFunction: %v (float load/store must not need a helper)", err)
	}
	if lowered.Code[0].Opcode != OpI32Load {
		t.Fatalf("f32.load lowered to %+v, want OpI32Load", lowered.Code[0])
	}
	if got := lowered.Code[0].ArgumentData >> 32; got != 8 {
		t.Fatalf("f32.load offset = %d, want 8", got)
	}
	if lowered.Code[1].Opcode != OpI64Store {
		t.Fatalf("f64.store lowered to %+v, want OpI64Store", lowered.Code[1])
	}
	if got := lowered.Code[1].ArgumentData >> 32; got != 16 {
		t.Fatalf("f64.store offset = %d, want 16", got)
	}
}

func TestLowerFunctionRejectsFloatOpWithoutHelper(t *testing.T) {
	fn := wasmbin.Function{
		TypeIdx: 0,
		Body: []wasmbin.Operator{
			{Op: wasmbin.Opcode(0x92), Raw: 0x92}, // f32.add
			{Op: wasmbin.OpEnd},
		},
	}
	_, err := LowerFunction(identityType(), fn, LowerOptions{})
	if err == nil {
		t.Fatal("expected an error lowering a float op with no configured helper")
	}
}

func TestLowerFunctionFloatOpUsesHelperWhenConfigured(t *testing.T) {
	fn := wasmbin.Function{
		TypeIdx: 0,
		Body: []wasmbin.Operator{
			{Op: wasmbin.Opcode(0x92), Raw: 0x92}, // f32.add
			{Op: wasmbin.OpEnd},
		},
	}
	opts := LowerOptions{
		HasFloatHelper:    true,
		FloatHelperModule: 5,
		FloatHelperFuncOf: map[byte]uint32{0x92: 11},
	}
	lowered, err := LowerFunction(identityType(), fn, opts)
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	found := false
	for _, instr := range lowered.Code {
		if instr.Opcode == OpInternalCrossModuleCall {
			found = true
			wantPacked := uint64(5)<<32 | uint64(11)
			if instr.ArgumentData != wantPacked {
				t.Fatalf("cross-module-call arg = %#x, want %#x", instr.ArgumentData, wantPacked)
			}
		}
	}
	if !found {
		t.Fatal("expected an OpInternalCrossModuleCall in the lowered float op")
	}
}

func TestLowerFunctionCallIndirectProvingDataHashesResolvedType(t *testing.T) {
	// Two types in the module's type section; call_indirect references
	// the second one (Idx: 1), so the proving digest must reflect that
	// signature, not a placeholder keyed off the index itself.
	types := []wasmbin.FunctionType{
		identityType()[0],
		{
			Params:  []wasmbin.ValType{wasmbin.ValI32, wasmbin.ValI64},
			Results: []wasmbin.ValType{},
		},
	}
	fn := wasmbin.Function{
		TypeIdx: 0,
		Body: []wasmbin.Operator{
			{Op: wasmbin.OpCallIndirect, Idx: 1, TableIdx: 0},
			{Op: wasmbin.OpEnd},
		},
	}
	lowered, err := LowerFunction(types, fn, LowerOptions{})
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	call := lowered.Code[0]
	if call.Opcode != OpCallIndirect {
		t.Fatalf("instruction 0 = %+v, want OpCallIndirect", call)
	}
	wantTy := functionTypeHash(types[1])
	wantProving := merkle.Keccak256([]byte("Call indirect:"), u64be(0), wantTy[:])
	if call.ProvingArgumentData != wantProving {
		t.Fatalf("proving data = %x, want %x (hash of resolved function type, not a placeholder)", call.ProvingArgumentData, wantProving)
	}
}

func TestLowerFunctionBrToLoopJumpsBackToLoopStart(t *testing.T) {
	fn := wasmbin.Function{
		TypeIdx: 0,
		Body: []wasmbin.Operator{
			{Op: wasmbin.OpLoop, Block: wasmbin.BlockType{Empty: true}},
			{Op: wasmbin.OpBr, Depth: 0},
			{Op: wasmbin.OpEnd},
			{Op: wasmbin.OpEnd},
		},
	}
	lowered, err := LowerFunction(identityType(), fn, LowerOptions{})
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	// br with depth 0 inside a loop jumps back to the loop's first
	// instruction (index 0, the br itself), not forward past the end.
	br := lowered.Code[0]
	if br.Opcode != OpInternalArbJump {
		t.Fatalf("instruction 0 = %+v, want OpInternalArbJump", br)
	}
	if br.ArgumentData != 0 {
		t.Fatalf("loop br target = %d, want 0", br.ArgumentData)
	}
}
