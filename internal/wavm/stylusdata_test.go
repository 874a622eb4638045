package wavm

import (
	"testing"

	"github.com/stepchain/wavm-prover/internal/wasmbin"
)

func TestInitCostIsLinearInLength(t *testing.T) {
	p := ActivationCostParams{InitCostBase: 100, InitCostPerByte: 3}
	if got := InitCost(p, 0); got != 100 {
		t.Fatalf("InitCost(0) = %d, want 100", got)
	}
	if got := InitCost(p, 10); got != 130 {
		t.Fatalf("InitCost(10) = %d, want 130", got)
	}
}

func TestCachedInitCostIsCheaperThanInitCost(t *testing.T) {
	p := ActivationCostParams{
		InitCostBase: 1000, InitCostPerByte: 5,
		CachedInitCostBase: 100, CachedInitCostPerByte: 1,
	}
	if got, fresh := CachedInitCost(p, 200), InitCost(p, 200); got >= fresh {
		t.Fatalf("cached cost %d should be less than fresh cost %d", got, fresh)
	}
}

func TestAsmEstimateSumsFunctionBodyLengths(t *testing.T) {
	p := ActivationCostParams{AsmEstimatePerByte: 2}
	m := &wasmbin.Module{
		Functions: []wasmbin.Function{
			{Body: make([]wasmbin.Operator, 3)},
			{Body: make([]wasmbin.Operator, 5)},
		},
	}
	if got := AsmEstimate(p, m); got != 16 {
		t.Fatalf("AsmEstimate = %d, want 16", got)
	}
}

func TestBuildStylusDataUsesFirstMemory(t *testing.T) {
	m := &wasmbin.Module{
		Memories: []wasmbin.Memory{{Limits: wasmbin.Limits{Min: 7}}},
	}
	hash := [32]byte{1, 2, 3}
	data := BuildStylusData(m, hash, ActivationCostParams{})
	if data.ModuleHash != hash {
		t.Fatalf("ModuleHash = %x, want %x", data.ModuleHash, hash)
	}
	if data.FootprintPages != 7 {
		t.Fatalf("FootprintPages = %d, want 7", data.FootprintPages)
	}
}

func TestBuildStylusDataNoMemoryIsZeroFootprint(t *testing.T) {
	m := &wasmbin.Module{}
	data := BuildStylusData(m, [32]byte{}, ActivationCostParams{})
	if data.FootprintPages != 0 {
		t.Fatalf("FootprintPages = %d, want 0", data.FootprintPages)
	}
}
