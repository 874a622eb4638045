package wavm

import "github.com/stepchain/wavm-prover/internal/wasmbin"

// StylusData is the per-program cost-estimate record computed once at
// activation and stored alongside the compiled program, per spec.md §4.1
// ("Stylus data / cost estimate"). The three linear coefficients let the
// caller price (a) the one-time cost of activating a never-before-seen
// program, (b) the cheaper cost of re-activating a program whose compiled
// form is already cached, and (c) a rough per-call execution-footprint
// estimate used for gas pre-charging before metering takes over.
type StylusData struct {
	// ModuleHash is the keccak-256 hash of the module used for Merkle
	// commitment and cache keys (spec.md §3.3's module hash shape).
	ModuleHash [32]byte

	// FootprintPages is the program's declared initial memory size.
	FootprintPages uint32

	// AsmEstimateBytes is the approximate size of the compiled native
	// representation, as computed by AsmEstimate.
	AsmEstimateBytes uint32
}

// ActivationCostParams are the per-chain-configured linear coefficients
// for the three cost functions named above. Each is "base + perUnit *
// units" with unit defined per function.
type ActivationCostParams struct {
	InitCostBase       uint64
	InitCostPerByte    uint64
	CachedInitCostBase    uint64
	CachedInitCostPerByte uint64
	AsmEstimatePerByte    uint64
}

// InitCost estimates the ink cost of compiling and instrumenting a
// not-previously-seen program, linear in its binary size.
func InitCost(p ActivationCostParams, wasmLen int) uint64 {
	return p.InitCostBase + p.InitCostPerByte*uint64(wasmLen)
}

// CachedInitCost estimates the (cheaper) cost of re-activating a program
// whose compiled form is already resident in the machine's program cache.
func CachedInitCost(p ActivationCostParams, wasmLen int) uint64 {
	return p.CachedInitCostBase + p.CachedInitCostPerByte*uint64(wasmLen)
}

// AsmEstimate approximates the size of the module's native/interpreted
// representation, used to pre-charge a rough per-call footprint cost.
func AsmEstimate(p ActivationCostParams, m *wasmbin.Module) uint32 {
	var n uint64
	for _, fn := range m.Functions {
		n += uint64(len(fn.Body))
	}
	return uint32(p.AsmEstimatePerByte * n)
}

// BuildStylusData computes the full cost-estimate record for a module
// after instrumentation, given its keccak module hash (computed by
// internal/machine once the module's runtime shape is known).
func BuildStylusData(m *wasmbin.Module, moduleHash [32]byte, p ActivationCostParams) StylusData {
	var footprint uint32
	if len(m.Memories) > 0 {
		footprint = m.Memories[0].Limits.Min
	}
	return StylusData{
		ModuleHash:       moduleHash,
		FootprintPages:   footprint,
		AsmEstimateBytes: AsmEstimate(p, m),
	}
}
