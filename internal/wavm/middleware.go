package wavm

import (
	"fmt"

	"github.com/stepchain/wavm-prover/internal/wasmbin"
)

// Middleware is one instrumentation pass over a user program, applied in a
// fixed order before activation (spec.md §4.1 "Middleware"). Each pass may
// add module-level globals via the shared wasmbin.ModuleMod and rewrite a
// function's operator stream; neither capability is exposed as a trait
// object, matching the teacher's own ewasm_optimizer.go pass structure.
type Middleware int

const (
	MiddlewareStartMover Middleware = iota
	MiddlewareInkMeter
	MiddlewareDynamicInkMeter
	MiddlewareDepthChecker
	MiddlewareHeapBound
	MiddlewareOpCounter
)

// DefaultPipeline is the fixed instrumentation order for a Stylus user
// program, per spec.md §4.1: start-mover, then ink meter, dynamic ink
// meter, depth checker, heap bound; opcode counter only runs when asked
// for (it is a debugging/cost-modeling aid, not part of on-chain proving).
func DefaultPipeline(withOpCounter bool) []Middleware {
	p := []Middleware{MiddlewareStartMover, MiddlewareInkMeter, MiddlewareDynamicInkMeter, MiddlewareDepthChecker, MiddlewareHeapBound}
	if withOpCounter {
		p = append(p, MiddlewareOpCounter)
	}
	return p
}

// InstrumentConfig carries the per-pass parameters each middleware needs.
type InstrumentConfig struct {
	HeapBoundPages   uint32
	MaxDepth         uint32
	StartExportName  string
	InkPricesByOp    map[byte]uint64
	DynamicInkCostFn map[byte]uint64 // per-opcode dynamic surcharge selector (e.g. memory.grow priced per page)
}

// Instrument runs the given pipeline over m, mutating it in place.
func Instrument(m *wasmbin.Module, pipeline []Middleware, cfg InstrumentConfig) error {
	mm := wasmbin.NewModuleMod(m)
	for _, pass := range pipeline {
		var err error
		switch pass {
		case MiddlewareStartMover:
			err = applyStartMover(mm, cfg)
		case MiddlewareInkMeter:
			err = applyInkMeter(mm, cfg)
		case MiddlewareDynamicInkMeter:
			err = applyDynamicInkMeter(mm, cfg)
		case MiddlewareDepthChecker:
			err = applyDepthChecker(mm, cfg)
		case MiddlewareHeapBound:
			err = applyHeapBound(mm, cfg)
		case MiddlewareOpCounter:
			err = applyOpCounter(mm, cfg)
		default:
			err = fmt.Errorf("wavm: unknown middleware pass %d", pass)
		}
		if err != nil {
			return fmt.Errorf("wavm: middleware pass %d: %w", pass, err)
		}
	}
	return nil
}
