// Package stylus implements the Stylus hostio surface: the set of WASM
// imports a user (Stylus) program links against to reach the EVM -
// storage access, calls, crypto, math, logging, and context reads -
// each priced in "ink", a finer-grained unit than EVM gas (spec.md §4.4).
//
// Grounded on _examples/original_source/arbitrator/stylus/src/native.rs
// and arbitrator/langapi/src/evm_api.rs for the hostio names, signatures,
// and costs, translated into the teacher's style: a closed cost table
// plus a plain Env struct, no runtime reflection or dynamic dispatch.
package stylus

import "errors"

var (
	// ErrOutOfInk is returned by any hostio once the program's ink budget
	// is exhausted. It is a distinct value from scheduler.ErrOutOfInk, the
	// sentinel the scheduler maps to OutcomeOutOfInk.
	ErrOutOfInk = errors.New("stylus: out of ink")
)

// InkPrice converts between ink (the WASM-level metering unit) and EVM
// gas, per spec.md §4.4: ink = gas * InkPerGas, a per-transaction
// constant fixed by the chain's pricing config.
type InkPrice struct {
	InkPerGas uint64
}

func (p InkPrice) GasToInk(gas uint64) uint64 { return gas * p.InkPerGas }
func (p InkPrice) InkToGas(ink uint64) uint64 {
	if p.InkPerGas == 0 {
		return 0
	}
	return ink / p.InkPerGas
}

// InkTracker holds a program's remaining ink budget and is shared by
// every hostio call a program makes during one activation.
type InkTracker struct {
	Left uint64
}

// Charge deducts cost from the tracker, returning ErrOutOfInk (and
// leaving Left at 0, never underflowing) if cost exceeds what remains.
func (t *InkTracker) Charge(cost uint64) error {
	if cost > t.Left {
		t.Left = 0
		return ErrOutOfInk
	}
	t.Left -= cost
	return nil
}

// HostioCost is the fixed ink price of one hostio call, per spec.md
// §4.4's cost table. Calls whose cost depends on the data moved (e.g.
// emit_log, call's calldata) additionally charge a per-byte surcharge
// applied by the hostio itself on top of this base cost.
var HostioCost = map[string]uint64{
	"read_args":              8,
	"write_result":           8,
	"storage_load_bytes32":   2100,
	"storage_cache_bytes32":  0, // deferred cost realized at storage_flush_cache
	"storage_flush_cache":    0, // per-slot cost computed from dirty count at flush time
	"transient_load_bytes32": 100,
	"transient_store_bytes32": 100,
	"call_contract":          2600,
	"delegate_call_contract": 2600,
	"static_call_contract":   2600,
	"create1":                32000,
	"create2":                32000,
	"read_return_data":       3,
	"return_data_size":       3,
	"emit_log":               375,
	"account_balance":        2600,
	"account_codehash":       2600,
	"account_code":           2600,
	"account_code_size":      2600,
	"block_basefee":          2,
	"block_coinbase":         2,
	"block_gas_limit":        2,
	"block_number":           2,
	"block_timestamp":        2,
	"chainid":                2,
	"contract_address":       2,
	"msg_reentrant":          2,
	"msg_sender":             2,
	"msg_value":              2,
	"tx_gas_price":           2,
	"tx_ink_price":           2,
	"tx_origin":              2,
	"evm_gas_left":           2,
	"evm_ink_left":           2,
	"pay_for_memory_grow":    0, // PayForMemoryGrow adds host-reported gas when pages > 0
	"native_keccak256":       120,
	"math_div":               10,
	"math_mod":               10,
	"math_pow":               20,
	"math_add_mod":           20,
	"math_mul_mod":           20,
	"console_log_text":       0, // debug-only, zero cost when enabled
	"null_host":              0,
	"start_benchmark":        0,
	"end_benchmark":          0,
}
