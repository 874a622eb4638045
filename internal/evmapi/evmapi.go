// Package evmapi defines the request/response envelope the Stylus hostio
// layer (internal/stylus) uses to ask its EVM host to perform an action
// that only the host can: storage access, calls into other contracts,
// account/context reads, and logging. Grounded on
// _examples/original_source/arbitrator/langapi/src/evm_api.rs for the
// request shape, and on the teacher's own EVM-adjacent precompile request
// types in pkg/core/vm for the Go idiom of a closed request-kind enum
// plus a plain data struct rather than an interface per request type.
package evmapi

import "github.com/ethereum/go-ethereum/common"

// ReqType enumerates every action a Stylus program can ask its EVM host
// to perform, per spec.md §4.4.
type ReqType byte

const (
	ReqGetBytes32 ReqType = iota
	ReqSetTrieSlots
	ReqGetTransientBytes32
	ReqSetTransientBytes32
	ReqContractCall
	ReqDelegateCall
	ReqStaticCall
	ReqCreate1
	ReqCreate2
	ReqEmitLog
	ReqAccountBalance
	ReqAccountCode
	ReqAccountCodeHash
	ReqAddPages
	ReqCaptureHostIO
)

// Request is one outgoing EVM-API call. ReqData is request-kind specific
// (e.g. for ReqContractCall: target address, calldata, value, gas).
type Request struct {
	Type    ReqType
	ReqData []byte
	// Address/Value/Gas are broken out for the common call-family
	// requests so callers do not need to re-parse ReqData for them.
	Address common.Address
	Value   [32]byte
	Gas     uint64
}

// Response is the host's reply: a result payload, any raw return data
// (e.g. a call's return bytes), and the gas the host actually consumed,
// which the caller charges back against the program's ink budget via the
// configured ink price (spec.md §4.4's ink<->gas conversion).
type Response struct {
	Result  []byte
	RawData []byte
	CostGas uint64
}

// Handler performs one EVM-API request. internal/jit and internal/machine
// each provide an implementation backed by their own execution context;
// tests use a fake recording every call made against it.
type Handler interface {
	Do(req Request) Response
}
