package evmapi

import "github.com/ethereum/go-ethereum/common"

// EvmData is the read-only snapshot of transaction and block context a
// Stylus program's hostio surface reads from (spec.md §4.4's
// block_*/msg_*/tx_* hostio rows). It is built once by the host when a
// child program is launched and never mutated by the guest.
//
// Grounded on _examples/original_source/arbitrator/langapi/src/evm_api.rs's
// EvmData shape, translated into the teacher's plain-struct idiom (no
// interior mutability, no options where the original used sentinels).
type EvmData struct {
	BlockBaseFee   [32]byte
	BlockCoinbase  common.Address
	BlockGasLimit  uint64
	BlockNumber    uint64
	BlockTimestamp uint64
	ChainID        uint64
	ContractAddr   common.Address
	ModuleHash     [32]byte
	MsgSender      common.Address
	MsgValue       [32]byte
	TxGasPrice     [32]byte
	TxOrigin       common.Address
	Reentrant      uint32
	CachedGas      uint64
}
