package machine

import "github.com/stepchain/wavm-prover/internal/merkle"

// GlobalState is the chain-context record threaded through every step,
// per spec.md §3.2: two 32-byte hashes (the last processed block hash and
// last send root) and two 64-bit counters (the current inbox message
// position and the byte offset already consumed within that message).
type GlobalState struct {
	Bytes32Vals [2][32]byte // [0] = last block hash, [1] = last send root
	U64Vals     [2]uint64   // [0] = inbox position, [1] = position within message
}

// Hash implements spec.md §3.2's packed-field hash: keccak of the two
// bytes32 values followed by the two u64 values, each big-endian.
func (g GlobalState) Hash() [32]byte {
	var u [16]byte
	putU64(u[0:8], g.U64Vals[0])
	putU64(u[8:16], g.U64Vals[1])
	return merkle.Keccak256([]byte("Global state:"), g.Bytes32Vals[0][:], g.Bytes32Vals[1][:], u[:])
}

func (g GlobalState) InboxPosition() uint64          { return g.U64Vals[0] }
func (g GlobalState) PositionWithinMessage() uint64  { return g.U64Vals[1] }
func (g GlobalState) LastBlockHash() [32]byte        { return g.Bytes32Vals[0] }
func (g GlobalState) LastSendRoot() [32]byte         { return g.Bytes32Vals[1] }
