package stylus

import "github.com/stepchain/wavm-prover/internal/merkle"

// NativeKeccak256 hashes input, priced per word via spec.md §4.4's
// "keccak-cost(len)". It reuses internal/merkle's Keccak256 rather than
// calling golang.org/x/crypto/sha3 a second time, since the prover and the
// Stylus hostio surface must agree bit-for-bit on the same hash function.
func (e *Env) NativeKeccak256(input []byte) ([32]byte, error) {
	words := (len(input) + 31) / 32
	if err := e.charge("native_keccak256", uint64(words)*KeccakWordInk); err != nil {
		return [32]byte{}, err
	}
	return merkle.Keccak256(input), nil
}
