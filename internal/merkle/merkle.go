// Package merkle provides the binary Merkle tree and stack-hash helpers
// shared by the proving machine (spec.md §3.3-§3.5) and the step-proof
// serializer (spec.md §4.2). Leaf and node hashing is keccak-256, consumed
// as a pure function per spec.md §1's non-goals; this package never
// implements the hash itself, only the tree/proof shape around it.
//
// Grounded on _examples/vybium-vybium-starks-vm/internal/vybium-starks-vm/core/merkle.go
// (binary Merkle tree over a power-of-two leaf count with sibling-path
// proofs) and the teacher's own use of golang.org/x/crypto/sha3 for keccak
// in pkg/core/vm/ewasm_jit.go.
package merkle

import "golang.org/x/crypto/sha3"

// Keccak256 hashes the concatenation of data, per spec.md's use of keccak
// throughout (Merkle leaves, stack hashing, machine hashing).
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// Tree is a binary Merkle tree of fixed depth over 32-byte leaves, as used
// for a module's code, a module's tables, and the collection of modules.
// Depth is fixed at construction so that intermediate "virtual" zero
// subtrees never need to be materialized.
type Tree struct {
	depth  int
	leaves [][32]byte
	// levels[0] == leaves (padded to 2^depth with zero leaves' hash);
	// levels[depth] has a single element, the root.
	levels [][][32]byte
}

// zeroHashes[i] is the hash of an all-zero subtree of height i.
var zeroHashes = computeZeroHashes(32)

func computeZeroHashes(n int) [][32]byte {
	out := make([][32]byte, n)
	out[0] = [32]byte{}
	for i := 1; i < n; i++ {
		out[i] = Keccak256(out[i-1][:], out[i-1][:])
	}
	return out
}

// NewTree builds a Merkle tree of the given depth (2^depth leaf capacity)
// over leaves, zero-padding any remainder.
func NewTree(depth int, leaves [][32]byte) *Tree {
	t := &Tree{depth: depth}
	capacity := 1 << uint(depth)
	padded := make([][32]byte, capacity)
	copy(padded, leaves)
	for i := len(leaves); i < capacity; i++ {
		padded[i] = zeroHashes[0]
	}
	t.leaves = padded
	t.levels = make([][][32]byte, depth+1)
	t.levels[0] = padded
	for lvl := 1; lvl <= depth; lvl++ {
		prev := t.levels[lvl-1]
		cur := make([][32]byte, len(prev)/2)
		for i := range cur {
			cur[i] = Keccak256(prev[2*i][:], prev[2*i+1][:])
		}
		t.levels[lvl] = cur
	}
	return t
}

// Root returns the tree's root hash.
func (t *Tree) Root() [32]byte {
	if len(t.levels[t.depth]) == 0 {
		return zeroHashes[t.depth]
	}
	return t.levels[t.depth][0]
}

// Proof returns the sibling hashes from leaf i up to (excluding) the root,
// ordered leaf-to-root, per spec.md §6's "Merkle proofs are concatenated
// sibling hashes, ordered leaf-to-root".
func (t *Tree) Proof(i int) [][32]byte {
	proof := make([][32]byte, 0, t.depth)
	idx := i
	for lvl := 0; lvl < t.depth; lvl++ {
		sibling := idx ^ 1
		proof = append(proof, t.levels[lvl][sibling])
		idx /= 2
	}
	return proof
}

// Leaf returns leaf i's value.
func (t *Tree) Leaf(i int) [32]byte { return t.leaves[i] }

// VerifyProof recomputes the root from a leaf, its index, and a sibling
// proof, for use by tests and by the on-chain-equivalent verifier logic
// exercised in internal/machine's proof round-trip tests.
func VerifyProof(leaf [32]byte, index int, proof [][32]byte) [32]byte {
	cur := leaf
	idx := index
	for _, sib := range proof {
		if idx%2 == 0 {
			cur = Keccak256(cur[:], sib[:])
		} else {
			cur = Keccak256(sib[:], cur[:])
		}
		idx /= 2
	}
	return cur
}

// StackHash computes the inductive stack hash defined in spec.md §3.5:
// empty -> all zero; push(s, v) -> keccak(prefix || h(v) || h(s)). Entries
// must already be given top-first (entries[0] is the top of stack) so the
// fold proceeds from the bottom up.
func StackHash(prefix string, entryHashes [][32]byte) [32]byte {
	acc := [32]byte{}
	for i := len(entryHashes) - 1; i >= 0; i-- {
		acc = Keccak256([]byte(prefix), entryHashes[i][:], acc[:])
	}
	return acc
}
