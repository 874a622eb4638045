package machine

import "github.com/stepchain/wavm-prover/internal/merkle"

// MemoryLeafBytes is the number of raw bytes per Merkle leaf; merkleDepth
// leaves of this size cover the full 4GiB WASM address space, per spec.md
// §3.3.
const (
	MemoryLeafBytes = 32
	merkleDepth     = 28 // 2^28 leaves * 32 bytes/leaf = 8GiB of addressable leaf space, covering WASM's 4GiB ceiling with headroom
	WasmPageBytes   = 65536
)

// Memory is a WAVM instance's linear memory: raw bytes plus a lazily
// rebuilt Merkle tree over 32-byte leaves. Stores record the leaves they
// touch in a dirty set, but that set is not used for rehashing: any store
// drops the cached tree, and the next Root or LeafProof rebuilds it from
// every leaf.
type Memory struct {
	Bytes      []byte
	MaxPages   uint32
	dirty      map[int]bool
	cachedTree *merkle.Tree
}

// NewMemory allocates a memory of the given initial page count.
func NewMemory(initialPages, maxPages uint32) *Memory {
	return &Memory{
		Bytes:    make([]byte, int(initialPages)*WasmPageBytes),
		MaxPages: maxPages,
		dirty:    map[int]bool{},
	}
}

func (m *Memory) Pages() uint32 { return uint32(len(m.Bytes) / WasmPageBytes) }

// Grow implements memory.grow's semantics: on success returns the previous
// page count; on failure (would exceed MaxPages or the hard protocol
// ceiling) returns ^uint32(0) without mutating state, matching WASM's -1
// sentinel.
func (m *Memory) Grow(delta uint32) (prev uint32, ok bool) {
	prev = m.Pages()
	next := prev + delta
	if next < prev || next > m.MaxPages || next > (1<<merkleDepth)*MemoryLeafBytes/WasmPageBytes {
		return ^uint32(0), false
	}
	m.Bytes = append(m.Bytes, make([]byte, int(delta)*WasmPageBytes)...)
	m.cachedTree = nil
	return prev, true
}

func (m *Memory) leafIndex(addr uint32) int { return int(addr) / MemoryLeafBytes }

// Load reads n bytes at addr; ok is false on an out-of-bounds access,
// which the interpreter turns into an Errored machine state (spec.md
// §4.1's "memory ops: bounds violation -> Errored").
func (m *Memory) Load(addr uint32, n int) (out []byte, ok bool) {
	if uint64(addr)+uint64(n) > uint64(len(m.Bytes)) {
		return nil, false
	}
	return m.Bytes[addr : addr+uint32(n)], true
}

func (m *Memory) Store(addr uint32, data []byte) bool {
	if uint64(addr)+uint64(len(data)) > uint64(len(m.Bytes)) {
		return false
	}
	copy(m.Bytes[addr:], data)
	start := m.leafIndex(addr)
	end := m.leafIndex(addr + uint32(len(data)) - 1)
	for i := start; i <= end; i++ {
		if m.dirty == nil {
			m.dirty = map[int]bool{}
		}
		m.dirty[i] = true
	}
	m.cachedTree = nil
	return true
}

// merkleLeaves recomputes (or reuses) the full leaf slice, zero-padded
// from the backing store's length up to the leaf count implied by current
// size. Every rebuild (for Root and LeafProof alike) touches every leaf
// once; the dirty set is cleared but not consulted.
func (m *Memory) merkleLeaves() [][32]byte {
	n := (len(m.Bytes) + MemoryLeafBytes - 1) / MemoryLeafBytes
	leaves := make([][32]byte, n)
	for i := 0; i < n; i++ {
		start := i * MemoryLeafBytes
		end := start + MemoryLeafBytes
		if end > len(m.Bytes) {
			end = len(m.Bytes)
		}
		var leaf [32]byte
		copy(leaf[:], m.Bytes[start:end])
		leaves[i] = leaf
	}
	return leaves
}

func (m *Memory) tree() *merkle.Tree {
	if m.cachedTree == nil {
		m.cachedTree = merkle.NewTree(merkleDepth, m.merkleLeaves())
		m.dirty = map[int]bool{}
	}
	return m.cachedTree
}

// Root returns keccak("Memory:" || size_be || max_size_be || merkle_root),
// per spec.md §3.3.
func (m *Memory) Root() [32]byte {
	root := m.tree().Root()
	var sizeBuf, maxBuf [8]byte
	putU64(sizeBuf[:], uint64(len(m.Bytes)))
	putU64(maxBuf[:], uint64(m.MaxPages)*WasmPageBytes)
	return merkle.Keccak256([]byte("Memory:"), sizeBuf[:], maxBuf[:], root[:])
}

// LeafProof returns the Merkle proof for the leaf containing addr, for
// use by the step-proof serializer.
func (m *Memory) LeafProof(addr uint32) (leaf [32]byte, proof [][32]byte) {
	t := m.tree()
	idx := m.leafIndex(addr)
	return t.Leaf(idx), t.Proof(idx)
}
