package stylus

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// StorageWord is one cached storage slot: its current value and whether
// it has been written since the cache was last flushed to the EVM trie
// (spec.md §4.4's storage cache, modeled on EIP-2929/3529 warm/cold and
// dirty-slot accounting).
type StorageWord struct {
	Value [32]byte
	Dirty bool
	// Known marks whether Value reflects the actual trie value (loaded or
	// previously flushed) as opposed to a placeholder never read back.
	Known bool
}

// StorageCache batches storage_cache_bytes32 writes so storage_flush_cache
// charges only once per dirty slot instead of once per write, matching
// the real hostio's amortized pricing.
type StorageCache struct {
	slots map[common.Hash]*StorageWord
}

func NewStorageCache() *StorageCache {
	return &StorageCache{slots: map[common.Hash]*StorageWord{}}
}

// Cache records a pending write without touching the trie.
func (c *StorageCache) Cache(key common.Hash, value [32]byte) {
	c.slots[key] = &StorageWord{Value: value, Dirty: true, Known: true}
}

// Load returns a cached value if present; callers fall back to a
// storage_load_bytes32 host request on a cache miss and should populate
// the cache with the result via Observe.
func (c *StorageCache) Load(key common.Hash) (StorageWord, bool) {
	w, ok := c.slots[key]
	if !ok {
		return StorageWord{}, false
	}
	return *w, true
}

// Observe records a value read from the trie (not yet dirty).
func (c *StorageCache) Observe(key common.Hash, value [32]byte) {
	if _, ok := c.slots[key]; ok {
		return
	}
	c.slots[key] = &StorageWord{Value: value, Known: true}
}

// DirtySlots returns every slot written since the last flush, for
// SetTrieSlots, and the slice is stable-ordered by key for determinism.
type DirtySlot struct {
	Key   common.Hash
	Value [32]byte
}

func (c *StorageCache) DirtySlots() []DirtySlot {
	var out []DirtySlot
	for k, w := range c.slots {
		if w.Dirty {
			out = append(out, DirtySlot{Key: k, Value: w.Value})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Key[:], out[j].Key[:]) < 0
	})
	return out
}

// Flush clears the dirty flag on every slot after the caller has
// committed DirtySlots to the trie via an evmapi.ReqSetTrieSlots request.
func (c *StorageCache) Flush() {
	for _, w := range c.slots {
		w.Dirty = false
	}
}

// FlushCost prices a flush at a fixed per-dirty-slot rate, since each
// dirty slot becomes its own SSTORE-equivalent trie write.
func (c *StorageCache) FlushCost(perSlot uint64) uint64 {
	return uint64(len(c.DirtySlots())) * perSlot
}
