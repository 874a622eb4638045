// Package nstable implements the namespace table binary format spec.md §6
// defines: a byte-exact, append-only mapping from namespace ids to their
// byte ranges within a block payload, and the transaction table nested
// inside each namespace.
//
// Grounded on _examples/wyf-ACCEPT-eth2030/pkg/das/l2_data_validator.go's
// table-of-offsets scanning idiom (bounds-check each declared entry against
// the actual buffer length rather than trusting the declared count) and on
// _examples/original_source/arbitrator/prover/src/binary.rs's lazy,
// clamped iterator pattern for on-wire tables that may be truncated.
package nstable

import (
	"encoding/binary"
	"errors"
)

// NamespaceID is the table's in-memory identifier width. The on-wire field
// is only 4 bytes (SPEC_FULL.md §E / spec.md §9's open question "the
// on-wire namespace-id field is 4 bytes, but the internal NamespaceId is 64
// bits... implementations must truncate on write and zero-extend on read").
type NamespaceID uint64

// Entry is one namespace's identifier and its byte range within the
// payload, end-exclusive.
type Entry struct {
	ID    NamespaceID
	Start uint32
	End   uint32
}

var ErrTruncatedTable = errors.New("nstable: table header shorter than its declared count implies")

const (
	headerLen = 4
	entryLen  = 8
)

// NsIterator lazily walks a namespace table's declared entries, clamping
// each one to both the previous entry's end (so ranges are contiguous and
// non-overlapping) and the payload's actual length (so a table can declare
// more entries than the payload bytes available, per spec.md §8's seed
// test 8: "given a table declaring n=3 but containing room for only 2
// entries, iter().count() <= 2").
type NsIterator struct {
	payload []byte
	count   uint32
	seen    map[NamespaceID]bool
	offset  int
	prevEnd uint32
	idx     uint32
}

// NewIterator parses the table header (4-byte little-endian count) from
// the front of table and returns an iterator over its entries; table and
// payload are distinct byte slices -- table is the offset directory,
// payload is the data the offsets index into.
func NewIterator(table, payload []byte) (*NsIterator, error) {
	if len(table) < headerLen {
		return nil, ErrTruncatedTable
	}
	count := binary.LittleEndian.Uint32(table[:headerLen])
	return &NsIterator{
		payload: payload,
		count:   count,
		seen:    make(map[NamespaceID]bool),
		offset:  headerLen,
	}, nil
}

// Next returns the next namespace entry, or ok=false once the declared
// count is exhausted or the backing table runs out of bytes first --
// whichever comes first, silently, per the range-clamping seed test.
// Duplicate ids after the first occurrence are skipped (spec.md §6:
// "Duplicate ids after the first are ignored").
func (it *NsIterator) Next(table []byte) (entry Entry, ok bool) {
	for it.idx < it.count {
		if it.offset+entryLen > len(table) {
			return Entry{}, false
		}
		id := NamespaceID(binary.LittleEndian.Uint32(table[it.offset : it.offset+4]))
		declaredEnd := binary.LittleEndian.Uint32(table[it.offset+4 : it.offset+8])
		it.offset += entryLen
		it.idx++

		start := it.prevEnd
		end := declaredEnd
		if max := uint32(len(it.payload)); end > max {
			end = max
		}
		if end < start {
			end = start
		}
		it.prevEnd = end

		if it.seen[id] {
			continue
		}
		it.seen[id] = true
		return Entry{ID: id, Start: start, End: end}, true
	}
	return Entry{}, false
}

// Count returns the number of distinct entries the iterator yields, for
// callers that don't need to stream (tests, small tables).
func Count(table, payload []byte) (int, error) {
	it, err := NewIterator(table, payload)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		if _, ok := it.Next(table); !ok {
			break
		}
		n++
	}
	return n, nil
}

// Range returns the byte range of the index-th declared namespace (after
// dedup), matching the original's ns_range accessor.
func Range(table, payload []byte, index int) (Entry, bool, error) {
	it, err := NewIterator(table, payload)
	if err != nil {
		return Entry{}, false, err
	}
	i := 0
	for {
		e, ok := it.Next(table)
		if !ok {
			return Entry{}, false, nil
		}
		if i == index {
			return e, true, nil
		}
		i++
	}
}

// Encode serializes entries back to the on-wire table format: a 4-byte
// little-endian count followed by (4-byte id, 4-byte end-offset) pairs.
// The NamespaceID is truncated to its low 32 bits per the open-question
// decision above.
func Encode(entries []Entry) []byte {
	buf := make([]byte, headerLen+len(entries)*entryLen)
	binary.LittleEndian.PutUint32(buf[:headerLen], uint32(len(entries)))
	off := headerLen
	for _, e := range entries {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(e.ID))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], e.End)
		off += entryLen
	}
	return buf
}
