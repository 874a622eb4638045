package nstable

import (
	"encoding/binary"
	"testing"
)

func buildTable(entries []Entry) []byte {
	return Encode(entries)
}

func TestRangeClampingWhenTableDeclaresMoreThanItHolds(t *testing.T) {
	// Declare n=3 but only provide room for 2 entries.
	table := make([]byte, headerLen+2*entryLen)
	binary.LittleEndian.PutUint32(table[:headerLen], 3)
	binary.LittleEndian.PutUint32(table[headerLen:headerLen+4], 1)
	binary.LittleEndian.PutUint32(table[headerLen+4:headerLen+8], 10)
	binary.LittleEndian.PutUint32(table[headerLen+8:headerLen+12], 2)
	binary.LittleEndian.PutUint32(table[headerLen+12:headerLen+16], 20)
	payload := make([]byte, 100)

	n, err := Count(table, payload)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n > 2 {
		t.Fatalf("count = %d, want <= 2", n)
	}
}

func TestRangeEndClampsToPayloadLength(t *testing.T) {
	table := buildTable([]Entry{{ID: 0, End: 1000}})
	payload := make([]byte, 50)

	e, ok, err := Range(table, payload, 0)
	if err != nil || !ok {
		t.Fatalf("Range: ok=%v err=%v", ok, err)
	}
	if e.End != 50 {
		t.Fatalf("End = %d, want 50 (payload length)", e.End)
	}
}

func TestDuplicateIdsAfterFirstAreIgnored(t *testing.T) {
	table := buildTable([]Entry{
		{ID: 7, End: 10},
		{ID: 7, End: 20},
		{ID: 8, End: 30},
	})
	payload := make([]byte, 100)

	it, err := NewIterator(table, payload)
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	var ids []NamespaceID
	for {
		e, ok := it.Next(table)
		if !ok {
			break
		}
		ids = append(ids, e.ID)
	}
	if len(ids) != 2 || ids[0] != 7 || ids[1] != 8 {
		t.Fatalf("ids = %v, want [7 8]", ids)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	entries := []Entry{{ID: 1, End: 5}, {ID: 2, End: 9}}
	payload := make([]byte, 9)
	table := Encode(entries)

	it, err := NewIterator(table, payload)
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	e0, ok := it.Next(table)
	if !ok || e0.ID != 1 || e0.Start != 0 || e0.End != 5 {
		t.Fatalf("first entry = %+v", e0)
	}
	e1, ok := it.Next(table)
	if !ok || e1.ID != 2 || e1.Start != 5 || e1.End != 9 {
		t.Fatalf("second entry = %+v", e1)
	}
}

func TestTruncatedHeaderErrors(t *testing.T) {
	if _, err := NewIterator([]byte{1, 2}, nil); err != ErrTruncatedTable {
		t.Fatalf("err = %v, want ErrTruncatedTable", err)
	}
}
