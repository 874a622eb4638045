package preimage

import (
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestIdentityKeccakPreimage(t *testing.T) {
	s := NewStore()
	key, err := s.Put(TypeKeccak256, nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := s.Get(key.Hash)
	if !ok {
		t.Fatal("expected the empty-string preimage to be retrievable")
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty payload", got)
	}
	// spec.md §8 seed test 1: native_keccak256 of the empty string.
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got := hex.EncodeToString(key.Hash[:]); got != want {
		t.Fatalf("keccak256(\"\") = %s, want %s", got, want)
	}
}

func TestLoadFileParsesMultipleRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preimages.bin")

	var buf []byte
	for _, payload := range [][]byte{[]byte("alpha"), []byte("beta"), {}} {
		buf = append(buf, byte(TypeKeccak256))
		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, payload...)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	alphaKey, _ := NewStore().Put(TypeKeccak256, []byte("alpha"))
	if _, ok := store.Get(alphaKey.Hash); !ok {
		t.Fatal("expected 'alpha' record to be loaded")
	}
}

func TestLoadFileRejectsTruncatedRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	if err := os.WriteFile(path, []byte{0, 0, 0, 0, 0, 0, 0, 0, 5, 'a'}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadFile(path); err != ErrTruncatedRecord {
		t.Fatalf("err = %v, want ErrTruncatedRecord", err)
	}
}

func TestInboxStoreDistinguishesFeeds(t *testing.T) {
	s := NewInboxStore()
	s.Put(InboxSequencer, 0, []byte("seq-0"))
	s.Put(InboxDelayed, 0, []byte("delayed-0"))

	seq, ok := s.Get(0)
	if !ok || string(seq) != "seq-0" {
		t.Fatalf("sequencer message = %q, ok=%v", seq, ok)
	}
	delayed, ok := s.Delayed(0)
	if !ok || string(delayed) != "delayed-0" {
		t.Fatalf("delayed message = %q, ok=%v", delayed, ok)
	}
	if _, ok := s.Get(1); ok {
		t.Fatal("expected position 1 to be absent")
	}
}

func TestInboxExhaustionIsAbsentNotError(t *testing.T) {
	s := NewInboxStore()
	s.Put(InboxSequencer, 0, []byte("only message"))
	if _, ok := s.Get(0); !ok {
		t.Fatal("expected position 0 present")
	}
	if _, ok := s.Get(1); ok {
		t.Fatal("expected position 1 absent, driving the prover to TooFar")
	}
}
