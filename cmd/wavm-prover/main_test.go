package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunCompressDecompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	compressed := filepath.Join(dir, "out.zst")
	decompressed := filepath.Join(dir, "roundtrip.txt")

	want := []byte("the quick brown fox jumps over the lazy dog")
	if err := os.WriteFile(in, want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if code := run([]string{"wavm-prover", "compress", in, compressed}); code != 0 {
		t.Fatalf("compress exit code = %d, want 0", code)
	}
	if code := run([]string{"wavm-prover", "decompress", compressed, decompressed}); code != 0 {
		t.Fatalf("decompress exit code = %d, want 0", code)
	}

	got, err := os.ReadFile(decompressed)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("roundtrip = %q, want %q", got, want)
	}
}

func TestRunCompressMissingArgsReturnsNonZero(t *testing.T) {
	if code := run([]string{"wavm-prover", "compress"}); code == 0 {
		t.Fatal("expected non-zero exit for missing arguments")
	}
}

func TestRunActivateMissingFileReturnsNonZero(t *testing.T) {
	if code := run([]string{"wavm-prover", "activate", "/no/such/file.wasm"}); code == 0 {
		t.Fatal("expected non-zero exit for a missing wasm file")
	}
}

func TestRunPreimageRejectsMalformedHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preimages.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if code := run([]string{"wavm-prover", "preimage", path, "not-hex"}); code == 0 {
		t.Fatal("expected non-zero exit for a malformed hash argument")
	}
}

func TestRunNstableListsRanges(t *testing.T) {
	dir := t.TempDir()
	tablePath := filepath.Join(dir, "table.bin")
	payloadPath := filepath.Join(dir, "payload.bin")

	// One namespace covering the whole 8-byte payload: count=1, id=1, end=8.
	table := []byte{1, 0, 0, 0, 1, 0, 0, 0, 8, 0, 0, 0}
	if err := os.WriteFile(tablePath, table, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(payloadPath, make([]byte, 8), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if code := run([]string{"wavm-prover", "nstable", tablePath, payloadPath}); code != 0 {
		t.Fatalf("nstable exit code = %d, want 0", code)
	}
}
