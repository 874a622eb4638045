// Package arbcompress adapts the guest-facing `arbcompress` import (spec.md
// §6's host/guest boundary: "wavmio, arbcompress, programs, console, debug,
// hooks, wasi_snapshot_preview1") to a real compression library rather than
// a hand-rolled codec, per spec.md's "Deliberately out of scope... Brotli
// compression (used as-is from a library)". Its callers are the CLI's
// compress/decompress commands; internal/preimage reads its records as
// stored and does not decompress them.
//
// The retrieval pack carries no Go Brotli binding, so this package stands
// in with github.com/klauspost/compress/zstd behind the same
// Compress/Decompress signature a Brotli wrapper would expose -- a
// documented substitution, not an invented dependency (see DESIGN.md).
package arbcompress

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Level selects a compression/speed tradeoff, mirroring the handful of
// named levels the original Brotli binding exposes (LEVEL_FAST .. LEVEL_WELL).
type Level int

const (
	LevelFast Level = iota
	LevelDefault
	LevelBest
)

func (l Level) encoderLevel() zstd.EncoderLevel {
	switch l {
	case LevelFast:
		return zstd.SpeedFastest
	case LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

var decoderPool = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil)
		if err != nil {
			panic(err)
		}
		return d
	},
}

// Compress returns the compressed form of data at the given level.
func Compress(data []byte, level Level) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(level.encoderLevel()))
	if err != nil {
		return nil, fmt.Errorf("arbcompress: new encoder: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("arbcompress: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("arbcompress: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. dictionarySize is the maximum number of
// decompressed bytes the caller is willing to allocate, matching the
// Brotli binding's "caller preallocates, decoder rejects overflow"
// contract rather than zstd's normal streaming interface.
func Decompress(data []byte, dictionarySize int) ([]byte, error) {
	d := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(d)

	out, err := d.DecodeAll(data, make([]byte, 0, min(dictionarySize, 1<<20)))
	if err != nil {
		return nil, fmt.Errorf("arbcompress: decode: %w", err)
	}
	if len(out) > dictionarySize {
		return nil, fmt.Errorf("arbcompress: decompressed size %d exceeds bound %d", len(out), dictionarySize)
	}
	return out, nil
}
