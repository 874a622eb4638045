// Package preimage loads the on-disk preimage and inbox files spec.md §6
// describes ("Deliberately out of scope... on-disk preimage/inbox file
// formats beyond the wire layout") into the read-only, in-memory oracles
// internal/machine.PreimageResolver and internal/machine.InboxResolver
// consult during proving, per spec.md §3.7: "The preimage and inbox stores
// are built from disk at start-up, then immutable; the guest never writes
// them."
//
// Grounded on _examples/wyf-ACCEPT-eth2030/pkg/txpool/tx_journal.go's
// read-whole-file-then-scan-records idiom, adapted here for a binary
// record format (type byte + little-endian length prefix) instead of
// newline-delimited JSON.
package preimage

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/stepchain/wavm-prover/internal/merkle"
)

// Type identifies which hash function indexes a preimage record, per
// spec.md §6: "1-byte preimage-type... the runtime computes the
// type-specific hash (keccak256, sha256, etc.) and indexes by it."
type Type byte

const (
	TypeKeccak256 Type = iota
	TypeSha256
)

var ErrUnknownType = errors.New("preimage: unsupported preimage type byte")
var ErrTruncatedRecord = errors.New("preimage: record header or payload truncated")

// Key addresses one preimage: its hash function and the resulting digest.
type Key struct {
	Type Type
	Hash [32]byte
}

// Store is the read-only keyed map the prover consults via ReadPreImage.
// Once built, it is only ever read -- spec.md §3.7's immutability
// guarantee is upheld by never exposing a mutation method after Load.
type Store struct {
	records map[Key][]byte
}

// NewStore returns an empty store, useful for tests that populate records
// directly via Put rather than a disk file.
func NewStore() *Store {
	return &Store{records: make(map[Key][]byte)}
}

// Put inserts a raw preimage under its computed key, hashing payload with
// the hash function named by typ. It is the only mutator, used during
// construction (LoadFile) or by tests; nothing reachable from a running
// machine can call it.
func (s *Store) Put(typ Type, payload []byte) (Key, error) {
	h, err := hashFor(typ, payload)
	if err != nil {
		return Key{}, err
	}
	key := Key{Type: typ, Hash: h}
	s.records[key] = append([]byte(nil), payload...)
	return key, nil
}

// Get implements machine.PreimageResolver's keccak-only contract by
// defaulting to TypeKeccak256; GetTyped exposes the full (type, hash) key
// for other hash functions.
func (s *Store) Get(hash [32]byte) ([]byte, bool) {
	return s.GetTyped(TypeKeccak256, hash)
}

// GetTyped looks up a preimage by its full key.
func (s *Store) GetTyped(typ Type, hash [32]byte) ([]byte, bool) {
	v, ok := s.records[Key{Type: typ, Hash: hash}]
	return v, ok
}

func hashFor(typ Type, payload []byte) ([32]byte, error) {
	switch typ {
	case TypeKeccak256:
		return keccak256(payload), nil
	case TypeSha256:
		// sha256 is a 32-byte digest like keccak; modeled the same way so
		// Key stays a fixed [32]byte regardless of which hash produced it.
		return sha256Sum(payload), nil
	default:
		return [32]byte{}, ErrUnknownType
	}
}

func keccak256(data []byte) [32]byte {
	return merkle.Keccak256(data)
}

func sha256Sum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// LoadFile parses a preimage file: a stream of records, each a 1-byte
// preimage-type, an 8-byte little-endian length, then that many payload
// bytes (spec.md §6).
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preimage: read %s: %w", path, err)
	}
	s := NewStore()
	off := 0
	for off < len(data) {
		if off+9 > len(data) {
			return nil, ErrTruncatedRecord
		}
		typ := Type(data[off])
		length := binary.LittleEndian.Uint64(data[off+1 : off+9])
		off += 9
		if uint64(off)+length > uint64(len(data)) {
			return nil, ErrTruncatedRecord
		}
		payload := data[off : off+int(length)]
		off += int(length)
		if _, err := s.Put(typ, payload); err != nil {
			return nil, fmt.Errorf("preimage: record at offset %d: %w", off, err)
		}
	}
	return s, nil
}

// InboxKind distinguishes the sequencer feed from the delayed-message feed,
// matching wavmio's wavm_read_inbox_message vs
// wavm_read_delayed_inbox_message.
type InboxKind byte

const (
	InboxSequencer InboxKind = iota
	InboxDelayed
)

// InboxKey addresses one inbox message by its feed and sequence position.
type InboxKey struct {
	Kind     InboxKind
	Position uint64
}

// InboxStore is the read-only keyed map backing machine.InboxResolver.
type InboxStore struct {
	messages map[InboxKey][]byte
}

// NewInboxStore returns an empty store for tests to populate via Put.
func NewInboxStore() *InboxStore {
	return &InboxStore{messages: make(map[InboxKey][]byte)}
}

// Put records one message's raw bytes at its (kind, position) key.
func (s *InboxStore) Put(kind InboxKind, position uint64, message []byte) {
	s.messages[InboxKey{Kind: kind, Position: position}] = append([]byte(nil), message...)
}

// LoadMessageFile reads one inbox file's entire contents as a single
// message's raw bytes, per spec.md §6: "Raw bytes of one message; the
// caller supplies its sequence number and kind."
func (s *InboxStore) LoadMessageFile(path string, kind InboxKind, position uint64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("preimage: read inbox file %s: %w", path, err)
	}
	s.Put(kind, position, data)
	return nil
}

// Get implements machine.InboxResolver for the sequencer feed; Delayed
// exposes the other feed for callers that need to distinguish them (the
// two wavmio hostios share one resolver signature in internal/machine, so
// a glue closure picks which of Get/Delayed to call based on the opcode
// that invoked it).
func (s *InboxStore) Get(position uint64) ([]byte, bool) {
	m, ok := s.messages[InboxKey{Kind: InboxSequencer, Position: position}]
	return m, ok
}

// Delayed looks up a delayed-inbox message by position.
func (s *InboxStore) Delayed(position uint64) ([]byte, bool) {
	m, ok := s.messages[InboxKey{Kind: InboxDelayed, Position: position}]
	return m, ok
}
