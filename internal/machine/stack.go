package machine

import "github.com/stepchain/wavm-prover/internal/merkle"

// ValueStack is the WAVM operand stack, hashed inductively per spec.md
// §3.5: empty -> zero; push(s,v) -> keccak("Value stack:" || h(v) || h(s)).
// Represented as a slice with index 0 the bottom of the stack, so Hash
// must fold from the top (the end of the slice) down to satisfy the
// inductive definition's "most recently pushed first" shape.
type ValueStack struct {
	Values []Value
}

func (s *ValueStack) Push(v Value) { s.Values = append(s.Values, v) }

func (s *ValueStack) Pop() Value {
	v := s.Values[len(s.Values)-1]
	s.Values = s.Values[:len(s.Values)-1]
	return v
}

func (s *ValueStack) Peek() Value { return s.Values[len(s.Values)-1] }

func (s *ValueStack) Len() int { return len(s.Values) }

func (s *ValueStack) Hash() [32]byte {
	hashes := make([][32]byte, len(s.Values))
	for i, v := range s.Values {
		hashes[i] = v.Hash()
	}
	return merkle.StackHash("Value stack:", reversed(hashes))
}

// InternalStack mirrors ValueStack but backs CrossModuleCall argument
// passing and the `return`-unwind scratch area (spec.md §4.1).
type InternalStack struct {
	Values []Value
}

func (s *InternalStack) Push(v Value) { s.Values = append(s.Values, v) }
func (s *InternalStack) Pop() Value {
	v := s.Values[len(s.Values)-1]
	s.Values = s.Values[:len(s.Values)-1]
	return v
}
func (s *InternalStack) Hash() [32]byte {
	hashes := make([][32]byte, len(s.Values))
	for i, v := range s.Values {
		hashes[i] = v.Hash()
	}
	return merkle.StackHash("Internal stack:", reversed(hashes))
}

// BlockFrame is one entry of the block stack, tracking the jump target
// that `end` resolves to for the block it was pushed for and how many
// result values that block leaves behind for value-stack trimming on
// early exit via br/br_if.
type BlockFrame struct {
	TargetPC    uint64
	ResultArity int
}

// BlockStack hashes with its own domain prefix, per spec.md §3.5.
type BlockStack struct {
	Frames []BlockFrame
}

func (s *BlockStack) Push(f BlockFrame) { s.Frames = append(s.Frames, f) }
func (s *BlockStack) Pop() BlockFrame {
	f := s.Frames[len(s.Frames)-1]
	s.Frames = s.Frames[:len(s.Frames)-1]
	return f
}
func (s *BlockStack) Hash() [32]byte {
	hashes := make([][32]byte, len(s.Frames))
	for i, f := range s.Frames {
		hashes[i] = f.Hash()
	}
	return merkle.StackHash("Block stack:", reversed(hashes))
}

func (f BlockFrame) Hash() [32]byte {
	var pc [8]byte
	putU64(pc[:], f.TargetPC)
	return merkle.Keccak256([]byte("Block frame:"), pc[:])
}

// Frame is one call frame: the caller's module/function/PC return address
// and the frame's locals. Its hash composes that return address with the
// hash of the locals.
type Frame struct {
	ReturnModule   uint32
	ReturnFunction uint32
	ReturnPC       uint64
	Locals         []Value
}

func (f Frame) Hash() [32]byte {
	localHashes := make([][32]byte, len(f.Locals))
	for i, v := range f.Locals {
		localHashes[i] = v.Hash()
	}
	localsHash := merkle.StackHash("Locals:", reversed(localHashes))
	var buf [20]byte
	putU32(buf[0:4], f.ReturnModule)
	putU32(buf[4:8], f.ReturnFunction)
	putU64(buf[8:16], f.ReturnPC)
	return merkle.Keccak256([]byte("Stack frame:"), buf[:16], localsHash[:])
}

// FrameStack holds the call chain; hashed the same inductive way.
type FrameStack struct {
	Frames []Frame
}

func (s *FrameStack) Push(f Frame) { s.Frames = append(s.Frames, f) }
func (s *FrameStack) Pop() Frame {
	f := s.Frames[len(s.Frames)-1]
	s.Frames = s.Frames[:len(s.Frames)-1]
	return f
}
func (s *FrameStack) Hash() [32]byte {
	hashes := make([][32]byte, len(s.Frames))
	for i, f := range s.Frames {
		hashes[i] = f.Hash()
	}
	return merkle.StackHash("Stack frame stack:", reversed(hashes))
}

func reversed(h [][32]byte) [][32]byte {
	out := make([][32]byte, len(h))
	for i, v := range h {
		out[len(h)-1-i] = v
	}
	return out
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> uint(56-8*i))
	}
}
