package machine

import (
	"bytes"

	"github.com/stepchain/wavm-prover/internal/merkle"
	"github.com/stepchain/wavm-prover/internal/wavm"
)

// proofStackWindow is the number of topmost value-stack entries the step
// proof includes verbatim; deeper entries are proven only as a single
// hash, per spec.md §4.2's fixed-depth "proving window" scheme (an
// on-chain verifier only ever needs to inspect the handful of operands
// the one instruction being proven actually touches).
const proofStackWindow = 3

// Proof is the byte-exact serialization of a single step's pre-state,
// laid out so an (out-of-scope) on-chain verifier can replay exactly one
// instruction and recompute the resulting Machine.Hash, per spec.md §4.2.
// Field order here is load-bearing: it must match the verifier bit for
// bit, so nothing may be reordered, widened, or omitted even when Go's
// own conventions would prefer otherwise.
type Proof struct {
	buf bytes.Buffer
}

// Bytes returns the serialized proof.
func (p *Proof) Bytes() []byte { return p.buf.Bytes() }

func (p *Proof) putByte(b byte)        { p.buf.WriteByte(b) }
func (p *Proof) putBytes(b []byte)     { p.buf.Write(b) }
func (p *Proof) putU32(v uint32) {
	var b [4]byte
	putU32(b[:], v)
	p.buf.Write(b[:])
}
func (p *Proof) putU64(v uint64) {
	var b [8]byte
	putU64(b[:], v)
	p.buf.Write(b[:])
}
func (p *Proof) putHash(h [32]byte) { p.buf.Write(h[:]) }

// Serialize builds the step proof for the machine's current
// (pre-instruction) state.
func (m *Machine) Serialize() *Proof {
	p := &Proof{}
	p.putByte(byte(m.Status))
	if m.Status != StatusRunning {
		return p
	}

	gsh := m.GlobalState
	p.putHash(gsh.Bytes32Vals[0])
	p.putHash(gsh.Bytes32Vals[1])
	p.putU64(gsh.U64Vals[0])
	p.putU64(gsh.U64Vals[1])

	p.putU32(m.ModuleIdx)

	// Value stack: window of up-to-3 top entries verbatim, then a single
	// hash summarizing everything beneath them.
	n := len(m.ValueStack.Values)
	window := n
	if window > proofStackWindow {
		window = proofStackWindow
	}
	p.putByte(byte(window))
	for i := 0; i < window; i++ {
		v := m.ValueStack.Values[n-1-i]
		p.putByte(byte(v.Type))
		p.putU64(v.Payload)
	}
	rest := restStackHash(m.ValueStack.Values[:n-window])
	p.putHash(rest)

	p.putHash(m.InternalStack.Hash())
	p.putHash(m.BlockStack.Hash())
	p.putHash(m.FrameStack.Hash())

	p.putU64(m.PC)

	mod := m.CurrentModule()
	p.putHash(mod.Hash())
	p.putU32(m.FuncIdx)

	fn := mod.Functions[m.FuncIdx]
	var ins wavm.Instruction
	if int(m.PC) < len(fn.Code) {
		ins = fn.Code[m.PC]
	}
	p.putU64(uint64(ins.Opcode))
	p.putU64(ins.ArgumentData)

	codeRoot := functionCodeHash(fn)
	p.putHash(codeRoot)

	p.putTrailingData(m, mod, fn, ins)

	return p
}

func restStackHash(values []Value) [32]byte {
	hashes := make([][32]byte, len(values))
	for i, v := range values {
		hashes[i] = v.Hash()
	}
	return stackHashOf(hashes)
}

// stackHashOf mirrors ValueStack.Hash's inductive fold over an arbitrary
// slice (bottom to top ordering), reusing the same domain prefix so a
// verifier can fold the window back onto this hash and reconstruct the
// full ValueStack hash.
func stackHashOf(bottomToTop [][32]byte) [32]byte {
	topFirst := make([][32]byte, len(bottomToTop))
	for i, h := range bottomToTop {
		topFirst[len(bottomToTop)-1-i] = h
	}
	return merkle.StackHash("Value stack:", topFirst)
}

// putTrailingData appends the instruction-specific proof data some
// opcodes need beyond the common prefix above -- e.g. call_indirect's
// table/type commitment, or local/global access needing the target's
// current value proven (already covered by the module hash for globals;
// locals are covered by the frame-stack hash's own leaf, included above).
func (p *Proof) putTrailingData(m *Machine, mod *Module, fn wavm.Function, ins wavm.Instruction) {
	switch ins.Opcode {
	case wavm.OpCallIndirect:
		p.putHash(ins.ProvingArgumentData)
	case wavm.OpInternalReadPreImage, wavm.OpInternalReadInboxMessage:
		// The resolver-backed data itself is supplied out-of-band by the
		// caller proving the dispute (it is not part of machine state);
		// only the instruction's own argument data, already emitted
		// above, is needed to pin down which read is being proven.
	default:
		if isMemoryOp(ins.Opcode) {
			p.putMemoryLeaves(m, mod, ins)
		}
	}
}

func isMemoryOp(op wavm.Opcode) bool {
	b := byte(op)
	return op < 0x8000 && b >= 0x28 && b <= 0x3E
}

// putMemoryLeaves proves the one or two 32-byte leaves a load/store touches,
// per spec.md §4.2's "memory load/store: the two leaves covering the access
// plus their Merkle proofs". The access address is recovered the same way
// execMemOp computes it -- base operand (top of stack for a load, second
// from top for a store) plus the instruction's static offset -- without
// popping, since this runs before the step executes.
func (p *Proof) putMemoryLeaves(m *Machine, mod *Module, ins wavm.Instruction) {
	offset := ins.ArgumentData >> 32
	depth := 0
	if byte(ins.Opcode) >= 0x36 { // stores: value is on top, base beneath it
		depth = 1
	}
	n := len(m.ValueStack.Values)
	if n <= depth {
		p.putHash([32]byte{})
		return
	}
	base := uint64(m.ValueStack.Values[n-1-depth].AsU32())
	addr64 := base + offset
	if addr64 > 0xFFFFFFFF || mod.Memory == nil {
		p.putHash([32]byte{})
		return
	}
	addr := uint32(addr64)

	leaf, proof := mod.Memory.LeafProof(addr)
	p.putHash(leaf)
	p.putByte(byte(len(proof)))
	for _, s := range proof {
		p.putHash(s)
	}

	// If the access spans into a second leaf (a multi-byte access crossing a
	// 32-byte boundary), prove that leaf too.
	width := memOpWidth(ins.Opcode)
	if width > 0 && (addr%MemoryLeafBytes)+uint32(width) > MemoryLeafBytes {
		leaf2, proof2 := mod.Memory.LeafProof(addr + uint32(width) - 1)
		p.putHash(leaf2)
		p.putByte(byte(len(proof2)))
		for _, s := range proof2 {
			p.putHash(s)
		}
	}
}

func memOpWidth(op wavm.Opcode) int {
	switch byte(op) {
	case 0x28, 0x36: // i32.load/store
		return 4
	case 0x29, 0x37: // i64.load/store
		return 8
	case 0x2C, 0x2D, 0x30, 0x31, 0x3A, 0x3C: // 8-bit variants
		return 1
	case 0x2E, 0x2F, 0x32, 0x33, 0x3B, 0x3D: // 16-bit variants
		return 2
	case 0x34, 0x35, 0x3E: // i64.load32/store32
		return 4
	}
	return 0
}
