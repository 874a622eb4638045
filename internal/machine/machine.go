package machine

import (
	"errors"

	"github.com/stepchain/wavm-prover/internal/merkle"
)

// Status is the top-level machine status, spec.md §3.1: a machine is
// always in exactly one of these four states, and the state's hash is
// computed completely differently depending on which one it's in.
type Status byte

const (
	StatusRunning Status = iota
	StatusFinished
	StatusErrored
	StatusTooFar
)

var (
	ErrAlreadyHalted = errors.New("machine: step called on a non-Running machine")
	ErrTooManySteps  = errors.New("machine: exceeded the maximum step count")
)

// MaxSteps is the hard step ceiling named in spec.md §4.1 (2^43), beyond
// which a machine that hasn't halted is considered to have run away;
// practically this only matters to long-running native execution (JIT),
// since a step-by-step prover never runs anywhere near this many steps in
// one process.
const MaxSteps = 1 << 43

// Machine is the full proving-machine state: status, the active module's
// program counter, the call stacks, every loaded module (module 0 is
// always the "main" guest program), and the chain GlobalState.
type Machine struct {
	Status       Status
	Steps        uint64
	GlobalState  GlobalState
	Modules      []*Module
	ModuleIdx    uint32
	FuncIdx      uint32
	PC           uint64
	ValueStack   ValueStack
	InternalStack InternalStack
	BlockStack   BlockStack
	FrameStack   FrameStack

	// Dispatcher resolves calls into NativeFunc-backed modules (Stylus
	// hostios, `programs.*` scheduler entries). Never part of the
	// machine's hash: it is host-side wiring, not committed state.
	Dispatcher HostDispatcher

	// ErrorString records a short diagnostic for a machine that entered
	// StatusErrored; it is never part of the hash (only the status
	// itself is, per spec.md §3.1) but is useful for logging/debugging.
	ErrorString string
}

func (m *Machine) modulesTree() *merkle.Tree {
	leaves := make([][32]byte, len(m.Modules))
	for i, mod := range m.Modules {
		leaves[i] = mod.Hash()
	}
	depth := 0
	for (1 << uint(depth)) < len(leaves) {
		depth++
	}
	if depth == 0 {
		depth = 1
	}
	return merkle.NewTree(depth, leaves)
}

// Hash computes the machine's state hash, spec.md §3.1: case-split on
// Status. A Finished or Errored machine hashes only its status tag and
// GlobalState (all further state is irrelevant once halted, since the
// verifier only needs to confirm the *final* global state reached).
// Running hashes the full live execution state; TooFar is a fixed
// constant shared by every machine that read past the available inbox.
func (m *Machine) Hash() [32]byte {
	switch m.Status {
	case StatusFinished:
		gsh := m.GlobalState.Hash()
		return merkle.Keccak256([]byte("Machine finished:"), gsh[:])
	case StatusErrored:
		gsh := m.GlobalState.Hash()
		return merkle.Keccak256([]byte("Machine errored:"), gsh[:])
	case StatusTooFar:
		return merkle.Keccak256([]byte("Machine too far:"))
	default:
		gsh := m.GlobalState.Hash()
		modRoot := m.modulesTree().Root()
		vsh := m.ValueStack.Hash()
		ish := m.InternalStack.Hash()
		bsh := m.BlockStack.Hash()
		fsh := m.FrameStack.Hash()
		var idx [16]byte
		putU32(idx[0:4], m.ModuleIdx)
		putU32(idx[4:8], m.FuncIdx)
		putU64(idx[8:16], m.PC)
		return merkle.Keccak256([]byte("Machine running:"), gsh[:], modRoot[:], vsh[:], ish[:], bsh[:], fsh[:], idx[:])
	}
}

func (m *Machine) CurrentModule() *Module { return m.Modules[m.ModuleIdx] }

func (m *Machine) fail(reason string) {
	m.Status = StatusErrored
	m.ErrorString = reason
}
