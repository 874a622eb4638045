// Package rollupproof implements the bisection-style interactive dispute
// protocol that narrows a disagreement between a claimer and a challenger
// about a replay program's execution down to a single WAVM step, at which
// point internal/machine's step proof (spec.md §4.2) settles it.
//
// Grounded on
// _examples/wyf-ACCEPT-eth2030/pkg/rollup/fraud_proof.go's
// FraudProofGenerator/InteractiveVerification/BisectionStep pattern,
// retargeted from arbitrary state roots to machine step hashes: instead of
// bisecting over transaction indices with opaque post-state roots, this
// package bisects over step counts with internal/machine.Machine.Hash
// values, and its terminal artifact is a DisputeProof carrying the
// single-step machine.Proof both sides must agree settles the dispute.
package rollupproof

import (
	"encoding/binary"
	"errors"

	"github.com/stepchain/wavm-prover/internal/merkle"
)

// DisputeKind distinguishes what a dispute is ultimately about, mirroring
// the teacher's FraudProofType enum.
type DisputeKind uint8

const (
	// InvalidMachineHash marks a disagreement about the machine's
	// committed hash after some number of steps.
	InvalidMachineHash DisputeKind = iota + 1
	// InvalidStepProof marks a disagreement about a single step's
	// transition once bisection has converged.
	InvalidStepProof
)

var (
	ErrDisputeNil           = errors.New("rollupproof: nil dispute proof")
	ErrDisputeKindUnknown   = errors.New("rollupproof: unknown dispute kind")
	ErrPreHashZero          = errors.New("rollupproof: pre-step hash is zero")
	ErrPostHashZero         = errors.New("rollupproof: post-step hash is zero")
	ErrProofDataEmpty       = errors.New("rollupproof: proof data is empty")
	ErrProofInvalid         = errors.New("rollupproof: proof verification failed")
	ErrHashesMatch          = errors.New("rollupproof: claimer and challenger hashes match (no dispute)")
	ErrAssertionIDZero      = errors.New("rollupproof: assertion id must be non-zero")
	ErrNilStepHasher        = errors.New("rollupproof: nil step hasher function")
	ErrNilStepVerifier      = errors.New("rollupproof: nil step verifier function")
	ErrBisectionNotConverged = errors.New("rollupproof: bisection has not yet converged to a single step")
	ErrBisectionConverged    = errors.New("rollupproof: bisection already converged")
)

// DisputeProof pins the exact step where two parties' claimed execution
// diverges, carrying enough to drive a one-step replay (spec.md §4.2's
// proof, produced out of band by whichever side is proving its claim).
type DisputeProof struct {
	Kind DisputeKind

	// AssertionID identifies the disputed rollup assertion (the
	// claimer's committed post-state for some range of inbox input),
	// playing the role the teacher's BlockNumber does.
	AssertionID uint64

	// StepIndex is the machine step count at which the parties diverge.
	StepIndex uint64

	PreStepHash  [32]byte
	PostStepHash [32]byte

	// StepProof is the serialized machine.Proof for the single disputed
	// step (internal/machine.Machine.Serialize().Bytes()).
	StepProof []byte
}

// StepHasher returns the machine hash reached after running `step` steps
// from the start of the disputed assertion; the claimer and challenger
// each supply their own (disagreeing) implementation.
type StepHasher func(step uint64) ([32]byte, error)

// StepVerifierFunc replays the single disputed step and reports whether
// the claimed transition from preHash to postHash, justified by
// stepProof, is one internal/machine would actually produce.
type StepVerifierFunc func(preHash, postHash [32]byte, stepProof []byte) bool

// Bisector runs one side of the interactive bisection protocol (spec.md's
// fraud-proof game is symmetric; a Bisector is instantiated once per
// participant with that participant's own StepHasher).
type Bisector struct {
	hasher StepHasher
}

// NewBisector wraps a StepHasher so BisectClaim can be called repeatedly
// without re-threading it through every call.
func NewBisector(hasher StepHasher) (*Bisector, error) {
	if hasher == nil {
		return nil, ErrNilStepHasher
	}
	return &Bisector{hasher: hasher}, nil
}

// ClaimAt returns this side's machine hash at the given step, the datum
// both sides exchange at each bisection round.
func (b *Bisector) ClaimAt(step uint64) ([32]byte, error) {
	return b.hasher(step)
}

// Game is the interactive bisection state for one dispute, narrowing
// [startStep, endStep) down to the single step where both sides' claims
// diverge. Grounded on the teacher's InteractiveVerification, generalized
// to step hashes instead of transaction-level state roots.
type Game struct {
	assertionID uint64
	startStep   uint64
	endStep     uint64

	claimerHashes    map[uint64][32]byte
	challengerHashes map[uint64][32]byte

	converged    bool
	disputedStep uint64
}

// NewGame starts a bisection game over [startStep, endStep).
func NewGame(assertionID, startStep, endStep uint64) (*Game, error) {
	if assertionID == 0 {
		return nil, ErrAssertionIDZero
	}
	return &Game{
		assertionID:      assertionID,
		startStep:        startStep,
		endStep:          endStep,
		claimerHashes:    make(map[uint64][32]byte),
		challengerHashes: make(map[uint64][32]byte),
	}, nil
}

// IsConverged reports whether the game has narrowed to one disputed step.
func (g *Game) IsConverged() bool { return g.converged }

// DisputedStep returns the step both sides will submit a single-step
// proof about. Only meaningful once IsConverged is true.
func (g *Game) DisputedStep() uint64 { return g.disputedStep }

// Bisect performs one round: both sides report their claimed machine hash
// at the current midpoint. If they agree, the dispute lies in the upper
// half of the range (their claims only diverge later); otherwise it lies
// in the lower half, exactly mirroring the teacher's BisectionStep.
func (g *Game) Bisect(claimerHash, challengerHash [32]byte) (start, end uint64, err error) {
	if g.converged {
		return g.disputedStep, g.disputedStep, ErrBisectionConverged
	}
	if g.endStep <= g.startStep+1 {
		g.converged = true
		g.disputedStep = g.startStep
		return g.startStep, g.endStep, ErrBisectionConverged
	}

	mid := (g.startStep + g.endStep) / 2
	g.claimerHashes[mid] = claimerHash
	g.challengerHashes[mid] = challengerHash

	if claimerHash == challengerHash {
		g.startStep = mid
	} else {
		g.endStep = mid
	}
	if g.endStep <= g.startStep+1 {
		g.converged = true
		g.disputedStep = g.startStep
	}
	return g.startStep, g.endStep, nil
}

// GenerateDisputeProof builds the terminal artifact once Bisect has
// converged: the disputed step, both sides' hash claims at that step, and
// the caller-supplied single-step machine.Proof bytes justifying whichever
// side is right.
func (g *Game) GenerateDisputeProof(stepProof []byte) (*DisputeProof, error) {
	if !g.converged {
		return nil, ErrBisectionNotConverged
	}
	claimer := g.claimerHashes[g.disputedStep]
	challenger := g.challengerHashes[g.disputedStep]
	if claimer == challenger {
		return nil, ErrHashesMatch
	}
	if len(stepProof) == 0 {
		return nil, ErrProofDataEmpty
	}
	return &DisputeProof{
		Kind:         InvalidStepProof,
		AssertionID:  g.assertionID,
		StepIndex:    g.disputedStep,
		PreStepHash:  claimer,
		PostStepHash: challenger,
		StepProof:    stepProof,
	}, nil
}

// Verifier checks a converged DisputeProof by replaying the single
// disputed step through a caller-supplied StepVerifierFunc (normally
// internal/machine reconstructing state from the proof bytes and
// recomputing Machine.Hash).
type Verifier struct {
	verify StepVerifierFunc
}

// NewVerifier wraps a StepVerifierFunc.
func NewVerifier(verify StepVerifierFunc) (*Verifier, error) {
	if verify == nil {
		return nil, ErrNilStepVerifier
	}
	return &Verifier{verify: verify}, nil
}

// Verify reports whether proof is internally consistent and whether the
// single-step replay it describes is one internal/machine would actually
// produce -- true means the challenger's claim (PostStepHash) is upheld.
func (v *Verifier) Verify(proof *DisputeProof) (bool, error) {
	if proof == nil {
		return false, ErrDisputeNil
	}
	if proof.Kind < InvalidMachineHash || proof.Kind > InvalidStepProof {
		return false, ErrDisputeKindUnknown
	}
	if proof.PreStepHash == ([32]byte{}) {
		return false, ErrPreHashZero
	}
	if proof.PostStepHash == ([32]byte{}) {
		return false, ErrPostHashZero
	}
	if len(proof.StepProof) == 0 {
		return false, ErrProofDataEmpty
	}
	return v.verify(proof.PreStepHash, proof.PostStepHash, proof.StepProof), nil
}

// CommitmentHash fingerprints a DisputeProof for on-chain identification,
// binding its assertion, step index, and both hash claims -- the teacher's
// computeProofHash adapted to this package's field names.
func CommitmentHash(proof *DisputeProof) [32]byte {
	if proof == nil {
		return [32]byte{}
	}
	var assertionBuf, stepBuf [8]byte
	binary.BigEndian.PutUint64(assertionBuf[:], proof.AssertionID)
	binary.BigEndian.PutUint64(stepBuf[:], proof.StepIndex)
	return merkle.Keccak256(
		[]byte{byte(proof.Kind)},
		assertionBuf[:],
		stepBuf[:],
		proof.PreStepHash[:],
		proof.PostStepHash[:],
		proof.StepProof,
	)
}
