package scheduler

import (
	"fmt"
	"runtime"

	"github.com/stepchain/wavm-prover/internal/evmapi"
)

// ChildFunc is the body of a Stylus child's coroutine: it runs the
// program's entrypoint to completion, making EVM-API requests through the
// Cothread it is handed whenever it needs host action. It returns the
// guest's raw output bytes and the gas it had remaining, or an error if
// the program reverted or failed outright.
//
// In the original this is `user_entrypoint` running inside a wasmer
// instance; here it stands in for "whatever drives one Stylus module's
// WAVM/native execution". This package supplies none: internal/jit's
// Executor obtains each ChildFunc from its caller-supplied ModuleLoader.
type ChildFunc func(c *Cothread) (output []byte, gasLeft uint64, err error)

// maxWaitSpins bounds how many scheduler yields the parent performs while
// waiting on a child's next request before concluding the scheduler's
// cooperative-handoff invariant has been violated (spec.md §4.3's
// "wait_next_message spins at most 10 iterations... exhausting the bound
// panics (a bug, not a guest-visible error)").
const maxWaitSpins = 10

// Cothread wraps one Stylus child running as a goroutine, the language's
// nearest equivalent to the stackful coroutine spec.md §4.3 and §9
// describe ("implement with a stack-switching primitive per target") --
// Go provides no stack-switching primitive, so a goroutine synchronized
// through Mailbox plays the same cooperative role: exactly one side makes
// progress at a time, handed off by each side polling the Mailbox and
// yielding with runtime.Gosched until the other side's message arrives.
//
// Grounded on
// _examples/original_source/sp1-crates/program/src/stylus.rs's Cothread
// (a corosensei::Coroutine wrapping a wasmer Instance) and .../replay.rs's
// SendYielder, which plays the same "suspend until the host replies" role
// our Mailbox plays here.
type Cothread struct {
	ModuleHash [32]byte
	Mailbox    *Mailbox

	done     chan struct{}
	outcome  Outcome
}

// NewCothread launches fn on its own goroutine immediately; fn blocks on
// c.Request whenever it needs host action, which is this package's
// equivalent of the coroutine yielding control back to the parent.
func NewCothread(moduleHash [32]byte, fn ChildFunc) *Cothread {
	c := &Cothread{
		ModuleHash: moduleHash,
		Mailbox:    &Mailbox{},
		done:       make(chan struct{}),
	}
	go c.run(fn)
	return c
}

func (c *Cothread) run(fn ChildFunc) {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			// A trap (out-of-ink, unreachable, OOB memory access, ...)
			// force-resets the child's stack in the original; here it
			// unwinds the goroutine's Go stack via recover and the parent
			// synthesizes a Failure outcome, per spec.md §4.3's
			// "Cancellation / error unwind" paragraph.
			c.outcome = Outcome{Kind: OutcomeFailure, Data: []byte(fmt.Sprint(r))}
		}
	}()
	output, gasLeft, err := fn(c)
	switch {
	case err == nil:
		c.outcome = Outcome{Kind: OutcomeSuccess, GasLeft: gasLeft, Data: output}
	case err == ErrReverted:
		c.outcome = Outcome{Kind: OutcomeRevert, GasLeft: gasLeft, Data: output}
	case err == ErrOutOfInk:
		c.outcome = Outcome{Kind: OutcomeOutOfInk, GasLeft: gasLeft}
	case err == ErrOutOfStack:
		c.outcome = Outcome{Kind: OutcomeOutOfStack, GasLeft: gasLeft}
	default:
		c.outcome = Outcome{Kind: OutcomeFailure, GasLeft: gasLeft, Data: []byte(err.Error())}
	}
}

// Request is called from inside fn (i.e. on the child's own goroutine) to
// hand the host a request and block until it produces a response -- the
// child-side half of the suspend/resume handoff.
func (c *Cothread) Request(req evmapi.Request) evmapi.Response {
	c.Mailbox.PutRequest(req)
	spins := 0
	for {
		if rsp, ok := c.Mailbox.TakeResponse(); ok {
			return rsp
		}
		runtime.Gosched()
		spins++
		if spins > 1_000_000 {
			panic("scheduler: child waited too long for a host response")
		}
	}
}

// Done reports whether the child's coroutine has returned or trapped.
func (c *Cothread) Done() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Outcome blocks until the child finishes and returns its final outcome.
// Callers that only want to know whether it has finished yet should use
// Done first.
func (c *Cothread) Outcome() Outcome {
	<-c.done
	return c.outcome
}

// WaitNextMessage is the parent-side half: it yields to the child up to
// maxWaitSpins times waiting for a request to appear, per spec.md §4.3.
// It returns ok=false (never panicking) if the child finished without
// ever issuing another request -- the parent then reads Outcome instead.
func (c *Cothread) WaitNextMessage() (req evmapi.Request, ok bool) {
	for i := 0; i < maxWaitSpins; i++ {
		if req, ok = c.Mailbox.PeekRequest(); ok {
			return req, true
		}
		if c.Done() {
			return evmapi.Request{}, false
		}
		runtime.Gosched()
	}
	panic("scheduler: wait_next_message exceeded its spin bound")
}

// Respond delivers the host's answer to the child's pending request, the
// parent-side half of the handoff.
func (c *Cothread) Respond(rsp evmapi.Response) {
	c.Mailbox.PutResponse(rsp)
}
