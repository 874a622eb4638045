package scheduler

import (
	"errors"

	"github.com/stepchain/wavm-prover/internal/evmapi"
)

// Guest-visible outcomes a ChildFunc can signal by returning one of these
// sentinels as its error, distinct from an unexpected Go error (which
// becomes OutcomeFailure with its message as the diagnostic).
var (
	ErrReverted   = errors.New("scheduler: program reverted")
	ErrOutOfInk   = errors.New("scheduler: program ran out of ink")
	ErrOutOfStack = errors.New("scheduler: program exceeded its stack depth limit")

	// ErrNotLIFO is returned by PopLastProgram when asked to remove a child
	// other than the one most recently pushed, or when no child is on the
	// stack, per spec.md §4.3's "Children are
	// pushed onto a stack... the outermost running child is always the
	// last one pushed (LIFO)".
	ErrNotLIFO = errors.New("scheduler: children must be popped in LIFO order")

	// ErrUnknownProgram is returned when a program handle doesn't
	// correspond to a live child.
	ErrUnknownProgram = errors.New("scheduler: unknown program handle")
)

// ProgramHandle identifies one child on the Scheduler's stack, returned by
// NewProgram and used by every subsequent call (spec.md §4.3:
// "programs.new_program(module_hash, ...) -> program handle").
type ProgramHandle uint32

// Scheduler owns the LIFO stack of Stylus children the replay program has
// launched and not yet popped (spec.md §4.3's "Lifetime" paragraph).
// Exactly one coroutine is ever actually making progress at a time: either
// the parent (this struct's caller) or the topmost child.
type stackEntry struct {
	handle ProgramHandle
	child  *Cothread
}

type Scheduler struct {
	stack  []stackEntry
	nextID ProgramHandle
}

// NewScheduler returns an empty scheduler -- the parent (replay program)
// has launched no children yet.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// NewProgram launches a child coroutine running fn and pushes it onto the
// stack, returning a handle the guest threads through start_program,
// get_request/send_response, and eventually pop_last_program.
func (s *Scheduler) NewProgram(moduleHash [32]byte, fn ChildFunc) ProgramHandle {
	s.nextID++
	id := s.nextID
	s.stack = append(s.stack, stackEntry{handle: id, child: NewCothread(moduleHash, fn)})
	return id
}

func (s *Scheduler) lookup(h ProgramHandle) (*Cothread, error) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].handle == h {
			return s.stack[i].child, nil
		}
	}
	return nil, ErrUnknownProgram
}

// Top returns the most recently pushed (and not yet popped) child, i.e.
// the coroutine currently allowed to run, per the LIFO invariant.
func (s *Scheduler) Top() (*Cothread, ProgramHandle, bool) {
	if len(s.stack) == 0 {
		return nil, 0, false
	}
	top := s.stack[len(s.stack)-1]
	return top.child, top.handle, true
}

// GetRequest returns the pending EVM-API request the given child is
// blocked on, waiting (yielding to the child) up to the scheduler's spin
// bound for one to appear. ok is false if the child finished instead of
// issuing another request; callers should then read its Outcome.
func (s *Scheduler) GetRequest(h ProgramHandle) (req evmapi.Request, ok bool, err error) {
	c, err := s.lookup(h)
	if err != nil {
		return evmapi.Request{}, false, err
	}
	req, ok = c.WaitNextMessage()
	return req, ok, nil
}

// SendResponse delivers the host's reply to the child's pending request.
func (s *Scheduler) SendResponse(h ProgramHandle, rsp evmapi.Response) error {
	c, err := s.lookup(h)
	if err != nil {
		return err
	}
	c.Respond(rsp)
	return nil
}

// Outcome blocks until the given child finishes and returns its result.
func (s *Scheduler) Outcome(h ProgramHandle) (Outcome, error) {
	c, err := s.lookup(h)
	if err != nil {
		return Outcome{}, err
	}
	return c.Outcome(), nil
}

// PopLastProgram discards the topmost child, per spec.md §4.3's
// "pop_last_program discards the topmost child". It is an error to pop
// anything but the current top: children are destroyed strictly LIFO
// (spec.md §3.7).
func (s *Scheduler) PopLastProgram(h ProgramHandle) error {
	_, top, ok := s.Top()
	if !ok || top != h {
		return ErrNotLIFO
	}
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

// Depth reports how many children are currently live (pushed, not yet
// popped).
func (s *Scheduler) Depth() int { return len(s.stack) }
