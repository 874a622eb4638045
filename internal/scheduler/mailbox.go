package scheduler

import (
	"errors"
	"sync"

	"github.com/stepchain/wavm-prover/internal/evmapi"
)

// ErrMailboxOverflow signals a scheduler invariant violation: a mailbox
// may hold at most one pending request and one pending response at a time
// (spec.md §5, "Bounded queues... Overflow is a panic, signaling a
// scheduler invariant violation"). Callers of this package treat it as a
// programmer error, not a guest-visible failure.
var ErrMailboxOverflow = errors.New("scheduler: mailbox overflow")

// Mailbox is the request/response pair one child coroutine exchanges with
// its parent, per spec.md §4.3: "tx: parent->child responses... rx:
// child->parent requests". It is guarded by a mutex even though the
// scheduler's single-threaded cooperative model means it is never
// contended in practice (spec.md §5's "guarded by a mutex but contended
// only degenerately").
//
// Grounded on
// _examples/original_source/sp1-crates/program/src/stylus.rs's
// MessageQueue (tx/rx VecDeque pair bounded to one in-flight request).
type Mailbox struct {
	mu  sync.Mutex
	req *evmapi.Request
	rsp *evmapi.Response
}

// PutRequest is called by the child to hand a request to the parent. It
// panics (via ErrMailboxOverflow) if a request is already pending, which
// can only happen if the scheduler's one-in-flight invariant is broken.
func (m *Mailbox) PutRequest(req evmapi.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.req != nil {
		panic(ErrMailboxOverflow)
	}
	m.req = &req
}

// PeekRequest lets the parent inspect the pending request without
// consuming it, matching spec.md §4.3's "the parent peeks; dequeues only
// after producing a response".
func (m *Mailbox) PeekRequest() (evmapi.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.req == nil {
		return evmapi.Request{}, false
	}
	return *m.req, true
}

// PutResponse is called by the parent once it has handled the pending
// request; it clears the request slot ("dequeues") and fills the response
// slot for the child to pick up, asserting the rx (request) side is empty
// afterward per spec.md §4.3.
func (m *Mailbox) PutResponse(rsp evmapi.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.req == nil {
		panic(ErrMailboxOverflow)
	}
	m.req = nil
	if m.rsp != nil {
		panic(ErrMailboxOverflow)
	}
	m.rsp = &rsp
}

// TakeResponse is called by the child to consume the parent's reply.
func (m *Mailbox) TakeResponse() (evmapi.Response, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rsp == nil {
		return evmapi.Response{}, false
	}
	rsp := *m.rsp
	m.rsp = nil
	return rsp, true
}
