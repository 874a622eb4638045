package scheduler

import (
	"testing"

	"github.com/stepchain/wavm-prover/internal/evmapi"
)

func echoChild(c *Cothread) ([]byte, uint64, error) {
	rsp := c.Request(evmapi.Request{Type: evmapi.ReqGetBytes32})
	return rsp.Result, 0, nil
}

func TestSchedulerRoundTrip(t *testing.T) {
	s := NewScheduler()
	h := s.NewProgram([32]byte{1}, echoChild)

	req, ok, err := s.GetRequest(h)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if !ok {
		t.Fatalf("expected a pending request")
	}
	if req.Type != evmapi.ReqGetBytes32 {
		t.Fatalf("unexpected request type %v", req.Type)
	}

	if err := s.SendResponse(h, evmapi.Response{Result: []byte("hi")}); err != nil {
		t.Fatalf("SendResponse: %v", err)
	}

	out, err := s.Outcome(h)
	if err != nil {
		t.Fatalf("Outcome: %v", err)
	}
	if out.Kind != OutcomeSuccess {
		t.Fatalf("expected success, got %v", out.Kind)
	}
	if string(out.Data) != "hi" {
		t.Fatalf("unexpected output %q", out.Data)
	}

	if err := s.PopLastProgram(h); err != nil {
		t.Fatalf("PopLastProgram: %v", err)
	}
	if s.Depth() != 0 {
		t.Fatalf("expected empty stack after pop, depth=%d", s.Depth())
	}
}

func TestSchedulerLIFO(t *testing.T) {
	s := NewScheduler()
	done := func(c *Cothread) ([]byte, uint64, error) { return nil, 0, nil }
	first := s.NewProgram([32]byte{1}, done)
	second := s.NewProgram([32]byte{2}, done)

	if err := s.PopLastProgram(first); err != ErrNotLIFO {
		t.Fatalf("expected ErrNotLIFO popping out of order, got %v", err)
	}
	if err := s.PopLastProgram(second); err != nil {
		t.Fatalf("PopLastProgram(second): %v", err)
	}
	if err := s.PopLastProgram(first); err != nil {
		t.Fatalf("PopLastProgram(first): %v", err)
	}
}

func TestEncodeDecodeOutcomeData(t *testing.T) {
	wire := EncodeOutcomeData(12345, []byte("payload"))
	gasLeft, payload := DecodeOutcomeData(wire)
	if gasLeft != 12345 {
		t.Fatalf("gasLeft = %d, want 12345", gasLeft)
	}
	if string(payload) != "payload" {
		t.Fatalf("payload = %q", payload)
	}
}
