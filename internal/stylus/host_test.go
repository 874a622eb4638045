package stylus

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stepchain/wavm-prover/internal/evmapi"
)

type fakeHandler struct {
	calls []evmapi.Request
	resp  evmapi.Response
}

func (f *fakeHandler) Do(req evmapi.Request) evmapi.Response {
	f.calls = append(f.calls, req)
	return f.resp
}

func newTestEnv(h evmapi.Handler) *Env {
	return &Env{
		Ink:     &InkTracker{Left: 1_000_000},
		Price:   InkPrice{InkPerGas: 10_000},
		Storage: NewStorageCache(),
		Host:    h,
	}
}

func TestStorageCacheThenFlush(t *testing.T) {
	h := &fakeHandler{}
	env := newTestEnv(h)
	key := common.HexToHash("0x01")
	v1 := [32]byte{1}
	v2 := [32]byte{2}

	if err := env.StorageCacheBytes32(key, v1); err != nil {
		t.Fatal(err)
	}
	if err := env.StorageCacheBytes32(key, v2); err != nil {
		t.Fatal(err)
	}
	if err := env.StorageFlushCache(true); err != nil {
		t.Fatal(err)
	}
	if len(h.calls) != 1 {
		t.Fatalf("expected exactly one SetTrieSlots request, got %d", len(h.calls))
	}
	req := h.calls[0]
	if req.Type != evmapi.ReqSetTrieSlots {
		t.Fatalf("unexpected request type %v", req.Type)
	}
	if len(req.ReqData) != 64 {
		t.Fatalf("expected one (key,value) pair, got %d bytes", len(req.ReqData))
	}
	if string(req.ReqData[32:64]) != string(v2[:]) {
		t.Fatalf("flushed value should be the latest write")
	}
	if len(env.Storage.DirtySlots()) != 0 {
		t.Fatalf("expected empty dirty set after flush")
	}
}

func TestEmitLogRejectsTooManyTopics(t *testing.T) {
	env := newTestEnv(&fakeHandler{})
	topics := make([][32]byte, 5)
	if err := env.EmitLog(make([]byte, 5*32), topics); err != ErrTooManyTopics {
		t.Fatalf("expected ErrTooManyTopics, got %v", err)
	}
}

func TestEmitLogRejectsShortData(t *testing.T) {
	env := newTestEnv(&fakeHandler{})
	topics := make([][32]byte, 2)
	if err := env.EmitLog(make([]byte, 16), topics); err != ErrLogDataTooShort {
		t.Fatalf("expected ErrLogDataTooShort, got %v", err)
	}
}

func TestReadReturnDataClampsToRemaining(t *testing.T) {
	env := newTestEnv(&fakeHandler{})
	env.LastReturnData = []byte("0123456789")
	got, err := env.ReadReturnData(5, 100)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "56789" {
		t.Fatalf("got %q", got)
	}
}

func TestCallContractClampsGasToAvailable(t *testing.T) {
	h := &fakeHandler{resp: evmapi.Response{Result: []byte{0}, CostGas: 1}}
	env := newTestEnv(h)
	env.Ink.Left = 1_000_000 // modest budget -> converts to far less gas than requested
	_, _, err := env.CallContract(CallRegular, common.Address{}, nil, [32]byte{}, 1_000_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if h.calls[0].Gas >= 1_000_000_000 {
		t.Fatalf("expected clamped gas below the requested amount, got %d", h.calls[0].Gas)
	}
}

func TestOutOfInkPropagates(t *testing.T) {
	env := newTestEnv(&fakeHandler{})
	env.Ink.Left = 0
	if _, err := env.EvmGasLeft(); err != ErrOutOfInk {
		t.Fatalf("expected ErrOutOfInk, got %v", err)
	}
}
