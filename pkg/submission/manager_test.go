package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/wavs/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(Config{Mnemonic: testMnemonic})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestManagerSubmitNoneIsNoop(t *testing.T) {
	m := newTestManager(t)
	err := m.Submit(context.Background(), types.ServiceID{0x01}, "wf", types.Submit{Kind: types.SubmitNone}, types.Envelope{}, nil)
	if err != nil {
		t.Fatalf("Submit(SubmitNone): %v", err)
	}
}

func TestManagerSignerAddressUnassignedIsAbsent(t *testing.T) {
	m := newTestManager(t)
	if _, ok := m.SignerAddress(types.ServiceID{0x02}); ok {
		t.Fatalf("expected no signer address before AddService")
	}
}

func TestManagerAddServiceAssignsSignerAddress(t *testing.T) {
	m := newTestManager(t)
	svc := types.ServiceID{0x03}
	if err := m.AddService(context.Background(), svc); err != nil {
		t.Fatalf("AddService: %v", err)
	}
	addr, ok := m.SignerAddress(svc)
	if !ok {
		t.Fatalf("expected a signer address after AddService")
	}
	if (addr == common.Address{}) {
		t.Fatalf("expected a non-zero derived signer address")
	}
}

func TestManagerSubmitAggregatorPostsPacket(t *testing.T) {
	var gotReq types.AddPacketRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]types.AddPacketResponse{{Type: types.RespSent, Count: 1}})
	}))
	defer srv.Close()

	m := newTestManager(t)
	svc := types.ServiceID{0x04}
	envelope := types.Envelope{
		EventID:  types.EventID{0xEE},
		Ordering: types.OrderingFromUint64(1),
		Payload:  []byte("payload"),
	}
	err := m.Submit(context.Background(), svc, "wf-1", types.Submit{
		Kind:          types.SubmitAggregator,
		AggregatorURL: srv.URL,
	}, envelope, []byte("trigger"))
	if err != nil {
		t.Fatalf("Submit(SubmitAggregator): %v", err)
	}

	if gotReq.Packet.ServiceID != svc {
		t.Fatalf("expected the posted packet to carry the submitting service id")
	}
	if gotReq.Packet.Submission.EventID != envelope.EventID {
		t.Fatalf("expected the posted packet's submission to carry the envelope's event id")
	}
}

func TestManagerSubmitAggregatorRejectedStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	m := newTestManager(t)
	err := m.Submit(context.Background(), types.ServiceID{0x05}, "wf-1", types.Submit{
		Kind:          types.SubmitAggregator,
		AggregatorURL: srv.URL,
	}, types.Envelope{EventID: types.EventID{0x01}}, nil)
	if err == nil {
		t.Fatalf("expected an error when the aggregator rejects the packet")
	}
}
