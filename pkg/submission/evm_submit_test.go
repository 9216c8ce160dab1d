package submission

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/wavs/pkg/types"
)

func TestOrderedSubmissionsDelegatesToStore(t *testing.T) {
	subs := []types.Submission{
		{OperatorAddr: common.BytesToAddress([]byte{2}), Envelope: types.Envelope{Ordering: types.OrderingFromUint64(1)}},
		{OperatorAddr: common.BytesToAddress([]byte{1}), Envelope: types.Envelope{Ordering: types.OrderingFromUint64(1)}},
	}
	ordered := orderedSubmissions(subs)
	if ordered[0].OperatorAddr != common.BytesToAddress([]byte{1}) {
		t.Fatalf("expected lower operator address first for equal ordering")
	}
}

func TestSubmitOnChainMissingRPCIsErrorOutcome(t *testing.T) {
	m := newTestManager(t)
	chain := types.NewChainKey(types.NamespaceEVM, "1")
	outcome, err := m.SubmitOnChain(context.Background(), types.ServiceID{0x10}, chain, types.SubmitTarget{
		Chain:   chain,
		Address: common.HexToAddress("0xabc"),
	}, nil, []types.Submission{{OperatorAddr: common.BytesToAddress([]byte{1})}})
	if err != nil {
		t.Fatalf("SubmitOnChain: %v", err)
	}
	if outcome.Kind != types.OutcomeError {
		t.Fatalf("expected OutcomeError when no RPC endpoint is configured, got %v", outcome.Kind)
	}
}
