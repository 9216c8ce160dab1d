package engine

import (
	"context"
	"testing"

	"github.com/certen/wavs/pkg/types"
)

func TestEVMChainQuerierUnconfiguredChainErrors(t *testing.T) {
	q := NewEVMChainQuerier(map[types.ChainKey]string{})
	defer q.Close()

	_, err := q.BlockHeight(context.Background(), types.NewChainKey(types.NamespaceEVM, "1"))
	if err == nil {
		t.Fatalf("expected an error for a chain with no configured RPC URL")
	}
}

func TestEVMChainQuerierCloseWithoutDialIsSafe(t *testing.T) {
	q := NewEVMChainQuerier(map[types.ChainKey]string{
		types.NewChainKey(types.NamespaceEVM, "1"): "http://127.0.0.1:0",
	})
	q.Close()
}
