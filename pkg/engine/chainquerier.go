package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/certen/wavs/pkg/types"
)

// EVMChainQuerier implements ChainQuerier over one ethclient per configured
// chain, dialed lazily and kept open, mirroring the dial idiom of
// pkg/trigger's evmWatcher (ethclient.DialContext over an RPC URL) rather
// than hand-rolling JSON-RPC calls.
type EVMChainQuerier struct {
	rpcURLs map[types.ChainKey]string

	mu      sync.Mutex
	clients map[types.ChainKey]*ethclient.Client
}

// NewEVMChainQuerier builds a querier over the given chain-to-RPC-URL map.
// A chain absent from the map returns an error from every call, rather
// than panicking or silently degrading.
func NewEVMChainQuerier(rpcURLs map[types.ChainKey]string) *EVMChainQuerier {
	return &EVMChainQuerier{
		rpcURLs: rpcURLs,
		clients: make(map[types.ChainKey]*ethclient.Client),
	}
}

func (q *EVMChainQuerier) clientFor(ctx context.Context, chain types.ChainKey) (*ethclient.Client, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if c, ok := q.clients[chain]; ok {
		return c, nil
	}
	url, ok := q.rpcURLs[chain]
	if !ok {
		return nil, fmt.Errorf("engine: no RPC URL configured for chain %s", chain)
	}
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("engine: dial chain %s: %w", chain, err)
	}
	q.clients[chain] = c
	return c, nil
}

func (q *EVMChainQuerier) BlockHeight(ctx context.Context, chain types.ChainKey) (uint64, error) {
	c, err := q.clientFor(ctx, chain)
	if err != nil {
		return 0, err
	}
	return c.BlockNumber(ctx)
}

func (q *EVMChainQuerier) Balance(ctx context.Context, chain types.ChainKey, address []byte) ([]byte, error) {
	c, err := q.clientFor(ctx, chain)
	if err != nil {
		return nil, err
	}
	bal, err := c.BalanceAt(ctx, common.BytesToAddress(address), nil)
	if err != nil {
		return nil, err
	}
	return bal.Bytes(), nil
}

// ContractQuery performs an eth_call against the contract at address. It
// first fetches the code at address and errors if there is none. An
// empty query is treated as a bare existence check (spec §4.9's "validates
// manager address exists on-chain"): once code is found it returns nil
// data and no error without making a call.
func (q *EVMChainQuerier) ContractQuery(ctx context.Context, chain types.ChainKey, address []byte, query []byte) ([]byte, error) {
	c, err := q.clientFor(ctx, chain)
	if err != nil {
		return nil, err
	}
	code, err := c.CodeAt(ctx, common.BytesToAddress(address), nil)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("engine: no contract code at %s on %s", common.BytesToAddress(address), chain)
	}
	if len(query) == 0 {
		return nil, nil
	}
	addr := common.BytesToAddress(address)
	return c.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: query}, nil)
}

// Close releases every dialed client.
func (q *EVMChainQuerier) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.clients {
		c.Close()
	}
}
