package trigger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	wavstypes "github.com/certen/wavs/pkg/types"
)

// evmReconnectDelay mirrors the teacher's event_watcher.go backoff between
// a dropped subscription and the next dial attempt.
const evmReconnectDelay = 3 * time.Second

// evmWatcher subscribes to newHeads (for block-interval evaluation) and to
// a single OR'd log filter built from every registered EVM-event trigger
// on chain, reconnecting with backoff whenever either subscription drops
// (grounded on the teacher's pkg/anchor/event_watcher.go subscribe/resubscribe
// loop).
type evmWatcher struct {
	chain  wavstypes.ChainKey
	wsURL  string
	lookup *Lookup
	out    chan<- wavstypes.TriggerAction
	log    zerolog.Logger
}

func newEVMWatcher(chain wavstypes.ChainKey, wsURL string, lookup *Lookup, out chan<- wavstypes.TriggerAction, log zerolog.Logger) *evmWatcher {
	return &evmWatcher{chain: chain, wsURL: wsURL, lookup: lookup, out: out, log: log.With().Str("chain", chain.String()).Logger()}
}

// run blocks until ctx is cancelled, reconnecting indefinitely in between.
func (w *evmWatcher) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.runOnce(ctx); err != nil {
			w.log.Warn().Err(err).Msg("evm watcher disconnected, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(evmReconnectDelay):
		}
	}
}

func (w *evmWatcher) runOnce(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, w.wsURL)
	if err != nil {
		return err
	}
	defer client.Close()

	heads := make(chan *ethtypes.Header, 16)
	headSub, err := client.SubscribeNewHead(ctx, heads)
	if err != nil {
		return err
	}
	defer headSub.Unsubscribe()

	logs := make(chan ethtypes.Log, 64)
	var logSub ethereum.Subscription
	addresses, topics := w.lookup.EVMSubscriptionFilters(w.chain)
	if len(addresses) > 0 {
		logSub, err = client.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
			Addresses: addresses,
			Topics:    [][]common.Hash{topics}, // single topic slot, OR'd
		}, logs)
		if err != nil {
			return err
		}
		defer logSub.Unsubscribe()
	}

	var errCh <-chan error
	if logSub != nil {
		errCh = logSub.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-headSub.Err():
			return err
		case err := <-errCh:
			return err
		case head := <-heads:
			w.emitBlockTriggers(ctx, head.Number.Uint64())
		case lg := <-logs:
			w.emitLogTrigger(ctx, lg)
		}
	}
}

func (w *evmWatcher) emitBlockTriggers(ctx context.Context, height uint64) {
	for _, reg := range w.lookup.DueBlockTriggers(w.chain, height) {
		action := wavstypes.TriggerAction{
			ServiceID:  reg.ServiceID,
			WorkflowID: reg.WorkflowID,
			Data: wavstypes.TriggerData{
				Kind:          wavstypes.DataBlockInterval,
				IntervalChain: w.chain,
				BlockHeight:   height,
			},
		}
		w.send(ctx, action)
	}
}

func (w *evmWatcher) emitLogTrigger(ctx context.Context, lg ethtypes.Log) {
	var topic common.Hash
	if len(lg.Topics) > 0 {
		topic = lg.Topics[0]
	}
	for _, reg := range w.lookup.MatchEVM(w.chain, lg.Address, topic) {
		action := wavstypes.TriggerAction{
			ServiceID:  reg.ServiceID,
			WorkflowID: reg.WorkflowID,
			Data: wavstypes.TriggerData{
				Kind:       wavstypes.DataEVMLog,
				EVMChain:   w.chain,
				EVMAddress: lg.Address,
				TxHash:     lg.TxHash,
				LogIndex:   uint32(lg.Index),
				RawLog:     lg.Data,
			},
		}
		w.send(ctx, action)
	}
}

// send blocks until the trigger->dispatcher channel accepts action or ctx
// is cancelled: the channel is bounded and watchers are expected to exert
// backpressure rather than drop actions under load.
func (w *evmWatcher) send(ctx context.Context, action wavstypes.TriggerAction) {
	select {
	case w.out <- action:
	case <-ctx.Done():
	}
}
