package trigger

import (
	"context"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/rs/zerolog"

	wavstypes "github.com/certen/wavs/pkg/types"
)

type (
	abciEvent          = abci.Event
	abciEventAttribute = abci.EventAttribute
)

const cosmosReconnectDelay = 3 * time.Second
const cosmosPollInterval = 2 * time.Second

// cosmosWatcher polls a CometBFT RPC endpoint every cosmosPollInterval:
// it reads the latest height from Status, then for each new height fetches
// BlockResults, scans the events of every transaction result (begin- and
// end-block events are not scanned) for matches against the registered
// Cosmos-event triggers, and evaluates the chain's block-interval triggers.
type cosmosWatcher struct {
	chain  wavstypes.ChainKey
	rpcURL string
	lookup *Lookup
	out    chan<- wavstypes.TriggerAction
	log    zerolog.Logger

	lastHeight int64
}

func newCosmosWatcher(chain wavstypes.ChainKey, rpcURL string, lookup *Lookup, out chan<- wavstypes.TriggerAction, log zerolog.Logger) *cosmosWatcher {
	return &cosmosWatcher{chain: chain, rpcURL: rpcURL, lookup: lookup, out: out, log: log.With().Str("chain", chain.String()).Logger()}
}

func (w *cosmosWatcher) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.runOnce(ctx); err != nil {
			w.log.Warn().Err(err).Msg("cosmos watcher error, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(cosmosReconnectDelay):
		}
	}
}

func (w *cosmosWatcher) runOnce(ctx context.Context) error {
	client, err := rpchttp.New(w.rpcURL, "/websocket")
	if err != nil {
		return err
	}
	if err := client.Start(); err != nil {
		return err
	}
	defer client.Stop()

	ticker := time.NewTicker(cosmosPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.poll(ctx, client); err != nil {
				return err
			}
		}
	}
}

func (w *cosmosWatcher) poll(ctx context.Context, client *rpchttp.HTTP) error {
	status, err := client.Status(ctx)
	if err != nil {
		return err
	}
	latest := status.SyncInfo.LatestBlockHeight
	if w.lastHeight == 0 {
		w.lastHeight = latest - 1
	}
	for h := w.lastHeight + 1; h <= latest; h++ {
		results, err := client.BlockResults(ctx, &h)
		if err != nil {
			return err
		}
		w.emitFromBlockResults(ctx, h, results)
		for _, reg := range w.lookup.DueBlockTriggers(w.chain, uint64(h)) {
			action := wavstypes.TriggerAction{
				ServiceID:  reg.ServiceID,
				WorkflowID: reg.WorkflowID,
				Data: wavstypes.TriggerData{
					Kind:          wavstypes.DataBlockInterval,
					IntervalChain: w.chain,
					BlockHeight:   uint64(h),
				},
			}
			select {
			case w.out <- action:
			case <-ctx.Done():
				return nil
			}
		}
		w.lastHeight = h
	}
	return nil
}

const cosmosContractAddressAttr = "_contract_address"

func (w *cosmosWatcher) emitFromBlockResults(ctx context.Context, height int64, results *coretypes.ResultBlockResults) {
	var idx uint32
	for _, txResult := range results.TxsResults {
		for _, ev := range txResult.Events {
			address := eventAttribute(ev.Attributes, cosmosContractAddressAttr)
			w.emitEvent(ctx, height, ev.Type, address, idx, eventBytes(ev))
			idx++
		}
	}
}

func eventAttribute(attrs []abciEventAttribute, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return string(a.Value)
		}
	}
	return ""
}

func eventBytes(ev abciEvent) []byte {
	buf := make([]byte, 0, 64)
	for _, a := range ev.Attributes {
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		buf = append(buf, a.Value...)
		buf = append(buf, ';')
	}
	return buf
}

func (w *cosmosWatcher) emitEvent(ctx context.Context, height int64, eventType, address string, eventIndex uint32, raw []byte) {
	for _, reg := range w.lookup.MatchCosmos(w.chain, address, eventType) {
		action := wavstypes.TriggerAction{
			ServiceID:  reg.ServiceID,
			WorkflowID: reg.WorkflowID,
			Data: wavstypes.TriggerData{
				Kind:          wavstypes.DataCosmosEvent,
				CosmosChain:   w.chain,
				CosmosAddress: address,
				BlockHeight:   uint64(height),
				EventIndex:    eventIndex,
				RawEvent:      raw,
			},
		}
		// The trigger->dispatcher channel is bounded and watchers are
		// expected to exert backpressure rather than drop actions on the
		// floor; only ctx cancellation gets to abandon a pending send.
		select {
		case w.out <- action:
		case <-ctx.Done():
			return
		}
	}
}
