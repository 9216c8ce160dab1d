// Package aggregator implements the quorum-queue accumulation subsystem
// of spec §4.8: accepts operator submissions over HTTP, drives the
// workflow's aggregation component, and submits on-chain once the
// component-decided quorum policy is satisfied.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/certen/wavs/internal/wavslog"
	"github.com/certen/wavs/pkg/dispatcher"
	"github.com/certen/wavs/pkg/store"
	"github.com/certen/wavs/pkg/types"
)

// OnChainSubmitter performs the actual on-chain submit call for a
// Submit{} action (spec §4.8 step 3). Implemented by pkg/submission, kept
// as an interface here to avoid an import cycle.
type OnChainSubmitter interface {
	SubmitOnChain(ctx context.Context, serviceID types.ServiceID, chain types.ChainKey, contract types.SubmitTarget, gasPrice *uint64, subs []types.Submission) (types.SubmitOutcome, error)
}

// Broadcaster forwards a submission to peer aggregator instances (spec
// §4.8 step "broadcast... future work; current peer is Me"). The single
// production implementation only ever reports itself.
type Broadcaster interface {
	Broadcast(ctx context.Context, packet types.Packet) []string
}

// selfBroadcaster is the only Broadcaster this repo ships: peer discovery
// and gossip are future work per spec §9.
type selfBroadcaster struct{}

func (selfBroadcaster) Broadcast(context.Context, types.Packet) []string { return []string{"me"} }

// Aggregator owns the quorum-queue store and the two transactional lock
// maps spec §4.8 requires.
type Aggregator struct {
	queues     *store.QueueStore
	services   *store.ServiceStore
	onChain    OnChainSubmitter
	broadcast  Broadcaster
	dispatcher *dispatcher.Dispatcher

	queueLocksMu sync.Mutex
	queueLocks   map[types.QuorumQueueID]*sync.Mutex

	chainLocksMu sync.Mutex
	chainLocks   map[types.ChainKey]*sync.Mutex

	log zerolog.Logger
}

// Config wires an Aggregator's dependencies.
type Config struct {
	Queues     *store.QueueStore
	Services   *store.ServiceStore
	OnChain    OnChainSubmitter
	Dispatcher *dispatcher.Dispatcher
}

func New(cfg Config) *Aggregator {
	return &Aggregator{
		queues:     cfg.Queues,
		services:   cfg.Services,
		onChain:    cfg.OnChain,
		broadcast:  selfBroadcaster{},
		dispatcher: cfg.Dispatcher,
		queueLocks: make(map[types.QuorumQueueID]*sync.Mutex),
		chainLocks: make(map[types.ChainKey]*sync.Mutex),
		log:        wavslog.WithComponent("aggregator"),
	}
}

func (a *Aggregator) lockQueue(id types.QuorumQueueID) func() {
	a.queueLocksMu.Lock()
	l, ok := a.queueLocks[id]
	if !ok {
		l = &sync.Mutex{}
		a.queueLocks[id] = l
	}
	a.queueLocksMu.Unlock()
	l.Lock()
	return l.Unlock
}

func (a *Aggregator) lockChain(chain types.ChainKey) func() {
	a.chainLocksMu.Lock()
	l, ok := a.chainLocks[chain]
	if !ok {
		l = &sync.Mutex{}
		a.chainLocks[chain] = l
	}
	a.chainLocksMu.Unlock()
	l.Lock()
	return l.Unlock
}

// AddPacket implements the inbound path of spec §4.8: looks up the
// referenced service, verifies the workflow targets this aggregator,
// broadcasts to peers, and asks the dispatcher to run the aggregation
// component for the newly arrived submission.
func (a *Aggregator) AddPacket(ctx context.Context, req types.AddPacketRequest) ([]types.AddPacketResponse, error) {
	svc, err := a.services.Get(req.Packet.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: unknown service %s", req.Packet.ServiceID)
	}
	workflow, ok := svc.Workflow(req.Packet.WorkflowID)
	if !ok {
		return nil, fmt.Errorf("aggregator: unknown workflow %s", req.Packet.WorkflowID)
	}
	if workflow.Submit.Kind != types.SubmitAggregator {
		return nil, fmt.Errorf("aggregator: workflow %s does not use Submit::Aggregator", req.Packet.WorkflowID)
	}

	a.broadcast.Broadcast(ctx, req.Packet)

	queueID := types.QuorumQueueID{
		EventID: req.Packet.Submission.EventID,
		Target:  types.SubmitTarget{Chain: workflow.Submit.EVMChain, Address: workflow.Submit.EVMAddress},
	}

	unlock := a.lockQueue(queueID)
	state, err := a.queues.Insert(queueID, req.Packet.Submission)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("aggregator: insert submission: %w", err)
	}
	if err := a.queues.AppendAction(queueID, store.ActionLog{At: time.Now(), Action: "packet_received"}); err != nil {
		a.log.Warn().Err(err).Msg("failed to append action log entry")
	}

	if state == types.QueueBurned {
		return []types.AddPacketResponse{{Type: types.RespBurned}}, nil
	}

	var submissions []types.Submission
	if _, subs, err := a.queues.Load(queueID); err == nil {
		submissions = subs
	}

	// The HTTP caller wants to know whether *this* packet pushed the queue
	// over quorum, so aggregation runs inline here rather than being
	// dispatched onto the async command channel: a dispatched run would
	// race the HTTP response, which is why "sent" never showed up in
	// practice even though the on-chain submit was reliably happening.
	batch, err := a.dispatcher.RunAggregation(ctx, req.Packet.ServiceID, req.Packet.WorkflowID, req.Packet, state, submissions)
	if err != nil {
		return nil, fmt.Errorf("aggregator: run aggregation: %w", err)
	}

	if len(batch.Actions) == 0 {
		return []types.AddPacketResponse{{Type: types.RespAggregated, Count: len(submissions)}}, nil
	}

	responses := make([]types.AddPacketResponse, 0, len(batch.Actions))
	for _, action := range batch.Actions {
		switch action.Kind {
		case types.ActionSubmit:
			responses = append(responses, a.processSubmit(ctx, batch, queueID, action))
		case types.ActionTimer:
			// A Timer{} action schedules future work; it cannot be folded
			// into this response; the HTTP caller isn't kept waiting on it.
			go a.processTimer(context.Background(), batch, action)
			responses = append(responses, types.AddPacketResponse{Type: types.RespAggregated, Count: len(submissions)})
		}
	}
	return responses, nil
}

// ProcessActions runs every action an aggregation component returned for
// one packet, serialized per queue and per chain (spec §4.8 "per-action
// processing").
func (a *Aggregator) ProcessActions(ctx context.Context, batch dispatcher.AggregatorActionBatch) {
	queueID := types.QuorumQueueID{EventID: batch.EventID, Target: batch.Target}

	for _, action := range batch.Actions {
		switch action.Kind {
		case types.ActionSubmit:
			a.processSubmit(ctx, batch, queueID, action)
		case types.ActionTimer:
			a.processTimer(ctx, batch, action)
		}
	}
}

// processSubmit runs a Submit{} action's on-chain call and reports the
// outcome both as a SubmitCallback (for the async ProcessActions path,
// which ignores the return value) and as the AddPacketResponse AddPacket's
// synchronous caller needs.
func (a *Aggregator) processSubmit(ctx context.Context, batch dispatcher.AggregatorActionBatch, queueID types.QuorumQueueID, action types.AggregatorAction) types.AddPacketResponse {
	unlockQueue := a.lockQueue(queueID)
	defer unlockQueue()

	state, subs, err := a.queues.Load(queueID)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to load quorum queue")
		return types.AddPacketResponse{Type: types.RespError, Reason: err.Error()}
	}
	if state == types.QueueBurned {
		a.log.Warn().Str("event_id", queueID.EventID.String()).Msg("submit action on burned queue, skipping")
		return types.AddPacketResponse{Type: types.RespBurned}
	}

	unlockChain := a.lockChain(action.Chain)
	outcome, err := a.onChain.SubmitOnChain(ctx, batch.ServiceID, action.Chain, types.SubmitTarget{Chain: action.Chain, Address: action.ContractAddr}, action.GasPrice, subs)
	unlockChain()

	if err != nil {
		a.log.Warn().Err(err).Msg("on-chain submit failed")
		a.forwardCallback(ctx, batch, types.SubmitOutcome{Kind: types.OutcomeError, Err: err})
		return types.AddPacketResponse{Type: types.RespError, Reason: err.Error()}
	}

	switch outcome.Kind {
	case types.OutcomeOK:
		if err := a.queues.Burn(queueID); err != nil {
			a.log.Error().Err(err).Msg("failed to burn quorum queue after successful submit")
		}
		a.forwardCallback(ctx, batch, outcome)
		return types.AddPacketResponse{Type: types.RespSent, Count: len(subs), TxHash: outcome.TxHash.Hex()}
	case types.OutcomeInsufficientQuorum:
		a.forwardCallback(ctx, batch, outcome)
		return types.AddPacketResponse{Type: types.RespAggregated, Count: len(subs)}
	default:
		a.forwardCallback(ctx, batch, outcome)
		reason := ""
		if outcome.Err != nil {
			reason = outcome.Err.Error()
		}
		return types.AddPacketResponse{Type: types.RespError, Reason: reason}
	}
}

func (a *Aggregator) processTimer(ctx context.Context, batch dispatcher.AggregatorActionBatch, action types.AggregatorAction) {
	select {
	case <-time.After(time.Duration(action.DelaySeconds) * time.Second):
	case <-ctx.Done():
		return
	}

	cmd := dispatcher.Command{
		Kind:        dispatcher.CommandAggregatorExecute,
		ServiceID:   batch.ServiceID,
		WorkflowID:  batch.WorkflowID,
		ExecuteKind: types.ExecuteTimerCallback,
	}
	select {
	case a.dispatcher.Commands() <- cmd:
	case <-ctx.Done():
	}
}

func (a *Aggregator) forwardCallback(ctx context.Context, batch dispatcher.AggregatorActionBatch, outcome types.SubmitOutcome) {
	cmd := dispatcher.Command{
		Kind:       dispatcher.CommandSubmitCallback,
		ServiceID:  batch.ServiceID,
		WorkflowID: batch.WorkflowID,
		Outcome:    outcome,
	}
	select {
	case a.dispatcher.Commands() <- cmd:
	case <-ctx.Done():
	}
}

// Run drains the dispatcher's AggregatorActions channel until it closes
// (on dispatcher shutdown).
func (a *Aggregator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-a.dispatcher.AggregatorActions():
			if !ok {
				return
			}
			go a.ProcessActions(ctx, batch)
		}
	}
}
