// Package dispatcher implements the central trigger→engine→submission
// router of spec §4.6, grounded on the teacher's pkg/batch/processor.go
// channel-driven worker loop: pull a unit of work off a channel, process
// it on a spawned task, report failures without halting the loop.
package dispatcher

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/certen/wavs/internal/wavslog"
	"github.com/certen/wavs/pkg/engine"
	"github.com/certen/wavs/pkg/store"
	"github.com/certen/wavs/pkg/types"
)

// Submitter is the submission manager's dispatcher-facing contract
// (spec §4.7 handoff point). Kept as an interface here so pkg/dispatcher
// never imports pkg/submission.
type Submitter interface {
	Submit(ctx context.Context, serviceID types.ServiceID, workflowID types.WorkflowID, target types.Submit, envelope types.Envelope, triggerData []byte) error
	AddService(ctx context.Context, serviceID types.ServiceID) error
	RemoveService(ctx context.Context, serviceID types.ServiceID) error
}

// TriggerRegistrar is the trigger subsystem's dispatcher-facing contract,
// invoked when a service is added or removed so the lookup tables stay in
// sync with the service store (spec §4.4 + §4.6).
type TriggerRegistrar interface {
	AddWorkflow(serviceID types.ServiceID, workflowID types.WorkflowID, w types.Workflow, currentHeight func(types.ChainKey) (uint64, bool))
	RemoveService(serviceID types.ServiceID)
}

// AggregatorActionBatch is what a CommandAggregatorExecute produces: the
// set of actions an aggregation component emitted for one packet, handed
// back to the aggregator subsystem over its own unidirectional channel
// (spec §5 "cyclic references... implement with two unidirectional
// channels to avoid owning cycles").
type AggregatorActionBatch struct {
	ServiceID  types.ServiceID
	WorkflowID types.WorkflowID
	EventID    types.EventID
	Target     types.SubmitTarget
	Actions    []types.AggregatorAction
}

// Config wires a Dispatcher's dependencies.
type Config struct {
	Store     *store.ServiceStore
	KV        *store.KVStore
	Engine    *engine.Engine
	Submitter Submitter
	Trigger   TriggerRegistrar
	Chains    engine.ChainQuerier
	TriggerIn <-chan types.TriggerAction
}

// Dispatcher is the central router of spec §4.6.
type Dispatcher struct {
	store     *store.ServiceStore
	kv        *store.KVStore
	engine    *engine.Engine
	submitter Submitter
	trigger   TriggerRegistrar
	chains    engine.ChainQuerier
	triggerIn <-chan types.TriggerAction

	commands      chan Command
	aggregatorOut chan AggregatorActionBatch

	log zerolog.Logger

	workflowMu    sync.Mutex
	workflowLocks map[string]*sync.Mutex

	orderingMu       sync.Mutex
	orderingCounters map[types.EventID]uint64
}

func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		store:            cfg.Store,
		kv:               cfg.KV,
		engine:           cfg.Engine,
		submitter:        cfg.Submitter,
		trigger:          cfg.Trigger,
		chains:           cfg.Chains,
		triggerIn:        cfg.TriggerIn,
		commands:         make(chan Command, 64),
		aggregatorOut:    make(chan AggregatorActionBatch, 64),
		log:              wavslog.WithComponent("dispatcher"),
		workflowLocks:    make(map[string]*sync.Mutex),
		orderingCounters: make(map[types.EventID]uint64),
	}
}

// Commands returns the channel others (the HTTP surface, the aggregator)
// send Commands on.
func (d *Dispatcher) Commands() chan<- Command {
	return d.commands
}

// AggregatorActions streams the results of AggregatorExecute commands
// back to the aggregator subsystem.
func (d *Dispatcher) AggregatorActions() <-chan AggregatorActionBatch {
	return d.aggregatorOut
}

// Run drains both the trigger subsystem's outbound channel and the
// command channel until ctx is cancelled or a CommandShutdown arrives,
// fanning work out across workflows via spawned tasks while serializing
// within a single workflow (spec §5: "within one workflow, triggers are
// handled in the order the trigger subsystem emits them... across
// workflows no ordering is guaranteed").
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	// tails maps each workflow to a channel closed when its most recently
	// spawned trigger task finishes; each new task waits on its
	// predecessor's channel, so one workflow's triggers run in arrival order.
	tails := make(map[string]chan struct{})

runLoop:
	for {
		select {
		case <-ctx.Done():
			break runLoop
		case action, ok := <-d.triggerIn:
			if !ok {
				d.triggerIn = nil
				continue
			}
			key := workflowLockKey(action.ServiceID, action.WorkflowID)
			prev, done := tails[key], make(chan struct{})
			tails[key] = done
			wg.Add(1)
			go func(a types.TriggerAction) {
				defer wg.Done()
				defer close(done)
				if prev != nil {
					<-prev
				}
				d.handleTrigger(ctx, a)
			}(action)
		case cmd := <-d.commands:
			if cmd.Kind == CommandShutdown {
				break runLoop
			}
			wg.Add(1)
			go func(c Command) {
				defer wg.Done()
				d.handleCommand(ctx, c)
			}(cmd)
		}
	}

	wg.Wait()
	close(d.aggregatorOut)
}

func workflowLockKey(serviceID types.ServiceID, workflowID types.WorkflowID) string {
	return serviceID.String() + ":" + string(workflowID)
}

func (d *Dispatcher) lockFor(key string) *sync.Mutex {
	d.workflowMu.Lock()
	defer d.workflowMu.Unlock()
	m, ok := d.workflowLocks[key]
	if !ok {
		m = &sync.Mutex{}
		d.workflowLocks[key] = m
	}
	return m
}

func (d *Dispatcher) nextOrdering(eventID types.EventID) uint64 {
	d.orderingMu.Lock()
	defer d.orderingMu.Unlock()
	n := d.orderingCounters[eventID]
	d.orderingCounters[eventID] = n + 1
	return n
}

func (d *Dispatcher) handleTrigger(ctx context.Context, action types.TriggerAction) {
	key := workflowLockKey(action.ServiceID, action.WorkflowID)
	lock := d.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	log := wavslog.WithService(wavslog.WithWorkflow(d.log, string(action.WorkflowID)), action.ServiceID.String())

	svc, err := d.store.Get(action.ServiceID)
	if err != nil {
		log.Info().Msg("dropping trigger action: service no longer registered")
		return
	}
	workflow, ok := svc.Workflow(action.WorkflowID)
	if !ok {
		log.Info().Msg("dropping trigger action: workflow no longer registered")
		return
	}
	if svc.Status == types.ServicePaused {
		log.Debug().Msg("skipping trigger action: service paused")
		return
	}

	host, err := d.hostContextFor(action.ServiceID, workflow, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to build host context")
		return
	}

	input, err := json.Marshal(action.Data)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal trigger data")
		return
	}

	result, err := d.engine.Execute(ctx, workflow.Component, workflow.Component.Source.Digest, input, host)
	if err != nil {
		log.Warn().Err(err).Msg("engine execution failed")
		return
	}

	eventID := types.DeriveEventID(action.Data)
	envelope := types.Envelope{
		EventID:  eventID,
		Ordering: types.OrderingFromUint64(d.nextOrdering(eventID)),
		Payload:  result.Output,
	}

	if err := d.submitter.Submit(ctx, action.ServiceID, action.WorkflowID, workflow.Submit, envelope, input); err != nil {
		log.Warn().Err(err).Msg("submission failed")
	}
}

func (d *Dispatcher) hostContextFor(serviceID types.ServiceID, w types.Workflow, log zerolog.Logger) (*engine.HostContext, error) {
	var kvCtx *store.Context
	if d.kv != nil {
		var err error
		kvCtx, err = d.kv.Open(serviceID.String(), "default")
		if err != nil {
			return nil, err
		}
	}
	return &engine.HostContext{
		Permissions: w.Component.Permissions,
		KV:          kvCtx,
		Chains:      d.chains,
		EnvKeys:     w.Component.EnvKeys,
		EnvLookup:   os.LookupEnv,
		Log: func(level, msg string) {
			switch level {
			case "debug":
				log.Debug().Msg(msg)
			case "warn":
				log.Warn().Msg(msg)
			case "error":
				log.Error().Msg(msg)
			default:
				log.Info().Msg(msg)
			}
		},
	}, nil
}
