package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/certen/wavs/internal/wavslog"
	"github.com/certen/wavs/pkg/types"
)

const cronPollInterval = 1 * time.Second

// ChainEndpoints maps a chain key to the RPC/WS URL the subsystem dials
// for that chain's watcher.
type ChainEndpoints struct {
	Chain types.ChainKey
	URL   string
}

// Subsystem owns the lookup tables and every chain watcher/scheduler
// goroutine, multiplexing their output onto a single bounded channel
// (spec §4.4).
type Subsystem struct {
	Lookup *Lookup

	out chan types.TriggerAction
	log zerolog.Logger

	mu       sync.Mutex
	watchers map[types.ChainKey]func(context.Context)
}

// New builds a Subsystem with the given outbound channel capacity
// (spec §4.4's "bounded channel"; the dispatcher reads the other end).
func New(channelSize int, chains []ChainEndpoints) *Subsystem {
	s := &Subsystem{
		Lookup:   NewLookup(),
		out:      make(chan types.TriggerAction, channelSize),
		log:      wavslog.WithComponent("trigger"),
		watchers: make(map[types.ChainKey]func(context.Context)),
	}
	for _, ce := range chains {
		switch ce.Chain.Namespace {
		case types.NamespaceEVM:
			w := newEVMWatcher(ce.Chain, ce.URL, s.Lookup, s.out, s.log)
			s.watchers[ce.Chain] = w.run
		case types.NamespaceCosmos:
			w := newCosmosWatcher(ce.Chain, ce.URL, s.Lookup, s.out, s.log)
			s.watchers[ce.Chain] = w.run
		}
	}
	return s
}

// Out is the bounded stream of fired TriggerActions.
func (s *Subsystem) Out() <-chan types.TriggerAction {
	return s.out
}

// Run launches every chain watcher plus the cron poller and blocks until
// ctx is cancelled, at which point it closes the outbound channel so
// downstream readers (the dispatcher) see a clean shutdown.
func (s *Subsystem) Run(ctx context.Context) {
	var wg sync.WaitGroup

	s.mu.Lock()
	for _, run := range s.watchers {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}
	s.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runCron(ctx)
	}()

	wg.Wait()
	close(s.out)
}

func (s *Subsystem) runCron(ctx context.Context) {
	ticker := time.NewTicker(cronPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := pollTimeUnix()
			for _, reg := range s.Lookup.DueCronTriggers(now) {
				action := types.TriggerAction{
					ServiceID:  reg.ServiceID,
					WorkflowID: reg.WorkflowID,
					Data: types.TriggerData{
						Kind:         types.DataCron,
						CronSchedule: reg.Trigger.CronSchedule,
						TriggerTime:  now,
					},
				}
				select {
				case s.out <- action:
				default:
					s.log.Warn().Str("service_id", action.ServiceID.String()).Msg("trigger channel full, dropping cron action")
				}
			}
		}
	}
}

// AddWorkflow registers a workflow's trigger. currentHeight supplies the
// freeze-on-first-observed-height anchor for block-interval triggers; it
// may legitimately return (0, false) if the chain has not yet produced a
// head, in which case anchoring happens lazily on the first observed block.
func (s *Subsystem) AddWorkflow(serviceID types.ServiceID, workflowID types.WorkflowID, w types.Workflow, currentHeight func(types.ChainKey) (uint64, bool)) {
	s.Lookup.Add(serviceID, workflowID, w.Trigger, currentHeight)
}

// RemoveWorkflow deregisters a single workflow.
func (s *Subsystem) RemoveWorkflow(serviceID types.ServiceID, workflowID types.WorkflowID) {
	s.Lookup.Remove(serviceID, workflowID)
}

// RemoveService deregisters every workflow belonging to serviceID.
func (s *Subsystem) RemoveService(serviceID types.ServiceID) {
	s.Lookup.RemoveService(serviceID)
}
