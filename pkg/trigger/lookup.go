// Package trigger multiplexes EVM/Cosmos chain watchers and block/cron
// schedulers into a single stream of TriggerActions (spec §4.4). It is
// grounded on the teacher's pkg/anchor/event_watcher.go subscription
// management (sync.RWMutex-guarded subscriber map, reconnect loop) and
// pkg/anchor/scheduler.go / pkg/batch/scheduler.go's "due at time/height"
// scheduler shape.
package trigger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/wavs/pkg/types"
)

// LookupID identifies one registered trigger across every index. It is
// simply the (service_id, workflow_id) pair rendered as a string — the
// spec's "lookup_id" needs no further indirection since service+workflow
// already uniquely names a trigger registration.
type LookupID string

func lookupID(serviceID types.ServiceID, workflowID types.WorkflowID) LookupID {
	return LookupID(serviceID.String() + ":" + string(workflowID))
}

type evmEventKey struct {
	Chain     types.ChainKey
	Address   common.Address
	EventHash common.Hash
}

type cosmosEventKey struct {
	Chain     types.ChainKey
	Address   string
	EventType string
}

// registration is what configs_by_id stores: the trigger plus the
// (service,workflow) it belongs to.
type registration struct {
	ServiceID  types.ServiceID
	WorkflowID types.WorkflowID
	Trigger    types.Trigger
}

// Lookup maintains the four index structures spec §4.4 names, updated
// atomically on every Add/Remove so no index can ever point at a stale
// or partially-removed trigger.
type Lookup struct {
	mu sync.RWMutex

	configsByID      map[LookupID]registration
	byEVMEvent       map[evmEventKey]map[LookupID]struct{}
	byCosmosEvent    map[cosmosEventKey]map[LookupID]struct{}
	byServiceWorkflow map[LookupID]LookupID // identity map; kept for spec-shape fidelity

	blockSchedulers map[types.ChainKey]*blockScheduler
	cronScheduler   *cronScheduler
}

func NewLookup() *Lookup {
	return &Lookup{
		configsByID:       make(map[LookupID]registration),
		byEVMEvent:        make(map[evmEventKey]map[LookupID]struct{}),
		byCosmosEvent:     make(map[cosmosEventKey]map[LookupID]struct{}),
		byServiceWorkflow: make(map[LookupID]LookupID),
		blockSchedulers:   make(map[types.ChainKey]*blockScheduler),
		cronScheduler:     newCronScheduler(),
	}
}

// Add registers a trigger for (serviceID, workflowID), updating every
// affected index atomically (spec §4.4).
func (l *Lookup) Add(serviceID types.ServiceID, workflowID types.WorkflowID, t types.Trigger, currentHeight func(types.ChainKey) (uint64, bool)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := lookupID(serviceID, workflowID)
	l.configsByID[id] = registration{ServiceID: serviceID, WorkflowID: workflowID, Trigger: t}
	l.byServiceWorkflow[id] = id

	switch t.Kind {
	case types.TriggerEVMEvent:
		key := evmEventKey{Chain: t.EVMChain, Address: t.EVMAddress, EventHash: t.EVMEventHash}
		if l.byEVMEvent[key] == nil {
			l.byEVMEvent[key] = make(map[LookupID]struct{})
		}
		l.byEVMEvent[key][id] = struct{}{}

	case types.TriggerCosmosEvent:
		key := cosmosEventKey{Chain: t.CosmosChain, Address: t.CosmosAddress, EventType: t.CosmosEventType}
		if l.byCosmosEvent[key] == nil {
			l.byCosmosEvent[key] = make(map[LookupID]struct{})
		}
		l.byCosmosEvent[key][id] = struct{}{}

	case types.TriggerBlockInterval:
		sched, ok := l.blockSchedulers[t.IntervalChain]
		if !ok {
			sched = newBlockScheduler()
			l.blockSchedulers[t.IntervalChain] = sched
		}
		var anchor uint64
		if currentHeight != nil {
			if h, ok := currentHeight(t.IntervalChain); ok {
				anchor = h
			}
		}
		sched.add(id, t, anchor)

	case types.TriggerCron:
		l.cronScheduler.add(id, t)
	}
}

// Remove deletes exactly one lookup_id from every index it appears in
// (spec §4.4: "Removing a workflow removes exactly one lookup_id from
// every index").
func (l *Lookup) Remove(serviceID types.ServiceID, workflowID types.WorkflowID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(lookupID(serviceID, workflowID))
}

// RemoveService removes every workflow belonging to serviceID.
func (l *Lookup) RemoveService(serviceID types.ServiceID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := serviceID.String() + ":"
	var toRemove []LookupID
	for id, reg := range l.configsByID {
		if reg.ServiceID == serviceID {
			toRemove = append(toRemove, id)
		}
	}
	_ = prefix
	for _, id := range toRemove {
		l.removeLocked(id)
	}
}

func (l *Lookup) removeLocked(id LookupID) {
	reg, ok := l.configsByID[id]
	if !ok {
		return
	}
	delete(l.configsByID, id)
	delete(l.byServiceWorkflow, id)

	switch reg.Trigger.Kind {
	case types.TriggerEVMEvent:
		key := evmEventKey{Chain: reg.Trigger.EVMChain, Address: reg.Trigger.EVMAddress, EventHash: reg.Trigger.EVMEventHash}
		if set, ok := l.byEVMEvent[key]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(l.byEVMEvent, key)
			}
		}
	case types.TriggerCosmosEvent:
		key := cosmosEventKey{Chain: reg.Trigger.CosmosChain, Address: reg.Trigger.CosmosAddress, EventType: reg.Trigger.CosmosEventType}
		if set, ok := l.byCosmosEvent[key]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(l.byCosmosEvent, key)
			}
		}
	case types.TriggerBlockInterval:
		if sched, ok := l.blockSchedulers[reg.Trigger.IntervalChain]; ok {
			sched.remove(id)
		}
	case types.TriggerCron:
		l.cronScheduler.remove(id)
	}
}

// MatchEVM returns the (service,workflow) pairs registered for an
// observed EVM log.
func (l *Lookup) MatchEVM(chain types.ChainKey, address common.Address, eventHash common.Hash) []registration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	key := evmEventKey{Chain: chain, Address: address, EventHash: eventHash}
	var out []registration
	for id := range l.byEVMEvent[key] {
		out = append(out, l.configsByID[id])
	}
	return out
}

// MatchCosmos returns the (service,workflow) pairs registered for an
// observed Cosmos event.
func (l *Lookup) MatchCosmos(chain types.ChainKey, address, eventType string) []registration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	key := cosmosEventKey{Chain: chain, Address: address, EventType: eventType}
	var out []registration
	for id := range l.byCosmosEvent[key] {
		out = append(out, l.configsByID[id])
	}
	return out
}

// EVMSubscriptionFilters returns the OR'd (addresses, topics) filter spec
// §4.4 requires for a single `eth_subscribe("logs", ...)` call: every
// currently-registered address, and one topic slot containing every
// currently-registered event hash ("[[t1, t2, ...]]").
func (l *Lookup) EVMSubscriptionFilters(chain types.ChainKey) (addresses []common.Address, topics []common.Hash) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seenAddr := make(map[common.Address]struct{})
	seenTopic := make(map[common.Hash]struct{})
	for key := range l.byEVMEvent {
		if key.Chain != chain {
			continue
		}
		if _, ok := seenAddr[key.Address]; !ok {
			seenAddr[key.Address] = struct{}{}
			addresses = append(addresses, key.Address)
		}
		if _, ok := seenTopic[key.EventHash]; !ok {
			seenTopic[key.EventHash] = struct{}{}
			topics = append(topics, key.EventHash)
		}
	}
	return addresses, topics
}

// DueBlockTriggers returns every registration due to fire at height h on
// chain (block-interval scheduler, spec §4.4).
func (l *Lookup) DueBlockTriggers(chain types.ChainKey, h uint64) []registration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sched, ok := l.blockSchedulers[chain]
	if !ok {
		return nil
	}
	var out []registration
	for _, id := range sched.due(h) {
		out = append(out, l.configsByID[id])
	}
	return out
}

// DueCronTriggers pops and requeues every cron entry due at or before now.
func (l *Lookup) DueCronTriggers(nowUnix int64) []registration {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []registration
	for _, id := range l.cronScheduler.pop(nowUnix) {
		out = append(out, l.configsByID[id])
	}
	return out
}
