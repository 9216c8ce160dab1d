package trigger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/wavs/pkg/types"
)

func testChain() types.ChainKey {
	return types.NewChainKey(types.NamespaceEVM, "1")
}

func TestLookupAddMatchRemove(t *testing.T) {
	l := NewLookup()
	serviceID := types.ServiceID{0x01}
	workflowID := types.WorkflowID("wf1")
	addr := common.HexToAddress("0xabc0000000000000000000000000000000dead")
	eventHash := common.HexToHash("0xdeadbeef")

	tr := types.Trigger{
		Kind:         types.TriggerEVMEvent,
		EVMChain:     testChain(),
		EVMAddress:   addr,
		EVMEventHash: eventHash,
	}
	l.Add(serviceID, workflowID, tr, nil)

	matches := l.MatchEVM(testChain(), addr, eventHash)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].ServiceID != serviceID || matches[0].WorkflowID != workflowID {
		t.Fatalf("unexpected match: %+v", matches[0])
	}

	addrs, topics := l.EVMSubscriptionFilters(testChain())
	if len(addrs) != 1 || addrs[0] != addr {
		t.Fatalf("unexpected addresses: %v", addrs)
	}
	if len(topics) != 1 || topics[0] != eventHash {
		t.Fatalf("unexpected topics: %v", topics)
	}

	l.Remove(serviceID, workflowID)
	if matches := l.MatchEVM(testChain(), addr, eventHash); len(matches) != 0 {
		t.Fatalf("expected no matches after removal, got %d", len(matches))
	}
	addrs, topics = l.EVMSubscriptionFilters(testChain())
	if len(addrs) != 0 || len(topics) != 0 {
		t.Fatalf("expected empty filters after removal, got %v %v", addrs, topics)
	}
}

func TestLookupRemoveServiceRemovesAllWorkflows(t *testing.T) {
	l := NewLookup()
	serviceID := types.ServiceID{0x02}
	addr := common.HexToAddress("0x1")
	hash := common.HexToHash("0x2")

	l.Add(serviceID, "wf1", types.Trigger{Kind: types.TriggerEVMEvent, EVMChain: testChain(), EVMAddress: addr, EVMEventHash: hash}, nil)
	l.Add(serviceID, "wf2", types.Trigger{Kind: types.TriggerCron, CronSchedule: "*/5 * * * * *"}, nil)

	l.RemoveService(serviceID)

	if matches := l.MatchEVM(testChain(), addr, hash); len(matches) != 0 {
		t.Fatalf("expected no EVM matches after RemoveService, got %d", len(matches))
	}
	if due := l.DueCronTriggers(1893456000); len(due) != 0 {
		t.Fatalf("expected no cron matches after RemoveService, got %d", len(due))
	}
}

func TestBlockSchedulerFreezesAnchorOnRegistration(t *testing.T) {
	l := NewLookup()
	serviceID := types.ServiceID{0x03}
	chain := testChain()

	observed := func(types.ChainKey) (uint64, bool) { return 100, true }
	l.Add(serviceID, "wf1", types.Trigger{Kind: types.TriggerBlockInterval, IntervalChain: chain, NBlocks: 10}, observed)

	if due := l.DueBlockTriggers(chain, 105); len(due) != 0 {
		t.Fatalf("expected no triggers due before anchor+n, got %d", len(due))
	}
	due := l.DueBlockTriggers(chain, 110)
	if len(due) != 1 {
		t.Fatalf("expected 1 trigger due at height 110, got %d", len(due))
	}
	if due2 := l.DueBlockTriggers(chain, 110); len(due2) != 0 {
		t.Fatalf("expected trigger to not fire twice at the same height, got %d", len(due2))
	}
	due = l.DueBlockTriggers(chain, 120)
	if len(due) != 1 {
		t.Fatalf("expected 1 trigger due at height 120, got %d", len(due))
	}
}

func TestCronSchedulerFiresEverySecond(t *testing.T) {
	l := NewLookup()
	serviceID := types.ServiceID{0x04}
	l.Add(serviceID, "wf1", types.Trigger{Kind: types.TriggerCron, CronSchedule: "* * * * * *"}, nil)

	base := int64(1893456000)
	due := l.DueCronTriggers(base)
	if len(due) != 1 {
		t.Fatalf("expected 1 due cron trigger, got %d", len(due))
	}
	due = l.DueCronTriggers(base)
	if len(due) != 0 {
		t.Fatalf("expected no repeat fire at the same second, got %d", len(due))
	}
	due = l.DueCronTriggers(base + 1)
	if len(due) != 1 {
		t.Fatalf("expected 1 due cron trigger a second later, got %d", len(due))
	}
}

func TestCronSchedulerRespectsStartEndWindow(t *testing.T) {
	l := NewLookup()
	serviceID := types.ServiceID{0x05}
	start := int64(1893456100)
	end := int64(1893456200)
	l.Add(serviceID, "wf1", types.Trigger{
		Kind:          types.TriggerCron,
		CronSchedule:  "* * * * * *",
		CronStartTime: &start,
		CronEndTime:   &end,
	}, nil)

	if due := l.DueCronTriggers(start - 1); len(due) != 0 {
		t.Fatalf("expected no fire before start, got %d", len(due))
	}
	if due := l.DueCronTriggers(start); len(due) != 1 {
		t.Fatalf("expected fire at start, got %d", len(due))
	}
	if due := l.DueCronTriggers(end + 1); len(due) != 0 {
		t.Fatalf("expected no fire after end, got %d", len(due))
	}
}
