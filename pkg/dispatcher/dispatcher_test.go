package dispatcher

import (
	"sync"
	"testing"

	"github.com/certen/wavs/pkg/types"
)

func TestNextOrderingIsMonotonicPerEvent(t *testing.T) {
	d := &Dispatcher{orderingCounters: make(map[types.EventID]uint64)}
	var eventA, eventB types.EventID
	eventA[0] = 0xAA
	eventB[0] = 0xBB

	if n := d.nextOrdering(eventA); n != 0 {
		t.Fatalf("expected first ordering 0, got %d", n)
	}
	if n := d.nextOrdering(eventA); n != 1 {
		t.Fatalf("expected second ordering 1, got %d", n)
	}
	if n := d.nextOrdering(eventB); n != 0 {
		t.Fatalf("expected a fresh event to start at 0, got %d", n)
	}
	if n := d.nextOrdering(eventA); n != 2 {
		t.Fatalf("expected third ordering for eventA to be 2, got %d", n)
	}
}

func TestLockForReturnsSameMutexForSameKey(t *testing.T) {
	d := &Dispatcher{workflowLocks: make(map[string]*sync.Mutex)}
	a := d.lockFor("svc:wf1")
	b := d.lockFor("svc:wf1")
	if a != b {
		t.Fatalf("expected the same mutex instance for the same workflow key")
	}
	c := d.lockFor("svc:wf2")
	if a == c {
		t.Fatalf("expected distinct mutexes for distinct workflow keys")
	}
}

func TestWorkflowLockKeyIsStable(t *testing.T) {
	serviceID := types.ServiceID{0x01}
	k1 := workflowLockKey(serviceID, "wf1")
	k2 := workflowLockKey(serviceID, "wf1")
	if k1 != k2 {
		t.Fatalf("expected identical keys for identical inputs, got %q vs %q", k1, k2)
	}
	if k3 := workflowLockKey(serviceID, "wf2"); k3 == k1 {
		t.Fatalf("expected different keys for different workflow IDs")
	}
}
