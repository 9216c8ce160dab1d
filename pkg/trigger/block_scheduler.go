package trigger

import "github.com/certen/wavs/pkg/types"

// blockEntry tracks one block-interval trigger's next-due height. The
// anchor is frozen at the height first observed when the trigger was
// registered (DESIGN.md Open Question: reorg anchor policy) rather than
// recomputed from StartBlock on every reorg, so a chain reorg never
// changes which heights a trigger fires on.
type blockEntry struct {
	trigger  types.Trigger
	nextDue  uint64
	anchored bool
}

// blockScheduler is the per-chain block-interval scheduler of spec §4.4.
type blockScheduler struct {
	entries map[LookupID]*blockEntry
}

func newBlockScheduler() *blockScheduler {
	return &blockScheduler{entries: make(map[LookupID]*blockEntry)}
}

func (s *blockScheduler) add(id LookupID, t types.Trigger, observedHeight uint64) {
	anchor := observedHeight
	if t.StartBlock != nil && *t.StartBlock > anchor {
		anchor = *t.StartBlock
	}
	n := t.NBlocks
	if n == 0 {
		n = 1
	}
	s.entries[id] = &blockEntry{trigger: t, nextDue: anchor + n, anchored: observedHeight != 0}
}

func (s *blockScheduler) remove(id LookupID) {
	delete(s.entries, id)
}

// due returns every lookup_id whose next_due height is <= h, advancing
// each by n_blocks (possibly more than once, if h skipped several
// intervals) so no trigger fires twice for the same height band.
func (s *blockScheduler) due(h uint64) []LookupID {
	var out []LookupID
	for id, e := range s.entries {
		if e.trigger.EndBlock != nil && h > *e.trigger.EndBlock {
			continue
		}
		n := e.trigger.NBlocks
		if n == 0 {
			n = 1
		}
		if !e.anchored {
			// No height was known at registration: anchor on this first
			// observed head the same way add anchors on a known height.
			anchor := h
			if e.trigger.StartBlock != nil && *e.trigger.StartBlock > anchor {
				anchor = *e.trigger.StartBlock
			}
			e.nextDue, e.anchored = anchor+n, true
		}
		if e.nextDue > h {
			continue
		}
		out = append(out, id)
		for e.nextDue <= h {
			e.nextDue += n
		}
	}
	return out
}
