package trigger

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/certen/wavs/pkg/types"
)

// cronEntry pairs a parsed second-resolution schedule with the trigger it
// came from, tracking the next fire time the way robfig/cron's own
// internal Entry does, but driven by our own pop() instead of cron.Cron's
// goroutine so firing stays on the subsystem's one-second poll (runCron);
// block-interval triggers are evaluated on new chain heads instead.
type cronEntry struct {
	trigger types.Trigger
	sched   cron.Schedule
	nextFire int64 // unix seconds, 0 = not yet scheduled
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type cronScheduler struct {
	entries map[LookupID]*cronEntry
}

func newCronScheduler() *cronScheduler {
	return &cronScheduler{entries: make(map[LookupID]*cronEntry)}
}

func (s *cronScheduler) add(id LookupID, t types.Trigger) {
	sched, err := cronParser.Parse(t.CronSchedule)
	if err != nil {
		return // invalid schedule string: the trigger is left unscheduled and never fires; nothing earlier parses it
	}
	s.entries[id] = &cronEntry{trigger: t, sched: sched}
}

func (s *cronScheduler) remove(id LookupID) {
	delete(s.entries, id)
}

// pop returns every lookup_id due at or before nowUnix, advancing each
// entry's next_fire to the following occurrence (robfig/cron's Next()).
func (s *cronScheduler) pop(nowUnix int64) []LookupID {
	var out []LookupID
	now := unixTime(nowUnix)
	for id, e := range s.entries {
		if e.trigger.CronStartTime != nil && nowUnix < *e.trigger.CronStartTime {
			continue
		}
		if e.trigger.CronEndTime != nil && nowUnix > *e.trigger.CronEndTime {
			continue
		}
		if e.nextFire == 0 {
			// Next() returns the first occurrence strictly after its argument;
			// back up one nanosecond so an entry whose schedule matches "now"
			// exactly fires on this poll instead of being skipped to the next one.
			e.nextFire = e.sched.Next(now.Add(-time.Nanosecond)).Unix()
		}
		if e.nextFire > nowUnix {
			continue
		}
		out = append(out, id)
		for e.nextFire <= nowUnix {
			e.nextFire = e.sched.Next(unixTime(e.nextFire)).Unix()
		}
	}
	return out
}
