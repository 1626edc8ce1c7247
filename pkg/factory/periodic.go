package factory

import (
	"time"

	"github.com/robfig/cron/v3"
)

// simEpoch anchors simulated hours to a synthetic time.Time so a
// robfig/cron Schedule — built for wall-clock cron expressions — can be
// reused as a pure function of simulated time instead of real time.
// Nothing in this package ever starts a cron.Cron goroutine runner,
// which would poll time.Now(); only Schedule.Next is called, against a
// synthetic clock derived from the simulated hour counter, so periodic
// triggers stay exactly reproducible across runs with the same seed.
var simEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// periodicTrigger fires once the simulated clock has advanced past the
// next occurrence of a cron schedule anchored at simEpoch.
type periodicTrigger struct {
	schedule cron.Schedule
	last     time.Time
}

// newEveryTrigger builds a trigger that fires every d, the way spec.md
// §4.1 step 5 names "weekly (every 168 h)" cleanroom cleaning.
func newEveryTrigger(d time.Duration) *periodicTrigger {
	return &periodicTrigger{schedule: cron.Every(d), last: simEpoch}
}

// due reports whether simHours has crossed the next scheduled
// occurrence, advancing the trigger's internal clock when it fires.
func (p *periodicTrigger) due(simHours float64) bool {
	now := simEpoch.Add(time.Duration(simHours * float64(time.Hour)))
	next := p.schedule.Next(p.last)
	if now.Before(next) {
		return false
	}
	p.last = now
	return true
}
