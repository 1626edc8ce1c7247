// Package factory owns the simulation as a whole: it constructs every
// subsystem from a resolved spec file, seeds initial state, and drives
// the fixed-Δt tick loop of spec.md §4.1 until the run's top-level
// goals are satisfied, a deadlock is detected, or the simulated-time
// horizon is exhausted.
package factory

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/selfreplicating/factorysim/pkg/apis/config/settings"
	"github.com/selfreplicating/factorysim/pkg/catalog"
	"github.com/selfreplicating/factorysim/pkg/energy"
	"github.com/selfreplicating/factorysim/pkg/logctx"
	"github.com/selfreplicating/factorysim/pkg/module"
	"github.com/selfreplicating/factorysim/pkg/scheduler"
	"github.com/selfreplicating/factorysim/pkg/simerrors"
	"github.com/selfreplicating/factorysim/pkg/software"
	"github.com/selfreplicating/factorysim/pkg/storage"
	"github.com/selfreplicating/factorysim/pkg/telemetry"
	"github.com/selfreplicating/factorysim/pkg/thermal"
	"github.com/selfreplicating/factorysim/pkg/transport"
	"github.com/selfreplicating/factorysim/pkg/waste"
)

// RetryEveryTicks is step 7 of spec.md §4.1's main tick loop: blocked
// tasks are re-evaluated every 10 ticks. Step 8's metrics snapshot
// fires on simulated-hour boundaries instead, tracked via lastSample.
const RetryEveryTicks = 10

// Factory owns every subsystem for one run and nothing else is
// ambient/global (spec.md §9 "Process-wide state").
type Factory struct {
	cat         *catalog.Catalog
	modules     *module.Registry
	store       *storage.Storage
	energyState *energy.State
	transport   *transport.Fleet
	wasteStream *waste.Stream
	software    *software.Library
	sched       *scheduler.Scheduler

	settings settings.Settings
	rng      *rand.Rand
	targets  []string

	dtHours    float64
	maxHours   float64
	wallBudget time.Duration

	time             float64
	tick             uint64
	lastSample       int
	lastGenerationKW float64

	cleaning *periodicTrigger

	recorder             *telemetry.Recorder
	events               *telemetry.Bus
	log                  *telemetry.RingLog
	blockedReasonTotals  map[string]int
}

// WithHorizon overrides the default 10000-hour horizon (--max-hours).
func (f *Factory) WithHorizon(maxHours float64) *Factory {
	f.maxHours = maxHours
	return f
}

// WithWallBudget overrides the default 3600s wall-clock timeout.
func (f *Factory) WithWallBudget(d time.Duration) *Factory {
	f.wallBudget = d
	return f
}

// TerminationReason classifies why Run stopped producing a report.
type TerminationReason int

const (
	TerminationGoalAchieved TerminationReason = iota
	TerminationDeadlock
	TerminationTimeExhausted
)

func (r TerminationReason) String() string {
	switch r {
	case TerminationGoalAchieved:
		return "goal_achieved"
	case TerminationDeadlock:
		return "deadlock"
	case TerminationTimeExhausted:
		return "time_exhausted"
	default:
		return "unknown"
	}
}

// Result is everything Run needs to hand to pkg/analysis and the run
// log writer.
type Result struct {
	Reason     TerminationReason
	Deadlock   *simerrors.DeadlockError
	SimHours   float64
	Events     []telemetry.Event
}

// Run enqueues one goal task per target module kind (spec.md §6
// "target_modules"), then advances the tick loop until termination.
// quantities maps target kind to the count requested; missing entries
// default to 1 (spec.md §6: "default to one of each module kind").
func (f *Factory) Run(ctx context.Context, quantities map[string]int) (*Result, error) {
	log := logctx.FromContext(ctx)
	for _, kind := range f.targets {
		n := quantities[kind]
		if n <= 0 {
			n = 1
		}
		if _, err := f.sched.EnqueueGoal(kind, float64(n), 0); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	for f.time < f.maxHours {
		if f.wallBudget > 0 && time.Since(start) > f.wallBudget {
			return nil, &simerrors.SimulationTimeout{SimHours: f.time, MaxSimHours: f.maxHours, WallSeconds: time.Since(start).Seconds()}
		}

		if err := f.step(ctx); err != nil {
			return nil, err
		}

		if f.goalAchieved(quantities) {
			return &Result{Reason: TerminationGoalAchieved, SimHours: f.time, Events: f.events.Drain()}, nil
		}
		if dl := f.sched.DeadlockDiagnostics(); dl != nil {
			log.Warnw("deadlock detected", "by_reason", dl.BlockedByReason)
			return &Result{Reason: TerminationDeadlock, Deadlock: dl, SimHours: f.time, Events: f.events.Drain()}, nil
		}
	}
	return &Result{Reason: TerminationTimeExhausted, SimHours: f.time, Events: f.events.Drain()}, nil
}

func (f *Factory) goalAchieved(quantities map[string]int) bool {
	counts := f.modules.Counts()
	for _, kind := range f.targets {
		n := quantities[kind]
		if n <= 0 {
			n = 1
		}
		if counts[kind] < n {
			return false
		}
	}
	return true
}

// step runs one Δt of the main tick loop (spec.md §4.1, steps 1-9).
func (f *Factory) step(ctx context.Context) error {
	log := logctx.FromContext(ctx)

	// Steps 1-2 read independent, disjoint state this tick (energy reads
	// the transport draw snapshotted before dispatch, transport writes
	// only its own containers), so they run concurrently per the
	// optional parallel-per-tick variant of spec.md §5.
	transportDrawKW := f.transport.ActivePowerKW()
	var g errgroup.Group
	g.Go(func() error {
		f.advanceEnergy(transportDrawKW)
		return nil
	})
	g.Go(func() error {
		f.transport.Dispatch(f.time)
		for range f.transport.Advance(f.time, f.dtHours) {
			telemetry.TransportJobsCompletedCounter.Inc()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// Step 3: active-task advancement.
	completed := f.sched.AdvanceActive(ctx, f.time)
	for range completed {
		telemetry.TasksCompletedCounter.Inc()
	}

	// Step 4: maintenance resolution.
	f.resolveMaintenance(ctx)

	// Step 5: weekly cleanroom clean, plus between-task particle growth
	// for every cleanroom whose module sat idle this tick.
	if f.settings.EnableContamination {
		f.sched.DecayIdleCleanrooms(f.dtHours)
		if f.cleaning.due(f.time) {
			f.cleanCleanrooms(ctx)
		}
	}

	// Step 6: new-task admission.
	f.sched.AdmitNewTasks(ctx, f.time)

	// Step 7: every 10 ticks, re-evaluate blocked tasks.
	if f.tick%RetryEveryTicks == 0 {
		if err := f.sched.RetryBlocked(ctx); err != nil {
			log.Warnw("blocked-task retry reported errors", "err", err)
		}
	}

	// Step 8: every 1 simulated hour, snapshot metrics.
	hourNow := int(f.time)
	if hourNow != f.lastSample {
		f.lastSample = hourNow
		f.sampleMetrics(hourNow)
	}

	// Step 9: advance the clock and age panels/dust.
	f.time += f.dtHours
	f.tick++
	f.energyState.PanelAgeDays += f.dtHours / 24
	f.energyState.DaysSinceCleaning += f.dtHours / 24

	return f.emitBlockedEvents(ctx)
}

func (f *Factory) advanceEnergy(transportDrawKW float64) {
	hourOfDay := math.Mod(f.time, 24)
	dayOfYear := int(f.time/24)%365 + 1
	gen := f.energyState.GenerationKW(hourOfDay, dayOfYear, f.settings.AmbientTemperatureC, f.rng)
	f.lastGenerationKW = gen
	f.sched.SetCurrentGeneration(gen)

	idleDrawKW := 0.0
	for _, inst := range f.modules.All() {
		if inst.CurrentTaskID != "" || !inst.Available() {
			continue
		}
		if kind, ok := f.modules.Kind(inst.Kind); ok {
			idleDrawKW += kind.IdlePowerKW
		}
	}
	netDeltaKWh := (gen - idleDrawKW - transportDrawKW) * f.dtHours
	f.energyState.ApplyDelta(netDeltaKWh, f.dtHours)
}

func (f *Factory) resolveMaintenance(ctx context.Context) {
	if !f.settings.EnableMaintenance {
		return
	}
	log := logctx.FromContext(ctx)
	for _, inst := range f.modules.All() {
		if inst.InMaintenance {
			if f.time >= inst.MaintenanceEndTime {
				inst.CompleteMaintenance()
				log.Infow("maintenance complete", "module_id", inst.ID, "kind", inst.Kind)
			}
			continue
		}
		if inst.Failed {
			continue
		}
		kind, ok := f.modules.Kind(inst.Kind)
		if !ok {
			continue
		}
		if inst.NeedsMaintenance(kind) && inst.CurrentTaskID == "" {
			inst.BeginMaintenance(f.time)
			log.Infow("maintenance begun", "module_id", inst.ID, "kind", inst.Kind)
		}
	}
}

func (f *Factory) cleanCleanrooms(ctx context.Context) {
	log := logctx.FromContext(ctx)
	for _, room := range f.sched.Cleanrooms() {
		room.Clean()
	}
	log.Infow("weekly cleanroom clean", "sim_time", f.time)
}

func (f *Factory) sampleMetrics(hourNow int) {
	heat := f.sched.AggregateHeatKW()
	sample := telemetry.Sample{
		Time:               f.time,
		EnergyGenerated:    f.lastGenerationKW,
		BatteryCharge:      f.energyState.BatteryChargeKWh,
		StorageUtilization: f.store.UtilizationFraction(),
		WasteGenerated:     f.wasteStream.Total(),
		TransportJobs:      f.transport.CompletedCount(),
		SoftwareBugs:       f.sched.AverageBugRate(),
		ThermalLoad:        thermal.CoolingDemandKW(heat, f.settings.FactoryAreaM2, f.settings.AmbientTemperatureC),
		Contamination:      f.sched.AverageContamination(),
		ModuleEfficiency:   f.modules.AverageEfficiency(),
		TasksCompleted:     f.sched.CompletedCount(),
		ActiveTasks:        f.sched.ActiveCount(),
		BlockedTasks:       f.sched.BlockedCount(),
		Modules:            f.modules.Counts(),
	}
	f.recorder.Record(sample)
	f.log.Append(telemetry.LogEntry{
		Timestamp:   f.time,
		Level:       "info",
		Message:     "metrics snapshot",
		ThermalLoad: sample.ThermalLoad,
		WasteTotal:  sample.WasteGenerated,
	})
}

// emitBlockedEvents drains the current blocked-reason histogram into
// the event bus, returning the bus's fatal EventQueueOverflow if
// sustained drops cross its threshold (spec.md §5 "Event queue
// backpressure").
func (f *Factory) emitBlockedEvents(ctx context.Context) error {
	log := logctx.FromContext(ctx)
	reasons := f.sched.BlockedReasonCounts()
	ids := make([]string, 0, len(reasons))
	for r := range reasons {
		ids = append(ids, r)
	}
	sort.Strings(ids)
	for _, status := range ids {
		f.blockedReasonTotals[status] += reasons[status]
		if err := f.events.Emit(telemetry.Event{
			SimTime:   f.time,
			Reason:    status,
			Message:   "tasks blocked",
			DedupeKey: telemetry.BlockedDedupeKey("aggregate", status),
		}); err != nil {
			log.Errorw("event bus overflow", "err", err)
			return err
		}
	}
	return nil
}

// BlockedReasonTotals accumulates tick-over-tick blocked-task counts by
// reason for the life of the run, feeding pkg/analysis's bottleneck-gate
// histogram.
func (f *Factory) BlockedReasonTotals() map[string]int { return f.blockedReasonTotals }

// Recorder, RunLog, and the accessors below expose the telemetry
// subsystems and the simulation state to the report writer.
func (f *Factory) Recorder() *telemetry.Recorder  { return f.recorder }
func (f *Factory) RunLog() *telemetry.RingLog      { return f.log }
func (f *Factory) Scheduler() *scheduler.Scheduler { return f.sched }
func (f *Factory) Modules() *module.Registry       { return f.modules }
func (f *Factory) Storage() *storage.Storage       { return f.store }
func (f *Factory) WasteStream() *waste.Stream      { return f.wasteStream }
func (f *Factory) SoftwareLibrary() *software.Library { return f.software }
func (f *Factory) Transport() *transport.Fleet     { return f.transport }
func (f *Factory) SimTime() float64                { return f.time }
