package scheduler

import (
	"context"
	"math/rand"
	"sort"

	"github.com/avast/retry-go"
	"go.uber.org/multierr"

	"github.com/selfreplicating/factorysim/pkg/apis/config/settings"
	"github.com/selfreplicating/factorysim/pkg/catalog"
	"github.com/selfreplicating/factorysim/pkg/cleanroom"
	"github.com/selfreplicating/factorysim/pkg/energy"
	"github.com/selfreplicating/factorysim/pkg/logctx"
	"github.com/selfreplicating/factorysim/pkg/module"
	"github.com/selfreplicating/factorysim/pkg/scheduler/expandcache"
	"github.com/selfreplicating/factorysim/pkg/simerrors"
	"github.com/selfreplicating/factorysim/pkg/software"
	"github.com/selfreplicating/factorysim/pkg/storage"
	"github.com/selfreplicating/factorysim/pkg/transport"
	"github.com/selfreplicating/factorysim/pkg/waste"
)

// MaxTaskStartsPerStep is MAX_TASK_STARTS_PER_STEP from spec.md §4.1.
const MaxTaskStartsPerStep = 5

// Scheduler owns the task queue, the active/blocked sets, and the
// completed-id set, and coordinates gate evaluation against the
// physical subsystems it's handed at construction. It never mutates
// those subsystems' internal fields directly — only through their own
// methods (spec.md §5 "Shared-resource policy").
type Scheduler struct {
	cat      *catalog.Catalog
	modules  *module.Registry
	store    *storage.Storage
	energyState *energy.State
	waste    *waste.Stream
	software *software.Library
	transport *transport.Fleet
	cleanrooms map[string]*cleanroom.Room // module instance id -> room

	settings settings.Settings
	rng      *rand.Rand

	expandCache *expandcache.Cache

	queue        *Queue
	active       map[string]*Task
	blocked      map[string]*Task
	tasksByID    map[string]*Task
	completedIDs map[string]bool
	completed    []*Task
	pendingParams map[string]productionParams

	currentGenerationKW float64
}

// New constructs a Scheduler wired to the given subsystems. cleanrooms
// may be empty; rooms are added via RegisterCleanroom as module
// instances with cleanroom capability are created.
func New(
	cat *catalog.Catalog,
	modules *module.Registry,
	store *storage.Storage,
	energyState *energy.State,
	wasteStream *waste.Stream,
	softwareLibrary *software.Library,
	transportFleet *transport.Fleet,
	st settings.Settings,
	rng *rand.Rand,
) *Scheduler {
	return &Scheduler{
		cat:           cat,
		modules:       modules,
		store:         store,
		energyState:   energyState,
		waste:         wasteStream,
		software:      softwareLibrary,
		transport:     transportFleet,
		cleanrooms:    map[string]*cleanroom.Room{},
		settings:      st,
		rng:           rng,
		expandCache:   expandcache.New(expandcache.DefaultSize),
		queue:         NewQueue(),
		active:        map[string]*Task{},
		blocked:       map[string]*Task{},
		tasksByID:     map[string]*Task{},
		completedIDs:  map[string]bool{},
		pendingParams: map[string]productionParams{},
	}
}

// RegisterCleanroom attaches cleanroom state to a module instance at
// the class the owning module kind supports.
func (s *Scheduler) RegisterCleanroom(instanceID string, class int) {
	s.cleanrooms[instanceID] = cleanroom.NewRoom(class)
}

// SetCurrentGeneration records this tick's solar output, used by the
// energy gate's estimate of energy available over a candidate task's
// duration (spec.md §4.1 energy gate).
func (s *Scheduler) SetCurrentGeneration(kw float64) { s.currentGenerationKW = kw }

// EnqueueGoal expands a top-level production goal (spec.md §6
// "target_modules") into its dependency graph of tasks.
func (s *Scheduler) EnqueueGoal(kind string, quantity float64, priority int) (*Task, error) {
	return s.CreateProductionTask(kind, quantity, priority)
}

// AdmitNewTasks pops up to MaxTaskStartsPerStep tasks from the queue
// and runs each through the gate sequence (spec.md §4.1 step 6), and
// additionally honors parallel_processing_limit as a soft cap on total
// concurrent active tasks (spec.md §6 config table: "max starts/step
// (soft)") on top of the hard per-tick MaxTaskStartsPerStep bound.
func (s *Scheduler) AdmitNewTasks(ctx context.Context, now float64) {
	log := logctx.FromContext(ctx)
	starts := 0
	for starts < MaxTaskStartsPerStep {
		if s.settings.ParallelProcessingLimit > 0 && len(s.active) >= s.settings.ParallelProcessingLimit {
			return
		}
		task, ok := s.queue.Pop()
		if !ok {
			return
		}
		if s.ProcessTask(task, now) {
			starts++
			continue
		}
		s.blocked[task.ID] = task
		log.Debugw("task blocked", "task_id", task.ID, "output_kind", task.OutputKind, "status", task.Status.String())
	}
}

// AdvanceActive completes every active task whose completion_time has
// passed, applying output deposit, waste emission, module/cleanroom
// bookkeeping, and software-library updates (spec.md §4.1
// "Completion"). Returns the tasks completed this call.
func (s *Scheduler) AdvanceActive(ctx context.Context, now float64) []*Task {
	log := logctx.FromContext(ctx)
	var ids []string
	for id, t := range s.active {
		if now >= t.CompletionTime {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var done []*Task
	for _, id := range ids {
		task := s.active[id]
		s.completeTask(ctx, task, now)
		delete(s.active, id)
		done = append(done, task)
		log.Infow("task completed", "task_id", task.ID, "output_kind", task.OutputKind, "actual_output", task.ActualOutput)
	}
	return done
}

func (s *Scheduler) completeTask(ctx context.Context, task *Task, now float64) {
	params, haveParams := s.pendingParams[task.ID]
	delete(s.pendingParams, task.ID)

	if inst, ok := s.modules.Get(task.AssignedModuleID); ok {
		kind, _ := s.modules.Kind(inst.Kind)
		hours := task.ProcessTime
		inst.OperatingHours += hours
		inst.CyclesCompleted++
		inst.TimeSinceMaintenance += hours
		inst.CurrentTaskID = ""
		if s.settings.EnableDegradation {
			inst.Degrade(kind, hours)
		}
		inst.RollFailure(s.rng, kind, hours)
		if room, ok := s.cleanrooms[inst.ID]; ok {
			room.AccumulateActive(1.0, hours)
		}
	}

	if haveParams {
		task.ActualOutput = params.ActualOutput
		wasteQty := params.WasteAmount * wastePolicyFraction(task.OutputKind)
		if wasteQty > 0 {
			s.waste.Add(params.WasteKind, wasteQty)
			if task.WasteGenerated == nil {
				task.WasteGenerated = map[string]float64{}
			}
			task.WasteGenerated[params.WasteKind] += wasteQty
		}
	} else {
		task.ActualOutput = task.Quantity
	}

	for kind, qty := range task.Recipe.WasteProducts {
		amount := qty * task.ActualOutput / task.Recipe.OutputQty
		if amount <= 0 {
			continue
		}
		s.waste.Add(kind, amount)
		if task.WasteGenerated == nil {
			task.WasteGenerated = map[string]float64{}
		}
		task.WasteGenerated[kind] += amount
	}

	if s.cat.IsSoftwareKind(task.OutputKind) {
		s.software.Produce(task.OutputKind, task.ProcessTime)
	} else if task.ActualOutput > 0 {
		if err := s.store.Deposit(task.OutputKind, task.ActualOutput); err != nil {
			logctx.FromContext(ctx).Warnw("completed output lost: storage rejected deposit", "task_id", task.ID, "kind", task.OutputKind, "err", err)
		}
	}

	if _, isModuleKind := s.modules.Kind(task.OutputKind); isModuleKind {
		inst := module.NewInstance(task.OutputKind, s.settings.AmbientTemperatureC)
		s.modules.Add(inst)
		if kind, ok := s.modules.Kind(task.OutputKind); ok && kind.CleanroomClassCap != nil {
			s.RegisterCleanroom(inst.ID, *kind.CleanroomClassCap)
		}
	}

	task.Status = StatusCompleted
	s.completedIDs[task.ID] = true
	s.completed = append(s.completed, task)
}

// RetryBlocked re-evaluates every blocked task (spec.md §4.1 step 7):
// dependency-blocked tasks return to the queue only once every
// dependency is in the completed-id set; every other blocked reason
// retries unconditionally, moving back to the queue for gates to
// re-run. Wrapped per task in retry-go's Do purely to get its
// structured attempt/error bookkeeping (attempts=1: re-evaluation
// outcome is fully determined by current state, so more attempts
// without new information would not change anything).
func (s *Scheduler) RetryBlocked(ctx context.Context) error {
	ids := make([]string, 0, len(s.blocked))
	for id := range s.blocked {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs error
	for _, id := range ids {
		task := s.blocked[id]
		err := retry.Do(
			func() error { return s.reevaluateBlocked(task) },
			retry.Attempts(1),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *Scheduler) reevaluateBlocked(task *Task) error {
	if task.Status == StatusBlockedDependencies && !s.depsComplete(task) {
		return nil
	}
	delete(s.blocked, task.ID)
	task.Status = StatusQueued
	s.queue.Push(task)
	return nil
}

func (s *Scheduler) depsComplete(task *Task) bool {
	for _, dep := range task.DependencyTaskIDs {
		if !s.completedIDs[dep] {
			return false
		}
	}
	return true
}

// DeadlockDiagnostics reports the blocked-reason histogram used by the
// heuristic deadlock check: queue empty, active empty, blocked
// non-empty (spec.md §4.1 "Priority-greedy, not optimal").
func (s *Scheduler) DeadlockDiagnostics() *simerrors.DeadlockError {
	if s.queue.Len() != 0 || len(s.active) != 0 || len(s.blocked) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, t := range s.blocked {
		counts[t.Status.String()]++
	}
	return &simerrors.DeadlockError{BlockedByReason: counts}
}

func (s *Scheduler) QueueLen() int       { return s.queue.Len() }
func (s *Scheduler) ActiveCount() int    { return len(s.active) }
func (s *Scheduler) BlockedCount() int   { return len(s.blocked) }
func (s *Scheduler) CompletedCount() int { return len(s.completedIDs) }
func (s *Scheduler) CompletedTasks() []*Task { return s.completed }

// BlockedReasonCounts summarizes the current blocked map for metrics.
func (s *Scheduler) BlockedReasonCounts() map[string]int {
	out := map[string]int{}
	for _, t := range s.blocked {
		out[t.Status.String()]++
	}
	return out
}

// AggregateHeatKW exposes the thermal gate's aggregate-heat
// calculation for the tick loop's metrics snapshot (spec.md §4.7),
// with no candidate module excluded.
func (s *Scheduler) AggregateHeatKW() float64 { return s.aggregateHeatKW("") }

// Cleanrooms returns every registered cleanroom, for the factory's
// weekly clean trigger (spec.md §4.1 step 5).
func (s *Scheduler) Cleanrooms() []*cleanroom.Room {
	out := make([]*cleanroom.Room, 0, len(s.cleanrooms))
	for _, r := range s.cleanrooms {
		out = append(out, r)
	}
	return out
}

// DecayIdleCleanrooms applies the between-task particle growth term
// (spec.md §4.6: particles *= 1.001^hours) to every cleanroom whose
// owning module instance is not currently running a task.
func (s *Scheduler) DecayIdleCleanrooms(hours float64) {
	for instanceID, room := range s.cleanrooms {
		inst, ok := s.modules.Get(instanceID)
		if !ok || inst.CurrentTaskID != "" {
			continue
		}
		room.DecayIdle(hours)
	}
}

// AverageBugRate is the run log metric "software_bugs": the mean bug
// rate across the latest version of every software package produced
// so far (spec.md §6), or 0 before any software exists.
func (s *Scheduler) AverageBugRate() float64 {
	return s.software.AverageBugRate()
}

// AverageContamination is the run log metric "contamination": the mean
// contamination yield across every registered cleanroom, evaluated
// against its own class (spec.md §6), or 1.0 with no cleanrooms.
func (s *Scheduler) AverageContamination() float64 {
	if len(s.cleanrooms) == 0 {
		return 1.0
	}
	total := 0.0
	for _, r := range s.cleanrooms {
		total += r.ContaminationYield(r.Class)
	}
	return total / float64(len(s.cleanrooms))
}
