package scheduler

import (
	"github.com/selfreplicating/factorysim/pkg/catalog"
	"github.com/selfreplicating/factorysim/pkg/module"
	"github.com/selfreplicating/factorysim/pkg/thermal"
	"github.com/selfreplicating/factorysim/pkg/transport"
)

// ProcessTask runs the gate sequence of spec.md §4.1 against a queued
// task: dependencies, module, tolerance, cleanroom, thermal, energy,
// resources. The first gate that fails sets task.Status to its
// distinct blocked_* status and ProcessTask returns false, leaving
// every subsystem untouched. If every gate passes, inputs are
// consumed, energy is debited, the module is marked busy, and the
// task is moved to the active set; ProcessTask returns true.
func (s *Scheduler) ProcessTask(task *Task, now float64) bool {
	if !s.depsComplete(task) {
		task.Status = StatusBlockedDependencies
		return false
	}

	requiredKind := task.Recipe.RequiredModule
	kind, ok := s.modules.Kind(requiredKind)
	if !ok {
		task.Status = StatusBlockedModule
		return false
	}
	candidates := s.modules.AvailableOfKind(requiredKind)
	if len(candidates) == 0 {
		task.Status = StatusBlockedModule
		return false
	}

	chosen := s.pickCandidate(candidates, kind, task.Recipe)
	if chosen == nil {
		task.Status = StatusBlockedConstraints
		return false
	}

	heat := s.aggregateHeatKW(chosen.ID) + kind.ActivePowerKW
	if !thermal.Feasible(heat, s.settings.FactoryAreaM2, s.settings.AmbientTemperatureC, s.settings.CoolingCapacityKW) {
		task.Status = StatusBlockedThermal
		return false
	}

	contaminationYield := 1.0
	if room, ok := s.cleanrooms[chosen.ID]; ok && task.Recipe.CleanroomClass != nil {
		contaminationYield = room.ContaminationYield(*task.Recipe.CleanroomClass)
	}
	softwareReliability := s.software.ReliabilityFor(task.Recipe.SoftwareRequired)

	params := calculateProductionParameters(
		s.rng, task.Recipe, task.Quantity, chosen, kind,
		s.settings.EnableBatchProcessing, s.settings.EnableQualityControl,
		contaminationYield, softwareReliability,
	)
	duration := params.SetupTime + params.ProcessTime

	if s.energyState.EstimateAvailable(s.currentGenerationKW, duration) < params.EnergyRequired {
		task.Status = StatusBlockedEnergy
		return false
	}

	for inputKind, perOutputQty := range task.Recipe.Inputs {
		required := perOutputQty * params.BatchSize / task.Recipe.OutputQty
		if s.store.Quantity(inputKind) < required {
			task.Status = StatusBlockedResources
			return false
		}
	}

	// Every input withdrawn from storage also moves physically from the
	// stockyard to the chosen module (spec.md §4.5), so a transport job
	// is enqueued alongside the withdrawal and the slowest one's travel
	// time extends the task's completion time (spec.md §4.1:
	// completion_time = now + setup + process + transport_time).
	transportTime := 0.0
	for inputKind, perOutputQty := range task.Recipe.Inputs {
		required := perOutputQty * params.BatchSize / task.Recipe.OutputQty
		_ = s.store.Withdraw(inputKind, required)
		distance := s.transport.Layout.Distance(transport.StorageNodeID, chosen.ID)
		s.transport.Enqueue(transport.StorageNodeID, chosen.ID, inputKind, required, task.Priority)
		if t := s.transport.EstimateTravelHours(required, distance); t > transportTime {
			transportTime = t
		}
	}
	s.energyState.ApplyDelta(-params.EnergyRequired, duration)

	chosen.CurrentTaskID = task.ID
	chosen.LastProductKind = task.OutputKind

	task.AssignedModuleID = chosen.ID
	task.SetupTime = params.SetupTime
	task.ProcessTime = params.ProcessTime
	task.StartTime = now
	task.CompletionTime = now + duration + transportTime
	task.EnergyConsumed = params.EnergyRequired
	task.ContaminationImpact = contaminationYield
	task.SoftwareReliability = softwareReliability
	task.Status = StatusActive

	s.active[task.ID] = task
	s.pendingParams[task.ID] = params
	return true
}

// pickCandidate returns the first available instance of kind (in the
// registry's deterministic order) whose tolerance and cleanroom
// capability satisfy the recipe, or nil if none qualify.
func (s *Scheduler) pickCandidate(candidates []*module.Instance, kind module.Kind, recipe catalog.Recipe) *module.Instance {
	for _, m := range candidates {
		if !toleranceOK(kind, recipe) {
			continue
		}
		if !s.cleanroomOK(m, recipe) {
			continue
		}
		return m
	}
	return nil
}

func toleranceOK(kind module.Kind, recipe catalog.Recipe) bool {
	if recipe.ToleranceUM == nil {
		return true
	}
	if kind.ToleranceCapabilityUM == nil {
		return false
	}
	return *kind.ToleranceCapabilityUM <= *recipe.ToleranceUM
}

func (s *Scheduler) cleanroomOK(m *module.Instance, recipe catalog.Recipe) bool {
	if recipe.CleanroomClass == nil {
		return true
	}
	room, ok := s.cleanrooms[m.ID]
	if !ok {
		return false
	}
	return room.Qualifies(*recipe.CleanroomClass)
}

// aggregateHeatKW sums 0.8 * current_power_kw over every module
// instance except excludeID (spec.md §4.7): active instances draw
// their kind's active power, idle-but-available instances draw idle
// power, failed/maintenance instances draw none.
func (s *Scheduler) aggregateHeatKW(excludeID string) float64 {
	var powers []float64
	for _, inst := range s.modules.All() {
		if inst.ID == excludeID {
			continue
		}
		kind, ok := s.modules.Kind(inst.Kind)
		if !ok {
			continue
		}
		switch {
		case inst.CurrentTaskID != "":
			powers = append(powers, kind.ActivePowerKW)
		case inst.Available():
			powers = append(powers, kind.IdlePowerKW)
		}
	}
	return thermal.AggregateHeatKW(powers)
}
