// Package scheduler is the CORE of the simulation: recipe expansion into
// a dependency graph of tasks, the priority queue, the gate sequence,
// and task lifecycle (spec.md §4.1).
package scheduler

import "github.com/selfreplicating/factorysim/pkg/catalog"

// Status is a Task's lifecycle state (spec.md §3 "Task").
type Status int

const (
	StatusQueued Status = iota
	StatusActive
	StatusBlockedDependencies
	StatusBlockedModule
	StatusBlockedConstraints
	StatusBlockedThermal
	StatusBlockedEnergy
	StatusBlockedResources
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusActive:
		return "active"
	case StatusBlockedDependencies:
		return "blocked_dependencies"
	case StatusBlockedModule:
		return "blocked_module"
	case StatusBlockedConstraints:
		return "blocked_constraints"
	case StatusBlockedThermal:
		return "blocked_thermal"
	case StatusBlockedEnergy:
		return "blocked_energy"
	case StatusBlockedResources:
		return "blocked_resources"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

func (s Status) IsBlocked() bool {
	switch s {
	case StatusBlockedDependencies, StatusBlockedModule, StatusBlockedConstraints,
		StatusBlockedThermal, StatusBlockedEnergy, StatusBlockedResources:
		return true
	}
	return false
}

// Task is a scheduled intent to execute one recipe for a requested
// output quantity (spec.md §3 "Task").
type Task struct {
	ID                  string
	Priority            int
	OutputKind          string
	Quantity            float64
	Recipe              catalog.Recipe
	DependencyTaskIDs   []string
	Status              Status
	AssignedModuleID    string
	SetupTime           float64
	ProcessTime         float64
	StartTime           float64
	CompletionTime      float64
	ActualOutput        float64
	WasteGenerated      map[string]float64
	EnergyConsumed      float64
	SoftwareReliability float64
	ContaminationImpact float64

	// index is heap bookkeeping for the priority queue.
	index int
}
