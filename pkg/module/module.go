// Package module holds the static capability profile of each module
// kind and the mutable operational state of each module instance
// (spec.md §3 "Module kind spec", "Module instance state"; §4.2 "Module
// lifecycle").
package module

import (
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// MinEfficiency is the floor efficiency degradation can reach (spec.md
// §4.2, flagged as an arbitrary constant worth naming in §9 Open
// Questions so calibration can replace it later).
const MinEfficiency = 0.3

// Kind is the static, run-scoped capability profile of one module kind.
type Kind struct {
	Name                   string
	MaxThroughput          float64
	IdlePowerKW            float64
	ActivePowerKW          float64
	MTBFHours              float64
	MaintenanceIntervalH   float64
	DegradationRatePer1000 float64
	FootprintM2            float64
	MinBatch               float64
	MaxBatch               float64
	SetupTimeH             float64
	BaseQuality            float64
	ToleranceCapabilityUM  *float64
	CleanroomClassCap      *int
}

// Instance is the mutable runtime state of one piece of equipment.
type Instance struct {
	ID                  string
	Kind                string
	OperatingHours      float64
	CyclesCompleted     int
	TimeSinceMaintenance float64
	Efficiency          float64
	Failed              bool
	InMaintenance       bool
	MaintenanceEndTime  float64
	CurrentTaskID       string
	LastProductKind     string
	TemperatureC        float64
	SoftwareVersion     int
}

// NewInstance creates a fresh module instance at full efficiency, as at
// seed time or on completion of a recipe whose output is a module kind
// (spec.md §3 "Lifecycle").
func NewInstance(kind string, ambientTemperatureC float64) *Instance {
	return &Instance{
		ID:           uuid.NewString(),
		Kind:         kind,
		Efficiency:   1.0,
		TemperatureC: ambientTemperatureC,
	}
}

// Available reports whether the instance can be assigned a new task:
// not failed, not in maintenance, and idle.
func (m *Instance) Available() bool {
	return !m.Failed && !m.InMaintenance && m.CurrentTaskID == ""
}

// TempDerate computes the temperature derate factor used in
// calculate_production_parameters (spec.md §4.1).
func TempDerate(temperatureC float64) float64 {
	d := 1 - 0.01*math.Max(0, math.Abs(temperatureC-22)-5)
	if d < 0 {
		return 0
	}
	return d
}

// Degrade applies per-task efficiency degradation (spec.md §4.2),
// floored at MinEfficiency.
func (m *Instance) Degrade(kind Kind, hoursOperated float64) {
	m.Efficiency *= 1 - kind.DegradationRatePer1000*hoursOperated/1000
	if m.Efficiency < MinEfficiency {
		m.Efficiency = MinEfficiency
	}
}

// RollFailure performs the stochastic per-task failure check (spec.md
// §4.2): Bernoulli with p = hours_operated / mtbf_hours. Returns true
// if the module has now failed.
func (m *Instance) RollFailure(rng *rand.Rand, kind Kind, hoursOperated float64) bool {
	p := hoursOperated / kind.MTBFHours
	if rng.Float64() < p {
		m.Failed = true
	}
	return m.Failed
}

// NeedsMaintenance reports whether time_since_maintenance has reached
// the kind's maintenance_interval (spec.md §4.2).
func (m *Instance) NeedsMaintenance(kind Kind) bool {
	return m.TimeSinceMaintenance >= kind.MaintenanceIntervalH
}

// MaintenanceDurationH is the fixed maintenance window spec.md §4.2 names.
const MaintenanceDurationH = 8

// BeginMaintenance blocks the module for MaintenanceDurationH.
func (m *Instance) BeginMaintenance(now float64) {
	m.InMaintenance = true
	m.MaintenanceEndTime = now + MaintenanceDurationH
}

// CompleteMaintenance resets the maintenance clock and boosts efficiency
// by up to 10%, capped at 1.0 (spec.md §4.2).
func (m *Instance) CompleteMaintenance() {
	m.InMaintenance = false
	m.TimeSinceMaintenance = 0
	m.Efficiency = math.Min(1.0, m.Efficiency*1.10)
}
