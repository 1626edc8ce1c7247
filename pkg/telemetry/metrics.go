// Package telemetry holds the simulation's Prometheus metrics, the
// JSON time-series recorder behind the run log's "metrics" object
// (spec.md §6), the bounded event bus, and the ring-buffered run log —
// adapted from the teacher's pkg/metrics, pkg/utils/pretty, and
// deprovisioning events packages.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Namespace is the Prometheus namespace for every metric this package
// registers, mirroring the teacher's pkg/metrics.Namespace constant.
const Namespace = "factorysim"

var (
	EnergyGeneratedKW = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: "energy", Name: "generated_kw",
		Help: "Current solar generation in kW.",
	})
	BatteryChargeKWh = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: "energy", Name: "battery_charge_kwh",
		Help: "Current battery charge in kWh.",
	})
	StorageUtilization = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: "storage", Name: "utilization_fraction",
		Help: "Maximum of volume and weight utilization fraction.",
	})
	ThermalLoadKW = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: "thermal", Name: "cooling_demand_kw",
		Help: "Projected cooling demand in kW.",
	})
	ModuleEfficiencyAvg = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: "modules", Name: "efficiency_avg",
		Help: "Average efficiency across all module instances.",
	})
	ActiveTasksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: "scheduler", Name: "active_tasks",
		Help: "Number of tasks currently active.",
	})
	BlockedTasksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: "scheduler", Name: "blocked_tasks",
		Help: "Number of tasks currently blocked, by reason.",
	})
	TasksCompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: "scheduler", Name: "tasks_completed_total",
		Help: "Total tasks completed over the run.",
	})
	TransportJobsCompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: "transport", Name: "jobs_completed_total",
		Help: "Total transport jobs completed over the run.",
	})
	SoftwareBugRateAvg = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: "software", Name: "bug_rate_avg",
		Help: "Average bug rate across the latest version of every software package.",
	})
	EventsDroppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: "events", Name: "dropped_total",
		Help: "Total events dropped by the bounded event bus.",
	})
)

// MustRegister registers every metric above against reg, the way the
// teacher's pkg/metrics.MustRegister registers against the
// controller-runtime registry — here against a plain prometheus.Registry
// so a standalone CLI doesn't need controller-runtime at all.
func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		EnergyGeneratedKW,
		BatteryChargeKWh,
		StorageUtilization,
		ThermalLoadKW,
		ModuleEfficiencyAvg,
		ActiveTasksGauge,
		BlockedTasksGauge,
		TasksCompletedCounter,
		TransportJobsCompletedCounter,
		SoftwareBugRateAvg,
		EventsDroppedCounter,
	)
}

// Sample is one JSON-serializable row of every time series in the run
// log's "metrics" object (spec.md §6).
type Sample struct {
	Time               float64        `json:"time"`
	EnergyGenerated    float64        `json:"energy_generated"`
	BatteryCharge      float64        `json:"battery_charge"`
	StorageUtilization float64        `json:"storage_utilization"`
	WasteGenerated     float64        `json:"waste_generated"`
	TransportJobs      int            `json:"transport_jobs"`
	SoftwareBugs       float64        `json:"software_bugs"`
	ThermalLoad        float64        `json:"thermal_load"`
	Contamination      float64        `json:"contamination"`
	ModuleEfficiency   float64        `json:"module_efficiency"`
	TasksCompleted     int            `json:"tasks_completed"`
	ActiveTasks        int            `json:"active_tasks"`
	BlockedTasks       int            `json:"blocked_tasks"`
	Modules            map[string]int `json:"modules"`
}

// Recorder accumulates one Sample per simulated hour (spec.md §4.1 step
// 8) and also mirrors the latest values onto the package's Prometheus
// gauges/counters so a live `--metrics-addr` listener and the final
// JSON run log stay consistent.
type Recorder struct {
	samples []Sample
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends s and updates the live Prometheus gauges. Counters
// (TasksCompletedCounter, TransportJobsCompletedCounter,
// EventsDroppedCounter) are monotonic and incremented by their callers
// directly, not here.
func (r *Recorder) Record(s Sample) {
	r.samples = append(r.samples, s)
	EnergyGeneratedKW.Set(s.EnergyGenerated)
	BatteryChargeKWh.Set(s.BatteryCharge)
	StorageUtilization.Set(s.StorageUtilization)
	ThermalLoadKW.Set(s.ThermalLoad)
	ModuleEfficiencyAvg.Set(s.ModuleEfficiency)
	ActiveTasksGauge.Set(float64(s.ActiveTasks))
	BlockedTasksGauge.Set(float64(s.BlockedTasks))
	SoftwareBugRateAvg.Set(s.SoftwareBugs)
}

// Series transposes the recorded samples into the column-oriented
// shape the run log's "metrics" object uses (spec.md §6: "time":[...],
// "energy_generated":[...], ...).
type Series struct {
	Time               []float64        `json:"time"`
	EnergyGenerated    []float64        `json:"energy_generated"`
	BatteryCharge      []float64        `json:"battery_charge"`
	StorageUtilization []float64        `json:"storage_utilization"`
	WasteGenerated     []float64        `json:"waste_generated"`
	TransportJobs      []int            `json:"transport_jobs"`
	SoftwareBugs       []float64        `json:"software_bugs"`
	ThermalLoad        []float64        `json:"thermal_load"`
	Contamination      []float64        `json:"contamination"`
	ModuleEfficiency   []float64        `json:"module_efficiency"`
	TasksCompleted     []int            `json:"tasks_completed"`
	ActiveTasks        []int            `json:"active_tasks"`
	BlockedTasks       []int            `json:"blocked_tasks"`
	Modules            []map[string]int `json:"modules"`
}

func (r *Recorder) Series() Series {
	out := Series{}
	for _, s := range r.samples {
		out.Time = append(out.Time, s.Time)
		out.EnergyGenerated = append(out.EnergyGenerated, s.EnergyGenerated)
		out.BatteryCharge = append(out.BatteryCharge, s.BatteryCharge)
		out.StorageUtilization = append(out.StorageUtilization, s.StorageUtilization)
		out.WasteGenerated = append(out.WasteGenerated, s.WasteGenerated)
		out.TransportJobs = append(out.TransportJobs, s.TransportJobs)
		out.SoftwareBugs = append(out.SoftwareBugs, s.SoftwareBugs)
		out.ThermalLoad = append(out.ThermalLoad, s.ThermalLoad)
		out.Contamination = append(out.Contamination, s.Contamination)
		out.ModuleEfficiency = append(out.ModuleEfficiency, s.ModuleEfficiency)
		out.TasksCompleted = append(out.TasksCompleted, s.TasksCompleted)
		out.ActiveTasks = append(out.ActiveTasks, s.ActiveTasks)
		out.BlockedTasks = append(out.BlockedTasks, s.BlockedTasks)
		out.Modules = append(out.Modules, s.Modules)
	}
	return out
}
