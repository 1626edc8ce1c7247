package factory

import (
	"encoding/json"
	"os"

	"github.com/selfreplicating/factorysim/pkg/telemetry"
)

// FinalStatus is the run log's "final_status" object (spec.md §6).
type FinalStatus struct {
	Time               float64        `json:"time"`
	CompletedTasks     int            `json:"completed_tasks"`
	ActiveTasks        int            `json:"active_tasks"`
	BlockedTasks       int            `json:"blocked_tasks"`
	Modules            map[string]int `json:"modules"`
	WasteTotal         float64        `json:"waste_total"`
	TransportCompleted int            `json:"transport_completed"`
	SoftwarePackages   int            `json:"software_packages"`
}

// CompletedTaskEntry is one element of the run log's "completed_tasks"
// array (spec.md §6), the last 100 completed tasks.
type CompletedTaskEntry struct {
	TaskID         string  `json:"task_id"`
	Output         string  `json:"output"`
	Quantity       float64 `json:"quantity"`
	ActualOutput   float64 `json:"actual_output"`
	EnergyConsumed float64 `json:"energy_consumed"`
	CompletionTime float64 `json:"completion_time"`
	QualityYield   float64 `json:"quality_yield"`
	WasteGenerated float64 `json:"waste_generated"`
}

// RunLog is the single top-level object spec.md §6 names for --output.
type RunLog struct {
	Config         map[string]any        `json:"config"`
	FinalStatus    FinalStatus            `json:"final_status"`
	Metrics        telemetry.Series       `json:"metrics"`
	CompletedTasks []CompletedTaskEntry   `json:"completed_tasks"`
	LogEntries     []telemetry.LogEntry   `json:"log_entries"`
}

// BuildReport assembles the run log from the factory's final state.
// config is the resolved flat constraints map to echo back verbatim.
func (f *Factory) BuildReport(config map[string]any) RunLog {
	completed := f.sched.CompletedTasks()
	start := 0
	if len(completed) > 100 {
		start = len(completed) - 100
	}
	entries := make([]CompletedTaskEntry, 0, len(completed)-start)
	for _, t := range completed[start:] {
		qualityYield := 1.0
		if t.Quantity > 0 {
			qualityYield = t.ActualOutput / t.Quantity
		}
		wasteTotal := 0.0
		for _, qty := range t.WasteGenerated {
			wasteTotal += qty
		}
		entries = append(entries, CompletedTaskEntry{
			TaskID:         t.ID,
			Output:         t.OutputKind,
			Quantity:       t.Quantity,
			ActualOutput:   t.ActualOutput,
			EnergyConsumed: t.EnergyConsumed,
			CompletionTime: t.CompletionTime,
			QualityYield:   qualityYield,
			WasteGenerated: wasteTotal,
		})
	}

	return RunLog{
		Config: config,
		FinalStatus: FinalStatus{
			Time:               f.time,
			CompletedTasks:     f.sched.CompletedCount(),
			ActiveTasks:        f.sched.ActiveCount(),
			BlockedTasks:       f.sched.BlockedCount(),
			Modules:            f.modules.Counts(),
			WasteTotal:         f.wasteStream.Total(),
			TransportCompleted: f.transport.CompletedCount(),
			SoftwarePackages:   f.software.TotalPackages(),
		},
		Metrics:        f.recorder.Series(),
		CompletedTasks: entries,
		LogEntries:     f.log.Last(1000),
	}
}

// WriteReport marshals r as indented JSON to path (spec.md §6 --output).
func WriteReport(path string, r RunLog) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
