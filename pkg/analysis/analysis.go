// Package analysis computes post-run summaries from a completed
// simulation: throughput, the blocked-reason gate that cost the run the
// most task-ticks, and how much of the energy generated over the run
// was actually put to use. It only reads state the core already
// produces — it never re-drives the tick loop.
package analysis

import (
	"sort"

	"github.com/selfreplicating/factorysim/pkg/factory"
)

// Summary is the supplemented post-run analysis report.
type Summary struct {
	ThroughputPerHour float64        `json:"throughput_per_hour"`
	BottleneckReason  string         `json:"bottleneck_reason"`
	BottleneckCount   int            `json:"bottleneck_count"`
	BlockedByReason   map[string]int `json:"blocked_by_reason"`
	EnergyGeneratedKWh float64       `json:"energy_generated_kwh"`
	EnergyUtilization float64        `json:"energy_utilization"`
}

// Summarize derives a Summary from a factory that has finished Run.
// Calling it mid-run is valid but the figures describe only the portion
// of the run completed so far.
func Summarize(f *factory.Factory) Summary {
	s := Summary{
		BlockedByReason: f.BlockedReasonTotals(),
	}

	if t := f.SimTime(); t > 0 {
		s.ThroughputPerHour = float64(f.Scheduler().CompletedCount()) / t
	}

	s.BottleneckReason, s.BottleneckCount = topReason(s.BlockedByReason)

	series := f.Recorder().Series()
	for _, g := range series.EnergyGenerated {
		// Samples are recorded once per simulated hour (spec.md §4.1
		// step 8), so each reading already stands for one hour of
		// generation at that rate.
		s.EnergyGeneratedKWh += g
	}
	if s.EnergyGeneratedKWh > 0 {
		s.EnergyUtilization = (s.EnergyGeneratedKWh - batteryDeltaKWh(series.BatteryCharge)) / s.EnergyGeneratedKWh
	}
	return s
}

// batteryDeltaKWh is the net charge the battery gained over the run
// (generation not consumed elsewhere ends up here, per pkg/factory's
// per-tick energy balance), so subtracting it from total generation
// leaves what was actually put to use.
func batteryDeltaKWh(charge []float64) float64 {
	if len(charge) < 2 {
		return 0
	}
	delta := charge[len(charge)-1] - charge[0]
	if delta < 0 {
		return 0
	}
	return delta
}

// topReason returns the blocked reason with the highest cumulative
// tick-count, breaking ties alphabetically so the result is
// deterministic across runs with identical counts.
func topReason(totals map[string]int) (string, int) {
	if len(totals) == 0 {
		return "", 0
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestCount := "", -1
	for _, k := range keys {
		if totals[k] > bestCount {
			best, bestCount = k, totals[k]
		}
	}
	return best, bestCount
}

