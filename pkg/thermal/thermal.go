// Package thermal aggregates heat from active modules and derives
// cooling demand (spec.md §3 "Thermal state", §4.7). It holds no
// persistent state: everything here is computed fresh each tick.
package thermal

import "math"

// COP computes the coefficient of performance at the given ambient
// temperature (spec.md §4.7), clamped to [1.5, +inf).
func COP(ambientC float64) float64 {
	c := 3.5 - 0.05*math.Abs(ambientC-22)
	if c < 1.5 {
		return 1.5
	}
	return c
}

// AggregateHeatKW sums 0.8 * current_power_kw over the supplied module
// power draws (spec.md §4.7).
func AggregateHeatKW(modulePowerKW []float64) float64 {
	total := 0.0
	for _, p := range modulePowerKW {
		total += 0.8 * p
	}
	return total
}

// CoolingDemandKW computes the cooling power required to hold the
// factory envelope given aggregate module heat (spec.md §4.7).
func CoolingDemandKW(heatKW, factoryAreaM2, ambientC float64) float64 {
	return (heatKW + 0.1*factoryAreaM2) / COP(ambientC)
}

// Feasible reports whether projected cooling demand (including the
// candidate task) is within cooling capacity — the thermal gate of
// spec.md §4.1.
func Feasible(heatKW, factoryAreaM2, ambientC, coolingCapacityKW float64) bool {
	return CoolingDemandKW(heatKW, factoryAreaM2, ambientC) <= coolingCapacityKW
}
