// Package energy implements the solar generation model and battery
// store (spec.md §3 "Energy state", §4.4).
package energy

import (
	"math"
	"math/rand"
)

// State is the mutable energy subsystem state.
type State struct {
	SolarCapacityKW     float64
	PanelAgeDays        float64
	DaysSinceCleaning   float64
	BatteryCapacityKWh  float64
	BatteryChargeKWh    float64
	BatteryCycles       float64
	BatteryEfficiency   float64
	LatitudeDeg         float64
	AverageCloudCover   float64
	EnableWeather       bool
}

// New seeds the energy state with the battery starting at half its
// capacity, consistent with invariant 1 of spec.md §8.
func New(solarCapacityKW, batteryCapacityKWh, batteryEfficiency, latitudeDeg, avgCloudCover float64, enableWeather bool) *State {
	return &State{
		SolarCapacityKW:    solarCapacityKW,
		BatteryCapacityKWh: batteryCapacityKWh,
		BatteryChargeKWh:   0.5 * batteryCapacityKWh,
		BatteryEfficiency:  batteryEfficiency,
		LatitudeDeg:        latitudeDeg,
		AverageCloudCover:  avgCloudCover,
		EnableWeather:      enableWeather,
	}
}

// MinChargeKWh / MaxChargeKWh are the hard battery bounds of spec.md §3
// / invariant 1 of §8.
func (s *State) MinChargeKWh() float64 { return 0.2 * s.BatteryCapacityKWh }
func (s *State) MaxChargeKWh() float64 { return 0.95 * s.BatteryCapacityKWh }

// GenerationKW computes the solar generation model of spec.md §4.4 for
// hour-of-day h (0-23) and day-of-year d (1-365), at ambient temperature
// ambientC.
func (s *State) GenerationKW(hourOfDay float64, dayOfYear int, ambientC float64, rng *rand.Rand) float64 {
	latRad := s.LatitudeDeg * math.Pi / 180
	omega := 15 * (hourOfDay - 12) * math.Pi / 180
	decl := 23.45 * math.Sin(2*math.Pi*float64(284+dayOfYear)/365) * math.Pi / 180

	cosZ := math.Sin(latRad)*math.Sin(decl) + math.Cos(latRad)*math.Cos(decl)*math.Cos(omega)
	if cosZ <= 0 {
		return 0
	}
	irradiance := 1000 * cosZ

	weather := 1.0
	if s.EnableWeather {
		jitter := 1.0
		if rng != nil {
			jitter = 1 + 0.2*rng.NormFloat64()
		}
		weather = clamp(1-s.AverageCloudCover*jitter, 0.1, 1.0)
	}
	ageFactor := math.Pow(0.995, s.PanelAgeDays/365)
	dustFactor := math.Max(0.7, 1-0.01*s.DaysSinceCleaning)
	tempFactor := 1 - 0.004*(ambientC-25)

	gen := s.SolarCapacityKW * (irradiance / 1000) * weather * ageFactor * dustFactor * tempFactor
	if gen < 0 {
		return 0
	}
	return gen
}

// ApplyDelta updates the battery by a signed energy delta (kWh) for one
// tick of duration dtHours, enforcing the charge/discharge rate caps and
// SOC bounds of spec.md §4.4. Positive delta charges, negative
// discharges. Returns the energy actually absorbed/delivered (signed,
// same sign as requested, magnitude possibly clamped).
func (s *State) ApplyDelta(deltaKWh float64, dtHours float64) float64 {
	if deltaKWh > 0 {
		maxRate := 0.5 * s.BatteryCapacityKWh // per hour
		capped := math.Min(deltaKWh, maxRate*dtHours)
		applied := capped * s.BatteryEfficiency
		room := s.MaxChargeKWh() - s.BatteryChargeKWh
		if applied > room {
			applied = room
		}
		if applied < 0 {
			applied = 0
		}
		s.BatteryChargeKWh += applied
		s.BatteryCycles += applied / s.BatteryCapacityKWh
		return applied
	}
	if deltaKWh < 0 {
		need := -deltaKWh
		maxRate := 0.5 * s.BatteryCapacityKWh
		capped := math.Min(need, maxRate*dtHours)
		available := s.BatteryChargeKWh - s.MinChargeKWh()
		if capped > available {
			capped = available
		}
		if capped < 0 {
			capped = 0
		}
		s.BatteryChargeKWh -= capped
		s.BatteryCycles += capped / s.BatteryCapacityKWh
		return -capped
	}
	return 0
}

// EstimateAvailable projects how much energy will be available for a
// task of the given duration, used by the scheduler's energy gate
// (spec.md §4.1): current charge above the floor, plus estimated solar
// generation over the duration at the current generation rate.
func (s *State) EstimateAvailable(currentGenerationKW, durationHours float64) float64 {
	return (s.BatteryChargeKWh - s.MinChargeKWh()) + currentGenerationKW*durationHours
}

// Clean resets the dust accumulator.
func (s *State) Clean() {
	s.DaysSinceCleaning = 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
