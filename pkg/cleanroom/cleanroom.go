// Package cleanroom tracks per-module particle counts and yield impact
// for contamination-sensitive recipes (spec.md §3 "Cleanroom state",
// §4.6).
package cleanroom

import "math"

// BaseParticleCount is the fixed floor particle count per class,
// spec.md §4.6 (lower class rating = stricter = fewer particles).
var BaseParticleCount = map[int]float64{
	1:      35.2,
	10:     352,
	100:    3520,
	1000:   35200,
	10000:  352000,
	100000: 3520000,
}

func baseFor(class int) float64 {
	if v, ok := BaseParticleCount[class]; ok {
		return v
	}
	// fall back to the nearest defined class at or above the requested one
	best := math.MaxFloat64
	bestClass := 100000
	for c, v := range BaseParticleCount {
		if c >= class && float64(c) < best {
			best = float64(c)
			bestClass = c
		}
	}
	return BaseParticleCount[bestClass]
}

// Room is the per-module cleanroom state.
type Room struct {
	Class             int
	ParticleCount     float64
	TimeSinceCleaning float64
}

// NewRoom creates a room at its class's base particle count.
func NewRoom(class int) *Room {
	return &Room{Class: class, ParticleCount: baseFor(class)}
}

// AccumulateActive grows particle count during active task hours
// (spec.md §4.6: particles += activity_level * 100 per hour).
func (r *Room) AccumulateActive(activityLevel, hours float64) {
	r.ParticleCount += activityLevel * 100 * hours
	r.TimeSinceCleaning += hours
}

// DecayIdle applies the between-task multiplicative growth (spec.md
// §4.6: particles *= 1.001^hours).
func (r *Room) DecayIdle(hours float64) {
	r.ParticleCount *= math.Pow(1.001, hours)
	r.TimeSinceCleaning += hours
}

// Clean resets the room to its class's base count (spec.md §4.6).
func (r *Room) Clean() {
	r.ParticleCount = baseFor(r.Class)
	r.TimeSinceCleaning = 0
}

// ContaminationYield computes the yield multiplier for a recipe
// requiring cleanroomClass (spec.md §4.1): 1 - (particle_count/1e6) *
// (1/cleanroomClass), floored at 0.
func (r *Room) ContaminationYield(recipeCleanroomClass int) float64 {
	if recipeCleanroomClass <= 0 {
		return 1
	}
	processSensitivity := 1.0 / float64(recipeCleanroomClass)
	y := 1 - (r.ParticleCount/1e6)*processSensitivity
	if y < 0 {
		return 0
	}
	return y
}

// Qualifies reports whether this room's class is sufficient for a
// recipe requiring at most requiredClass particles (lower is stricter;
// spec.md §4.1 cleanroom gate, invariant 5 of §8).
func (r *Room) Qualifies(requiredClass int) bool {
	return r.Class <= requiredClass
}
