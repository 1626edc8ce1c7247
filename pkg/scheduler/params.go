package scheduler

import (
	"math"
	"math/rand"

	"github.com/selfreplicating/factorysim/pkg/catalog"
	"github.com/selfreplicating/factorysim/pkg/module"
)

// productionParams is the result of calculate_production_parameters
// (spec.md §4.1): everything the gate sequence and completion path need
// to know about how a task will actually run on a candidate module.
type productionParams struct {
	BatchSize       float64
	SetupTime       float64
	ProcessTime     float64
	QualityRate     float64
	ActualOutput    float64
	WasteAmount     float64
	WasteKind       string
	EnergyRequired  float64
	ContaminationYield float64
}

// calculateProductionParameters derives batch size, timing, quality, and
// energy for running recipe r producing quantity on module instance m of
// kind k, at the given contamination yield and software reliability
// (spec.md §4.1). enableBatching and enableQuality gate the batch-size
// clamp and the quality-jitter model respectively.
func calculateProductionParameters(
	rng *rand.Rand,
	r catalog.Recipe,
	quantity float64,
	m *module.Instance,
	k module.Kind,
	enableBatching bool,
	enableQuality bool,
	contaminationYield float64,
	softwareReliability float64,
) productionParams {
	batchSize := quantity
	if enableBatching {
		batchSize = clampF(quantity, k.MinBatch, k.MaxBatch)
	}

	setupTime := 0.0
	if m.LastProductKind != r.OutputKind {
		setupTime = k.SetupTimeH
	}

	tempDerate := module.TempDerate(m.TemperatureC)
	effectiveThroughput := k.MaxThroughput * m.Efficiency * tempDerate

	processTime := math.Inf(1)
	if effectiveThroughput > 0 {
		processTime = batchSize / effectiveThroughput
	}

	qualityRate := 1.0
	if enableQuality {
		jitter := 1.0
		if rng != nil {
			jitter = 1 + 0.02*rng.NormFloat64()
		}
		qualityRate = k.BaseQuality * m.Efficiency * contaminationYield * softwareReliability * jitter
		qualityRate = clampF(qualityRate, 0.5, 1.0)
	}

	actualOutput := batchSize * qualityRate
	wasteAmount := batchSize * (1 - qualityRate)
	wasteKind := wastePolicyKind(r.OutputKind)

	energyRequired := k.IdlePowerKW*setupTime + k.ActivePowerKW*processTime

	return productionParams{
		BatchSize:          batchSize,
		SetupTime:          setupTime,
		ProcessTime:        processTime,
		QualityRate:        qualityRate,
		ActualOutput:       actualOutput,
		WasteAmount:        wasteAmount,
		WasteKind:          wasteKind,
		EnergyRequired:     energyRequired,
		ContaminationYield: contaminationYield,
	}
}

// wastePolicyKind picks a waste kind for a given output kind per the
// allocation policy of spec.md §4.1: metals route 80% of their own
// rejects back as recyclable scrap of the same kind; everything else
// becomes generic plastic waste at a 20% factor (accounted for by the
// caller scaling the quantity, not this lookup).
func wastePolicyKind(outputKind string) string {
	switch outputKind {
	case "steel", "aluminum", "copper":
		return outputKind
	default:
		return "plastic_waste"
	}
}

// wastePolicyFraction is the fraction of the quality-loss amount that is
// actually routed to the waste stream under the policy above.
func wastePolicyFraction(outputKind string) float64 {
	switch outputKind {
	case "steel", "aluminum", "copper":
		return 0.8
	default:
		return 0.2
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
