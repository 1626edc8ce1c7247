package factory

import (
	"math/rand"
	"time"

	"github.com/selfreplicating/factorysim/pkg/apis/config/settings"
	apispec "github.com/selfreplicating/factorysim/pkg/apis/spec"
	"github.com/selfreplicating/factorysim/pkg/catalog"
	"github.com/selfreplicating/factorysim/pkg/energy"
	"github.com/selfreplicating/factorysim/pkg/module"
	"github.com/selfreplicating/factorysim/pkg/scheduler"
	"github.com/selfreplicating/factorysim/pkg/software"
	"github.com/selfreplicating/factorysim/pkg/storage"
	"github.com/selfreplicating/factorysim/pkg/telemetry"
	"github.com/selfreplicating/factorysim/pkg/transport"
	"github.com/selfreplicating/factorysim/pkg/waste"
)

// New builds a Factory from a fully resolved spec file and its settings,
// seeding module instances and stock from spec.initial_state (spec.md
// §6 "initial_state"). seed drives every stochastic draw the run makes.
func New(fs *apispec.FactorySpec, st settings.Settings, seed int64) (*Factory, error) {
	cat, err := catalog.New(fs)
	if err != nil {
		return nil, err
	}

	kinds := make(map[string]module.Kind, len(fs.Modules))
	for name, m := range fs.Modules {
		kinds[name] = module.Kind{
			Name:                   name,
			MaxThroughput:          m.MaxThroughput,
			IdlePowerKW:            m.IdlePowerKW,
			ActivePowerKW:          m.ActivePowerKW,
			MTBFHours:              m.MTBFHours,
			MaintenanceIntervalH:   m.MaintenanceIntervalH,
			DegradationRatePer1000: m.DegradationRatePer1000,
			FootprintM2:            m.FootprintM2,
			MinBatch:               m.MinBatch,
			MaxBatch:               m.MaxBatch,
			SetupTimeH:             m.SetupTimeH,
			BaseQuality:            m.BaseQuality,
			ToleranceCapabilityUM:  m.ToleranceCapabilityUM,
			CleanroomClassCap:      m.CleanroomClassCap,
		}
	}
	registry := module.NewRegistry(kinds)

	rng := rand.New(rand.NewSource(seed))
	store := storage.New(cat, st.MaxStorageVolumeM3, st.MaxStorageWeightTons, true, st.EnableStorageLimits && st.EnableCapacityLimits)
	energyState := energy.New(st.InitialSolarCapacityKW, batteryCapacityKWh(fs, st), st.BatteryEfficiency, st.LatitudeDeg, st.AverageCloudCover, st.EnableWeather)
	wasteStream := waste.New(st.EnableWasteRecycling)
	softwareLib := software.NewLibrary()
	fleet := transport.NewFleet(st.ModuleSpacingM, st.AGVFleetSize, st.AGVCapacityTons, st.AGVSpeedMPerH, st.ConveyorCapacityTons, st.ConveyorSpeedMPerH, st.EnableTransportTime)

	sched := scheduler.New(cat, registry, store, energyState, wasteStream, softwareLib, fleet, st, rng)

	for kind, count := range fs.InitialState.Modules {
		for i := 0; i < count; i++ {
			inst := module.NewInstance(kind, st.AmbientTemperatureC)
			registry.Add(inst)
			if k, ok := registry.Kind(kind); ok && k.CleanroomClassCap != nil {
				sched.RegisterCleanroom(inst.ID, *k.CleanroomClassCap)
			}
		}
	}
	for kind, qty := range fs.InitialState.Stock {
		store.Seed(kind, qty)
	}

	targets := fs.TargetModules
	if len(targets) == 0 {
		for kind := range fs.Modules {
			targets = append(targets, kind)
		}
	}

	dedup := telemetry.NewChangeMonitor(0)
	f := &Factory{
		cat:         cat,
		modules:     registry,
		store:       store,
		energyState: energyState,
		transport:   fleet,
		wasteStream: wasteStream,
		software:    softwareLib,
		sched:       sched,
		settings:    st,
		rng:         rng,
		targets:     targets,
		dtHours:     0.1,
		maxHours:    10000,
		wallBudget:  3600 * time.Second,
		recorder:    telemetry.NewRecorder(),
		events:      telemetry.NewBus(1000, dedup),
		log:         telemetry.NewRingLog(),
		cleaning:    newEveryTrigger(168 * time.Hour),
		blockedReasonTotals: map[string]int{},
	}
	return f, nil
}

// batteryCapacityKWh has no dedicated constraints key in spec.md §6's
// config table; it is sized from the solar peak the way a
// rule-of-thumb off-grid design would (a few hours of peak output), so
// a run always has a meaningful buffer to test the charge/discharge
// invariants of spec.md §8 against.
func batteryCapacityKWh(fs *apispec.FactorySpec, st settings.Settings) float64 {
	if v, ok := fs.Constraints["battery_capacity_kwh"]; ok {
		if f, ok := toFloat(v); ok && f > 0 {
			return f
		}
	}
	return st.InitialSolarCapacityKW * 4
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
