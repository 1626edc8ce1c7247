// Package factorytest builds minimal, valid FactorySpec fixtures for
// other packages' test suites, the way the teacher's pkg/test builds
// NodePool/NodeClaim fixtures for its scheduling suites.
package factorytest

import (
	"github.com/Pallinder/go-randomdata"

	"github.com/selfreplicating/factorysim/pkg/apis/spec"
)

// MinimalSpec returns a tiny, internally consistent FactorySpec: one raw
// resource, a resource entry for the module kind (so its output can be
// stored), one module kind able to turn the raw resource into a module
// of its own kind, and one unit of that module seeded at t=0. Every run name is
// randomized with go-randomdata so parallel test suites never collide
// on on-disk fixture paths.
func MinimalSpec() *spec.FactorySpec {
	resourceKind := "raw_ore"
	moduleKind := "assembly"
	tolerance := 50.0
	cleanroomClass := 1000

	return &spec.FactorySpec{
		Metadata: spec.Metadata{
			Name:    randomdata.SillyName(),
			Version: "1",
		},
		Resources: map[string]spec.Resource{
			resourceKind: {
				DensityTPerM3: 2.5,
			},
			moduleKind: {
				DensityTPerM3: 1,
			},
		},
		Recipes: []spec.Recipe{
			{
				OutputKind:     moduleKind,
				OutputQty:      1,
				Inputs:         map[string]float64{resourceKind: 1},
				EnergyKWh:      5,
				TimeHours:      1,
				RequiredModule: moduleKind,
				ToleranceUM:    &tolerance,
				CleanroomClass: &cleanroomClass,
			},
		},
		Modules: map[string]spec.ModuleKindSpec{
			moduleKind: {
				MaxThroughput:         10,
				IdlePowerKW:           1,
				ActivePowerKW:         5,
				MTBFHours:             10000,
				MaintenanceIntervalH:  1000,
				FootprintM2:           50,
				MinBatch:              0,
				MaxBatch:              10,
				SetupTimeH:            0.1,
				BaseQuality:           0.99,
				ToleranceCapabilityUM: &tolerance,
				CleanroomClassCap:     &cleanroomClass,
			},
		},
		InitialState: spec.InitialState{
			Modules: map[string]int{moduleKind: 1},
			Stock:   map[string]float64{resourceKind: 100},
		},
		TargetModules: []string{moduleKind},
	}
}
