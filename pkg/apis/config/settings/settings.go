/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package settings resolves the flat "constraints" map of a spec file
// (spec.md §6) into a typed, validated Settings struct threaded through
// context.Context. Adapted from the teacher's ConfigMap-sourced settings:
// the source here is a parsed spec file's constraints map rather than a
// Kubernetes ConfigMap, and parse/validate failures are returned as
// *simerrors.ConfigError instead of panicking, since a CLI run should
// report a structured error and exit non-zero rather than crash raw.
package settings

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	"github.com/selfreplicating/factorysim/pkg/simerrors"
)

type ctxKey struct{}

// Settings is the resolved runtime configuration for one simulation run,
// covering every key in the "Config parameters" table of spec.md §6.
type Settings struct {
	InitialSolarCapacityKW float64 `json:"initial_solar_capacity_kw" validate:"gt=0"`
	SolarPanelEfficiency   float64 `json:"solar_panel_efficiency" validate:"gt=0,lte=1"`
	BatteryEfficiency      float64 `json:"battery_efficiency" validate:"gt=0,lte=1"`
	LatitudeDeg            float64 `json:"latitude" validate:"gte=-90,lte=90"`
	AverageCloudCover      float64 `json:"average_cloud_cover" validate:"gte=0,lte=1"`
	AmbientTemperatureC    float64 `json:"ambient_temperature" validate:"required_with=AmbientTemperatureSet"`
	AmbientTemperatureSet  bool    `json:"-"`
	FactoryAreaM2          float64 `json:"factory_area_m2" validate:"gt=0"`
	MaxStorageVolumeM3     float64 `json:"max_storage_volume_m3" validate:"gt=0"`
	MaxStorageWeightTons   float64 `json:"max_storage_weight_tons" validate:"gt=0"`
	AGVFleetSize           int     `json:"agv_fleet_size" validate:"gte=0"`
	CleanroomClass         int     `json:"cleanroom_class" validate:"gt=0"`
	ParallelProcessingLimit int    `json:"parallel_processing_limit" validate:"gt=0"`
	CoolingCapacityKW      float64 `json:"cooling_capacity_kw" validate:"gt=0"`
	ConveyorSpeedMPerH     float64 `json:"conveyor_speed_m_per_h" validate:"gt=0"`
	ConveyorCapacityTons   float64 `json:"conveyor_capacity_tons" validate:"gt=0"`
	AGVSpeedMPerH          float64 `json:"agv_speed_m_per_h" validate:"gt=0"`
	AGVCapacityTons        float64 `json:"agv_capacity_tons" validate:"gt=0"`
	ModuleSpacingM         float64 `json:"module_spacing_m" validate:"gt=0"`

	EnableCapacityLimits    bool `json:"enable_capacity_limits"`
	EnableDegradation       bool `json:"enable_degradation"`
	EnableQualityControl    bool `json:"enable_quality_control"`
	EnableWeather           bool `json:"enable_weather"`
	EnableMaintenance       bool `json:"enable_maintenance"`
	EnableStorageLimits     bool `json:"enable_storage_limits"`
	EnableBatchProcessing   bool `json:"enable_batch_processing"`
	EnableTransportTime     bool `json:"enable_transport_time"`
	EnableContamination     bool `json:"enable_contamination"`
	EnableThermalManagement bool `json:"enable_thermal_management"`
	EnableSoftwareProduction bool `json:"enable_software_production"`
	EnableWasteRecycling    bool `json:"enable_waste_recycling"`
}

// Default returns the Settings produced by the default table in spec.md §6.
func Default() Settings {
	return Settings{
		InitialSolarCapacityKW:  100,
		SolarPanelEfficiency:    0.22,
		BatteryEfficiency:       0.95,
		LatitudeDeg:             35,
		AverageCloudCover:       0.3,
		AmbientTemperatureC:     25,
		AmbientTemperatureSet:   true,
		FactoryAreaM2:           20000,
		MaxStorageVolumeM3:      15000,
		MaxStorageWeightTons:    10000,
		AGVFleetSize:            10,
		CleanroomClass:          1000,
		ParallelProcessingLimit: 10,
		CoolingCapacityKW:       10000,
		ConveyorSpeedMPerH:      5000,
		ConveyorCapacityTons:    50,
		AGVSpeedMPerH:           3000,
		AGVCapacityTons:         20,
		ModuleSpacingM:          50,

		EnableCapacityLimits:     true,
		EnableDegradation:        true,
		EnableQualityControl:     true,
		EnableWeather:            true,
		EnableMaintenance:        true,
		EnableStorageLimits:      true,
		EnableBatchProcessing:    true,
		EnableTransportTime:      true,
		EnableContamination:      true,
		EnableThermalManagement:  true,
		EnableSoftwareProduction: true,
		EnableWasteRecycling:     true,
	}
}

// FromConstraints merges a spec file's "constraints" map onto Default(),
// the way the teacher's NewSettingsFromConfigMap merges ConfigMap data
// onto defaultSettings.
func FromConstraints(constraints map[string]any) (Settings, error) {
	s := Default()
	var errs error
	setFloat := func(key string, target *float64) {
		if v, ok := constraints[key]; ok {
			f, ok := toFloat(v)
			if !ok {
				errs = multierr.Append(errs, &simerrors.ConfigError{Key: key, Value: v, Reason: "expected a number"})
				return
			}
			*target = f
		}
	}
	setInt := func(key string, target *int) {
		if v, ok := constraints[key]; ok {
			f, ok := toFloat(v)
			if !ok {
				errs = multierr.Append(errs, &simerrors.ConfigError{Key: key, Value: v, Reason: "expected a number"})
				return
			}
			*target = int(f)
		}
	}
	setBool := func(key string, target *bool) {
		if v, ok := constraints[key]; ok {
			b, ok := v.(bool)
			if !ok {
				errs = multierr.Append(errs, &simerrors.ConfigError{Key: key, Value: v, Reason: "expected a boolean"})
				return
			}
			*target = b
		}
	}

	setFloat("initial_solar_capacity_kw", &s.InitialSolarCapacityKW)
	setFloat("solar_panel_efficiency", &s.SolarPanelEfficiency)
	setFloat("battery_efficiency", &s.BatteryEfficiency)
	setFloat("latitude", &s.LatitudeDeg)
	setFloat("average_cloud_cover", &s.AverageCloudCover)
	setFloat("ambient_temperature", &s.AmbientTemperatureC)
	setFloat("factory_area_m2", &s.FactoryAreaM2)
	setFloat("max_storage_volume_m3", &s.MaxStorageVolumeM3)
	setFloat("max_storage_weight_tons", &s.MaxStorageWeightTons)
	setInt("agv_fleet_size", &s.AGVFleetSize)
	setInt("cleanroom_class", &s.CleanroomClass)
	setInt("parallel_processing_limit", &s.ParallelProcessingLimit)
	setFloat("cooling_capacity_kw", &s.CoolingCapacityKW)
	setFloat("conveyor_speed_m_per_h", &s.ConveyorSpeedMPerH)
	setFloat("conveyor_capacity_tons", &s.ConveyorCapacityTons)
	setFloat("agv_speed_m_per_h", &s.AGVSpeedMPerH)
	setFloat("agv_capacity_tons", &s.AGVCapacityTons)
	setFloat("module_spacing_m", &s.ModuleSpacingM)

	setBool("enable_capacity_limits", &s.EnableCapacityLimits)
	setBool("enable_degradation", &s.EnableDegradation)
	setBool("enable_quality_control", &s.EnableQualityControl)
	setBool("enable_weather", &s.EnableWeather)
	setBool("enable_maintenance", &s.EnableMaintenance)
	setBool("enable_storage_limits", &s.EnableStorageLimits)
	setBool("enable_batch_processing", &s.EnableBatchProcessing)
	setBool("enable_transport_time", &s.EnableTransportTime)
	setBool("enable_contamination", &s.EnableContamination)
	setBool("enable_thermal_management", &s.EnableThermalManagement)
	setBool("enable_software_production", &s.EnableSoftwareProduction)
	setBool("enable_waste_recycling", &s.EnableWasteRecycling)

	if errs != nil {
		return s, errs
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func ToContext(ctx context.Context, s Settings) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the settings carried on ctx. Unlike the teacher's
// FromContext, which panics on a missing value (a k8s controller can
// never legitimately run without settings wired by its operator
// bootstrap), this returns Default() so library code composing
// this package in tests doesn't need to wire a full context.
func FromContext(ctx context.Context) Settings {
	if s, ok := ctx.Value(ctxKey{}).(Settings); ok {
		return s
	}
	return Default()
}

func (s Settings) Validate() error {
	v := validator.New()
	var errs error
	if err := v.Struct(s); err != nil {
		errs = multierr.Append(errs, &simerrors.ConfigError{Key: "settings", Value: nil, Reason: err.Error()})
	}
	if s.MaxStorageVolumeM3 <= 0 || s.MaxStorageWeightTons <= 0 {
		errs = multierr.Append(errs, &simerrors.ConfigError{Key: "max_storage_volume_m3/max_storage_weight_tons", Reason: "storage caps must be positive"})
	}
	if s.ParallelProcessingLimit <= 0 {
		errs = multierr.Append(errs, &simerrors.ConfigError{Key: "parallel_processing_limit", Value: s.ParallelProcessingLimit, Reason: fmt.Sprintf("must be positive, got %d", s.ParallelProcessingLimit)})
	}
	return errs
}
