// Package spec defines the on-disk shape of a factory spec file (JSON or
// YAML, per spec.md §6). Loading and parent/profile resolution lives in
// pkg/specfile; this package only holds the data shapes, the way the
// teacher separates pkg/apis/v1beta1 (shapes) from the controllers that
// act on them.
package spec

// Metadata identifies a spec file and, optionally, the parent it should
// be deep-merged onto.
type Metadata struct {
	Name        string `json:"name" validate:"required"`
	Version     string `json:"version" validate:"required"`
	Description string `json:"description,omitempty"`
	Parent      string `json:"parent,omitempty"`
}

// Resource describes the static physical attributes of one resource
// kind (spec.md §3 "Resource").
type Resource struct {
	DensityTPerM3          float64 `json:"density_t_per_m3" validate:"required,gt=0"`
	PreferredTemperatureC  float64 `json:"preferred_temperature_c"`
	ContaminationSensitivity float64 `json:"contamination_sensitivity" validate:"gte=0,lte=1"`
	Recyclable             bool    `json:"recyclable"`
	Hazardous              bool    `json:"hazardous"`
	VolumePerUnitM3        float64 `json:"volume_per_unit_m3,omitempty"` // advisory only, see SPEC_FULL §6
}

// Recipe is an immutable rule turning inputs into an output (spec.md §3
// "Recipe").
type Recipe struct {
	OutputKind         string             `json:"output_kind" validate:"required"`
	OutputQty          float64            `json:"output_qty" validate:"required,gt=0"`
	Inputs             map[string]float64 `json:"inputs"`
	EnergyKWh          float64            `json:"energy_kwh" validate:"gte=0"`
	TimeHours          float64            `json:"time_hours" validate:"gt=0"`
	RequiredModule     string             `json:"required_module,omitempty"` // default "assembly"
	ToleranceUM        *float64           `json:"tolerance_um,omitempty"`
	CleanroomClass     *int               `json:"cleanroom_class,omitempty"`
	SoftwareRequired   string             `json:"software_required,omitempty"`
	WasteProducts      map[string]float64 `json:"waste_products,omitempty"`
	BaseBugRate        float64            `json:"base_bug_rate,omitempty"` // only meaningful when required_module == "software_dev"
}

// ModuleKindSpec is the static capability profile of one module kind
// (spec.md §3 "Module kind spec").
type ModuleKindSpec struct {
	MaxThroughput          float64  `json:"max_throughput" validate:"gt=0"`
	IdlePowerKW            float64  `json:"idle_power_kw" validate:"gte=0"`
	ActivePowerKW          float64  `json:"active_power_kw" validate:"gte=0"`
	MTBFHours              float64  `json:"mtbf_hours" validate:"gt=0"`
	MaintenanceIntervalH   float64  `json:"maintenance_interval_h" validate:"gt=0"`
	DegradationRatePer1000 float64  `json:"degradation_rate_per_1000h" validate:"gte=0"`
	FootprintM2            float64  `json:"footprint_m2" validate:"gte=0"`
	MinBatch               float64  `json:"min_batch" validate:"gte=0"`
	MaxBatch               float64  `json:"max_batch" validate:"gt=0"`
	SetupTimeH             float64  `json:"setup_time_h" validate:"gte=0"`
	BaseQuality            float64  `json:"base_quality" validate:"gt=0,lte=1"`
	ToleranceCapabilityUM  *float64 `json:"tolerance_capability_um,omitempty"`
	CleanroomClassCap      *int     `json:"cleanroom_class_capability,omitempty"`
}

// InitialState seeds the factory at t=0.
type InitialState struct {
	Modules map[string]int     `json:"modules"` // kind -> count
	Stock   map[string]float64 `json:"stock"`   // resource kind -> quantity_t
}

// FactorySpec is the fully parsed, merged spec file.
type FactorySpec struct {
	Metadata         Metadata                  `json:"metadata" validate:"required"`
	Resources        map[string]Resource       `json:"resources" validate:"required"`
	Recipes          []Recipe                  `json:"recipes" validate:"required"`
	Modules          map[string]ModuleKindSpec `json:"modules" validate:"required"`
	InitialState     InitialState              `json:"initial_state"`
	Constraints      map[string]any            `json:"constraints,omitempty"`
	Profiles         map[string]map[string]any `json:"profiles,omitempty"`
	TargetModules    []string                  `json:"target_modules,omitempty"`
}
