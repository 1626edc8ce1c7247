// Package catalog is the static registry of resource kinds and recipes
// for one simulation run (spec.md §3 "Resource", "Recipe"). It never
// changes after construction — §9's design note recommends compact
// integer handles with a side table; this implementation keeps the
// stable string names as keys directly (spec.md §3: "Resources are
// identified by stable names") and relies on Go's map lookups being
// O(1) amortized, which is sufficient at the scale this simulator runs
// at. A handle-table layer can be slotted in later without changing any
// caller-visible API.
package catalog

import (
	"github.com/selfreplicating/factorysim/pkg/apis/spec"
	"github.com/selfreplicating/factorysim/pkg/simerrors"
)

// Resource is the immutable, run-scoped physical profile of one
// resource kind.
type Resource struct {
	Kind                     string
	DensityTPerM3            float64
	PreferredTemperatureC    float64
	ContaminationSensitivity float64
	Recyclable               bool
	Hazardous                bool
	VolumePerUnitM3          float64
}

// Recipe is the immutable rule turning Inputs into Output (spec.md §3).
type Recipe struct {
	OutputKind       string
	OutputQty        float64
	Inputs           map[string]float64
	EnergyKWh        float64
	TimeHours        float64
	RequiredModule   string
	ToleranceUM      *float64
	CleanroomClass   *int
	SoftwareRequired string
	WasteProducts    map[string]float64
	BaseBugRate      float64
}

// Catalog is the fixed-for-the-run registry of resources and recipes.
type Catalog struct {
	resources map[string]Resource
	recipes   map[string]Recipe // keyed by output_kind; spec.md assumes one recipe per output
}

// New builds a Catalog from a parsed spec file. The spec is assumed
// already validated (pkg/apis/spec.FactorySpec.Validate), so this never
// returns an error for malformed references — only for a genuinely
// duplicate recipe output, which validation does not check because two
// recipes producing the same kind is not itself invalid data, just
// unsupported by this scheduler (spec.md §3 treats recipe lookup as a
// single output->recipe mapping).
func New(s *spec.FactorySpec) (*Catalog, error) {
	c := &Catalog{
		resources: make(map[string]Resource, len(s.Resources)),
		recipes:   make(map[string]Recipe, len(s.Recipes)),
	}
	for kind, r := range s.Resources {
		c.resources[kind] = Resource{
			Kind:                     kind,
			DensityTPerM3:            r.DensityTPerM3,
			PreferredTemperatureC:    r.PreferredTemperatureC,
			ContaminationSensitivity: r.ContaminationSensitivity,
			Recyclable:               r.Recyclable,
			Hazardous:                r.Hazardous,
			VolumePerUnitM3:          r.VolumePerUnitM3,
		}
	}
	for _, r := range s.Recipes {
		if _, exists := c.recipes[r.OutputKind]; exists {
			return nil, &simerrors.SpecError{Path: "recipes", Reason: "duplicate recipe output kind " + r.OutputKind}
		}
		required := r.RequiredModule
		if required == "" {
			required = "assembly"
		}
		baseBugRate := r.BaseBugRate
		if required == "software_dev" && baseBugRate <= 0 {
			baseBugRate = 0.2
		}
		c.recipes[r.OutputKind] = Recipe{
			OutputKind:       r.OutputKind,
			OutputQty:        r.OutputQty,
			Inputs:           r.Inputs,
			EnergyKWh:        r.EnergyKWh,
			TimeHours:        r.TimeHours,
			RequiredModule:   required,
			ToleranceUM:      r.ToleranceUM,
			CleanroomClass:   r.CleanroomClass,
			SoftwareRequired: r.SoftwareRequired,
			WasteProducts:    r.WasteProducts,
			BaseBugRate:      baseBugRate,
		}
	}
	return c, nil
}

// Resource looks up a resource kind's static profile.
func (c *Catalog) Resource(kind string) (Resource, bool) {
	r, ok := c.resources[kind]
	return r, ok
}

// Recipe looks up the recipe that produces kind.
func (c *Catalog) Recipe(kind string) (Recipe, bool) {
	r, ok := c.recipes[kind]
	return r, ok
}

// IsSoftwareKind reports whether kind is only ever produced by a
// software-production recipe (required_module == "software_dev"),
// used by pkg/software and the scheduler's completion path to decide
// whether a completed task should update the software library instead
// of physical storage.
func (c *Catalog) IsSoftwareKind(kind string) bool {
	r, ok := c.recipes[kind]
	return ok && r.RequiredModule == "software_dev"
}

// IsModuleKind reports whether kind names a module kind rather than a
// material/software resource, used by task completion to decide whether
// to instantiate a new module instance (spec.md §4.1 "Completion").
func (c *Catalog) IsModuleKind(modules map[string]spec.ModuleKindSpec, kind string) bool {
	_, ok := modules[kind]
	return ok
}

// RecyclableFraction returns the fixed recovery fraction for a
// recyclable resource kind (spec.md §4.8), falling back to the
// Resource's own density-free default of zero for anything not
// explicitly listed.
func RecyclableFraction(kind string) float64 {
	switch kind {
	case "steel":
		return 0.95
	case "aluminum":
		return 0.90
	case "copper":
		return 0.85
	case "plastic":
		return 0.60
	case "glass":
		return 0.80
	case "wafers":
		return 0.70
	default:
		return 0
	}
}
