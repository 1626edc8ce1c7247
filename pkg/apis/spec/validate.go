package spec

import (
	"fmt"

	validatorpkg "github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/selfreplicating/factorysim/pkg/simerrors"
)

var validate = validatorpkg.New()

// Validate performs ordinary schema validation (struct tags) plus
// referential-integrity and cycle checks across resources/recipes/modules.
// This is "ordinary schema checks," not the Pydantic-style meta-validator
// spec.md §1 excludes.
func (f *FactorySpec) Validate() error {
	var errs error
	if err := validate.Struct(f); err != nil {
		errs = multierr.Append(errs, &simerrors.SpecError{Path: f.Metadata.Name, Reason: err.Error()})
	}
	errs = multierr.Append(errs, f.validateReferences())
	errs = multierr.Append(errs, f.validateRecipeAcyclic())
	return errs
}

func (f *FactorySpec) validateReferences() error {
	var errs error
	for i, r := range f.Recipes {
		if _, ok := f.Resources[r.OutputKind]; !ok {
			errs = multierr.Append(errs, &simerrors.SpecError{
				Path: fmt.Sprintf("recipes[%d].output_kind", i), Reason: fmt.Sprintf("unknown resource kind %q", r.OutputKind),
			})
		}
		for in := range r.Inputs {
			if _, ok := f.Resources[in]; !ok {
				errs = multierr.Append(errs, &simerrors.SpecError{
					Path: fmt.Sprintf("recipes[%d].inputs", i), Reason: fmt.Sprintf("unknown resource kind %q", in),
				})
			}
		}
		required := r.RequiredModule
		if required == "" {
			required = "assembly"
		}
		if _, ok := f.Modules[required]; !ok {
			errs = multierr.Append(errs, &simerrors.SpecError{
				Path: fmt.Sprintf("recipes[%d].required_module", i), Reason: fmt.Sprintf("unknown module kind %q", required),
			})
		}
		if r.SoftwareRequired != "" {
			if _, ok := f.Resources[r.SoftwareRequired]; !ok {
				errs = multierr.Append(errs, &simerrors.SpecError{
					Path: fmt.Sprintf("recipes[%d].software_required", i), Reason: fmt.Sprintf("unknown resource kind %q", r.SoftwareRequired),
				})
			}
		}
	}
	for kind := range f.InitialState.Modules {
		if _, ok := f.Modules[kind]; !ok {
			errs = multierr.Append(errs, &simerrors.SpecError{
				Path: "initial_state.modules", Reason: fmt.Sprintf("unknown module kind %q", kind),
			})
		}
	}
	for kind := range f.InitialState.Stock {
		if _, ok := f.Resources[kind]; !ok {
			errs = multierr.Append(errs, &simerrors.SpecError{
				Path: "initial_state.stock", Reason: fmt.Sprintf("unknown resource kind %q", kind),
			})
		}
	}
	return errs
}

// validateRecipeAcyclic performs a static check of the output->input
// edges across the whole recipe set, independent of the scheduler's
// dynamic per-expansion visited-set check (spec.md §4.1). Catching a
// cycle at load time lets a malformed spec fail fast, before any
// simulated time has elapsed.
func (f *FactorySpec) validateRecipeAcyclic() error {
	byOutput := map[string]Recipe{}
	for _, r := range f.Recipes {
		byOutput[r.OutputKind] = r
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var path []string
	var visit func(kind string) error
	visit = func(kind string) error {
		switch color[kind] {
		case black:
			return nil
		case gray:
			return &simerrors.CycleError{Path: append(append([]string{}, path...), kind)}
		}
		color[kind] = gray
		path = append(path, kind)
		r, ok := byOutput[kind]
		if ok {
			for in := range r.Inputs {
				if err := visit(in); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[kind] = black
		return nil
	}
	for _, kind := range lo.Keys(byOutput) {
		if err := visit(kind); err != nil {
			return err
		}
	}
	return nil
}
