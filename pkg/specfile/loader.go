// Package specfile loads a factory spec file from disk (spec.md §6),
// resolving its optional "parent" inheritance chain and "profiles"
// overrides. This is the thin glue spec.md §1 calls out of CORE scope:
// it only decodes bytes into pkg/apis/spec types and deep-merges maps,
// doing none of the simulation's own logic.
package specfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/imdario/mergo"
	"sigs.k8s.io/yaml"

	"github.com/selfreplicating/factorysim/pkg/apis/spec"
	"github.com/selfreplicating/factorysim/pkg/simerrors"
)

// Load reads, parses, and resolves the spec file at path, following its
// "parent" chain (each parent path resolved relative to the child) and
// deep-merging child over parent (child overrides leaf values, unions
// object keys), per spec.md §6. If profile is non-empty, the named entry
// of the resolved spec's "profiles" map is merged on last.
func Load(path string, profile string) (*spec.FactorySpec, error) {
	s, err := loadChain(path, map[string]bool{})
	if err != nil {
		return nil, err
	}
	if profile != "" {
		override, ok := s.Profiles[profile]
		if !ok {
			return nil, &simerrors.SpecError{Path: path, Reason: fmt.Sprintf("unknown profile %q", profile)}
		}
		if s.Constraints == nil {
			s.Constraints = map[string]any{}
		}
		if err := mergo.Merge(&s.Constraints, override, mergo.WithOverride); err != nil {
			return nil, &simerrors.SpecError{Path: path, Reason: fmt.Sprintf("merging profile %q: %s", profile, err)}
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func loadChain(path string, seen map[string]bool) (*spec.FactorySpec, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &simerrors.SpecError{Path: path, Reason: err.Error()}
	}
	if seen[abs] {
		return nil, &simerrors.SpecError{Path: path, Reason: "parent inheritance cycle"}
	}
	seen[abs] = true

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &simerrors.SpecError{Path: path, Reason: fmt.Sprintf("not found: %s", err)}
	}
	var child spec.FactorySpec
	if err := yaml.Unmarshal(raw, &child); err != nil {
		return nil, &simerrors.SpecError{Path: path, Reason: fmt.Sprintf("parse: %s", err)}
	}
	if child.Metadata.Parent == "" {
		return &child, nil
	}

	parentPath := child.Metadata.Parent
	if !filepath.IsAbs(parentPath) {
		parentPath = filepath.Join(filepath.Dir(path), parentPath)
	}
	parent, err := loadChain(parentPath, seen)
	if err != nil {
		return nil, err
	}
	merged := *parent
	if err := mergo.Merge(&merged, child, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return nil, &simerrors.SpecError{Path: path, Reason: fmt.Sprintf("merging parent %q: %s", parentPath, err)}
	}
	// mergo doesn't replace map entries wholesale with WithOverride for
	// nested maps of structs predictably across all Go versions; resources
	// and modules are unioned by key explicitly to guarantee child wins.
	for k, v := range child.Resources {
		if merged.Resources == nil {
			merged.Resources = map[string]spec.Resource{}
		}
		merged.Resources[k] = v
	}
	for k, v := range child.Modules {
		if merged.Modules == nil {
			merged.Modules = map[string]spec.ModuleKindSpec{}
		}
		merged.Modules[k] = v
	}
	if len(child.Recipes) > 0 {
		merged.Recipes = child.Recipes
	}
	if child.Metadata.Name != "" {
		merged.Metadata = child.Metadata
	}
	return &merged, nil
}
