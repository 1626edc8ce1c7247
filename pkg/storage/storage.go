// Package storage implements the physical inventory gated by volume and
// weight, and optional temperature compatibility (spec.md §3 "Storage",
// §4.3).
package storage

import (
	"math"

	"github.com/selfreplicating/factorysim/pkg/catalog"
	"github.com/selfreplicating/factorysim/pkg/simerrors"
)

// TemperatureToleranceC is the fixed cross-kind temperature tolerance
// for temperature-controlled storage (spec.md §3).
const TemperatureToleranceC = 10.0

// Storage is perfectly fungible per kind; there is no fragmentation
// (spec.md §4.3).
type Storage struct {
	catalog       *catalog.Catalog
	volumeCapM3   float64
	weightCapTons float64
	tempControlled bool
	enableLimits  bool
	quantity      map[string]float64
}

func New(cat *catalog.Catalog, volumeCapM3, weightCapTons float64, tempControlled, enableLimits bool) *Storage {
	return &Storage{
		catalog:        cat,
		volumeCapM3:    volumeCapM3,
		weightCapTons:  weightCapTons,
		tempControlled: tempControlled,
		enableLimits:   enableLimits,
		quantity:       map[string]float64{},
	}
}

func (s *Storage) Quantity(kind string) float64 {
	return s.quantity[kind]
}

func (s *Storage) Seed(kind string, qty float64) {
	s.quantity[kind] += qty
}

// TotalVolumeM3 is Σ(qty/density) across all stored kinds.
func (s *Storage) TotalVolumeM3() float64 {
	total := 0.0
	for kind, qty := range s.quantity {
		r, ok := s.catalog.Resource(kind)
		if !ok || r.DensityTPerM3 <= 0 {
			continue
		}
		total += qty / r.DensityTPerM3
	}
	return total
}

// TotalWeightTons is Σ qty across all stored kinds.
func (s *Storage) TotalWeightTons() float64 {
	total := 0.0
	for _, qty := range s.quantity {
		total += qty
	}
	return total
}

// CanStore implements Storage.can_store (spec.md §4.1, §4.3): checks
// the resulting total volume and weight against caps, and — when
// temperature controlled — rejects if any currently-stored kind's
// preferred temperature differs from the incoming kind's by more than
// TemperatureToleranceC.
func (s *Storage) CanStore(kind string, qty float64) (bool, string) {
	if !s.enableLimits {
		return true, ""
	}
	r, ok := s.catalog.Resource(kind)
	if !ok {
		return false, "unknown resource kind " + kind
	}
	addedVolume := 0.0
	if r.DensityTPerM3 > 0 {
		addedVolume = qty / r.DensityTPerM3
	}
	if s.TotalVolumeM3()+addedVolume > s.volumeCapM3 {
		return false, "would exceed storage volume capacity"
	}
	if s.TotalWeightTons()+qty > s.weightCapTons {
		return false, "would exceed storage weight capacity"
	}
	if s.tempControlled {
		for existingKind, existingQty := range s.quantity {
			if existingQty <= 0 || existingKind == kind {
				continue
			}
			er, ok := s.catalog.Resource(existingKind)
			if !ok {
				continue
			}
			if math.Abs(er.PreferredTemperatureC-r.PreferredTemperatureC) > TemperatureToleranceC {
				return false, "temperature incompatible with stored kind " + existingKind
			}
		}
	}
	return true, ""
}

// Deposit adds qty of kind to storage if admissible, returning a
// ResourceError (not fatal at this layer — task completion logs a
// warning and loses the output) if rejected.
func (s *Storage) Deposit(kind string, qty float64) error {
	if ok, reason := s.CanStore(kind, qty); !ok {
		return &simerrors.ResourceError{Kind: kind, Reason: reason}
	}
	s.quantity[kind] += qty
	return nil
}

// Withdraw removes qty of kind, failing with a StateInvariantError if it
// would drive the quantity negative — a code defect per spec.md §7.
func (s *Storage) Withdraw(kind string, qty float64) error {
	if s.quantity[kind] < qty-1e-9 {
		return &simerrors.StateInvariantError{Invariant: "storage non-negative", Detail: kind}
	}
	s.quantity[kind] -= qty
	if s.quantity[kind] < 0 {
		s.quantity[kind] = 0
	}
	return nil
}

// UtilizationFraction is the maximum of volume and weight utilization,
// sampled into metrics.storage_utilization (spec.md §6).
func (s *Storage) UtilizationFraction() float64 {
	volFrac := 0.0
	if s.volumeCapM3 > 0 {
		volFrac = s.TotalVolumeM3() / s.volumeCapM3
	}
	weightFrac := 0.0
	if s.weightCapTons > 0 {
		weightFrac = s.TotalWeightTons() / s.weightCapTons
	}
	return math.Max(volFrac, weightFrac)
}
