// Package waste tracks accumulated waste per resource kind and the
// recyclable fraction that can be reclaimed back into available
// material (spec.md §3 "Waste stream", §4.8).
package waste

import "github.com/selfreplicating/factorysim/pkg/catalog"

// Stream is the mutable waste inventory for the run.
type Stream struct {
	enableRecycling bool
	quantity        map[string]float64
}

func New(enableRecycling bool) *Stream {
	return &Stream{enableRecycling: enableRecycling, quantity: map[string]float64{}}
}

// Add records newly generated waste of kind.
func (s *Stream) Add(kind string, qty float64) {
	if qty <= 0 {
		return
	}
	s.quantity[kind] += qty
}

// Available returns the waste-stream quantity of kind.
func (s *Stream) Available(kind string) float64 {
	return s.quantity[kind]
}

// Total sums all waste kinds, reported in final_status.waste_total.
func (s *Stream) Total() float64 {
	total := 0.0
	for _, q := range s.quantity {
		total += q
	}
	return total
}

// ReclaimableYield returns how much of kind the waste stream would
// yield if fully reclaimed right now: quantity * recoverable fraction,
// or zero if recycling is disabled or the kind isn't recyclable
// (spec.md §4.8, used by recipe expansion's deficit calculation).
func (s *Stream) ReclaimableYield(cat *catalog.Catalog, kind string) float64 {
	if !s.enableRecycling {
		return 0
	}
	r, ok := cat.Resource(kind)
	if !ok || !r.Recyclable {
		return 0
	}
	return s.quantity[kind] * catalog.RecyclableFraction(kind)
}

// Reclaim draws up to amount of reclaimable kind from the waste stream,
// returning the amount actually reclaimed. The caller (recipe expansion)
// is responsible for crediting the recovered material to available
// supply; Reclaim only debits the waste-stream side.
func (s *Stream) Reclaim(cat *catalog.Catalog, kind string, amount float64) float64 {
	yield := s.ReclaimableYield(cat, kind)
	if amount > yield {
		amount = yield
	}
	if amount <= 0 {
		return 0
	}
	frac := catalog.RecyclableFraction(kind)
	if frac <= 0 {
		return 0
	}
	rawConsumed := amount / frac
	if rawConsumed > s.quantity[kind] {
		rawConsumed = s.quantity[kind]
		amount = rawConsumed * frac
	}
	s.quantity[kind] -= rawConsumed
	return amount
}
