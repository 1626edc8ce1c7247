package scheduler

import (
	"github.com/google/uuid"

	"github.com/selfreplicating/factorysim/pkg/catalog"
	"github.com/selfreplicating/factorysim/pkg/scheduler/expandcache"
	"github.com/selfreplicating/factorysim/pkg/simerrors"
)

// CreateProductionTask implements create_production_task (spec.md
// §4.1): recipe expansion of a requested (kind, quantity) into a task,
// recursively expanding any input deficit or missing software
// prerequisite as dependency tasks, with cycle-safe visited-path
// handling. Every task created, including intermediate dependency
// tasks, is pushed onto the scheduler's priority queue before this
// returns.
func (s *Scheduler) CreateProductionTask(kind string, quantity float64, priority int) (*Task, error) {
	return s.expand(kind, quantity, priority, nil)
}

func (s *Scheduler) expand(kind string, quantity float64, priority int, path []string) (*Task, error) {
	if containsKind(path, kind) {
		return nil, &simerrors.CycleError{Path: append(append([]string{}, path...), kind)}
	}
	// path' = path + kind, copied so sibling recursive calls below each
	// get their own slice and cannot pollute one another's visited set
	// (spec.md §4.1: "the recursive call must use a copy of V'").
	extended := append(append([]string{}, path...), kind)

	recipe, ok := s.cat.Recipe(kind)
	if !ok {
		return nil, &simerrors.NoRecipeError{Kind: kind}
	}

	if okStore, reason := s.store.CanStore(kind, quantity); !okStore {
		return nil, &simerrors.ResourceError{Kind: kind, Reason: reason, Fatal: true}
	}

	task := &Task{
		ID:         uuid.NewString(),
		Priority:   priority,
		OutputKind: kind,
		Quantity:   quantity,
		Recipe:     recipe,
		Status:     StatusQueued,
	}

	required := s.requiredInputs(recipe, quantity)
	for inputKind, need := range required {
		avail := s.store.Quantity(inputKind)
		if avail < need {
			// Recycled material is subtracted from waste and counted as
			// available (spec.md §4.8): reclaim the shortfall right now,
			// rather than merely counting it, so a later resource gate
			// checking storage directly sees it.
			if reclaimed := s.waste.Reclaim(s.cat, inputKind, need-avail); reclaimed > 0 {
				_ = s.store.Deposit(inputKind, reclaimed)
				avail = s.store.Quantity(inputKind)
			}
		}
		if avail >= need {
			continue
		}
		deficit := (need - avail) * 1.1
		depTask, err := s.expand(inputKind, deficit, priority+1, extended)
		if err != nil {
			return nil, err
		}
		task.DependencyTaskIDs = append(task.DependencyTaskIDs, depTask.ID)
	}

	if recipe.SoftwareRequired != "" && !s.software.Has(recipe.SoftwareRequired) {
		if swRecipe, ok := s.cat.Recipe(recipe.SoftwareRequired); ok {
			s.software.SetBaseRate(recipe.SoftwareRequired, swRecipe.BaseBugRate)
		}
		swTask, err := s.expand(recipe.SoftwareRequired, 1, priority+2, extended)
		if err != nil {
			return nil, err
		}
		task.DependencyTaskIDs = append(task.DependencyTaskIDs, swTask.ID)
	}

	s.queue.Push(task)
	s.tasksByID[task.ID] = task
	return task, nil
}

// requiredInputs scales recipe's per-output-unit inputs to the concrete
// quantity requested, via the bounded LRU cache keyed by (output_kind,
// quantity) named in spec.md §5 ("Caches").
func (s *Scheduler) requiredInputs(recipe catalog.Recipe, quantity float64) map[string]float64 {
	key := expandcache.Key{OutputKind: recipe.OutputKind, Quantity: quantity}
	if cached, ok := s.expandCache.Get(key); ok {
		return cached.Inputs
	}
	out := make(map[string]float64, len(recipe.Inputs))
	for inputKind, perOutputQty := range recipe.Inputs {
		out[inputKind] = perOutputQty * quantity / recipe.OutputQty
	}
	s.expandCache.Add(key, expandcache.Requirement{Inputs: out})
	return out
}

func containsKind(path []string, kind string) bool {
	for _, p := range path {
		if p == kind {
			return true
		}
	}
	return false
}
