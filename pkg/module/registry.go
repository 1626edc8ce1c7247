package module

import "sort"

// Registry owns every module instance for the run (spec.md §3
// "Ownership: ... Module instances persist in a single registry").
type Registry struct {
	kinds     map[string]Kind
	instances map[string]*Instance // by instance ID
	byKind    map[string][]string  // kind -> instance IDs, insertion order
}

func NewRegistry(kinds map[string]Kind) *Registry {
	return &Registry{
		kinds:     kinds,
		instances: map[string]*Instance{},
		byKind:    map[string][]string{},
	}
}

func (r *Registry) Kind(name string) (Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// Add registers a new instance, e.g. at seed time or on completion of a
// recipe whose output is a module kind.
func (r *Registry) Add(inst *Instance) {
	r.instances[inst.ID] = inst
	r.byKind[inst.Kind] = append(r.byKind[inst.Kind], inst.ID)
}

func (r *Registry) Get(id string) (*Instance, bool) {
	inst, ok := r.instances[id]
	return inst, ok
}

// ByKind returns every instance of kind, in creation order.
func (r *Registry) ByKind(kind string) []*Instance {
	ids := r.byKind[kind]
	out := make([]*Instance, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.instances[id])
	}
	return out
}

// Counts returns the number of instances per kind, used in the run
// log's final_status.modules (spec.md §6).
func (r *Registry) Counts() map[string]int {
	out := map[string]int{}
	for kind, ids := range r.byKind {
		out[kind] = len(ids)
	}
	return out
}

// All returns every instance in a deterministic, creation-ordered
// traversal — kinds sorted by name, instances within a kind in
// insertion order — so scheduler gate evaluation has a stable order
// across runs with the same seed.
func (r *Registry) All() []*Instance {
	kindNames := make([]string, 0, len(r.byKind))
	for k := range r.byKind {
		kindNames = append(kindNames, k)
	}
	sort.Strings(kindNames)
	out := make([]*Instance, 0, len(r.instances))
	for _, k := range kindNames {
		out = append(out, r.ByKind(k)...)
	}
	return out
}

// AvailableOfKind returns every available (idle, non-failed,
// non-maintenance) instance of kind, or nil if none. Candidate selection beyond
// availability (tolerance/cleanroom/thermal) is the scheduler's job.
func (r *Registry) AvailableOfKind(kind string) []*Instance {
	var out []*Instance
	for _, inst := range r.ByKind(kind) {
		if inst.Available() {
			out = append(out, inst)
		}
	}
	return out
}

// AverageEfficiency is the run log metric "module_efficiency": the
// mean efficiency across every module instance (spec.md §6), or 1.0
// with no instances.
func (r *Registry) AverageEfficiency() float64 {
	if len(r.instances) == 0 {
		return 1.0
	}
	total := 0.0
	for _, inst := range r.instances {
		total += inst.Efficiency
	}
	return total / float64(len(r.instances))
}
