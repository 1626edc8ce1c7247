// Package software treats software packages as producible assets with
// versioning, bug rates, and a prerequisite chain (spec.md §3 "Software
// library", §4.9).
package software

// Package is one (kind, version) entry in the software library.
type Package struct {
	Kind              string
	Version           int
	BugRate           float64
	DevHoursTotal     float64
	CompatibleModules []string
}

// Reliability is 1 - bug_rate, used by the scheduler's calculation of
// software_reliability (spec.md §4.9).
func (p Package) Reliability() float64 { return 1 - p.BugRate }

// Library holds the latest-version package per software kind.
type Library struct {
	baseRate map[string]float64 // base_rate per kind, from the recipe/spec
	latest   map[string]*Package
}

func NewLibrary() *Library {
	return &Library{baseRate: map[string]float64{}, latest: map[string]*Package{}}
}

// Has reports whether kind has ever been produced.
func (l *Library) Has(kind string) bool {
	_, ok := l.latest[kind]
	return ok
}

// Latest returns the highest-version package for kind.
func (l *Library) Latest(kind string) (*Package, bool) {
	p, ok := l.latest[kind]
	return p, ok
}

// SetBaseRate records the base bug rate declared for kind (from its
// recipe), used the first time that kind is produced.
func (l *Library) SetBaseRate(kind string, rate float64) {
	if _, ok := l.baseRate[kind]; !ok {
		l.baseRate[kind] = rate
	}
}

// Produce records completion of one software-production task for kind,
// incrementing its version and computing the new bug rate (spec.md
// §4.9): bug_rate = base_rate * max(0.5, 1 - dev_hours_total/1000) * 0.1.
func (l *Library) Produce(kind string, devHours float64) *Package {
	base := l.baseRate[kind]
	prevVersion := 0
	devTotal := devHours
	if prev, ok := l.latest[kind]; ok {
		prevVersion = prev.Version
		devTotal = prev.DevHoursTotal + devHours
	}
	testingFactor := 1 - devTotal/1000
	if testingFactor < 0.5 {
		testingFactor = 0.5
	}
	pkg := &Package{
		Kind:          kind,
		Version:       prevVersion + 1,
		BugRate:       base * testingFactor * 0.1,
		DevHoursTotal: devTotal,
	}
	l.latest[kind] = pkg
	return pkg
}

// ReliabilityFor returns the reliability to apply to a recipe that
// declares software_required == kind: 1.0 if no software is required or
// none has been produced yet should never be reached (the scheduler
// only lets such a task run once the software exists), but is handled
// defensively here anyway.
func (l *Library) ReliabilityFor(kind string) float64 {
	if kind == "" {
		return 1.0
	}
	if p, ok := l.latest[kind]; ok {
		return p.Reliability()
	}
	return 1.0
}

// TotalPackages is reported in final_status.software_packages.
func (l *Library) TotalPackages() int {
	return len(l.latest)
}

// AverageBugRate is the mean bug_rate across the latest version of
// every software kind produced so far, used by the run log's
// "software_bugs" metric (spec.md §6), or 0 before any software exists.
func (l *Library) AverageBugRate() float64 {
	if len(l.latest) == 0 {
		return 0
	}
	total := 0.0
	for _, p := range l.latest {
		total += p.BugRate
	}
	return total / float64(len(l.latest))
}
