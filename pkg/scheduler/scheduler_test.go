package scheduler_test

import (
	"context"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/selfreplicating/factorysim/pkg/apis/config/settings"
	"github.com/selfreplicating/factorysim/pkg/apis/spec"
	"github.com/selfreplicating/factorysim/pkg/catalog"
	"github.com/selfreplicating/factorysim/pkg/energy"
	"github.com/selfreplicating/factorysim/pkg/module"
	"github.com/selfreplicating/factorysim/pkg/scheduler"
	"github.com/selfreplicating/factorysim/pkg/software"
	"github.com/selfreplicating/factorysim/pkg/storage"
	"github.com/selfreplicating/factorysim/pkg/transport"
	"github.com/selfreplicating/factorysim/pkg/waste"
)

// harness bundles a scheduler with the subsystems it was built from, so
// tests can inspect storage/waste/transport state directly rather than
// only through the scheduler's own accessors.
type harness struct {
	sched     *scheduler.Scheduler
	cat       *catalog.Catalog
	registry  *module.Registry
	store     *storage.Storage
	energy    *energy.State
	waste     *waste.Stream
	transport *transport.Fleet
}

func newHarness(fs *spec.FactorySpec, st settings.Settings) *harness {
	cat, err := catalog.New(fs)
	Expect(err).NotTo(HaveOccurred())

	kinds := make(map[string]module.Kind, len(fs.Modules))
	for name, m := range fs.Modules {
		kinds[name] = module.Kind{
			Name:                  name,
			MaxThroughput:         m.MaxThroughput,
			IdlePowerKW:           m.IdlePowerKW,
			ActivePowerKW:         m.ActivePowerKW,
			MTBFHours:             m.MTBFHours,
			MaintenanceIntervalH:  m.MaintenanceIntervalH,
			FootprintM2:           m.FootprintM2,
			MinBatch:              m.MinBatch,
			MaxBatch:              m.MaxBatch,
			SetupTimeH:            m.SetupTimeH,
			BaseQuality:           m.BaseQuality,
			ToleranceCapabilityUM: m.ToleranceCapabilityUM,
			CleanroomClassCap:     m.CleanroomClassCap,
		}
	}
	registry := module.NewRegistry(kinds)
	store := storage.New(cat, st.MaxStorageVolumeM3, st.MaxStorageWeightTons, false, st.EnableStorageLimits)
	energyState := energy.New(st.InitialSolarCapacityKW, st.InitialSolarCapacityKW*4, st.BatteryEfficiency, st.LatitudeDeg, st.AverageCloudCover, false)
	wasteStream := waste.New(st.EnableWasteRecycling)
	softwareLib := software.NewLibrary()
	fleet := transport.NewFleet(st.ModuleSpacingM, st.AGVFleetSize, st.AGVCapacityTons, st.AGVSpeedMPerH, st.ConveyorCapacityTons, st.ConveyorSpeedMPerH, st.EnableTransportTime)
	rng := rand.New(rand.NewSource(1))

	sched := scheduler.New(cat, registry, store, energyState, wasteStream, softwareLib, fleet, st, rng)
	sched.SetCurrentGeneration(st.InitialSolarCapacityKW)

	return &harness{sched: sched, cat: cat, registry: registry, store: store, energy: energyState, waste: wasteStream, transport: fleet}
}

func (h *harness) addModule(kind string, count int) {
	for i := 0; i < count; i++ {
		inst := module.NewInstance(kind, 22)
		h.registry.Add(inst)
		if k, ok := h.registry.Kind(kind); ok && k.CleanroomClassCap != nil {
			h.sched.RegisterCleanroom(inst.ID, *k.CleanroomClassCap)
		}
	}
}

func baseModuleSpec() spec.ModuleKindSpec {
	return spec.ModuleKindSpec{
		MaxThroughput:        100,
		IdlePowerKW:          1,
		ActivePowerKW:        5,
		MTBFHours:            1_000_000,
		MaintenanceIntervalH: 1_000_000,
		FootprintM2:          50,
		MinBatch:             0,
		MaxBatch:             1000,
		SetupTimeH:           0,
		BaseQuality:          1.0,
	}
}

var _ = Describe("CreateProductionTask", func() {
	It("detects a direct cycle and leaves the queue untouched", func() {
		fs := &spec.FactorySpec{
			Metadata: spec.Metadata{Name: "t", Version: "1"},
			Resources: map[string]spec.Resource{
				"a": {DensityTPerM3: 1},
				"b": {DensityTPerM3: 1},
			},
			Recipes: []spec.Recipe{
				{OutputKind: "a", OutputQty: 1, TimeHours: 1, Inputs: map[string]float64{"b": 1}, RequiredModule: "assembly"},
				{OutputKind: "b", OutputQty: 1, TimeHours: 1, Inputs: map[string]float64{"a": 1}, RequiredModule: "assembly"},
			},
			Modules: map[string]spec.ModuleKindSpec{"assembly": baseModuleSpec()},
		}
		h := newHarness(fs, settings.Default())
		h.addModule("assembly", 1)

		_, err := h.sched.CreateProductionTask("a", 10, 0)

		Expect(err).To(HaveOccurred())
		Expect(h.sched.QueueLen()).To(Equal(0))
	})

	It("expands an input deficit into a dependency task pushed ahead of the parent", func() {
		fs := &spec.FactorySpec{
			Metadata: spec.Metadata{Name: "t", Version: "1"},
			Resources: map[string]spec.Resource{
				"ore":   {DensityTPerM3: 2.5},
				"ingot": {DensityTPerM3: 2.5},
				"part":  {DensityTPerM3: 2.5},
			},
			Recipes: []spec.Recipe{
				{OutputKind: "ingot", OutputQty: 1, TimeHours: 1, Inputs: map[string]float64{"ore": 1}, RequiredModule: "assembly"},
				{OutputKind: "part", OutputQty: 1, TimeHours: 1, Inputs: map[string]float64{"ingot": 1}, RequiredModule: "assembly"},
			},
			Modules: map[string]spec.ModuleKindSpec{"assembly": baseModuleSpec()},
		}
		h := newHarness(fs, settings.Default())
		h.addModule("assembly", 1)
		h.store.Seed("ore", 1000)

		task, err := h.sched.CreateProductionTask("part", 5, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(task.DependencyTaskIDs).To(HaveLen(1))
		// both the dependency and the parent are on the queue
		Expect(h.sched.QueueLen()).To(Equal(2))
	})
})

var _ = Describe("ProcessTask gates", func() {
	It("blocks on blocked_module when no instance of the required kind exists", func() {
		fs := &spec.FactorySpec{
			Metadata:  spec.Metadata{Name: "t", Version: "1"},
			Resources: map[string]spec.Resource{"widget": {DensityTPerM3: 1}},
			Recipes: []spec.Recipe{
				{OutputKind: "widget", OutputQty: 1, TimeHours: 1, RequiredModule: "assembly"},
			},
			Modules: map[string]spec.ModuleKindSpec{"assembly": baseModuleSpec()},
		}
		h := newHarness(fs, settings.Default())
		// no module instances registered at all

		_, err := h.sched.CreateProductionTask("widget", 1, 0)
		Expect(err).NotTo(HaveOccurred())

		h.sched.AdmitNewTasks(context.Background(), 0)

		Expect(h.sched.BlockedCount()).To(Equal(1))
		Expect(h.sched.BlockedReasonCounts()).To(HaveKeyWithValue("blocked_module", 1))
	})

	It("blocks on blocked_constraints when the only cleanroom is too loose for the recipe", func() {
		strict := 100
		loose := 10000
		fs := &spec.FactorySpec{
			Metadata:  spec.Metadata{Name: "t", Version: "1"},
			Resources: map[string]spec.Resource{"wafer": {DensityTPerM3: 1}},
			Recipes: []spec.Recipe{
				{OutputKind: "wafer", OutputQty: 1, TimeHours: 1, RequiredModule: "fab", CleanroomClass: &strict},
			},
			Modules: map[string]spec.ModuleKindSpec{
				"fab": func() spec.ModuleKindSpec {
					m := baseModuleSpec()
					m.CleanroomClassCap = &loose
					return m
				}(),
			},
		}
		h := newHarness(fs, settings.Default())
		h.addModule("fab", 1)

		_, err := h.sched.CreateProductionTask("wafer", 1, 0)
		Expect(err).NotTo(HaveOccurred())

		h.sched.AdmitNewTasks(context.Background(), 0)

		Expect(h.sched.BlockedReasonCounts()).To(HaveKeyWithValue("blocked_constraints", 1))
	})

	It("blocks on blocked_energy when generation and battery can't cover the task", func() {
		fs := &spec.FactorySpec{
			Metadata:  spec.Metadata{Name: "t", Version: "1"},
			Resources: map[string]spec.Resource{"widget": {DensityTPerM3: 1}},
			Recipes: []spec.Recipe{
				{OutputKind: "widget", OutputQty: 1000, TimeHours: 1, RequiredModule: "assembly"},
			},
			Modules: map[string]spec.ModuleKindSpec{
				"assembly": func() spec.ModuleKindSpec {
					m := baseModuleSpec()
					m.ActivePowerKW = 1000 // 10 h of work needs 10 MWh, but stays under the cooling cap
					return m
				}(),
			},
		}
		st := settings.Default()
		st.InitialSolarCapacityKW = 1
		h := newHarness(fs, st)
		h.energy.BatteryChargeKWh = h.energy.MinChargeKWh()
		h.sched.SetCurrentGeneration(0)
		h.addModule("assembly", 1)

		_, err := h.sched.CreateProductionTask("widget", 1000, 0)
		Expect(err).NotTo(HaveOccurred())

		h.sched.AdmitNewTasks(context.Background(), 0)

		Expect(h.sched.BlockedReasonCounts()).To(HaveKeyWithValue("blocked_energy", 1))
	})

	It("enqueues one transport job per recipe input and folds travel time into completion_time", func() {
		fs := &spec.FactorySpec{
			Metadata: spec.Metadata{Name: "t", Version: "1"},
			Resources: map[string]spec.Resource{
				"ore":   {DensityTPerM3: 2.5},
				"ingot": {DensityTPerM3: 2.5},
			},
			Recipes: []spec.Recipe{
				{OutputKind: "ingot", OutputQty: 1, TimeHours: 1, Inputs: map[string]float64{"ore": 1}, RequiredModule: "assembly"},
			},
			Modules: map[string]spec.ModuleKindSpec{"assembly": baseModuleSpec()},
		}
		st := settings.Default()
		h := newHarness(fs, st)
		h.addModule("assembly", 1)
		h.store.Seed("ore", 1000)

		task, err := h.sched.CreateProductionTask("ingot", 10, 0)
		Expect(err).NotTo(HaveOccurred())

		h.sched.AdmitNewTasks(context.Background(), 0)

		Expect(task.Status).To(Equal(scheduler.StatusActive))
		Expect(h.transport.QueueLen()).To(Equal(1)) // one input, one queued transport job
		Expect(task.CompletionTime).To(BeNumerically(">", task.SetupTime+task.ProcessTime-1e-9))
	})

	It("reclaims recyclable waste into storage so a purely-recyclable deficit clears the resource gate", func() {
		fs := &spec.FactorySpec{
			Metadata: spec.Metadata{Name: "t", Version: "1"},
			Resources: map[string]spec.Resource{
				"steel":   {DensityTPerM3: 7.8, Recyclable: true},
				"bracket": {DensityTPerM3: 7.8},
			},
			Recipes: []spec.Recipe{
				{OutputKind: "bracket", OutputQty: 1, TimeHours: 1, Inputs: map[string]float64{"steel": 10}, RequiredModule: "assembly"},
			},
			Modules: map[string]spec.ModuleKindSpec{"assembly": baseModuleSpec()},
		}
		st := settings.Default()
		st.EnableWasteRecycling = true
		h := newHarness(fs, st)
		h.addModule("assembly", 1)
		// no steel in storage, but enough in waste to cover it once reclaimed
		h.waste.Add("steel", 100)

		task, err := h.sched.CreateProductionTask("bracket", 1, 0)
		Expect(err).NotTo(HaveOccurred())
		// no dependency task was created: the deficit was covered by reclaim
		Expect(task.DependencyTaskIDs).To(BeEmpty())

		h.sched.AdmitNewTasks(context.Background(), 0)

		Expect(task.Status).To(Equal(scheduler.StatusActive))
	})
})

var _ = Describe("DeadlockDiagnostics", func() {
	It("reports a deadlock once the queue and active set are empty but tasks remain blocked", func() {
		fs := &spec.FactorySpec{
			Metadata:  spec.Metadata{Name: "t", Version: "1"},
			Resources: map[string]spec.Resource{"widget": {DensityTPerM3: 1}},
			Recipes: []spec.Recipe{
				{OutputKind: "widget", OutputQty: 1, TimeHours: 1, RequiredModule: "assembly"},
			},
			Modules: map[string]spec.ModuleKindSpec{"assembly": baseModuleSpec()},
		}
		h := newHarness(fs, settings.Default())
		// no module instances: the only task can never be admitted

		_, err := h.sched.CreateProductionTask("widget", 1, 0)
		Expect(err).NotTo(HaveOccurred())
		h.sched.AdmitNewTasks(context.Background(), 0)

		dl := h.sched.DeadlockDiagnostics()
		Expect(dl).NotTo(BeNil())
		Expect(dl.BlockedByReason).To(HaveKeyWithValue("blocked_module", 1))
	})

	It("returns nil while the queue still has work", func() {
		fs := &spec.FactorySpec{
			Metadata:  spec.Metadata{Name: "t", Version: "1"},
			Resources: map[string]spec.Resource{"widget": {DensityTPerM3: 1}},
			Recipes: []spec.Recipe{
				{OutputKind: "widget", OutputQty: 1, TimeHours: 1, RequiredModule: "assembly"},
			},
			Modules: map[string]spec.ModuleKindSpec{"assembly": baseModuleSpec()},
		}
		h := newHarness(fs, settings.Default())
		_, err := h.sched.CreateProductionTask("widget", 1, 0)
		Expect(err).NotTo(HaveOccurred())

		Expect(h.sched.DeadlockDiagnostics()).To(BeNil())
	})
})

var _ = Describe("DecayIdleCleanrooms", func() {
	It("grows particle count only for rooms whose module is idle", func() {
		cleanClass := 1000
		fs := &spec.FactorySpec{
			Metadata:  spec.Metadata{Name: "t", Version: "1"},
			Resources: map[string]spec.Resource{},
			Recipes: []spec.Recipe{
				{OutputKind: "wafer", OutputQty: 1, TimeHours: 1, RequiredModule: "fab", CleanroomClass: &cleanClass},
			},
			Modules: map[string]spec.ModuleKindSpec{
				"fab": func() spec.ModuleKindSpec {
					m := baseModuleSpec()
					m.CleanroomClassCap = &cleanClass
					return m
				}(),
			},
		}
		h := newHarness(fs, settings.Default())
		h.addModule("fab", 1)

		rooms := h.sched.Cleanrooms()
		Expect(rooms).To(HaveLen(1))
		before := rooms[0].ParticleCount

		inst := h.registry.ByKind("fab")[0]
		inst.CurrentTaskID = "busy"
		h.sched.DecayIdleCleanrooms(24)
		Expect(rooms[0].ParticleCount).To(Equal(before))

		inst.CurrentTaskID = ""
		h.sched.DecayIdleCleanrooms(24)

		Expect(rooms[0].ParticleCount).To(BeNumerically(">", before))
	})
})
