package catalog_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/selfreplicating/factorysim/pkg/apis/spec"
	"github.com/selfreplicating/factorysim/pkg/catalog"
)

func minimalFactorySpec() *spec.FactorySpec {
	return &spec.FactorySpec{
		Metadata: spec.Metadata{Name: "t", Version: "1"},
		Resources: map[string]spec.Resource{
			"raw_ore": {DensityTPerM3: 2.5},
		},
		Recipes: []spec.Recipe{
			{OutputKind: "ingot", OutputQty: 1, Inputs: map[string]float64{"raw_ore": 1}, TimeHours: 1},
		},
		Modules: map[string]spec.ModuleKindSpec{
			"assembly": {MaxThroughput: 10, MTBFHours: 1000, MaintenanceIntervalH: 100, MaxBatch: 10, BaseQuality: 0.99},
		},
	}
}

var _ = Describe("Catalog", func() {
	It("defaults a recipe's required_module to assembly", func() {
		cat, err := catalog.New(minimalFactorySpec())
		Expect(err).NotTo(HaveOccurred())

		recipe, ok := cat.Recipe("ingot")
		Expect(ok).To(BeTrue())
		Expect(recipe.RequiredModule).To(Equal("assembly"))
	})

	It("defaults base_bug_rate to 0.2 for software_dev recipes that don't set one", func() {
		fs := minimalFactorySpec()
		fs.Recipes = append(fs.Recipes, spec.Recipe{
			OutputKind:     "firmware",
			OutputQty:      1,
			TimeHours:      1,
			RequiredModule: "software_dev",
		})
		cat, err := catalog.New(fs)
		Expect(err).NotTo(HaveOccurred())

		recipe, ok := cat.Recipe("firmware")
		Expect(ok).To(BeTrue())
		Expect(recipe.BaseBugRate).To(Equal(0.2))
	})

	It("rejects two recipes producing the same output kind", func() {
		fs := minimalFactorySpec()
		fs.Recipes = append(fs.Recipes, spec.Recipe{OutputKind: "ingot", OutputQty: 1, TimeHours: 1})

		_, err := catalog.New(fs)
		Expect(err).To(HaveOccurred())
	})

	It("reports unknown kinds as not found rather than panicking", func() {
		cat, err := catalog.New(minimalFactorySpec())
		Expect(err).NotTo(HaveOccurred())

		_, ok := cat.Recipe("unobtanium")
		Expect(ok).To(BeFalse())
		_, ok = cat.Resource("unobtanium")
		Expect(ok).To(BeFalse())
	})

	DescribeTable("RecyclableFraction returns the fixed per-kind recovery fraction",
		func(kind string, want float64) {
			Expect(catalog.RecyclableFraction(kind)).To(Equal(want))
		},
		Entry("steel", "steel", 0.95),
		Entry("aluminum", "aluminum", 0.90),
		Entry("copper", "copper", 0.85),
		Entry("plastic", "plastic", 0.60),
		Entry("glass", "glass", 0.80),
		Entry("wafers", "wafers", 0.70),
		Entry("unknown kind", "unobtanium", 0.0),
	)
})
