package storage_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/selfreplicating/factorysim/pkg/apis/spec"
	"github.com/selfreplicating/factorysim/pkg/catalog"
	"github.com/selfreplicating/factorysim/pkg/storage"
)

func twoKindCatalog() *catalog.Catalog {
	cat, err := catalog.New(&spec.FactorySpec{
		Metadata: spec.Metadata{Name: "t", Version: "1"},
		Resources: map[string]spec.Resource{
			"ore":    {DensityTPerM3: 2.0, PreferredTemperatureC: 20},
			"cryo":   {DensityTPerM3: 1.0, PreferredTemperatureC: -40},
		},
		Recipes: []spec.Recipe{
			{OutputKind: "widget", OutputQty: 1, TimeHours: 1},
		},
	})
	Expect(err).NotTo(HaveOccurred())
	return cat
}

var _ = Describe("Storage", func() {
	It("rejects a deposit that would exceed volume capacity", func() {
		cat := twoKindCatalog()
		s := storage.New(cat, 10, 1000, false, true)

		Expect(s.Deposit("ore", 10)).To(Succeed()) // 5 m3
		err := s.Deposit("ore", 10)                 // would add 5 more m3, total 10, at the cap
		Expect(err).NotTo(HaveOccurred())
		err = s.Deposit("ore", 1)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a deposit that would exceed weight capacity", func() {
		cat := twoKindCatalog()
		s := storage.New(cat, 1000, 10, false, true)

		Expect(s.Deposit("ore", 10)).To(Succeed())
		Expect(s.Deposit("ore", 1)).To(HaveOccurred())
	})

	It("rejects temperature-incompatible kinds when temperature control is on", func() {
		cat := twoKindCatalog()
		s := storage.New(cat, 1000, 1000, true, true)

		Expect(s.Deposit("ore", 1)).To(Succeed())
		err := s.Deposit("cryo", 1)
		Expect(err).To(HaveOccurred())
	})

	It("ignores all limits when EnableStorageLimits is false", func() {
		cat := twoKindCatalog()
		s := storage.New(cat, 1, 1, true, false)

		Expect(s.Deposit("ore", 1000)).To(Succeed())
		Expect(s.Deposit("cryo", 1000)).To(Succeed())
	})

	It("fails Withdraw with a state-invariant error rather than go negative", func() {
		cat := twoKindCatalog()
		s := storage.New(cat, 1000, 1000, false, true)

		err := s.Withdraw("ore", 1)
		Expect(err).To(HaveOccurred())
		Expect(s.Quantity("ore")).To(Equal(0.0))
	})

	It("Seed adds directly to the ledger without capacity checks", func() {
		cat := twoKindCatalog()
		s := storage.New(cat, 0, 0, false, true)

		s.Seed("ore", 500)
		Expect(s.Quantity("ore")).To(Equal(500.0))
	})

	It("UtilizationFraction is the max of volume and weight fractions", func() {
		cat := twoKindCatalog()
		s := storage.New(cat, 10, 1000, false, true)

		s.Seed("ore", 10) // 5 m3 of 10 m3 cap = 0.5; 10 of 1000 tons = 0.01
		Expect(s.UtilizationFraction()).To(BeNumerically("~", 0.5, 1e-9))
	})
})
