package waste_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/selfreplicating/factorysim/pkg/apis/spec"
	"github.com/selfreplicating/factorysim/pkg/catalog"
	"github.com/selfreplicating/factorysim/pkg/waste"
)

func steelCatalog() *catalog.Catalog {
	cat, err := catalog.New(&spec.FactorySpec{
		Metadata: spec.Metadata{Name: "t", Version: "1"},
		Resources: map[string]spec.Resource{
			"steel": {DensityTPerM3: 7.8, Recyclable: true},
			"dust":  {DensityTPerM3: 1.0, Recyclable: false},
		},
		Recipes: []spec.Recipe{{OutputKind: "ingot", OutputQty: 1, TimeHours: 1}},
	})
	Expect(err).NotTo(HaveOccurred())
	return cat
}

var _ = Describe("Stream", func() {
	It("yields nothing for a non-recyclable kind even with recycling enabled", func() {
		cat := steelCatalog()
		s := waste.New(true)
		s.Add("dust", 100)
		Expect(s.ReclaimableYield(cat, "dust")).To(Equal(0.0))
	})

	It("yields nothing when recycling is disabled", func() {
		cat := steelCatalog()
		s := waste.New(false)
		s.Add("steel", 100)
		Expect(s.ReclaimableYield(cat, "steel")).To(Equal(0.0))
	})

	It("yields quantity * recoverable fraction for a recyclable kind", func() {
		cat := steelCatalog()
		s := waste.New(true)
		s.Add("steel", 100)
		Expect(s.ReclaimableYield(cat, "steel")).To(BeNumerically("~", 95, 1e-9))
	})

	It("Reclaim debits the waste stream by the raw amount consumed, not the reclaimed amount", func() {
		cat := steelCatalog()
		s := waste.New(true)
		s.Add("steel", 100)

		reclaimed := s.Reclaim(cat, "steel", 50)
		Expect(reclaimed).To(BeNumerically("~", 50, 1e-9))
		// 50 recovered / 0.95 fraction = ~52.6 raw steel consumed from waste
		Expect(s.Available("steel")).To(BeNumerically("~", 100-50/0.95, 1e-6))
	})

	It("Reclaim caps at the stream's reclaimable yield and never overdraws", func() {
		cat := steelCatalog()
		s := waste.New(true)
		s.Add("steel", 10)

		reclaimed := s.Reclaim(cat, "steel", 1000)
		Expect(reclaimed).To(BeNumerically("~", 9.5, 1e-9))
		Expect(s.Available("steel")).To(BeNumerically("~", 0, 1e-6))
	})

	It("Total sums every waste kind", func() {
		s := waste.New(true)
		s.Add("steel", 10)
		s.Add("dust", 5)
		Expect(s.Total()).To(Equal(15.0))
	})
})
