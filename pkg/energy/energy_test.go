package energy_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/selfreplicating/factorysim/pkg/energy"
)

var _ = Describe("State", func() {
	It("seeds the battery at half capacity", func() {
		s := energy.New(100, 200, 0.9, 30, 0.3, false)
		Expect(s.BatteryChargeKWh).To(Equal(100.0))
	})

	It("returns zero generation at night (sun below the horizon)", func() {
		s := energy.New(100, 200, 0.9, 30, 0.3, false)
		gen := s.GenerationKW(0, 172, 20, nil)
		Expect(gen).To(Equal(0.0))
	})

	It("ApplyDelta never charges the battery above MaxChargeKWh", func() {
		s := energy.New(1000, 200, 1.0, 30, 0.3, false)
		s.BatteryChargeKWh = s.MaxChargeKWh() - 1
		applied := s.ApplyDelta(1000, 1)
		Expect(applied).To(BeNumerically("<=", 1))
		Expect(s.BatteryChargeKWh).To(BeNumerically("<=", s.MaxChargeKWh()))
	})

	It("ApplyDelta never discharges the battery below MinChargeKWh", func() {
		s := energy.New(1000, 200, 1.0, 30, 0.3, false)
		s.BatteryChargeKWh = s.MinChargeKWh() + 1
		applied := s.ApplyDelta(-1000, 1)
		Expect(applied).To(BeNumerically(">=", -1))
		Expect(s.BatteryChargeKWh).To(BeNumerically(">=", s.MinChargeKWh()))
	})

	It("Clean resets the dust accumulator", func() {
		s := energy.New(100, 200, 0.9, 30, 0.3, false)
		s.DaysSinceCleaning = 50
		s.Clean()
		Expect(s.DaysSinceCleaning).To(Equal(0.0))
	})

	It("EstimateAvailable adds projected generation to the above-floor charge", func() {
		s := energy.New(100, 200, 0.9, 30, 0.3, false)
		s.BatteryChargeKWh = s.MinChargeKWh() + 10
		Expect(s.EstimateAvailable(5, 2)).To(BeNumerically("~", 20, 1e-9))
	})
})
