package cleanroom_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/selfreplicating/factorysim/pkg/cleanroom"
)

var _ = Describe("Room", func() {
	It("disqualifies a recipe whose required class is stricter (lower) than the room's class", func() {
		room := cleanroom.NewRoom(1000)
		Expect(room.Qualifies(100)).To(BeFalse())
		Expect(room.Qualifies(1000)).To(BeTrue())
		Expect(room.Qualifies(10000)).To(BeTrue())
	})

	It("grows particle count on active hours", func() {
		room := cleanroom.NewRoom(1000)
		before := room.ParticleCount
		room.AccumulateActive(1.0, 10)
		Expect(room.ParticleCount).To(BeNumerically(">", before))
	})

	It("grows particle count between tasks via DecayIdle", func() {
		room := cleanroom.NewRoom(1000)
		before := room.ParticleCount
		room.DecayIdle(24)
		Expect(room.ParticleCount).To(BeNumerically(">", before))
		Expect(room.TimeSinceCleaning).To(Equal(24.0))
	})

	It("Clean resets particle count and time-since-cleaning", func() {
		room := cleanroom.NewRoom(1000)
		room.AccumulateActive(1.0, 100)
		room.Clean()
		Expect(room.ParticleCount).To(Equal(cleanroom.BaseParticleCount[1000]))
		Expect(room.TimeSinceCleaning).To(Equal(0.0))
	})

	It("ContaminationYield degrades as particle count rises relative to class", func() {
		room := cleanroom.NewRoom(1000)
		yieldAtZero := room.ContaminationYield(1000)
		room.AccumulateActive(1.0, 1000)
		yieldAfterGrowth := room.ContaminationYield(1000)
		Expect(yieldAfterGrowth).To(BeNumerically("<=", yieldAtZero))
	})
})
