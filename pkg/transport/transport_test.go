package transport_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/selfreplicating/factorysim/pkg/transport"
)

var _ = Describe("Layout", func() {
	It("places modules lazily and measures Manhattan distance between them", func() {
		l := transport.NewLayout(10)
		d := l.Distance("a", "b")
		Expect(d).To(BeNumerically(">", 0))
		// distance is stable once both are placed
		Expect(l.Distance("a", "b")).To(Equal(d))
	})

	It("returns zero distance for a module measured against itself", func() {
		l := transport.NewLayout(10)
		Expect(l.Distance("a", "a")).To(Equal(0.0))
	})
})

var _ = Describe("Fleet", func() {
	It("routes a queued job with spare conveyor capacity onto the conveyor", func() {
		f := transport.NewFleet(10, 1, 1000, 1000, 100, 1000, true)
		job := f.Enqueue("storage", "m1", "steel", 10, 0)

		f.Dispatch(0)

		Expect(job.UseConveyor).To(BeTrue())
		Expect(f.QueueLen()).To(Equal(0))
	})

	It("routes to an AGV once conveyor utilization reaches the 0.8 boundary", func() {
		f := transport.NewFleet(10, 1, 1000, 1000, 100, 1000, true)

		first := f.Enqueue("storage", "m1", "steel", 80, 0) // pushes conveyorUtil to exactly 0.8
		f.Dispatch(0)
		Expect(first.UseConveyor).To(BeTrue())

		second := f.Enqueue("storage", "m2", "steel", 10, 0) // quantity < 100, but util is no longer < 0.8
		f.Dispatch(0)

		Expect(second.UseConveyor).To(BeFalse())
		Expect(second.AssignedVehicle).NotTo(BeEmpty())
	})

	It("routes a job at or above 100 units straight to an AGV regardless of conveyor load", func() {
		f := transport.NewFleet(10, 1, 1000, 1000, 100, 1000, true)
		job := f.Enqueue("storage", "m1", "steel", 150, 0)

		f.Dispatch(0)

		Expect(job.UseConveyor).To(BeFalse())
		Expect(job.AssignedVehicle).NotTo(BeEmpty())
	})

	It("leaves the head of queue queued when no AGV is available and the job is too large for the conveyor", func() {
		f := transport.NewFleet(10, 1, 1000, 1000, 100, 1000, true)
		f.Enqueue("storage", "m1", "steel", 150, 0)
		f.Dispatch(0) // consumes the only AGV

		f.Enqueue("storage", "m2", "steel", 150, 0)
		f.Dispatch(0)

		Expect(f.QueueLen()).To(Equal(1))
	})

	It("completes in-flight jobs once CompletionTime has passed and frees the vehicle", func() {
		f := transport.NewFleet(0, 1, 1000, 1000, 100, 1000, true)
		f.Enqueue("storage", "m1", "steel", 150, 0)
		f.Dispatch(0)

		completed := f.Advance(1e6, 0.1)

		Expect(completed).To(HaveLen(1))
		Expect(f.CompletedCount()).To(Equal(1))
	})

	It("ActivePowerKW is zero with no in-flight jobs and positive once a job is dispatched", func() {
		f := transport.NewFleet(10, 1, 1000, 1000, 100, 1000, true)
		Expect(f.ActivePowerKW()).To(Equal(0.0))

		f.Enqueue("storage", "m1", "steel", 10, 0)
		f.Dispatch(0)

		Expect(f.ActivePowerKW()).To(BeNumerically(">", 0))
	})

	It("EstimateTravelHours mirrors the routing decision Dispatch would make", func() {
		f := transport.NewFleet(10, 1, 1000, 1000, 100, 1000, true)
		conveyorEst := f.EstimateTravelHours(10, 100)
		Expect(conveyorEst).To(BeNumerically("~", 100.0/1000, 1e-9))

		agvEst := f.EstimateTravelHours(150, 100)
		Expect(agvEst).To(BeNumerically("~", 100.0/1000+0.1, 1e-9))
	})
})
