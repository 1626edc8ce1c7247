package factory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/selfreplicating/factorysim/pkg/apis/config/settings"
	"github.com/selfreplicating/factorysim/pkg/factory"
	"github.com/selfreplicating/factorysim/pkg/factorytest"
	"github.com/selfreplicating/factorysim/pkg/simerrors"
)

var _ = Describe("Factory", func() {
	It("reports goal_achieved on the first tick when initial_state already satisfies target_modules", func() {
		fs := factorytest.MinimalSpec()
		st, err := settings.FromConstraints(fs.Constraints)
		Expect(err).NotTo(HaveOccurred())

		f, err := factory.New(fs, st, 42)
		Expect(err).NotTo(HaveOccurred())
		f.WithHorizon(10)

		result, err := f.Run(context.Background(), map[string]int{"assembly": 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Reason).To(Equal(factory.TerminationGoalAchieved))
		Expect(result.SimHours).To(BeNumerically("~", 0.1, 1e-9))
	})

	It("is deterministic for a fixed seed", func() {
		fs := factorytest.MinimalSpec()
		st, err := settings.FromConstraints(fs.Constraints)
		Expect(err).NotTo(HaveOccurred())

		run := func() (*factory.Result, error) {
			f, err := factory.New(fs, st, 7)
			Expect(err).NotTo(HaveOccurred())
			f.WithHorizon(5)
			return f.Run(context.Background(), map[string]int{"assembly": 3})
		}

		r1, err1 := run()
		r2, err2 := run()

		Expect(err1 == nil).To(Equal(err2 == nil))
		if err1 == nil && err2 == nil {
			Expect(r1.Reason).To(Equal(r2.Reason))
			Expect(r1.SimHours).To(Equal(r2.SimHours))
			Expect(len(r1.Events)).To(Equal(len(r2.Events)))
		}
	})

	It("raises SimulationTimeout without a report when the wall-clock budget is exhausted", func() {
		fs := factorytest.MinimalSpec()
		st, err := settings.FromConstraints(fs.Constraints)
		Expect(err).NotTo(HaveOccurred())

		f, err := factory.New(fs, st, 1)
		Expect(err).NotTo(HaveOccurred())
		f.WithHorizon(1e9).WithWallBudget(1)

		_, err = f.Run(context.Background(), map[string]int{"assembly": 100})
		Expect(err).To(BeAssignableToTypeOf(&simerrors.SimulationTimeout{}))
	})
})
