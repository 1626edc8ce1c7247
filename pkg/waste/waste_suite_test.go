package waste_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestWaste(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Waste Suite")
}
