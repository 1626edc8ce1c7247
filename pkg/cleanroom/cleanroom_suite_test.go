package cleanroom_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCleanroom(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cleanroom Suite")
}
