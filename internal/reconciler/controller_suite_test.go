package reconciler

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestControllerScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Controller Scenario Suite")
}
