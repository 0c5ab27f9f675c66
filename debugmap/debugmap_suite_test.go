package debugmap

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDebugmap(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Debugmap Suite")
}
