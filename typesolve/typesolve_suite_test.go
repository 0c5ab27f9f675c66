package typesolve_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTypesolve(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Typesolve Suite")
}
