package utils_test

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/scusemua/notebook-kernel-client/common/utils"
)

var _ = Describe("Utils", func() {
	It("Will fall back to the default when a variable is unset", func() {
		Expect(os.Setenv("KERNEL_CLIENT_UTILS_TEST", "value")).To(BeNil())
		DeferCleanup(os.Unsetenv, "KERNEL_CLIENT_UTILS_TEST")

		Expect(utils.GetEnv("KERNEL_CLIENT_UTILS_TEST", "default")).To(Equal("value"))
		Expect(utils.GetEnv("KERNEL_CLIENT_UTILS_TEST_UNSET", "default")).To(Equal("default"))
	})

	It("Will abbreviate long strings", func() {
		Expect(utils.Abbreviate("print('hello')", 100)).To(Equal("print('hello')"))
		Expect(utils.Abbreviate("print('hello')", 8)).To(Equal("print..."))
		Expect(utils.Abbreviate("  x  ", 2)).To(Equal("x"))
	})

	It("Will style stderr and terminal statuses in red", func() {
		Expect(utils.StreamStyle("stderr")).To(Equal(utils.RedStyle))
		Expect(utils.StatusStyle("dead")).To(Equal(utils.RedStyle))
		Expect(utils.StatusStyle("idle")).To(Equal(utils.GreenStyle))
	})
})
