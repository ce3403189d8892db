package client_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/client"
)

var _ = Describe("StatusEvent", func() {
	It("Will format the attempt and restart count", func() {
		Expect(client.StatusEvent{Status: client.StatusIdle}.String()).To(Equal("idle"))
		Expect(client.StatusEvent{Status: client.StatusAutorestarting, AutorestartCount: 2}.String()).To(Equal("autorestarting(2)"))
		Expect(client.StatusEvent{Status: client.StatusConnectionDead, Attempt: 7}.String()).To(Equal("connectionDead(attempt=7)"))
		Expect(client.StatusEvent{Status: client.StatusConnectionFailed, Attempt: 1, Err: errors.New("refused")}.String()).
			To(Equal("connectionFailed(attempt=1, err=refused)"))
	})

	It("Will identify terminal statuses", func() {
		Expect(client.StatusDead.IsTerminal()).To(BeTrue())
		Expect(client.StatusConnectionDead.IsTerminal()).To(BeTrue())
		Expect(client.StatusKilled.IsTerminal()).To(BeTrue())
		Expect(client.StatusDisconnected.IsTerminal()).To(BeFalse())
		Expect(client.StatusBusy.IsTerminal()).To(BeFalse())
	})
})
