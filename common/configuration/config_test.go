package configuration_test

import (
	"errors"
	"time"

	"github.com/Scusemua/go-utils/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/scusemua/notebook-kernel-client/common/configuration"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/connection"
)

var _ = Describe("KernelClientOptions", func() {
	It("Will fill in defaults", func() {
		opts := &configuration.KernelClientOptions{}
		Expect(opts.Validate()).To(BeNil())

		Expect(opts.BaseUrl).To(Equal(configuration.DefaultBaseUrl))
		Expect(opts.WsUrl).To(Equal("ws://localhost:8888"))
		Expect(opts.KernelName).To(Equal(configuration.DefaultKernelName))
		Expect(opts.ReconnectLimit).To(Equal(connection.DefaultReconnectLimit))
		Expect(opts.EarlyCloseWindowMs).To(Equal(1000))

		clientOpts := opts.ClientOptions()
		Expect(clientOpts.EarlyCloseWindow).To(Equal(connection.DefaultEarlyCloseWindow))
		Expect(clientOpts.ProbeTimeout).To(Equal(connection.DefaultProbeTimeout))
		Expect(clientOpts.DialTimeout).To(Equal(connection.DefaultDialTimeout))
		Expect(clientOpts.WriteTimeout).To(Equal(connection.DefaultWriteTimeout))
		Expect(clientOpts.ReconnectLimit).To(Equal(connection.DefaultReconnectLimit))
		Expect(clientOpts.KernelName).To(Equal("python3"))
	})

	It("Will derive a secure websocket URL from an https base URL", func() {
		opts := &configuration.KernelClientOptions{BaseUrl: "https://notebooks.example.com/jupyter/"}
		Expect(opts.Validate()).To(BeNil())

		Expect(opts.BaseUrl).To(Equal("https://notebooks.example.com/jupyter"))
		Expect(opts.WsUrl).To(Equal("wss://notebooks.example.com/jupyter"))
	})

	It("Will keep an explicit websocket URL", func() {
		opts := &configuration.KernelClientOptions{BaseUrl: "http://a:1", WsUrl: "ws://b:2"}
		Expect(opts.Validate()).To(BeNil())
		Expect(opts.WsUrl).To(Equal("ws://b:2"))
	})

	It("Will reject unsupported base URL schemes", func() {
		opts := &configuration.KernelClientOptions{BaseUrl: "ftp://localhost"}
		err := opts.Validate()
		Expect(errors.Is(err, configuration.ErrInvalidBaseUrl)).To(BeTrue())
	})

	It("Will reject both code and a file", func() {
		opts := &configuration.KernelClientOptions{ExecuteCode: "1+1", ExecuteFile: "script.py"}
		Expect(opts.Validate()).To(MatchError(configuration.ErrConflictingCodeSource))
	})

	It("Will convert millisecond options into durations", func() {
		opts := &configuration.KernelClientOptions{
			KernelId:           "kernel-1",
			SessionId:          "session-1",
			Token:              "secret",
			Username:           "jovyan",
			ReconnectLimit:     3,
			EarlyCloseWindowMs: 250,
			ProbeTimeoutMs:     500,
			DialTimeoutMs:      750,
			WriteTimeoutMs:     900,
		}
		Expect(opts.Validate()).To(BeNil())

		clientOpts := opts.ClientOptions()
		Expect(clientOpts.KernelID).To(Equal("kernel-1"))
		Expect(clientOpts.SessionID).To(Equal("session-1"))
		Expect(clientOpts.Token).To(Equal("secret"))
		Expect(clientOpts.Username).To(Equal("jovyan"))
		Expect(clientOpts.ReconnectLimit).To(Equal(3))
		Expect(clientOpts.EarlyCloseWindow).To(Equal(250 * time.Millisecond))
		Expect(clientOpts.ProbeTimeout).To(Equal(500 * time.Millisecond))
		Expect(clientOpts.DialTimeout).To(Equal(750 * time.Millisecond))
		Expect(clientOpts.WriteTimeout).To(Equal(900 * time.Millisecond))
	})

	It("Will parse command-line flags", func() {
		opts := &configuration.KernelClientOptions{}

		_, err := config.ValidateOptionsWithFlags(opts,
			"-base-url", "http://127.0.0.1:9999",
			"-kernel-id", "kernel-2",
			"-code", "print('hi')",
			"-reconnect-limit", "2",
			"-allow-stdin")
		Expect(err).To(BeNil())

		Expect(opts.BaseUrl).To(Equal("http://127.0.0.1:9999"))
		Expect(opts.WsUrl).To(Equal("ws://127.0.0.1:9999"))
		Expect(opts.KernelId).To(Equal("kernel-2"))
		Expect(opts.ExecuteCode).To(Equal("print('hi')"))
		Expect(opts.ReconnectLimit).To(Equal(2))
		Expect(opts.AllowStdin).To(BeTrue())
	})

	It("Will never print the token", func() {
		opts := &configuration.KernelClientOptions{Token: "secret", KernelId: "kernel-3"}
		Expect(opts.Validate()).To(BeNil())

		Expect(opts.String()).ToNot(ContainSubstring("secret"))
		Expect(opts.PrettyString(2)).ToNot(ContainSubstring("secret"))
		Expect(opts.PrettyString(2)).To(ContainSubstring("\n  \"base-url\""))
	})

	It("Will clone options", func() {
		opts := &configuration.KernelClientOptions{KernelId: "kernel-4"}
		clone := opts.Clone()
		clone.KernelId = "kernel-5"

		Expect(opts.KernelId).To(Equal("kernel-4"))
	})
})
