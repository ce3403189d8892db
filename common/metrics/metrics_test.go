package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/scusemua/notebook-kernel-client/common/metrics"
)

var _ = Describe("KernelClientMetrics", func() {
	It("Will ignore observations on a nil receiver", func() {
		var m *metrics.KernelClientMetrics

		Expect(func() {
			m.SentMessage("shell", "execute_request", time.Millisecond)
			m.ReceivedMessage("iopub", "status")
			m.MalformedMessage()
			m.UnsolicitedMessage()
			m.RequestCompleted("execute_request", time.Second)
			m.ReconnectScheduled()
			m.StatusTransition("idle")
			m.FutureOpened()
			m.FutureDisposed()
			m.CommOpened()
			m.CommClosed()
		}).ToNot(Panic())

		Expect(m.Registry()).To(BeNil())
	})

	It("Will record messages, futures, and comms", func() {
		m, err := metrics.NewKernelClientMetrics("kernel-1")
		Expect(err).To(BeNil())

		m.SentMessage("shell", "execute_request", 150*time.Microsecond)
		m.SentMessage("shell", "execute_request", 150*time.Microsecond)
		m.ReceivedMessage("iopub", "status")
		m.ReconnectScheduled()
		m.StatusTransition("busy")
		m.StatusTransition("idle")
		m.StatusTransition("idle")

		m.FutureOpened()
		m.FutureOpened()
		m.FutureDisposed()
		m.CommOpened()

		Expect(testutil.ToFloat64(m.MessagesSentCounterVec.WithLabelValues("shell", "execute_request"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.MessagesReceivedCounterVec.WithLabelValues("iopub", "status"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.ReconnectAttemptsCounter)).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.StatusTransitionsCounterVec.WithLabelValues("idle"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.OpenFuturesGauge)).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.OpenCommsGauge)).To(Equal(1.0))
	})

	It("Will keep separate registries per client", func() {
		first, err := metrics.NewKernelClientMetrics("kernel-1")
		Expect(err).To(BeNil())
		second, err := metrics.NewKernelClientMetrics("kernel-1")
		Expect(err).To(BeNil())

		first.MalformedMessage()
		Expect(testutil.ToFloat64(first.MalformedMessagesCounter)).To(Equal(1.0))
		Expect(testutil.ToFloat64(second.MalformedMessagesCounter)).To(Equal(0.0))
	})
})

var _ = Describe("PrometheusServer", func() {
	It("Will require metrics", func() {
		_, err := metrics.NewPrometheusServer(0, nil)
		Expect(err).To(MatchError(metrics.ErrMetricsNotInitialized))
	})

	It("Will serve the collectors at /metrics", func() {
		m, err := metrics.NewKernelClientMetrics("kernel-1")
		Expect(err).To(BeNil())
		m.ReceivedMessage("shell", "kernel_info_reply")

		server, err := metrics.NewPrometheusServer(0, m)
		Expect(err).To(BeNil())

		ts := httptest.NewServer(server.Handler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/metrics")
		Expect(err).To(BeNil())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		body, err := io.ReadAll(resp.Body)
		Expect(err).To(BeNil())
		Expect(string(body)).To(ContainSubstring(`kernel_client_messages_received_total{channel="shell",jupyter_message_type="kernel_info_reply",kernel_id="kernel-1"} 1`))
	})

	It("Will refuse to stop before it is started", func() {
		m, err := metrics.NewKernelClientMetrics("kernel-1")
		Expect(err).To(BeNil())

		server, err := metrics.NewPrometheusServer(0, m)
		Expect(err).To(BeNil())
		Expect(server.IsRunning()).To(BeFalse())
		Expect(server.Stop(context.Background())).To(MatchError(metrics.ErrPrometheusServerNotRunning))
	})
})
