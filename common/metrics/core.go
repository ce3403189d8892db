package metrics

import (
	"errors"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "kernel_client"
)

var (
	ErrMetricsNotInitialized = errors.New("the KernelClientMetrics have not been initialized yet")
)

// KernelClientMetrics holds the Prometheus collectors of a kernel client.
//
// All recording methods are safe to call on a nil *KernelClientMetrics, in which case they do nothing.
type KernelClientMetrics struct {
	log logger.Logger

	registry *prometheus.Registry
	kernelId string

	// MessagesSentCounterVec counts the messages sent to the kernel, by channel and Jupyter message type.
	MessagesSentCounterVec *prometheus.CounterVec

	// MessagesReceivedCounterVec counts the messages received from the kernel, by channel and Jupyter message type.
	MessagesReceivedCounterVec *prometheus.CounterVec

	// MalformedMessagesCounter counts inbound frames that could not be decoded or failed validation.
	MalformedMessagesCounter prometheus.Counter

	// UnsolicitedMessagesCounter counts inbound messages that matched no open request or comm.
	UnsolicitedMessagesCounter prometheus.Counter

	// MessageSendLatencyMicrosecondsVec is a histogram of the time taken to serialize and write a message.
	MessageSendLatencyMicrosecondsVec *prometheus.HistogramVec

	// RequestLatencyMillisecondsVec is the time between sending a request and its future completing.
	RequestLatencyMillisecondsVec *prometheus.HistogramVec

	ReconnectAttemptsCounter prometheus.Counter

	// StatusTransitionsCounterVec counts the kernel status events emitted by the client.
	StatusTransitionsCounterVec *prometheus.CounterVec

	OpenFuturesGauge prometheus.Gauge
	OpenCommsGauge   prometheus.Gauge
}

// NewKernelClientMetrics creates the collectors for the kernel identified by kernelId and registers them
// with a dedicated registry.
func NewKernelClientMetrics(kernelId string) (*KernelClientMetrics, error) {
	m := &KernelClientMetrics{
		registry: prometheus.NewRegistry(),
		kernelId: kernelId,
	}
	config.InitLogger(&m.log, m)

	if err := m.initializeMetrics(); err != nil {
		return nil, err
	}

	return m, nil
}

// Registry returns the registry the collectors are registered with.
func (m *KernelClientMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

func (m *KernelClientMetrics) initializeMetrics() error {
	constLabels := prometheus.Labels{"kernel_id": m.kernelId}

	m.MessagesSentCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   Namespace,
		Name:        "messages_sent_total",
		Help:        "The number of Jupyter messages sent to the kernel.",
		ConstLabels: constLabels,
	}, []string{"channel", "jupyter_message_type"})

	m.MessagesReceivedCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   Namespace,
		Name:        "messages_received_total",
		Help:        "The number of Jupyter messages received from the kernel.",
		ConstLabels: constLabels,
	}, []string{"channel", "jupyter_message_type"})

	m.MalformedMessagesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   Namespace,
		Name:        "malformed_messages_total",
		Help:        "The number of inbound frames that could not be decoded or validated.",
		ConstLabels: constLabels,
	})

	m.UnsolicitedMessagesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   Namespace,
		Name:        "unsolicited_messages_total",
		Help:        "The number of inbound messages that matched no open request or comm.",
		ConstLabels: constLabels,
	})

	m.MessageSendLatencyMicrosecondsVec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   Namespace,
		Name:        "message_send_latency_microseconds",
		Help:        "The time taken to serialize and write a message to the websocket, in microseconds.",
		ConstLabels: constLabels,
		Buckets:     []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000, 100000},
	}, []string{"channel", "jupyter_message_type"})

	m.RequestLatencyMillisecondsVec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   Namespace,
		Name:        "request_latency_milliseconds",
		Help:        "The time between sending a shell request and its reply and idle status both arriving, in milliseconds.",
		ConstLabels: constLabels,
		Buckets:     []float64{1, 5, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 300000},
	}, []string{"jupyter_message_type"})

	m.ReconnectAttemptsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   Namespace,
		Name:        "reconnect_attempts_total",
		Help:        "The number of reconnect attempts scheduled after the websocket was lost.",
		ConstLabels: constLabels,
	})

	m.StatusTransitionsCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   Namespace,
		Name:        "status_transitions_total",
		Help:        "The number of kernel status events emitted by the client.",
		ConstLabels: constLabels,
	}, []string{"status"})

	m.OpenFuturesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   Namespace,
		Name:        "open_futures",
		Help:        "The number of shell requests that have not yet been disposed.",
		ConstLabels: constLabels,
	})

	m.OpenCommsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   Namespace,
		Name:        "open_comms",
		Help:        "The number of registered comms.",
		ConstLabels: constLabels,
	})

	collectors := []prometheus.Collector{
		m.MessagesSentCounterVec,
		m.MessagesReceivedCounterVec,
		m.MalformedMessagesCounter,
		m.UnsolicitedMessagesCounter,
		m.MessageSendLatencyMicrosecondsVec,
		m.RequestLatencyMillisecondsVec,
		m.ReconnectAttemptsCounter,
		m.StatusTransitionsCounterVec,
		m.OpenFuturesGauge,
		m.OpenCommsGauge,
	}

	for _, collector := range collectors {
		if err := m.registry.Register(collector); err != nil {
			m.log.Error("Failed to register metric because: %v", err)
			return err
		}
	}

	return nil
}

// SentMessage records that a message was written to the websocket.
func (m *KernelClientMetrics) SentMessage(channel string, jupyterMessageType string, sendLatency time.Duration) {
	if m == nil {
		return
	}

	labels := prometheus.Labels{
		"channel":              channel,
		"jupyter_message_type": jupyterMessageType,
	}

	m.MessagesSentCounterVec.With(labels).Inc()
	m.MessageSendLatencyMicrosecondsVec.With(labels).Observe(float64(sendLatency.Microseconds()))
}

func (m *KernelClientMetrics) ReceivedMessage(channel string, jupyterMessageType string) {
	if m == nil {
		return
	}

	m.MessagesReceivedCounterVec.With(prometheus.Labels{
		"channel":              channel,
		"jupyter_message_type": jupyterMessageType,
	}).Inc()
}

func (m *KernelClientMetrics) MalformedMessage() {
	if m == nil {
		return
	}

	m.MalformedMessagesCounter.Inc()
}

func (m *KernelClientMetrics) UnsolicitedMessage() {
	if m == nil {
		return
	}

	m.UnsolicitedMessagesCounter.Inc()
}

// RequestCompleted records the latency of a request whose future has completed.
func (m *KernelClientMetrics) RequestCompleted(jupyterMessageType string, latency time.Duration) {
	if m == nil {
		return
	}

	m.RequestLatencyMillisecondsVec.With(prometheus.Labels{
		"jupyter_message_type": jupyterMessageType,
	}).Observe(float64(latency.Milliseconds()))
}

func (m *KernelClientMetrics) ReconnectScheduled() {
	if m == nil {
		return
	}

	m.ReconnectAttemptsCounter.Inc()
}

func (m *KernelClientMetrics) StatusTransition(status string) {
	if m == nil {
		return
	}

	m.StatusTransitionsCounterVec.With(prometheus.Labels{"status": status}).Inc()
}

// FutureOpened and FutureDisposed track the size of the open-request table.
func (m *KernelClientMetrics) FutureOpened() {
	if m == nil {
		return
	}

	m.OpenFuturesGauge.Inc()
}

func (m *KernelClientMetrics) FutureDisposed() {
	if m == nil {
		return
	}

	m.OpenFuturesGauge.Dec()
}

func (m *KernelClientMetrics) CommOpened() {
	if m == nil {
		return
	}

	m.OpenCommsGauge.Inc()
}

func (m *KernelClientMetrics) CommClosed() {
	if m == nil {
		return
	}

	m.OpenCommsGauge.Dec()
}
