package connection_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scusemua/notebook-kernel-client/common/jupyter/connection"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
)

var errTransportReset = errors.New("connection reset by peer")

type inboundFrame struct {
	format messaging.WireFormat
	data   []byte
	err    error
}

// fakeTransport is an in-memory Transport whose inbound frames are fed by the test.
type fakeTransport struct {
	inbound   chan inboundFrame
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan inboundFrame, 16),
		closed:  make(chan struct{}),
	}
}

func (t *fakeTransport) Read(ctx context.Context) (messaging.WireFormat, []byte, error) {
	select {
	case frame := <-t.inbound:
		return frame.format, frame.data, frame.err
	case <-t.closed:
		return messaging.WireFormatText, nil, errTransportReset
	case <-ctx.Done():
		return messaging.WireFormatText, nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(_ context.Context, _ messaging.WireFormat, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.written = append(t.written, data)
	return nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	return nil
}

func (t *fakeTransport) Written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([][]byte{}, t.written...)
}

// slowTransport is a fakeTransport whose Close blocks until release is closed and whose
// writes block until their context is done.
type slowTransport struct {
	*fakeTransport
	release chan struct{}
}

func newSlowTransport() *slowTransport {
	return &slowTransport{
		fakeTransport: newFakeTransport(),
		release:       make(chan struct{}),
	}
}

func (t *slowTransport) Write(ctx context.Context, _ messaging.WireFormat, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func (t *slowTransport) Close() error {
	<-t.release
	return t.fakeTransport.Close()
}

// recordingHandler records every connection event as a short string.
type recordingHandler struct {
	mu       sync.Mutex
	events   []string
	messages [][]byte
}

func (h *recordingHandler) record(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
}

func (h *recordingHandler) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string{}, h.events...)
}

func (h *recordingHandler) Count(event string) int {
	n := 0
	for _, e := range h.Events() {
		if e == event {
			n++
		}
	}
	return n
}

func (h *recordingHandler) Messages() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([][]byte{}, h.messages...)
}

func (h *recordingHandler) OnConnected() {
	h.record("connected")
}

func (h *recordingHandler) OnDisconnected(err error) {
	h.record(fmt.Sprintf("disconnected(error=%v)", err != nil))
}

func (h *recordingHandler) OnConnectionFailed(_ error, attempt int) {
	h.record(fmt.Sprintf("failed(%d)", attempt))
}

func (h *recordingHandler) OnReconnectScheduled(attempt int, delay time.Duration) {
	h.record(fmt.Sprintf("scheduled(%d,%v)", attempt, delay))
}

func (h *recordingHandler) OnReconnecting(attempt int) {
	h.record(fmt.Sprintf("reconnecting(%d)", attempt))
}

func (h *recordingHandler) OnConnectionDead(attempt int) {
	h.record(fmt.Sprintf("dead(%d)", attempt))
}

func (h *recordingHandler) OnKernelDead() {
	h.record("kernelDead")
}

func (h *recordingHandler) OnMessage(_ messaging.WireFormat, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, data)
}

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
}

// fakeTimers captures scheduled reconnects so the test decides when they fire.
type fakeTimers struct {
	mu      sync.Mutex
	pending []*fakeTimer
	all     []time.Duration
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) connection.Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	t := &fakeTimer{delay: d, f: f}
	ft.pending = append(ft.pending, t)
	ft.all = append(ft.all, d)
	return &fakeTimerHandle{timers: ft, timer: t}
}

func (ft *fakeTimers) Pending() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	n := 0
	for _, t := range ft.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (ft *fakeTimers) Scheduled() []time.Duration {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	return append([]time.Duration{}, ft.all...)
}

// FireNext runs the oldest pending timer and reports whether there was one.
func (ft *fakeTimers) FireNext() bool {
	ft.mu.Lock()
	var next *fakeTimer
	for len(ft.pending) > 0 && next == nil {
		candidate := ft.pending[0]
		ft.pending = ft.pending[1:]
		if !candidate.stopped {
			next = candidate
		}
	}
	ft.mu.Unlock()

	if next == nil {
		return false
	}

	next.f()
	return true
}

type fakeTimerHandle struct {
	timers *fakeTimers
	timer  *fakeTimer
}

func (h *fakeTimerHandle) Stop() bool {
	h.timers.mu.Lock()
	defer h.timers.mu.Unlock()

	wasPending := !h.timer.stopped
	h.timer.stopped = true
	return wasPending
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 4, 3, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
