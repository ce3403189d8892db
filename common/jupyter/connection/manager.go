package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
)

// Timer is a pending reconnect. It is satisfied by *time.Timer.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d.
type AfterFunc func(d time.Duration, f func()) Timer

// ManagerOption customizes a Manager.
type ManagerOption func(m *Manager)

// WithClock replaces the clock used to measure the early-close window.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithAfterFunc replaces the function used to schedule reconnect attempts.
func WithAfterFunc(afterFunc AfterFunc) ManagerOption {
	return func(m *Manager) {
		m.afterFunc = afterFunc
	}
}

func defaultAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Manager owns the websocket connection to a single kernel.
//
// It dials the kernel's channels endpoint, runs one reader goroutine per transport, classifies closes,
// and reconnects with exponential backoff. At most one transport is held at any time. Events of a
// transport that has since been replaced or stopped are discarded.
type Manager struct {
	opts    Options
	dialer  Dialer
	prober  Prober
	handler Handler

	mu             sync.Mutex
	state          State
	transport      Transport
	generation     uint64
	cancel         context.CancelFunc
	readerDone     chan struct{}
	attempt        int
	reconnectTimer Timer

	now       func() time.Time
	afterFunc AfterFunc

	log logger.Logger
}

func NewManager(opts Options, dialer Dialer, prober Prober, handler Handler, options ...ManagerOption) *Manager {
	opts.applyDefaults()

	m := &Manager{
		opts:      opts,
		dialer:    dialer,
		prober:    prober,
		handler:   handler,
		state:     Unconnected,
		now:       time.Now,
		afterFunc: defaultAfterFunc,
	}

	for _, option := range options {
		option(m)
	}

	config.InitLogger(&m.log, fmt.Sprintf("Connection %s ", opts.KernelID))

	return m
}

// URL returns the channels URL the Manager dials.
func (m *Manager) URL() string {
	return m.opts.ChannelsURL()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// IsConnected returns true if the transport is open.
func (m *Manager) IsConnected() bool {
	return m.State() == Open
}

// IsFullyDisconnected returns true if no transport is held, being established or still closing.
func (m *Manager) IsFullyDisconnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state == Unconnected || m.state == Closed
}

// IsReconnecting returns true if a reconnect attempt is pending.
func (m *Manager) IsReconnecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.reconnectTimer != nil
}

// Attempt returns the number of reconnect attempts since the last successful connection.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.attempt
}

// Start opens a new transport, replacing the current one if any.
// Start returns immediately; the outcome is reported through the Handler.
func (m *Manager) Start() {
	m.mu.Lock()
	m.cancelReconnectLocked()
	m.detachLocked()

	m.generation++
	gen := m.generation
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.cancel = cancel
	m.readerDone = done
	m.state = Connecting
	created := m.now()
	m.mu.Unlock()

	m.log.Debug("Connecting to %s (generation %d).", m.opts.ChannelsURL(), gen)

	go m.run(ctx, gen, created, done)
}

// Stop closes the current transport, if any, and cancels any pending reconnect.
// It waits for the transport's reader to exit or for ctx to be done, including when the
// transport was detached earlier and is still closing. Stop is idempotent.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.cancelReconnectLocked()
	done := m.detachLocked()
	m.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detach closes the current transport without waiting for it to shut down and cancels any pending
// reconnect. Unlike Stop, it may be called from within a Handler callback.
func (m *Manager) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelReconnectLocked()
	m.detachLocked()
}

// Reconnect increments the attempt counter and starts a new transport.
// It does nothing if the transport is already open.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.state == Open {
		m.mu.Unlock()
		return
	}

	m.cancelReconnectLocked()
	m.attempt++
	attempt := m.attempt
	m.mu.Unlock()

	m.log.Info("Reconnecting (attempt %d).", attempt)
	m.handler.OnReconnecting(attempt)
	m.Start()
}

// Send writes data to the open transport. The write is bounded by the configured write timeout.
func (m *Manager) Send(ctx context.Context, format messaging.WireFormat, data []byte) error {
	m.mu.Lock()
	if m.state != Open || m.transport == nil {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: connection is %s", ErrNotConnected, state)
	}
	transport := m.transport
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.opts.WriteTimeout)
	defer cancel()

	return transport.Write(ctx, format, data)
}

// detachLocked invalidates the current generation and tears down its transport asynchronously.
// It returns the channel that is closed once the transport's reader exits, or nil if nothing was running.
func (m *Manager) detachLocked() chan struct{} {
	m.generation++

	if m.cancel == nil {
		// A transport detached earlier may still be closing.
		if m.state == Closing {
			return m.readerDone
		}
		return nil
	}

	cancel := m.cancel
	transport := m.transport
	done := m.readerDone

	m.cancel = nil
	m.transport = nil
	m.state = Closing

	go func() {
		if transport != nil {
			if err := transport.Close(); err != nil {
				m.log.Debug("Error while closing transport: %v", err)
			}
		}
		cancel()
	}()

	return done
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return gen == m.generation
}

func (m *Manager) run(ctx context.Context, gen uint64, created time.Time, done chan struct{}) {
	defer m.finish(done)

	dialCtx, cancelDial := context.WithTimeout(ctx, m.opts.DialTimeout)
	transport, err := m.dialer.Dial(dialCtx, m.opts.ChannelsURL())
	cancelDial()

	if err != nil {
		m.onTransportError(gen, err)
		return
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		_ = transport.Close()
		return
	}
	m.transport = transport
	m.state = Open
	m.attempt = 0
	m.mu.Unlock()

	m.log.Info("Connected to kernel %s.", m.opts.KernelID)
	m.handler.OnConnected()

	for {
		format, data, err := transport.Read(ctx)
		if err != nil {
			m.onTransportClosed(gen, created, transport, err)
			return
		}

		if !m.isCurrent(gen) {
			return
		}

		m.handler.OnMessage(format, data)
	}
}

func (m *Manager) finish(done chan struct{}) {
	m.mu.Lock()
	if m.readerDone == done {
		if m.state == Closing {
			m.state = Closed
		}

		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}

		m.readerDone = nil
	}
	m.mu.Unlock()

	close(done)
}

// releaseLocked drops the transport of generation gen after it has closed or failed.
func (m *Manager) releaseLocked(gen uint64) bool {
	if gen != m.generation {
		return false
	}

	m.transport = nil
	m.state = Closed
	return true
}

func (m *Manager) onTransportError(gen uint64, err error) {
	m.mu.Lock()
	current := m.releaseLocked(gen)
	m.mu.Unlock()

	if !current {
		return
	}

	m.log.Warn("Connection to kernel %s failed: %v", m.opts.KernelID, err)
	m.disconnected(gen, err)
}

func (m *Manager) onTransportClosed(gen uint64, created time.Time, transport Transport, err error) {
	m.mu.Lock()
	current := m.releaseLocked(gen)
	early := m.now().Sub(created) < m.opts.EarlyCloseWindow
	m.mu.Unlock()

	if !current {
		return
	}

	_ = transport.Close()

	if IsCleanClose(err) {
		m.log.Info("Connection to kernel %s closed cleanly: %v", m.opts.KernelID, err)
		m.handler.OnDisconnected(nil)
		return
	}

	if early && m.prober != nil {
		m.log.Warn("Connection to kernel %s closed early (%v). Checking whether the kernel is alive.", m.opts.KernelID, err)

		probeCtx, cancel := context.WithTimeout(context.Background(), m.opts.ProbeTimeout)
		probeErr := m.prober.Probe(probeCtx)
		cancel()

		if !m.isCurrent(gen) {
			return
		}

		if probeErr != nil {
			m.log.Error("Kernel %s appears to be dead: %v", m.opts.KernelID, probeErr)
			m.handler.OnKernelDead()
			return
		}
	} else {
		m.log.Warn("Connection to kernel %s closed unexpectedly: %v", m.opts.KernelID, err)
	}

	m.disconnected(gen, nil)
}

// disconnected reports the loss of the transport and schedules the next reconnect attempt.
func (m *Manager) disconnected(gen uint64, err error) {
	m.handler.OnDisconnected(err)

	if err != nil {
		m.handler.OnConnectionFailed(err, m.Attempt())
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}

	attempt := m.attempt
	if attempt >= m.opts.ReconnectLimit {
		m.mu.Unlock()

		m.log.Error("Giving up on kernel %s after %d reconnect attempt(s).", m.opts.KernelID, attempt)
		m.handler.OnConnectionDead(attempt)
		return
	}
	m.mu.Unlock()

	delay := ReconnectDelay(attempt)
	m.log.Info("Reconnecting to kernel %s in %v.", m.opts.KernelID, delay)
	m.handler.OnReconnectScheduled(attempt, delay)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		return
	}

	m.cancelReconnectLocked()
	m.reconnectTimer = m.afterFunc(delay, func() {
		m.mu.Lock()
		if gen != m.generation {
			m.mu.Unlock()
			return
		}
		m.reconnectTimer = nil
		m.mu.Unlock()

		m.Reconnect()
	})
}
