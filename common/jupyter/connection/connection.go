package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
)

const (
	DefaultReconnectLimit   = 7
	DefaultEarlyCloseWindow = time.Second
	DefaultProbeTimeout     = 10 * time.Second
	DefaultDialTimeout      = 30 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

var (
	ErrNotConnected     = errors.New("kernel connection is not open")
	ErrConnectionClosed = errors.New("kernel connection closed")
)

// State is the state of the websocket connection held by a Manager.
type State int32

const (
	Unconnected State = iota
	Connecting
	Open
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "Unconnected"
	case Connecting:
		return "Connecting"
	case Open:
		return "Open"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Transport is a single established connection to a kernel's channels endpoint.
//
// Read is only ever called from one goroutine at a time. Write may be called concurrently with Read.
type Transport interface {
	Read(ctx context.Context) (messaging.WireFormat, []byte, error)
	Write(ctx context.Context, format messaging.WireFormat, data []byte) error
	Close() error
}

// Dialer opens new Transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// Prober checks whether the kernel is still alive.
// It is consulted when a transport closes uncleanly shortly after being created.
type Prober interface {
	Probe(ctx context.Context) error
}

// Handler receives the connection events of a Manager.
//
// Callbacks for the events of a single transport are delivered sequentially. Handlers must not block
// on Manager.Stop from within a callback, since Stop waits for the goroutine delivering the callback.
type Handler interface {
	OnConnected()
	OnDisconnected(err error)
	OnConnectionFailed(err error, attempt int)
	OnReconnectScheduled(attempt int, delay time.Duration)
	OnReconnecting(attempt int)
	OnConnectionDead(attempt int)
	OnKernelDead()
	OnMessage(format messaging.WireFormat, data []byte)
}

// CloseError is returned by a Transport when the connection was closed with a completed close handshake.
type CloseError struct {
	Code   int
	Reason string
	Err    error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket closed with status %d: %s", e.Code, e.Reason)
}

func (e *CloseError) Unwrap() error {
	return e.Err
}

// IsCleanClose returns true if err indicates that the transport completed a close handshake.
func IsCleanClose(err error) bool {
	var closeErr *CloseError
	return errors.As(err, &closeErr)
}

// ReconnectDelay returns the delay before reconnect attempt number attempt (0-based): 2^attempt seconds.
func ReconnectDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Keep the shift within range; the reconnect limit prevents this in practice.
	if attempt > 30 {
		attempt = 30
	}

	return time.Duration(1<<uint(attempt)) * time.Second
}
