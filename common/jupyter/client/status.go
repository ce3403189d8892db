package client

import "fmt"

// KernelStatus is the client's view of the kernel and of its connection to it.
type KernelStatus string

const (
	// StatusCreated is the status of a client whose channels have not been started.
	StatusCreated KernelStatus = "created"

	// StatusStarting indicates that the kernel reported that it is starting.
	StatusStarting KernelStatus = "starting"

	// StatusConnected indicates that the websocket is open but the kernel has not yet answered a kernel_info_request.
	StatusConnected KernelStatus = "connected"

	// StatusReady indicates that the kernel answered a kernel_info_request after connecting or starting.
	StatusReady KernelStatus = "ready"

	StatusBusy KernelStatus = "busy"
	StatusIdle KernelStatus = "idle"

	// StatusRestarting is emitted when the kernel reports that it is restarting or when a restart is requested.
	StatusRestarting KernelStatus = "restarting"

	// StatusAutorestarting follows StatusRestarting when the restart was initiated by the kernel's nanny.
	// The StatusEvent carries the number of automatic restarts since the kernel was last ready.
	StatusAutorestarting KernelStatus = "autorestarting"

	StatusInterrupting KernelStatus = "interrupting"

	// StatusDead indicates that the kernel process is gone. The client will not reconnect.
	StatusDead KernelStatus = "dead"

	// StatusDisconnected indicates that the websocket closed. A reconnect may follow.
	StatusDisconnected KernelStatus = "disconnected"

	// StatusConnectionFailed indicates that the websocket could not be established or failed with an error.
	StatusConnectionFailed KernelStatus = "connectionFailed"

	// StatusConnectionDead indicates that the reconnect limit was reached. No further attempts are made.
	StatusConnectionDead KernelStatus = "connectionDead"

	// StatusKilled indicates that the kernel was shut down through the control API.
	StatusKilled KernelStatus = "killed"

	// StatusReconnecting indicates that a reconnect attempt is underway.
	StatusReconnecting KernelStatus = "reconnecting"
)

func (s KernelStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses after which the client will not reconnect on its own.
func (s KernelStatus) IsTerminal() bool {
	return s == StatusDead || s == StatusConnectionDead || s == StatusKilled
}

// StatusEvent is published on KernelClient.Statuses whenever the status changes or is re-asserted.
type StatusEvent struct {
	Status KernelStatus

	// AutorestartCount is set for StatusAutorestarting.
	AutorestartCount int

	// Attempt is the reconnect attempt for StatusConnectionFailed, StatusReconnecting, and StatusConnectionDead.
	Attempt int

	// Err is the transport error for StatusConnectionFailed.
	Err error
}

func (e StatusEvent) String() string {
	switch e.Status {
	case StatusAutorestarting:
		return fmt.Sprintf("%s(%d)", e.Status, e.AutorestartCount)
	case StatusConnectionFailed:
		return fmt.Sprintf("%s(attempt=%d, err=%v)", e.Status, e.Attempt, e.Err)
	case StatusReconnecting, StatusConnectionDead:
		return fmt.Sprintf("%s(attempt=%d)", e.Status, e.Attempt)
	default:
		return e.Status.String()
	}
}
