package api

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrKernelNotFound    = errors.New("kernel not found")
	ErrUnexpectedStatus  = errors.New("unexpected HTTP status from the Jupyter server")
	ErrInvalidKernelSpec = errors.New("invalid kernel model")
)

// Kernel is the model of a running kernel as reported by the Jupyter server's REST API.
type Kernel struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LastActivity   string `json:"last_activity,omitempty"`
	ExecutionState string `json:"execution_state,omitempty"`
	Connections    int    `json:"connections"`
}

func (k *Kernel) String() string {
	return fmt.Sprintf("Kernel[ID=%s, Name=%s, ExecutionState=%s, Connections=%d]", k.ID, k.Name, k.ExecutionState, k.Connections)
}

// ControlAPI starts, stops, and inspects kernel processes.
//
// Implementations must be safe for concurrent use.
type ControlAPI interface {
	// ListKernels returns every kernel the server is running.
	ListKernels(ctx context.Context) ([]*Kernel, error)

	// GetKernel returns the model of the specified kernel, or an error wrapping ErrKernelNotFound.
	// It doubles as the liveness probe used after an early websocket close.
	GetKernel(ctx context.Context, kernelId string) (*Kernel, error)

	// StartKernel starts a new kernel from the named kernel spec. An empty name selects the server's default.
	StartKernel(ctx context.Context, name string) (*Kernel, error)

	InterruptKernel(ctx context.Context, kernelId string) error
	RestartKernel(ctx context.Context, kernelId string) (*Kernel, error)
	ShutdownKernel(ctx context.Context, kernelId string) error
}
