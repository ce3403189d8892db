package client

import (
	"github.com/scusemua/notebook-kernel-client/common/jupyter/connection"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
)

// Options configure a KernelClient.
type Options struct {
	connection.Options

	// KernelName is the name of the kernel spec (e.g., "python3"). It is informational.
	KernelName string

	// Username is stamped on every message. Defaults to messaging.MessageHeaderDefaultUsername.
	Username string
}

// request collects the content of a shell request and the handlers to attach to its Future before it is sent.
type request struct {
	msgType       string
	content       map[string]interface{}
	metadata      map[string]interface{}
	disposeOnDone bool

	onReply MessageHandler
	onIOPub MessageHandler
	onStdin MessageHandler
	onDone  DoneHandler
}

// RequestOption customizes a shell request.
type RequestOption func(r *request)

// ExecuteOption customizes an execute_request. Options are applied after the defaults, so the last
// option to set a field wins.
type ExecuteOption = RequestOption

func executeField(key string, value interface{}) ExecuteOption {
	return func(r *request) {
		if r.msgType == messaging.ShellExecuteRequest {
			r.content[key] = value
		}
	}
}

func WithSilent(silent bool) ExecuteOption {
	return executeField("silent", silent)
}

func WithStoreHistory(storeHistory bool) ExecuteOption {
	return executeField("store_history", storeHistory)
}

func WithUserExpressions(userExpressions map[string]interface{}) ExecuteOption {
	return executeField("user_expressions", nonNilMap(userExpressions))
}

func WithAllowStdin(allowStdin bool) ExecuteOption {
	return executeField("allow_stdin", allowStdin)
}

func WithStopOnError(stopOnError bool) ExecuteOption {
	return executeField("stop_on_error", stopOnError)
}

// WithMetadata sets the metadata of the request message.
func WithMetadata(metadata map[string]interface{}) RequestOption {
	return func(r *request) {
		r.metadata = metadata
	}
}

// WithDisposeOnDone controls whether the Future is disposed as soon as it is done. The default is true.
func WithDisposeOnDone(disposeOnDone bool) RequestOption {
	return func(r *request) {
		r.disposeOnDone = disposeOnDone
	}
}

// WithReplyHandler attaches a shell reply handler before the request is sent.
func WithReplyHandler(handler MessageHandler) RequestOption {
	return func(r *request) {
		r.onReply = handler
	}
}

// WithIOPubHandler attaches an iopub handler before the request is sent.
func WithIOPubHandler(handler MessageHandler) RequestOption {
	return func(r *request) {
		r.onIOPub = handler
	}
}

// WithStdinHandler attaches a stdin handler before the request is sent.
func WithStdinHandler(handler MessageHandler) RequestOption {
	return func(r *request) {
		r.onStdin = handler
	}
}

// WithDoneHandler attaches a completion handler before the request is sent.
func WithDoneHandler(handler DoneHandler) RequestOption {
	return func(r *request) {
		r.onDone = handler
	}
}

func newRequest(msgType string, content map[string]interface{}, opts []RequestOption) *request {
	r := &request{
		msgType:       msgType,
		content:       nonNilMap(content),
		disposeOnDone: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}
