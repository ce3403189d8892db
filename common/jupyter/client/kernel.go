package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/api"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/connection"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel-client/common/metrics"
	"github.com/scusemua/notebook-kernel-client/common/utils/hashmap"
)

const (
	futureTableShards = 32
)

var (
	ErrNotConnected      = connection.ErrNotConnected
	ErrFutureDisposed    = errors.New("future has been disposed")
	ErrCommClosed        = errors.New("comm is closed")
	ErrUnknownCommTarget = errors.New("unknown comm target")
	ErrClientDisposed    = errors.New("kernel client has been disposed")
	ErrNoControlAPI      = errors.New("kernel client has no control API")
	ErrMissingKernelId   = errors.New("kernel ID is required")
)

// Direction tells whether a MessageEvent was sent or received.
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// MessageEvent is published on KernelClient.AnyMessages for every message sent or received.
type MessageEvent struct {
	Direction Direction
	Msg       *messaging.Message
}

// KernelClient talks to a single kernel through a Jupyter server's channels websocket.
//
// Shell requests return a Future that is registered in the open-request table under the request's msg_id
// until it is disposed. Inbound messages are decoded and dispatched one at a time on the connection's reader
// goroutine: status messages drive the status machine, comm messages go to the CommManager, and messages
// whose parent is an open request go to its Future. Everything else is published as unsolicited.
type KernelClient struct {
	log logger.Logger

	opts       Options
	builder    *messaging.MessageBuilder
	conn       *connection.Manager
	controlAPI api.ControlAPI
	metrics    *metrics.KernelClientMetrics

	futures *hashmap.ConcurrentMap[string, *Future]
	comms   *CommManager

	statuses    *Signal[StatusEvent]
	iopub       *Signal[*messaging.Message]
	unsolicited *Signal[*messaging.Message]
	anyMessages *Signal[MessageEvent]

	mu               sync.Mutex
	status           KernelStatus
	info             *messaging.KernelInfoReplyContent
	autorestartCount int
	pendingInput     *messaging.Message
	disposed         bool
}

// NewKernelClient creates a client for the kernel identified by opts.KernelID. The channels are not opened
// until StartChannels is called.
//
// controlAPI may be nil, in which case the liveness probe is skipped and Interrupt, Restart, and Shutdown
// return ErrNoControlAPI. m may be nil to disable metrics.
func NewKernelClient(opts Options, dialer connection.Dialer, controlAPI api.ControlAPI, m *metrics.KernelClientMetrics, managerOptions ...connection.ManagerOption) (*KernelClient, error) {
	if opts.KernelID == "" {
		return nil, ErrMissingKernelId
	}

	if opts.SessionID == "" {
		opts.SessionID = messaging.NewMessageId()
	}

	c := &KernelClient{
		opts:        opts,
		builder:     messaging.NewMessageBuilder(opts.SessionID, opts.Username),
		controlAPI:  controlAPI,
		metrics:     m,
		futures:     hashmap.NewConcurrentMap[*Future](futureTableShards),
		statuses:    NewSignal[StatusEvent]("statuses"),
		iopub:       NewSignal[*messaging.Message]("iopub"),
		unsolicited: NewSignal[*messaging.Message]("unsolicited"),
		anyMessages: NewSignal[MessageEvent]("any"),
		status:      StatusCreated,
	}
	config.InitLogger(&c.log, fmt.Sprintf("Kernel %s ", opts.KernelID))

	var prober connection.Prober
	if controlAPI != nil {
		prober = &apiProber{controlAPI: controlAPI, kernelId: opts.KernelID}
	}

	c.conn = connection.NewManager(opts.Options, dialer, prober, &connectionHandler{client: c}, managerOptions...)
	c.comms = newCommManager(opts.KernelID, c, m)

	return c, nil
}

func (c *KernelClient) ID() string {
	return c.opts.KernelID
}

func (c *KernelClient) Name() string {
	return c.opts.KernelName
}

func (c *KernelClient) SessionID() string {
	return c.builder.Session()
}

func (c *KernelClient) Username() string {
	return c.builder.Username()
}

func (c *KernelClient) String() string {
	return fmt.Sprintf("KernelClient[ID=%s, Name=%s, Session=%s, Status=%s]", c.ID(), c.Name(), c.SessionID(), c.Status())
}

// Status returns the most recently emitted status.
func (c *KernelClient) Status() KernelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Info returns the content of the most recent kernel_info_reply, or nil if none has been received.
func (c *KernelClient) Info() *messaging.KernelInfoReplyContent {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.info == nil {
		return nil
	}

	info := *c.info
	return &info
}

func (c *KernelClient) IsConnected() bool {
	return c.conn.IsConnected()
}

func (c *KernelClient) IsFullyDisconnected() bool {
	return c.conn.IsFullyDisconnected()
}

func (c *KernelClient) IsDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.disposed
}

// Connection returns the connection manager of the client.
func (c *KernelClient) Connection() *connection.Manager {
	return c.conn
}

func (c *KernelClient) CommManager() *CommManager {
	return c.comms
}

// Statuses publishes every status change of the client.
func (c *KernelClient) Statuses() *Signal[StatusEvent] {
	return c.statuses
}

// IOPubMessages publishes every message received on the iopub channel.
func (c *KernelClient) IOPubMessages() *Signal[*messaging.Message] {
	return c.iopub
}

// UnsolicitedMessages publishes messages that matched no open request and were not consumed as status or
// comm messages.
func (c *KernelClient) UnsolicitedMessages() *Signal[*messaging.Message] {
	return c.unsolicited
}

// AnyMessages publishes every message sent or received.
func (c *KernelClient) AnyMessages() *Signal[MessageEvent] {
	return c.anyMessages
}

// NumOpenFutures returns the number of requests that have not been disposed.
func (c *KernelClient) NumOpenFutures() int {
	return c.futures.Len()
}

// KernelInfo sends a kernel_info_request. The reply content is stored and returned by Info.
func (c *KernelClient) KernelInfo(opts ...RequestOption) (*Future, error) {
	return c.sendRequest(newRequest(messaging.KernelInfoRequest, nil, opts))
}

// Inspect sends an inspect_request.
func (c *KernelClient) Inspect(code string, cursorPos int, opts ...RequestOption) (*Future, error) {
	content := map[string]interface{}{
		"code":         code,
		"cursor_pos":   cursorPos,
		"detail_level": 0,
	}

	return c.sendRequest(newRequest(messaging.ShellInspectRequest, content, opts))
}

// Execute sends an execute_request. The defaults are silent, no history, no stdin, and stop on error.
func (c *KernelClient) Execute(code string, opts ...ExecuteOption) (*Future, error) {
	content := map[string]interface{}{
		"code":             code,
		"silent":           true,
		"store_history":    false,
		"user_expressions": make(map[string]interface{}),
		"allow_stdin":      false,
		"stop_on_error":    true,
	}

	return c.sendRequest(newRequest(messaging.ShellExecuteRequest, content, opts))
}

// Complete sends a complete_request.
func (c *KernelClient) Complete(code string, cursorPos int, opts ...RequestOption) (*Future, error) {
	content := map[string]interface{}{
		"code":       code,
		"cursor_pos": cursorPos,
	}

	return c.sendRequest(newRequest(messaging.ShellCompleteRequest, content, opts))
}

// IsComplete sends an is_complete_request.
func (c *KernelClient) IsComplete(code string, opts ...RequestOption) (*Future, error) {
	content := map[string]interface{}{
		"code": code,
	}

	return c.sendRequest(newRequest(messaging.ShellIsCompleteRequest, content, opts))
}

// History sends a history_request.
func (c *KernelClient) History(historyRequest messaging.HistoryRequestContent, opts ...RequestOption) (*Future, error) {
	content, err := messaging.ToContent(historyRequest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", messaging.ErrInvalidContent, err)
	}

	return c.sendRequest(newRequest(messaging.ShellHistoryRequest, content, opts))
}

// CommInfo sends a comm_info_request. An empty targetName requests every comm.
func (c *KernelClient) CommInfo(targetName string, opts ...RequestOption) (*Future, error) {
	content := make(map[string]interface{})
	if targetName != "" {
		content["target_name"] = targetName
	}

	return c.sendRequest(newRequest(messaging.ShellCommInfoRequest, content, opts))
}

// SendInputReply answers the most recent input_request. The reply is not tracked.
func (c *KernelClient) SendInputReply(value string) error {
	if c.IsDisposed() {
		return ErrClientDisposed
	}

	if !c.conn.IsConnected() {
		return fmt.Errorf("%w: cannot send input_reply", ErrNotConnected)
	}

	c.mu.Lock()
	parent := c.pendingInput
	c.pendingInput = nil
	c.mu.Unlock()

	content := map[string]interface{}{
		"status": messaging.MessageStatusOK,
		"value":  value,
	}

	return c.send(c.builder.BuildReply(parent, messaging.StdinInputReply, messaging.StdinChannel, content))
}

// StartChannels opens the websocket, replacing any existing one.
func (c *KernelClient) StartChannels() error {
	if c.IsDisposed() {
		return ErrClientDisposed
	}

	c.conn.Start()
	return nil
}

// StopChannels closes the websocket and cancels any pending reconnect.
func (c *KernelClient) StopChannels(ctx context.Context) error {
	return c.conn.Stop(ctx)
}

// Reconnect immediately attempts to reopen the websocket. It does nothing if the websocket is open.
func (c *KernelClient) Reconnect() error {
	if c.IsDisposed() {
		return ErrClientDisposed
	}

	c.conn.Reconnect()
	return nil
}

// Interrupt asks the server to interrupt the kernel.
func (c *KernelClient) Interrupt(ctx context.Context) error {
	if err := c.checkControl(); err != nil {
		return err
	}

	c.emitStatus(StatusEvent{Status: StatusInterrupting})

	if err := c.controlAPI.InterruptKernel(ctx, c.ID()); err != nil {
		c.log.Error("Failed to interrupt kernel: %v", err)
		return err
	}

	return nil
}

// Restart asks the server to restart the kernel and reopens the channels.
// Open requests and comms are disposed.
func (c *KernelClient) Restart(ctx context.Context) error {
	if err := c.checkControl(); err != nil {
		return err
	}

	c.emitStatus(StatusEvent{Status: StatusRestarting})

	if err := c.StopChannels(ctx); err != nil {
		c.log.Warn("Timed out waiting for the channels to close before restarting: %v", err)
	}
	c.clearKernelState()

	if _, err := c.controlAPI.RestartKernel(ctx, c.ID()); err != nil {
		c.log.Error("Failed to restart kernel: %v", err)
		c.emitStatus(StatusEvent{Status: StatusDead})
		return err
	}

	return c.StartChannels()
}

// Shutdown asks the server to shut the kernel down. Open requests and comms are disposed.
// A kernel that no longer exists is treated as shut down.
func (c *KernelClient) Shutdown(ctx context.Context) error {
	if err := c.checkControl(); err != nil {
		return err
	}

	if err := c.StopChannels(ctx); err != nil {
		c.log.Warn("Timed out waiting for the channels to close before shutting down: %v", err)
	}
	c.clearKernelState()

	if err := c.controlAPI.ShutdownKernel(ctx, c.ID()); err != nil && !errors.Is(err, api.ErrKernelNotFound) {
		c.log.Error("Failed to shut down kernel: %v", err)
		return err
	}

	c.emitStatus(StatusEvent{Status: StatusKilled})
	return nil
}

// Dispose closes the channels, disposes every open request and comm, and closes every signal.
// Dispose is idempotent.
func (c *KernelClient) Dispose(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.mu.Unlock()

	err := c.StopChannels(ctx)
	c.clearKernelState()

	c.statuses.Close()
	c.iopub.Close()
	c.unsolicited.Close()
	c.anyMessages.Close()

	c.log.Debug("Disposed.")
	return err
}

func (c *KernelClient) checkControl() error {
	if c.IsDisposed() {
		return ErrClientDisposed
	}

	if c.controlAPI == nil {
		return ErrNoControlAPI
	}

	return nil
}

// clearKernelState disposes every open request and comm.
func (c *KernelClient) clearKernelState() {
	for _, future := range c.futures.Values() {
		future.Dispose()
	}

	c.comms.disposeAll()

	c.mu.Lock()
	c.pendingInput = nil
	c.mu.Unlock()
}

func (c *KernelClient) buildMessage(msgType string, channel messaging.Channel, content map[string]interface{}, metadata map[string]interface{}, buffers ...[]byte) *messaging.Message {
	return c.builder.Build(msgType, channel, content, metadata, buffers...)
}

func (c *KernelClient) sendRequest(r *request) (*Future, error) {
	msg := c.buildMessage(r.msgType, messaging.ShellChannel, r.content, r.metadata)

	return c.sendShellMessageWithHandlers(msg, true, r.disposeOnDone, func(f *Future) {
		f.OnReply(r.onReply).OnIOPub(r.onIOPub).OnStdin(r.onStdin)
		if r.onDone != nil {
			f.OnDone(r.onDone)
		}
	})
}

func (c *KernelClient) sendShellMessage(msg *messaging.Message, expectReply bool, disposeOnDone bool) (*Future, error) {
	return c.sendShellMessageWithHandlers(msg, expectReply, disposeOnDone, nil)
}

// sendShellMessageWithHandlers registers a Future for msg, lets attach configure it, and sends msg.
// The Future is registered before msg is written so that no reply can arrive ahead of it.
func (c *KernelClient) sendShellMessageWithHandlers(msg *messaging.Message, expectReply bool, disposeOnDone bool, attach func(f *Future)) (*Future, error) {
	if c.IsDisposed() {
		return nil, ErrClientDisposed
	}

	if !c.conn.IsConnected() {
		return nil, fmt.Errorf("%w: cannot send %s (connection is %s)", ErrNotConnected, msg.Type(), c.conn.State())
	}

	future := newFuture(msg, expectReply, disposeOnDone, c.onFutureComplete, c.onFutureDisposed)
	if attach != nil {
		attach(future)
	}

	c.futures.Store(msg.MsgId(), future)
	c.metrics.FutureOpened()

	if err := c.send(msg); err != nil {
		future.Dispose()
		return nil, err
	}

	return future, nil
}

func (c *KernelClient) onFutureComplete(f *Future) {
	c.metrics.RequestCompleted(f.Msg().Type(), time.Since(f.SentAt()))
}

func (c *KernelClient) onFutureDisposed(f *Future) {
	if _, ok := c.futures.LoadAndDelete(f.MsgId()); ok {
		c.metrics.FutureDisposed()
	}
}

// send serializes msg and writes it to the websocket.
func (c *KernelClient) send(msg *messaging.Message) error {
	data, format, err := messaging.Serialize(msg)
	if err != nil {
		c.log.Error("Failed to serialize %s message \"%s\": %v", msg.Type(), msg.MsgId(), err)
		return err
	}

	start := time.Now()
	if err = c.conn.Send(context.Background(), format, data); err != nil {
		c.log.Warn("Failed to send %s message \"%s\": %v", msg.Type(), msg.MsgId(), err)
		return err
	}

	c.metrics.SentMessage(msg.Channel.String(), msg.Type(), time.Since(start))
	c.anyMessages.Emit(MessageEvent{Direction: DirectionSend, Msg: msg})
	return nil
}

// handleFrame decodes and dispatches one inbound websocket message.
func (c *KernelClient) handleFrame(format messaging.WireFormat, data []byte) {
	msg, err := messaging.Deserialize(data, format)
	if err == nil {
		err = msg.Validate()
	}

	if err != nil {
		c.log.Error("Dropping inbound %s message: %v", format, err)
		c.metrics.MalformedMessage()
		return
	}

	c.metrics.ReceivedMessage(msg.Channel.String(), msg.Type())
	c.anyMessages.Emit(MessageEvent{Direction: DirectionRecv, Msg: msg})

	c.dispatch(msg)
}

func (c *KernelClient) dispatch(msg *messaging.Message) {
	consumed := false

	switch msg.Channel {
	case messaging.IOPubChannel:
		c.iopub.Emit(msg)

		switch msg.Type() {
		case messaging.IOStatusMessage:
			c.handleStatusMessage(msg)
			consumed = true
		case messaging.CommOpenMessage, messaging.CommMsgMessage, messaging.CommCloseMessage:
			c.comms.handleMessage(msg)
			consumed = true
		}
	case messaging.StdinChannel:
		if msg.Type() == messaging.StdinInputRequest {
			c.mu.Lock()
			c.pendingInput = msg
			c.mu.Unlock()
		}
	}

	if parentId := msg.ParentMsgId(); parentId != "" {
		if future, ok := c.futures.Load(parentId); ok {
			if msg.Channel == messaging.ShellChannel && msg.Type() == messaging.KernelInfoReply {
				c.storeKernelInfo(msg)
			}

			if err := future.HandleMsg(msg); err == nil {
				return
			}
		}
	}

	if consumed {
		return
	}

	c.log.Debug("Received unsolicited %s message \"%s\" (parent \"%s\").", msg.Type(), msg.MsgId(), msg.ParentMsgId())
	c.metrics.UnsolicitedMessage()
	c.unsolicited.Emit(msg)
}

func (c *KernelClient) storeKernelInfo(msg *messaging.Message) {
	var info messaging.KernelInfoReplyContent
	if err := msg.DecodeContent(&info); err != nil {
		c.log.Error("Failed to decode kernel_info_reply: %v", err)
		return
	}

	c.mu.Lock()
	c.info = &info
	c.mu.Unlock()
}

func (c *KernelClient) handleStatusMessage(msg *messaging.Message) {
	executionState := msg.ContentString("execution_state")

	switch executionState {
	case messaging.MessageKernelStatusBusy:
		c.emitStatus(StatusEvent{Status: StatusBusy})
	case messaging.MessageKernelStatusIdle:
		c.emitStatus(StatusEvent{Status: StatusIdle})
	case messaging.MessageKernelStatusStarting:
		c.emitStatus(StatusEvent{Status: StatusStarting})
		c.requestReady()
	case messaging.MessageKernelStatusRestarting:
		c.mu.Lock()
		c.autorestartCount++
		count := c.autorestartCount
		c.mu.Unlock()

		c.emitStatus(StatusEvent{Status: StatusRestarting})
		c.emitStatus(StatusEvent{Status: StatusAutorestarting, AutorestartCount: count})
	case messaging.MessageKernelStatusDead:
		c.emitStatus(StatusEvent{Status: StatusDead})
		c.conn.Detach()
	default:
		c.log.Warn("Ignoring unknown execution state \"%s\" in status message \"%s\".", executionState, msg.MsgId())
	}
}

// requestReady sends a kernel_info_request and emits ready once it is answered.
func (c *KernelClient) requestReady() {
	_, err := c.KernelInfo(WithDoneHandler(func(reply *messaging.Message) {
		c.mu.Lock()
		c.autorestartCount = 0
		c.mu.Unlock()

		c.emitStatus(StatusEvent{Status: StatusReady})
	}))

	if err != nil {
		c.log.Warn("Failed to request kernel info: %v", err)
	}
}

func (c *KernelClient) emitStatus(event StatusEvent) {
	c.mu.Lock()
	previous := c.status
	c.status = event.Status
	c.mu.Unlock()

	if previous != event.Status {
		c.log.Debug("Status changed from %s to %s.", previous, event.String())
	}

	c.metrics.StatusTransition(event.Status.String())
	c.statuses.Emit(event)
}

// connectionHandler receives the events of the client's connection manager.
type connectionHandler struct {
	client *KernelClient
}

func (h *connectionHandler) OnConnected() {
	h.client.emitStatus(StatusEvent{Status: StatusConnected})
	h.client.requestReady()
}

func (h *connectionHandler) OnDisconnected(err error) {
	h.client.emitStatus(StatusEvent{Status: StatusDisconnected, Err: err})
}

func (h *connectionHandler) OnConnectionFailed(err error, attempt int) {
	h.client.emitStatus(StatusEvent{Status: StatusConnectionFailed, Attempt: attempt, Err: err})
}

func (h *connectionHandler) OnReconnectScheduled(attempt int, delay time.Duration) {
	h.client.log.Debug("Reconnect attempt %d scheduled in %v.", attempt+1, delay)
	h.client.metrics.ReconnectScheduled()
}

func (h *connectionHandler) OnReconnecting(attempt int) {
	h.client.emitStatus(StatusEvent{Status: StatusReconnecting, Attempt: attempt})
}

func (h *connectionHandler) OnConnectionDead(attempt int) {
	h.client.emitStatus(StatusEvent{Status: StatusConnectionDead, Attempt: attempt})
}

func (h *connectionHandler) OnKernelDead() {
	h.client.emitStatus(StatusEvent{Status: StatusDead})
}

func (h *connectionHandler) OnMessage(format messaging.WireFormat, data []byte) {
	h.client.handleFrame(format, data)
}

// apiProber checks that the kernel still exists using the control API.
type apiProber struct {
	controlAPI api.ControlAPI
	kernelId   string
}

func (p *apiProber) Probe(ctx context.Context) error {
	_, err := p.controlAPI.GetKernel(ctx, p.kernelId)
	return err
}
