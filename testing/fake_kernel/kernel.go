package fake_kernel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/google/uuid"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/api"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel-client/common/utils"
	"github.com/scusemua/notebook-kernel-client/common/utils/hashmap"
)

const (
	// EchoCommTarget is the comm target the kernel understands. Messages sent on an echo comm are
	// published back unchanged.
	EchoCommTarget = "echo"

	inputTimeout = 30 * time.Second
)

var builtins = []string{"input", "open_comm", "print", "raise", "sleep"}

// FakeKernel is a scripted kernel that speaks the Jupyter messaging protocol over the channels websocket.
//
// Code is interpreted line by line:
//
//	print('text')         publishes a stdout stream
//	input('prompt')       sends an input_request and waits for the input_reply
//	raise Name('message') fails the execution
//	sleep(ms)             sleeps, unless the kernel is interrupted first
//	open_comm('target')   opens a comm from the kernel side
//
// Any other line evaluates to itself, and the last line is published as the execute_result.
type FakeKernel struct {
	log logger.Logger

	id      string
	name    string
	builder *messaging.MessageBuilder

	conns      *hashmap.OrderedMap[uint64, *kernelConn]
	comms      *hashmap.OrderedMap[string, string]
	nextConnId atomic.Uint64
	interrupts chan struct{}

	mu             sync.Mutex
	executionState string
	lastActivity   time.Time
	executionCount int
	history        []string
	numRestarts    int
	numInterrupts  int
}

func NewFakeKernel(name string) *FakeKernel {
	id := uuid.NewString()

	kernel := &FakeKernel{
		id:             id,
		name:           name,
		builder:        messaging.NewMessageBuilder(uuid.NewString(), "kernel"),
		conns:          hashmap.NewOrderedMap[uint64, *kernelConn](),
		comms:          hashmap.NewOrderedMap[string, string](),
		interrupts:     make(chan struct{}, 1),
		executionState: messaging.MessageKernelStatusStarting,
		lastActivity:   time.Now(),
	}

	config.InitLogger(&kernel.log, fmt.Sprintf("FakeKernel-%s ", id[:8]))

	return kernel
}

func (k *FakeKernel) ID() string {
	return k.id
}

func (k *FakeKernel) Name() string {
	return k.name
}

// Model returns the kernel as reported by the REST API.
func (k *FakeKernel) Model() *api.Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()

	return &api.Kernel{
		ID:             k.id,
		Name:           k.name,
		LastActivity:   k.lastActivity.UTC().Format(messaging.JavascriptISOString),
		ExecutionState: k.executionState,
		Connections:    k.conns.Len(),
	}
}

func (k *FakeKernel) ExecutionCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.executionCount
}

func (k *FakeKernel) NumRestarts() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.numRestarts
}

func (k *FakeKernel) NumInterrupts() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.numInterrupts
}

func (k *FakeKernel) NumConnections() int {
	return k.conns.Len()
}

// Comms returns the IDs of the comms open on the kernel side.
func (k *FakeKernel) Comms() []string {
	ids := make([]string, 0, k.comms.Len())
	k.comms.Range(func(id string, _ string) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Interrupt aborts the sleep the kernel is currently executing, if any.
func (k *FakeKernel) Interrupt() {
	k.mu.Lock()
	k.numInterrupts++
	k.mu.Unlock()

	select {
	case k.interrupts <- struct{}{}:
	default:
	}
}

// Restart forgets the kernel's execution state and comms.
func (k *FakeKernel) Restart() {
	k.publishStatus(nil, messaging.MessageKernelStatusRestarting)

	k.mu.Lock()
	k.numRestarts++
	k.executionCount = 0
	k.history = nil
	k.mu.Unlock()

	for _, id := range k.Comms() {
		k.comms.Delete(id)
	}

	k.publishStatus(nil, messaging.MessageKernelStatusStarting)
	k.publishStatus(nil, messaging.MessageKernelStatusIdle)
}

// OpenComm opens a comm from the kernel side and returns its ID.
func (k *FakeKernel) OpenComm(targetName string, data map[string]interface{}) string {
	commId := uuid.NewString()
	k.comms.Store(commId, targetName)

	if data == nil {
		data = map[string]interface{}{}
	}

	k.broadcast(k.builder.Build(messaging.CommOpenMessage, messaging.IOPubChannel, map[string]interface{}{
		"comm_id":     commId,
		"target_name": targetName,
		"data":        data,
	}, nil))

	return commId
}

// Publish sends msg to every connected client.
func (k *FakeKernel) Publish(msg *messaging.Message) {
	k.broadcast(msg)
}

// DropConnections closes every connection without a close handshake.
func (k *FakeKernel) DropConnections() {
	for _, conn := range k.conns.Values() {
		conn.drop()
	}
}

// Shutdown closes every connection cleanly.
func (k *FakeKernel) Shutdown() {
	k.setExecutionState(messaging.MessageKernelStatusDead)

	for _, conn := range k.conns.Values() {
		conn.close("kernel shut down")
	}
}

func (k *FakeKernel) setExecutionState(state string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.executionState = state
	k.lastActivity = time.Now()
}

func (k *FakeKernel) addConn(conn *kernelConn) {
	k.conns.Store(conn.id, conn)

	k.mu.Lock()
	if k.executionState == messaging.MessageKernelStatusStarting {
		k.executionState = messaging.MessageKernelStatusIdle
	}
	k.mu.Unlock()
}

func (k *FakeKernel) removeConn(conn *kernelConn) {
	k.conns.Delete(conn.id)
}

func (k *FakeKernel) broadcast(msg *messaging.Message) {
	for _, conn := range k.conns.Values() {
		if err := conn.send(msg); err != nil {
			k.log.Debug("Failed to publish %s message to connection %d: %v", msg.Type(), conn.id, err)
		}
	}
}

func (k *FakeKernel) publishStatus(parent *messaging.Message, state string) {
	k.setExecutionState(state)

	content := map[string]interface{}{"execution_state": state}
	if parent == nil {
		k.broadcast(k.builder.Build(messaging.IOStatusMessage, messaging.IOPubChannel, content, nil))
		return
	}

	k.broadcast(k.builder.BuildReply(parent, messaging.IOStatusMessage, messaging.IOPubChannel, content))
}

func (k *FakeKernel) publish(parent *messaging.Message, msgType string, content map[string]interface{}, buffers ...[]byte) {
	k.broadcast(k.builder.BuildReply(parent, msgType, messaging.IOPubChannel, content, buffers...))
}

func (k *FakeKernel) reply(conn *kernelConn, parent *messaging.Message, msgType string, content map[string]interface{}) {
	if err := conn.send(k.builder.BuildReply(parent, msgType, messaging.ShellChannel, content)); err != nil {
		k.log.Warn("Failed to send %s: %v", msgType, err)
	}
}

// handleShell processes a single shell request, bracketed by busy and idle statuses.
func (k *FakeKernel) handleShell(ctx context.Context, conn *kernelConn, msg *messaging.Message) {
	k.publishStatus(msg, messaging.MessageKernelStatusBusy)
	defer k.publishStatus(msg, messaging.MessageKernelStatusIdle)

	switch msg.Type() {
	case messaging.KernelInfoRequest:
		k.reply(conn, msg, messaging.KernelInfoReply, kernelInfo())
	case messaging.ShellExecuteRequest:
		k.execute(ctx, conn, msg)
	case messaging.ShellCompleteRequest:
		k.complete(conn, msg)
	case messaging.ShellInspectRequest:
		k.inspect(conn, msg)
	case messaging.ShellIsCompleteRequest:
		k.isComplete(conn, msg)
	case messaging.ShellHistoryRequest:
		k.historyReply(conn, msg)
	case messaging.ShellCommInfoRequest:
		k.commInfo(conn, msg)
	case messaging.CommOpenMessage:
		k.commOpen(msg)
	case messaging.CommMsgMessage:
		k.commMsg(msg)
	case messaging.CommCloseMessage:
		var content messaging.CommCloseContent
		if err := msg.DecodeContent(&content); err == nil {
			k.comms.Delete(content.CommId)
		}
	default:
		k.log.Warn(utils.OrangeStyle.Render("Ignoring unsupported shell message of type \"%s\"."), msg.Type())
	}
}

func kernelInfo() map[string]interface{} {
	content, _ := messaging.ToContent(&messaging.KernelInfoReplyContent{
		Status:                messaging.MessageStatusOK,
		ProtocolVersion:       messaging.ProtocolVersion,
		Implementation:        "fake_kernel",
		ImplementationVersion: "1.0.0",
		LanguageInfo: messaging.LanguageInfo{
			Name:          "python",
			Version:       "3.11.0",
			Mimetype:      "text/x-python",
			FileExtension: ".py",
		},
		Banner: "Scripted kernel",
	})
	return content
}

type executionError struct {
	name  string
	value string
}

func (k *FakeKernel) execute(ctx context.Context, conn *kernelConn, msg *messaging.Message) {
	var request messaging.ExecuteRequestContent
	if err := msg.DecodeContent(&request); err != nil {
		k.log.Error("Invalid execute_request: %v", err)
		return
	}

	k.mu.Lock()
	if request.StoreHistory && !request.Silent {
		k.executionCount++
		k.history = append(k.history, request.Code)
	}
	count := k.executionCount
	k.mu.Unlock()

	// Drop a stale interrupt.
	select {
	case <-k.interrupts:
	default:
	}

	if !request.Silent {
		k.publish(msg, messaging.IOExecuteInputMessage, map[string]interface{}{
			"code":            request.Code,
			"execution_count": count,
		})
	}

	var (
		result  string
		execErr *executionError
	)

	lines := strings.Split(request.Code, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		result, execErr = k.evaluate(ctx, conn, msg, request, line)
		if execErr != nil {
			break
		}
	}

	if execErr != nil {
		traceback := []string{fmt.Sprintf("%s: %s", execErr.name, execErr.value)}
		k.publish(msg, messaging.IOErrorMessage, map[string]interface{}{
			"ename":     execErr.name,
			"evalue":    execErr.value,
			"traceback": traceback,
		})

		k.reply(conn, msg, messaging.ShellExecuteReply, map[string]interface{}{
			"status":          messaging.MessageStatusError,
			"execution_count": count,
			"ename":           execErr.name,
			"evalue":          execErr.value,
			"traceback":       traceback,
		})
		return
	}

	if result != "" && !request.Silent {
		k.publish(msg, messaging.IOExecuteResultMessage, map[string]interface{}{
			"execution_count": count,
			"data":            map[string]interface{}{"text/plain": result},
			"metadata":        map[string]interface{}{},
		})
	}

	userExpressions := make(map[string]interface{}, len(request.UserExpressions))
	for name, expression := range request.UserExpressions {
		userExpressions[name] = map[string]interface{}{
			"status":   messaging.MessageStatusOK,
			"data":     map[string]interface{}{"text/plain": fmt.Sprintf("%v", expression)},
			"metadata": map[string]interface{}{},
		}
	}

	k.reply(conn, msg, messaging.ShellExecuteReply, map[string]interface{}{
		"status":           messaging.MessageStatusOK,
		"execution_count":  count,
		"user_expressions": userExpressions,
	})
}

// evaluate runs a single line and returns the representation of its value.
func (k *FakeKernel) evaluate(ctx context.Context, conn *kernelConn, msg *messaging.Message, request messaging.ExecuteRequestContent, line string) (string, *executionError) {
	switch {
	case strings.HasPrefix(line, "raise "):
		name, value := call(strings.TrimPrefix(line, "raise "))
		return "", &executionError{name: name, value: unquote(value)}
	case isCall(line, "print"):
		_, arg := call(line)
		k.publish(msg, messaging.IOStreamMessage, map[string]interface{}{
			"name": "stdout",
			"text": unquote(arg) + "\n",
		})
		return "", nil
	case isCall(line, "input"):
		_, arg := call(line)
		if !request.AllowStdin {
			return "", &executionError{name: "StdinNotImplementedError", value: "raw_input was called, but this frontend does not support input requests."}
		}

		value, err := conn.requestInput(ctx, k.builder.BuildReply(msg, messaging.StdinInputRequest, messaging.StdinChannel, map[string]interface{}{
			"prompt":   unquote(arg),
			"password": false,
		}))
		if err != nil {
			return "", &executionError{name: "EOFError", value: err.Error()}
		}
		return strconv.Quote(value), nil
	case isCall(line, "sleep"):
		_, arg := call(line)
		ms, err := strconv.Atoi(arg)
		if err != nil {
			return "", &executionError{name: "ValueError", value: fmt.Sprintf("invalid duration %q", arg)}
		}

		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return "", nil
		case <-k.interrupts:
			return "", &executionError{name: "KeyboardInterrupt", value: ""}
		case <-ctx.Done():
			return "", &executionError{name: "KeyboardInterrupt", value: ctx.Err().Error()}
		}
	case isCall(line, "open_comm"):
		_, arg := call(line)
		return strconv.Quote(k.OpenComm(unquote(arg), nil)), nil
	default:
		return line, nil
	}
}

func isCall(line string, name string) bool {
	return strings.HasPrefix(line, name+"(") && strings.HasSuffix(line, ")")
}

// call splits "name(arg)" into its name and argument.
func call(expr string) (string, string) {
	open := strings.Index(expr, "(")
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return expr, ""
	}

	return expr[:open], strings.TrimSpace(expr[open+1 : len(expr)-1])
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func (k *FakeKernel) complete(conn *kernelConn, msg *messaging.Message) {
	var request messaging.CompleteRequestContent
	if err := msg.DecodeContent(&request); err != nil {
		k.log.Error("Invalid complete_request: %v", err)
		return
	}

	cursor := request.CursorPos
	if cursor < 0 || cursor > len(request.Code) {
		cursor = len(request.Code)
	}

	start := cursor
	for start > 0 && isIdentifierByte(request.Code[start-1]) {
		start--
	}
	prefix := request.Code[start:cursor]

	matches := make([]string, 0, len(builtins))
	for _, name := range builtins {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}

	k.reply(conn, msg, messaging.ShellCompleteReply, map[string]interface{}{
		"status":       messaging.MessageStatusOK,
		"matches":      matches,
		"cursor_start": start,
		"cursor_end":   cursor,
		"metadata":     map[string]interface{}{},
	})
}

func isIdentifierByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (k *FakeKernel) inspect(conn *kernelConn, msg *messaging.Message) {
	var request messaging.InspectRequestContent
	if err := msg.DecodeContent(&request); err != nil {
		k.log.Error("Invalid inspect_request: %v", err)
		return
	}

	name, _ := call(strings.TrimSpace(request.Code))
	data := map[string]interface{}{}
	found := false
	for _, builtin := range builtins {
		if builtin == name {
			found = true
			data["text/plain"] = fmt.Sprintf("Signature: %s(...)\nType: builtin_function_or_method", name)
		}
	}

	k.reply(conn, msg, messaging.ShellInspectReply, map[string]interface{}{
		"status":   messaging.MessageStatusOK,
		"found":    found,
		"data":     data,
		"metadata": map[string]interface{}{},
	})
}

func (k *FakeKernel) isComplete(conn *kernelConn, msg *messaging.Message) {
	var request messaging.IsCompleteRequestContent
	if err := msg.DecodeContent(&request); err != nil {
		k.log.Error("Invalid is_complete_request: %v", err)
		return
	}

	content := map[string]interface{}{"status": "complete"}
	if strings.HasSuffix(strings.TrimSpace(request.Code), ":") {
		content = map[string]interface{}{"status": "incomplete", "indent": "    "}
	}

	k.reply(conn, msg, messaging.ShellIsCompleteReply, content)
}

func (k *FakeKernel) historyReply(conn *kernelConn, msg *messaging.Message) {
	var request messaging.HistoryRequestContent
	if err := msg.DecodeContent(&request); err != nil {
		k.log.Error("Invalid history_request: %v", err)
		return
	}

	k.mu.Lock()
	entries := make([]interface{}, 0, len(k.history))
	for i, code := range k.history {
		entries = append(entries, []interface{}{0, i + 1, code})
	}
	k.mu.Unlock()

	if request.HistAccessType == "tail" && request.N > 0 && request.N < len(entries) {
		entries = entries[len(entries)-request.N:]
	}

	k.reply(conn, msg, messaging.ShellHistoryReply, map[string]interface{}{
		"status":  messaging.MessageStatusOK,
		"history": entries,
	})
}

func (k *FakeKernel) commInfo(conn *kernelConn, msg *messaging.Message) {
	var request messaging.CommInfoRequestContent
	if err := msg.DecodeContent(&request); err != nil {
		k.log.Error("Invalid comm_info_request: %v", err)
		return
	}

	comms := make(map[string]interface{})
	k.comms.Range(func(id string, target string) bool {
		if request.TargetName == "" || request.TargetName == target {
			comms[id] = map[string]interface{}{"target_name": target}
		}
		return true
	})

	k.reply(conn, msg, messaging.ShellCommInfoReply, map[string]interface{}{
		"status": messaging.MessageStatusOK,
		"comms":  comms,
	})
}

func (k *FakeKernel) commOpen(msg *messaging.Message) {
	var content messaging.CommOpenContent
	if err := msg.DecodeContent(&content); err != nil {
		k.log.Error("Invalid comm_open: %v", err)
		return
	}

	if content.TargetName != EchoCommTarget {
		k.log.Warn("No such comm target \"%s\". Closing comm %s.", content.TargetName, content.CommId)
		k.publish(msg, messaging.CommCloseMessage, map[string]interface{}{
			"comm_id": content.CommId,
			"data":    map[string]interface{}{},
		})
		return
	}

	k.comms.Store(content.CommId, content.TargetName)
}

func (k *FakeKernel) commMsg(msg *messaging.Message) {
	var content messaging.CommMsgContent
	if err := msg.DecodeContent(&content); err != nil {
		k.log.Error("Invalid comm_msg: %v", err)
		return
	}

	target, ok := k.comms.Load(content.CommId)
	if !ok || target != EchoCommTarget {
		k.log.Warn("Ignoring comm_msg for unknown comm %s.", content.CommId)
		return
	}

	data := content.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	k.publish(msg, messaging.CommMsgMessage, map[string]interface{}{
		"comm_id": content.CommId,
		"data":    data,
	}, msg.Buffers...)
}
