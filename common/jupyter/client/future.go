package client

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/Scusemua/go-utils/promise"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
)

// FutureState describes how far a shell request has progressed.
type FutureState string

const (
	// FutureStateCreated indicates that the request has been sent, but nothing has been received for it yet.
	FutureStateCreated FutureState = "FutureCreated"

	// FutureStateReceiving indicates that at least one message whose parent is the request has been received.
	FutureStateReceiving FutureState = "FutureReceiving"

	// FutureStateDone indicates that both the shell reply (if one is expected) and an idle status whose
	// parent is the request have been received.
	FutureStateDone FutureState = "FutureDone"

	// FutureStateDisposed is a terminal state. The Future's handlers have been detached and it has been
	// removed from the client's open-request table.
	FutureStateDisposed FutureState = "FutureDisposed"
)

func (s FutureState) String() string {
	return string(s)
}

// MessageHandler processes one message of a Future. Returned errors are logged.
type MessageHandler func(msg *messaging.Message) error

// DoneHandler is invoked once when a Future completes. reply is nil for requests that expect no reply.
type DoneHandler func(reply *messaging.Message)

// Future tracks a single shell request: its reply, the iopub and stdin messages it causes, and its completion.
//
// A Future is done once both the shell reply and an iopub status of "idle" whose parent is the request have
// arrived, in either order. Requests sent without expecting a reply are done on idle alone.
type Future struct {
	log logger.Logger

	msg           *messaging.Message
	expectReply   bool
	disposeOnDone bool
	sentAt        time.Time

	mu            sync.Mutex
	state         FutureState
	replyReceived bool
	idleReceived  bool
	completed     bool
	reply         *messaging.Message

	onReply MessageHandler
	onIOPub MessageHandler
	onStdin MessageHandler
	onDone  DoneHandler

	// onComplete and onDispose are invoked once each, outside the lock.
	onComplete func(f *Future)
	onDispose  func(f *Future)

	done       *promise.ChannelPromise
	doneCh     chan struct{}
	disposedCh chan struct{}
}

func newFuture(msg *messaging.Message, expectReply bool, disposeOnDone bool, onComplete func(f *Future), onDispose func(f *Future)) *Future {
	f := &Future{
		msg:           msg,
		expectReply:   expectReply,
		disposeOnDone: disposeOnDone,
		sentAt:        time.Now(),
		state:         FutureStateCreated,
		onComplete:    onComplete,
		onDispose:     onDispose,
		done:          promise.NewChannelPromise(),
		doneCh:        make(chan struct{}),
		disposedCh:    make(chan struct{}),
	}
	config.InitLogger(&f.log, fmt.Sprintf("Future %s[%s] ", msg.Type(), msg.MsgId()))

	return f
}

// Msg returns the request that created the Future.
func (f *Future) Msg() *messaging.Message {
	return f.msg
}

// SentAt returns the time at which the request was sent.
func (f *Future) SentAt() time.Time {
	return f.sentAt
}

func (f *Future) MsgId() string {
	return f.msg.MsgId()
}

func (f *Future) State() FutureState {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// Reply returns the shell reply, or nil if it has not arrived yet.
func (f *Future) Reply() *messaging.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.reply
}

func (f *Future) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.completed
}

func (f *Future) IsDisposed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state == FutureStateDisposed
}

// Done returns a promise that is resolved with the shell reply (*messaging.Message, possibly nil) once the
// Future is done, or with ErrFutureDisposed if it is disposed first.
func (f *Future) Done() promise.Promise {
	return f.done
}

// Wait blocks until the Future is done, it is disposed, or ctx is done.
func (f *Future) Wait(ctx context.Context) (*messaging.Message, error) {
	select {
	case <-f.doneCh:
		return f.Reply(), nil
	default:
	}

	select {
	case <-f.doneCh:
		return f.Reply(), nil
	case <-f.disposedCh:
		return nil, fmt.Errorf("%w: %s request \"%s\"", ErrFutureDisposed, f.msg.Type(), f.MsgId())
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnReply sets the handler for the shell reply, replacing any previous one.
func (f *Future) OnReply(handler MessageHandler) *Future {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.onReply = handler
	return f
}

// OnIOPub sets the handler for iopub messages other than status messages, replacing any previous one.
func (f *Future) OnIOPub(handler MessageHandler) *Future {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.onIOPub = handler
	return f
}

// OnStdin sets the handler for stdin requests, replacing any previous one.
func (f *Future) OnStdin(handler MessageHandler) *Future {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.onStdin = handler
	return f
}

// OnDone sets the completion handler, replacing any previous one.
// If the Future has already completed, handler is invoked immediately,
// including when it was disposed after completing.
func (f *Future) OnDone(handler DoneHandler) *Future {
	f.mu.Lock()
	if !f.completed {
		f.onDone = handler
		f.mu.Unlock()
		return f
	}
	reply := f.reply
	f.mu.Unlock()

	f.invokeDone(handler, reply)
	return f
}

// HandleMsg routes a message whose parent is this Future's request to the matching handler.
// Handler errors and panics are logged and never returned.
func (f *Future) HandleMsg(msg *messaging.Message) error {
	f.mu.Lock()
	if f.state == FutureStateDisposed {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s request \"%s\"", ErrFutureDisposed, f.msg.Type(), f.MsgId())
	}

	if f.state == FutureStateCreated {
		f.state = FutureStateReceiving
	}

	var handler MessageHandler
	switch msg.Channel {
	case messaging.ShellChannel:
		f.reply = msg
		f.replyReceived = true
		handler = f.onReply
	case messaging.IOPubChannel:
		if msg.Type() == messaging.IOStatusMessage {
			if msg.ContentString("execution_state") == messaging.MessageKernelStatusIdle {
				f.idleReceived = true
			}
		} else {
			handler = f.onIOPub
		}
	case messaging.StdinChannel:
		handler = f.onStdin
	default:
		f.mu.Unlock()
		return fmt.Errorf("%w: \"%s\"", messaging.ErrUnknownChannel, msg.Channel)
	}
	f.mu.Unlock()

	if handler != nil {
		f.invoke(handler, msg)
	}

	f.checkDone()
	return nil
}

// checkDone completes the Future if every required phase has been received.
func (f *Future) checkDone() {
	f.mu.Lock()
	if f.state == FutureStateDone || f.state == FutureStateDisposed {
		f.mu.Unlock()
		return
	}

	if !f.idleReceived || (f.expectReply && !f.replyReceived) {
		f.mu.Unlock()
		return
	}

	f.state = FutureStateDone
	f.completed = true
	reply := f.reply
	onDone := f.onDone
	onComplete := f.onComplete
	f.onComplete = nil
	f.mu.Unlock()

	f.log.Debug("Request is done after %v.", time.Since(f.sentAt))

	if onComplete != nil {
		onComplete(f)
	}

	_, _ = f.done.Resolve(reply, nil)
	close(f.doneCh)

	if onDone != nil {
		f.invokeDone(onDone, reply)
	}

	if f.disposeOnDone {
		f.Dispose()
	}
}

// Dispose detaches every handler and removes the Future from its client's open-request table.
// Messages for the request that arrive afterward are treated as unsolicited. Dispose is idempotent.
func (f *Future) Dispose() {
	f.mu.Lock()
	if f.state == FutureStateDisposed {
		f.mu.Unlock()
		return
	}

	f.state = FutureStateDisposed
	f.onReply = nil
	f.onIOPub = nil
	f.onStdin = nil
	f.onDone = nil
	f.onComplete = nil
	onDispose := f.onDispose
	f.onDispose = nil
	f.mu.Unlock()

	_, _ = f.done.Resolve(nil, fmt.Errorf("%w: %s request \"%s\"", ErrFutureDisposed, f.msg.Type(), f.MsgId()))
	close(f.disposedCh)

	if onDispose != nil {
		onDispose(f)
	}
}

func (f *Future) invoke(handler MessageHandler, msg *messaging.Message) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("Handler for %s message \"%s\" panicked: %v\n%s", msg.Type(), msg.MsgId(), r, string(debug.Stack()))
		}
	}()

	if err := handler(msg); err != nil {
		f.log.Error("Handler for %s message \"%s\" returned an error: %v", msg.Type(), msg.MsgId(), err)
	}
}

func (f *Future) invokeDone(handler DoneHandler, reply *messaging.Message) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("Done handler panicked: %v\n%s", r, string(debug.Stack()))
		}
	}()

	handler(reply)
}
