package client

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel-client/common/queue"
)

// CommMsgHandler processes a comm_msg, or the comm_close that closed a comm. Returned errors are logged.
type CommMsgHandler func(msg *messaging.Message) error

// Comm is one end of a bidirectional channel between the client and an object in the kernel.
//
// Inbound messages of a Comm are delivered through a mailbox drained by at most one goroutine at a time,
// so callbacks of the same Comm never run concurrently and observe messages in arrival order.
type Comm struct {
	log logger.Logger

	id         string
	targetName string
	manager    *CommManager

	mailbox *queue.ThreadsafeFifo[*commDelivery]

	mu       sync.Mutex
	closed   bool
	draining bool
	onMsg    CommMsgHandler
	onClose  CommMsgHandler
}

// commDelivery is an item in a Comm's mailbox. A delivery with a non-nil factory is the remote comm_open.
type commDelivery struct {
	msg     *messaging.Message
	factory CommTargetFactory
}

func newComm(id string, targetName string, manager *CommManager) *Comm {
	comm := &Comm{
		id:         id,
		targetName: targetName,
		manager:    manager,
		mailbox:    queue.NewThreadsafeFifo[*commDelivery](4),
	}
	config.InitLogger(&comm.log, fmt.Sprintf("Comm %s[%s] ", targetName, id))

	return comm
}

func (c *Comm) ID() string {
	return c.id
}

func (c *Comm) TargetName() string {
	return c.targetName
}

func (c *Comm) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// OnMsg sets the callback for inbound comm_msg messages, replacing any previous one.
func (c *Comm) OnMsg(cb CommMsgHandler) *Comm {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onMsg = cb
	return c
}

// OnClose sets the callback invoked once when the comm is closed by either side.
func (c *Comm) OnClose(cb CommMsgHandler) *Comm {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onClose = cb
	return c
}

// Send sends a comm_msg to the kernel-side object.
func (c *Comm) Send(data map[string]interface{}, metadata map[string]interface{}, buffers ...[]byte) (*Future, error) {
	if c.IsClosed() {
		return nil, fmt.Errorf("%w: comm \"%s\"", ErrCommClosed, c.id)
	}

	content := map[string]interface{}{
		"comm_id": c.id,
		"data":    nonNilMap(data),
	}

	return c.manager.send(messaging.CommMsgMessage, content, metadata, buffers...)
}

// Close sends a comm_close to the kernel-side object, invokes the close callback, and unregisters the comm.
// The comm is closed locally even if the comm_close could not be sent.
func (c *Comm) Close(data map[string]interface{}) (*Future, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: comm \"%s\"", ErrCommClosed, c.id)
	}
	c.closed = true
	onClose := c.onClose
	c.onMsg = nil
	c.onClose = nil
	c.mu.Unlock()

	content := map[string]interface{}{
		"comm_id": c.id,
		"data":    nonNilMap(data),
	}

	future, err := c.manager.send(messaging.CommCloseMessage, content, nil)
	if err != nil {
		c.log.Warn("Failed to send comm_close: %v", err)
	}

	if onClose != nil {
		c.invoke("close", onClose, &messaging.Message{
			Header:  messaging.MessageHeader{MsgType: messaging.CommCloseMessage},
			Content: content,
			Channel: messaging.ShellChannel,
		})
	}

	c.manager.unregister(c)
	return future, err
}

// deliver appends an inbound message to the mailbox and starts a drain goroutine if none is running.
func (c *Comm) deliver(delivery *commDelivery) {
	c.mu.Lock()
	c.mailbox.Enqueue(delivery)
	start := !c.draining
	c.draining = true
	c.mu.Unlock()

	if start {
		go c.drain()
	}
}

func (c *Comm) drain() {
	for {
		delivery, ok := c.mailbox.Dequeue()
		if !ok {
			c.mu.Lock()
			if c.mailbox.Len() == 0 {
				c.draining = false
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
			continue
		}

		c.process(delivery)
	}
}

func (c *Comm) process(delivery *commDelivery) {
	msg := delivery.msg

	if delivery.factory != nil {
		c.open(delivery.factory, msg)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Warn("Dropping %s message \"%s\" for closed comm.", msg.Type(), msg.MsgId())
		return
	}

	switch msg.Type() {
	case messaging.CommMsgMessage:
		onMsg := c.onMsg
		c.mu.Unlock()

		if onMsg != nil {
			c.invoke("message", onMsg, msg)
		}
	case messaging.CommCloseMessage:
		c.closed = true
		onClose := c.onClose
		c.onMsg = nil
		c.onClose = nil
		c.mu.Unlock()

		if onClose != nil {
			c.invoke("close", onClose, msg)
		}

		c.manager.unregister(c)
	default:
		c.mu.Unlock()
		c.log.Warn("Ignoring unexpected %s message \"%s\".", msg.Type(), msg.MsgId())
	}
}

// open runs the target factory of a comm opened by the kernel. If the factory fails or panics, the
// half-open comm is closed and unregistered.
func (c *Comm) open(factory CommTargetFactory, msg *messaging.Message) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("comm target \"%s\" panicked: %v", c.targetName, r)
				c.log.Error("Comm target panicked: %v\n%s", r, string(debug.Stack()))
			}
		}()

		return factory(c, msg)
	}()

	if err == nil {
		return
	}

	c.log.Error("Failed to open comm for target \"%s\": %v", c.targetName, err)
	if _, closeErr := c.Close(nil); closeErr != nil {
		c.log.Debug("Could not close half-open comm: %v", closeErr)
	}
}

// dispose closes the comm without notifying the kernel or invoking callbacks.
func (c *Comm) dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.onMsg = nil
	c.onClose = nil
	c.mailbox.Clear()
}

func (c *Comm) invoke(kind string, cb CommMsgHandler, msg *messaging.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Comm %s callback panicked on %s message \"%s\": %v\n%s", kind, msg.Type(), msg.MsgId(), r, string(debug.Stack()))
		}
	}()

	if err := cb(msg); err != nil {
		c.log.Error("Comm %s callback returned an error for %s message \"%s\": %v", kind, msg.Type(), msg.MsgId(), err)
	}
}

func nonNilMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return make(map[string]interface{})
	}

	return m
}
