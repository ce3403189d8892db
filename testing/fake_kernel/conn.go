package fake_kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrInputTimedOut    = errors.New("timed out waiting for input_reply")
)

// kernelConn is a single websocket connection to a FakeKernel.
type kernelConn struct {
	id      uint64
	session string
	kernel  *FakeKernel
	conn    *websocket.Conn
	limiter *rate.Limiter

	wmu   sync.Mutex
	shell chan *messaging.Message
	stdin chan *messaging.Message
	done  chan struct{}
	once  sync.Once
}

func newKernelConn(kernel *FakeKernel, session string, conn *websocket.Conn, limiter *rate.Limiter) *kernelConn {
	return &kernelConn{
		id:      kernel.nextConnId.Add(1),
		session: session,
		kernel:  kernel,
		conn:    conn,
		limiter: limiter,
		shell:   make(chan *messaging.Message, 64),
		stdin:   make(chan *messaging.Message, 1),
		done:    make(chan struct{}),
	}
}

// serve reads the connection until it closes. Shell requests are executed one at a time on a
// separate goroutine so that stdin replies can be read while an execution waits for input.
func (c *kernelConn) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.kernel.addConn(c)
	defer c.kernel.removeConn(c)
	defer c.markDone()

	go c.executeLoop(ctx)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}

		format := messaging.WireFormatText
		if typ == websocket.MessageBinary {
			format = messaging.WireFormatBinary
		}

		msg, err := messaging.Deserialize(data, format)
		if err != nil {
			c.kernel.log.Warn("Dropping malformed frame from connection %d: %v", c.id, err)
			continue
		}

		switch msg.Channel {
		case messaging.ShellChannel:
			select {
			case c.shell <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		case messaging.StdinChannel:
			select {
			case c.stdin <- msg:
			default:
				c.kernel.log.Warn("Dropping unexpected %s message from connection %d.", msg.Type(), c.id)
			}
		default:
			c.kernel.log.Warn("Dropping %s message sent on the %s channel.", msg.Type(), msg.Channel)
		}
	}
}

func (c *kernelConn) executeLoop(ctx context.Context) {
	for {
		select {
		case msg := <-c.shell:
			c.kernel.handleShell(ctx, c, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (c *kernelConn) send(msg *messaging.Message) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	data, format, err := messaging.Serialize(msg)
	if err != nil {
		return err
	}

	typ := websocket.MessageText
	if format == messaging.WireFormatBinary {
		typ = websocket.MessageBinary
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.wmu.Lock()
	defer c.wmu.Unlock()

	return c.conn.Write(ctx, typ, data)
}

// requestInput sends an input_request and waits for the matching input_reply.
func (c *kernelConn) requestInput(ctx context.Context, request *messaging.Message) (string, error) {
	if err := c.send(request); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, inputTimeout)
	defer cancel()

	for {
		select {
		case reply := <-c.stdin:
			if reply.Type() != messaging.StdinInputReply || reply.ParentMsgId() != request.MsgId() {
				c.kernel.log.Warn("Ignoring %s message with parent %s.", reply.Type(), reply.ParentMsgId())
				continue
			}

			var content messaging.InputReplyContent
			if err := reply.DecodeContent(&content); err != nil {
				return "", err
			}
			return content.Value, nil
		case <-c.done:
			return "", ErrConnectionClosed
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrInputTimedOut, ctx.Err())
		}
	}
}

func (c *kernelConn) markDone() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *kernelConn) close(reason string) {
	c.markDone()
	_ = c.conn.Close(websocket.StatusGoingAway, reason)
}

func (c *kernelConn) drop() {
	c.markDone()
	_ = c.conn.CloseNow()
}
