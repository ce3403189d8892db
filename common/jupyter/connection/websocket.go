package connection

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
	"nhooyr.io/websocket"
)

const (
	// DefaultReadLimit bounds the size of a single inbound message.
	DefaultReadLimit = 64 << 20
)

// WebsocketDialer dials a Jupyter server's kernel channels endpoint.
type WebsocketDialer struct {
	HTTPClient *http.Client
	Header     http.Header
	ReadLimit  int64
}

func NewWebsocketDialer(token string) *WebsocketDialer {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "token "+token)
	}

	return &WebsocketDialer{
		Header:    header,
		ReadLimit: DefaultReadLimit,
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: d.Header,
	})
	if err != nil {
		return nil, err
	}

	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}

	return &websocketTransport{conn: conn}, nil
}

type websocketTransport struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (t *websocketTransport) Read(ctx context.Context) (messaging.WireFormat, []byte, error) {
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		if status := websocket.CloseStatus(err); status != -1 {
			var closeErr websocket.CloseError
			reason := ""
			if errors.As(err, &closeErr) {
				reason = closeErr.Reason
			}
			return messaging.WireFormatText, nil, &CloseError{Code: int(status), Reason: reason, Err: err}
		}

		return messaging.WireFormatText, nil, err
	}

	if typ == websocket.MessageBinary {
		return messaging.WireFormatBinary, data, nil
	}

	return messaging.WireFormatText, data, nil
}

func (t *websocketTransport) Write(ctx context.Context, format messaging.WireFormat, data []byte) error {
	typ := websocket.MessageText
	if format == messaging.WireFormatBinary {
		typ = websocket.MessageBinary
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()

	return t.conn.Write(ctx, typ, data)
}

func (t *websocketTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}
