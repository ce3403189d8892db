package connection

import (
	"net/url"
	"strings"
	"time"
)

// Options configures a Manager.
type Options struct {
	// WsURL is the websocket base URL of the Jupyter server, e.g. ws://localhost:8888.
	WsURL     string
	KernelID  string
	SessionID string
	Token     string

	// EarlyCloseWindow is how long after a transport is created an unclean close is treated as a possible
	// kernel death and probed before reconnecting.
	EarlyCloseWindow time.Duration

	// ReconnectLimit is the number of automatic reconnect attempts before the connection is declared dead.
	ReconnectLimit int

	ProbeTimeout time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.EarlyCloseWindow <= 0 {
		o.EarlyCloseWindow = DefaultEarlyCloseWindow
	}

	if o.ReconnectLimit <= 0 {
		o.ReconnectLimit = DefaultReconnectLimit
	}

	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}

	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}

	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
}

// ChannelsURL returns the URL of the kernel's channels endpoint:
// {WsURL}/api/kernels/{KernelID}/channels?session_id={SessionID}[&token={Token}].
func (o *Options) ChannelsURL() string {
	query := url.Values{}
	query.Set("session_id", o.SessionID)
	if o.Token != "" {
		query.Set("token", o.Token)
	}

	return strings.TrimSuffix(o.WsURL, "/") + "/api/kernels/" + url.PathEscape(o.KernelID) + "/channels?" + query.Encode()
}
