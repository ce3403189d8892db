package configuration

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/goccy/go-json"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/client"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/connection"
)

const (
	DefaultBaseUrl    = "http://localhost:8888"
	DefaultKernelName = "python3"
)

var (
	ErrInvalidBaseUrl        = errors.New("invalid base url")
	ErrConflictingCodeSource = errors.New("at most one of \"code\" and \"file\" may be specified")
)

// KernelClientOptions configures the kernel client command-line program.
type KernelClientOptions struct {
	config.LoggerOptions `yaml:",inline" json:"logger_options"`

	BaseUrl            string `name:"base-url"              json:"base-url"              yaml:"base-url"              description:"HTTP base URL of the Jupyter server, e.g. http://localhost:8888."`
	WsUrl              string `name:"ws-url"                json:"ws-url"                yaml:"ws-url"                description:"Websocket base URL of the Jupyter server. Derived from base-url when empty."`
	Token              string `name:"token"                 json:"-"                     yaml:"token"                 description:"Jupyter server authentication token."`
	KernelId           string `name:"kernel-id"             json:"kernel-id"             yaml:"kernel-id"             description:"ID of an existing kernel to attach to. A new kernel is started when empty."`
	KernelName         string `name:"kernel-name"           json:"kernel-name"           yaml:"kernel-name"           description:"Name of the kernel spec used when starting a new kernel."`
	SessionId          string `name:"session-id"            json:"session-id"            yaml:"session-id"            description:"Session ID stamped on every message. Generated when empty."`
	Username           string `name:"username"              json:"username"              yaml:"username"              description:"Username stamped on every message."`
	ExecuteCode        string `name:"code"                  json:"code"                  yaml:"code"                  description:"Code to execute once the kernel is ready."`
	ExecuteFile        string `name:"file"                  json:"file"                  yaml:"file"                  description:"Path of a file whose contents are executed once the kernel is ready."`
	ReconnectLimit     int    `name:"reconnect-limit"       json:"reconnect-limit"       yaml:"reconnect-limit"       description:"Number of automatic reconnect attempts before the connection is declared dead."`
	EarlyCloseWindowMs int    `name:"early-close-window-ms" json:"early-close-window-ms" yaml:"early-close-window-ms" description:"Unclean closes within this many milliseconds of connecting trigger a liveness check of the kernel."`
	ProbeTimeoutMs     int    `name:"probe-timeout-ms"      json:"probe-timeout-ms"      yaml:"probe-timeout-ms"      description:"Timeout of the kernel liveness check, in milliseconds."`
	DialTimeoutMs      int    `name:"dial-timeout-ms"       json:"dial-timeout-ms"       yaml:"dial-timeout-ms"       description:"Timeout of a single websocket dial, in milliseconds."`
	WriteTimeoutMs     int    `name:"write-timeout-ms"      json:"write-timeout-ms"      yaml:"write-timeout-ms"      description:"Timeout of a single websocket write, in milliseconds."`
	PrometheusPort     int    `name:"prometheus_port"       json:"prometheus_port"       yaml:"prometheus_port"       description:"The port on which to serve Prometheus metrics. Metrics are not served when this is not positive."`
	AllowStdin         bool   `name:"allow-stdin"           json:"allow-stdin"           yaml:"allow-stdin"           description:"Answer the kernel's input requests from the terminal."`
	ShutdownOnExit     bool   `name:"shutdown-on-exit"      json:"shutdown-on-exit"      yaml:"shutdown-on-exit"      description:"Shut the kernel down before exiting."`

	// PrettyPrintOptions, when true, instructs the driver script to pretty-print
	// the KernelClientOptions struct when the program first begins running.
	PrettyPrintOptions bool `name:"pretty_print_options" json:"pretty_print_options" yaml:"pretty_print_options"`
}

// Validate fills in defaults and checks that the options are usable.
func (opts *KernelClientOptions) Validate() error {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	opts.BaseUrl = strings.TrimSuffix(opts.BaseUrl, "/")

	base, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return fmt.Errorf("%w \"%s\": %v", ErrInvalidBaseUrl, opts.BaseUrl, err)
	}

	if opts.WsUrl == "" {
		switch base.Scheme {
		case "http":
			base.Scheme = "ws"
		case "https":
			base.Scheme = "wss"
		default:
			return fmt.Errorf("%w \"%s\": unsupported scheme \"%s\"", ErrInvalidBaseUrl, opts.BaseUrl, base.Scheme)
		}

		opts.WsUrl = base.String()
	}

	if opts.KernelName == "" {
		opts.KernelName = DefaultKernelName
	}

	if opts.ExecuteCode != "" && opts.ExecuteFile != "" {
		return ErrConflictingCodeSource
	}

	if opts.ReconnectLimit <= 0 {
		opts.ReconnectLimit = connection.DefaultReconnectLimit
	}

	if opts.EarlyCloseWindowMs <= 0 {
		opts.EarlyCloseWindowMs = int(connection.DefaultEarlyCloseWindow / time.Millisecond)
	}

	if opts.ProbeTimeoutMs <= 0 {
		opts.ProbeTimeoutMs = int(connection.DefaultProbeTimeout / time.Millisecond)
	}

	if opts.DialTimeoutMs <= 0 {
		opts.DialTimeoutMs = int(connection.DefaultDialTimeout / time.Millisecond)
	}

	if opts.WriteTimeoutMs <= 0 {
		opts.WriteTimeoutMs = int(connection.DefaultWriteTimeout / time.Millisecond)
	}

	return nil
}

// ClientOptions returns the options of a client.KernelClient for the configured kernel.
func (opts *KernelClientOptions) ClientOptions() client.Options {
	return client.Options{
		Options: connection.Options{
			WsURL:            opts.WsUrl,
			KernelID:         opts.KernelId,
			SessionID:        opts.SessionId,
			Token:            opts.Token,
			EarlyCloseWindow: time.Duration(opts.EarlyCloseWindowMs) * time.Millisecond,
			ReconnectLimit:   opts.ReconnectLimit,
			ProbeTimeout:     time.Duration(opts.ProbeTimeoutMs) * time.Millisecond,
			DialTimeout:      time.Duration(opts.DialTimeoutMs) * time.Millisecond,
			WriteTimeout:     time.Duration(opts.WriteTimeoutMs) * time.Millisecond,
		},
		KernelName: opts.KernelName,
		Username:   opts.Username,
	}
}

// PrettyString is the same as String, except that PrettyString calls json.MarshalIndent instead of json.Marshal.
func (opts *KernelClientOptions) PrettyString(indentSize int) string {
	indentBuilder := strings.Builder{}
	for i := 0; i < indentSize; i++ {
		indentBuilder.WriteString(" ")
	}

	m, err := json.MarshalIndent(opts, "", indentBuilder.String())
	if err != nil {
		panic(err)
	}

	return string(m)
}

func (opts *KernelClientOptions) Clone() *KernelClientOptions {
	clone := *opts
	return &clone
}

func (opts *KernelClientOptions) String() string {
	m, err := json.Marshal(opts)
	if err != nil {
		panic(err)
	}

	return string(m)
}
