package messaging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// ProtocolVersion is the Jupyter messaging protocol version stamped on every message we build.
	ProtocolVersion = "5.0"

	MessageHeaderDefaultUsername = "username"

	JavascriptISOString = "2006-01-02T15:04:05.999Z07:00"

	IOStatusMessage         = "status"
	IOStreamMessage         = "stream"
	IOExecuteInputMessage   = "execute_input"
	IOExecuteResultMessage  = "execute_result"
	IODisplayDataMessage    = "display_data"
	IOErrorMessage          = "error"
	IOClearOutputMessage    = "clear_output"
	ShellExecuteRequest     = "execute_request"
	ShellExecuteReply       = "execute_reply"
	ShellInspectRequest     = "inspect_request"
	ShellInspectReply       = "inspect_reply"
	ShellCompleteRequest    = "complete_request"
	ShellCompleteReply      = "complete_reply"
	ShellIsCompleteRequest  = "is_complete_request"
	ShellIsCompleteReply    = "is_complete_reply"
	ShellHistoryRequest     = "history_request"
	ShellHistoryReply       = "history_reply"
	ShellCommInfoRequest    = "comm_info_request"
	ShellCommInfoReply      = "comm_info_reply"
	KernelInfoRequest       = "kernel_info_request"
	KernelInfoReply         = "kernel_info_reply"
	StdinInputRequest       = "input_request"
	StdinInputReply         = "input_reply"
	CommOpenMessage         = "comm_open"
	CommMsgMessage          = "comm_msg"
	CommCloseMessage        = "comm_close"
	MessageTypeShutdownReq  = "shutdown_request"
	MessageTypeShutdownRepl = "shutdown_reply"

	MessageKernelStatusIdle       = "idle"
	MessageKernelStatusBusy       = "busy"
	MessageKernelStatusStarting   = "starting"
	MessageKernelStatusRestarting = "restarting"
	MessageKernelStatusDead       = "dead"

	MessageStatusOK    = "ok"
	MessageStatusError = "error"
	MessageStatusAbort = "abort"
)

var (
	ErrInvalidJupyterMessage = errors.New("invalid jupyter message")
	ErrUnknownChannel        = errors.New("unrecognized message channel")
	ErrInvalidContent        = errors.New("could not decode message content")
)

// Channel identifies the logical sub-stream a message travels on.
type Channel string

const (
	ShellChannel Channel = "shell"
	IOPubChannel Channel = "iopub"
	StdinChannel Channel = "stdin"
)

func (c Channel) String() string {
	return string(c)
}

// Valid returns true if the Channel is one of shell, iopub, or stdin.
func (c Channel) Valid() bool {
	return c == ShellChannel || c == IOPubChannel || c == StdinChannel
}

type JupyterMessageType string

func (t JupyterMessageType) String() string {
	return string(t)
}

// GetBaseMessageType returns the base portion of the Jupyter message type.
// The "base part" is best defined through an example:
//
// If the message type is "execute_request", then this returns "execute_" and true.
//
// If the message type is not of the form "{action}_request" or "{action}_reply", then this
// returns the empty string and false.
func (t JupyterMessageType) GetBaseMessageType() (string, bool) {
	if strings.HasSuffix(t.String(), "request") {
		return t.String()[0 : len(t.String())-7], true
	} else if strings.HasSuffix(t.String(), "reply") {
		return t.String()[0 : len(t.String())-5], true
	}

	return "", false
}

// MessageHeader is a Jupyter message header.
// http://jupyter-client.readthedocs.io/en/latest/messaging.html#general-message-format
type MessageHeader struct {
	MsgID    string             `json:"msg_id" mapstructure:"msg_id"`
	Username string             `json:"username" mapstructure:"username"`
	Session  string             `json:"session" mapstructure:"session"`
	Date     string             `json:"date" mapstructure:"date"`
	MsgType  JupyterMessageType `json:"msg_type" mapstructure:"msg_type"`
	Version  string             `json:"version" mapstructure:"version"`
}

func (header *MessageHeader) Clone() *MessageHeader {
	return &MessageHeader{
		MsgID:    header.MsgID,
		Username: header.Username,
		Session:  header.Session,
		Date:     header.Date,
		MsgType:  header.MsgType,
		Version:  header.Version,
	}
}

// Equals returns true if every field of the two headers matches.
func (header *MessageHeader) Equals(other *MessageHeader) bool {
	if other == nil {
		return false
	}

	return *header == *other
}

// IsEmpty returns true for the empty parent header carried by original requests.
func (header *MessageHeader) IsEmpty() bool {
	return header.MsgID == "" && header.MsgType == ""
}

func (header *MessageHeader) String() string {
	m, err := json.Marshal(header)
	if err != nil {
		panic(err)
	}

	return string(m)
}

// Message represents an entire message in a high-level structure.
//
// Buffers are never part of the JSON encoding; they travel out-of-band in the binary framing
// produced by Serialize.
type Message struct {
	Header       MessageHeader          `json:"header"`
	ParentHeader MessageHeader          `json:"parent_header"`
	Metadata     map[string]interface{} `json:"metadata"`
	Content      map[string]interface{} `json:"content"`
	Channel      Channel                `json:"channel"`
	Buffers      [][]byte               `json:"-"`
}

// Validate returns an error wrapping ErrUnknownChannel if the message's channel is not recognized,
// or ErrInvalidJupyterMessage if the message has no id or type.
func (msg *Message) Validate() error {
	if !msg.Channel.Valid() {
		return fmt.Errorf("%w: \"%s\"", ErrUnknownChannel, msg.Channel)
	}

	if msg.Header.MsgID == "" || msg.Header.MsgType == "" {
		return fmt.Errorf("%w: missing msg_id or msg_type", ErrInvalidJupyterMessage)
	}

	return nil
}

// MsgId returns the ID from the message's header.
func (msg *Message) MsgId() string {
	return msg.Header.MsgID
}

// ParentMsgId returns the ID from the message's parent header (empty for original requests).
func (msg *Message) ParentMsgId() string {
	return msg.ParentHeader.MsgID
}

// Type returns the message type from the message's header.
func (msg *Message) Type() string {
	return msg.Header.MsgType.String()
}

// DecodeContent decodes the content map into the struct pointed to by out.
func (msg *Message) DecodeContent(out interface{}) error {
	if err := decodeMap(msg.Content, out); err != nil {
		return fmt.Errorf("%w: %s message \"%s\": %v", ErrInvalidContent, msg.Type(), msg.MsgId(), err)
	}

	return nil
}

// ContentString returns the string stored under key in the message content, or the empty string.
func (msg *Message) ContentString(key string) string {
	if msg.Content == nil {
		return ""
	}

	s, _ := msg.Content[key].(string)
	return s
}

// Clone returns a copy of the message. Maps are deep-copied on a best-effort basis; buffers are copied.
func (msg *Message) Clone() *Message {
	clone := &Message{
		Header:       msg.Header,
		ParentHeader: msg.ParentHeader,
		Channel:      msg.Channel,
		Metadata:     make(map[string]interface{}, len(msg.Metadata)),
		Content:      make(map[string]interface{}, len(msg.Content)),
	}

	cloneMap(msg.Metadata, clone.Metadata)
	cloneMap(msg.Content, clone.Content)

	if msg.Buffers != nil {
		clone.Buffers = make([][]byte, 0, len(msg.Buffers))
		for _, buf := range msg.Buffers {
			clone.Buffers = append(clone.Buffers, append([]byte(nil), buf...))
		}
	}

	return clone
}

func cloneMap(src map[string]interface{}, dst map[string]interface{}) {
	for k, v := range src {
		if innerSrc, ok := v.(map[string]interface{}); ok {
			innerDst := make(map[string]interface{})
			cloneMap(innerSrc, innerDst)
			dst[k] = innerDst
		} else {
			dst[k] = v
		}
	}
}

func (msg *Message) String() string {
	m, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}

	if len(msg.Buffers) > 0 {
		return fmt.Sprintf("%s (+%d buffer(s))", string(m), len(msg.Buffers))
	}

	return string(m)
}

// MessageError is the error content carried by replies whose status is "error".
type MessageError struct {
	Status    string   `json:"status" mapstructure:"status"`
	ErrName   string   `json:"ename" mapstructure:"ename"`
	ErrValue  string   `json:"evalue" mapstructure:"evalue"`
	Traceback []string `json:"traceback" mapstructure:"traceback"`
}

func (m *MessageError) String() string {
	out, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}

	return string(out)
}

func (m *MessageError) Error() string {
	return fmt.Sprintf("%s: %s", m.ErrName, m.ErrValue)
}
