package messaging

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// NewMessageId returns a random 32-character hexadecimal message ID.
//
// The ID is a version 4 UUID with the dashes removed, so it carries the fixed version nibble and
// the RFC 4122 variant bits in byte 8.
func NewMessageId() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// MessageBuilder constructs protocol-conformant messages on behalf of a single client session.
type MessageBuilder struct {
	session  string
	username string
	now      func() time.Time
}

// NewMessageBuilder creates a MessageBuilder that stamps every message with the given session and username.
// If the username is empty, MessageHeaderDefaultUsername is used.
func NewMessageBuilder(session string, username string) *MessageBuilder {
	if username == "" {
		username = MessageHeaderDefaultUsername
	}

	return &MessageBuilder{
		session:  session,
		username: username,
		now:      time.Now,
	}
}

// Session returns the session ID the builder stamps on messages.
func (b *MessageBuilder) Session() string {
	return b.session
}

// Username returns the username the builder stamps on messages.
func (b *MessageBuilder) Username() string {
	return b.username
}

// Build creates a new message with a fresh ID and an empty parent header.
// Nil content or metadata are replaced with empty maps.
func (b *MessageBuilder) Build(msgType string, channel Channel, content map[string]interface{}, metadata map[string]interface{}, buffers ...[]byte) *Message {
	if content == nil {
		content = make(map[string]interface{})
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	msg := &Message{
		Header: MessageHeader{
			MsgID:    NewMessageId(),
			Username: b.username,
			Session:  b.session,
			Date:     b.now().UTC().Format(JavascriptISOString),
			MsgType:  JupyterMessageType(msgType),
			Version:  ProtocolVersion,
		},
		ParentHeader: MessageHeader{},
		Metadata:     metadata,
		Content:      content,
		Channel:      channel,
	}

	if len(buffers) > 0 {
		msg.Buffers = buffers
	}

	return msg
}

// BuildReply creates a new message whose parent header is the header of parent.
func (b *MessageBuilder) BuildReply(parent *Message, msgType string, channel Channel, content map[string]interface{}, buffers ...[]byte) *Message {
	msg := b.Build(msgType, channel, content, nil, buffers...)

	if parent != nil {
		msg.ParentHeader = parent.Header
	}

	return msg
}
