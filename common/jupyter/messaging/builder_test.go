package messaging_test

import (
	"encoding/hex"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
)

var hexIdPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

var _ = Describe("MessageBuilder", func() {
	It("Will generate 32-character hex IDs with a version 4 UUID layout", func() {
		seen := make(map[string]struct{})

		for i := 0; i < 1000; i++ {
			id := messaging.NewMessageId()
			Expect(hexIdPattern.MatchString(id)).To(BeTrue())

			raw, err := hex.DecodeString(id)
			Expect(err).To(BeNil())
			Expect(raw).To(HaveLen(16))
			Expect(raw[6] >> 4).To(Equal(byte(4)))
			Expect(raw[8] & 0xc0).To(Equal(byte(0x80)))

			_, duplicate := seen[id]
			Expect(duplicate).To(BeFalse())
			seen[id] = struct{}{}
		}
	})

	It("Will build messages stamped with the session, username, and protocol version", func() {
		builder := messaging.NewMessageBuilder("session-1", "jovyan")
		content := map[string]interface{}{"code": "1+1"}

		msg := builder.Build(messaging.ShellExecuteRequest, messaging.ShellChannel, content, nil)
		Expect(msg.Header.Session).To(Equal("session-1"))
		Expect(msg.Header.Username).To(Equal("jovyan"))
		Expect(msg.Header.Version).To(Equal("5.0"))
		Expect(msg.Header.MsgType.String()).To(Equal(messaging.ShellExecuteRequest))
		Expect(hexIdPattern.MatchString(msg.Header.MsgID)).To(BeTrue())
		Expect(msg.ParentHeader.IsEmpty()).To(BeTrue())
		Expect(msg.Channel).To(Equal(messaging.ShellChannel))
		Expect(msg.Content).To(Equal(content))
		Expect(msg.Metadata).ToNot(BeNil())
		Expect(msg.Metadata).To(BeEmpty())
		Expect(msg.Buffers).To(BeNil())

		_, err := time.Parse(messaging.JavascriptISOString, msg.Header.Date)
		Expect(err).To(BeNil())
	})

	It("Will default the username", func() {
		builder := messaging.NewMessageBuilder("session-1", "")
		Expect(builder.Username()).To(Equal(messaging.MessageHeaderDefaultUsername))
		Expect(builder.Session()).To(Equal("session-1"))
	})

	It("Will attach buffers and fill empty content", func() {
		builder := messaging.NewMessageBuilder("session-1", "jovyan")

		msg := builder.Build(messaging.CommMsgMessage, messaging.ShellChannel, nil, nil, []byte("a"), []byte("b"))
		Expect(msg.Content).ToNot(BeNil())
		Expect(msg.Buffers).To(Equal([][]byte{[]byte("a"), []byte("b")}))
	})

	It("Will build replies that reference their parent", func() {
		builder := messaging.NewMessageBuilder("session-1", "jovyan")
		request := builder.Build(messaging.KernelInfoRequest, messaging.ShellChannel, nil, nil)

		reply := builder.BuildReply(request, messaging.KernelInfoReply, messaging.ShellChannel, map[string]interface{}{"status": "ok"})
		Expect(reply.ParentHeader).To(Equal(request.Header))
		Expect(reply.ParentMsgId()).To(Equal(request.MsgId()))
		Expect(reply.MsgId()).ToNot(Equal(request.MsgId()))
	})
})
