package client_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/client"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/connection"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/connection/mock_connection"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
	"go.uber.org/mock/gomock"
)

var _ = Describe("CommManager", func() {
	var (
		mockCtrl     *gomock.Controller
		mockDialer   *mock_connection.MockDialer
		kernel       *scriptedKernel
		kernelClient *client.KernelClient
		comms        *client.CommManager
	)

	commMsg := func(commId string, data map[string]interface{}) *messaging.Message {
		return kernel.reply(nil, messaging.CommMsgMessage, messaging.IOPubChannel, map[string]interface{}{
			"comm_id": commId,
			"data":    data,
		})
	}

	commClose := func(commId string) *messaging.Message {
		return kernel.reply(nil, messaging.CommCloseMessage, messaging.IOPubChannel, map[string]interface{}{
			"comm_id": commId,
			"data":    map[string]interface{}{},
		})
	}

	commOpen := func(commId string, targetName string) *messaging.Message {
		return kernel.reply(nil, messaging.CommOpenMessage, messaging.IOPubChannel, map[string]interface{}{
			"comm_id":       commId,
			"target_name":   targetName,
			"target_module": "widgets",
			"data":          map[string]interface{}{"state": "initial"},
		})
	}

	BeforeEach(func() {
		var err error
		mockCtrl = gomock.NewController(GinkgoT())
		mockDialer = mock_connection.NewMockDialer(mockCtrl)
		kernel = newScriptedKernel()
		mockDialer.EXPECT().Dial(gomock.Any(), gomock.Any()).DoAndReturn(kernel.Dial).AnyTimes()

		kernelClient, err = client.NewKernelClient(client.Options{
			Options: connection.Options{WsURL: "ws://localhost:8888", KernelID: testKernelId},
		}, mockDialer, nil, nil, connection.WithAfterFunc(neverReconnect))
		Expect(err).To(BeNil())
		comms = kernelClient.CommManager()

		Expect(kernelClient.StartChannels()).To(BeNil())
		Eventually(kernelClient.IsConnected).Should(BeTrue())
		kernel.answerKernelInfo(kernel.nextSent())
		Eventually(kernelClient.Status).Should(Equal(client.StatusReady))
	})

	AfterEach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		Expect(kernelClient.Dispose(ctx)).To(BeNil())
	})

	It("Will open a comm, deliver its messages, and close it once when the kernel closes it", func() {
		comm, err := comms.Open("test_target", map[string]interface{}{"x": 1.0}, nil)
		Expect(err).To(BeNil())
		Expect(comm.TargetName()).To(Equal("test_target"))
		Expect(comm.ID()).To(HaveLen(32))
		Expect(comms.Comms()).To(Equal([]*client.Comm{comm}))

		openMsg := kernel.nextSent()
		Expect(openMsg.Type()).To(Equal(messaging.CommOpenMessage))
		Expect(openMsg.Content).To(Equal(map[string]interface{}{
			"comm_id":     comm.ID(),
			"target_name": "test_target",
			"data":        map[string]interface{}{"x": 1.0},
		}))

		received := &messageRecorder{}
		var closeCount atomic.Int32
		comm.OnMsg(received.Handle).OnClose(func(*messaging.Message) error {
			closeCount.Add(1)
			return nil
		})

		for i := 0; i < 5; i++ {
			kernel.push(commMsg(comm.ID(), map[string]interface{}{"seq": float64(i)}))
		}

		Eventually(received.Len).Should(Equal(5))
		for i, msg := range received.Messages() {
			var content messaging.CommMsgContent
			Expect(msg.DecodeContent(&content)).To(BeNil())
			Expect(content.Data["seq"]).To(Equal(float64(i)))
		}

		kernel.push(commClose(comm.ID()))
		kernel.push(commClose(comm.ID()))
		kernel.push(commMsg(comm.ID(), map[string]interface{}{"seq": 99.0}))

		Eventually(comm.IsClosed).Should(BeTrue())
		Eventually(comms.Comms).Should(BeEmpty())
		Consistently(closeCount.Load, 100*time.Millisecond).Should(Equal(int32(1)))
		Expect(received.Len()).To(Equal(5))

		_, err = comm.Send(nil, nil)
		Expect(errors.Is(err, client.ErrCommClosed)).To(BeTrue())
	})

	It("Will send comm messages without leaking their futures", func() {
		comm, err := comms.Open("test_target", nil, nil)
		Expect(err).To(BeNil())
		kernel.nextSent()

		future, err := comm.Send(map[string]interface{}{"value": "hello"}, map[string]interface{}{"version": "2"}, []byte{1, 2, 3})
		Expect(err).To(BeNil())

		sent := kernel.nextSent()
		Expect(sent.Type()).To(Equal(messaging.CommMsgMessage))
		Expect(sent.Metadata).To(HaveKeyWithValue("version", "2"))
		Expect(sent.Buffers).To(Equal([][]byte{{1, 2, 3}}))

		kernel.push(kernel.status(sent, messaging.MessageKernelStatusBusy))
		kernel.push(kernel.status(sent, messaging.MessageKernelStatusIdle))

		Eventually(future.IsDisposed).Should(BeTrue())
		Expect(future.IsDone()).To(BeTrue())
		Expect(future.Reply()).To(BeNil())
		Eventually(kernelClient.NumOpenFutures).Should(Equal(0))
	})

	It("Will close a comm locally and notify the kernel", func() {
		comm, err := comms.Open("test_target", nil, nil)
		Expect(err).To(BeNil())
		kernel.nextSent()

		var closeCount atomic.Int32
		comm.OnClose(func(*messaging.Message) error {
			closeCount.Add(1)
			return nil
		})

		_, err = comm.Close(map[string]interface{}{"reason": "done"})
		Expect(err).To(BeNil())

		sent := kernel.nextSent()
		Expect(sent.Type()).To(Equal(messaging.CommCloseMessage))
		Expect(sent.ContentString("comm_id")).To(Equal(comm.ID()))

		Expect(closeCount.Load()).To(Equal(int32(1)))
		Expect(comms.Comms()).To(BeEmpty())

		_, err = comm.Close(nil)
		Expect(errors.Is(err, client.ErrCommClosed)).To(BeTrue())
		Expect(closeCount.Load()).To(Equal(int32(1)))
	})

	It("Will build comms opened by the kernel with the registered target", func() {
		received := &messageRecorder{}
		openMessages := &messageRecorder{}
		var opened atomic.Pointer[client.Comm]

		comms.RegisterTarget("jupyter.widget", func(comm *client.Comm, msg *messaging.Message) error {
			openMessages.Record(msg)
			opened.Store(comm)
			comm.OnMsg(received.Handle)
			return nil
		})

		kernel.push(commOpen("remote-1", "jupyter.widget"))
		kernel.push(commMsg("remote-1", map[string]interface{}{"method": "update"}))

		Eventually(received.Len).Should(Equal(1))
		Expect(opened.Load().ID()).To(Equal("remote-1"))

		var content messaging.CommOpenContent
		Expect(openMessages.Messages()).To(HaveLen(1))
		Expect(openMessages.Messages()[0].DecodeContent(&content)).To(BeNil())
		Expect(content.Data).To(HaveKeyWithValue("state", "initial"))

		comm, ok := comms.Comm("remote-1")
		Expect(ok).To(BeTrue())
		Expect(comm.TargetName()).To(Equal("jupyter.widget"))
	})

	It("Will fall back to the target resolver", func() {
		var requested atomic.Value
		comms.SetTargetResolver(func(targetName string, targetModule string) (client.CommTargetFactory, error) {
			requested.Store(targetName + "@" + targetModule)
			return func(*client.Comm, *messaging.Message) error { return nil }, nil
		})

		kernel.push(commOpen("remote-2", "dynamic.target"))

		Eventually(func() int { return len(comms.Comms()) }).Should(Equal(1))
		Expect(requested.Load()).To(Equal("dynamic.target@widgets"))
	})

	It("Will tear down comms whose target is unknown, fails, or panics", func() {
		comms.RegisterTarget("failing", func(*client.Comm, *messaging.Message) error {
			return errors.New("cannot build widget")
		})
		comms.RegisterTarget("panicking", func(*client.Comm, *messaging.Message) error {
			panic("widget exploded")
		})

		kernel.push(commOpen("unknown-1", "unregistered"))
		Expect(kernel.nextSentOfType(messaging.CommCloseMessage).ContentString("comm_id")).To(Equal("unknown-1"))

		kernel.push(commOpen("failing-1", "failing"))
		Expect(kernel.nextSentOfType(messaging.CommCloseMessage).ContentString("comm_id")).To(Equal("failing-1"))

		kernel.push(commOpen("panicking-1", "panicking"))
		Expect(kernel.nextSentOfType(messaging.CommCloseMessage).ContentString("comm_id")).To(Equal("panicking-1"))

		Eventually(comms.Comms).Should(BeEmpty())
		Expect(kernelClient.IsConnected()).To(BeTrue())
	})

	It("Will ignore messages for unknown comms and recover from panicking callbacks", func() {
		unsolicited := &messageRecorder{}
		kernelClient.UnsolicitedMessages().Subscribe(unsolicited.Record)

		kernel.push(commMsg("nobody", map[string]interface{}{}))
		kernel.push(commClose("nobody"))

		comm, err := comms.Open("test_target", nil, nil)
		Expect(err).To(BeNil())
		kernel.nextSent()

		var calls atomic.Int32
		comm.OnMsg(func(*messaging.Message) error {
			calls.Add(1)
			panic("callback exploded")
		})

		kernel.push(commMsg(comm.ID(), nil))
		kernel.push(commMsg(comm.ID(), nil))

		Eventually(calls.Load).Should(Equal(int32(2)))
		Expect(comm.IsClosed()).To(BeFalse())
		Expect(unsolicited.Len()).To(Equal(0))
	})

	It("Will dispose every comm when the client is disposed", func() {
		comm, err := comms.Open("test_target", nil, nil)
		Expect(err).To(BeNil())

		Expect(kernelClient.Dispose(context.Background())).To(BeNil())
		Expect(comm.IsClosed()).To(BeTrue())
		Expect(comms.Comms()).To(BeEmpty())
	})

	It("Will not register a comm that could not be opened", func() {
		Expect(kernelClient.StopChannels(context.Background())).To(BeNil())

		comm, err := comms.Open("test_target", nil, nil)
		Expect(comm).To(BeNil())
		Expect(errors.Is(err, client.ErrNotConnected)).To(BeTrue())
		Expect(comms.Comms()).To(BeEmpty())
	})
})
