package client_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/client"
)

var _ = Describe("Signal", func() {
	It("Will deliver values to subscribers in subscription order", func() {
		signal := client.NewSignal[int]("test")
		Expect(signal.Name()).To(Equal("test"))

		var order []string
		signal.Subscribe(func(v int) { order = append(order, "first") })
		signal.Subscribe(func(v int) { order = append(order, "second") })

		signal.Emit(1)
		Expect(order).To(Equal([]string{"first", "second"}))
		Expect(signal.NumSubscribers()).To(Equal(2))
	})

	It("Will stop delivering after unsubscribing", func() {
		signal := client.NewSignal[string]("test")

		var values []string
		unsubscribe := signal.Subscribe(func(v string) { values = append(values, v) })

		signal.Emit("a")
		unsubscribe()
		unsubscribe()
		signal.Emit("b")

		Expect(values).To(Equal([]string{"a"}))
		Expect(signal.NumSubscribers()).To(Equal(0))
	})

	It("Will keep delivering when a subscriber panics", func() {
		signal := client.NewSignal[int]("test")

		sum := 0
		signal.Subscribe(func(int) { panic("subscriber exploded") })
		signal.Subscribe(func(v int) { sum += v })

		Expect(func() { signal.Emit(3) }).ToNot(Panic())
		Expect(sum).To(Equal(3))
	})

	It("Will ignore emits and subscriptions once closed", func() {
		signal := client.NewSignal[int]("test")

		calls := 0
		signal.Subscribe(func(int) { calls++ })
		signal.Close()
		signal.Close()

		signal.Emit(1)
		signal.Subscribe(func(int) { calls++ })()
		signal.Emit(2)

		Expect(calls).To(Equal(0))
		Expect(signal.IsClosed()).To(BeTrue())
		Expect(signal.NumSubscribers()).To(Equal(0))
	})
})
