package client

import (
	"fmt"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel-client/common/metrics"
	"github.com/scusemua/notebook-kernel-client/common/utils/hashmap"
)

// CommTargetFactory is invoked when the kernel opens a comm for a registered target.
// It typically attaches callbacks with Comm.OnMsg and Comm.OnClose. If it returns an error or panics,
// the comm is closed.
type CommTargetFactory func(comm *Comm, msg *messaging.Message) error

// CommTargetResolver provides factories for targets that have not been registered.
type CommTargetResolver func(targetName string, targetModule string) (CommTargetFactory, error)

// commSender sends the shell messages of comms.
type commSender interface {
	buildMessage(msgType string, channel messaging.Channel, content map[string]interface{}, metadata map[string]interface{}, buffers ...[]byte) *messaging.Message
	sendShellMessage(msg *messaging.Message, expectReply bool, disposeOnDone bool) (*Future, error)
}

// CommManager keeps the registry of open comms and comm targets of a kernel client.
type CommManager struct {
	log logger.Logger

	sender  commSender
	metrics *metrics.KernelClientMetrics

	comms   *hashmap.OrderedMap[string, *Comm]
	targets *hashmap.OrderedMap[string, CommTargetFactory]

	resolverMu sync.RWMutex
	resolver   CommTargetResolver
}

func newCommManager(kernelId string, sender commSender, m *metrics.KernelClientMetrics) *CommManager {
	manager := &CommManager{
		sender:  sender,
		metrics: m,
		comms:   hashmap.NewOrderedMap[string, *Comm](),
		targets: hashmap.NewOrderedMap[string, CommTargetFactory](),
	}
	config.InitLogger(&manager.log, fmt.Sprintf("CommManager %s ", kernelId))

	return manager
}

// Open creates a comm for targetName, registers it, and sends comm_open to the kernel.
func (m *CommManager) Open(targetName string, data map[string]interface{}, metadata map[string]interface{}, buffers ...[]byte) (*Comm, error) {
	comm := newComm(messaging.NewMessageId(), targetName, m)
	m.register(comm)

	content := map[string]interface{}{
		"comm_id":     comm.ID(),
		"target_name": targetName,
		"data":        nonNilMap(data),
	}

	if _, err := m.send(messaging.CommOpenMessage, content, metadata, buffers...); err != nil {
		comm.dispose()
		m.unregister(comm)
		return nil, err
	}

	m.log.Debug("Opened comm %s for target \"%s\".", comm.ID(), targetName)
	return comm, nil
}

// RegisterTarget sets the factory for comms the kernel opens for targetName, replacing any previous one.
func (m *CommManager) RegisterTarget(targetName string, factory CommTargetFactory) {
	m.targets.Store(targetName, factory)
}

func (m *CommManager) UnregisterTarget(targetName string) {
	m.targets.Delete(targetName)
}

// SetTargetResolver sets the fallback consulted for targets that have not been registered.
func (m *CommManager) SetTargetResolver(resolver CommTargetResolver) {
	m.resolverMu.Lock()
	defer m.resolverMu.Unlock()

	m.resolver = resolver
}

// Comms returns the registered comms in the order in which they were opened.
func (m *CommManager) Comms() []*Comm {
	return m.comms.Values()
}

// Comm returns the registered comm with the given id.
func (m *CommManager) Comm(commId string) (*Comm, bool) {
	return m.comms.Load(commId)
}

func (m *CommManager) send(msgType string, content map[string]interface{}, metadata map[string]interface{}, buffers ...[]byte) (*Future, error) {
	msg := m.sender.buildMessage(msgType, messaging.ShellChannel, content, metadata, buffers...)
	return m.sender.sendShellMessage(msg, false, true)
}

// register returns false if a comm with the same id is already registered.
func (m *CommManager) register(comm *Comm) bool {
	if _, loaded := m.comms.LoadOrStore(comm.ID(), comm); loaded {
		return false
	}

	m.metrics.CommOpened()
	return true
}

func (m *CommManager) unregister(comm *Comm) {
	existing, ok := m.comms.Load(comm.ID())
	if !ok || existing != comm {
		return
	}

	if _, deleted := m.comms.LoadAndDelete(comm.ID()); deleted {
		m.metrics.CommClosed()
	}
}

func (m *CommManager) resolveTarget(targetName string, targetModule string) (CommTargetFactory, error) {
	if factory, ok := m.targets.Load(targetName); ok {
		return factory, nil
	}

	m.resolverMu.RLock()
	resolver := m.resolver
	m.resolverMu.RUnlock()

	if resolver == nil {
		return nil, fmt.Errorf("%w: \"%s\"", ErrUnknownCommTarget, targetName)
	}

	factory, err := resolver(targetName, targetModule)
	if err != nil {
		return nil, err
	}

	if factory == nil {
		return nil, fmt.Errorf("%w: \"%s\" (module \"%s\")", ErrUnknownCommTarget, targetName, targetModule)
	}

	return factory, nil
}

// handleMessage processes an inbound comm_open, comm_msg, or comm_close.
func (m *CommManager) handleMessage(msg *messaging.Message) {
	switch msg.Type() {
	case messaging.CommOpenMessage:
		m.handleCommOpen(msg)
	case messaging.CommMsgMessage, messaging.CommCloseMessage:
		commId := msg.ContentString("comm_id")
		comm, ok := m.comms.Load(commId)
		if !ok {
			m.log.Warn("Ignoring %s message \"%s\" for unknown comm \"%s\".", msg.Type(), msg.MsgId(), commId)
			return
		}

		comm.deliver(&commDelivery{msg: msg})
	}
}

func (m *CommManager) handleCommOpen(msg *messaging.Message) {
	var content messaging.CommOpenContent
	if err := msg.DecodeContent(&content); err != nil {
		m.log.Error("Ignoring malformed comm_open \"%s\": %v", msg.MsgId(), err)
		return
	}

	if content.CommId == "" {
		m.log.Error("Ignoring comm_open \"%s\" without a comm_id.", msg.MsgId())
		return
	}

	comm := newComm(content.CommId, content.TargetName, m)
	if !m.register(comm) {
		m.log.Warn("Ignoring comm_open \"%s\" for comm \"%s\", which is already open.", msg.MsgId(), content.CommId)
		return
	}

	factory, err := m.resolveTarget(content.TargetName, content.TargetModule)
	if err != nil {
		m.log.Error("Could not open comm \"%s\": %v", content.CommId, err)
		if _, closeErr := comm.Close(nil); closeErr != nil {
			m.log.Debug("Could not close half-open comm \"%s\": %v", content.CommId, closeErr)
		}
		return
	}

	comm.deliver(&commDelivery{msg: msg, factory: factory})
}

// disposeAll closes and unregisters every comm without notifying the kernel.
func (m *CommManager) disposeAll() {
	for _, comm := range m.comms.Values() {
		comm.dispose()
		m.unregister(comm)
	}
}
