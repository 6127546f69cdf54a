package devicestesting

import (
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/jdginn/mot/listen"
)

// MockOscClient records packets instead of sending them.
type MockOscClient struct {
	mu      sync.Mutex
	packets []osc.Packet
	err     error
}

func (m *MockOscClient) Send(packet osc.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.packets = append(m.packets, packet)
	return nil
}

// SetError makes every following Send fail with err.
func (m *MockOscClient) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// GetSentMessages returns the messages sent so far, bundles flattened.
func (m *MockOscClient) GetSentMessages() []*osc.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var msgs []*osc.Message
	for _, p := range m.packets {
		switch p := p.(type) {
		case *osc.Message:
			msgs = append(msgs, p)
		case *osc.Bundle:
			msgs = append(msgs, p.Messages...)
		}
	}
	return msgs
}

// PacketQueue is an in-memory devices.PacketSource. Receive blocks for at most timeout.
type PacketQueue struct {
	ch chan queued
}

type queued struct {
	packet osc.Packet
	err    error
}

func NewPacketQueue() *PacketQueue {
	return &PacketQueue{ch: make(chan queued, 64)}
}

// Push queues packet for a later Receive.
func (q *PacketQueue) Push(packet osc.Packet) {
	q.ch <- queued{packet: packet}
}

// PushMessage queues a message built from addr and args.
func (q *PacketQueue) PushMessage(addr string, args ...any) {
	q.Push(osc.NewMessage(addr, args...))
}

// PushError makes a later Receive fail with err.
func (q *PacketQueue) PushError(err error) {
	q.ch <- queued{err: err}
}

func (q *PacketQueue) Receive(timeout time.Duration) (osc.Packet, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case item := <-q.ch:
		return item.packet, item.err
	case <-timer.C:
		return nil, listen.ErrTimeout
	}
}

// Len reports how many items are still queued.
func (q *PacketQueue) Len() int {
	return len(q.ch)
}
