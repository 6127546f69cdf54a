package devicestesting

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/jdginn/mot/message"
)

// MockByteSink is a testify mock for devices.ByteSink.
type MockByteSink struct {
	mock.Mock
}

func (m *MockByteSink) Send(msg message.Bytes) error {
	args := m.Called(msg)
	return args.Error(0)
}

// MockEnvelopeSink is a testify mock for devices.EnvelopeSink.
type MockEnvelopeSink struct {
	mock.Mock
}

func (m *MockEnvelopeSink) Send(env message.Envelope) error {
	args := m.Called(env)
	return args.Error(0)
}

// ByteRecorder is a devices.ByteSink that keeps everything it is sent, in order.
type ByteRecorder struct {
	mu   sync.Mutex
	msgs []message.Bytes
}

func (r *ByteRecorder) Send(msg message.Bytes) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg.Clone())
	r.mu.Unlock()
	return nil
}

func (r *ByteRecorder) Messages() []message.Bytes {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Bytes(nil), r.msgs...)
}

// EnvelopeRecorder is a devices.EnvelopeSink that keeps everything it is sent, in order.
type EnvelopeRecorder struct {
	mu   sync.Mutex
	envs []message.Envelope
}

func (r *EnvelopeRecorder) Send(env message.Envelope) error {
	r.mu.Lock()
	r.envs = append(r.envs, env)
	r.mu.Unlock()
	return nil
}

func (r *EnvelopeRecorder) Envelopes() []message.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Envelope(nil), r.envs...)
}
