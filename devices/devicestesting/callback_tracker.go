package devicestesting

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jdginn/mot/message"
)

// CallbackTracker records invocations of MIDI listen callbacks in tests
type CallbackTracker struct {
	mu         sync.Mutex
	timestamps []int64
	msgs       []message.Bytes
	t          *testing.T
}

func NewCallbackTracker(t *testing.T) *CallbackTracker {
	return &CallbackTracker{t: t}
}

// Wrap records each invocation and then calls callback, which may be nil.
func (ct *CallbackTracker) Wrap(callback func(int64, message.Bytes)) func(int64, message.Bytes) {
	return func(ts int64, msg message.Bytes) {
		ct.mu.Lock()
		ct.timestamps = append(ct.timestamps, ts)
		ct.msgs = append(ct.msgs, msg)
		ct.mu.Unlock()

		if callback != nil {
			callback(ts, msg)
		}
	}
}

// AssertCalled asserts that the callback was called exactly n times
func (ct *CallbackTracker) AssertCalled(expectedCalls int, msg ...any) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	assert.Equal(ct.t, expectedCalls, len(ct.msgs), msg...)
}

func (ct *CallbackTracker) AssertNotCalled(msg ...any) {
	ct.AssertCalled(0, msg...)
}

// WaitFor polls until at least n calls were seen or timeout passes.
func (ct *CallbackTracker) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		ct.mu.Lock()
		got := len(ct.msgs)
		ct.mu.Unlock()
		if got >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Messages returns the received messages in call order.
func (ct *CallbackTracker) Messages() []message.Bytes {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return append([]message.Bytes(nil), ct.msgs...)
}

// Timestamps returns the received timestamps in call order.
func (ct *CallbackTracker) Timestamps() []int64 {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return append([]int64(nil), ct.timestamps...)
}

func (ct *CallbackTracker) Reset() {
	ct.mu.Lock()
	ct.timestamps = nil
	ct.msgs = nil
	ct.mu.Unlock()
}
