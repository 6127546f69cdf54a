package script

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jdginn/mot/message"
)

// countingEngine fails the test if two calls overlap.
type countingEngine struct {
	t        *testing.T
	inFlight atomic.Int32
	calls    atomic.Int32
}

func (e *countingEngine) Call(function string, msg message.Bytes) (any, error) {
	if n := e.inFlight.Add(1); n != 1 {
		e.t.Errorf("%d calls in flight", n)
	}
	defer e.inFlight.Add(-1)
	e.calls.Add(1)
	time.Sleep(time.Millisecond)
	return []any{float64(msg[0])}, nil
}

func TestAdapterSerializesCalls(t *testing.T) {
	engine := &countingEngine{t: t}
	a := NewAdapter(engine, "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := a.Transform(message.Bytes{byte(i)})
			assert.Equal(t, Single, out.Kind)
			assert.Equal(t, []message.Bytes{{byte(i)}}, out.Messages)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(20), engine.calls.Load())
}

type funcEngine func(string, message.Bytes) (any, error)

func (f funcEngine) Call(function string, msg message.Bytes) (any, error) {
	return f(function, msg)
}

func TestAdapterDegradesFailuresToInvalid(t *testing.T) {
	failing := NewAdapter(funcEngine(func(string, message.Bytes) (any, error) {
		return nil, errors.New("engine fault")
	}), "")
	out := failing.Transform(message.Bytes{1})
	assert.Equal(t, Invalid, out.Kind)
	assert.Contains(t, out.Reason, "engine fault")

	panicking := NewAdapter(funcEngine(func(string, message.Bytes) (any, error) {
		panic("bad state")
	}), "")
	assert.NotPanics(t, func() { out = panicking.Transform(message.Bytes{1}) })
	assert.Equal(t, Invalid, out.Kind)
	assert.Contains(t, out.Reason, "bad state")

	// The mutex is released after a panic.
	assert.Equal(t, Invalid, panicking.Transform(message.Bytes{1}).Kind)
}

func TestAdapterUsesFunctionName(t *testing.T) {
	var called string
	a := NewAdapter(funcEngine(func(fn string, _ message.Bytes) (any, error) {
		called = fn
		return nil, nil
	}), "")
	a.Transform(message.Bytes{1})
	assert.Equal(t, DefaultFunction, called)

	a = NewAdapter(funcEngine(func(fn string, _ message.Bytes) (any, error) {
		called = fn
		return nil, nil
	}), "remap")
	a.Transform(message.Bytes{1})
	assert.Equal(t, "remap", called)
}
