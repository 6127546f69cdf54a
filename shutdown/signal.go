// Package shutdown holds the cancellation signal shared by every running loop and the
// coordinator that raises it on an operator interrupt.
package shutdown

import (
	"sync"
	"sync/atomic"
)

// Signal is a one-way stop flag. The zero value is not usable; use NewSignal.
//
// A Signal is shared by pointer. Once stopped it stays stopped.
type Signal struct {
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Stop raises the signal. Only the first call has an effect; it reports whether this call
// was the one that raised it.
func (s *Signal) Stop() bool {
	raised := false
	s.once.Do(func() {
		s.stopped.Store(true)
		close(s.done)
		raised = true
	})
	return raised
}

// Stopped reports whether the signal has been raised.
func (s *Signal) Stopped() bool {
	return s.stopped.Load()
}

// Done is closed once the signal is raised. Callback-driven runners block on it.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}
