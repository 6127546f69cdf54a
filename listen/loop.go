// Package listen implements the cancellable receive loop every poll-driven source runs on.
//
// A Loop alternates between a bounded-wait receive and a check of the shared shutdown
// signal, so a stop request is observed within one poll interval without busy-spinning.
package listen

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/shutdown"
)

// DefaultInterval is the bounded wait of one receive attempt.
const DefaultInterval = 100 * time.Millisecond

var (
	// ErrTimeout is returned by a receive function when nothing arrived within the timeout.
	ErrTimeout = errors.New("listen: receive timed out")
	// ErrMalformed marks a unit that arrived but could not be decoded. The loop skips it.
	ErrMalformed = errors.New("listen: malformed unit")
	// ErrNotResumable is returned when Run is called on a loop that already ran.
	ErrNotResumable = errors.New("listen: loop already ran")
)

// State is the lifecycle position of a Loop.
type State int32

const (
	Idle State = iota
	Listening
	Stopped
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Stopped:
		return "stopped"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// ReceiveFunc waits at most timeout for one unit.
type ReceiveFunc[T any] func(timeout time.Duration) (T, error)

// Handler processes one unit. A non-zero status asks the loop to stop.
type Handler[T any] func(T) int

type options struct {
	interval time.Duration
	limit    int
	log      *slog.Logger
}

type Option func(*options)

// WithInterval sets the bounded wait of each receive attempt.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLimit stops the loop after n units were dispatched. Zero means no limit.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Loop is a single-use receive loop. Construct a new one to listen again.
type Loop[T any] struct {
	sig     *shutdown.Signal
	receive ReceiveFunc[T]
	handle  Handler[T]
	opts    options
	state   atomic.Int32
}

func New[T any](sig *shutdown.Signal, receive ReceiveFunc[T], handle Handler[T], opts ...Option) *Loop[T] {
	o := options{
		interval: DefaultInterval,
		log:      logging.Get(logging.APP),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loop[T]{
		sig:     sig,
		receive: receive,
		handle:  handle,
		opts:    o,
	}
}

// State returns the current lifecycle state.
func (l *Loop[T]) State() State {
	return State(l.state.Load())
}

// Run listens until the signal is raised, the handler asks to stop, the limit is reached or
// the receive function fails. It returns the terminal state and, when Faulted, the error.
func (l *Loop[T]) Run() (State, error) {
	if !l.state.CompareAndSwap(int32(Idle), int32(Listening)) {
		return l.State(), ErrNotResumable
	}

	dispatched := 0
	for {
		if l.sig.Stopped() {
			return l.finish(Stopped, nil)
		}

		item, err := l.receive(l.opts.interval)
		if err != nil {
			if IsTimeout(err) {
				continue
			}
			if errors.Is(err, ErrMalformed) {
				l.opts.log.Warn("Skipping malformed unit", "err", err)
				continue
			}
			l.opts.log.Error("Receive failed, leaving loop", "err", err)
			return l.finish(Faulted, err)
		}

		// A shutdown may have raced the receive.
		if l.sig.Stopped() {
			return l.finish(Stopped, nil)
		}

		if status := l.handle(item); status != 0 {
			l.opts.log.Debug("Handler requested stop", "status", status)
			return l.finish(Stopped, nil)
		}

		dispatched++
		if l.opts.limit > 0 && dispatched >= l.opts.limit {
			return l.finish(Stopped, nil)
		}
	}
}

func (l *Loop[T]) finish(s State, err error) (State, error) {
	l.state.Store(int32(s))
	return s, err
}

// IsTimeout reports whether err means a bounded wait elapsed without a unit.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
