package shutdown

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jdginn/mot/logging"
)

// Coordinator raises a Signal on the first operator interrupt.
//
// It does not wait for anything to finish: whoever starts a loop joins it.
type Coordinator struct {
	sig  *Signal
	ch   chan os.Signal
	quit chan struct{}
	once sync.Once
	log  *slog.Logger
}

// Notify starts relaying the given OS signals (SIGINT and SIGTERM when none are given) to sig.
func Notify(sig *Signal, signals ...os.Signal) *Coordinator {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	c := newCoordinator(sig)
	signal.Notify(c.ch, signals...)
	go c.run()
	return c
}

func newCoordinator(sig *Signal) *Coordinator {
	return &Coordinator{
		sig:  sig,
		ch:   make(chan os.Signal, 1),
		quit: make(chan struct{}),
		log:  logging.Get(logging.META),
	}
}

func (c *Coordinator) run() {
	select {
	case s := <-c.ch:
		if c.sig.Stop() {
			c.log.Info("Received interrupt, shutting down gracefully", "signal", s.String())
		}
	case <-c.sig.Done():
	case <-c.quit:
	}
}

// Signal returns the signal this coordinator raises.
func (c *Coordinator) Signal() *Signal {
	return c.sig
}

// Close stops relaying OS signals. The shared signal is left untouched.
func (c *Coordinator) Close() {
	signal.Stop(c.ch)
	c.once.Do(func() { close(c.quit) })
}
