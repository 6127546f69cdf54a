package bridge

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jdginn/mot/devices"
	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/message"
	"github.com/jdginn/mot/script"
	"github.com/jdginn/mot/shutdown"
)

// Loopback re-emits every received MIDI message unchanged, for round trip latency probing.
type Loopback struct {
	source devices.ByteSource
	sink   devices.ByteSink
	log    *slog.Logger
}

func NewLoopback(source devices.ByteSource, sink devices.ByteSink) *Loopback {
	return &Loopback{source: source, sink: sink, log: logging.Get(logging.MIDI_OUT)}
}

func (b *Loopback) Handle(_ int64, msg message.Bytes) {
	if err := b.sink.Send(msg); err != nil {
		b.log.Warn("Failed to echo MIDI message", "data", msg.Ints(), "err", err)
	}
}

func (b *Loopback) Run(sig *shutdown.Signal) error {
	return listenUntil(sig, b.source, b.Handle)
}

// Echo prints one "index timestamp [bytes]" line per received MIDI message.
type Echo struct {
	source devices.ByteSource

	mu    sync.Mutex
	w     io.Writer
	index int
}

func NewEcho(source devices.ByteSource, w io.Writer) *Echo {
	return &Echo{source: source, w: w}
}

func (b *Echo) Handle(timestampMicros int64, msg message.Bytes) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.w, "%d %d %s\n", b.index, timestampMicros, formatBytes(msg))
	b.index++
}

func (b *Echo) Run(sig *shutdown.Signal) error {
	return listenUntil(sig, b.source, b.Handle)
}

// Processor runs each MIDI message through a script and writes whatever it returns.
type Processor struct {
	source  devices.ByteSource
	sink    devices.ByteSink
	adapter *script.Adapter
	log     *slog.Logger

	mu    sync.Mutex
	count int
}

func NewProcessor(source devices.ByteSource, sink devices.ByteSink, adapter *script.Adapter) *Processor {
	return &Processor{
		source:  source,
		sink:    sink,
		adapter: adapter,
		log:     logging.Get(logging.SCRIPT),
	}
}

// Handle transforms msg and writes the outcome's messages in order.
func (b *Processor) Handle(_ int64, msg message.Bytes) {
	b.mu.Lock()
	b.count++
	n := b.count
	b.mu.Unlock()

	b.log.Debug("Received MIDI message", "n", n, "data", msg.Ints())
	out := b.adapter.Transform(msg)
	switch out.Kind {
	case script.Suppressed:
		b.log.Debug("Message filtered by script", "n", n)
	case script.Single, script.Multiple:
		for _, m := range out.Messages {
			b.log.Debug("Sending processed message", "n", n, "data", m.Ints())
			if err := b.sink.Send(m); err != nil {
				b.log.Warn("Failed to send processed message", "data", m.Ints(), "err", err)
			}
		}
	case script.Invalid:
		b.log.Warn("Script processing error, message dropped", "n", n, "data", msg.Ints(), "reason", out.Reason)
	}
}

func (b *Processor) Run(sig *shutdown.Signal) error {
	return listenUntil(sig, b.source, b.Handle)
}
