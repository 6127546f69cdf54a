package bridge

import (
	"log/slog"

	"github.com/jdginn/mot/devices"
	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/message"
	"github.com/jdginn/mot/shutdown"
)

// MidiToOsc forwards every MIDI message as one OSC message on Path.
type MidiToOsc struct {
	source devices.ByteSource
	sink   devices.EnvelopeSink
	path   string
	log    *slog.Logger
}

func NewMidiToOsc(source devices.ByteSource, sink devices.EnvelopeSink, path string) *MidiToOsc {
	return &MidiToOsc{
		source: source,
		sink:   sink,
		path:   message.NormalizeAddress(path),
		log:    logging.Get(logging.OSC_OUT),
	}
}

// Handle translates and sends one message. Send failures are logged and otherwise ignored.
func (b *MidiToOsc) Handle(timestampMicros int64, msg message.Bytes) {
	env := message.ToEnvelope(b.path, msg)
	b.log.Debug("Forwarding MIDI as OSC", "timestamp", timestampMicros, "envelope", env.String())
	if err := b.sink.Send(env); err != nil {
		b.log.Warn("Failed to send OSC message", "address", env.Address, "err", err)
	}
}

func (b *MidiToOsc) Run(sig *shutdown.Signal) error {
	return listenUntil(sig, b.source, b.Handle)
}
