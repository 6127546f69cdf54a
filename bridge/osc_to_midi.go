package bridge

import (
	"log/slog"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/jdginn/mot/devices"
	"github.com/jdginn/mot/listen"
	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/message"
	"github.com/jdginn/mot/shutdown"
)

// OscToMidi writes the integer arguments of OSC messages addressed to Path as MIDI messages.
type OscToMidi struct {
	source   devices.PacketSource
	sink     devices.ByteSink
	path     string
	interval time.Duration
	log      *slog.Logger
}

func NewOscToMidi(source devices.PacketSource, sink devices.ByteSink, path string, interval time.Duration) *OscToMidi {
	return &OscToMidi{
		source:   source,
		sink:     sink,
		path:     message.NormalizeAddress(path),
		interval: interval,
		log:      logging.Get(logging.OSC_IN),
	}
}

// Handle processes every message in packet in order. It never asks the loop to stop.
func (b *OscToMidi) Handle(packet osc.Packet) int {
	for _, m := range devices.Messages(packet) {
		b.handleMessage(m)
	}
	return 0
}

func (b *OscToMidi) handleMessage(m *osc.Message) {
	env := devices.FromMessage(m)
	if !message.MatchAddress(b.path, env.Address) {
		b.log.Debug("Ignored message on OSC address", "address", env.Address)
		return
	}
	msg := message.FromEnvelope(env, b.path, func(s message.Skipped) {
		b.log.Debug("Ignored unsupported OSC argument", "address", env.Address, "index", s.Index, "value", s.Value, "reason", s.Reason)
	})
	if msg == nil {
		return
	}
	if err := b.sink.Send(msg); err != nil {
		b.log.Warn("Failed to send MIDI message", "data", msg.Ints(), "err", err)
	}
}

func (b *OscToMidi) Run(sig *shutdown.Signal) error {
	loop := listen.New[osc.Packet](sig, b.source.Receive, b.Handle,
		listen.WithInterval(b.interval),
		listen.WithLogger(b.log),
	)
	_, err := loop.Run()
	return err
}
