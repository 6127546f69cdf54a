// Package devices connects mot to MIDI hardware and to OSC peers on the network.
package devices

import (
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/jdginn/mot/message"
)

// ByteSource delivers MIDI messages to callback, one at a time, in arrival order.
type ByteSource interface {
	Listen(callback func(timestampMicros int64, msg message.Bytes)) (stop func(), err error)
}

// ByteSink writes MIDI messages to hardware.
type ByteSink interface {
	Send(msg message.Bytes) error
}

// EnvelopeSink sends OSC messages to a peer.
type EnvelopeSink interface {
	Send(env message.Envelope) error
}

// PacketSource waits at most timeout for one OSC packet.
type PacketSource interface {
	Receive(timeout time.Duration) (osc.Packet, error)
}
