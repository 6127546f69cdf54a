package devices

import (
	"github.com/hypebeast/go-osc/osc"

	"github.com/jdginn/mot/message"
)

// MessageHandler receives a matched message and the segments captured by "@" in its pattern.
type MessageHandler func(msg *osc.Message, captures []string)

type namedHandler struct {
	pattern string
	handler MessageHandler
}

// Dispatcher routes OSC messages to handlers by address pattern (see message.Captures).
//
// Unlike osc.StandardDispatcher it runs bundle contents immediately and in order, ignoring
// time tags. Every matching handler runs, in registration order.
type Dispatcher struct {
	handlers  []namedHandler
	unmatched func(*osc.Message)
}

var _ osc.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// AddMsgHandler registers handler for pattern. Handlers must be added before dispatching starts.
func (d *Dispatcher) AddMsgHandler(pattern string, handler MessageHandler) {
	d.handlers = append(d.handlers, namedHandler{pattern: pattern, handler: handler})
}

// OnUnmatched sets a handler for messages no pattern matched.
func (d *Dispatcher) OnUnmatched(handler func(*osc.Message)) {
	d.unmatched = handler
}

// Dispatch implements osc.Dispatcher.
func (d *Dispatcher) Dispatch(packet osc.Packet) {
	for _, msg := range Messages(packet) {
		d.dispatch(msg)
	}
}

func (d *Dispatcher) dispatch(msg *osc.Message) {
	matched := false
	for _, nh := range d.handlers {
		if ok, captures := message.Captures(nh.pattern, msg.Address); ok {
			matched = true
			nh.handler(msg, captures)
		}
	}
	if !matched && d.unmatched != nil {
		d.unmatched(msg)
	}
}
