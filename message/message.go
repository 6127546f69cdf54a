// Package message holds the two message shapes mot moves between MIDI and OSC and the
// translations between them.
package message

import "fmt"

// MaxLength is the longest Byte Message produced from typed OSC arguments.
const MaxLength = 1000

// Bytes is one raw MIDI unit. Running status and SysEx chunking are not interpreted.
type Bytes []byte

// Clone returns a copy of b that does not share the driver's buffer.
func (b Bytes) Clone() Bytes {
	if b == nil {
		return nil
	}
	out := make(Bytes, len(b))
	copy(out, b)
	return out
}

// Ints returns the bytes promoted to int, in order.
func (b Bytes) Ints() []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

// Envelope is an addressed OSC message with typed arguments.
//
// Arguments are int32, float32 or string when decoded from the wire. Any Go integer or float
// type is accepted when an Envelope is built locally.
type Envelope struct {
	Address string
	Args    []any
}

// NewEnvelope returns an Envelope with a normalized address.
func NewEnvelope(addr string, args ...any) Envelope {
	return Envelope{
		Address: NormalizeAddress(addr),
		Args:    args,
	}
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s %v", e.Address, e.Args)
}
