package message

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Skipped describes an OSC argument that did not make it into a Byte Message.
type Skipped struct {
	Index  int
	Value  any
	Reason string
}

// ToEnvelope wraps msg in an Envelope addressed to path. Every byte becomes an int32
// argument in the same order. It never filters.
func ToEnvelope(path string, msg Bytes) Envelope {
	args := make([]any, len(msg))
	for i, b := range msg {
		args[i] = int32(b)
	}
	return Envelope{
		Address: NormalizeAddress(path),
		Args:    args,
	}
}

// FromEnvelope extracts a Byte Message from env if its address matches path.
//
// Arguments that are not integers in [0,255] are skipped one by one and reported to onSkip,
// which may be nil. The result is truncated to MaxLength. A mismatched address or an envelope
// with no usable arguments yields nil.
func FromEnvelope(env Envelope, path string, onSkip func(Skipped)) Bytes {
	if !MatchAddress(path, env.Address) {
		return nil
	}
	skip := func(i int, v any, reason string) {
		if onSkip != nil {
			onSkip(Skipped{Index: i, Value: v, Reason: reason})
		}
	}

	var out Bytes
	for i, arg := range env.Args {
		b, err := ArgToByte(arg)
		if err != nil {
			skip(i, arg, err.Error())
			continue
		}
		if len(out) == MaxLength {
			skip(i, arg, fmt.Sprintf("message longer than %d bytes", MaxLength))
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ArgToByte converts an integer argument to a byte.
func ArgToByte(arg any) (byte, error) {
	switch v := arg.(type) {
	case int32:
		return toByte(v)
	case int64:
		return toByte(v)
	case int:
		return toByte(v)
	case int8:
		return toByte(v)
	case int16:
		return toByte(v)
	case uint8:
		return v, nil
	case uint16:
		return toByte(v)
	case uint32:
		return toByte(v)
	case uint64:
		return toByte(v)
	case uint:
		return toByte(v)
	default:
		return 0, fmt.Errorf("unsupported argument type %T", arg)
	}
}

func toByte[T constraints.Integer](v T) (byte, error) {
	if v < 0 || uint64(v) > math.MaxUint8 {
		return 0, fmt.Errorf("number %d does not fit in a byte", v)
	}
	return byte(v), nil
}
