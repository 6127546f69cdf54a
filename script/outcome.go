// Package script runs user supplied transforms over MIDI messages and normalizes whatever the
// script returns into an Outcome.
package script

import (
	"fmt"
	"math"
	"strings"

	"github.com/jdginn/mot/message"
)

// Kind tags an Outcome.
type Kind int

const (
	// Suppressed means the script filtered the message out.
	Suppressed Kind = iota
	// Single carries exactly one message.
	Single
	// Multiple carries an ordered list of messages.
	Multiple
	// Invalid means the script returned something unusable, or failed.
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Suppressed:
		return "suppressed"
	case Single:
		return "single"
	case Multiple:
		return "multiple"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the normalized result of one transform call.
type Outcome struct {
	Kind     Kind
	Messages []message.Bytes
	Reason   string
}

func suppressed() Outcome {
	return Outcome{Kind: Suppressed}
}

func single(msg message.Bytes) Outcome {
	return Outcome{Kind: Single, Messages: []message.Bytes{msg}}
}

func multiple(msgs []message.Bytes) Outcome {
	return Outcome{Kind: Multiple, Messages: msgs}
}

func invalid(format string, args ...any) Outcome {
	return Outcome{Kind: Invalid, Reason: fmt.Sprintf(format, args...)}
}

func (o Outcome) String() string {
	switch o.Kind {
	case Invalid:
		return "invalid: " + o.Reason
	case Single, Multiple:
		parts := make([]string, len(o.Messages))
		for i, m := range o.Messages {
			parts[i] = fmt.Sprint(m.Ints())
		}
		return o.Kind.String() + " " + strings.Join(parts, " ")
	default:
		return o.Kind.String()
	}
}

// Classify inspects a value returned by a script and decides its Outcome.
//
//   - nil or an empty sequence is Suppressed.
//   - a flat sequence of integers in [0,255] is Single.
//   - a sequence of such sequences is Multiple. Empty inner sequences are dropped; if every
//     inner sequence is empty the result is Suppressed.
//   - anything else is Invalid.
//
// Classify never panics.
func Classify(v any) Outcome {
	switch v := v.(type) {
	case nil:
		return suppressed()
	case message.Bytes:
		return classifyBytes(v)
	case []byte:
		return classifyBytes(v)
	case []message.Bytes:
		return classifyNestedBytes(v)
	case [][]byte:
		nested := make([]message.Bytes, len(v))
		for i, m := range v {
			nested[i] = m
		}
		return classifyNestedBytes(nested)
	case []int:
		seq := make([]any, len(v))
		for i, n := range v {
			seq[i] = n
		}
		return classifySeq(seq)
	case [][]int:
		seq := make([]any, len(v))
		for i, inner := range v {
			seq[i] = inner
		}
		return classifySeq(seq)
	case []any:
		return classifySeq(v)
	default:
		return invalid("expected nil, a table of bytes or an array of byte tables, got %s", describe(v))
	}
}

func classifyBytes(b []byte) Outcome {
	if len(b) == 0 {
		return suppressed()
	}
	return single(message.Bytes(b).Clone())
}

func classifyNestedBytes(msgs []message.Bytes) Outcome {
	out := make([]message.Bytes, 0, len(msgs))
	for _, m := range msgs {
		if len(m) > 0 {
			out = append(out, m.Clone())
		}
	}
	if len(out) == 0 {
		return suppressed()
	}
	return multiple(out)
}

func classifySeq(seq []any) Outcome {
	if len(seq) == 0 {
		return suppressed()
	}
	if isSeq(seq[0]) {
		msgs := make([]message.Bytes, 0, len(seq))
		for i, inner := range seq {
			if !isSeq(inner) {
				return invalid("element %d: expected a table of bytes, got %s", i+1, describe(inner))
			}
			msg, err := toBytes(inner)
			if err != nil {
				return invalid("message %d: %v", i+1, err)
			}
			if len(msg) > 0 {
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) == 0 {
			return suppressed()
		}
		return multiple(msgs)
	}

	msg, err := toBytes(seq)
	if err != nil {
		return invalid("%v", err)
	}
	return single(msg)
}

func isSeq(v any) bool {
	switch v.(type) {
	case []any, []int, []byte, message.Bytes:
		return true
	}
	return false
}

func toBytes(v any) (message.Bytes, error) {
	switch v := v.(type) {
	case message.Bytes:
		return v.Clone(), nil
	case []byte:
		return message.Bytes(v).Clone(), nil
	case []int:
		out := make(message.Bytes, len(v))
		for i, n := range v {
			b, err := message.ArgToByte(n)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i+1, err)
			}
			out[i] = b
		}
		return out, nil
	case []any:
		out := make(message.Bytes, len(v))
		for i, e := range v {
			b, err := numberToByte(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i+1, err)
			}
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a table of bytes, got %s", describe(v))
	}
}

func numberToByte(v any) (byte, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		if n < 0 || n > 255 {
			return 0, fmt.Errorf("number %v does not fit in a byte", n)
		}
		return byte(n), nil
	case float32:
		return numberToByte(float64(n))
	default:
		return message.ArgToByte(v)
	}
}

func describe(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("string %q", v)
	case bool:
		return fmt.Sprintf("boolean %v", v)
	case map[string]any:
		return "a table with non-sequence keys"
	case unsupported:
		return string(v)
	default:
		return fmt.Sprintf("%T", v)
	}
}
