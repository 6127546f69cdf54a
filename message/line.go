package message

import (
	"strconv"
	"strings"
)

// ParseLine turns a line of text into an Envelope.
//
// The first whitespace-separated token is the address. Every other token becomes an int32 if
// it parses as one, otherwise a float32 if it parses as one, otherwise a string. Blank lines
// report false.
func ParseLine(line string) (Envelope, bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Envelope{}, false
	}

	args := make([]any, 0, len(tokens)-1)
	for _, tok := range tokens[1:] {
		if i, err := strconv.ParseInt(tok, 10, 32); err == nil {
			args = append(args, int32(i))
		} else if f, err := strconv.ParseFloat(tok, 32); err == nil {
			args = append(args, float32(f))
		} else {
			args = append(args, tok)
		}
	}
	return NewEnvelope(tokens[0], args...), true
}
