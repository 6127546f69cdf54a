package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "/midi", NormalizeAddress("midi"))
	assert.Equal(t, "/midi", NormalizeAddress("/midi"))
	assert.Equal(t, "/", NormalizeAddress(""))
}

func TestMatchAddr(t *testing.T) {
	tests := []struct {
		path        string
		addr        string
		expectMatch bool
	}{
		{"/midi", "/midi", true},
		{"midi", "/midi", true},
		{"/midi", "/midi/1", false},
		{"/midi", "/MIDI", false},
		{"/midi/1", "/midi", false},

		{"s/marker/@/name", "s/marker/42/name", true},
		{"f/region/@/length", "f/region/abc/length", true},
		{"s/marker/@/name", "s/region/42/name", false},
		{"s/marker/@/name", "s/marker/42", false},
		{"f/region/@/length", "f/region/1234/wrong", false},
		{"s/marker/@/name", "s/marker/42/name/extra", false},

		// * extension cases
		{"s/marker/@/name/*", "s/marker/42/name", true},
		{"s/marker/@/name/*", "s/marker/42/name/extra", true},
		{"f/region/@/length/*", "f/region/abc/length/foo/bar", true},
		{"s/marker/@/name/*", "s/region/42/name/extra", false},
		{"s/marker/@/name/*", "s/marker/42", false},
		{"s/marker/@/name/*", "s/marker/42/namenotmatch", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expectMatch, MatchAddress(tt.path, tt.addr), "path=%q addr=%q", tt.path, tt.addr)
	}
}

func TestCaptures(t *testing.T) {
	tests := []struct {
		path           string
		addr           string
		expectMatch    bool
		expectCaptures []string
	}{
		{"s/marker/@/name", "s/marker/42/name", true, []string{"42"}},
		{"/meta/logging/@/level", "/meta/logging/midi_in/level", true, []string{"midi_in"}},
		{"/@/@", "/a/b", true, []string{"a", "b"}},
		{"s/marker/@/name/*", "s/marker/42/name/extra/stuff", true, []string{"42"}},
		{"/midi", "/midi", true, nil},
		{"s/marker/@/name", "s/region/42/name", false, nil},
	}

	for _, tt := range tests {
		ok, caps := Captures(tt.path, tt.addr)
		assert.Equal(t, tt.expectMatch, ok, "path=%q addr=%q", tt.path, tt.addr)
		assert.Equal(t, tt.expectCaptures, caps, "path=%q addr=%q", tt.path, tt.addr)
	}
}
