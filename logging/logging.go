package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/hypebeast/go-osc/osc"
)

type LogCategory string

const (
	META     LogCategory = "meta" // For logs about logging
	MIDI_IN  LogCategory = "midi_in"
	MIDI_OUT LogCategory = "midi_out"
	OSC_IN   LogCategory = "osc_in"
	OSC_OUT  LogCategory = "osc_out"
	SCRIPT   LogCategory = "script"
	MDNS     LogCategory = "mdns"
	APP      LogCategory = "app" // For application-level logs (bridges starting and stopping)
)

var categories = []LogCategory{META, MIDI_IN, MIDI_OUT, OSC_IN, OSC_OUT, SCRIPT, MDNS, APP}

func strToLogCategory(s string) (LogCategory, bool) {
	for _, c := range categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// switchWriter lets tests and the CLI redirect output after loggers were handed out.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Internal state for loggers per category
var (
	mu               = new(sync.RWMutex)
	output           = &switchWriter{w: os.Stderr}
	loggers          = map[LogCategory]*slog.Logger{}
	categoryLvls     = map[LogCategory]*slog.LevelVar{}
	defaultLogLevels = map[LogCategory]slog.Level{
		META:     slog.LevelInfo,
		MIDI_IN:  slog.LevelWarn,
		MIDI_OUT: slog.LevelWarn,
		OSC_IN:   slog.LevelWarn,
		OSC_OUT:  slog.LevelWarn,
		SCRIPT:   slog.LevelWarn,
		MDNS:     slog.LevelWarn,
		APP:      slog.LevelInfo,
	}
)

// levelVar returns the LevelVar for category, creating it if needed. mu must be held for writing.
func levelVar(category LogCategory) *slog.LevelVar {
	lvlVar, ok := categoryLvls[category]
	if !ok {
		lvlVar = new(slog.LevelVar)
		lvlVar.Set(defaultLogLevels[category])
		categoryLvls[category] = lvlVar
	}
	return lvlVar
}

// Get returns a slog.Logger that always has the "category" attribute set.
// Each category gets its own logger instance.
func Get(category LogCategory) *slog.Logger {
	mu.RLock()
	l, ok := loggers[category]
	mu.RUnlock()
	if ok {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	// Double-check after locking
	if l, ok := loggers[category]; ok {
		return l
	}
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: levelVar(category),
	})
	catLogger := slog.New(handler).With("category", category)
	loggers[category] = catLogger
	return catLogger
}

// SetOutput redirects every logger, including ones already handed out.
func SetOutput(w io.Writer) {
	output.mu.Lock()
	output.w = w
	output.mu.Unlock()
}

func SetCategoryLevel(category LogCategory, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	levelVar(category).Set(level)
}

// SetAllLevels sets every known category to level.
func SetAllLevels(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	for _, c := range categories {
		levelVar(c).Set(level)
	}
}

// CategoryLevel returns the current level of category.
func CategoryLevel(category LogCategory) slog.Level {
	mu.Lock()
	defer mu.Unlock()
	return levelVar(category).Level()
}

// ParseLevel accepts debug, info, warn and error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func splitOscPath(path string) []string {
	return strings.Split(path, "/")[1:]
}

// OSC handler for runtime config
//
// Routes:
// /meta/logging/{category}/level as int where -4 is Debug, 0 is Info, 4 is Warn, 8 is Error
func HandleOSCSetCategoryLevel(msg *osc.Message) {
	pathSegs := splitOscPath(msg.Address)

	if len(pathSegs) != 4 || pathSegs[0] != "meta" || pathSegs[1] != "logging" || pathSegs[3] != "level" {
		return
	}
	cat, ok := strToLogCategory(pathSegs[2])
	if !ok {
		Get(META).Info("Unrecognized log category in OSC message", "category", pathSegs[2])
		return
	}
	if len(msg.Arguments) == 0 {
		Get(META).Error("Missing level in OSC message", "address", msg.Address)
		return
	}
	level, ok := msg.Arguments[0].(int32)
	if !ok {
		Get(META).Error("Invalid level type in OSC message", "expected", "int32", "got", fmt.Sprintf("%T", msg.Arguments[0]))
		return
	}
	Get(META).Info("Setting category level via OSC",
		"category", cat,
		"level", level)
	SetCategoryLevel(cat, slog.Level(level))
}
