package script

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/message"
)

// Adapter serializes calls into an Engine and turns each result into an Outcome.
//
// At most one engine call is in flight at any time, whatever goroutine the caller is on.
type Adapter struct {
	mu       sync.Mutex
	engine   Engine
	function string
	log      *slog.Logger
}

// NewAdapter wraps engine. An empty function name selects DefaultFunction.
func NewAdapter(engine Engine, function string) *Adapter {
	if function == "" {
		function = DefaultFunction
	}
	return &Adapter{
		engine:   engine,
		function: function,
		log:      logging.Get(logging.SCRIPT),
	}
}

// Transform runs the script over msg. Engine errors and panics become Invalid outcomes; the
// engine's own value types never leave this call.
func (a *Adapter) Transform(msg message.Bytes) (out Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			out = invalid("script panicked: %v", r)
		}
	}()

	v, err := a.engine.Call(a.function, msg)
	if err != nil {
		return invalid("%v", err)
	}
	out = Classify(v)
	a.log.Debug("Transformed message", "in", msg.Ints(), "outcome", out.String())
	return out
}

func (a *Adapter) String() string {
	return fmt.Sprintf("script adapter (%s)", a.function)
}
