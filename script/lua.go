package script

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/Shopify/go-lua"

	"github.com/jdginn/mot/message"
)

// DefaultFunction is the global a script must define.
const DefaultFunction = "process_midi"

// maxDepth bounds table conversion; deeper (or cyclic) tables become unsupported.
const maxDepth = 8

// ErrNoFunction is returned when a loaded script does not define the transform function.
var ErrNoFunction = errors.New("script does not define the transform function")

// Engine calls a named script function with a MIDI message.
//
// The returned value is a Go mirror of the script value: nil, float64, string, bool, []any for
// sequence tables and map[string]any for other tables.
type Engine interface {
	Call(function string, msg message.Bytes) (any, error)
}

// unsupported describes a script value that has no Go mirror.
type unsupported string

// LuaEngine runs transforms in a single Lua state. It is not safe for concurrent use; wrap it
// in an Adapter.
type LuaEngine struct {
	state *lua.State
}

// LoadFile runs the script at path once and checks that it defines function.
func LoadFile(path, function string) (*LuaEngine, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	return run(state, function)
}

// LoadString runs source once and checks that it defines function. name is used in Lua error
// messages.
func LoadString(source, name, function string) (*LuaEngine, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadBuffer(state, source, name, "t"); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	return run(state, function)
}

func run(state *lua.State, function string) (*LuaEngine, error) {
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if function == "" {
		function = DefaultFunction
	}
	state.Global(function)
	defer state.Pop(1)
	if !state.IsFunction(-1) {
		return nil, fmt.Errorf("%w: %s", ErrNoFunction, function)
	}
	return &LuaEngine{state: state}, nil
}

// Call passes msg to the global function as a 1-based array of integers and returns its first
// result.
func (e *LuaEngine) Call(function string, msg message.Bytes) (any, error) {
	l := e.state
	top := l.Top()
	defer l.SetTop(top)

	l.Global(function)
	if !l.IsFunction(-1) {
		return nil, fmt.Errorf("%w: %s", ErrNoFunction, function)
	}

	l.CreateTable(len(msg), 0)
	for i, b := range msg {
		l.PushInteger(int(b))
		l.RawSetInt(-2, i+1)
	}

	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return nil, fmt.Errorf("call %s: %w", function, err)
	}
	return luaToGo(l, -1, 0), nil
}

func luaToGo(l *lua.State, index, depth int) any {
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return nil
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		return value
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		if depth >= maxDepth {
			return unsupported("a table nested too deeply")
		}
		return tableToGo(l, index, depth+1)
	default:
		return unsupported(lua.TypeNameOf(l, index))
	}
}

func tableToGo(l *lua.State, index, depth int) any {
	index = l.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	l.PushNil()
	for l.Next(index) {
		count++
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if key, _ := l.ToNumber(-2); key >= 1 && key == math.Trunc(key) {
				if int(key) > maxIndex {
					maxIndex = int(key)
				}
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if isArray && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			result = append(result, luaToGo(l, -1, depth))
			l.Pop(1)
		}
		return result
	}

	output := map[string]any{}
	l.PushNil()
	for l.Next(index) {
		var key string
		switch l.TypeOf(-2) {
		case lua.TypeString:
			key, _ = l.ToString(-2)
		case lua.TypeNumber:
			n, _ := l.ToNumber(-2)
			key = strconv.FormatFloat(n, 'g', -1, 64)
		default:
			key = lua.TypeNameOf(l, -2)
		}
		output[key] = luaToGo(l, -1, depth)
		l.Pop(1)
	}
	return output
}
