package devicestesting

import (
	"errors"
	"fmt"
	"sync"

	midi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var ErrMockSend = errors.New("mock send error")

// MockMIDIPort implements both drivers.In and drivers.Out interfaces
type MockMIDIPort struct {
	mu sync.Mutex

	name   string
	number int

	// For tracking sent messages
	sentMessages []midi.Message

	// For simulating received messages
	listeners map[int]func(msg []byte, timestampms int32)
	nextID    int

	// For testing error conditions
	shouldError bool

	isOpen bool
}

func NewMockMIDIPort() *MockMIDIPort {
	return NewNamedMockMIDIPort(0, "MockMIDIPort")
}

func NewNamedMockMIDIPort(number int, name string) *MockMIDIPort {
	return &MockMIDIPort{
		name:         name,
		number:       number,
		sentMessages: make([]midi.Message, 0),
		listeners:    make(map[int]func(msg []byte, timestampms int32)),
	}
}

func (m *MockMIDIPort) Open() error {
	m.mu.Lock()
	m.isOpen = true
	m.mu.Unlock()
	return nil
}

func (m *MockMIDIPort) Close() error {
	m.mu.Lock()
	m.isOpen = false
	m.mu.Unlock()
	return nil
}

func (m *MockMIDIPort) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isOpen
}

// Number implements drivers.Out and drivers.In
func (m *MockMIDIPort) Number() int {
	return m.number
}

// String implements drivers.Out and drivers.In
func (m *MockMIDIPort) String() string {
	return m.name
}

func (m *MockMIDIPort) Underlying() interface{} {
	return m
}

// Send implements drivers.Out
func (m *MockMIDIPort) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldError {
		return ErrMockSend
	}
	m.sentMessages = append(m.sentMessages, append(midi.Message(nil), data...))
	return nil
}

// Listen implements drivers.In
func (m *MockMIDIPort) Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (stopFn func(), err error) {
	if !m.IsOpen() {
		return nil, errors.New("port not open")
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = onMsg
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}, nil
}

// SimulateReceive delivers msg to every listener synchronously, like a driver callback.
func (m *MockMIDIPort) SimulateReceive(msg midi.Message, timestampms int32) {
	m.mu.Lock()
	listeners := make([]func(msg []byte, timestampms int32), 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if l, ok := m.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	m.mu.Unlock()

	for _, listener := range listeners {
		listener(msg, timestampms)
	}
}

// Listening reports how many listeners are registered.
func (m *MockMIDIPort) Listening() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// GetSentMessages returns all messages that were sent
func (m *MockMIDIPort) GetSentMessages() []midi.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]midi.Message, len(m.sentMessages))
	copy(result, m.sentMessages)
	return result
}

// SetError configures the mock to return errors
func (m *MockMIDIPort) SetError(shouldError bool) {
	m.mu.Lock()
	m.shouldError = shouldError
	m.mu.Unlock()
}

// MockDriver implements drivers.Driver over mock ports.
type MockDriver struct {
	InPorts  []*MockMIDIPort
	OutPorts []*MockMIDIPort
	Err      error
}

// NewMockDriver creates a driver with the given number of input and output ports.
func NewMockDriver(ins, outs int) *MockDriver {
	d := &MockDriver{}
	for i := 0; i < ins; i++ {
		d.InPorts = append(d.InPorts, NewNamedMockMIDIPort(i, fmt.Sprintf("Mock In %d", i)))
	}
	for i := 0; i < outs; i++ {
		d.OutPorts = append(d.OutPorts, NewNamedMockMIDIPort(i, fmt.Sprintf("Mock Out %d", i)))
	}
	return d
}

func (d *MockDriver) Ins() ([]drivers.In, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	ins := make([]drivers.In, len(d.InPorts))
	for i, p := range d.InPorts {
		ins[i] = p
	}
	return ins, nil
}

func (d *MockDriver) Outs() ([]drivers.Out, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	outs := make([]drivers.Out, len(d.OutPorts))
	for i, p := range d.OutPorts {
		outs[i] = p
	}
	return outs, nil
}

func (d *MockDriver) String() string {
	return "mock"
}

func (d *MockDriver) Close() error {
	return nil
}

// MockVirtualDriver is a MockDriver that can also open virtual ports.
type MockVirtualDriver struct {
	*MockDriver

	mu         sync.Mutex
	virtualIn  *MockMIDIPort
	virtualOut *MockMIDIPort
}

func NewMockVirtualDriver(ins, outs int) *MockVirtualDriver {
	return &MockVirtualDriver{MockDriver: NewMockDriver(ins, outs)}
}

func (d *MockVirtualDriver) OpenVirtualIn(name string) (drivers.In, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.virtualIn = NewNamedMockMIDIPort(-1, name)
	return d.virtualIn, nil
}

func (d *MockVirtualDriver) OpenVirtualOut(name string) (drivers.Out, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.virtualOut = NewNamedMockMIDIPort(-1, name)
	return d.virtualOut, nil
}

// VirtualIn returns the last virtual input opened, or nil.
func (d *MockVirtualDriver) VirtualIn() *MockMIDIPort {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.virtualIn
}

// VirtualOut returns the last virtual output opened, or nil.
func (d *MockVirtualDriver) VirtualOut() *MockMIDIPort {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.virtualOut
}
