package devices

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	midi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/message"
)

// VirtualPort is the port index that opens a software-only port instead of a hardware one.
const VirtualPort = 6666

const virtualPortName = "mot virtual port"

var (
	ErrNoDriver           = errors.New("no MIDI driver registered")
	ErrPortNotFound       = errors.New("no MIDI port with that index")
	ErrVirtualUnsupported = errors.New("MIDI driver does not support virtual ports")
)

var midiInLog, midiOutLog *slog.Logger

func init() {
	midiInLog = logging.Get(logging.MIDI_IN)
	midiOutLog = logging.Get(logging.MIDI_OUT)
}

// virtualDriver is implemented by drivers that can create ports other programs connect to,
// such as rtmididrv on Linux and macOS.
type virtualDriver interface {
	OpenVirtualIn(name string) (drivers.In, error)
	OpenVirtualOut(name string) (drivers.Out, error)
}

// Ports enumerates and opens the MIDI ports of one driver.
type Ports struct {
	drv drivers.Driver
}

func NewPorts(drv drivers.Driver) *Ports {
	return &Ports{drv: drv}
}

// DefaultPorts uses the driver registered by the blank driver import in the binary.
func DefaultPorts() (*Ports, error) {
	drv := drivers.Get()
	if drv == nil {
		return nil, ErrNoDriver
	}
	return NewPorts(drv), nil
}

// SupportsVirtual reports whether VirtualPort can be opened.
func (p *Ports) SupportsVirtual() bool {
	_, ok := p.drv.(virtualDriver)
	return ok
}

func (p *Ports) InPorts() ([]drivers.In, error) {
	ins, err := p.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list MIDI inputs: %w", err)
	}
	return ins, nil
}

func (p *Ports) OutPorts() ([]drivers.Out, error) {
	outs, err := p.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("list MIDI outputs: %w", err)
	}
	return outs, nil
}

// InExists reports whether index names an input port.
func (p *Ports) InExists(index int) bool {
	if index == VirtualPort {
		return p.SupportsVirtual()
	}
	ins, err := p.InPorts()
	return err == nil && index >= 0 && index < len(ins)
}

// OutExists reports whether index names an output port.
func (p *Ports) OutExists(index int) bool {
	if index == VirtualPort {
		return p.SupportsVirtual()
	}
	outs, err := p.OutPorts()
	return err == nil && index >= 0 && index < len(outs)
}

// OpenIn opens the input port at index.
func (p *Ports) OpenIn(index int) (*MidiIn, error) {
	var port drivers.In
	if index == VirtualPort {
		vd, ok := p.drv.(virtualDriver)
		if !ok {
			return nil, ErrVirtualUnsupported
		}
		in, err := vd.OpenVirtualIn(virtualPortName)
		if err != nil {
			return nil, fmt.Errorf("create virtual MIDI input: %w", err)
		}
		port = in
	} else {
		ins, err := p.InPorts()
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(ins) {
			return nil, fmt.Errorf("MIDI input %d: %w", index, ErrPortNotFound)
		}
		port = ins[index]
	}
	if !port.IsOpen() {
		if err := port.Open(); err != nil {
			return nil, fmt.Errorf("open MIDI input %s: %w", port, err)
		}
	}
	midiInLog.Info("Receiving MIDI", "port", port.String())
	return NewMidiIn(port), nil
}

// OpenOut opens the output port at index.
func (p *Ports) OpenOut(index int) (*MidiOut, error) {
	var port drivers.Out
	if index == VirtualPort {
		vd, ok := p.drv.(virtualDriver)
		if !ok {
			return nil, ErrVirtualUnsupported
		}
		out, err := vd.OpenVirtualOut(virtualPortName)
		if err != nil {
			return nil, fmt.Errorf("create virtual MIDI output: %w", err)
		}
		port = out
	} else {
		outs, err := p.OutPorts()
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(outs) {
			return nil, fmt.Errorf("MIDI output %d: %w", index, ErrPortNotFound)
		}
		port = outs[index]
	}
	if !port.IsOpen() {
		if err := port.Open(); err != nil {
			return nil, fmt.Errorf("open MIDI output %s: %w", port, err)
		}
	}
	midiOutLog.Info("Sending MIDI", "port", port.String())
	return NewMidiOut(port), nil
}

// WriteInPorts lists the input ports the way the CLI prints them.
func (p *Ports) WriteInPorts(w io.Writer) error {
	ins, err := p.InPorts()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Available MIDI input ports:")
	for i, in := range ins {
		fmt.Fprintf(w, "%d: %s\n", i, in.String())
	}
	if p.SupportsVirtual() {
		fmt.Fprintf(w, "%d: Virtual mot input port\n", VirtualPort)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteOutPorts lists the output ports the way the CLI prints them.
func (p *Ports) WriteOutPorts(w io.Writer) error {
	outs, err := p.OutPorts()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Available MIDI output ports:")
	for i, out := range outs {
		fmt.Fprintf(w, "%d: %s\n", i, out.String())
	}
	if p.SupportsVirtual() {
		fmt.Fprintf(w, "%d: Virtual mot output port\n", VirtualPort)
	}
	fmt.Fprintln(w)
	return nil
}

// MidiIn is an open MIDI input port.
type MidiIn struct {
	port drivers.In
}

func NewMidiIn(port drivers.In) *MidiIn {
	return &MidiIn{port: port}
}

// Listen delivers every message on the port, SysEx included, until stop is called.
//
// The driver invokes callback from its own goroutine, one message at a time. The message is a
// copy and may be kept.
func (m *MidiIn) Listen(callback func(timestampMicros int64, msg message.Bytes)) (stop func(), err error) {
	stop, err = midi.ListenTo(m.port, func(msg midi.Message, timestampms int32) {
		b := message.Bytes(msg).Clone()
		midiInLog.Debug("received MIDI message", "port", m.port.String(), "data", b.Ints(), "timestamp", timestampms)
		callback(int64(timestampms)*1000, b)
	}, midi.UseSysEx())
	if err != nil {
		return nil, fmt.Errorf("listen to MIDI input %s: %w", m.port, err)
	}
	return stop, nil
}

func (m *MidiIn) String() string {
	return m.port.String()
}

func (m *MidiIn) Close() error {
	return m.port.Close()
}

// MidiOut is an open MIDI output port.
type MidiOut struct {
	port drivers.Out
}

func NewMidiOut(port drivers.Out) *MidiOut {
	return &MidiOut{port: port}
}

// Send writes msg as-is.
func (m *MidiOut) Send(msg message.Bytes) error {
	midiOutLog.Debug("Sending MIDI message", "port", m.port.String(), "data", msg.Ints())
	if err := m.port.Send(msg); err != nil {
		return fmt.Errorf("send MIDI to %s: %w", m.port, err)
	}
	return nil
}

func (m *MidiOut) String() string {
	return m.port.String()
}

func (m *MidiOut) Close() error {
	return m.port.Close()
}
