package devices_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdginn/mot/devices"
	devtest "github.com/jdginn/mot/devices/devicestesting"
	"github.com/jdginn/mot/message"
)

func TestPortsExist(t *testing.T) {
	plain := devices.NewPorts(devtest.NewMockDriver(2, 1))
	virtual := devices.NewPorts(devtest.NewMockVirtualDriver(0, 0))

	tests := []struct {
		name    string
		ports   *devices.Ports
		index   int
		wantIn  bool
		wantOut bool
	}{
		{"first port", plain, 0, true, true},
		{"second input only", plain, 1, true, false},
		{"past the end", plain, 2, false, false},
		{"negative", plain, -1, false, false},
		{"virtual without support", plain, devices.VirtualPort, false, false},
		{"virtual with support", virtual, devices.VirtualPort, true, true},
		{"no hardware ports", virtual, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantIn, tt.ports.InExists(tt.index))
			assert.Equal(t, tt.wantOut, tt.ports.OutExists(tt.index))
		})
	}
}

func TestOpenErrors(t *testing.T) {
	ports := devices.NewPorts(devtest.NewMockDriver(1, 1))

	_, err := ports.OpenIn(3)
	assert.ErrorIs(t, err, devices.ErrPortNotFound)
	_, err = ports.OpenOut(-1)
	assert.ErrorIs(t, err, devices.ErrPortNotFound)
	_, err = ports.OpenIn(devices.VirtualPort)
	assert.ErrorIs(t, err, devices.ErrVirtualUnsupported)
	_, err = ports.OpenOut(devices.VirtualPort)
	assert.ErrorIs(t, err, devices.ErrVirtualUnsupported)

	broken := devtest.NewMockDriver(1, 1)
	broken.Err = errors.New("driver gone")
	_, err = devices.NewPorts(broken).OpenIn(0)
	assert.ErrorContains(t, err, "driver gone")
	assert.False(t, devices.NewPorts(broken).InExists(0))
}

func TestOpenVirtual(t *testing.T) {
	drv := devtest.NewMockVirtualDriver(0, 0)
	ports := devices.NewPorts(drv)
	require.True(t, ports.SupportsVirtual())

	in, err := ports.OpenIn(devices.VirtualPort)
	require.NoError(t, err)
	assert.True(t, drv.VirtualIn().IsOpen())
	assert.Equal(t, drv.VirtualIn().String(), in.String())

	out, err := ports.OpenOut(devices.VirtualPort)
	require.NoError(t, err)
	require.NoError(t, out.Send(message.Bytes{0xB0, 1, 2}))
	assert.Len(t, drv.VirtualOut().GetSentMessages(), 1)
}

func TestMidiInListen(t *testing.T) {
	drv := devtest.NewMockDriver(1, 0)
	ports := devices.NewPorts(drv)
	in, err := ports.OpenIn(0)
	require.NoError(t, err)
	assert.True(t, drv.InPorts[0].IsOpen())

	tracker := devtest.NewCallbackTracker(t)
	stop, err := in.Listen(tracker.Wrap(nil))
	require.NoError(t, err)

	raw := []byte{0x90, 0x40, 0x7F}
	drv.InPorts[0].SimulateReceive(raw, 5)
	drv.InPorts[0].SimulateReceive([]byte{0x80, 0x40, 0x00}, 7)
	raw[0] = 0x00

	tracker.AssertCalled(2)
	assert.Equal(t, []message.Bytes{{0x90, 0x40, 0x7F}, {0x80, 0x40, 0x00}}, tracker.Messages())
	assert.Equal(t, []int64{5000, 7000}, tracker.Timestamps())

	stop()
	assert.Equal(t, 0, drv.InPorts[0].Listening())
	drv.InPorts[0].SimulateReceive([]byte{0x90, 1, 1}, 9)
	tracker.AssertCalled(2)
	require.NoError(t, in.Close())
	assert.False(t, drv.InPorts[0].IsOpen())
}

func TestMidiInListenSysEx(t *testing.T) {
	drv := devtest.NewMockDriver(1, 0)
	in, err := devices.NewPorts(drv).OpenIn(0)
	require.NoError(t, err)

	tracker := devtest.NewCallbackTracker(t)
	_, err = in.Listen(tracker.Wrap(nil))
	require.NoError(t, err)

	sysex := []byte{0xF0, 0x7E, 0x7F, 0x06, 0x01, 0xF7}
	drv.InPorts[0].SimulateReceive(sysex, 0)
	require.True(t, tracker.WaitFor(1, time.Second))
	assert.Equal(t, message.Bytes(sysex), tracker.Messages()[0])
}

func TestMidiOutSend(t *testing.T) {
	drv := devtest.NewMockDriver(0, 1)
	out, err := devices.NewPorts(drv).OpenOut(0)
	require.NoError(t, err)

	require.NoError(t, out.Send(message.Bytes{0x90, 0x40, 0x7F}))
	sent := drv.OutPorts[0].GetSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x90, 0x40, 0x7F}, []byte(sent[0]))

	drv.OutPorts[0].SetError(true)
	err = out.Send(message.Bytes{0x90, 0x40, 0x7F})
	assert.ErrorIs(t, err, devtest.ErrMockSend)
	assert.ErrorContains(t, err, "Mock Out 0")
}

func TestWritePorts(t *testing.T) {
	ports := devices.NewPorts(devtest.NewMockVirtualDriver(2, 1))

	var buf bytes.Buffer
	require.NoError(t, ports.WriteInPorts(&buf))
	assert.Equal(t, "Available MIDI input ports:\n0: Mock In 0\n1: Mock In 1\n6666: Virtual mot input port\n\n", buf.String())

	buf.Reset()
	require.NoError(t, ports.WriteOutPorts(&buf))
	assert.Equal(t, "Available MIDI output ports:\n0: Mock Out 0\n6666: Virtual mot output port\n\n", buf.String())

	buf.Reset()
	require.NoError(t, devices.NewPorts(devtest.NewMockDriver(0, 0)).WriteInPorts(&buf))
	assert.Equal(t, "Available MIDI input ports:\n\n", buf.String())
}
