package bridge

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/chzyer/readline"
	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jdginn/mot/devices"
	devtest "github.com/jdginn/mot/devices/devicestesting"
	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/message"
	"github.com/jdginn/mot/script"
	"github.com/jdginn/mot/shutdown"
)

const testInterval = 5 * time.Millisecond

// start runs r on its own goroutine and returns a channel carrying its result.
func start(r Runner, sig *shutdown.Signal) <-chan error {
	done := make(chan error, 1)
	go func() { done <- r.Run(sig) }()
	return done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not finish")
		return nil
	}
}

func openIn(t *testing.T) (*devices.MidiIn, *devtest.MockMIDIPort) {
	t.Helper()
	drv := devtest.NewMockDriver(1, 0)
	in, err := devices.NewPorts(drv).OpenIn(0)
	require.NoError(t, err)
	return in, drv.InPorts[0]
}

func TestMidiToOsc(t *testing.T) {
	in, port := openIn(t)
	client := &devtest.MockOscClient{}
	b := NewMidiToOsc(in, devices.NewOscSenderWithClient(client, "mock"), "midi")

	sig := shutdown.NewSignal()
	done := start(b, sig)
	require.Eventually(t, func() bool { return port.Listening() == 1 }, time.Second, time.Millisecond)

	port.SimulateReceive([]byte{0x90, 0x40, 0x7F}, 1)
	port.SimulateReceive([]byte{0x80, 0x40, 0x00}, 2)

	sig.Stop()
	require.NoError(t, wait(t, done))
	assert.Equal(t, 0, port.Listening())

	msgs := client.GetSentMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "/midi", msgs[0].Address)
	assert.Equal(t, []interface{}{int32(144), int32(64), int32(127)}, msgs[0].Arguments)
	assert.Equal(t, []interface{}{int32(128), int32(64), int32(0)}, msgs[1].Arguments)
}

func TestMidiToOscContinuesAfterSendFailure(t *testing.T) {
	sink := &devtest.MockEnvelopeSink{}
	sink.On("Send", mock.Anything).Return(errors.New("unreachable")).Once()
	sink.On("Send", mock.Anything).Return(nil).Once()

	b := NewMidiToOsc(nil, sink, "/midi")
	b.Handle(0, message.Bytes{0x90, 1, 1})
	b.Handle(0, message.Bytes{0x90, 2, 2})

	sink.AssertNumberOfCalls(t, "Send", 2)
	sink.AssertCalled(t, "Send", message.Envelope{Address: "/midi", Args: []any{int32(0x90), int32(2), int32(2)}})
}

func TestRunWithStoppedSignal(t *testing.T) {
	in, port := openIn(t)
	sig := shutdown.NewSignal()
	sig.Stop()

	assert.NoError(t, NewEcho(in, io.Discard).Run(sig))
	assert.Equal(t, 0, port.Listening())
}

func TestOscToMidi(t *testing.T) {
	queue := devtest.NewPacketQueue()
	queue.PushMessage("/midi", int32(144), int32(64), int32(127))
	queue.PushMessage("/other", int32(1), int32(2), int32(3))

	bundle := osc.NewBundle(time.Now())
	require.NoError(t, bundle.Append(osc.NewMessage("/midi", int32(1), int32(2))))
	require.NoError(t, bundle.Append(osc.NewMessage("/midi", "x", int32(3), float32(0.5))))
	require.NoError(t, bundle.Append(osc.NewMessage("/midi", "only text")))
	queue.Push(bundle)

	sink := &devtest.ByteRecorder{}
	b := NewOscToMidi(queue, sink, "/midi", testInterval)

	sig := shutdown.NewSignal()
	done := start(b, sig)
	require.Eventually(t, func() bool { return queue.Len() == 0 && len(sink.Messages()) == 3 }, time.Second, time.Millisecond)
	sig.Stop()
	require.NoError(t, wait(t, done))

	assert.Equal(t, []message.Bytes{{144, 64, 127}, {1, 2}, {3}}, sink.Messages())
}

func TestOscToMidiStopsWithinInterval(t *testing.T) {
	queue := devtest.NewPacketQueue()
	sink := &devtest.ByteRecorder{}
	b := NewOscToMidi(queue, sink, "/midi", 20*time.Millisecond)

	sig := shutdown.NewSignal()
	done := start(b, sig)
	time.Sleep(10 * time.Millisecond)

	stopped := time.Now()
	sig.Stop()
	require.NoError(t, wait(t, done))
	assert.Less(t, time.Since(stopped), 200*time.Millisecond)

	queue.PushMessage("/midi", int32(1))
	assert.Equal(t, 1, queue.Len())
	assert.Empty(t, sink.Messages())
}

func TestOscToMidiFaults(t *testing.T) {
	queue := devtest.NewPacketQueue()
	queue.PushError(errors.New("socket closed"))

	b := NewOscToMidi(queue, &devtest.ByteRecorder{}, "/midi", testInterval)
	err := b.Run(shutdown.NewSignal())
	assert.ErrorContains(t, err, "socket closed")
}

func TestOscToMidiContinuesAfterSendFailure(t *testing.T) {
	sink := &devtest.MockByteSink{}
	sink.On("Send", message.Bytes{1}).Return(errors.New("port gone"))
	sink.On("Send", message.Bytes{2}).Return(nil)

	b := NewOscToMidi(nil, sink, "/midi", testInterval)
	assert.Equal(t, 0, b.Handle(osc.NewMessage("/midi", int32(1))))
	assert.Equal(t, 0, b.Handle(osc.NewMessage("/midi", int32(2))))
	sink.AssertExpectations(t)
}

func TestLoopback(t *testing.T) {
	in, port := openIn(t)
	sink := &devtest.ByteRecorder{}
	b := NewLoopback(in, sink)

	sig := shutdown.NewSignal()
	done := start(b, sig)
	require.Eventually(t, func() bool { return port.Listening() == 1 }, time.Second, time.Millisecond)

	sysex := []byte{0xF0, 0x01, 0x02, 0xF7}
	port.SimulateReceive(sysex, 0)
	port.SimulateReceive([]byte{0xB0, 7, 100}, 0)
	sig.Stop()
	require.NoError(t, wait(t, done))

	assert.Equal(t, []message.Bytes{sysex, {0xB0, 7, 100}}, sink.Messages())
}

func TestEcho(t *testing.T) {
	var buf bytes.Buffer
	b := NewEcho(nil, &buf)

	b.Handle(5000, message.Bytes{0x90, 0x40, 0x7F})
	b.Handle(7000, message.Bytes{0x80, 0x40, 0x00})
	assert.Equal(t, "0 5000 [144, 64, 127]\n1 7000 [128, 64, 0]\n", buf.String())
}

const processorScript = `
function process_midi(m)
	if m[1] == 0x80 then
		return nil
	end
	if m[1] == 0xB0 then
		return "not a message"
	end
	return {{0x90, 1, 1}, {0x90, 2, 2}}
end
`

func TestProcessor(t *testing.T) {
	engine, err := script.LoadString(processorScript, "processor.lua", script.DefaultFunction)
	require.NoError(t, err)

	in, port := openIn(t)
	sink := &devtest.ByteRecorder{}
	b := NewProcessor(in, sink, script.NewAdapter(engine, script.DefaultFunction))

	sig := shutdown.NewSignal()
	done := start(b, sig)
	require.Eventually(t, func() bool { return port.Listening() == 1 }, time.Second, time.Millisecond)

	port.SimulateReceive([]byte{0x80, 0x3C, 0x00}, 0)
	port.SimulateReceive([]byte{0xB0, 1, 1}, 0)
	port.SimulateReceive([]byte{0x90, 0x3C, 0x40}, 0)
	sig.Stop()
	require.NoError(t, wait(t, done))

	assert.Equal(t, []message.Bytes{{0x90, 1, 1}, {0x90, 2, 2}}, sink.Messages())
}

func TestOscEcho(t *testing.T) {
	queue := devtest.NewPacketQueue()
	queue.PushMessage("/a", int32(1), "x")
	bundle := osc.NewBundle(time.Now())
	require.NoError(t, bundle.Append(osc.NewMessage("/b", int32(2))))
	queue.Push(bundle)
	queue.PushMessage("/never")

	var buf bytes.Buffer
	b := NewOscEcho(queue, &buf, testInterval).Limit(2)

	require.NoError(t, b.Run(shutdown.NewSignal()))
	assert.Equal(t, "msg: /a [1 x]\nOSC bundle with 1 messages\n  /b [2]\n", buf.String())
	assert.Equal(t, 1, queue.Len())
}

// lines is a LineReader over fixed input. Once the lines run out it blocks until closed if
// block is set, otherwise it returns end.
type lines struct {
	mu     sync.Mutex
	input  []string
	end    error
	block  bool
	closed chan struct{}
	once   sync.Once
}

func newLines(end error, block bool, input ...string) *lines {
	return &lines{input: input, end: end, block: block, closed: make(chan struct{})}
}

func (l *lines) Readline() (string, error) {
	l.mu.Lock()
	if len(l.input) > 0 {
		line := l.input[0]
		l.input = l.input[1:]
		l.mu.Unlock()
		return line, nil
	}
	l.mu.Unlock()
	if l.block {
		<-l.closed
		return "", io.EOF
	}
	return "", l.end
}

func (l *lines) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func TestOscSend(t *testing.T) {
	sink := &devtest.EnvelopeRecorder{}
	in := newLines(io.EOF, false, "/a 1 2.5 x", "", "   ", "b")

	require.NoError(t, NewOscSend(in, sink).Run(shutdown.NewSignal()))

	envs := sink.Envelopes()
	require.Len(t, envs, 2)
	assert.Equal(t, "/a", envs[0].Address)
	assert.Equal(t, []any{int32(1), float32(2.5), "x"}, envs[0].Args)
	assert.Equal(t, "/b", envs[1].Address)
	assert.Empty(t, envs[1].Args)
}

func TestOscSendEndings(t *testing.T) {
	t.Run("interrupt", func(t *testing.T) {
		in := newLines(readline.ErrInterrupt, false, "/a 1")
		sink := &devtest.EnvelopeRecorder{}
		assert.NoError(t, NewOscSend(in, sink).Run(shutdown.NewSignal()))
		assert.Len(t, sink.Envelopes(), 1)
	})

	t.Run("read error", func(t *testing.T) {
		in := newLines(errors.New("tty gone"), false)
		assert.ErrorContains(t, NewOscSend(in, &devtest.EnvelopeRecorder{}).Run(shutdown.NewSignal()), "tty gone")
	})

	t.Run("shutdown unblocks input", func(t *testing.T) {
		in := newLines(nil, true)
		sig := shutdown.NewSignal()
		done := start(NewOscSend(in, &devtest.EnvelopeRecorder{}), sig)
		time.Sleep(10 * time.Millisecond)
		sig.Stop()
		assert.NoError(t, wait(t, done))
	})
}

func TestOscSendContinuesAfterSendFailure(t *testing.T) {
	sink := &devtest.MockEnvelopeSink{}
	sink.On("Send", mock.Anything).Return(errors.New("unreachable"))

	in := newLines(io.EOF, false, "/a 1", "/b 2")
	require.NoError(t, NewOscSend(in, sink).Run(shutdown.NewSignal()))
	sink.AssertNumberOfCalls(t, "Send", 2)
}

func TestLogControl(t *testing.T) {
	before := logging.CategoryLevel(logging.MIDI_IN)
	t.Cleanup(func() { logging.SetCategoryLevel(logging.MIDI_IN, before) })

	b := NewLogControl(devtest.NewPacketQueue(), testInterval)

	assert.Equal(t, 0, b.Handle(osc.NewMessage("/meta/logging/midi_in/level", int32(-4))))
	assert.Equal(t, slog.LevelDebug, logging.CategoryLevel(logging.MIDI_IN))

	b.Handle(osc.NewMessage("/meta/logging/midi_in/volume", int32(8)))
	b.Handle(osc.NewMessage("/midi", int32(8)))
	b.Handle(osc.NewMessage("/meta/logging/midi_in/level", "loud"))
	assert.Equal(t, slog.LevelDebug, logging.CategoryLevel(logging.MIDI_IN))

	bundle := osc.NewBundle(time.Now())
	require.NoError(t, bundle.Append(osc.NewMessage("/meta/logging/midi_in/level", int32(8))))
	b.Handle(bundle)
	assert.Equal(t, slog.LevelError, logging.CategoryLevel(logging.MIDI_IN))
}

func TestLogControlRun(t *testing.T) {
	before := logging.CategoryLevel(logging.SCRIPT)
	t.Cleanup(func() { logging.SetCategoryLevel(logging.SCRIPT, before) })

	queue := devtest.NewPacketQueue()
	queue.PushMessage("/meta/logging/script/level", int32(0))

	sig := shutdown.NewSignal()
	done := start(NewLogControl(queue, testInterval), sig)
	require.Eventually(t, func() bool { return logging.CategoryLevel(logging.SCRIPT) == slog.LevelInfo }, time.Second, time.Millisecond)
	sig.Stop()
	assert.NoError(t, wait(t, done))
}
