package bridge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/hypebeast/go-osc/osc"

	"github.com/jdginn/mot/devices"
	"github.com/jdginn/mot/listen"
	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/message"
	"github.com/jdginn/mot/shutdown"
)

// OscEcho prints every received OSC message.
type OscEcho struct {
	source   devices.PacketSource
	w        io.Writer
	interval time.Duration
	limit    int
}

func NewOscEcho(source devices.PacketSource, w io.Writer, interval time.Duration) *OscEcho {
	return &OscEcho{source: source, w: w, interval: interval}
}

// Limit stops the runner after n packets. Zero means no limit.
func (b *OscEcho) Limit(n int) *OscEcho {
	b.limit = n
	return b
}

func (b *OscEcho) Handle(packet osc.Packet) int {
	if bundle, ok := packet.(*osc.Bundle); ok {
		msgs := devices.Messages(bundle)
		fmt.Fprintf(b.w, "OSC bundle with %d messages\n", len(msgs))
		for _, m := range msgs {
			fmt.Fprintf(b.w, "  %s %v\n", m.Address, m.Arguments)
		}
		return 0
	}
	for _, m := range devices.Messages(packet) {
		fmt.Fprintf(b.w, "msg: %s %v\n", m.Address, m.Arguments)
	}
	return 0
}

func (b *OscEcho) Run(sig *shutdown.Signal) error {
	loop := listen.New[osc.Packet](sig, b.source.Receive, b.Handle,
		listen.WithInterval(b.interval),
		listen.WithLimit(b.limit),
		listen.WithLogger(logging.Get(logging.OSC_IN)),
	)
	_, err := loop.Run()
	return err
}

// LineReader yields input lines. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// NewLineReader reads lines from in without a prompt, so piped input works as well as a terminal.
func NewLineReader(in io.ReadCloser, out io.Writer) (LineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Stdin:           in,
		Stdout:          out,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return rl, nil
}

// OscSend sends one OSC message per input line of the form "/address arg arg ...".
type OscSend struct {
	lines LineReader
	sink  devices.EnvelopeSink
	log   *slog.Logger
}

func NewOscSend(lines LineReader, sink devices.EnvelopeSink) *OscSend {
	return &OscSend{lines: lines, sink: sink, log: logging.Get(logging.OSC_OUT)}
}

// Send parses and sends one line. Empty lines send nothing.
func (b *OscSend) Send(line string) {
	env, ok := message.ParseLine(line)
	if !ok {
		b.log.Debug("Empty message; nothing sent")
		return
	}
	if err := b.sink.Send(env); err != nil {
		b.log.Warn("Failed to send OSC message", "address", env.Address, "err", err)
		return
	}
	b.log.Debug("Sent OSC message", "envelope", env.String())
}

// Run reads until end of input, an interrupt, or sig is raised.
func (b *OscSend) Run(sig *shutdown.Signal) error {
	var once sync.Once
	closeLines := func() {
		once.Do(func() { b.lines.Close() })
	}
	defer closeLines()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-sig.Done():
			closeLines()
		case <-finished:
		}
	}()

	for !sig.Stopped() {
		line, err := b.lines.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) || sig.Stopped() {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if sig.Stopped() {
			return nil
		}
		b.Send(line)
	}
	return nil
}

// LogControl listens for /meta/logging/{category}/level messages and applies them.
type LogControl struct {
	source     devices.PacketSource
	interval   time.Duration
	dispatcher *devices.Dispatcher
	log        *slog.Logger
}

const logControlPattern = "/meta/logging/@/level"

func NewLogControl(source devices.PacketSource, interval time.Duration) *LogControl {
	b := &LogControl{
		source:     source,
		interval:   interval,
		dispatcher: devices.NewDispatcher(),
		log:        logging.Get(logging.META),
	}
	b.dispatcher.AddMsgHandler(logControlPattern, func(m *osc.Message, _ []string) {
		logging.HandleOSCSetCategoryLevel(m)
	})
	b.dispatcher.OnUnmatched(func(m *osc.Message) {
		b.log.Debug("Ignored message on log control port", "address", m.Address)
	})
	return b
}

func (b *LogControl) Handle(packet osc.Packet) int {
	b.dispatcher.Dispatch(packet)
	return 0
}

func (b *LogControl) Run(sig *shutdown.Signal) error {
	loop := listen.New[osc.Packet](sig, b.source.Receive, b.Handle,
		listen.WithInterval(b.interval),
		listen.WithLogger(b.log),
	)
	_, err := loop.Run()
	return err
}
