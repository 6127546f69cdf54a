// Command mot bridges MIDI and OSC.
//
// Usage:
//
//	mot <subcommand> [flags] [arguments]
//
// Flags come before positional arguments. Run "mot <subcommand> -h" for details.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/jdginn/mot/config"
	"github.com/jdginn/mot/devices"
	"github.com/jdginn/mot/discovery"
	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/shutdown"
)

const (
	defaultSendHost   = "127.0.0.1:1234"
	defaultListenHost = "0.0.0.0:1234"

	listenerName = "mot-osc-listener"
	echoName     = "mot-osc-echo"
)

var errUsage = errors.New("usage")

type app struct {
	stdin  io.ReadCloser
	stdout io.Writer
	stderr io.Writer

	// Replaced in tests.
	ports      func() (*devices.Ports, error)
	advertiser func() *discovery.Advertiser
	signal     *shutdown.Signal
}

type subcommand struct {
	summary string
	args    string
	script  bool
	run     func(a *app, o *options) error
}

var subcommands = map[string]subcommand{
	"midi_to_osc": {
		summary: "Send MIDI input to an OSC address",
		args:    "[host:port] [osc_address] [midi_input_index]",
		run:     (*app).midiToOsc,
	},
	"osc_to_midi": {
		summary: "Send OSC messages received on an address to a MIDI output",
		args:    "[host:port] [osc_address] [midi_output_index]",
		run:     (*app).oscToMidi,
	},
	"midi_echo": {
		summary: "Print incoming MIDI messages",
		args:    "[midi_input_index]",
		run:     (*app).midiEcho,
	},
	"osc_echo": {
		summary: "Print incoming OSC messages",
		args:    "[host:port]",
		run:     (*app).oscEcho,
	},
	"osc_send": {
		summary: "Send OSC messages read from standard input, one per line: /address arg ...",
		args:    "[host:port]",
		run:     (*app).oscSend,
	},
	"midi_roundtrip_latency": {
		summary: "Send every MIDI input message straight back out, for latency measurements",
		args:    "[midi_input_index] [midi_output_index]",
		run:     (*app).roundtrip,
	},
	"midi_processor": {
		summary: "Transform MIDI messages with a Lua script",
		args:    "-s script.lua [midi_input_index] [midi_output_index]",
		script:  true,
		run:     (*app).processor,
	},
}

func main() {
	a := &app{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		ports:      devices.DefaultPorts,
		advertiser: func() *discovery.Advertiser { return discovery.NewAdvertiser() },
		signal:     shutdown.NewSignal(),
	}
	os.Exit(a.main(os.Args[1:]))
}

func (a *app) usage() {
	fmt.Fprintln(a.stderr, "Usage: mot <subcommand> [flags] [arguments]")
	fmt.Fprintln(a.stderr)
	fmt.Fprintln(a.stderr, "Subcommands:")
	names := make([]string, 0, len(subcommands))
	for name := range subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(a.stderr, "  %-24s %s\n", name, subcommands[name].summary)
	}
}

// main runs one subcommand and returns the process exit code.
func (a *app) main(args []string) int {
	if len(args) == 0 {
		a.usage()
		return 2
	}
	cmd, ok := subcommands[args[0]]
	if !ok {
		fmt.Fprintf(a.stderr, "mot: unknown subcommand %q\n\n", args[0])
		a.usage()
		return 2
	}
	o, err := a.parse(args[0], cmd, args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(a.stderr, "mot %s: %v\n", args[0], err)
		}
		return 2
	}

	coord := shutdown.Notify(a.signal)
	defer coord.Close()

	if err := cmd.run(a, o); err != nil {
		fmt.Fprintf(a.stderr, "mot %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

type options struct {
	cfg  config.Config
	list bool
	args []string
}

func (a *app) parse(name string, cmd subcommand, args []string) (*options, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: mot %s [flags] %s\n\n%s\n\nFlags:\n", name, cmd.args, cmd.summary)
		fs.PrintDefaults()
	}
	verbose := fs.Bool("v", false, "print debug information verbosely")
	list := fs.Bool("l", false, "list MIDI devices")
	configPath := fs.String("config", "", "YAML or TOML config `file`")
	var scriptPath *string
	if cmd.script {
		scriptPath = fs.String("s", "", "path to the Lua `script` file")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if *verbose {
		cfg.Verbose = true
	}
	if scriptPath != nil && *scriptPath != "" {
		cfg.Script = *scriptPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := configureLogging(a.stderr, cfg); err != nil {
		return nil, err
	}
	return &options{cfg: cfg, list: *list, args: fs.Args()}, nil
}

func configureLogging(w io.Writer, cfg config.Config) error {
	logging.SetOutput(w)
	switch {
	case cfg.Verbose:
		logging.SetAllLevels(slog.LevelDebug)
	case cfg.LogLevel != "":
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logging.SetAllLevels(level)
	}
	return nil
}

// arg returns positional argument i, or fallback when it is absent.
func (o *options) arg(i int, fallback string) string {
	if i < len(o.args) {
		return o.args[i]
	}
	return fallback
}

// index returns positional argument i as a port index, or fallback when it is absent.
func (o *options) index(i int, fallback int) (int, error) {
	if i >= len(o.args) {
		return fallback, nil
	}
	n, err := strconv.Atoi(o.args[i])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid MIDI port index %q", o.args[i])
	}
	return n, nil
}

func (o *options) host(i int, fallback string) (string, error) {
	if o.cfg.Host != "" {
		fallback = o.cfg.Host
	}
	host := o.arg(i, fallback)
	if err := config.ValidateHostPort(host); err != nil {
		return "", err
	}
	return host, nil
}

func (o *options) oscAddress(i int) (string, error) {
	return config.ValidateOSCAddress(o.arg(i, o.cfg.OscAddress))
}
