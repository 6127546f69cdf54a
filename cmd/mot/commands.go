package main

import (
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/jdginn/mot/bridge"
	"github.com/jdginn/mot/config"
	"github.com/jdginn/mot/devices"
	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/script"
	"github.com/jdginn/mot/shutdown"
)

type runnerFunc func(sig *shutdown.Signal) error

func (f runnerFunc) Run(sig *shutdown.Signal) error {
	return f(sig)
}

// runAll runs primary and its collaborators on their own goroutines. When primary returns the
// signal is raised so the collaborators wind down too.
func (a *app) runAll(primary bridge.Runner, collaborators ...bridge.Runner) error {
	var g errgroup.Group
	g.Go(func() error {
		defer a.signal.Stop()
		return primary.Run(a.signal)
	})
	for _, r := range collaborators {
		g.Go(func() error {
			return r.Run(a.signal)
		})
	}
	return g.Wait()
}

// collaborators returns the log control runner when enabled and, when name is not empty and
// advertising is on, an mDNS advertisement for port. cleanup must be called once runners finish.
func (a *app) collaborators(o *options, name string, port int) (runners []bridge.Runner, cleanup func(), err error) {
	var closers []io.Closer
	cleanup = func() {
		for _, c := range closers {
			c.Close()
		}
	}

	if o.cfg.LogControl != "" {
		recv, err := devices.ListenOsc(o.cfg.LogControl)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, recv)
		runners = append(runners, bridge.NewLogControl(recv, o.cfg.PollInterval))
	}

	if name != "" && o.cfg.Advertise {
		adv := a.advertiser()
		if err := adv.Register(name, o.cfg.ServiceType, port); err != nil {
			// The bridge still runs without an advertisement.
			logging.Get(logging.MDNS).Warn("mDNS advertisement unavailable", "err", err)
		} else {
			runners = append(runners, runnerFunc(func(sig *shutdown.Signal) error {
				adv.RunUntil(sig)
				return nil
			}))
		}
	}
	return runners, cleanup, nil
}

func (a *app) openPorts() (*devices.Ports, error) {
	ports, err := a.ports()
	if err != nil {
		return nil, fmt.Errorf("MIDI unavailable: %w", err)
	}
	return ports, nil
}

// checkIn validates index and prints the available inputs when it is wrong.
func (a *app) checkIn(ports *devices.Ports, index int) error {
	if err := config.ValidatePort(ports, index, false); err != nil {
		ports.WriteInPorts(a.stdout)
		return err
	}
	return nil
}

func (a *app) checkOut(ports *devices.Ports, index int) error {
	if err := config.ValidatePort(ports, index, true); err != nil {
		ports.WriteOutPorts(a.stdout)
		return err
	}
	return nil
}

func (a *app) midiToOsc(o *options) error {
	ports, err := a.openPorts()
	if err != nil {
		return err
	}
	if o.list {
		return ports.WriteInPorts(a.stdout)
	}
	host, err := o.host(0, defaultSendHost)
	if err != nil {
		return err
	}
	path, err := o.oscAddress(1)
	if err != nil {
		return err
	}
	index, err := o.index(2, o.cfg.MidiIn)
	if err != nil {
		return err
	}
	if err := a.checkIn(ports, index); err != nil {
		return err
	}

	in, err := ports.OpenIn(index)
	if err != nil {
		return err
	}
	defer in.Close()
	sender, err := devices.NewOscSender(host)
	if err != nil {
		return err
	}

	others, cleanup, err := a.collaborators(o, "", 0)
	defer cleanup()
	if err != nil {
		return err
	}
	return a.runAll(bridge.NewMidiToOsc(in, sender, path), others...)
}

func (a *app) oscToMidi(o *options) error {
	ports, err := a.openPorts()
	if err != nil {
		return err
	}
	if o.list {
		return ports.WriteOutPorts(a.stdout)
	}
	host, err := o.host(0, defaultSendHost)
	if err != nil {
		return err
	}
	path, err := o.oscAddress(1)
	if err != nil {
		return err
	}
	index, err := o.index(2, o.cfg.MidiOut)
	if err != nil {
		return err
	}
	if err := a.checkOut(ports, index); err != nil {
		return err
	}

	out, err := ports.OpenOut(index)
	if err != nil {
		return err
	}
	defer out.Close()
	recv, err := devices.ListenOsc(host)
	if err != nil {
		return err
	}
	defer recv.Close()

	others, cleanup, err := a.collaborators(o, listenerName, recv.Port())
	defer cleanup()
	if err != nil {
		return err
	}
	return a.runAll(bridge.NewOscToMidi(recv, out, path, o.cfg.PollInterval), others...)
}

func (a *app) midiEcho(o *options) error {
	ports, err := a.openPorts()
	if err != nil {
		return err
	}
	if o.list {
		return ports.WriteInPorts(a.stdout)
	}
	index, err := o.index(0, o.cfg.MidiIn)
	if err != nil {
		return err
	}
	if err := a.checkIn(ports, index); err != nil {
		return err
	}
	in, err := ports.OpenIn(index)
	if err != nil {
		return err
	}
	defer in.Close()

	others, cleanup, err := a.collaborators(o, "", 0)
	defer cleanup()
	if err != nil {
		return err
	}
	return a.runAll(bridge.NewEcho(in, a.stdout), others...)
}

func (a *app) oscEcho(o *options) error {
	host, err := o.host(0, defaultListenHost)
	if err != nil {
		return err
	}
	recv, err := devices.ListenOsc(host)
	if err != nil {
		return err
	}
	defer recv.Close()

	others, cleanup, err := a.collaborators(o, echoName, recv.Port())
	defer cleanup()
	if err != nil {
		return err
	}
	return a.runAll(bridge.NewOscEcho(recv, a.stdout, o.cfg.PollInterval), others...)
}

func (a *app) oscSend(o *options) error {
	host, err := o.host(0, defaultSendHost)
	if err != nil {
		return err
	}
	sender, err := devices.NewOscSender(host)
	if err != nil {
		return err
	}
	lines, err := bridge.NewLineReader(a.stdin, a.stdout)
	if err != nil {
		return err
	}

	others, cleanup, err := a.collaborators(o, "", 0)
	defer cleanup()
	if err != nil {
		return err
	}
	return a.runAll(bridge.NewOscSend(lines, sender), others...)
}

// midiPair opens the input and output named by positional arguments 0 and 1.
func (a *app) midiPair(o *options) (*devices.MidiIn, *devices.MidiOut, bool, error) {
	ports, err := a.openPorts()
	if err != nil {
		return nil, nil, false, err
	}
	if o.list {
		if err := ports.WriteInPorts(a.stdout); err != nil {
			return nil, nil, false, err
		}
		return nil, nil, true, ports.WriteOutPorts(a.stdout)
	}
	inIndex, err := o.index(0, o.cfg.MidiIn)
	if err != nil {
		return nil, nil, false, err
	}
	outIndex, err := o.index(1, o.cfg.MidiOut)
	if err != nil {
		return nil, nil, false, err
	}
	if err := a.checkIn(ports, inIndex); err != nil {
		return nil, nil, false, err
	}
	if err := a.checkOut(ports, outIndex); err != nil {
		return nil, nil, false, err
	}
	in, err := ports.OpenIn(inIndex)
	if err != nil {
		return nil, nil, false, err
	}
	out, err := ports.OpenOut(outIndex)
	if err != nil {
		in.Close()
		return nil, nil, false, err
	}
	return in, out, false, nil
}

func (a *app) roundtrip(o *options) error {
	in, out, listed, err := a.midiPair(o)
	if err != nil || listed {
		return err
	}
	defer in.Close()
	defer out.Close()
	fmt.Fprintln(a.stdout, "MIDI roundtrip latency application.")

	others, cleanup, err := a.collaborators(o, "", 0)
	defer cleanup()
	if err != nil {
		return err
	}
	return a.runAll(bridge.NewLoopback(in, out), others...)
}

func (a *app) processor(o *options) error {
	if o.cfg.Script == "" && !o.list {
		return fmt.Errorf("a Lua script is required (-s script.lua)")
	}
	in, out, listed, err := a.midiPair(o)
	if err != nil || listed {
		return err
	}
	defer in.Close()
	defer out.Close()

	fmt.Fprintln(a.stdout, "MIDI Processor")
	fmt.Fprintf(a.stdout, "Loading Lua script: %s\n", o.cfg.Script)
	engine, err := script.LoadFile(o.cfg.Script, o.cfg.ScriptFunction)
	if err != nil {
		return fmt.Errorf("error loading Lua script: %w", err)
	}
	fmt.Fprintln(a.stdout, "Lua script loaded successfully. Processing MIDI...")

	others, cleanup, err := a.collaborators(o, "", 0)
	defer cleanup()
	if err != nil {
		return err
	}
	adapter := script.NewAdapter(engine, o.cfg.ScriptFunction)
	return a.runAll(bridge.NewProcessor(in, out, adapter), others...)
}
