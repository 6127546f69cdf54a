// Package config loads mot settings from defaults, an optional YAML or TOML file, and MOT_*
// environment variables, in that order. Command-line flags are applied last by cmd/mot.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jdginn/mot/devices"
	"github.com/jdginn/mot/discovery"
	"github.com/jdginn/mot/listen"
	"github.com/jdginn/mot/script"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MOT_"

var (
	ErrHostPort       = errors.New("expects a valid IPv4 address with UDP port: xxx.xxx.xxx.xxx:port")
	ErrOSCAddress     = errors.New("invalid OSC address")
	ErrUnknownFormat  = errors.New("unknown config file format, expected .yaml, .yml or .toml")
	ErrPollInterval   = errors.New("poll_interval must be positive")
	ErrScriptFunction = errors.New("script_function must not be empty")
)

type Config struct {
	Verbose  bool   `yaml:"verbose" toml:"verbose" env:"VERBOSE"`
	LogLevel string `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
	// LogControl is the UDP address of the runtime log level control listener. Empty disables it.
	LogControl   string        `yaml:"log_control" toml:"log_control" env:"LOG_CONTROL"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval" env:"POLL_INTERVAL"`

	// Host is the OSC peer (senders) or bind address (receivers). Empty means the subcommand default.
	Host       string `yaml:"host" toml:"host" env:"HOST"`
	OscAddress string `yaml:"osc_address" toml:"osc_address" env:"OSC_ADDRESS"`
	MidiIn     int    `yaml:"midi_in" toml:"midi_in" env:"MIDI_IN"`
	MidiOut    int    `yaml:"midi_out" toml:"midi_out" env:"MIDI_OUT"`

	Script         string `yaml:"script" toml:"script" env:"SCRIPT"`
	ScriptFunction string `yaml:"script_function" toml:"script_function" env:"SCRIPT_FUNCTION"`

	Advertise   bool   `yaml:"advertise" toml:"advertise" env:"ADVERTISE"`
	ServiceType string `yaml:"service_type" toml:"service_type" env:"SERVICE_TYPE"`
}

func Default() Config {
	return Config{
		LogLevel:       "",
		PollInterval:   listen.DefaultInterval,
		OscAddress:     "/midi",
		ScriptFunction: script.DefaultFunction,
		Advertise:      true,
		ServiceType:    discovery.DefaultServiceType,
	}
}

// Load returns the defaults overlaid with the file at path (skipped when path is empty) and
// then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.loadEnv(os.Environ()); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("parse config %s: unknown keys %v", path, undecoded)
		}
	default:
		return fmt.Errorf("config %s: %w", path, ErrUnknownFormat)
	}
	return nil
}

// loadEnv applies MOT_* variables from environ, a list of KEY=value pairs.
func (c *Config) loadEnv(environ []string) error {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix, Environment: vars}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the settings every subcommand shares.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return ErrPollInterval
	}
	if strings.TrimSpace(c.ScriptFunction) == "" {
		return ErrScriptFunction
	}
	if _, err := ValidateOSCAddress(c.OscAddress); err != nil {
		return err
	}
	if c.LogControl != "" {
		if err := ValidateHostPort(c.LogControl); err != nil {
			return fmt.Errorf("log_control: %w", err)
		}
	}
	return nil
}

// ValidateHostPort accepts an IPv4 address with a non-zero UDP port, e.g. "127.0.0.1:1234".
func ValidateHostPort(hostport string) error {
	ap, err := netip.ParseAddrPort(strings.TrimSpace(hostport))
	if err != nil || !ap.Addr().Is4() || ap.Port() == 0 {
		return fmt.Errorf("%q: %w", hostport, ErrHostPort)
	}
	return nil
}

// Port returns the port of a host:port accepted by ValidateHostPort.
func Port(hostport string) (int, error) {
	ap, err := netip.ParseAddrPort(strings.TrimSpace(hostport))
	if err != nil {
		return 0, fmt.Errorf("%q: %w", hostport, ErrHostPort)
	}
	return int(ap.Port()), nil
}

// ValidateOSCAddress normalises addr and rejects addresses OSC cannot carry.
func ValidateOSCAddress(addr string) (string, error) {
	a := strings.TrimSpace(addr)
	if a == "" {
		return "", fmt.Errorf("%w: empty", ErrOSCAddress)
	}
	if !strings.HasPrefix(a, "/") {
		a = "/" + a
	}
	if strings.ContainsAny(a, " \t#,") {
		return "", fmt.Errorf("%w %q: reserved character", ErrOSCAddress, addr)
	}
	if a != "/" && strings.Contains(a[1:], "//") {
		return "", fmt.Errorf("%w %q: empty path segment", ErrOSCAddress, addr)
	}
	return a, nil
}

// ValidatePort reports whether index names an existing input or output on ports.
func ValidatePort(ports *devices.Ports, index int, output bool) error {
	var ok bool
	if output {
		ok = ports.OutExists(index)
	} else {
		ok = ports.InExists(index)
	}
	if !ok {
		kind := "input"
		if output {
			kind = "output"
		}
		return fmt.Errorf("MIDI %s %d: %w", kind, index, devices.ErrPortNotFound)
	}
	return nil
}
