// Package discovery advertises mot's OSC listeners on the local network over mDNS.
package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/shutdown"
)

const (
	// DefaultServiceType is what OSC peers browse for.
	DefaultServiceType = "_osc._udp"

	// Domain is the mDNS domain services are registered in.
	Domain = "local."

	// DefaultInterval is how often RunUntil checks for shutdown.
	DefaultInterval = 100 * time.Millisecond
)

var ErrInvalidName = errors.New("invalid service instance name")

// Registration is a live advertisement. *zeroconf.Server satisfies it.
type Registration interface {
	Shutdown()
}

// RegisterFunc publishes one service instance.
type RegisterFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Registration, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Registration, error) {
	server, err := zeroconf.Register(instance, service, domain, port, txt, ifaces)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Advertiser keeps at most one service registered and removes it when the shared shutdown
// signal is raised.
type Advertiser struct {
	register RegisterFunc
	interval time.Duration
	ifaces   []net.Interface
	log      *slog.Logger

	mu       sync.Mutex
	server   Registration
	instance string
}

type Option func(*Advertiser)

// WithRegisterFunc replaces zeroconf, for tests.
func WithRegisterFunc(f RegisterFunc) Option {
	return func(a *Advertiser) {
		a.register = f
	}
}

func WithInterval(d time.Duration) Option {
	return func(a *Advertiser) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithInterface restricts the advertisement to the named network interface.
func WithInterface(name string) Option {
	return func(a *Advertiser) {
		if name == "" {
			return
		}
		iface, err := net.InterfaceByName(name)
		if err != nil {
			a.log.Warn("Unknown network interface, advertising on all", "interface", name, "error", err)
			return
		}
		a.ifaces = []net.Interface{*iface}
	}
}

func NewAdvertiser(opts ...Option) *Advertiser {
	a := &Advertiser{
		register: zeroconfRegister,
		interval: DefaultInterval,
		log:      logging.Get(logging.MDNS),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NormalizeServiceType accepts "_osc._udp" as well as the fully qualified "_osc._udp.local.".
func NormalizeServiceType(serviceType string) string {
	s := strings.TrimSuffix(strings.TrimSpace(serviceType), ".")
	s = strings.TrimSuffix(s, ".local")
	if s == "" {
		return DefaultServiceType
	}
	return s
}

// Register advertises name as an instance of serviceType on port, replacing any earlier
// registration.
func (a *Advertiser) Register(name, serviceType string, port int) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("advertise %s: invalid port %d", name, port)
	}
	service := NormalizeServiceType(serviceType)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	server, err := a.register(name, service, Domain, port, []string{"txtvers=1"}, a.ifaces)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service %s: %w", name, err)
	}
	a.server = server
	a.instance = name
	a.log.Info("Advertising service", "instance", name, "service", service+"."+Domain, "port", port)
	return nil
}

// Registered reports whether a service is currently advertised.
func (a *Advertiser) Registered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Unregister withdraws the advertisement. Calling it with nothing registered does nothing.
func (a *Advertiser) Unregister() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.log.Info("Service unregistered", "instance", a.instance)
	a.instance = ""
}

// RunUntil blocks until sig is raised and then unregisters. It unregisters on every exit path.
func (a *Advertiser) RunUntil(sig *shutdown.Signal) {
	defer a.Unregister()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for !sig.Stopped() {
		select {
		case <-sig.Done():
		case <-ticker.C:
		}
	}
}
