package devices

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/jdginn/mot/listen"
	"github.com/jdginn/mot/logging"
	"github.com/jdginn/mot/message"
)

var oscInLog, oscOutLog *slog.Logger

func init() {
	oscInLog = logging.Get(logging.OSC_IN)
	oscOutLog = logging.Get(logging.OSC_OUT)
}

// oscClient is the part of osc.Client the sender needs.
type oscClient interface {
	Send(packet osc.Packet) error
}

// OscSender sends envelopes as OSC messages to one peer over UDP.
type OscSender struct {
	client oscClient
	target string
}

// NewOscSender targets hostport, e.g. "127.0.0.1:8000".
func NewOscSender(hostport string) (*OscSender, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, fmt.Errorf("OSC target %q: %w", hostport, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > math.MaxUint16 {
		return nil, fmt.Errorf("OSC target %q: invalid port %q", hostport, portStr)
	}
	oscOutLog.Info("Sending OSC", "target", hostport)
	return &OscSender{client: osc.NewClient(host, port), target: hostport}, nil
}

// NewOscSenderWithClient is for tests that capture packets instead of sending them.
func NewOscSenderWithClient(client oscClient, target string) *OscSender {
	return &OscSender{client: client, target: target}
}

func (s *OscSender) Send(env message.Envelope) error {
	msg := ToMessage(env)
	oscOutLog.Debug("Sending OSC message", "target", s.target, "address", msg.Address, "args", msg.Arguments)
	if err := s.client.Send(msg); err != nil {
		return fmt.Errorf("send OSC to %s: %w", s.target, err)
	}
	return nil
}

func (s *OscSender) String() string {
	return s.target
}

// ToMessage converts env to an osc.Message. Go integer arguments that fit become int32 and
// float64 becomes float32, so locally built envelopes encode like decoded ones.
func ToMessage(env message.Envelope) *osc.Message {
	args := make([]any, len(env.Args))
	for i, a := range env.Args {
		args[i] = wireArg(a)
	}
	return osc.NewMessage(message.NormalizeAddress(env.Address), args...)
}

func wireArg(a any) any {
	switch v := a.(type) {
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int32(v)
		}
		return int64(v)
	case int8:
		return int32(v)
	case int16:
		return int32(v)
	case uint8:
		return int32(v)
	case uint16:
		return int32(v)
	case uint32:
		if v <= math.MaxInt32 {
			return int32(v)
		}
		return int64(v)
	case float64:
		return float32(v)
	}
	return a
}

// FromMessage converts a received message to an envelope.
func FromMessage(msg *osc.Message) message.Envelope {
	return message.Envelope{
		Address: message.NormalizeAddress(msg.Address),
		Args:    msg.Arguments,
	}
}

// Messages flattens packet. A bundle yields its own messages first, then those of nested bundles.
func Messages(packet osc.Packet) []*osc.Message {
	switch p := packet.(type) {
	case *osc.Message:
		return []*osc.Message{p}
	case *osc.Bundle:
		msgs := append([]*osc.Message(nil), p.Messages...)
		for _, b := range p.Bundles {
			msgs = append(msgs, Messages(b)...)
		}
		return msgs
	}
	return nil
}

// OscReceiver reads OSC packets from a UDP socket with a bounded wait per read.
type OscReceiver struct {
	conn   net.PacketConn
	server *osc.Server
}

// ListenOsc binds addr, e.g. "0.0.0.0:9000" or "127.0.0.1:0".
func ListenOsc(addr string) (*OscReceiver, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for OSC on %s: %w", addr, err)
	}
	oscInLog.Info("Listening for OSC", "addr", conn.LocalAddr().String())
	return &OscReceiver{
		conn:   conn,
		server: &osc.Server{Addr: addr},
	}, nil
}

// Receive waits up to timeout for one packet.
//
// A wait that expires returns an error matching listen.ErrTimeout; an undecodable datagram
// returns one matching listen.ErrMalformed. Any other error means the socket is unusable.
func (r *OscReceiver) Receive(timeout time.Duration) (osc.Packet, error) {
	r.server.ReadTimeout = timeout
	packet, err := r.server.ReceivePacket(r.conn)
	if err != nil {
		if listen.IsTimeout(err) {
			return nil, fmt.Errorf("%w: %v", listen.ErrTimeout, err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, net.ErrClosed) {
			return nil, fmt.Errorf("receive OSC on %s: %w", r.conn.LocalAddr(), err)
		}
		return nil, fmt.Errorf("%w: %v", listen.ErrMalformed, err)
	}
	if packet == nil {
		return nil, fmt.Errorf("%w: empty packet", listen.ErrMalformed)
	}
	oscInLog.Debug("Received OSC packet", "addr", r.conn.LocalAddr().String(), "packet", packet)
	return packet, nil
}

// Addr is the bound local address, useful after binding port 0.
func (r *OscReceiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Port is the bound local UDP port.
func (r *OscReceiver) Port() int {
	if udp, ok := r.conn.LocalAddr().(*net.UDPAddr); ok {
		return udp.Port
	}
	return 0
}

func (r *OscReceiver) Close() error {
	return r.conn.Close()
}
