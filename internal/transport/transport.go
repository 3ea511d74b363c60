package transport

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/danmuck/ampm/internal/wire"
)

type Mode string

const (
	ModeUDP Mode = "udp"
	ModeTCP Mode = "tcp"
)

var (
	ErrClosed         = errors.New("transport: endpoint closed")
	ErrUnknownMode    = errors.New("transport: unknown mode")
	ErrRemoteRequired = errors.New("transport: remote address required")
	ErrListenRequired = errors.New("transport: listen address required")
	ErrPacketTooLarge = errors.New("transport: packet exceeds datagram limit")
)

const maxDatagramPayload = 65507

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeUDP:
		return ModeUDP, nil
	case ModeTCP:
		return ModeTCP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// Endpoints is the addressing for one session.
type Endpoints struct {
	Mode Mode
	// LocalAddr is the fixed address the sender binds before sending.
	// Empty picks an ephemeral port.
	LocalAddr  string
	RemoteAddr string
	ListenAddr string

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	Limits         wire.Limits
}

func (e Endpoints) withDefaults() Endpoints {
	if e.Mode == "" {
		e.Mode = ModeUDP
	}
	if e.Limits.MaxPacketBytes == 0 {
		e.Limits = wire.DefaultLimits()
	}
	return e
}

// Packet is one inbound datagram or stream frame.
type Packet struct {
	From net.Addr
	Data []byte
}

type Sender interface {
	Send(packet []byte) error
	LocalAddr() net.Addr
	Close() error
}

type Listener interface {
	// Serve delivers packets to fn until Close. Calls to fn never overlap.
	Serve(fn func(Packet)) error
	Addr() net.Addr
	Close() error
}

func Dial(ep Endpoints) (Sender, error) {
	ep = ep.withDefaults()
	if strings.TrimSpace(ep.RemoteAddr) == "" {
		return nil, ErrRemoteRequired
	}
	switch ep.Mode {
	case ModeUDP:
		return dialUDP(ep)
	case ModeTCP:
		return dialTCP(ep)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, ep.Mode)
	}
}

func Listen(ep Endpoints) (Listener, error) {
	ep = ep.withDefaults()
	if strings.TrimSpace(ep.ListenAddr) == "" {
		return nil, ErrListenRequired
	}
	switch ep.Mode {
	case ModeUDP:
		return listenUDP(ep)
	case ModeTCP:
		return listenTCP(ep)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, ep.Mode)
	}
}

// Session is the bound sender/listener pair.
type Session struct {
	Sender   Sender
	Listener Listener
}

// Open binds the sender, then the listener. If the listener cannot bind the
// sender is released before returning.
func Open(ep Endpoints) (*Session, error) {
	sender, err := Dial(ep)
	if err != nil {
		return nil, fmt.Errorf("bind sender: %w", err)
	}
	listener, err := Listen(ep)
	if err != nil {
		_ = sender.Close()
		return nil, fmt.Errorf("bind listener: %w", err)
	}
	return &Session{Sender: sender, Listener: listener}, nil
}

func (s *Session) Close() error {
	return errors.Join(s.Sender.Close(), s.Listener.Close())
}
