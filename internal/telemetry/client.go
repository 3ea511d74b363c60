package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/ampm/internal/observability"
	"github.com/danmuck/ampm/internal/transport"
	"github.com/danmuck/ampm/internal/wire"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	RouteHeartbeat   = "/heart"
	RouteEvent       = "/event"
	RouteLog         = "/log"
	RouteGetAppState = "/getAppState"
	RouteAppState    = "/appState"
)

var ErrInvalidPort = errors.New("telemetry: port out of range")

// Config addresses one telemetry session.
type Config struct {
	Transport transport.Mode

	LocalHost string
	LocalPort int

	DestHost string
	DestPort int

	// ListenHost empty binds the receiver on every interface.
	ListenHost string
	RecvPort   int

	ConfigURL string

	// Stream mode only.
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig matches the ampm server defaults: send from 127.0.0.1:10000
// to 127.0.0.1:3001, receive on :3002.
func DefaultConfig() Config {
	return Config{
		Transport:      transport.ModeUDP,
		LocalHost:      "127.0.0.1",
		LocalPort:      10000,
		DestHost:       "127.0.0.1",
		DestPort:       3001,
		RecvPort:       3002,
		ConfigURL:      "http://localhost:8888/config",
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

func (c Config) Validate() error {
	for name, port := range map[string]int{
		"local": c.LocalPort,
		"dest":  c.DestPort,
		"recv":  c.RecvPort,
	} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidPort, name, port)
		}
	}
	if strings.TrimSpace(c.DestHost) == "" {
		return fmt.Errorf("telemetry: dest host required")
	}
	return nil
}

func (c Config) Endpoints() transport.Endpoints {
	return transport.Endpoints{
		Mode:           c.Transport,
		LocalAddr:      net.JoinHostPort(c.LocalHost, strconv.Itoa(c.LocalPort)),
		RemoteAddr:     net.JoinHostPort(c.DestHost, strconv.Itoa(c.DestPort)),
		ListenAddr:     net.JoinHostPort(c.ListenHost, strconv.Itoa(c.RecvPort)),
		ConnectTimeout: c.ConnectTimeout,
		WriteTimeout:   c.WriteTimeout,
		Limits:         wire.DefaultLimits(),
	}
}

// Inbound is one message received on the session listener.
type Inbound struct {
	Route   string
	Payload string
	Args    []any
	From    net.Addr
}

type Handler func(Inbound)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithHandler(route string, fn Handler) Option {
	return func(c *Client) {
		c.handlers[route] = fn
	}
}

// Client owns one bound session. Emission methods never fail from the
// caller's point of view.
type Client struct {
	cfg     Config
	session *transport.Session
	http    *http.Client
	logger  zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	serveDone chan struct{}
}

// Create binds a client with DefaultConfig aimed at sendPort and listening on
// recvPort.
func Create(sendPort, recvPort int) (*Client, error) {
	cfg := DefaultConfig()
	cfg.DestPort = sendPort
	cfg.RecvPort = recvPort
	return New(cfg)
}

// New binds the sender and the receiver and starts listening. It fails if
// either endpoint cannot bind.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:       cfg,
		http:      &http.Client{},
		logger:    log.With().Str("component", "telemetry").Logger(),
		handlers:  make(map[string]Handler),
		serveDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	session, err := transport.Open(cfg.Endpoints())
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	c.session = session
	c.logger.Debug().
		Str("mode", string(cfg.Transport)).
		Str("local", session.Sender.LocalAddr().String()).
		Str("dest", cfg.Endpoints().RemoteAddr).
		Str("listen", session.Listener.Addr().String()).
		Msg("telemetry session bound")

	go c.serve()
	return c, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

// LocalAddr is the sender's bound address.
func (c *Client) LocalAddr() net.Addr {
	return c.session.Sender.LocalAddr()
}

// ListenAddr is the receiver's bound address.
func (c *Client) ListenAddr() net.Addr {
	return c.session.Listener.Addr()
}

// Close releases both endpoints and waits for the receive loop to stop.
func (c *Client) Close() error {
	err := c.session.Close()
	<-c.serveDone
	return err
}

// Handle registers fn for inbound messages on route, replacing any previous
// handler. A nil fn removes the route.
func (c *Client) Handle(route string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.handlers, route)
		return
	}
	c.handlers[route] = fn
}

// Update sends one heartbeat. Call it once per frame or tick.
func (c *Client) Update() {
	c.send(RouteHeartbeat)
}

// SendEvent sends an analytics event. Pass zero values for omitted fields.
func (c *Client) SendEvent(category, action, label string, value int) {
	c.SendEventRecord(Event{Category: category, Action: action, Label: label, Value: value})
}

func (c *Client) SendEventRecord(e Event) {
	c.sendRecord(RouteEvent, e.Record())
}

// SendCustomMessage serializes payload to JSON and sends it on route as is.
func (c *Client) SendCustomMessage(route string, payload any) {
	c.sendRecord(route, payload)
}

// Log sends one log line. file is shortened to its last path segment.
func (c *Client) Log(level Severity, msg string, file string, line int) {
	c.sendRecord(RouteLog, LogLine{Level: level, Message: msg, File: file, Line: line}.Record())
}

func (c *Client) LogInfo(msg string)  { c.logCaller(1, SeverityInfo, msg) }
func (c *Client) LogWarn(msg string)  { c.logCaller(1, SeverityWarning, msg) }
func (c *Client) LogError(msg string) { c.logCaller(1, SeverityError, msg) }

func (c *Client) LogInfof(format string, args ...any) {
	c.logCaller(1, SeverityInfo, fmt.Sprintf(format, args...))
}

func (c *Client) LogWarnf(format string, args ...any) {
	c.logCaller(1, SeverityWarning, fmt.Sprintf(format, args...))
}

func (c *Client) LogErrorf(format string, args ...any) {
	c.logCaller(1, SeverityError, fmt.Sprintf(format, args...))
}

// logCaller logs with the file and line skip frames above its caller.
func (c *Client) logCaller(skip int, level Severity, msg string) {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		file, line = "unknown", 0
	}
	c.Log(level, msg, file, line)
}

// RequestAppState asks the server to reply with /appState on the receive
// port. Register a handler for RouteAppState to see the reply.
func (c *Client) RequestAppState() {
	c.send(RouteGetAppState)
}

func (c *Client) sendRecord(route string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		observability.RecordSend(route, false)
		c.logger.Debug().Err(err).Str("route", route).Msg("telemetry encode failed")
		return
	}
	c.send(route, string(body))
}

func (c *Client) send(route string, args ...any) {
	packet, err := wire.Encode(route, args...)
	if err == nil {
		err = c.session.Sender.Send(packet)
	}
	observability.RecordSend(route, err == nil)
	if err != nil {
		c.logger.Debug().Err(err).Str("route", route).Msg("telemetry send dropped")
	}
}

func (c *Client) serve() {
	defer close(c.serveDone)
	if err := c.session.Listener.Serve(c.dispatch); err != nil {
		c.logger.Warn().Err(err).Msg("telemetry listener stopped")
	}
}

func (c *Client) dispatch(p transport.Packet) {
	msgs, err := wire.Decode(p.Data)
	if err != nil {
		c.logger.Debug().Err(err).Str("from", p.From.String()).Msg("telemetry inbound dropped")
		return
	}
	for _, m := range msgs {
		c.mu.RLock()
		fn, ok := c.handlers[m.Route]
		c.mu.RUnlock()
		if !ok {
			c.logger.Debug().Str("route", m.Route).Msg("telemetry inbound unhandled")
			continue
		}
		fn(Inbound{Route: m.Route, Payload: m.Payload(), Args: m.Args, From: p.From})
	}
}
