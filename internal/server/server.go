package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/ampm/internal/node"
	"github.com/danmuck/ampm/internal/observability"
	"github.com/danmuck/ampm/internal/telemetry"
	"github.com/danmuck/ampm/internal/transport"
	"github.com/danmuck/ampm/internal/wire"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNotListening = errors.New("server: not listening")

type Config struct {
	ID               string
	Transport        transport.Mode
	OSCReceiveAddr   string
	OSCSendPort      int
	HTTPAddr         string
	ConfigPath       string
	KillClientsAfter time.Duration
	UpdateThrottle   time.Duration
	RecentLogs       int
	CorsOrigins      []string
}

// DefaultConfig mirrors the client defaults: apps send to :3001, replies go
// to each app's :3002, config is served on :8888. /appState replies are
// limited to 60 per second per host; UpdateThrottle zero answers every
// request.
func DefaultConfig() Config {
	return Config{
		ID:               "ampm-server",
		Transport:        transport.ModeUDP,
		OSCReceiveAddr:   ":3001",
		OSCSendPort:      3002,
		HTTPAddr:         ":8888",
		ConfigPath:       "config.json",
		KillClientsAfter: 5 * time.Second,
		UpdateThrottle:   time.Second / 60,
		RecentLogs:       50,
		CorsOrigins:      []string{"http://localhost:3000"},
	}
}

type Server struct {
	cfg      Config
	registry *Registry
	router   *gin.Engine
	logger   zerolog.Logger
	started  time.Time

	listener transport.Listener
	httpLn   net.Listener

	repliesMu sync.Mutex
	replies   map[string]transport.Sender
	lastReply map[string]time.Time
	now       func() time.Time
}

func New(cfg Config) *Server {
	if cfg.ID == "" {
		cfg.ID = "ampm-server"
	}
	s := &Server{
		cfg:      cfg,
		registry: NewRegistry(cfg.KillClientsAfter, cfg.RecentLogs),
		logger:   log.With().Str("component", "server").Str("id", cfg.ID).Logger(),
		started:  time.Now(),
		replies:   make(map[string]transport.Sender),
		lastReply: make(map[string]time.Time),
		now:       time.Now,
	}
	s.router = s.newRouter()
	s.RegisterRoutes()
	return s
}

var _ node.Node = (*Server)(nil)

func (s *Server) NodeID() string {
	return s.cfg.ID
}

func (s *Server) Kind() string {
	return "ampm-server"
}

func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Listen binds the OSC receiver and the HTTP listener.
func (s *Server) Listen() error {
	l, err := transport.Listen(transport.Endpoints{
		Mode:       s.cfg.Transport,
		ListenAddr: s.cfg.OSCReceiveAddr,
	})
	if err != nil {
		return fmt.Errorf("server: osc listen: %w", err)
	}
	httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		_ = l.Close()
		return fmt.Errorf("server: http listen: %w", err)
	}
	s.listener = l
	s.httpLn = httpLn
	s.logger.Info().
		Str("osc", l.Addr().String()).
		Str("http", httpLn.Addr().String()).
		Str("mode", string(s.cfg.Transport)).
		Msg("server listening")
	return nil
}

func (s *Server) OSCAddr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) HTTPAddr() net.Addr {
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}

// Serve runs the OSC receiver, the HTTP server and the liveness sweep until
// ctx is cancelled or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil || s.httpLn == nil {
		return ErrNotListening
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpSrv := &http.Server{Handler: s.router}
	errCh := make(chan error, 2)
	go func() {
		errCh <- s.listener.Serve(s.HandlePacket)
	}()
	go func() {
		if err := httpSrv.Serve(s.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	go s.sweep(ctx)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = s.listener.Close()
	s.closeReplies()
	s.logger.Info().Msg("server stopped")
	return err
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) sweep(ctx context.Context) {
	interval := s.cfg.KillClientsAfter / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune()
		}
	}
}

// Prune drops silent apps and their reply endpoints.
func (s *Server) Prune() []string {
	dropped := s.registry.Prune()
	for _, host := range dropped {
		s.dropReply(host)
		s.logger.Info().Str("host", host).Msg("app timed out")
	}
	observability.SetActiveApps(s.registry.Len())
	return dropped
}

// HandlePacket decodes one inbound packet and applies every message in it.
func (s *Server) HandlePacket(p transport.Packet) {
	host := hostOf(p.From)
	msgs, err := wire.Decode(p.Data)
	if err != nil {
		s.logger.Warn().Err(err).Str("host", host).Msg("undecodable packet")
		return
	}
	for _, m := range msgs {
		s.handleMessage(host, m)
	}
	observability.SetActiveApps(s.registry.Len())
}

func (s *Server) handleMessage(host string, m wire.Message) {
	observability.RecordReceive(m.Route)
	switch m.Route {
	case telemetry.RouteHeartbeat:
		s.registry.Heartbeat(host)
	case telemetry.RouteEvent:
		var ev eventPayload
		if err := json.Unmarshal([]byte(m.Payload()), &ev); err != nil {
			s.registry.Seen(host)
			s.logger.Warn().Err(err).Str("host", host).Msg("malformed event")
			return
		}
		s.registry.Event(host, EventEntry{
			Category: ev.Category,
			Action:   ev.Action,
			Label:    ev.Label,
			Value:    ev.Value,
		})
		observability.RecordEvent(ev.Category, ev.Action)
		s.logger.Info().
			Str("host", host).
			Str("category", ev.Category).
			Str("action", ev.Action).
			Str("label", ev.Label).
			Float64("value", ev.Value).
			Msg("app event")
	case telemetry.RouteLog:
		var lp logPayload
		if err := json.Unmarshal([]byte(m.Payload()), &lp); err != nil {
			s.registry.Seen(host)
			s.logger.Warn().Err(err).Str("host", host).Msg("malformed log")
			return
		}
		s.registry.Log(host, LogEntry{
			Level:   lp.Level,
			Message: lp.Message,
			File:    lp.Line,
			Line:    lp.LineNum,
		})
		observability.RecordLog(lp.Level)
		s.logger.WithLevel(appLogLevel(lp.Level)).
			Str("host", host).
			Str("file", lp.Line).
			Int("line", lp.LineNum).
			Msg(lp.Message)
	case telemetry.RouteGetAppState:
		s.registry.Seen(host)
		s.replyAppState(host)
	default:
		s.registry.Custom(host, m.Route)
		s.logger.Debug().
			Str("host", host).
			Str("route", m.Route).
			Str("payload", m.Payload()).
			Msg("custom message")
	}
}

type eventPayload struct {
	Category string  `json:"Category"`
	Action   string  `json:"Action"`
	Label    string  `json:"Label"`
	Value    float64 `json:"Value"`
}

type logPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Line    string `json:"line"`
	LineNum int    `json:"lineNum"`
}

// appLogLevel maps a /log level string onto zerolog. Unknown levels log at
// info.
func appLogLevel(level string) zerolog.Level {
	sev, ok := telemetry.ParseSeverity(strings.ToLower(strings.TrimSpace(level)))
	if !ok {
		return zerolog.InfoLevel
	}
	return sev.Level()
}

// replyAppState sends the registry snapshot to the app's receive port, at
// most once per UpdateThrottle per host.
func (s *Server) replyAppState(host string) {
	if !s.allowReply(host) {
		s.logger.Trace().Str("host", host).Msg("app state request throttled")
		return
	}
	body, err := json.Marshal(s.registry.Snapshot())
	if err != nil {
		s.logger.Warn().Err(err).Msg("app state encode failed")
		return
	}
	packet, err := wire.Encode(telemetry.RouteAppState, string(body))
	if err != nil {
		s.logger.Warn().Err(err).Msg("app state encode failed")
		return
	}
	sender, err := s.replySender(host)
	if err != nil {
		s.logger.Debug().Err(err).Str("host", host).Msg("app state reply dropped")
		return
	}
	if err := sender.Send(packet); err != nil {
		s.logger.Debug().Err(err).Str("host", host).Msg("app state reply dropped")
	}
}

func (s *Server) allowReply(host string) bool {
	s.repliesMu.Lock()
	defer s.repliesMu.Unlock()
	now := s.now()
	if last, ok := s.lastReply[host]; ok && now.Sub(last) < s.cfg.UpdateThrottle {
		return false
	}
	s.lastReply[host] = now
	return true
}

func (s *Server) replySender(host string) (transport.Sender, error) {
	s.repliesMu.Lock()
	defer s.repliesMu.Unlock()
	if sender, ok := s.replies[host]; ok {
		return sender, nil
	}
	sender, err := transport.Dial(transport.Endpoints{
		Mode:           s.cfg.Transport,
		RemoteAddr:     net.JoinHostPort(host, strconv.Itoa(s.cfg.OSCSendPort)),
		ConnectTimeout: time.Second,
		WriteTimeout:   time.Second,
	})
	if err != nil {
		return nil, err
	}
	s.replies[host] = sender
	return sender, nil
}

func (s *Server) dropReply(host string) {
	s.repliesMu.Lock()
	defer s.repliesMu.Unlock()
	delete(s.lastReply, host)
	if sender, ok := s.replies[host]; ok {
		_ = sender.Close()
		delete(s.replies, host)
	}
}

func (s *Server) closeReplies() {
	s.repliesMu.Lock()
	defer s.repliesMu.Unlock()
	for host, sender := range s.replies {
		_ = sender.Close()
		delete(s.replies, host)
	}
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case *net.TCPAddr:
		return a.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
