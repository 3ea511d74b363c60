package telemetry

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/danmuck/ampm/internal/testutil/testlog"
	"github.com/danmuck/ampm/internal/transport"
	"github.com/danmuck/ampm/internal/wire"
)

// sink stands in for the ampm server.
type sink struct {
	listener transport.Listener
	msgs     chan wire.Message
}

func newSink(t *testing.T, mode transport.Mode) *sink {
	t.Helper()
	l, err := transport.Listen(transport.Endpoints{Mode: mode, ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("sink listen: %v", err)
	}
	s := &sink{listener: l, msgs: make(chan wire.Message, 64)}
	go func() {
		_ = l.Serve(func(p transport.Packet) {
			msgs, err := wire.Decode(p.Data)
			if err != nil {
				return
			}
			for _, m := range msgs {
				s.msgs <- m
			}
		})
	}()
	t.Cleanup(func() { _ = l.Close() })
	return s
}

func (s *sink) port(t *testing.T) int {
	t.Helper()
	_, raw, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		t.Fatalf("sink addr: %v", err)
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		t.Fatalf("sink port: %v", err)
	}
	return port
}

func (s *sink) next(t *testing.T) wire.Message {
	t.Helper()
	select {
	case m := <-s.msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for telemetry message")
	}
	return wire.Message{}
}

func (s *sink) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case m := <-s.msgs:
		t.Fatalf("unexpected extra message: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func testConfig(destPort int) Config {
	cfg := DefaultConfig()
	cfg.LocalPort = 0
	cfg.DestPort = destPort
	cfg.ListenHost = "127.0.0.1"
	cfg.RecvPort = 0
	return cfg
}

func newTestClient(t *testing.T, cfg Config, opts ...Option) *Client {
	t.Helper()
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewBindsSessionAndRejectsTakenPort(t *testing.T) {
	testlog.Start(t)
	s := newSink(t, transport.ModeUDP)
	c := newTestClient(t, testConfig(s.port(t)))
	if c.LocalAddr() == nil || c.ListenAddr() == nil {
		t.Fatalf("expected bound endpoints")
	}

	taken := testConfig(s.port(t))
	_, rawPort, _ := net.SplitHostPort(c.ListenAddr().String())
	taken.RecvPort, _ = strconv.Atoi(rawPort)
	if _, err := New(taken); err == nil {
		t.Fatalf("expected bind failure on an already bound receive port")
	}
}

func TestCreateUsesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	if cfg.LocalHost != "127.0.0.1" || cfg.LocalPort != 10000 {
		t.Fatalf("unexpected local endpoint: %s:%d", cfg.LocalHost, cfg.LocalPort)
	}
	if cfg.DestHost != "127.0.0.1" {
		t.Fatalf("unexpected dest host: %q", cfg.DestHost)
	}
	if cfg.Transport != transport.ModeUDP {
		t.Fatalf("datagram transport should be the default, got %q", cfg.Transport)
	}
	if _, err := Create(70000, 3002); err == nil {
		t.Fatalf("expected invalid port rejection")
	}
}

func TestSendEventDefaultsProduceEmptyFields(t *testing.T) {
	testlog.Start(t)
	s := newSink(t, transport.ModeUDP)
	c := newTestClient(t, testConfig(s.port(t)))

	c.SendEvent("", "", "", 0)
	m := s.next(t)
	if m.Route != RouteEvent {
		t.Fatalf("unexpected route: %q", m.Route)
	}
	want := `{"Category":"","Action":"","Label":"","Value":0}`
	if m.Payload() != want {
		t.Fatalf("payload=%s want=%s", m.Payload(), want)
	}

	c.SendEventRecord(Event{Category: "scene", Action: "start", Value: 3})
	m = s.next(t)
	want = `{"Category":"scene","Action":"start","Label":"","Value":3}`
	if m.Payload() != want {
		t.Fatalf("payload=%s want=%s", m.Payload(), want)
	}
}

func TestLogTruncatesSourcePath(t *testing.T) {
	testlog.Start(t)
	s := newSink(t, transport.ModeUDP)
	c := newTestClient(t, testConfig(s.port(t)))

	file := "/a/b/c/file.txt"
	c.Log(SeverityWarning, "frame drop", file, 42)
	m := s.next(t)
	if m.Route != RouteLog {
		t.Fatalf("unexpected route: %q", m.Route)
	}
	want := `{"level":"warn","message":"frame drop","line":"file.txt","lineNum":42}`
	if m.Payload() != want {
		t.Fatalf("payload=%s want=%s", m.Payload(), want)
	}
	if file != "/a/b/c/file.txt" {
		t.Fatalf("caller string modified: %q", file)
	}
}

func TestLogHelpersCaptureCallSite(t *testing.T) {
	testlog.Start(t)
	s := newSink(t, transport.ModeUDP)
	c := newTestClient(t, testConfig(s.port(t)))

	c.LogError("boom")
	m := s.next(t)
	rec := decodeObject(t, m.Payload())
	if rec["level"] != "error" || rec["message"] != "boom" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["line"] != "client_test.go" {
		t.Fatalf("expected call-site file, got %v", rec["line"])
	}
	if n, _ := rec["lineNum"].(float64); n <= 0 {
		t.Fatalf("expected call-site line, got %v", rec["lineNum"])
	}

	c.LogWarnf("fps=%d", 12)
	rec = decodeObject(t, s.next(t).Payload())
	if rec["level"] != "warn" || rec["message"] != "fps=12" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestUpdateEmitsOneHeartbeatPerCall(t *testing.T) {
	testlog.Start(t)
	s := newSink(t, transport.ModeUDP)
	c := newTestClient(t, testConfig(s.port(t)))

	const n = 5
	for i := 0; i < n; i++ {
		c.Update()
	}
	for i := 0; i < n; i++ {
		m := s.next(t)
		if m.Route != RouteHeartbeat {
			t.Fatalf("heartbeat %d route=%q", i, m.Route)
		}
		if len(m.Args) != 0 {
			t.Fatalf("heartbeat %d carried args: %v", i, m.Args)
		}
	}
	s.expectQuiet(t)
}

func TestSendCustomMessagePassesRouteAndPayloadThrough(t *testing.T) {
	testlog.Start(t)
	s := newSink(t, transport.ModeUDP)
	c := newTestClient(t, testConfig(s.port(t)))

	c.SendCustomMessage("/kiosk/touch", NewRecord().Str("zone", "north").Float("x", 0.5))
	m := s.next(t)
	if m.Route != "/kiosk/touch" {
		t.Fatalf("unexpected route: %q", m.Route)
	}
	if m.Payload() != `{"zone":"north","x":0.5}` {
		t.Fatalf("unexpected payload: %s", m.Payload())
	}

	c.SendCustomMessage("/kiosk/state", map[string]int{"visitors": 7})
	if got := s.next(t).Payload(); got != `{"visitors":7}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestStreamModeDeliversMessages(t *testing.T) {
	testlog.Start(t)
	s := newSink(t, transport.ModeTCP)
	cfg := testConfig(s.port(t))
	cfg.Transport = transport.ModeTCP
	c := newTestClient(t, cfg)

	c.Update()
	c.SendEvent("a", "b", "c", 1)
	if m := s.next(t); m.Route != RouteHeartbeat {
		t.Fatalf("unexpected route: %q", m.Route)
	}
	if m := s.next(t); m.Route != RouteEvent {
		t.Fatalf("unexpected route: %q", m.Route)
	}
}

func TestInboundMessagesReachHandlers(t *testing.T) {
	testlog.Start(t)
	s := newSink(t, transport.ModeUDP)
	got := make(chan Inbound, 1)
	c := newTestClient(t, testConfig(s.port(t)), WithHandler(RouteAppState, func(in Inbound) {
		got <- in
	}))

	peer, err := transport.Dial(transport.Endpoints{RemoteAddr: c.ListenAddr().String()})
	if err != nil {
		t.Fatalf("dial client listener: %v", err)
	}
	defer peer.Close()
	unhandled, _ := wire.Encode("/ignored")
	packet, _ := wire.Encode(RouteAppState, `{"apps":1}`)
	_ = peer.Send(unhandled)
	if err := peer.Send(packet); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case in := <-got:
		if in.Payload != `{"apps":1}` {
			t.Fatalf("unexpected payload: %q", in.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler not invoked")
	}
}

func TestSendAfterCloseIsSilent(t *testing.T) {
	testlog.Start(t)
	s := newSink(t, transport.ModeUDP)
	c, err := New(testConfig(s.port(t)))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	c.Update()
	c.SendEvent("late", "", "", 0)
	s.expectQuiet(t)
}

func TestContextCarriesClient(t *testing.T) {
	testlog.Start(t)
	s := newSink(t, transport.ModeUDP)
	c := newTestClient(t, testConfig(s.port(t)))

	ctx := NewContext(context.Background(), c)
	got, ok := FromContext(ctx)
	if !ok || got != c {
		t.Fatalf("client not recovered from context")
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("empty context should carry no client")
	}
}
