package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/ampm/internal/wire"
	"github.com/rs/zerolog/log"
)

// tcpSender holds one connection for its lifetime. A failed write leaves it
// failing; there is no redial.
type tcpSender struct {
	mu           sync.Mutex
	conn         net.Conn
	limits       wire.Limits
	writeTimeout time.Duration
	closed       atomic.Bool
}

func dialTCP(ep Endpoints) (*tcpSender, error) {
	dialer := net.Dialer{Timeout: ep.ConnectTimeout}
	if ep.LocalAddr != "" {
		local, err := net.ResolveTCPAddr("tcp", ep.LocalAddr)
		if err != nil {
			return nil, err
		}
		dialer.LocalAddr = local
	}
	conn, err := dialer.Dial("tcp", ep.RemoteAddr)
	if err != nil {
		return nil, err
	}
	return &tcpSender{conn: conn, limits: ep.Limits, writeTimeout: ep.WriteTimeout}, nil
}

func (s *tcpSender) Send(packet []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return wire.WriteFrame(s.conn, packet, s.limits)
}

func (s *tcpSender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *tcpSender) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.Close()
}

type tcpListener struct {
	ln     net.Listener
	limits wire.Limits
	closed atomic.Bool

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	deliverMu sync.Mutex
}

func listenTCP(ep Endpoints) (*tcpListener, error) {
	ln, err := net.Listen("tcp", ep.ListenAddr)
	if err != nil {
		return nil, err
	}
	return &tcpListener{
		ln:     ln,
		limits: ep.Limits,
		conns:  make(map[net.Conn]struct{}),
	}, nil
}

func (l *tcpListener) Serve(fn func(Packet)) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !l.track(conn) {
			_ = conn.Close()
			return nil
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer l.untrack(conn)
			l.readConn(conn, fn)
		}()
	}
}

func (l *tcpListener) readConn(conn net.Conn, fn func(Packet)) {
	defer conn.Close()
	from := conn.RemoteAddr()
	reader := bufio.NewReader(conn)
	for {
		data, err := wire.ReadFrame(reader, l.limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !l.closed.Load() {
				log.Debug().Err(err).Str("remote", from.String()).Msg("transport.tcp read stopped")
			}
			return
		}
		l.deliverMu.Lock()
		fn(Packet{From: from, Data: data})
		l.deliverMu.Unlock()
	}
}

func (l *tcpListener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return false
	}
	l.conns[conn] = struct{}{}
	return true
}

func (l *tcpListener) untrack(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, conn)
}

func (l *tcpListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *tcpListener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := l.ln.Close()
	l.mu.Lock()
	for conn := range l.conns {
		_ = conn.Close()
	}
	l.mu.Unlock()
	return err
}
