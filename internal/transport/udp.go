package transport

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
)

type udpSender struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	closed atomic.Bool
}

func dialUDP(ep Endpoints) (*udpSender, error) {
	remote, err := net.ResolveUDPAddr("udp", ep.RemoteAddr)
	if err != nil {
		return nil, err
	}
	var local *net.UDPAddr
	if ep.LocalAddr != "" {
		if local, err = net.ResolveUDPAddr("udp", ep.LocalAddr); err != nil {
			return nil, err
		}
	}
	// Unconnected so an absent receiver does not surface ICMP errors on
	// later writes.
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, err
	}
	return &udpSender{conn: conn, remote: remote}, nil
}

func (s *udpSender) Send(packet []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(packet) > maxDatagramPayload {
		return ErrPacketTooLarge
	}
	_, err := s.conn.WriteToUDP(packet, s.remote)
	return err
}

func (s *udpSender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *udpSender) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.Close()
}

type udpListener struct {
	conn    *net.UDPConn
	bufSize int
	closed  atomic.Bool
	serveMu sync.Mutex
}

func listenUDP(ep Endpoints) (*udpListener, error) {
	addr, err := net.ResolveUDPAddr("udp", ep.ListenAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &udpListener{conn: conn, bufSize: int(ep.Limits.MaxPacketBytes)}, nil
}

func (l *udpListener) Serve(fn func(Packet)) error {
	l.serveMu.Lock()
	defer l.serveMu.Unlock()

	buf := make([]byte, l.bufSize)
	for {
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		fn(Packet{From: from, Data: data})
	}
}

func (l *udpListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

func (l *udpListener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.conn.Close()
}
