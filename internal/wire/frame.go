package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// SizeHeaderLen is the OSC 1.0 stream packet-size prefix.
const SizeHeaderLen = 4

var (
	ErrShortHeader     = errors.New("wire: short size header")
	ErrPacketTooLarge  = errors.New("wire: packet too large")
	ErrTruncatedPacket = errors.New("wire: truncated packet")
)

// Limits constrains stream decode/encode memory use.
type Limits struct {
	MaxPacketBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPacketBytes: 64 * 1024,
	}
}

// ReadFrame reads one size-prefixed packet. A clean EOF before any header
// byte is returned as io.EOF so callers can end a connection loop.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var header [SizeHeaderLen]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > limits.MaxPacketBytes {
		return nil, ErrPacketTooLarge
	}
	packet := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, packet); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrTruncatedPacket
			}
			return nil, err
		}
	}
	return packet, nil
}

// WriteFrame writes packet with its size prefix in a single Write call.
func WriteFrame(w io.Writer, packet []byte, limits Limits) error {
	if uint64(len(packet)) > uint64(limits.MaxPacketBytes) {
		return ErrPacketTooLarge
	}
	buf := make([]byte, SizeHeaderLen+len(packet))
	binary.BigEndian.PutUint32(buf[:SizeHeaderLen], uint32(len(packet)))
	copy(buf[SizeHeaderLen:], packet)
	_, err := w.Write(buf)
	return err
}
