package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/ampm/internal/testutil/testlog"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	packet, err := Encode("/event", `{"Category":"scene"}`)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, packet, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if err := WriteFrame(&buf, nil, DefaultLimits()); err != nil {
		t.Fatalf("write empty frame: %v", err)
	}

	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(out, packet) {
		t.Fatalf("packet mismatch")
	}
	empty, err := ReadFrame(&buf, DefaultLimits())
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty frame, got len=%d err=%v", len(empty), err)
	}
	if _, err := ReadFrame(&buf, DefaultLimits()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestReadFrameShortHeaderIsDeterministic(t *testing.T) {
	testlog.Start(t)
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameTruncatedPacket(t *testing.T) {
	testlog.Start(t)
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 8, 1, 2}), DefaultLimits())
	if !errors.Is(err, ErrTruncatedPacket) {
		t.Fatalf("expected ErrTruncatedPacket, got %v", err)
	}
}

func TestFrameLimitsEnforced(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxPacketBytes: 4}
	if err := WriteFrame(io.Discard, make([]byte, 5), limits); !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("expected ErrPacketTooLarge on write, got %v", err)
	}
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 5, 1, 2, 3, 4, 5}), limits)
	if !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("expected ErrPacketTooLarge on read, got %v", err)
	}
}
