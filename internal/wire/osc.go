package wire

import (
	"errors"
	"fmt"

	"github.com/chabad360/go-osc/osc"
)

var ErrEmptyPacket = errors.New("wire: empty packet")

// Message is one decoded OSC message.
type Message struct {
	Route string
	Args  []any
}

// Payload returns the first string argument, or "" when there is none.
func (m Message) Payload() string {
	for _, arg := range m.Args {
		if s, ok := arg.(string); ok {
			return s
		}
	}
	return ""
}

// Encode builds one OSC message addressed to route. The route is not
// checked against the OSC address grammar.
func Encode(route string, args ...any) ([]byte, error) {
	msg := osc.NewMessage(route, args...)
	data, err := msg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", route, err)
	}
	return data, nil
}

var (
	ErrMalformedBundle = errors.New("wire: malformed bundle")
	ErrUnexpectedType  = errors.New("wire: unexpected packet type")
)

// Decode parses one OSC packet. Bundles are flattened in order; their time
// tags are ignored.
func Decode(data []byte) ([]Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPacket
	}
	pkt, err := osc.ReadPacket(data)
	if err != nil {
		if data[0] == '#' {
			return nil, fmt.Errorf("%w: %w", ErrMalformedBundle, err)
		}
		return nil, fmt.Errorf("wire: decode: %w", err)
	}
	return flatten(pkt, nil)
}

func flatten(pkt osc.Packet, out []Message) ([]Message, error) {
	switch p := pkt.(type) {
	case *osc.Message:
		args := make([]any, len(p.Arguments))
		copy(args, p.Arguments)
		return append(out, Message{Route: p.Address, Args: args}), nil
	case *osc.Bundle:
		var err error
		for _, elem := range p.Elements {
			if out, err = flatten(elem, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedType, pkt)
	}
}
