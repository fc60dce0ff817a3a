package packet

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"lamportd/internal/clock"
)

// Field numbers of the packet message:
//
//	message Packet {
//	  uint64 timestamp = 1;
//	  string payload   = 2;
//	}
const (
	timestampField protowire.Number = 1
	payloadField   protowire.Number = 2
)

// ProtoCodec encodes packets in the protobuf wire format.
type ProtoCodec struct{}

// Name returns "proto".
func (ProtoCodec) Name() string {
	return CodecProto
}

// Encode renders the packet as a protobuf message.
func (ProtoCodec) Encode(p Packet) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	b := make([]byte, 0, 2+protowire.SizeVarint(uint64(p.timestamp))+protowire.SizeBytes(len(p.payload)))
	b = protowire.AppendTag(b, timestampField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.timestamp))
	b = protowire.AppendTag(b, payloadField, protowire.BytesType)
	b = protowire.AppendString(b, p.payload)
	return b, nil
}

// Decode parses a protobuf message. Unknown fields are skipped.
func (ProtoCodec) Decode(b []byte) (Packet, error) {
	var p Packet

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Packet{}, decodeError(CodecProto, "bad tag", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == timestampField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Packet{}, decodeError(CodecProto, "bad timestamp", protowire.ParseError(n))
			}
			p.timestamp = clock.Time(v)
			b = b[n:]
		case num == payloadField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Packet{}, decodeError(CodecProto, "bad payload", protowire.ParseError(n))
			}
			if !utf8.Valid(v) {
				return Packet{}, decodeError(CodecProto, "payload is not valid UTF-8", nil)
			}
			p.payload = string(v)
			b = b[n:]
		case num == timestampField || num == payloadField:
			return Packet{}, decodeError(CodecProto, fmt.Sprintf("unexpected wire type %d for field %d", typ, num), nil)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Packet{}, decodeError(CodecProto, "bad unknown field", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if p.timestamp == 0 {
		return Packet{}, decodeError(CodecProto, "missing timestamp", nil)
	}
	return p, nil
}
