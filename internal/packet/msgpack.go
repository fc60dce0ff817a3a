package packet

import (
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"

	"lamportd/internal/clock"
)

type msgpackPacket struct {
	Timestamp uint64 `msgpack:"timestamp"`
	Payload   string `msgpack:"payload"`
}

// MsgpackCodec encodes packets as a msgpack map with timestamp and payload keys.
type MsgpackCodec struct{}

// Name returns "msgpack".
func (MsgpackCodec) Name() string {
	return CodecMsgpack
}

// Encode renders the packet as a msgpack map.
func (MsgpackCodec) Encode(p Packet) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return msgpack.Marshal(&msgpackPacket{
		Timestamp: uint64(p.timestamp),
		Payload:   p.payload,
	})
}

// Decode parses a msgpack map.
func (MsgpackCodec) Decode(b []byte) (Packet, error) {
	if len(b) == 0 {
		return Packet{}, decodeError(CodecMsgpack, "empty input", nil)
	}

	var w msgpackPacket
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return Packet{}, decodeError(CodecMsgpack, "bad message", err)
	}
	if w.Timestamp == 0 {
		return Packet{}, decodeError(CodecMsgpack, "missing timestamp", nil)
	}
	if !utf8.ValidString(w.Payload) {
		return Packet{}, decodeError(CodecMsgpack, "payload is not valid UTF-8", nil)
	}
	return New(clock.Time(w.Timestamp), w.Payload), nil
}
