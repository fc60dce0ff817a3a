package packet

import "fmt"

const (
	// CodecProto is the protobuf wire codec name.
	CodecProto = "proto"
	// CodecMsgpack is the msgpack codec name.
	CodecMsgpack = "msgpack"
)

// Codec converts packets to and from their wire representation.
type Codec interface {
	// Name identifies the codec in logs and configuration.
	Name() string
	// Encode renders a packet. It only fails for packets without a timestamp.
	Encode(p Packet) ([]byte, error)
	// Decode parses a packet, returning a *DecodeError on malformed input.
	Decode(b []byte) (Packet, error)
}

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case CodecProto, "":
		return ProtoCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (expected %s or %s)", name, CodecProto, CodecMsgpack)
	}
}
