package packet

import (
	"errors"
	"fmt"

	"lamportd/internal/clock"
)

// ErrInvalidPacket is returned when encoding a packet without a timestamp.
var ErrInvalidPacket = errors.New("packet timestamp must be positive")

// Packet is an immutable timestamped payload.
type Packet struct {
	timestamp clock.Time
	payload   string
}

// New creates a packet carrying the given timestamp and payload token.
func New(timestamp clock.Time, payload string) Packet {
	return Packet{timestamp: timestamp, payload: payload}
}

// Timestamp returns the Lamport time the packet was sent at.
func (p Packet) Timestamp() clock.Time {
	return p.timestamp
}

// Payload returns the opaque payload token.
func (p Packet) Payload() string {
	return p.payload
}

// String returns a short human-readable form used in logs.
func (p Packet) String() string {
	return fmt.Sprintf("{timestamp=%d payload=%s}", p.timestamp, p.payload)
}

func (p Packet) validate() error {
	if p.timestamp == 0 {
		return ErrInvalidPacket
	}
	return nil
}
