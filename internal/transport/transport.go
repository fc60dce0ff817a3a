package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send before Connect succeeds.
	ErrNotConnected = errors.New("transport not connected")
	// ErrClosed is returned once the transport has been closed.
	ErrClosed = errors.New("transport closed")
)

// Receiver is invoked for every message delivered from another member.
// ctx is cancelled when the transport closes.
type Receiver func(ctx context.Context, data []byte)

// Group is a multicast group transport.
type Group interface {
	// Connect joins the named group. Failure is reported as *ConnectError.
	Connect(ctx context.Context, groupID string) error
	// SetReceiver registers the delivery callback, replacing any previous one.
	SetReceiver(r Receiver)
	// Send multicasts data to every other member. Failure is reported as
	// *SendError.
	Send(ctx context.Context, data []byte) error
	// Close leaves the group and releases resources.
	Close() error
}

// Peer is a statically configured group member.
type Peer struct {
	ID   string
	Addr string
}

// ConnectError reports a failure to join a group.
type ConnectError struct {
	Group string
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to group %s: %v", e.Group, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// SendError reports a multicast that reached no member.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
