package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lamportd/internal/journal"
	"lamportd/internal/packet"
	"lamportd/internal/transport"
)

// fixedScheduler returns the given waits in order, repeating the last one.
type fixedScheduler struct {
	mu       sync.Mutex
	waits    []time.Duration
	payloads int
	err      error
}

func newFixedScheduler(waits ...time.Duration) *fixedScheduler {
	return &fixedScheduler{waits: waits}
}

func (s *fixedScheduler) NextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.waits[0]
	if len(s.waits) > 1 {
		s.waits = s.waits[1:]
	}
	return w
}

func (s *fixedScheduler) Payload() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.payloads++
	return fmt.Sprintf("p%d", s.payloads), nil
}

type sentPacket struct {
	packet packet.Packet
	at     time.Time
}

// fakeGroup is an in-memory transport.Group recording sends and closes.
type fakeGroup struct {
	codec packet.Codec

	connectErr error
	sendErrs   []error // consumed one per Send; nil entries succeed
	panicSend  bool

	mu       sync.Mutex
	receiver transport.Receiver
	sent     []sentPacket
	closes   atomic.Int32
	sentCh   chan sentPacket
}

func newFakeGroup() *fakeGroup {
	return &fakeGroup{
		codec:  packet.ProtoCodec{},
		sentCh: make(chan sentPacket, 64),
	}
}

func (g *fakeGroup) Connect(ctx context.Context, groupID string) error {
	if g.connectErr != nil {
		return &transport.ConnectError{Group: groupID, Err: g.connectErr}
	}
	return nil
}

func (g *fakeGroup) SetReceiver(r transport.Receiver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.receiver = r
}

func (g *fakeGroup) Send(ctx context.Context, data []byte) error {
	if g.panicSend {
		panic("send exploded")
	}

	g.mu.Lock()
	var err error
	if len(g.sendErrs) > 0 {
		err, g.sendErrs = g.sendErrs[0], g.sendErrs[1:]
	}
	g.mu.Unlock()

	p, decodeErr := g.codec.Decode(data)
	if decodeErr != nil {
		return decodeErr
	}
	s := sentPacket{packet: p, at: time.Now()}

	g.mu.Lock()
	g.sent = append(g.sent, s)
	g.mu.Unlock()
	g.sentCh <- s

	if err != nil {
		return &transport.SendError{Err: err}
	}
	return nil
}

func (g *fakeGroup) Close() error {
	g.closes.Add(1)
	return nil
}

// deliver invokes the registered receiver as a transport goroutine would.
func (g *fakeGroup) deliver(ctx context.Context, data []byte) {
	g.mu.Lock()
	r := g.receiver
	g.mu.Unlock()
	r(ctx, data)
}

func (g *fakeGroup) sentTimestamps() []uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts := make([]uint64, 0, len(g.sent))
	for _, s := range g.sent {
		ts = append(ts, uint64(s.packet.Timestamp()))
	}
	return ts
}

// recordingSink collects journal events in memory.
type recordingSink struct {
	mu     sync.Mutex
	events []journal.Event
}

func (s *recordingSink) Record(ctx context.Context, e journal.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) snapshot() []journal.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]journal.Event(nil), s.events...)
}

func (s *recordingSink) ofKind(kind journal.Kind) []journal.Event {
	var out []journal.Event
	for _, e := range s.snapshot() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

var errBoom = errors.New("boom")
