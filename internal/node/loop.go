package node

import (
	"context"
	"sync/atomic"
	"time"

	"lamportd/internal/clock"
	"lamportd/internal/handoff"
	"lamportd/internal/journal"
	"lamportd/internal/logging"
	"lamportd/internal/packet"
)

// Scheduler draws the cadence and payloads of self-generated events.
type Scheduler interface {
	NextWait() time.Duration
	Payload() (string, error)
}

// Sender multicasts encoded packets.
type Sender interface {
	Send(ctx context.Context, data []byte) error
}

// State is the lifecycle state of a Loop.
type State int32

const (
	Running State = iota
	Stopping
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// Stats counts the events of one run.
type Stats struct {
	Sent         int
	SendFailures int
	Received     int
}

// LoopDeps are the collaborators of a Loop.
type LoopDeps struct {
	NodeID      string
	Clock       *clock.Lamport
	Scheduler   Scheduler
	Queue       *handoff.Queue[packet.Packet]
	Codec       packet.Codec
	Sender      Sender
	Sink        journal.Sink
	Logger      *logging.Logger
	SendTimeout time.Duration
	Now         func() time.Time
}

// Loop is the clock synchronization loop. The clock and the pending wait
// are only touched by the goroutine executing Run.
type Loop struct {
	deps LoopDeps

	state     atomic.Int32
	interrupt chan struct{}
	stats     Stats
}

// NewLoop creates a loop in the Running state.
func NewLoop(deps LoopDeps) *Loop {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Sink == nil {
		deps.Sink = journal.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Loop{
		deps:      deps,
		interrupt: make(chan struct{}, 1),
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stop sets the stop flag and interrupts a blocked wait. It is safe to
// call from any goroutine, any number of times.
func (l *Loop) Stop() {
	l.state.Store(int32(Stopping))
	select {
	case l.interrupt <- struct{}{}:
	default:
	}
}

// Run executes the loop until Stop is called or ctx is done, and returns
// the run's counters. Run must be called at most once.
func (l *Loop) Run(ctx context.Context) Stats {
	unwatch := context.AfterFunc(ctx, l.Stop)
	defer unwatch()

	wait := l.deps.Scheduler.NextWait()
	mark := l.deps.Now()
	l.deps.Logger.Debugf("First event in %v", wait)

	for l.State() == Running {
		p, res := l.deps.Queue.Poll(wait, l.interrupt)
		if res == handoff.Received {
			l.observe(ctx, p)
		}

		now := l.deps.Now()
		wait -= now.Sub(mark)
		mark = now

		if l.State() != Running {
			break
		}
		if res == handoff.Interrupted {
			// Spurious interrupt; the remaining wait is already charged.
			continue
		}

		if wait <= 0 {
			l.emit(ctx)
			wait = l.deps.Scheduler.NextWait()
			l.deps.Logger.Debugf("Next event in %v", wait)
		}
	}

	l.deps.Logger.Infof("Stopped at clock %d (sent=%d failed=%d received=%d)",
		l.deps.Clock.Now(), l.stats.Sent, l.stats.SendFailures, l.stats.Received)
	return l.stats
}

// observe applies a received packet to the clock.
func (l *Loop) observe(ctx context.Context, p packet.Packet) {
	before := l.deps.Clock.Now()
	after := l.deps.Clock.Observe(p.Timestamp())
	l.stats.Received++

	l.deps.Logger.Infof("Received %v", p)
	if before+1 < after {
		l.deps.Logger.Infof("Adjusting clock from %d to %d", before+1, after)
	}

	l.record(ctx, journal.Event{
		Kind:      journal.Received,
		Timestamp: p.Timestamp(),
		Clock:     after,
		Payload:   p.Payload(),
	})
}

// emit generates, encodes and multicasts the next local event. Failures
// drop the event without stopping the loop.
func (l *Loop) emit(ctx context.Context) {
	payload, err := l.deps.Scheduler.Payload()
	if err != nil {
		l.deps.Logger.Errorf("Cannot draw payload: %v", err)
		l.stats.SendFailures++
		return
	}

	p := packet.New(l.deps.Clock.Tick(), payload)
	data, err := l.deps.Codec.Encode(p)
	if err != nil {
		l.deps.Logger.Errorf("Cannot encode %v: %v", p, err)
		l.stats.SendFailures++
		l.record(ctx, journal.Event{Kind: journal.Dropped, Timestamp: p.Timestamp(), Clock: p.Timestamp(), Payload: payload, Detail: err.Error()})
		return
	}

	// In-flight sends are bounded by the timeout, never cancelled by shutdown.
	sendCtx := context.WithoutCancel(ctx)
	if l.deps.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, l.deps.SendTimeout)
		defer cancel()
	}

	if err := l.deps.Sender.Send(sendCtx, data); err != nil {
		l.deps.Logger.Errorf("Cannot send %v: %v", p, err)
		l.stats.SendFailures++
		l.record(ctx, journal.Event{Kind: journal.Dropped, Timestamp: p.Timestamp(), Clock: p.Timestamp(), Payload: payload, Detail: err.Error()})
		return
	}

	l.stats.Sent++
	l.deps.Logger.Infof("Sent %v", p)
	l.record(ctx, journal.Event{
		Kind:      journal.Sent,
		Timestamp: p.Timestamp(),
		Clock:     p.Timestamp(),
		Payload:   payload,
	})
}

func (l *Loop) record(ctx context.Context, e journal.Event) {
	e.NodeID = l.deps.NodeID
	if err := l.deps.Sink.Record(context.WithoutCancel(ctx), e); err != nil {
		l.deps.Logger.Warnf("Cannot journal event: %v", err)
	}
}
