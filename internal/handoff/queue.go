package handoff

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Put once the queue is closed.
var ErrClosed = errors.New("handoff queue closed")

// Result describes how a Poll call ended.
type Result int

const (
	// Received means an item was taken from a producer.
	Received Result = iota
	// TimedOut means the timeout elapsed without an item.
	TimedOut
	// Interrupted means the interrupt channel fired first.
	Interrupted
)

// String returns the string representation of Result.
func (r Result) String() string {
	switch r {
	case Received:
		return "RECEIVED"
	case TimedOut:
		return "TIMED_OUT"
	case Interrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// Queue is a synchronous handoff: Put blocks until the consumer takes the
// item, so at most one item is ever in flight.
type Queue[T any] struct {
	items     chan T
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an open queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make(chan T),
		done:  make(chan struct{}),
	}
}

// Put hands item to the consumer, blocking until it is taken, ctx is done,
// or the queue is closed.
func (q *Queue[T]) Put(ctx context.Context, item T) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.items <- item:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll waits up to timeout for an item. A non-positive timeout only takes
// an item a producer is already offering. A nil interrupt never fires.
func (q *Queue[T]) Poll(timeout time.Duration, interrupt <-chan struct{}) (T, Result) {
	var zero T

	if timeout <= 0 {
		select {
		case item := <-q.items:
			return item, Received
		case <-interrupt:
			return zero, Interrupted
		default:
			return zero, TimedOut
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-q.items:
		return item, Received
	case <-interrupt:
		return zero, Interrupted
	case <-timer.C:
		return zero, TimedOut
	}
}

// Close releases blocked producers; later Puts fail with ErrClosed.
// Close is idempotent.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
