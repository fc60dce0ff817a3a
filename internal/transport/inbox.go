package transport

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultInboxSize = 64

// inbox decouples inbound deliveries from the receiver. A single goroutine
// drains it, so the receiver is never called concurrently and a slow
// receiver stalls further deliveries once the buffer fills.
type inbox struct {
	messages chan []byte
	receiver atomic.Pointer[Receiver]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newInbox(size int) *inbox {
	if size <= 0 {
		size = defaultInboxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &inbox{
		messages: make(chan []byte, size),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (in *inbox) setReceiver(r Receiver) {
	in.receiver.Store(&r)
}

func (in *inbox) start() {
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		for {
			select {
			case <-in.ctx.Done():
				return
			case data := <-in.messages:
				if r := in.receiver.Load(); r != nil && *r != nil {
					(*r)(in.ctx, data)
				}
			}
		}
	}()
}

// offer queues data for delivery, blocking while the buffer is full.
func (in *inbox) offer(ctx context.Context, data []byte) error {
	select {
	case <-in.ctx.Done():
		return ErrClosed
	default:
	}

	select {
	case in.messages <- data:
		return nil
	case <-in.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (in *inbox) stop() {
	in.cancel()
	in.wg.Wait()
}
