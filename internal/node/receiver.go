package node

import (
	"context"

	"lamportd/internal/handoff"
	"lamportd/internal/journal"
	"lamportd/internal/logging"
	"lamportd/internal/packet"
)

// receiver is the transport callback. It decodes deliveries and hands them
// to the loop; it never touches the clock.
type receiver struct {
	nodeID string
	codec  packet.Codec
	queue  *handoff.Queue[packet.Packet]
	sink   journal.Sink
	logger *logging.Logger
}

// receive runs on the transport's delivery goroutine and blocks until the
// loop takes the packet.
func (r *receiver) receive(ctx context.Context, data []byte) {
	p, err := r.codec.Decode(data)
	if err != nil {
		r.logger.Errorf("Cannot decode packet (%d bytes): %v", len(data), err)
		r.record(ctx, journal.Event{Kind: journal.Dropped, Detail: err.Error()})
		return
	}

	r.logger.Debugf("Handing off %v", p)
	if err := r.queue.Put(ctx, p); err != nil {
		r.logger.Debugf("Dropped %v: %v", p, err)
	}
}

func (r *receiver) record(ctx context.Context, e journal.Event) {
	e.NodeID = r.nodeID
	if err := r.sink.Record(context.WithoutCancel(ctx), e); err != nil {
		r.logger.Warnf("Cannot journal event: %v", err)
	}
}
