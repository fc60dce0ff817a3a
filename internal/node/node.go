// Package node wires a Lamport clock synchronization node: the group
// transport, the packet codec, the handoff queue between the transport and
// the control loop, and the loop itself.
package node

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"lamportd/internal/clock"
	"lamportd/internal/config"
	"lamportd/internal/handoff"
	"lamportd/internal/journal"
	"lamportd/internal/logging"
	"lamportd/internal/packet"
	"lamportd/internal/schedule"
	"lamportd/internal/transport"
)

// Node represents a single process in the peer group.
type Node struct {
	cfg       config.Config
	transport transport.Group
	queue     *handoff.Queue[packet.Packet]
	loop      *Loop
	sink      journal.Sink
	ownsSink  bool
	logger    *logging.Logger

	runOnce     sync.Once
	releaseOnce sync.Once
}

// Option customizes a Node.
type Option func(*options)

type options struct {
	scheduler Scheduler
	sink      journal.Sink
	logger    *logging.Logger
	clock     *clock.Lamport
	listener  net.Listener
}

// WithScheduler replaces the exponential scheduler.
func WithScheduler(s Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithSink replaces the journal configured by JournalPath. The caller
// keeps ownership of s.
func WithSink(s journal.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithLogger sets the node logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock starts the node from the given clock instead of zero.
func WithClock(c *clock.Lamport) Option {
	return func(o *options) { o.clock = c }
}

// WithListener makes NewGRPC serve on an already bound listener.
func WithListener(lis net.Listener) Option {
	return func(o *options) { o.listener = lis }
}

// New creates a node on top of an unconnected group transport.
func New(cfg config.Config, group transport.Group, opts ...Option) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := packet.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewStd(cfg.NodeID, cfg.Debug)
	}
	if o.scheduler == nil {
		s := schedule.New(cfg.MeanWait)
		o.logger.Debugf("Exponential schedule with mean %v", s.Mean())
		o.scheduler = s
	}
	ownsSink := false
	if o.sink == nil {
		if cfg.JournalPath != "" {
			j, err := journal.Open(cfg.JournalPath)
			if err != nil {
				return nil, err
			}
			o.sink = j
			ownsSink = true
		} else {
			o.sink = journal.Nop{}
		}
	}

	queue := handoff.New[packet.Packet]()
	n := &Node{
		cfg:       cfg,
		transport: group,
		queue:     queue,
		sink:      o.sink,
		ownsSink:  ownsSink,
		logger:    o.logger,
	}

	recv := &receiver{
		nodeID: cfg.NodeID,
		codec:  codec,
		queue:  queue,
		sink:   o.sink,
		logger: o.logger.WithPostfix("recv"),
	}
	group.SetReceiver(recv.receive)

	n.loop = NewLoop(LoopDeps{
		NodeID:      cfg.NodeID,
		Clock:       o.clock,
		Scheduler:   o.scheduler,
		Queue:       queue,
		Codec:       codec,
		Sender:      group,
		Sink:        o.sink,
		Logger:      o.logger.WithPostfix("loop"),
		SendTimeout: cfg.SendTimeout,
	})

	return n, nil
}

// NewGRPC creates a node using the gRPC group transport described by cfg.
func NewGRPC(cfg config.Config, opts ...Option) (*Node, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = logging.NewStd(cfg.NodeID, cfg.Debug)
		opts = append(opts, WithLogger(logger))
	}

	grpcOpts := []transport.GRPCOption{transport.WithLogger(logger.WithPostfix("grpc"))}
	if o.listener != nil {
		grpcOpts = append(grpcOpts, transport.WithListener(o.listener))
	}
	group := transport.NewGRPC(cfg.NodeID, cfg.ListenAddr, cfg.BuildPeers(), grpcOpts...)
	return New(cfg, group, opts...)
}

// ID returns the node ID.
func (n *Node) ID() string {
	return n.cfg.NodeID
}

// Run connects to the group and runs the loop until Stop is called or ctx
// is done. A connection failure is returned as *transport.ConnectError
// before the loop starts. The transport is closed exactly once on every
// return path, panics included. Run may be called only once.
func (n *Node) Run(ctx context.Context) (Stats, error) {
	var (
		stats Stats
		err   error
		ran   bool
	)
	n.runOnce.Do(func() {
		ran = true
		defer n.release()

		if err = n.transport.Connect(ctx, n.cfg.Group); err != nil {
			n.logger.Errorf("Cannot connect to group %s: %v", n.cfg.Group, err)
			return
		}
		if a, ok := n.transport.(interface{ Addr() net.Addr }); ok && a.Addr() != nil {
			n.logger.Infof("Connected to group %s on %s", n.cfg.Group, a.Addr())
		} else {
			n.logger.Infof("Connected to group %s", n.cfg.Group)
		}

		stats = n.loop.Run(ctx)
	})
	if !ran {
		return Stats{}, errAlreadyRan
	}
	return stats, err
}

// Stop asks the loop to exit after its current iteration.
func (n *Node) Stop() {
	n.loop.Stop()
}

// release closes the queue, the transport and a journal opened by New.
func (n *Node) release() {
	n.releaseOnce.Do(func() {
		n.queue.Close()
		if err := n.transport.Close(); err != nil {
			n.logger.Warnf("Cannot close transport: %v", err)
		}
		if c, ok := n.sink.(io.Closer); ok && n.ownsSink {
			if err := c.Close(); err != nil {
				n.logger.Warnf("Cannot close journal: %v", err)
			}
		}
		n.logger.Infof("Closed operations")
	})
}

var errAlreadyRan = errors.New("node already ran")
