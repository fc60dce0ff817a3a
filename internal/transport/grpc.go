package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"lamportd/internal/logging"
)

// GRPC is a Group transport where every node serves the lamport.v1.Group
// service and multicasts by calling Deliver on each static peer.
type GRPC struct {
	nodeID     string
	listenAddr string
	peers      []Peer
	logger     *logging.Logger

	listener   net.Listener
	grpcServer *grpc.Server
	clientMgr  *ClientManager
	inbox      *inbox

	mu        sync.RWMutex
	group     string
	connected bool
	closed    bool
	serveWg   sync.WaitGroup
}

// GRPCOption customizes a GRPC transport.
type GRPCOption func(*GRPC)

// WithListener serves on an already bound listener instead of listenAddr.
func WithListener(lis net.Listener) GRPCOption {
	return func(t *GRPC) {
		t.listener = lis
	}
}

// WithLogger sets the transport logger.
func WithLogger(l *logging.Logger) GRPCOption {
	return func(t *GRPC) {
		t.logger = l
	}
}

// NewGRPC creates a gRPC transport for nodeID. Peers whose ID equals
// nodeID are ignored.
func NewGRPC(nodeID, listenAddr string, peers []Peer, opts ...GRPCOption) *GRPC {
	others := make([]Peer, 0, len(peers))
	for _, p := range peers {
		if p.ID != nodeID {
			others = append(others, p)
		}
	}

	t := &GRPC{
		nodeID:     nodeID,
		listenAddr: listenAddr,
		peers:      others,
		logger:     logging.Discard(),
		clientMgr:  NewClientManager(),
		inbox:      newInbox(defaultInboxSize),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Addr returns the address the transport listens on, or nil before Connect.
func (t *GRPC) Addr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener == nil || !t.connected {
		return nil
	}
	return t.listener.Addr()
}

// Connect starts serving and joins the group.
func (t *GRPC) Connect(ctx context.Context, groupID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &ConnectError{Group: groupID, Err: ErrClosed}
	}
	if t.connected {
		return &ConnectError{Group: groupID, Err: errors.New("already connected")}
	}
	if groupID == "" {
		return &ConnectError{Group: groupID, Err: errors.New("group id cannot be empty")}
	}
	if err := ctx.Err(); err != nil {
		return &ConnectError{Group: groupID, Err: err}
	}

	if t.listener == nil {
		var lc net.ListenConfig
		lis, err := lc.Listen(ctx, "tcp", t.listenAddr)
		if err != nil {
			return &ConnectError{Group: groupID, Err: fmt.Errorf("failed to listen on %s: %w", t.listenAddr, err)}
		}
		t.listener = lis
	}

	t.group = groupID
	t.grpcServer = grpc.NewServer()
	t.grpcServer.RegisterService(&groupServiceDesc, &groupHandler{t: t})

	// Enable gRPC reflection for grpcurl
	reflection.Register(t.grpcServer)

	t.inbox.start()

	lis, server := t.listener, t.grpcServer
	t.serveWg.Add(1)
	go func() {
		defer t.serveWg.Done()
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.logger.Errorf("gRPC server stopped: %v", err)
		}
	}()

	t.connected = true
	t.logger.Infof("Joined group %s on %s with %d peers", groupID, lis.Addr(), len(t.peers))
	return nil
}

// SetReceiver registers the delivery callback.
func (t *GRPC) SetReceiver(r Receiver) {
	t.inbox.setReceiver(r)
}

// Send calls Deliver on every peer in parallel. It fails only if every
// peer failed.
func (t *GRPC) Send(ctx context.Context, data []byte) error {
	t.mu.RLock()
	connected, group := t.connected && !t.closed, t.group
	t.mu.RUnlock()

	if !connected {
		return &SendError{Err: ErrNotConnected}
	}
	if len(t.peers) == 0 {
		t.logger.Debugf("No peers configured, nothing to send")
		return nil
	}

	ctx = metadata.AppendToOutgoingContext(ctx,
		groupMetadataKey, group,
		senderMetadataKey, t.nodeID,
	)

	res := Fanout(ctx, t.peers, 1, func(ctx context.Context, peer Peer) error {
		err := t.sendTo(ctx, peer, data)
		if err != nil {
			t.logger.Debugf("Delivery to %s (%s) failed: %v", peer.ID, peer.Addr, err)
		}
		return err
	})
	if !res.Success() {
		return &SendError{Err: res.Err()}
	}
	if res.Acks < res.Peers {
		t.logger.Warnf("Delivered to %d/%d peers", res.Acks, res.Peers)
	}
	return nil
}

func (t *GRPC) sendTo(ctx context.Context, peer Peer, data []byte) error {
	conn, err := t.clientMgr.GetConn(peer.Addr)
	if err != nil {
		return err
	}
	return deliver(ctx, conn, data)
}

// Close stops serving, closes peer connections and stops deliveries.
func (t *GRPC) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	server, lis := t.grpcServer, t.listener
	t.mu.Unlock()

	// Stop deliveries first so handlers blocked on a full inbox return.
	t.inbox.stop()

	if server != nil {
		server.Stop()
		t.serveWg.Wait()
	} else if lis != nil {
		lis.Close()
	}

	t.logger.Infof("Left group %s", t.group)
	return t.clientMgr.Close()
}

// groupHandler serves lamport.v1.Group for a transport.
type groupHandler struct {
	t *GRPC
}

// Deliver handles a multicast from a peer.
func (h *groupHandler) Deliver(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	group := firstValue(md, groupMetadataKey)
	sender := firstValue(md, senderMetadataKey)

	h.t.mu.RLock()
	localGroup := h.t.group
	h.t.mu.RUnlock()

	if group != localGroup {
		return nil, status.Errorf(codes.PermissionDenied, "group %q does not match %q", group, localGroup)
	}
	if sender == h.t.nodeID {
		// Own message looped back through the peer list.
		return &emptypb.Empty{}, nil
	}

	if err := h.t.inbox.offer(ctx, req.GetValue()); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil, status.Error(codes.Unavailable, "node is shutting down")
		}
		return nil, status.FromContextError(err).Err()
	}

	h.t.logger.Debugf("Accepted %d bytes from %s", len(req.GetValue()), sender)
	return &emptypb.Empty{}, nil
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
