package transport

import (
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ClientManager manages gRPC connections to peer nodes.
type ClientManager struct {
	mu    sync.RWMutex
	conns map[string]*grpc.ClientConn
	opts  []grpc.DialOption
}

// NewClientManager creates a new client manager.
func NewClientManager(opts ...grpc.DialOption) *ClientManager {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &ClientManager{
		conns: make(map[string]*grpc.ClientConn),
		opts:  opts,
	}
}

// GetConn returns a connection to the given address.
// Creates a new connection if one doesn't exist. Connections are
// established lazily, so an unreachable peer only fails at call time.
func (cm *ClientManager) GetConn(addr string) (*grpc.ClientConn, error) {
	cm.mu.RLock()
	conn, exists := cm.conns[addr]
	cm.mu.RUnlock()

	if exists {
		return conn, nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Double-check after acquiring write lock
	if conn, exists := cm.conns[addr]; exists {
		return conn, nil
	}

	conn, err := grpc.NewClient(addr, cm.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", addr, err)
	}

	cm.conns[addr] = conn
	return conn, nil
}

// Close closes all client connections.
func (cm *ClientManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var firstErr error
	for addr, conn := range cm.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close connection to %s: %w", addr, err)
		}
	}
	cm.conns = make(map[string]*grpc.ClientConn)
	return firstErr
}
