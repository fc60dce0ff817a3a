package it

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lamportd/internal/config"
	"lamportd/internal/journal"
	"lamportd/internal/logging"
	"lamportd/internal/node"
	"lamportd/internal/schedule"
)

// Cluster runs lamportd nodes in-process over loopback gRPC. All members
// share one journal so tests can inspect every event afterwards.
type Cluster struct {
	logDir      string
	journal     *journal.SQLite
	members     []*Member
	stopTimeout time.Duration
	mu          sync.Mutex
}

// Member represents a single node in the test cluster
type Member struct {
	ID   string
	Addr string

	node    *node.Node
	logFile *os.File
	done    chan struct{}
	stats   node.Stats
	err     error
}

// NewCluster creates a cluster harness writing logs and the journal under dir.
func NewCluster(dir string) (*Cluster, error) {
	logDir := filepath.Join(dir, "it-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	j, err := journal.Open(filepath.Join(dir, "journal.db"))
	if err != nil {
		return nil, err
	}

	return &Cluster{
		logDir:      logDir,
		journal:     j,
		stopTimeout: 5 * time.Second,
	}, nil
}

// StartCluster starts n nodes that all know each other. Listeners are bound
// before any node starts so the peer list is complete from the beginning.
func (c *Cluster) StartCluster(ctx context.Context, n int, meanWait time.Duration) error {
	listeners := make([]net.Listener, 0, n)
	peers := make([]config.Peer, 0, n)
	for i := 1; i <= n; i++ {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return fmt.Errorf("failed to bind listener: %w", err)
		}
		listeners = append(listeners, lis)
		peers = append(peers, config.Peer{ID: fmt.Sprintf("n%d", i), Addr: lis.Addr().String()})
	}

	for i, lis := range listeners {
		if err := c.StartNode(ctx, peers[i].ID, lis, peers, meanWait); err != nil {
			for _, l := range listeners[i+1:] {
				l.Close()
			}
			return errors.Join(err, c.Stop())
		}
	}
	return nil
}

// StartNode starts a single node serving on lis.
func (c *Cluster) StartNode(ctx context.Context, nodeID string, lis net.Listener, peers []config.Peer, meanWait time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	logFile, err := os.Create(filepath.Join(c.logDir, nodeID+".log"))
	if err != nil {
		lis.Close()
		return fmt.Errorf("failed to create log file: %w", err)
	}

	cfg := config.Default()
	cfg.NodeID = nodeID
	cfg.ListenAddr = lis.Addr().String()
	cfg.Peers = peers
	cfg.MeanWait = meanWait
	cfg.SendTimeout = time.Second

	n, err := node.NewGRPC(cfg,
		node.WithListener(lis),
		node.WithSink(c.journal),
		node.WithScheduler(schedule.New(meanWait)),
		node.WithLogger(logging.New(logFile, nodeID, logging.DEBUG)))
	if err != nil {
		lis.Close()
		logFile.Close()
		return fmt.Errorf("failed to create node %s: %w", nodeID, err)
	}

	m := &Member{
		ID:      nodeID,
		Addr:    cfg.ListenAddr,
		node:    n,
		logFile: logFile,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(m.done)
		m.stats, m.err = n.Run(ctx)
	}()

	c.members = append(c.members, m)
	return nil
}

// Member returns a member by ID.
func (c *Cluster) Member(nodeID string) *Member {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.members {
		if m.ID == nodeID {
			return m
		}
	}
	return nil
}

// Members returns the started members in start order.
func (c *Cluster) Members() []*Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Member(nil), c.members...)
}

// Events returns the journaled events of a member.
func (c *Cluster) Events(ctx context.Context, nodeID string) ([]journal.Event, error) {
	return c.journal.Events(ctx, nodeID)
}

// Stop stops every member and reports those that did not stop in time.
// The journal stays readable until Close.
func (c *Cluster) Stop() error {
	var errs []error
	for _, m := range c.Members() {
		if err := m.Stop(c.stopTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops the cluster and closes the journal.
func (c *Cluster) Close() error {
	return errors.Join(c.Stop(), c.journal.Close())
}

// Stop asks the member to stop and waits up to timeout for Run to return.
func (m *Member) Stop(timeout time.Duration) error {
	m.node.Stop()
	select {
	case <-m.done:
	case <-time.After(timeout):
		return fmt.Errorf("node %s did not stop within %v", m.ID, timeout)
	}
	if m.logFile != nil {
		m.logFile.Close()
		m.logFile = nil
	}
	return nil
}

// Result returns the outcome of Run. It is only meaningful after Stop.
func (m *Member) Result() (node.Stats, error) {
	<-m.done
	return m.stats, m.err
}
