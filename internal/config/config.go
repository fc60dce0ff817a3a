package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lamportd/internal/packet"
	"lamportd/internal/transport"
)

const (
	DefaultGroup       = "lamport-cluster"
	DefaultListenAddr  = "127.0.0.1:7946"
	DefaultMeanWait    = 5 * time.Second
	DefaultSendTimeout = 2 * time.Second
)

// Peer represents a peer node in the group.
type Peer struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr"`
}

// Config holds the node configuration.
type Config struct {
	NodeID      string        `yaml:"node_id"`
	Group       string        `yaml:"group"`
	ListenAddr  string        `yaml:"listen"`
	Peers       []Peer        `yaml:"peers"`
	MeanWait    time.Duration `yaml:"mean_wait"`
	SendTimeout time.Duration `yaml:"send_timeout"`
	Codec       string        `yaml:"codec"`
	JournalPath string        `yaml:"journal"`
	Debug       bool          `yaml:"debug"`
}

// Default returns the configuration used when nothing is overridden.
// The node ID is random so that several nodes can start unconfigured.
func Default() Config {
	return Config{
		NodeID:      NewNodeID(),
		Group:       DefaultGroup,
		ListenAddr:  DefaultListenAddr,
		MeanWait:    DefaultMeanWait,
		SendTimeout: DefaultSendTimeout,
		Codec:       packet.CodecProto,
	}
}

// NewNodeID returns a short random node ID.
func NewNodeID() string {
	return "node-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return errors.New("node id cannot be empty")
	}
	if c.Group == "" {
		return errors.New("group cannot be empty")
	}
	if c.ListenAddr == "" {
		return errors.New("listen address cannot be empty")
	}
	if c.MeanWait <= 0 {
		return fmt.Errorf("mean wait must be positive, got %v", c.MeanWait)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("send timeout must be positive, got %v", c.SendTimeout)
	}
	if _, err := packet.NewCodec(c.Codec); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Peers))
	for _, p := range c.Peers {
		if p.ID == "" || p.Addr == "" {
			return fmt.Errorf("peer ID and address cannot be empty: %s=%s", p.ID, p.Addr)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate peer id %s", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// ParsePeers parses a comma-separated list of peers in the format:
// "id1=addr1,id2=addr2,id3=addr3"
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		id := strings.TrimSpace(kv[0])
		addr := strings.TrimSpace(kv[1])

		if id == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		peers = append(peers, Peer{
			ID:   id,
			Addr: addr,
		})
	}

	return peers, nil
}

// BuildPeers converts config peers into transport peers.
// Self is skipped if it appears in the peers list.
func (c *Config) BuildPeers() []transport.Peer {
	peers := make([]transport.Peer, 0, len(c.Peers))
	for _, peer := range c.Peers {
		if peer.ID != c.NodeID {
			peers = append(peers, transport.Peer{
				ID:   peer.ID,
				Addr: peer.Addr,
			})
		}
	}
	return peers
}
