package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Hub is an in-process group substrate. Members joined from the same Hub
// exchange messages without any network.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[string]*HubMember // group -> id -> member
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		groups: make(map[string]map[string]*HubMember),
	}
}

// Join creates a transport for the member with the given ID.
// The member becomes reachable once Connect succeeds.
func (h *Hub) Join(id string) *HubMember {
	return &HubMember{
		hub:   h,
		id:    id,
		inbox: newInbox(defaultInboxSize),
	}
}

// Members returns the IDs connected to a group.
func (h *Hub) Members(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) add(group string, m *HubMember) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, exists := h.groups[group]
	if !exists {
		members = make(map[string]*HubMember)
		h.groups[group] = members
	}
	if _, taken := members[m.id]; taken {
		return fmt.Errorf("member %s already in group", m.id)
	}
	members[m.id] = m
	return nil
}

func (h *Hub) remove(group string, m *HubMember) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, exists := h.groups[group]; exists && members[m.id] == m {
		delete(members, m.id)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// others returns every member of group except self.
func (h *Hub) others(group string, self *HubMember) []*HubMember {
	h.mu.RLock()
	defer h.mu.RUnlock()

	peers := make([]*HubMember, 0, len(h.groups[group]))
	for _, m := range h.groups[group] {
		if m != self {
			peers = append(peers, m)
		}
	}
	return peers
}

// HubMember is a Group transport backed by a Hub.
type HubMember struct {
	hub   *Hub
	id    string
	inbox *inbox

	mu        sync.Mutex
	group     string
	connected bool
	closed    bool
}

// ID returns the member ID.
func (m *HubMember) ID() string {
	return m.id
}

// Connect joins the group on the hub.
func (m *HubMember) Connect(ctx context.Context, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &ConnectError{Group: groupID, Err: ErrClosed}
	}
	if m.connected {
		return &ConnectError{Group: groupID, Err: errors.New("already connected")}
	}
	if groupID == "" {
		return &ConnectError{Group: groupID, Err: errors.New("group id cannot be empty")}
	}
	if err := ctx.Err(); err != nil {
		return &ConnectError{Group: groupID, Err: err}
	}
	if err := m.hub.add(groupID, m); err != nil {
		return &ConnectError{Group: groupID, Err: err}
	}

	m.group = groupID
	m.connected = true
	m.inbox.start()
	return nil
}

// SetReceiver registers the delivery callback.
func (m *HubMember) SetReceiver(r Receiver) {
	m.inbox.setReceiver(r)
}

// Send delivers data to every other member of the group. It fails only if
// no member accepted the message.
func (m *HubMember) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	connected, group := m.connected && !m.closed, m.group
	m.mu.Unlock()

	if !connected {
		return &SendError{Err: ErrNotConnected}
	}

	members := m.hub.others(group, m)
	byID := make(map[string]*HubMember, len(members))
	peers := make([]Peer, 0, len(members))
	for _, peer := range members {
		byID[peer.id] = peer
		peers = append(peers, Peer{ID: peer.id})
	}

	res := Fanout(ctx, peers, 1, func(ctx context.Context, p Peer) error {
		return byID[p.ID].inbox.offer(ctx, append([]byte(nil), data...))
	})
	if !res.Success() {
		return &SendError{Err: res.Err()}
	}
	return nil
}

// Close leaves the group and stops deliveries.
func (m *HubMember) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	connected, group := m.connected, m.group
	m.mu.Unlock()

	if connected {
		m.hub.remove(group, m)
	}
	m.inbox.stop()
	return nil
}
