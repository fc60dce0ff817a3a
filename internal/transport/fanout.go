package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DeliverFunc delivers one message to a single peer.
type DeliverFunc func(ctx context.Context, peer Peer) error

// FanoutResult is the outcome of delivering one message to a peer set.
type FanoutResult struct {
	Acks     int
	Required int
	Peers    int
	Errs     []error
}

// Success reports whether enough peers acknowledged. An empty peer set
// trivially succeeds.
func (r FanoutResult) Success() bool {
	return r.Peers == 0 || r.Acks >= r.Required
}

// Err returns nil on success and the joined per-peer errors otherwise.
func (r FanoutResult) Err() error {
	if r.Success() {
		return nil
	}
	if len(r.Errs) == 0 {
		return fmt.Errorf("acks=%d required=%d peers=%d", r.Acks, r.Required, r.Peers)
	}
	return errors.Join(r.Errs...)
}

// Fanout calls deliver for every peer in parallel and waits for all of
// them. required <= 0 means one acknowledgement.
func Fanout(ctx context.Context, peers []Peer, required int, deliver DeliverFunc) FanoutResult {
	if required <= 0 {
		required = 1
	}
	if required > len(peers) && len(peers) > 0 {
		required = len(peers)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		acks int
		errs []error
	)
	for _, peer := range peers {
		wg.Add(1)
		go func(p Peer) {
			defer wg.Done()

			err := deliver(ctx, p)
			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				acks++
				return
			}
			errs = append(errs, fmt.Errorf("peer %s: %w", p.ID, err))
		}(peer)
	}
	wg.Wait()

	return FanoutResult{
		Acks:     acks,
		Required: required,
		Peers:    len(peers),
		Errs:     errs,
	}
}
