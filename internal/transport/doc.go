// Package transport provides the group transports peers use to multicast
// packets: a gRPC transport for real deployments and an in-process hub for
// tests and local demos. Both discard a node's own messages and hand
// inbound deliveries to a single receiver on a dedicated goroutine.
package transport
