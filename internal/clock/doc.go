// Package clock provides the Lamport logical clock used to order events
// across the peer group. The clock advances on local events (Tick) and on
// received timestamps (Observe), so causally related events always carry
// strictly increasing values.
package clock
