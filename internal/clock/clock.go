package clock

import "strconv"

// Time is a Lamport timestamp.
type Time uint64

// String returns the decimal representation of the timestamp.
func (t Time) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

// Lamport is a Lamport logical clock.
// It has a single owner and is not safe for concurrent use; callers that
// share a clock across goroutines must serialize access themselves.
type Lamport struct {
	time Time
}

// New creates a new clock starting at zero.
func New() *Lamport {
	return &Lamport{}
}

// Now returns the current value without advancing the clock.
func (c *Lamport) Now() Time {
	return c.time
}

// Tick advances the clock for a local event and returns the new value.
// The returned value is the timestamp of the outgoing packet.
func (c *Lamport) Tick() Time {
	c.time++
	return c.time
}

// Observe advances the clock for a received timestamp, applying
// C = max(C+1, remote), and returns the new value.
func (c *Lamport) Observe(remote Time) Time {
	c.time++
	if c.time < remote {
		c.time = remote
	}
	return c.time
}
