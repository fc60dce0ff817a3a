package clock

import (
	"math/rand/v2"
	"testing"
)

// TestLamport_Property_TickStrictlyIncreasing tests that successive ticks never repeat
func TestLamport_Property_TickStrictlyIncreasing(t *testing.T) {
	c := New()
	var last Time
	for i := 0; i < 1000; i++ {
		got := c.Tick()
		if got <= last {
			t.Fatalf("Tick did not increase: previous=%d, current=%d", last, got)
		}
		last = got
	}
}

// TestLamport_Property_ObserveIsMax tests observe(r) == max(c+1, r) over random inputs
func TestLamport_Property_ObserveIsMax(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		current := Time(rng.Uint64N(1 << 20))
		remote := Time(rng.Uint64N(1 << 20))

		c := &Lamport{time: current}
		got := c.Observe(remote)

		want := max(current+1, remote)
		if got != want {
			t.Fatalf("Observe(%d) at %d: expected %d, got %d", remote, current, want, got)
		}
	}
}

// TestLamport_Property_MixedEventsMonotonic tests the clock strictly increases on every event
func TestLamport_Property_MixedEventsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	c := New()
	last := c.Now()
	for i := 0; i < 1000; i++ {
		var got Time
		if rng.IntN(2) == 0 {
			got = c.Tick()
		} else {
			got = c.Observe(Time(rng.Uint64N(2000)))
		}
		if got <= last {
			t.Fatalf("Clock did not advance: previous=%d, current=%d", last, got)
		}
		last = got
	}
}

// TestLamport_Property_HappenedBefore tests the two-process send/receive exchange
func TestLamport_Property_HappenedBefore(t *testing.T) {
	a := New()
	b := New()

	sentByA := a.Tick()
	if sentByA != 1 {
		t.Fatalf("Expected A's first send at 1, got %d", sentByA)
	}

	receivedByB := b.Observe(sentByA)
	if receivedByB != 1 {
		t.Errorf("Expected B to observe 1, got %d", receivedByB)
	}

	sentByB := b.Tick()
	if sentByB != 2 {
		t.Fatalf("Expected B's send at 2, got %d", sentByB)
	}

	receivedByA := a.Observe(sentByB)
	if receivedByA != 2 {
		t.Errorf("Expected A to observe 2, got %d", receivedByA)
	}
	if receivedByA <= sentByA {
		t.Errorf("Receive at %d must follow send at %d", receivedByA, sentByA)
	}
}
