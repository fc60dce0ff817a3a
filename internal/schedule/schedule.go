package schedule

import (
	crand "crypto/rand"
	"encoding/binary"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"time"
)

// DefaultMeanWait is the mean delay between self-generated events.
const DefaultMeanWait = 5 * time.Second

// Scheduler draws event delays and payload tokens.
// It is used only by the control loop and is not safe for concurrent use.
type Scheduler struct {
	mean    time.Duration
	rng     *rand.Rand
	entropy io.Reader
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithRand sets the generator used for delay draws.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) {
		s.rng = rng
	}
}

// WithEntropy sets the source used for payload tokens.
func WithEntropy(r io.Reader) Option {
	return func(s *Scheduler) {
		s.entropy = r
	}
}

// New creates a scheduler with the given mean delay.
// Delays come from a ChaCha8 generator seeded from crypto/rand; payload
// tokens are read from crypto/rand directly.
func New(mean time.Duration, opts ...Option) *Scheduler {
	if mean <= 0 {
		mean = DefaultMeanWait
	}

	s := &Scheduler{
		mean:    mean,
		entropy: crand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		var seed [32]byte
		if _, err := io.ReadFull(crand.Reader, seed[:]); err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		s.rng = rand.New(rand.NewChaCha8(seed))
	}
	return s
}

// Mean returns the configured mean delay.
func (s *Scheduler) Mean() time.Duration {
	return s.mean
}

// NextWait returns the delay until the next self-generated event, rounded
// to whole milliseconds. Zero means fire immediately.
func (s *Scheduler) NextWait() time.Duration {
	return waitFor(s.rng.Float64(), s.mean)
}

// waitFor maps a uniform variate u in [0,1) to an exponential delay with
// the given mean.
func waitFor(u float64, mean time.Duration) time.Duration {
	meanMs := float64(mean) / float64(time.Millisecond)
	t := math.Round(-math.Log(1-u) * meanMs)
	if t < 0 || math.IsNaN(t) {
		t = 0
	}
	if t > math.MaxInt64/float64(time.Millisecond) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(t) * time.Millisecond
}

// Payload returns a fresh 64-bit random token rendered in hex.
func (s *Scheduler) Payload() (string, error) {
	var b [8]byte
	if _, err := io.ReadFull(s.entropy, b[:]); err != nil {
		return "", err
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(b[:]), 16), nil
}
