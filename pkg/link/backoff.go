package link

import (
	"math/rand"
	"sync"
	"time"
)

// Session backoff constants. Applied between controller-initiated connect
// attempts on the cellular link; never to individual publishes.
const (
	// InitialBackoff is the first reconnection delay.
	InitialBackoff = 2 * time.Second

	// MaxBackoff caps the reconnection delay.
	MaxBackoff = 5 * time.Minute

	// BackoffMultiplier is the factor by which the delay grows.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of the base delay.
	JitterFactor = 0.25
)

// Backoff computes exponential reconnection delays with jitter.
type Backoff struct {
	mu sync.Mutex

	current  time.Duration
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a backoff calculator starting at InitialBackoff.
func NewBackoff() *Backoff {
	return &Backoff{
		current: InitialBackoff,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay to wait before the next attempt and advances the
// sequence.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	base := b.current
	jitter := time.Duration(b.rng.Float64() * JitterFactor * float64(base))

	next := time.Duration(float64(b.current) * BackoffMultiplier)
	if next > MaxBackoff {
		next = MaxBackoff
	}
	b.current = next
	b.attempts++

	return base + jitter
}

// Current returns the base delay of the next attempt without advancing.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Attempts returns the number of delays handed out since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Reset restores the initial delay after a successful session.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = InitialBackoff
	b.attempts = 0
}
