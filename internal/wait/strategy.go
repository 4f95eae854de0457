package wait

import (
	"slices"
	"sync/atomic"
	"time"
)

// Strategy decides the pacing of a polling loop. An instance is meant for a
// single polling invocation; its methods are safe to call from any goroutine.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// CanContinue reports whether the caller may keep polling. Once it
	// returns false it never returns true again.
	CanContinue() bool

	// NextWait returns how long to wait before the next state check for the
	// zero-based attempt. It is defined for every attempt and never negative.
	NextWait(attempt int) time.Duration
}

// defaultSequence is the stepped backoff used when none is configured. Fast
// retries come first for documents that finish quickly. It is never mutated.
var defaultSequence = []time.Duration{
	1 * time.Second, 1 * time.Second, 1 * time.Second, 1 * time.Second, 1 * time.Second,
	2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second,
	3 * time.Second, 3 * time.Second, 3 * time.Second,
	5 * time.Second, 5 * time.Second, 5 * time.Second,
	8 * time.Second,
}

// DefaultSequence returns a copy of the wait sequence used when none is
// configured.
func DefaultSequence() []time.Duration {
	return slices.Clone(defaultSequence)
}

const backoffName = "WaitWithBackoffStrategy"

// Option configures a Backoff strategy.
type Option func(*Backoff)

// WithSequence replaces the wait sequence. An empty sequence keeps the
// default. Negative entries are treated as zero.
func WithSequence(seq ...time.Duration) Option {
	return func(b *Backoff) {
		if len(seq) == 0 {
			return
		}
		b.sequence = make([]time.Duration, len(seq))
		for i, d := range seq {
			b.sequence[i] = max(d, 0)
		}
	}
}

// WithClock sets the time source. The start instant is read from it when the
// strategy is created.
func WithClock(now func() time.Time) Option {
	return func(b *Backoff) {
		if now != nil {
			b.now = now
		}
	}
}

// WithName overrides the name reported in logs.
func WithName(name string) Option {
	return func(b *Backoff) {
		if name != "" {
			b.name = name
		}
	}
}

// Backoff is a time-boxed stepped backoff: the wait for attempt i is
// sequence[i], clamped to the last entry, and polling stops once the budget
// measured from creation has elapsed.
type Backoff struct {
	name      string
	now       func() time.Time
	start     time.Time
	budget    time.Duration
	sequence  []time.Duration
	exhausted atomic.Bool
}

// Compile-time interface satisfaction check.
var _ Strategy = (*Backoff)(nil)

// NewBackoff creates a Backoff strategy whose clock starts now.
func NewBackoff(budget time.Duration, opts ...Option) *Backoff {
	b := &Backoff{
		name:     backoffName,
		now:      time.Now,
		budget:   budget,
		sequence: defaultSequence,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.start = b.now()
	return b
}

// Name returns the strategy name.
func (b *Backoff) Name() string {
	return b.name
}

// Budget returns the total polling budget.
func (b *Backoff) Budget() time.Duration {
	return b.budget
}

// CanContinue reports whether less than the budget has elapsed since the
// strategy was created. The result latches to false.
func (b *Backoff) CanContinue() bool {
	if b.exhausted.Load() {
		return false
	}
	if b.now().Sub(b.start) < b.budget {
		return true
	}
	b.exhausted.Store(true)
	return false
}

// NextWait returns the wait for the given attempt.
func (b *Backoff) NextWait(attempt int) time.Duration {
	return lookup(b.sequence, attempt)
}

// lookup indexes seq by attempt, clamping to both ends.
func lookup(seq []time.Duration, attempt int) time.Duration {
	if len(seq) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(seq) {
		attempt = len(seq) - 1
	}
	return seq[attempt]
}
