package wait

import "time"

const fixedName = "FixedIntervalStrategy"

// MinFixedInterval is the shortest interval NewFixed accepts. Shorter or
// non-positive intervals are raised to it so a poller never spins.
const MinFixedInterval = 10 * time.Millisecond

// Fixed waits the same interval between every check until the budget is spent.
type Fixed struct {
	*Backoff
}

// NewFixed creates a fixed-interval strategy. Options other than the
// sequence apply as for NewBackoff. The interval is at least MinFixedInterval.
func NewFixed(budget, interval time.Duration, opts ...Option) *Fixed {
	interval = max(interval, MinFixedInterval)
	opts = append([]Option{WithName(fixedName)}, opts...)
	opts = append(opts, WithSequence(interval))
	return &Fixed{Backoff: NewBackoff(budget, opts...)}
}
