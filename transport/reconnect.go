package transport

import (
	"context"
	"time"
)

// Policy bounds reconnection: how many attempts to make and how long to
// wait between them. The delay is fixed, matching the server's own pacing
// expectations; exceeding MaxAttempts leaves the adapter disconnected and
// the UI in degraded mode.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy mirrors the reconnection settings the web client shipped
// with: ten attempts, three seconds apart.
var DefaultPolicy = Policy{MaxAttempts: 10, Delay: 3 * time.Second}

// Next reports whether another attempt is allowed after `attempt` failures
// and, if so, how long to wait first.
func (p Policy) Next(attempt int) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	return p.Delay, true
}

// Clock abstracts waiting so the retry loop is testable without real
// delays.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Retrier runs an operation under a Policy, waiting on the Clock between
// attempts.
type Retrier struct {
	Policy Policy
	Clock  Clock
}

// NewRetrier pairs a policy with the real clock.
func NewRetrier(p Policy) *Retrier {
	return &Retrier{Policy: p, Clock: realClock{}}
}

// Run calls fn until it succeeds, the policy is exhausted, or the context
// ends. fn receives a callback to invoke once the operation has come up;
// a failure after that starts a fresh outage with a full attempt budget,
// so only consecutive failed attempts count against MaxAttempts. Run
// returns the last error when the budget runs out.
func (r *Retrier) Run(ctx context.Context, fn func(up func()) error) error {
	var lastErr error
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wasUp := false
		lastErr = fn(func() { wasUp = true })
		if lastErr == nil {
			return nil
		}

		if wasUp {
			// the drop itself is the start of an outage, not an attempt
			attempt = 0
		} else {
			attempt++
		}

		delay, ok := r.Policy.Next(attempt)
		if !ok {
			return lastErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.Clock.After(delay):
		}
	}
}
