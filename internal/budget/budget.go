// Package budget implements the per-request wall-clock deadline shared by
// every blocking operation of the prediction pipeline.  A Budget is computed
// once when the request arrives; fetches, uploads and subprocess-backed
// encodes all derive their own timeout from the remaining allowance and fail
// fast once it is exhausted.  The package never retries anything.
package budget

import (
	"context"
	"time"

	"github.com/turtacn/VisionServe/pkg/errors"
)

// Budget is an absolute deadline.  The zero value means "no deadline": every
// Remaining call reports ok=false and Check never fails.
type Budget struct {
	deadline time.Time
}

// At returns a Budget expiring at the given instant.
func At(deadline time.Time) Budget {
	return Budget{deadline: deadline}
}

// Within returns a Budget expiring d from now.
func Within(d time.Duration) Budget {
	return Budget{deadline: time.Now().Add(d)}
}

// None returns a Budget with no deadline.
func None() Budget {
	return Budget{}
}

// HasDeadline reports whether a deadline was set.
func (b Budget) HasDeadline() bool {
	return !b.deadline.IsZero()
}

// Deadline returns the absolute deadline and whether one was set.
func (b Budget) Deadline() (time.Time, bool) {
	return b.deadline, b.HasDeadline()
}

// Remaining returns the time left until the deadline.  ok is false when no
// deadline was set, in which case callers must not bound their operation.
// A zero or negative remainder with ok=true means the budget is exhausted.
func (b Budget) Remaining() (remaining time.Duration, ok bool) {
	if !b.HasDeadline() {
		return 0, false
	}
	return time.Until(b.deadline), true
}

// Check returns a Timeout error when the budget is exhausted.  Call sites
// invoke Check immediately before every blocking operation so an expired
// budget fails without the operation ever being attempted.
func (b Budget) Check() error {
	if remaining, ok := b.Remaining(); ok && remaining <= 0 {
		return errors.Timeout("request budget exhausted").
			WithDetail("remaining=" + remaining.String())
	}
	return nil
}

// Context derives a context carrying the budget's deadline from parent.
// With no deadline set, the parent is returned with a no-op cancel.
func (b Budget) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if !b.HasDeadline() {
		return parent, func() {}
	}
	return context.WithDeadline(parent, b.deadline)
}
