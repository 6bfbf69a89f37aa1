package sequentiator

import (
	"context"
	"fmt"
	"time"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/timeutil"
)

// Phase is the verdict of a deadline check.
type Phase int

const (
	// Continue lets the next phase run.
	Continue Phase = iota
	// Stop abandons the event because the caller cancelled.
	Stop
	// SkipEvent abandons the event because its time budget is spent.
	SkipEvent
)

func (p Phase) String() string {
	switch p {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case SkipEvent:
		return "skip-event"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Deadline is the time budget of one event.
type Deadline struct {
	clock  timeutil.Clock
	start  time.Time
	budget time.Duration
}

// NewDeadline starts the budget now. A non-positive budget never expires.
func NewDeadline(clock timeutil.Clock, budget time.Duration) *Deadline {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Deadline{clock: clock, start: clock.Now(), budget: budget}
}

// Elapsed is the time spent since the deadline was created.
func (d *Deadline) Elapsed() time.Duration {
	return d.clock.Since(d.start)
}

// Check reports whether work on the event may go on. Cancellation of ctx
// wins over an expired budget.
func (d *Deadline) Check(ctx context.Context) Phase {
	if ctx != nil && ctx.Err() != nil {
		return Stop
	}
	if d.budget > 0 && d.Elapsed() > d.budget {
		return SkipEvent
	}
	return Continue
}
