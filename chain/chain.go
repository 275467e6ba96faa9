// Package chain folds the per-thread action chain ledger (spec.md §4.10):
// depth is the count of attempt events strictly after the last reset.
package chain

import (
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

const (
	EventReset   = "reset"
	EventAttempt = "attempt"
	EventBlocked = "blocked"
	EventComplete = "complete"
)

// ReasonSafeOverload is the halt reason when depth reaches chain_max_depth.
const ReasonSafeOverload = "FAIL_SAFE_OVERLOAD"

// Ledger folds action chain events for a thread scope.
type Ledger struct {
	ledger   *ledger.Ledger
	clock    *clock.Clock
	maxDepth int
}

func New(l *ledger.Ledger, c *clock.Clock, maxDepth int) *Ledger {
	return &Ledger{ledger: l, clock: c, maxDepth: maxDepth}
}

// Depth returns the count of attempt events strictly after the last reset.
func (l *Ledger) Depth(thread string) int {
	depth := 0
	for _, e := range l.ledger.Read(thread) {
		switch e.Type {
		case EventReset:
			depth = 0
		case EventAttempt:
			depth++
		}
	}
	return depth
}

// CheckDepth reports whether thread is at or past max_depth. It never
// records an attempt; when the thread is at the cap it appends a blocked
// event, which does not change the depth. The orchestrator calls it at
// guard precedence step 3, before any attempt is recorded.
func (l *Ledger) CheckDepth(thread string) (bool, string) {
	if l.Depth(thread) >= l.maxDepth {
		l.append(thread, EventBlocked)
		return false, ReasonSafeOverload
	}
	return true, ""
}

// RecordAttempt appends an attempt event, called once the pipeline commits
// to invoking the runner (step 19).
func (l *Ledger) RecordAttempt(thread string) { l.append(thread, EventAttempt) }

func (l *Ledger) Reset(thread string)    { l.append(thread, EventReset) }
func (l *Ledger) Complete(thread string) { l.append(thread, EventComplete) }

func (l *Ledger) append(thread, eventType string) {
	l.ledger.Append(thread, ledger.Entry{
		Timestamp: l.clock.Next(thread),
		Type:      eventType,
	})
}
