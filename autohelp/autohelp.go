// Package autohelp folds the per-thread auto-help ledger (spec.md §4.10):
// a thread may have at most one outstanding (unacknowledged) auto-help
// signal. Grounded on the teacher's PagerDuty incident acknowledgement
// flow, generalized from paging an on-call human to a single auto-help
// escalation per thread.
package autohelp

import (
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

const (
	EventTrigger = "auto_help"
	EventAck     = "ack"
)

// ReasonPolicyConflict is the halt reason for a repeat auto-help trigger.
const ReasonPolicyConflict = "FAIL_POLICY_CONFLICT"

// Ledger folds auto-help events for a thread scope.
type Ledger struct {
	ledger *ledger.Ledger
	clock  *clock.Clock
}

func New(l *ledger.Ledger, c *clock.Clock) *Ledger {
	return &Ledger{ledger: l, clock: c}
}

// Pending reports whether thread has an auto_help trigger not yet followed
// by an ack.
func (l *Ledger) Pending(thread string) bool {
	pending := false
	for _, e := range l.ledger.Read(thread) {
		switch e.Type {
		case EventTrigger:
			pending = true
		case EventAck:
			pending = false
		}
	}
	return pending
}

// CheckTrigger blocks a new auto_help action if one is already pending.
func (l *Ledger) CheckTrigger(thread string) (bool, string) {
	if l.Pending(thread) {
		return false, ReasonPolicyConflict
	}
	return true, ""
}

// RecordTrigger appends an auto_help event.
func (l *Ledger) RecordTrigger(thread string) {
	l.ledger.Append(thread, ledger.Entry{Timestamp: l.clock.Next(thread), Type: EventTrigger})
}

// Ack appends an ack event, clearing the pending signal.
func (l *Ledger) Ack(thread string) {
	l.ledger.Append(thread, ledger.Entry{Timestamp: l.clock.Next(thread), Type: EventAck})
}
