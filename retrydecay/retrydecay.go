// Package retrydecay folds the global retry-decay ledger (spec.md §4.10):
// each non-executed outcome increments failures, growing the required
// cooldown monotonically; shrinking is forbidden. Grounded on the
// teacher's routing failover backoff idiom.
package retrydecay

import (
	"encoding/json"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

const scope = "global"

const (
	eventAttempt = "attempt"
	eventFailure = "failure"
)

type retryEvent struct {
	RetryKey string `json:"retry_key"`
}

// State is the derived RetryState.
type State struct {
	Attempts               int
	Failures               int
	RequiredCooldownSteps  int
}

// Ledger folds retry events globally, scoped per retry_key.
type Ledger struct {
	ledger           *ledger.Ledger
	clock            *clock.Clock
	baseCooldownSteps int
}

func New(l *ledger.Ledger, c *clock.Clock, baseCooldownSteps int) *Ledger {
	return &Ledger{ledger: l, clock: c, baseCooldownSteps: baseCooldownSteps}
}

// Get folds the retry ledger for retryKey.
func (l *Ledger) Get(retryKey string) State {
	var st State
	for _, e := range l.ledger.Read(scope) {
		var ev retryEvent
		if err := json.Unmarshal(e.Data, &ev); err != nil || ev.RetryKey != retryKey {
			continue
		}
		switch e.Type {
		case eventAttempt:
			st.Attempts++
		case eventFailure:
			st.Failures++
		}
	}
	if st.Failures > 0 {
		st.RequiredCooldownSteps = l.baseCooldownSteps + st.Failures
	}
	return st
}

// RecordAttempt appends an attempt event (the orchestrator records one for
// every pipeline step that reaches the runner or the LIVE safe-hold halt,
// regardless of its outcome).
func (l *Ledger) RecordAttempt(retryKey string) {
	l.append(retryKey, eventAttempt)
}

// RecordOutcome appends a failure event for any non-executed outcome. A
// failure's cooldown only ever grows; there is no event that decrements it.
func (l *Ledger) RecordOutcome(retryKey string, executed bool) {
	if !executed {
		l.append(retryKey, eventFailure)
	}
}

func (l *Ledger) append(retryKey, eventType string) {
	data, _ := json.Marshal(retryEvent{RetryKey: retryKey})
	l.ledger.Append(scope, ledger.Entry{
		Timestamp: l.clock.Next(scope),
		Type:      eventType,
		Data:      data,
	})
}
