// Package opportunity implements the per-pod FIFO opportunity queue
// (spec.md §4.8): ordering, cooldown gate, and a max size bound.
package opportunity

import (
	"encoding/json"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

type State string

const (
	StateNone    State = "none"
	StateQueued  State = "queued"
	StateReady   State = "ready"
	StateBlocked State = "blocked"
)

const (
	ReasonQueueFull           = "QUEUE_FULL"
	ReasonQueued              = "QUEUED"
	ReasonMissingOpportunityID = "MISSING_OPPORTUNITY_ID"
	ReasonNotQueued           = "NOT_QUEUED"
	ReasonOutOfOrder          = "OUT_OF_ORDER"
	ReasonCooldownRequired    = "COOLDOWN_REQUIRED"
)

const (
	eventEnqueue = "enqueue"
	eventResolve = "resolve"
)

type opportunityEvent struct {
	OpportunityID string `json:"opportunity_id"`
}

// Entry is an OpportunityEntry.
type Entry struct {
	OpportunityID string
	AddedAt       string
}

// Ledger folds the opportunity queue events for a pod scope.
type Ledger struct {
	ledger  *ledger.Ledger
	clock   *clock.Clock
	maxSize int
}

func New(l *ledger.Ledger, c *clock.Clock, maxSize int) *Ledger {
	return &Ledger{ledger: l, clock: c, maxSize: maxSize}
}

// Get returns the current FIFO queue (oldest first), excluding resolved
// entries, without mutating storage.
func (l *Ledger) Get(pod string) []Entry {
	resolved := make(map[string]bool)
	var queue []Entry
	for _, e := range l.ledger.Read(pod) {
		var ev opportunityEvent
		if err := json.Unmarshal(e.Data, &ev); err != nil {
			continue
		}
		switch e.Type {
		case eventEnqueue:
			if !resolved[ev.OpportunityID] {
				queue = append(queue, Entry{OpportunityID: ev.OpportunityID, AddedAt: e.Timestamp})
			}
		case eventResolve:
			resolved[ev.OpportunityID] = true
			filtered := queue[:0]
			for _, q := range queue {
				if q.OpportunityID != ev.OpportunityID {
					filtered = append(filtered, q)
				}
			}
			queue = filtered
		}
	}
	return queue
}

// Evaluate decides the state for opportunityID against pod's queue.
// New opportunities (not previously referenced) enqueue subject to
// max_size; existing ones must be at the front and cooldown-satisfied.
func (l *Ledger) Evaluate(pod, opportunityID string, isNew, cooldownSatisfied bool) (State, string) {
	queue := l.Get(pod)

	if isNew {
		for _, e := range queue {
			if e.OpportunityID == opportunityID {
				isNew = false
				break
			}
		}
	}

	if isNew {
		if len(queue) >= l.maxSize && l.maxSize > 0 {
			return StateBlocked, ReasonQueueFull
		}
		return StateQueued, ReasonQueued
	}

	if opportunityID == "" {
		return StateBlocked, ReasonMissingOpportunityID
	}
	idx := -1
	for i, e := range queue {
		if e.OpportunityID == opportunityID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return StateBlocked, ReasonNotQueued
	}
	if idx != 0 {
		return StateBlocked, ReasonOutOfOrder
	}
	if !cooldownSatisfied {
		return StateBlocked, ReasonCooldownRequired
	}
	return StateReady, ""
}

// Enqueue appends an enqueue event for a new opportunity.
func (l *Ledger) Enqueue(pod, opportunityID string) {
	data, _ := json.Marshal(opportunityEvent{OpportunityID: opportunityID})
	l.ledger.Append(pod, ledger.Entry{
		Timestamp: l.clock.Next(pod),
		Type:      eventEnqueue,
		Data:      data,
	})
}

// Resolve appends a resolve event on successful execution.
func (l *Ledger) Resolve(pod, opportunityID string) {
	data, _ := json.Marshal(opportunityEvent{OpportunityID: opportunityID})
	l.ledger.Append(pod, ledger.Entry{
		Timestamp: l.clock.Next(pod),
		Type:      eventResolve,
		Data:      data,
	})
}
