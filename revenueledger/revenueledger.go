// Package revenueledger implements the global per-identity audit trail
// (spec.md §4.11, §6): C21, the revenue ledger every pipeline step appends
// to regardless of outcome.
package revenueledger

import (
	"encoding/json"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/action"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/evidence"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/outcome"
)

const eventAppend = "append"

// Entry is a RevenueLedgerEntry.
type Entry struct {
	EntryID         string          `json:"entry_id"`
	Timestamp       string          `json:"timestamp"`
	Identity        string          `json:"identity"`
	Action          action.Spec     `json:"action"`
	Outcome         outcome.Outcome `json:"outcome"`
	EvidenceRef     evidence.Ref    `json:"evidence_ref"`
	StageTransition string          `json:"stage_transition,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// Ledger folds the per-identity revenue ledger.
type Ledger struct {
	ledger *ledger.Ledger
	clock  *clock.Clock
}

func New(l *ledger.Ledger, c *clock.Clock) *Ledger {
	return &Ledger{ledger: l, clock: c}
}

// Stamp reserves the next timestamp for identity without appending an
// entry, so a caller can build an EvidenceRef carrying the same stamp
// the ledger entry below will record.
func (l *Ledger) Stamp(identity string) string {
	return l.clock.Next(identity)
}

// Append records one pipeline step's result under timestamp (obtained from
// Stamp). stage_transition is accepted and stored but never read by any
// guard (spec.md §9's open question, resolved: pass-through only).
func (l *Ledger) Append(identity, timestamp string, spec action.Spec, o outcome.Outcome, ev evidence.Ref, stageTransition, notes string) Entry {
	entry := Entry{
		Timestamp:       timestamp,
		Identity:        identity,
		Action:          spec,
		Outcome:         o,
		EvidenceRef:     ev,
		StageTransition: stageTransition,
		Notes:           notes,
	}
	data, _ := json.Marshal(entry)
	le := l.ledger.Append(identity, ledger.Entry{
		Timestamp: timestamp,
		Type:      eventAppend,
		Data:      data,
	})
	entry.EntryID = le.EventID
	return entry
}

// Page returns a forward page of entries for identity.
func (l *Ledger) Page(identity string, limit, cursor int) ([]Entry, int) {
	raw, next := l.ledger.ReadPage(identity, limit, cursor)
	return decode(raw), next
}

// Tail returns a backward page of entries for identity.
func (l *Ledger) Tail(identity string, limit, cursor int) ([]Entry, int) {
	raw, next := l.ledger.ReadTail(identity, limit, cursor)
	return decode(raw), next
}

func decode(raw []ledger.Entry) []Entry {
	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		var entry Entry
		if err := json.Unmarshal(e.Data, &entry); err != nil {
			continue
		}
		entry.EntryID = e.EventID
		entries = append(entries, entry)
	}
	return entries
}
