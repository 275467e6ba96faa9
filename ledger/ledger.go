// Package ledger implements the append-only ledger primitive (spec.md §4.2):
// a scope-keyed JSON array persisted through kvstore.Store. Every guard
// package builds its derived state by folding over a ledger's Read result.
package ledger

import (
	"encoding/json"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/kvstore"
)

const namespace = "ppp"

// Entry is the common envelope every ledger event embeds. Concrete event
// payloads are stored as the raw JSON in Data so each package can define
// its own discriminated event types without the ledger package knowing them.
type Entry struct {
	EventID   string          `json:"event_id"`
	Scope     string          `json:"scope"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// Ledger is one named family (e.g. "capacityLedger") of per-scope event logs.
type Ledger struct {
	store  kvstore.Store
	family string
}

// New returns a Ledger for the given family name, matching the
// "ppp:<family>:v1::<scope>" key layout from spec.md §6.
func New(store kvstore.Store, family string) *Ledger {
	return &Ledger{store: store, family: family}
}

func (l *Ledger) key(scope string) string {
	return namespace + ":" + l.family + ":v1::" + scope
}

// EventID derives the event_id uniqueness key: scope × timestamp × type.
func EventID(scope, timestamp, eventType string) string {
	return scope + "|" + timestamp + "|" + eventType
}

// Append adds entry to scope's log. Persistence failures are swallowed
// silently per spec.md §4.2; the caller already has the entry it wrote.
func (l *Ledger) Append(scope string, entry Entry) Entry {
	if entry.EventID == "" {
		entry.EventID = EventID(scope, entry.Timestamp, entry.Type)
	}
	entry.Scope = scope

	entries := l.Read(scope)
	entries = append(entries, entry)

	raw, err := json.Marshal(entries)
	if err != nil {
		return entry
	}
	l.store.Set(l.key(scope), string(raw))
	return entry
}

// Read returns all entries for scope in append order. Any corruption
// (missing key, unparsable JSON) returns an empty slice — reads never fail.
func (l *Ledger) Read(scope string) []Entry {
	raw, ok := l.store.Get(l.key(scope))
	if !ok {
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return []Entry{}
	}
	return entries
}

// ReadPage returns up to limit entries starting at cursor (an index into
// the full log, 0-based), plus the cursor to pass for the next page (-1
// when exhausted).
func (l *Ledger) ReadPage(scope string, limit, cursor int) ([]Entry, int) {
	entries := l.Read(scope)
	if cursor < 0 || cursor >= len(entries) {
		return []Entry{}, -1
	}
	end := cursor + limit
	if end > len(entries) {
		end = len(entries)
	}
	page := entries[cursor:end]
	next := end
	if next >= len(entries) {
		next = -1
	}
	return page, next
}

// ReadTail returns up to limit entries counting back from the end,
// oldest-first within the returned page, plus the cursor for the next
// (older) page, -1 when exhausted.
func (l *Ledger) ReadTail(scope string, limit, cursor int) ([]Entry, int) {
	entries := l.Read(scope)
	if cursor <= 0 {
		cursor = len(entries)
	}
	if cursor <= 0 {
		return []Entry{}, -1
	}
	start := cursor - limit
	if start < 0 {
		start = 0
	}
	page := entries[start:cursor]
	next := start
	if next <= 0 {
		next = -1
	}
	return page, next
}
