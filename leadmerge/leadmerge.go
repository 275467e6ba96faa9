// Package leadmerge implements deterministic lead dedup/merge (spec.md
// §4.10, §8): leads collapse on a normalized (email|phone|id) key, and the
// primary record is chosen by lexicographically-smallest created_at, ties
// broken by id. Grounded on the teacher's provider-catalog dedup-by-key
// collapsing (registry entries keyed and deduplicated by provider name),
// generalized from deduplicating model catalogs to deduplicating leads.
package leadmerge

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

const eventMerge = "merge"

type mergeEvent struct {
	NormalizedKey string `json:"normalized_key"`
	PrimaryID     string `json:"primary_id"`
}

// Ledger records merge decisions to ppp:leadMergeLedger:v1::<identity> for
// audit; MergeLeads itself stays a pure function of its inputs.
type Ledger struct {
	ledger *ledger.Ledger
	clock  *clock.Clock
}

func NewLedger(l *ledger.Ledger, c *clock.Clock) *Ledger {
	return &Ledger{ledger: l, clock: c}
}

// RecordMerge appends an audit event for one collapsed group.
func (l *Ledger) RecordMerge(identity string, key string, primary Lead) {
	data, _ := json.Marshal(mergeEvent{NormalizedKey: key, PrimaryID: primary.ID})
	l.ledger.Append(identity, ledger.Entry{
		Timestamp: l.clock.Next(identity),
		Type:      eventMerge,
		Data:      data,
	})
}

// Lead is the minimal shape leadmerge needs; callers' full lead records
// carry more fields untouched by the merge.
type Lead struct {
	ID        string
	Email     string
	Phone     string
	CreatedAt string
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// NormalizedKey collapses casing/punctuation differences: lowercased,
// trimmed email; digits-only phone; falling back to raw id.
func NormalizedKey(l Lead) string {
	email := strings.ToLower(strings.TrimSpace(l.Email))
	phone := nonDigits.ReplaceAllString(l.Phone, "")
	switch {
	case email != "":
		return "email:" + email
	case phone != "":
		return "phone:" + phone
	default:
		return "id:" + l.ID
	}
}

// MergeLeads is a pure function of its inputs: it groups existing+incoming
// by NormalizedKey and, within each group, picks the primary record by
// lexicographically-smallest created_at (ties broken by id). Groups are
// returned in first-seen order across existing then incoming.
func MergeLeads(existing, incoming []Lead) []Lead {
	order := make([]string, 0, len(existing)+len(incoming))
	groups := make(map[string][]Lead)

	add := func(l Lead) {
		key := NormalizedKey(l)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], l)
	}
	for _, l := range existing {
		add(l)
	}
	for _, l := range incoming {
		add(l)
	}

	merged := make([]Lead, 0, len(order))
	for _, key := range order {
		merged = append(merged, primary(groups[key]))
	}
	return merged
}

func primary(leads []Lead) Lead {
	best := leads[0]
	for _, l := range leads[1:] {
		if l.CreatedAt < best.CreatedAt || (l.CreatedAt == best.CreatedAt && l.ID < best.ID) {
			best = l
		}
	}
	return best
}
