// Package pod folds the supplemented pod profile ledger
// (SPEC_FULL.md §4 — PodProfile, persisted as ppp:podLedger): a minimal
// identity record for a pod's human-readable owner, kept without a remote
// datastore. The orchestrator does not read this ledger; callers register
// and look up profiles directly.
package pod

import (
	"encoding/json"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

const eventRegister = "register"

type profileEvent struct {
	PodID       string `json:"pod_id"`
	DisplayName string `json:"display_name"`
	HumanOwner  string `json:"human_owner"`
}

// Profile is a PodProfile.
type Profile struct {
	PodID       string
	DisplayName string
	HumanOwner  string
	CreatedAt   string
}

// Ledger folds pod profile events, scoped by identity.
type Ledger struct {
	ledger *ledger.Ledger
	clock  *clock.Clock
}

func New(l *ledger.Ledger, c *clock.Clock) *Ledger {
	return &Ledger{ledger: l, clock: c}
}

// Get returns the most recently registered profile for identity, or the
// zero value if none was ever registered.
func (l *Ledger) Get(identity string) Profile {
	var p Profile
	for _, e := range l.ledger.Read(identity) {
		if e.Type != eventRegister {
			continue
		}
		var ev profileEvent
		if err := json.Unmarshal(e.Data, &ev); err != nil {
			continue
		}
		p = Profile{PodID: ev.PodID, DisplayName: ev.DisplayName, HumanOwner: ev.HumanOwner, CreatedAt: e.Timestamp}
	}
	return p
}

// Register appends a register event for identity.
func (l *Ledger) Register(identity, podID, displayName, humanOwner string) Profile {
	data, _ := json.Marshal(profileEvent{PodID: podID, DisplayName: displayName, HumanOwner: humanOwner})
	l.ledger.Append(identity, ledger.Entry{
		Timestamp: l.clock.Next(identity),
		Type:      eventRegister,
		Data:      data,
	})
	return l.Get(identity)
}
