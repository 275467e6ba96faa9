// Package consent folds the per-lead consent ledger (spec.md §4.4):
// consent status plus the one-way do-not-contact latch.
package consent

import (
	"encoding/json"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusGranted  Status = "granted"
	StatusDenied   Status = "denied"
)

const (
	eventConsent = "consent"
	eventOptOut  = "opt_out"
)

// ReasonOptOutAlreadySet is returned by ApplyOptOut once the latch is set.
const ReasonOptOutAlreadySet = "OPT_OUT_ALREADY_SET"

type consentEvent struct {
	Status        Status `json:"status"`
	EvidenceRef   string `json:"evidence_ref,omitempty"`
	DoNotContact  bool   `json:"do_not_contact"`
}

// State is the derived LeadConsentState.
type State struct {
	ConsentStatus     Status
	ConsentEvidence   string
	DoNotContact      bool
	OptOutEvidence    string
}

// Ledger folds consent events for an identity scope.
type Ledger struct {
	ledger *ledger.Ledger
	clock  *clock.Clock
}

func New(l *ledger.Ledger, c *clock.Clock) *Ledger {
	return &Ledger{ledger: l, clock: c}
}

// Get returns the derived consent state for identity, never mutating storage.
func (l *Ledger) Get(identity string) State {
	var st State
	st.ConsentStatus = StatusUnknown
	for _, e := range l.ledger.Read(identity) {
		var ev consentEvent
		if err := json.Unmarshal(e.Data, &ev); err != nil {
			continue
		}
		switch e.Type {
		case eventConsent:
			st.ConsentStatus = ev.Status
			st.ConsentEvidence = ev.EvidenceRef
		case eventOptOut:
			st.DoNotContact = true
			st.OptOutEvidence = ev.EvidenceRef
		}
	}
	return st
}

// ApplyConsent writes a status+evidence event. It has no effect on an
// already-latched do_not_contact.
func (l *Ledger) ApplyConsent(identity string, status Status, evidenceRef string) State {
	data, _ := json.Marshal(consentEvent{Status: status, EvidenceRef: evidenceRef})
	l.ledger.Append(identity, ledger.Entry{
		Timestamp: l.clock.Next(identity),
		Type:      eventConsent,
		Data:      data,
	})
	return l.Get(identity)
}

// ApplyOptOut latches do_not_contact=true. If it is already set, the latch
// is irreversible: no event is appended and the call reports blocked=true.
func (l *Ledger) ApplyOptOut(identity string, evidenceRef string) (State, bool, string) {
	current := l.Get(identity)
	if current.DoNotContact {
		return current, true, ReasonOptOutAlreadySet
	}
	data, _ := json.Marshal(consentEvent{DoNotContact: true, EvidenceRef: evidenceRef})
	l.ledger.Append(identity, ledger.Entry{
		Timestamp: l.clock.Next(identity),
		Type:      eventOptOut,
		Data:      data,
	})
	return l.Get(identity), false, ""
}

// CanOutreach ≡ consent_status=granted ∧ ¬do_not_contact.
func (s State) CanOutreach() bool {
	return s.ConsentStatus == StatusGranted && !s.DoNotContact
}

// VoiceAllowed implements the voice exception: a non-denied status with
// existing consent evidence is allowed even if status is still unknown.
func (s State) VoiceAllowed() bool {
	if s.DoNotContact {
		return false
	}
	if s.ConsentStatus == StatusGranted {
		return true
	}
	return s.ConsentStatus != StatusDenied && s.ConsentEvidence != ""
}
