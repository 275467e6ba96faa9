// Package action defines the ActionSpec and PolicyContext value types
// that flow through every guard in the pipeline (spec.md §3).
package action

import (
	"strings"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/identity"
)

type Kind string

const (
	KindMessage Kind = "message"
	KindEmail   Kind = "email"
	KindWebhook Kind = "webhook"
	KindSMS     Kind = "sms"
	KindVoice   Kind = "voice"
	KindTask    Kind = "task"
	KindNote    Kind = "note"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "med"
	RiskHigh   RiskLevel = "high"
)

// Spec is an ActionSpec. It is immutable once constructed — action_id is a
// stable content hash over every other field, computed by New.
type Spec struct {
	ActionID       string
	ActionType     Kind
	Description    string
	IntentID       string
	ExpectedMetric string
	RiskLevel      RiskLevel
	Irreversible   bool
	Payload        map[string]interface{}
}

// New builds a Spec and stamps its content-derived action_id.
func New(actionType Kind, description, intentID, expectedMetric string, risk RiskLevel, irreversible bool, payload map[string]interface{}) Spec {
	s := Spec{
		ActionType:     actionType,
		Description:    description,
		IntentID:       intentID,
		ExpectedMetric: expectedMetric,
		RiskLevel:      risk,
		Irreversible:   irreversible,
		Payload:        payload,
	}
	s.ActionID = identity.ContentHash(map[string]interface{}{
		"action_type":     s.ActionType,
		"description":     s.Description,
		"intent_id":       s.IntentID,
		"expected_metric": s.ExpectedMetric,
		"risk_level":      s.RiskLevel,
		"irreversible":    s.Irreversible,
		"payload":         s.Payload,
	})
	return s
}

// WithIntentFallback applies spec.md §4.11's intent fallback: an empty
// intent_id becomes "intent:default" in MOCK mode, "intent:missing"
// otherwise (which policy rule 1 then denies). Recomputes action_id since
// intent_id is one of its hashed fields.
func (s Spec) WithIntentFallback(mode Mode) Spec {
	if s.IntentID != "" {
		return s
	}
	fallback := "intent:missing"
	if mode == ModeMock {
		fallback = "intent:default"
	}
	return New(s.ActionType, s.Description, fallback, s.ExpectedMetric, s.RiskLevel, s.Irreversible, s.Payload)
}

// PayloadTo returns payload["to"], trimmed, or "" if absent/blank.
func (s Spec) PayloadTo() string {
	if s.Payload == nil {
		return ""
	}
	v, ok := s.Payload["to"]
	if !ok {
		return ""
	}
	str, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}

// IsOutbound reports whether the action type is one of the transport-bound
// kinds policy treats specially (email/webhook/sms/voice, plus message for
// rule 3's payload.to check).
func (k Kind) IsOutbound() bool {
	switch k {
	case KindEmail, KindWebhook, KindSMS, KindVoice, KindMessage:
		return true
	default:
		return false
	}
}

// BlockedOffline reports whether the action type is blocked in OFFLINE mode.
func (k Kind) BlockedOffline() bool {
	switch k {
	case KindEmail, KindWebhook, KindSMS, KindVoice:
		return true
	default:
		return false
	}
}

// Mode is the PolicyContext.mode enumeration.
type Mode string

const (
	ModeOffline Mode = "OFFLINE"
	ModeMock    Mode = "MOCK"
	ModeLive    Mode = "LIVE"
)

// PolicyContext carries the per-call mode and trust level.
type PolicyContext struct {
	Mode       Mode
	TrustLevel int
}
