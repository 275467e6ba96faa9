// Package evidence builds EvidenceRef records (spec.md §3, §4.2's
// evidence-determinism property): the immutable tie between an action
// attempt and a provider call.
package evidence

import (
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/action"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/identity"
)

type Status string

const (
	StatusMock     Status = "mock"
	StatusOK       Status = "ok"
	StatusError    Status = "error"
	StatusSafeHold Status = "safe_hold"
)

// Ref is an EvidenceRef: provider, mode, request_hash, status, an optional
// response_id, and the timestamp it was stamped with.
type Ref struct {
	Provider    string      `json:"provider"`
	Mode        action.Mode `json:"mode"`
	RequestHash string      `json:"request_hash"`
	Status      Status      `json:"status"`
	ResponseID  string      `json:"response_id,omitempty"`
	Timestamp   string      `json:"timestamp"`
}

// Build derives an EvidenceRef's request_hash and default status from the
// action and the caller-supplied response id (empty if none). The status
// defaulting rule is exact: MOCK → mock; LIVE with response_id → ok; LIVE
// without → safe_hold; OFFLINE, like any other non-LIVE mode, defaults to
// mock (the orchestrator builds evidence for OFFLINE steps too, including
// policy halts).
func Build(provider string, spec action.Spec, mode action.Mode, responseID, timestamp string) Ref {
	ref := Ref{
		Provider:    provider,
		Mode:        mode,
		RequestHash: identity.RequestHash(spec.ActionID, string(spec.ActionType), spec.Payload),
		ResponseID:  responseID,
		Timestamp:   timestamp,
	}
	switch {
	case mode == action.ModeLive && responseID != "":
		ref.Status = StatusOK
	case mode == action.ModeLive:
		ref.Status = StatusSafeHold
	default:
		ref.Status = StatusMock
	}
	return ref
}
