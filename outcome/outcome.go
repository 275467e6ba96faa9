// Package outcome defines the Outcome tagged variant returned by every
// pipeline step (spec.md §3): executed | deferred | halted.
package outcome

type Kind string

const (
	KindExecuted Kind = "executed"
	KindDeferred Kind = "deferred"
	KindHalted   Kind = "halted"
)

type NextAction string

const (
	NextSchedule         NextAction = "SCHEDULE"
	NextAskUser          NextAction = "ASK_USER"
	NextRequestApproval  NextAction = "REQUEST_APPROVAL"
)

// Outcome is the result of one pipeline step.
type Outcome struct {
	Kind       Kind                   `json:"kind"`
	Summary    string                 `json:"summary"`
	Details    map[string]interface{} `json:"details,omitempty"`
	NextAction NextAction             `json:"next_action,omitempty"`
}

func Executed(summary string, details map[string]interface{}) Outcome {
	return Outcome{Kind: KindExecuted, Summary: summary, Details: details}
}

func Deferred(summary string, next NextAction, details map[string]interface{}) Outcome {
	return Outcome{Kind: KindDeferred, Summary: summary, NextAction: next, Details: details}
}

func Halted(summary string, details map[string]interface{}) Outcome {
	return Outcome{Kind: KindHalted, Summary: summary, Details: details}
}

// IsTerminal reports whether the outcome is executed (the only kind after
// which the orchestrator consumes energy units and resolves an opportunity).
func (o Outcome) IsTerminal() bool {
	return o.Kind == KindExecuted
}
