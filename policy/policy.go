// Package policy implements the static policy evaluator (spec.md §4.3):
// four ordered rules over ActionSpec × PolicyContext, the first failing
// rule wins. Rules 1–3 are structural checks over fixed fields; rule 4 (the
// forbidden-optimization "constitution") is the one genuinely data-driven
// rule — a term list evaluated against free text — so it is expressed as an
// embedded Rego module rather than a Go string scan, evaluated in-process
// with no sidecar, the way the teacher's policy-as-code layer does it.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/action"
)

const constitutionModule = `
package revenuekernel.constitution

import future.keywords.if
import future.keywords.in

violation if {
	some term in input.forbidden_terms
	contains(input.description, term)
}
`

// Reason codes for rule failures.
const (
	ReasonMissingIntent        = "MISSING_INTENT"
	ReasonOfflineBlocked       = "OFFLINE_BLOCKED"
	ReasonMissingPayloadTo     = "MISSING_PAYLOAD_TO"
	ReasonForbiddenOptimization = "FORBIDDEN_OPTIMIZATION"
)

// Decision is the GuardOutcome produced by Evaluate.
type Decision struct {
	Allowed         bool
	Reason          string
	RequiresConfirm bool
	CooldownSeconds int
}

// Evaluator holds a prepared Rego query so repeated Evaluate calls don't
// re-compile the module on every pipeline step.
type Evaluator struct {
	forbiddenTerms []string
	prepared       rego.PreparedEvalQuery
}

// New prepares the constitution module once against the given forbidden
// term list (already lowercased by config.Load).
func New(ctx context.Context, forbiddenTerms []string) (*Evaluator, error) {
	pr, err := rego.New(
		rego.Query("violation = data.revenuekernel.constitution.violation"),
		rego.Module("constitution.rego", constitutionModule),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("preparing constitution policy: %w", err)
	}
	return &Evaluator{forbiddenTerms: forbiddenTerms, prepared: pr}, nil
}

// Evaluate runs the four ordered policy rules against spec and ctx.
func (e *Evaluator) Evaluate(ctx context.Context, spec action.Spec, pctx action.PolicyContext) Decision {
	requiresConfirm := spec.RiskLevel == action.RiskHigh || spec.Irreversible
	cooldown := 0
	if requiresConfirm {
		cooldown = 30
	}

	deny := func(reason string) Decision {
		return Decision{Allowed: false, Reason: reason, RequiresConfirm: requiresConfirm, CooldownSeconds: cooldown}
	}

	if strings.TrimSpace(spec.IntentID) == "" && pctx.Mode != action.ModeMock {
		return deny(ReasonMissingIntent)
	}
	if pctx.Mode == action.ModeOffline && spec.ActionType.BlockedOffline() {
		return deny(ReasonOfflineBlocked)
	}
	if pctx.Mode == action.ModeLive && spec.ActionType.IsOutbound() && strings.TrimSpace(spec.PayloadTo()) == "" {
		return deny(ReasonMissingPayloadTo)
	}
	if e.violatesConstitution(ctx, spec.Description) {
		return deny(ReasonForbiddenOptimization)
	}

	return Decision{Allowed: true, RequiresConfirm: requiresConfirm, CooldownSeconds: cooldown}
}

func (e *Evaluator) violatesConstitution(ctx context.Context, description string) bool {
	if len(e.forbiddenTerms) == 0 {
		return false
	}
	rs, err := e.prepared.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"description":     strings.ToLower(description),
		"forbidden_terms": e.forbiddenTerms,
	}))
	if err != nil || len(rs) == 0 {
		// A policy-engine failure is fail-open: it is not itself a
		// pipeline guard failure, so it is reported as "no violation
		// detected" and only the structural rules above can deny.
		return false
	}
	violation, _ := rs[0].Bindings["violation"].(bool)
	return violation
}
