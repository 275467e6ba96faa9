// Package runner defines the pluggable action execution contract (spec.md
// §4.11, §6): C22. Grounded on the teacher's Provider interface +
// registry pattern, generalized from "LLM provider" to "action execution
// backend" selected by PolicyContext.Mode.
package runner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/action"
)

// RunStatus is the run_result.status from spec.md §6.
type RunStatus string

const (
	StatusExecuted RunStatus = "executed"
	StatusFailed   RunStatus = "failed"
)

// Result is the runner's return value.
type Result struct {
	Status     RunStatus
	Provider   string
	ResponseID string
	Error      string
}

// Runner executes an ActionSpec under a PolicyContext and returns evidence
// material (a provider name and an optional response id).
type Runner interface {
	Name() string
	Run(ctx context.Context, spec action.Spec, pctx action.PolicyContext) (Result, error)
}

// Registry selects a Runner by PolicyContext.Mode.
type Registry struct {
	byMode map[action.Mode]Runner
}

func NewRegistry() *Registry {
	return &Registry{byMode: make(map[action.Mode]Runner)}
}

func (r *Registry) Register(mode action.Mode, run Runner) {
	r.byMode[mode] = run
}

func (r *Registry) Get(mode action.Mode) (Runner, bool) {
	run, ok := r.byMode[mode]
	return run, ok
}

// MockRunner always succeeds with evidence.status=mock — used for MOCK mode.
type MockRunner struct{}

func (MockRunner) Name() string { return "mock" }

func (MockRunner) Run(_ context.Context, spec action.Spec, _ action.PolicyContext) (Result, error) {
	return Result{Status: StatusExecuted, Provider: "mock", ResponseID: "mock-" + uuid.NewString()}, nil
}

// OfflineRunner is used for OFFLINE mode. Policy already blocks email,
// webhook, sms and voice in OFFLINE (spec.md §4.3 rule 2), so only message,
// task and note actions reach this runner; it always succeeds with mock evidence.
type OfflineRunner struct{}

func (OfflineRunner) Name() string { return "offline" }

func (OfflineRunner) Run(_ context.Context, spec action.Spec, _ action.PolicyContext) (Result, error) {
	return Result{Status: StatusExecuted, Provider: "offline", ResponseID: ""}, nil
}

// LiveRunner is a thin contract a real transport adapter implements; the
// kernel ships no real outbound transport (spec.md §1's non-goals), so this
// type exists to be satisfied by a caller-supplied backend, not to reach a
// network itself.
type LiveRunner struct {
	ProviderName string
	Execute      func(ctx context.Context, spec action.Spec) (responseID string, err error)
}

func (l LiveRunner) Name() string { return l.ProviderName }

func (l LiveRunner) Run(ctx context.Context, spec action.Spec, _ action.PolicyContext) (Result, error) {
	if l.Execute == nil {
		return Result{Status: StatusFailed, Provider: l.ProviderName, Error: "no live executor configured"}, fmt.Errorf("runner %q has no Execute function", l.ProviderName)
	}
	responseID, err := l.Execute(ctx, spec)
	if err != nil {
		return Result{Status: StatusFailed, Provider: l.ProviderName, Error: err.Error()}, nil
	}
	return Result{Status: StatusExecuted, Provider: l.ProviderName, ResponseID: responseID}, nil
}
