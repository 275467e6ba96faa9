// Package kernel composes C5–C18 behind the fixed guard precedence of
// spec.md §4.11 and writes the revenue ledger. This is the pipeline
// orchestrator, C20.
package kernel

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/action"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/autohelp"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/capacity"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/chain"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/config"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/consent"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/cooling"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/energy"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/evidence"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/identity"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/kvstore"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/opportunity"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/outcome"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/policy"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/reachability"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/retrydecay"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/revenueledger"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/runner"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/sensitive"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/softlock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/throttle"
)

// PipelineInput is the caller-supplied context for one runPipelineStep call.
type PipelineInput struct {
	Action        action.Spec
	PolicyContext action.PolicyContext

	UserID string
	Email  string

	PodID      string
	ThreadID   string
	ResourceID string
	RetryKey   string
	DayID      string
	HumanOwner string

	Reachability *reachability.Profile
	Channel      reachability.Channel

	HandoffRequired bool
	HandoffToken    string

	OpportunityID                 string
	OpportunityIsNew              bool
	OpportunityCooldownSatisfied  bool

	Sensitive sensitive.Input

	IsAutoHelpAction bool

	ThrottleKey string

	ConfirmProvided     bool
	SoftLockAutoRelease bool
	ResponseIDHint      string

	StageTransition string
	Notes           string

	Provider string
}

// StepResult is what run_pipeline_step returns to callers.
type StepResult struct {
	Outcome     outcome.Outcome
	Proof       map[string]interface{}
	LedgerEntry revenueledger.Entry
}

// Kernel wires every guard ledger behind the fixed precedence pipeline.
type Kernel struct {
	cfg    *config.Config
	log    zerolog.Logger
	policy *policy.Evaluator

	consent     *consent.Ledger
	throttle    *throttle.State
	capacity    *capacity.Ledger
	cooling     *cooling.Ledger
	opportunity *opportunity.Ledger
	energy      *energy.Ledger
	chain       *chain.Ledger
	autohelp    *autohelp.Ledger
	softlock    *softlock.Ledger
	retrydecay  *retrydecay.Ledger
	revenue     *revenueledger.Ledger

	runners *runner.Registry
}

// New builds a Kernel over store with every guard ledger family wired,
// using cfg's defaults for thresholds and limits.
func New(ctx context.Context, store kvstore.Store, cfg *config.Config, log zerolog.Logger, runners *runner.Registry) (*Kernel, error) {
	pol, err := policy.New(ctx, cfg.ForbiddenOptimizationTerms)
	if err != nil {
		return nil, fmt.Errorf("building policy evaluator: %w", err)
	}

	consentLedger := ledger.New(store, "consentLedger")
	capacityLedger := ledger.New(store, "capacityLedger")
	coolingLedger := ledger.New(store, "coolingLedger")
	opportunityLedger := ledger.New(store, "opportunityQueue")
	energyLedger := ledger.New(store, "capacityEnergy")
	chainLedger := ledger.New(store, "actionChain")
	autoHelpLedger := ledger.New(store, "autoHelp")
	softLockLedger := ledger.New(store, "softLocks")
	retryLedger := ledger.New(store, "retryDecay")
	revenueLedger := ledger.New(store, "revenueLedger")

	k := &Kernel{
		cfg:    cfg,
		log:    log,
		policy: pol,

		consent:     consent.New(consentLedger, clock.New(store, "consent", "k")),
		capacity:    capacity.New(capacityLedger, clock.New(store, "capacity", "p")),
		opportunity: opportunity.New(opportunityLedger, clock.New(store, "opportunity", "o"), cfg.OpportunityMaxSize),
		energy: energy.New(energyLedger, clock.New(store, "energy", "e"), energy.Limits{
			PodLimit:     cfg.EnergyPodLimit,
			HumanLimit:   cfg.EnergyHumanLimit,
			ChannelLimit: cfg.EnergyChannelLimit,
			DayLimit:     cfg.EnergyDayLimit,
			MinUnits:     cfg.EnergyMinUnits,
		}),
		chain:      chain.New(chainLedger, clock.New(store, "chain", "h"), cfg.ChainMaxDepth),
		autohelp:   autohelp.New(autoHelpLedger, clock.New(store, "autohelp", "l")),
		softlock:   softlock.New(softLockLedger, clock.New(store, "softlock", "m")),
		retrydecay: retrydecay.New(retryLedger, clock.New(store, "retry", "r"), cfg.RetryBaseCooldownSteps),
		revenue:    revenueledger.New(revenueLedger, clock.New(store, "revenue", "s")),
		throttle:   throttle.New(cfg.ThrottleDailyCap, cfg.ThrottleHourlyCap, cfg.ThrottleRampLimit),
		runners:    runners,
	}
	k.cooling = cooling.New(coolingLedger, clock.New(store, "cooling", "c"), cooling.Thresholds{
		DeferralThreshold: cfg.CoolingDeferralThreshold,
		RepairThreshold:   cfg.CoolingRepairThreshold,
	})
	return k, nil
}

func (k *Kernel) identityKey(in PipelineInput) string {
	return identity.Key(in.UserID, in.Email)
}

// logOutcome emits one structured event per pipeline decision, level keyed
// to severity: executed at info, halted at warn, deferred at debug.
func (k *Kernel) logOutcome(identityKey string, spec action.Spec, o outcome.Outcome) {
	ev := k.log.Debug()
	switch o.Kind {
	case outcome.KindExecuted:
		ev = k.log.Info()
	case outcome.KindHalted:
		ev = k.log.Warn()
	}
	ev.Str("identity", identityKey).
		Str("action_id", spec.ActionID).
		Str("action_type", string(spec.ActionType)).
		Str("outcome", string(o.Kind)).
		Str("summary", o.Summary).
		Msg("pipeline step decided")
}

// RunPipelineStep is the full guard-precedence orchestrator (spec.md §4.11).
func (k *Kernel) RunPipelineStep(ctx context.Context, in PipelineInput) (StepResult, error) {
	spec := in.Action.WithIntentFallback(in.PolicyContext.Mode)
	identityKey := k.identityKey(in)
	proof := map[string]interface{}{"identity": identityKey, "action_id": spec.ActionID}
	lockAcquired := false

	decide := func(o outcome.Outcome) (StepResult, error) {
		if lockAcquired {
			k.releaseSoftLockIfDue(in, o)
		}
		ts := k.revenue.Stamp(identityKey)
		ev := evidence.Build(in.Provider, spec, in.PolicyContext.Mode, "", ts)
		entry := k.revenue.Append(identityKey, ts, spec, o, ev, in.StageTransition, in.Notes)
		k.logOutcome(identityKey, spec, o)
		return StepResult{Outcome: o, Proof: proof, LedgerEntry: entry}, nil
	}

	// 1. Policy
	decision := k.policy.Evaluate(ctx, spec, in.PolicyContext)
	proof["policy"] = decision
	if !decision.Allowed {
		return decide(outcome.Halted("FAIL_POLICY_CONFLICT: "+decision.Reason, proof))
	}

	// 2. Handoff
	if in.HandoffRequired && in.HandoffToken == "" {
		return decide(outcome.Halted("FAIL_HANDOFF_REQUIRED", proof))
	}

	// 3. Chain depth
	if ok, reason := k.chain.CheckDepth(in.ThreadID); !ok {
		return decide(outcome.Halted(reason, proof))
	}

	// 4. Auto-help repeat
	if in.IsAutoHelpAction {
		if ok, reason := k.autohelp.CheckTrigger(in.ThreadID); !ok {
			return decide(outcome.Halted(reason, proof))
		}
		k.autohelp.RecordTrigger(in.ThreadID)
	}

	// 5. Soft lock
	if in.ResourceID != "" {
		if ok, reason := k.softlock.CheckAcquire(in.ResourceID, in.PodID); !ok {
			return decide(outcome.Halted(reason, proof))
		}
		k.softlock.Acquire(in.ResourceID, in.PodID, in.SoftLockAutoRelease)
		lockAcquired = true
	}

	// 6. Sensitive-data gate
	if ok, reason := sensitive.Check(in.Sensitive); !ok {
		return decide(outcome.Halted(reason, proof))
	}

	// 7 & 8. Opportunity queue
	if in.OpportunityID != "" || in.OpportunityIsNew {
		state, reason := k.opportunity.Evaluate(in.PodID, in.OpportunityID, in.OpportunityIsNew, in.OpportunityCooldownSatisfied)
		switch state {
		case opportunity.StateBlocked:
			switch reason {
			case opportunity.ReasonCooldownRequired, opportunity.ReasonOutOfOrder:
				return decide(outcome.Deferred(reason, outcome.NextSchedule, proof))
			default:
				return decide(outcome.Halted(reason, proof))
			}
		case opportunity.StateQueued:
			k.opportunity.Enqueue(in.PodID, in.OpportunityID)
			return decide(outcome.Deferred(reason, outcome.NextSchedule, proof))
		}
	}

	// 9. Retry cooldown
	retryState := k.retrydecay.Get(in.RetryKey)
	proof["retry_state"] = retryState
	if retryState.RequiredCooldownSteps > 0 {
		return decide(outcome.Deferred("FAIL_RETRY_COOLDOWN", outcome.NextSchedule, proof))
	}

	// 10. Growth action during repair
	capState := k.capacity.Get(in.PodID)
	if spec.Irreversible && capState.CoolingState == capacity.StateRepair {
		return decide(outcome.Halted(chain.ReasonSafeOverload, proof))
	}

	// 11. Energy capacity
	required := k.energy.RequiredUnits(spec.Irreversible)
	if ok, reason := k.energy.Check(in.DayID, in.PodID, in.HumanOwner, string(in.Channel), required); !ok {
		return decide(outcome.Deferred(reason, outcome.NextSchedule, proof))
	}

	// 12. Concurrent capacity
	if capState.MaxConcurrentActions > 0 && capState.ActiveLoad >= capState.MaxConcurrentActions {
		k.capacity.Defer(in.PodID)
		k.cooling.RecordDeferral(in.PodID)
		k.cooling.Assess(in.PodID, capState.CoolingState)
		return decide(outcome.Deferred("FAIL_CAPACITY_EXCEEDED", outcome.NextSchedule, proof))
	}

	// 13. Consent
	consentState := k.consent.Get(identityKey)
	if spec.ActionType == action.KindVoice {
		if !consentState.VoiceAllowed() {
			return decide(outcome.Halted("FAIL_CONSENT", proof))
		}
	} else if !consentState.CanOutreach() {
		return decide(outcome.Halted("FAIL_CONSENT", proof))
	}

	// 14. Reachability
	if in.Reachability != nil {
		if ok, reason := in.Reachability.CanUseChannel(in.Channel); !ok {
			return decide(outcome.Halted(reason, proof))
		}
	}

	// 15. Throttle. Not ledger-backed (spec.md §6's persisted-state layout
	// omits it) — state lives in-process, keyed by caller-supplied ThrottleKey.
	if in.ThrottleKey != "" {
		if ok, reason := k.throttle.Check(in.ThrottleKey); !ok {
			return decide(outcome.Deferred(reason, outcome.NextSchedule, proof))
		}
		k.throttle.RecordUse(in.ThrottleKey)
	}

	// 16. Irreversible cooldown
	if spec.Irreversible && decision.CooldownSeconds > 0 && !in.ConfirmProvided {
		return decide(outcome.Deferred("FAIL_COOLDOWN_REQUIRED", outcome.NextSchedule, proof))
	}

	// 17. Confirmation required
	if decision.RequiresConfirm && !in.ConfirmProvided {
		return decide(outcome.Deferred("REQUEST_APPROVAL", outcome.NextRequestApproval, proof))
	}

	// 18. LIVE outbound without response_id
	if in.PolicyContext.Mode == action.ModeLive && spec.ActionType.IsOutbound() && in.ResponseIDHint == "" {
		k.retrydecay.RecordAttempt(in.RetryKey)
		k.retrydecay.RecordOutcome(in.RetryKey, false)
		return decide(outcome.Halted("safe_hold", proof))
	}

	// 19. Execute
	k.capacity.LoadInc(in.PodID)
	k.chain.RecordAttempt(in.ThreadID)
	k.retrydecay.RecordAttempt(in.RetryKey)

	run, ok := k.runners.Get(in.PolicyContext.Mode)
	if !ok {
		k.capacity.LoadDec(in.PodID)
		return decide(outcome.Halted(fmt.Sprintf("no runner registered for mode %s", in.PolicyContext.Mode), proof))
	}
	result, err := run.Run(ctx, spec, in.PolicyContext)
	k.capacity.LoadDec(in.PodID)

	if err != nil || result.Status == runner.StatusFailed {
		k.retrydecay.RecordOutcome(in.RetryKey, false)
		msg := "runner failure"
		if err != nil {
			msg = err.Error()
		} else if result.Error != "" {
			msg = result.Error
		}
		if lockAcquired {
			k.releaseSoftLockIfDue(in, outcome.Halted(msg, proof))
		}
		ts := k.revenue.Stamp(identityKey)
		ev := evidence.Build(result.Provider, spec, in.PolicyContext.Mode, "", ts)
		entry := k.revenue.Append(identityKey, ts, spec, outcome.Halted(msg, proof), ev, in.StageTransition, in.Notes)
		k.logOutcome(identityKey, spec, entry.Outcome)
		return StepResult{Outcome: entry.Outcome, Proof: proof, LedgerEntry: entry}, nil
	}

	// Success: post-decision bookkeeping.
	ts := k.revenue.Stamp(identityKey)
	ev := evidence.Build(result.Provider, spec, in.PolicyContext.Mode, result.ResponseID, ts)
	o := outcome.Executed("executed", proof)

	if in.OpportunityID != "" {
		k.opportunity.Resolve(in.PodID, in.OpportunityID)
	}
	if required > 0 {
		k.energy.Consume(in.DayID, in.PodID, in.HumanOwner, string(in.Channel), required)
	}
	if lockAcquired {
		k.releaseSoftLockIfDue(in, o)
	}
	k.retrydecay.RecordOutcome(in.RetryKey, true)

	entry := k.revenue.Append(identityKey, ts, spec, o, ev, in.StageTransition, in.Notes)
	k.logOutcome(identityKey, spec, o)
	return StepResult{Outcome: o, Proof: proof, LedgerEntry: entry}, nil
}

// releaseSoftLockIfDue releases the held lock on a non-deferred outcome
// only when the caller set SoftLockAutoRelease; with the field left at its
// zero value (false) the lock stays held until an explicit Release.
func (k *Kernel) releaseSoftLockIfDue(in PipelineInput, o outcome.Outcome) {
	if in.ResourceID == "" || o.Kind == outcome.KindDeferred {
		return
	}
	if !in.SoftLockAutoRelease {
		return
	}
	k.softlock.Release(in.ResourceID, in.PodID)
}

// ExecuteActionPipeline is the simplified legacy path: policy + confirm +
// runner + ledger only (spec.md §6).
func (k *Kernel) ExecuteActionPipeline(ctx context.Context, spec action.Spec, pctx action.PolicyContext, confirmProvided bool, provider string) (StepResult, error) {
	spec = spec.WithIntentFallback(pctx.Mode)
	identityKey := identity.Key("", "")

	decision := k.policy.Evaluate(ctx, spec, pctx)
	proof := map[string]interface{}{"policy": decision}
	if !decision.Allowed {
		ts := k.revenue.Stamp(identityKey)
		ev := evidence.Build(provider, spec, pctx.Mode, "", ts)
		entry := k.revenue.Append(identityKey, ts, spec, outcome.Halted("FAIL_POLICY_CONFLICT: "+decision.Reason, proof), ev, "", "")
		k.logOutcome(identityKey, spec, entry.Outcome)
		return StepResult{Outcome: entry.Outcome, Proof: proof, LedgerEntry: entry}, nil
	}
	if decision.RequiresConfirm && !confirmProvided {
		ts := k.revenue.Stamp(identityKey)
		ev := evidence.Build(provider, spec, pctx.Mode, "", ts)
		entry := k.revenue.Append(identityKey, ts, spec, outcome.Deferred("REQUEST_APPROVAL", outcome.NextRequestApproval, proof), ev, "", "")
		k.logOutcome(identityKey, spec, entry.Outcome)
		return StepResult{Outcome: entry.Outcome, Proof: proof, LedgerEntry: entry}, nil
	}

	run, ok := k.runners.Get(pctx.Mode)
	if !ok {
		ts := k.revenue.Stamp(identityKey)
		ev := evidence.Build(provider, spec, pctx.Mode, "", ts)
		entry := k.revenue.Append(identityKey, ts, spec, outcome.Halted("no runner registered", proof), ev, "", "")
		k.logOutcome(identityKey, spec, entry.Outcome)
		return StepResult{Outcome: entry.Outcome, Proof: proof, LedgerEntry: entry}, nil
	}
	result, err := run.Run(ctx, spec, pctx)
	if err != nil || result.Status == runner.StatusFailed {
		msg := "runner failure"
		if err != nil {
			msg = err.Error()
		}
		ts := k.revenue.Stamp(identityKey)
		ev := evidence.Build(result.Provider, spec, pctx.Mode, "", ts)
		entry := k.revenue.Append(identityKey, ts, spec, outcome.Halted(msg, proof), ev, "", "")
		k.logOutcome(identityKey, spec, entry.Outcome)
		return StepResult{Outcome: entry.Outcome, Proof: proof, LedgerEntry: entry}, nil
	}
	ts := k.revenue.Stamp(identityKey)
	ev := evidence.Build(result.Provider, spec, pctx.Mode, result.ResponseID, ts)
	o := outcome.Executed("executed", proof)
	entry := k.revenue.Append(identityKey, ts, spec, o, ev, "", "")
	k.logOutcome(identityKey, spec, o)
	return StepResult{Outcome: o, Proof: proof, LedgerEntry: entry}, nil
}

// LoadRevenueLedgerPage reads a forward page of the revenue ledger.
func (k *Kernel) LoadRevenueLedgerPage(identityKey string, limit, cursor int) ([]revenueledger.Entry, int) {
	return k.revenue.Page(identityKey, limit, cursor)
}

// LoadRevenueLedgerTail reads a backward page of the revenue ledger.
func (k *Kernel) LoadRevenueLedgerTail(identityKey string, limit, cursor int) ([]revenueledger.Entry, int) {
	return k.revenue.Tail(identityKey, limit, cursor)
}

// CapacityState, OpportunityQueue and CoolingState are the read-only
// accessors the public API needs beyond the pipeline itself (idempotent
// reads per spec.md §8).
func (k *Kernel) CapacityState(pod string) capacity.State       { return k.capacity.Get(pod) }
func (k *Kernel) OpportunityQueue(pod string) []opportunity.Entry { return k.opportunity.Get(pod) }
func (k *Kernel) CoolingState(pod string) cooling.State {
	return k.cooling.Assess(pod, k.capacity.Get(pod).CoolingState)
}

// Throttle exposes the in-process throttle state for callers that need to
// configure cooldowns/deliverability signals ahead of a pipeline step.
func (k *Kernel) Throttle() *throttle.State { return k.throttle }

// Consent exposes the consent ledger for callers applying consent/opt-out
// events outside the pipeline (e.g. a webhook from an email provider).
func (k *Kernel) Consent() *consent.Ledger { return k.consent }

// Capacity exposes the capacity ledger for pod configuration.
func (k *Kernel) Capacity() *capacity.Ledger { return k.capacity }

// Cooling exposes the cooling ledger for window configuration.
func (k *Kernel) Cooling() *cooling.Ledger { return k.cooling }

// SoftLock exposes the soft lock ledger for explicit acquire/release calls
// outside the pipeline precedence (e.g. a caller acquiring ahead of time).
func (k *Kernel) SoftLock() *softlock.Ledger { return k.softlock }
