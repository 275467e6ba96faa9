package kernel_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/action"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/config"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/consent"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/identity"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/kernel"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/kvstore"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/opportunity"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/outcome"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/reachability"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/runner"
)

const testUserID = "user-1"
const testEmail = "lead-1@example.com"

func testConfig() *config.Config {
	return &config.Config{
		Env:                         "test",
		KVBackend:                   "memory",
		DefaultMode:                 "MOCK",
		DefaultTrustLevel:           1,
		ForbiddenOptimizationTerms:  []string{"maximize engagement"},
		DefaultMaxConcurrentActions: 5,
		DefaultRecoveryRate:         1,
		CoolingDeferralThreshold:    3,
		CoolingRepairThreshold:      6,
		ThrottleDailyCap:            50,
		ThrottleHourlyCap:           20,
		ThrottleRampLimit:           0,
		OpportunityMaxSize:          20,
		EnergyPodLimit:              100,
		EnergyHumanLimit:            100,
		EnergyChannelLimit:          100,
		EnergyDayLimit:              100,
		EnergyMinUnits:              1,
		ChainMaxDepth:               3,
		RetryBaseCooldownSteps:      1,
		LogLevel:                    "error",
	}
}

func newKernel(t *testing.T, cfg *config.Config) *kernel.Kernel {
	t.Helper()
	store := kvstore.NewMemoryStore()
	runners := runner.NewRegistry()
	runners.Register(action.ModeOffline, runner.OfflineRunner{})
	runners.Register(action.ModeMock, runner.MockRunner{})

	k, err := kernel.New(context.Background(), store, cfg, zerolog.Nop(), runners)
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	// Every scenario below exercises guards other than consent, so grant it
	// up front — a fresh identity otherwise defaults to consent_status=unknown
	// and canOutreach stays false.
	k.Consent().ApplyConsent(identity.Key(testUserID, testEmail), consent.StatusGranted, "evidence-1")
	return k
}

func baseInput(mode action.Mode) kernel.PipelineInput {
	return kernel.PipelineInput{
		Action: action.New(action.KindTask, "follow up with lead", "intent:onboarding",
			"reply_rate", action.RiskLow, false, map[string]interface{}{"to": "lead-1"}),
		PolicyContext: action.PolicyContext{Mode: mode, TrustLevel: 1},
		UserID:        testUserID,
		Email:         testEmail,
		PodID:         "pod-1",
		ThreadID:      "thread-1",
		RetryKey:      "retry-1",
		DayID:         "2026-07-30",
		HumanOwner:    "owner-1",
		Reachability:  &reachability.Profile{Email: testEmail},
		Channel:       reachability.ChannelEmail,
	}
}

// Scenario: OFFLINE mode blocks outbound email actions at the policy gate.
func TestOfflineEmailBlocked(t *testing.T) {
	k := newKernel(t, testConfig())
	in := baseInput(action.ModeOffline)
	in.Action = action.New(action.KindEmail, "say hi", "intent:onboarding", "reply_rate",
		action.RiskLow, false, map[string]interface{}{"to": "lead-1@example.com"})

	result, err := k.RunPipelineStep(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome.Kind != outcome.KindHalted {
		t.Fatalf("expected OFFLINE email to halt, got %+v", result.Outcome)
	}
}

// Scenario: a MOCK-mode task executes end to end.
func TestMockTaskExecutes(t *testing.T) {
	k := newKernel(t, testConfig())
	in := baseInput(action.ModeMock)

	result, err := k.RunPipelineStep(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome.Kind != outcome.KindExecuted {
		t.Fatalf("expected MOCK task to execute, got %+v", result.Outcome)
	}
}

// Scenario: capacity exhaustion defers rather than halting.
func TestCapacityExceededDefers(t *testing.T) {
	cfg := testConfig()
	k := newKernel(t, cfg)
	k.Capacity().Configure("pod-1", 1, 1)
	k.Capacity().LoadInc("pod-1")

	in := baseInput(action.ModeMock)
	result, err := k.RunPipelineStep(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome.Kind != outcome.KindDeferred {
		t.Fatalf("expected capacity exhaustion to defer, got %+v", result.Outcome)
	}
}

// Scenario: two opportunities enqueue in order; executing the second while
// the first is at the front defers with OUT_OF_ORDER; resolving the front
// advances the queue head (spec.md §8 scenario 4).
func TestOpportunityQueueOrdering(t *testing.T) {
	k := newKernel(t, testConfig())

	enqueue := func(id string) {
		t.Helper()
		in := baseInput(action.ModeMock)
		in.OpportunityID = id
		in.OpportunityIsNew = true
		result, err := k.RunPipelineStep(context.Background(), in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Outcome.Kind != outcome.KindDeferred {
			t.Fatalf("expected a brand-new opportunity to queue and defer, got %+v", result.Outcome)
		}
	}
	enqueue("opp-1")
	enqueue("opp-2")

	queue := k.OpportunityQueue("pod-1")
	if len(queue) != 2 || queue[0].OpportunityID != "opp-1" || queue[1].OpportunityID != "opp-2" {
		t.Fatalf("expected opp-1 then opp-2 queued in order, got %+v", queue)
	}

	outOfOrder := baseInput(action.ModeMock)
	outOfOrder.OpportunityID = "opp-2"
	outOfOrder.OpportunityCooldownSatisfied = true
	result, err := k.RunPipelineStep(context.Background(), outOfOrder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome.Kind != outcome.KindDeferred || result.Outcome.Summary != opportunity.ReasonOutOfOrder {
		t.Fatalf("expected executing opp-2 while opp-1 is at front to defer with OUT_OF_ORDER, got %+v", result.Outcome)
	}

	front := baseInput(action.ModeMock)
	front.OpportunityID = "opp-1"
	front.OpportunityCooldownSatisfied = true
	result, err = k.RunPipelineStep(context.Background(), front)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome.Kind != outcome.KindExecuted {
		t.Fatalf("expected the front-of-queue opportunity to execute once ready, got %+v", result.Outcome)
	}

	queue = k.OpportunityQueue("pod-1")
	if len(queue) != 1 || queue[0].OpportunityID != "opp-2" {
		t.Fatalf("expected opp-2 to become the new queue head once opp-1 resolves, got %+v", queue)
	}
}

// Scenario: a soft lock held by one pod (auto-release off) blocks another pod.
func TestSoftLockContention(t *testing.T) {
	k := newKernel(t, testConfig())

	holder := baseInput(action.ModeMock)
	holder.ResourceID = "contract-1"
	holder.SoftLockAutoRelease = false
	result, err := k.RunPipelineStep(context.Background(), holder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome.Kind != outcome.KindExecuted {
		t.Fatalf("expected the lock holder's action to execute, got %+v", result.Outcome)
	}

	contender := baseInput(action.ModeMock)
	contender.PodID = "pod-2"
	contender.ResourceID = "contract-1"
	result, err = k.RunPipelineStep(context.Background(), contender)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome.Kind != outcome.KindHalted {
		t.Fatalf("expected a contending pod to be halted while the lock is held, got %+v", result.Outcome)
	}
}

// Scenario: chain depth cap halts once the thread's action chain reaches max depth.
func TestChainMaxDepthHalts(t *testing.T) {
	cfg := testConfig()
	cfg.ChainMaxDepth = 2
	k := newKernel(t, cfg)

	for i := 0; i < 2; i++ {
		in := baseInput(action.ModeMock)
		result, err := k.RunPipelineStep(context.Background(), in)
		if err != nil {
			t.Fatalf("unexpected error on attempt %d: %v", i, err)
		}
		if result.Outcome.Kind != outcome.KindExecuted {
			t.Fatalf("expected attempt %d to execute, got %+v", i, result.Outcome)
		}
	}

	in := baseInput(action.ModeMock)
	result, err := k.RunPipelineStep(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome.Kind != outcome.KindHalted {
		t.Fatalf("expected the third attempt to halt on chain depth, got %+v", result.Outcome)
	}
}

// Universal invariant: LIVE mode without a response_id hint is a safe-hold halt, never executed.
func TestLiveWithoutResponseIDIsSafeHold(t *testing.T) {
	k := newKernel(t, testConfig())
	in := baseInput(action.ModeLive)
	in.Action = action.New(action.KindEmail, "say hi", "intent:onboarding", "reply_rate",
		action.RiskLow, false, map[string]interface{}{"to": "lead-1@example.com"})

	result, err := k.RunPipelineStep(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome.Kind != outcome.KindHalted {
		t.Fatalf("expected LIVE without a response_id hint to safe-hold, got %+v", result.Outcome)
	}
}

// Universal invariant: every pipeline step appends to the revenue ledger
// regardless of outcome kind.
func TestRevenueLedgerRecordsEveryOutcome(t *testing.T) {
	k := newKernel(t, testConfig())
	in := baseInput(action.ModeOffline)
	in.Action = action.New(action.KindEmail, "say hi", "intent:onboarding", "reply_rate",
		action.RiskLow, false, map[string]interface{}{"to": "lead-1@example.com"})

	k.RunPipelineStep(context.Background(), in)

	entries, _ := k.LoadRevenueLedgerPage(identity.Key(testUserID, testEmail), 10, 0)
	if len(entries) != 1 {
		t.Fatalf("expected a halted step to still be recorded, got %d entries", len(entries))
	}
	if entries[0].EvidenceRef.Timestamp == "" || entries[0].EvidenceRef.Timestamp != entries[0].Timestamp {
		t.Fatalf("expected evidence_ref.timestamp to match the entry timestamp, got entry=%q evidence=%q",
			entries[0].Timestamp, entries[0].EvidenceRef.Timestamp)
	}
}
