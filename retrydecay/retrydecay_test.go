package retrydecay_test

import (
	"testing"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/kvstore"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/retrydecay"
)

func newLedger(base int) *retrydecay.Ledger {
	store := kvstore.NewMemoryStore()
	return retrydecay.New(ledger.New(store, "retryDecay"), clock.New(store, "retry", "r"), base)
}

func TestCooldownGrowsMonotonicallyWithFailures(t *testing.T) {
	l := newLedger(1)
	if l.Get("key-1").RequiredCooldownSteps != 0 {
		t.Fatalf("expected zero cooldown with no failures")
	}
	l.RecordAttempt("key-1")
	l.RecordOutcome("key-1", false)
	first := l.Get("key-1").RequiredCooldownSteps
	if first != 2 {
		t.Fatalf("expected base+1 failure = 2, got %d", first)
	}

	l.RecordAttempt("key-1")
	l.RecordOutcome("key-1", false)
	second := l.Get("key-1").RequiredCooldownSteps
	if second <= first {
		t.Fatalf("expected cooldown to grow after a second failure, got %d then %d", first, second)
	}
}

func TestSuccessfulOutcomeNeverDecrementsCooldown(t *testing.T) {
	l := newLedger(1)
	l.RecordAttempt("key-1")
	l.RecordOutcome("key-1", false)
	before := l.Get("key-1").RequiredCooldownSteps

	l.RecordAttempt("key-1")
	l.RecordOutcome("key-1", true)
	after := l.Get("key-1").RequiredCooldownSteps

	if after != before {
		t.Fatalf("expected a success to leave the accrued cooldown unchanged, got before=%d after=%d", before, after)
	}
}
