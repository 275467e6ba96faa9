// Command kernel wires config, logging, a KV store, and the pipeline
// orchestrator together and runs one illustrative pipeline step. It is a
// demo entry point, not a server — the kernel itself has no wire protocol
// (spec.md §1's non-goal on an outward-facing API).
package main

import (
	"context"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/action"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/config"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/consent"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/identity"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/kernel"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/kvstore"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/logging"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/reachability"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/runner"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg)

	store, err := newStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("building kv store")
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	runners := runner.NewRegistry()
	runners.Register(action.ModeOffline, runner.OfflineRunner{})
	runners.Register(action.ModeMock, runner.MockRunner{})

	ctx := context.Background()
	k, err := kernel.New(ctx, store, cfg, log, runners)
	if err != nil {
		log.Fatal().Err(err).Msg("building kernel")
	}

	// A real caller applies consent out of band (e.g. a CRM webhook) before
	// the lead is ever proposed for outreach; the demo does the same here.
	k.Consent().ApplyConsent(identity.Key("user-42", "lead-42@example.com"), consent.StatusGranted, "demo-evidence-1")

	spec := action.New(
		action.KindTask,
		"send a welcome follow-up",
		"intent:onboarding",
		"reply_rate",
		action.RiskLow,
		false,
		map[string]interface{}{"to": "lead-42"},
	)

	input := kernel.PipelineInput{
		Action:        spec,
		PolicyContext: action.PolicyContext{Mode: action.Mode(cfg.DefaultMode), TrustLevel: cfg.DefaultTrustLevel},
		UserID:        "user-42",
		Email:         "lead-42@example.com",
		PodID:         "pod-demo",
		ThreadID:      "thread-demo",
		RetryKey:      "retry-demo",
		DayID:         "2026-07-30",
		HumanOwner:    "owner-demo",
		Reachability:  &reachability.Profile{Email: "lead-42@example.com"},
		Channel:       reachability.ChannelEmail,
		Notes:         "cmd/kernel demo run",
	}

	result, err := k.RunPipelineStep(ctx, input)
	if err != nil {
		log.Fatal().Err(err).Msg("running pipeline step")
	}

	log.Info().
		Str("outcome", string(result.Outcome.Kind)).
		Str("summary", result.Outcome.Summary).
		Str("entry_id", result.LedgerEntry.EntryID).
		Msg("pipeline step complete")
}

func newStore(cfg *config.Config) (kvstore.Store, error) {
	switch cfg.KVBackend {
	case "redis":
		return kvstore.NewRedisStore(cfg.RedisURL)
	default:
		return kvstore.NewMemoryStore(), nil
	}
}
