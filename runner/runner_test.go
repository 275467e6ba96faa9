package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/action"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/runner"
)

func TestRegistrySelectsByMode(t *testing.T) {
	reg := runner.NewRegistry()
	reg.Register(action.ModeMock, runner.MockRunner{})
	reg.Register(action.ModeOffline, runner.OfflineRunner{})

	run, ok := reg.Get(action.ModeMock)
	if !ok || run.Name() != "mock" {
		t.Fatalf("expected mock runner registered, got %v ok=%v", run, ok)
	}
	if _, ok := reg.Get(action.ModeLive); ok {
		t.Fatalf("expected no runner registered for LIVE")
	}
}

func TestMockRunnerAlwaysSucceedsWithUniqueResponseIDs(t *testing.T) {
	spec := action.New(action.KindTask, "x", "intent:x", "m", action.RiskLow, false, nil)
	r1, _ := runner.MockRunner{}.Run(context.Background(), spec, action.PolicyContext{})
	r2, _ := runner.MockRunner{}.Run(context.Background(), spec, action.PolicyContext{})
	if r1.Status != runner.StatusExecuted || r2.Status != runner.StatusExecuted {
		t.Fatalf("expected mock runner to always succeed")
	}
	if r1.ResponseID == r2.ResponseID {
		t.Fatalf("expected distinct response ids across calls")
	}
}

func TestOfflineRunnerSucceedsWithNoResponseID(t *testing.T) {
	spec := action.New(action.KindTask, "x", "intent:x", "m", action.RiskLow, false, nil)
	r, err := runner.OfflineRunner{}.Run(context.Background(), spec, action.PolicyContext{})
	if err != nil || r.Status != runner.StatusExecuted || r.ResponseID != "" {
		t.Fatalf("got %+v err=%v", r, err)
	}
}

func TestLiveRunnerSurfacesExecutorError(t *testing.T) {
	lr := runner.LiveRunner{
		ProviderName: "acme",
		Execute: func(ctx context.Context, spec action.Spec) (string, error) {
			return "", errors.New("provider unavailable")
		},
	}
	spec := action.New(action.KindEmail, "x", "intent:x", "m", action.RiskLow, false, map[string]interface{}{"to": "a@example.com"})
	result, err := lr.Run(context.Background(), spec, action.PolicyContext{Mode: action.ModeLive})
	if err != nil {
		t.Fatalf("expected Run to report failure via Result, not error, got err=%v", err)
	}
	if result.Status != runner.StatusFailed || result.Error == "" {
		t.Fatalf("got %+v", result)
	}
}

func TestLiveRunnerWithoutExecuteFails(t *testing.T) {
	lr := runner.LiveRunner{ProviderName: "acme"}
	spec := action.New(action.KindEmail, "x", "intent:x", "m", action.RiskLow, false, map[string]interface{}{"to": "a@example.com"})
	result, err := lr.Run(context.Background(), spec, action.PolicyContext{Mode: action.ModeLive})
	if err == nil || result.Status != runner.StatusFailed {
		t.Fatalf("expected an unconfigured live runner to fail loudly, got result=%+v err=%v", result, err)
	}
}
