package pod_test

import (
	"testing"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/kvstore"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/pod"
)

func TestRegisterThenGet(t *testing.T) {
	store := kvstore.NewMemoryStore()
	l := pod.New(ledger.New(store, "podLedger"), clock.New(store, "pod", "g"))

	if got := l.Get("email:a@example.com"); got.PodID != "" {
		t.Fatalf("expected zero-value profile before registration, got %+v", got)
	}

	p := l.Register("email:a@example.com", "pod-1", "Pod One", "owner-1")
	if p.PodID != "pod-1" || p.HumanOwner != "owner-1" {
		t.Fatalf("got %+v", p)
	}
	if got := l.Get("email:a@example.com"); got.PodID != "pod-1" {
		t.Fatalf("expected Get to reflect the registered profile, got %+v", got)
	}
}

func TestReRegisterOverwritesLatestRead(t *testing.T) {
	store := kvstore.NewMemoryStore()
	l := pod.New(ledger.New(store, "podLedger"), clock.New(store, "pod", "g"))
	l.Register("email:a@example.com", "pod-1", "Pod One", "owner-1")
	l.Register("email:a@example.com", "pod-2", "Pod Two", "owner-2")

	got := l.Get("email:a@example.com")
	if got.PodID != "pod-2" {
		t.Fatalf("expected the most recent registration to win, got %+v", got)
	}
}
