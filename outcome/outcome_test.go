package outcome_test

import (
	"testing"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/outcome"
)

func TestIsTerminal(t *testing.T) {
	if !outcome.Executed("ok", nil).IsTerminal() {
		t.Fatalf("expected executed outcome to be terminal")
	}
	if outcome.Deferred("wait", outcome.NextSchedule, nil).IsTerminal() {
		t.Fatalf("expected deferred outcome to not be terminal")
	}
	if outcome.Halted("no", nil).IsTerminal() {
		t.Fatalf("expected halted outcome to not be terminal")
	}
}

func TestConstructorsStampKind(t *testing.T) {
	if got := outcome.Deferred("x", outcome.NextAskUser, nil); got.Kind != outcome.KindDeferred || got.NextAction != outcome.NextAskUser {
		t.Fatalf("got %+v", got)
	}
}
