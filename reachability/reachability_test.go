package reachability_test

import (
	"testing"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/reachability"
)

func TestSelectChannelPriority(t *testing.T) {
	p := &reachability.Profile{
		Phones: []reachability.Phone{{Type: reachability.PhoneMobile, Verified: true}},
		Email:  "a@example.com",
	}
	if ch, _ := p.SelectChannel(); ch != reachability.ChannelSMS {
		t.Fatalf("expected sms to win over email, got %q", ch)
	}

	p2 := &reachability.Profile{
		Phones: []reachability.Phone{{Type: reachability.PhoneLandline, Verified: true}},
		Email:  "a@example.com",
	}
	if ch, _ := p2.SelectChannel(); ch != reachability.ChannelVoice {
		t.Fatalf("expected voice (landline ok) to win over email, got %q", ch)
	}

	p3 := &reachability.Profile{Email: "a@example.com"}
	if ch, _ := p3.SelectChannel(); ch != reachability.ChannelEmail {
		t.Fatalf("expected email as last resort, got %q", ch)
	}

	p4 := &reachability.Profile{}
	ch, reason := p4.SelectChannel()
	if ch != reachability.ChannelNone || reason != reachability.ReasonNoReachableChannels {
		t.Fatalf("expected none/NO_REACHABLE_CHANNELS, got %q %q", ch, reason)
	}
}

func TestDoNotContactBlocksEveryChannel(t *testing.T) {
	p := &reachability.Profile{
		Phones:       []reachability.Phone{{Type: reachability.PhoneMobile, Verified: true}},
		Email:        "a@example.com",
		DoNotContact: true,
	}
	ch, reason := p.SelectChannel()
	if ch != reachability.ChannelNone || reason != reachability.ReasonDoNotContact {
		t.Fatalf("expected DNC to block selection, got %q %q", ch, reason)
	}
	if ok, _ := p.CanUseChannel(reachability.ChannelEmail); ok {
		t.Fatalf("expected DNC to block CanUseChannel regardless of channel")
	}
}

func TestRecordOutcomeTracksAttempts(t *testing.T) {
	p := &reachability.Profile{}
	p.RecordOutcome(reachability.ChannelSMS, "bounced")
	if p.ChannelAttempts[reachability.ChannelSMS] != 1 || p.LastOutcome[reachability.ChannelSMS] != "bounced" {
		t.Fatalf("expected attempt recorded, got %+v %+v", p.ChannelAttempts, p.LastOutcome)
	}
}
