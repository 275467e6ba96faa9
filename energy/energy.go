// Package energy folds the global capacity-energy ledger (spec.md §4.9):
// four running sums (pod/human/channel/day) over one energy-unit budget.
// Grounded on the teacher's CostEngine reserve-then-settle wallet,
// generalized from token/cost units to a four-bucket business-action
// energy budget.
package energy

import (
	"encoding/json"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

const scope = "global"

const eventConsume = "consume"

const (
	ReasonPodCapacity     = "POD_CAPACITY"
	ReasonHumanCapacity   = "HUMAN_CAPACITY"
	ReasonChannelCapacity = "CHANNEL_CAPACITY"
	ReasonDayCapacity     = "DAY_CAPACITY"
)

type consumeEvent struct {
	DayID      string `json:"day_id"`
	PodID      string `json:"pod_id"`
	HumanOwner string `json:"human_owner"`
	Channel    string `json:"channel"`
	Units      int    `json:"units"`
}

// Limits configures the four bucket ceilings and the per-irreversible-
// action unit cost.
type Limits struct {
	PodLimit     int
	HumanLimit   int
	ChannelLimit int
	DayLimit     int
	MinUnits     int
}

// State is the derived CapacityEnergyState for one (day, pod, human, channel).
type State struct {
	PodUsed     int
	HumanUsed   int
	ChannelUsed int
	DayUsed     int
}

// Ledger folds the global energy ledger.
type Ledger struct {
	ledger *ledger.Ledger
	clock  *clock.Clock
	limits Limits
}

func New(l *ledger.Ledger, c *clock.Clock, limits Limits) *Ledger {
	return &Ledger{ledger: l, clock: c, limits: limits}
}

// RequiredUnits is min_units if the action is irreversible, else zero.
func (l *Ledger) RequiredUnits(irreversible bool) int {
	if irreversible {
		return l.limits.MinUnits
	}
	return 0
}

// Get folds the four running sums for dayID/podID/humanOwner/channel.
func (l *Ledger) Get(dayID, podID, humanOwner, channel string) State {
	var st State
	for _, e := range l.ledger.Read(scope) {
		if e.Type != eventConsume {
			continue
		}
		var ev consumeEvent
		if err := json.Unmarshal(e.Data, &ev); err != nil || ev.DayID != dayID {
			continue
		}
		st.DayUsed += ev.Units
		if ev.PodID == podID {
			st.PodUsed += ev.Units
		}
		if ev.HumanOwner == humanOwner {
			st.HumanUsed += ev.Units
		}
		if ev.Channel == channel {
			st.ChannelUsed += ev.Units
		}
	}
	return st
}

// Check evaluates the required units against the four buckets in order:
// pod, human, channel, day.
func (l *Ledger) Check(dayID, podID, humanOwner, channel string, required int) (bool, string) {
	if required <= 0 {
		return true, ""
	}
	st := l.Get(dayID, podID, humanOwner, channel)
	if st.PodUsed+required > l.limits.PodLimit {
		return false, ReasonPodCapacity
	}
	if st.HumanUsed+required > l.limits.HumanLimit {
		return false, ReasonHumanCapacity
	}
	if st.ChannelUsed+required > l.limits.ChannelLimit {
		return false, ReasonChannelCapacity
	}
	if st.DayUsed+required > l.limits.DayLimit {
		return false, ReasonDayCapacity
	}
	return true, ""
}

// Consume appends a consume event. Only called for executed irreversible
// actions, per spec.md §4.9.
func (l *Ledger) Consume(dayID, podID, humanOwner, channel string, units int) {
	data, _ := json.Marshal(consumeEvent{DayID: dayID, PodID: podID, HumanOwner: humanOwner, Channel: channel, Units: units})
	l.ledger.Append(scope, ledger.Entry{
		Timestamp: l.clock.Next(scope),
		Type:      eventConsume,
		Data:      data,
	})
}
