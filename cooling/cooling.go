// Package cooling folds the per-pod cooling window ledger (spec.md §4.7,
// second half): deferral/burnout accumulation and the derived cooling
// state, whose priority order is the core of this package.
package cooling

import (
	"encoding/json"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/capacity"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

const (
	EventConfigure = "configure"
	EventNew       = "new"
	EventDeferral  = "deferral"
	EventBurnout   = "burnout"
	EventPause     = "pause"
	EventResume    = "resume"
)

type coolingEvent struct {
	WindowID string `json:"window_id,omitempty"`
	MaxNew   int    `json:"max_new,omitempty"`
}

// State is the derived CoolingWindowState.
type State struct {
	WindowID       string
	MaxNew         int
	NewCount       int
	DeferralCount  int
	BurnoutSignals int
	Paused         bool
	CoolingState   capacity.CoolingState
}

// Thresholds configures the deferral/repair thresholds (pod-level config,
// spec.md §4.7's cooling assessment priority).
type Thresholds struct {
	DeferralThreshold int
	RepairThreshold   int
}

// Ledger folds cooling events for a pod scope.
type Ledger struct {
	ledger     *ledger.Ledger
	clock      *clock.Clock
	thresholds Thresholds
}

func New(l *ledger.Ledger, c *clock.Clock, thresholds Thresholds) *Ledger {
	return &Ledger{ledger: l, clock: c, thresholds: thresholds}
}

func (l *Ledger) raw(pod string) State {
	var st State
	for _, e := range l.ledger.Read(pod) {
		switch e.Type {
		case EventConfigure:
			var ev coolingEvent
			if err := json.Unmarshal(e.Data, &ev); err == nil {
				st.WindowID = ev.WindowID
				st.MaxNew = ev.MaxNew
			}
		case EventNew:
			st.NewCount++
		case EventDeferral:
			st.DeferralCount++
		case EventBurnout:
			st.BurnoutSignals++
		case EventPause:
			st.Paused = true
		case EventResume:
			st.Paused = false
		}
	}
	return st
}

// Assess folds the cooling window and applies the priority rule against the
// capacity ledger's current cooling state (active repair is sticky).
func (l *Ledger) Assess(pod string, activeCapacityState capacity.CoolingState) State {
	st := l.raw(pod)
	switch {
	case activeCapacityState == capacity.StateRepair:
		st.CoolingState = capacity.StateRepair
	case st.Paused:
		st.CoolingState = capacity.StateCooling
	case st.BurnoutSignals > 0:
		st.CoolingState = capacity.StateCooling
	case st.DeferralCount >= l.thresholds.RepairThreshold && l.thresholds.RepairThreshold > 0:
		st.CoolingState = capacity.StateRepair
	case st.DeferralCount >= l.thresholds.DeferralThreshold && l.thresholds.DeferralThreshold > 0:
		st.CoolingState = capacity.StateCooling
	case st.MaxNew > 0 && st.NewCount >= st.MaxNew:
		st.CoolingState = capacity.StateCooling
	default:
		st.CoolingState = capacity.StateNormal
	}
	return st
}

func (l *Ledger) append(pod, eventType string, data []byte) {
	l.ledger.Append(pod, ledger.Entry{
		Timestamp: l.clock.Next(pod),
		Type:      eventType,
		Data:      data,
	})
}

func (l *Ledger) Configure(pod, windowID string, maxNew int) {
	data, _ := json.Marshal(coolingEvent{WindowID: windowID, MaxNew: maxNew})
	l.append(pod, EventConfigure, data)
}

func (l *Ledger) RecordNew(pod string)      { l.append(pod, EventNew, nil) }
func (l *Ledger) RecordDeferral(pod string) { l.append(pod, EventDeferral, nil) }
func (l *Ledger) RecordBurnout(pod string)  { l.append(pod, EventBurnout, nil) }
func (l *Ledger) Pause(pod string)          { l.append(pod, EventPause, nil) }
func (l *Ledger) Resume(pod string)         { l.append(pod, EventResume, nil) }
