// Package capacity folds the per-pod capacity ledger (spec.md §4.7,
// first half): active-load counter and the cooling-state mirror. Grounded
// on the teacher's Semaphore, generalized from per-org HTTP concurrency to
// per-pod active business-action load.
package capacity

import (
	"encoding/json"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

type CoolingState string

const (
	StateNormal CoolingState = "normal"
	StateCooling CoolingState = "cooling"
	StateRepair CoolingState = "repair"
)

const (
	EventConfigure    = "configure"
	EventLoadInc      = "load_inc"
	EventLoadDec      = "load_dec"
	EventPause        = "pause"
	EventResume       = "resume"
	EventCoolingEnter = "cooling_enter"
	EventRepairEnter  = "repair_enter"
	EventRepairExit   = "repair_exit"
	EventDefer        = "defer"
)

type capacityEvent struct {
	MaxConcurrentActions int     `json:"max_concurrent_actions,omitempty"`
	RecoveryRate         float64 `json:"recovery_rate,omitempty"`
}

// State is the derived CapacityState.
type State struct {
	MaxConcurrentActions int
	ActiveLoad           int
	RecoveryRate         float64
	CoolingState         CoolingState
}

// Ledger folds capacity events for a pod scope.
type Ledger struct {
	ledger *ledger.Ledger
	clock  *clock.Clock
}

func New(l *ledger.Ledger, c *clock.Clock) *Ledger {
	return &Ledger{ledger: l, clock: c}
}

// Get folds the capacity ledger into a State without mutating storage.
func (l *Ledger) Get(pod string) State {
	st := State{CoolingState: StateNormal}
	for _, e := range l.ledger.Read(pod) {
		switch e.Type {
		case EventConfigure:
			var ev capacityEvent
			if err := json.Unmarshal(e.Data, &ev); err == nil {
				st.MaxConcurrentActions = ev.MaxConcurrentActions
				st.RecoveryRate = ev.RecoveryRate
			}
			// configure and resume clear any load_inc left without a matching load_dec.
			st.ActiveLoad = 0
		case EventLoadInc:
			st.ActiveLoad++
		case EventLoadDec:
			st.ActiveLoad--
			if st.ActiveLoad < 0 {
				st.ActiveLoad = 0
			}
		case EventPause, EventCoolingEnter:
			st.CoolingState = StateCooling
		case EventRepairEnter:
			st.CoolingState = StateRepair
		case EventResume:
			st.CoolingState = StateNormal
			st.ActiveLoad = 0
		case EventRepairExit:
			st.CoolingState = StateNormal
		}
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

func (l *Ledger) Configure(pod string, maxConcurrent int, recoveryRate float64) State {
	data, _ := json.Marshal(capacityEvent{MaxConcurrentActions: maxConcurrent, RecoveryRate: recoveryRate})
	l.append(pod, EventConfigure, data)
	return l.Get(pod)
}

func (l *Ledger) LoadInc(pod string) State {
	l.append(pod, EventLoadInc, nil)
	return l.Get(pod)
}

func (l *Ledger) LoadDec(pod string) State {
	l.append(pod, EventLoadDec, nil)
	return l.Get(pod)
}

func (l *Ledger) Pause(pod string) State {
	l.append(pod, EventPause, nil)
	return l.Get(pod)
}

func (l *Ledger) Resume(pod string) State {
	l.append(pod, EventResume, nil)
	return l.Get(pod)
}

func (l *Ledger) CoolingEnter(pod string) State {
	l.append(pod, EventCoolingEnter, nil)
	return l.Get(pod)
}

func (l *Ledger) RepairEnter(pod string) State {
	l.append(pod, EventRepairEnter, nil)
	return l.Get(pod)
}

func (l *Ledger) RepairExit(pod string) State {
	l.append(pod, EventRepairExit, nil)
	return l.Get(pod)
}

// Defer appends a defer event, used by the orchestrator on capacity
// exhaustion (spec.md §4.11 step 12). It changes no derived capacity
// state; the cooling reassessment reads the cooling ledger's own deferral
// events, not this one.
func (l *Ledger) Defer(pod string) {
	l.append(pod, EventDefer, nil)
}

// CanExitRepair ≡ cooling_state=repair ∧ active_load ≤ 0.
func (s State) CanExitRepair() bool {
	return s.CoolingState == StateRepair && s.ActiveLoad <= 0
}
