// Package softlock implements the global per-resource advisory exclusion
// ledger (spec.md §4.10, §5): acquire records a holder, a second acquire by
// a different pod blocks, release clears it. Grounded on the teacher's
// KeyedMutex, generalized from in-process wallet serialization to a
// ledger-recorded advisory lock (single-process-safe; cross-process needs
// a compare-and-set layer per spec.md §5, out of scope here).
package softlock

import (
	"encoding/json"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/clock"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

const scope = "global"

const (
	eventAcquire = "acquire"
	eventRelease = "release"
)

// ReasonPolicyConflict is the halt reason when a resource is held by
// another pod.
const ReasonPolicyConflict = "FAIL_POLICY_CONFLICT"

type lockEvent struct {
	ResourceID  string `json:"resource_id"`
	Holder      string `json:"holder"`
	AutoRelease bool   `json:"auto_release"`
}

// Ledger folds soft-lock events globally.
type Ledger struct {
	ledger *ledger.Ledger
	clock  *clock.Clock
}

func New(l *ledger.Ledger, c *clock.Clock) *Ledger {
	return &Ledger{ledger: l, clock: c}
}

// holder returns the current holder of resourceID and whether it
// auto-releases, or ("", false, false) if unheld.
func (l *Ledger) holder(resourceID string) (string, bool, bool) {
	holder := ""
	autoRelease := false
	held := false
	for _, e := range l.ledger.Read(scope) {
		var ev lockEvent
		if err := json.Unmarshal(e.Data, &ev); err != nil || ev.ResourceID != resourceID {
			continue
		}
		switch e.Type {
		case eventAcquire:
			holder = ev.Holder
			autoRelease = ev.AutoRelease
			held = true
		case eventRelease:
			held = false
		}
	}
	return holder, autoRelease, held
}

// CheckAcquire reports whether pod may acquire resourceID. A resource held
// by another pod blocks; held by the same pod is idempotent and allowed.
func (l *Ledger) CheckAcquire(resourceID, pod string) (bool, string) {
	holder, _, held := l.holder(resourceID)
	if held && holder != pod {
		return false, ReasonPolicyConflict
	}
	return true, ""
}

// Acquire records pod as the holder of resourceID.
func (l *Ledger) Acquire(resourceID, pod string, autoRelease bool) {
	data, _ := json.Marshal(lockEvent{ResourceID: resourceID, Holder: pod, AutoRelease: autoRelease})
	l.ledger.Append(scope, ledger.Entry{
		Timestamp: l.clock.Next(scope),
		Type:      eventAcquire,
		Data:      data,
	})
}

// Release clears the holder of resourceID.
func (l *Ledger) Release(resourceID, pod string) {
	data, _ := json.Marshal(lockEvent{ResourceID: resourceID, Holder: pod})
	l.ledger.Append(scope, ledger.Entry{
		Timestamp: l.clock.Next(scope),
		Type:      eventRelease,
		Data:      data,
	})
}

// AutoReleaseEnabled reports the auto_release flag recorded at acquire
// time for resourceID (false when unheld). The orchestrator does not
// consult it; it decides release from PipelineInput.SoftLockAutoRelease.
func (l *Ledger) AutoReleaseEnabled(resourceID string) bool {
	_, autoRelease, held := l.holder(resourceID)
	return held && autoRelease
}
