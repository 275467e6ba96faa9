// Package sensitive implements the categorical sensitive-data gate
// (spec.md §4.10): trigger/acknowledgement/optimization-overlap rules.
// Stateless — it is evaluated per call against the caller-supplied
// category set, not a ledger fold.
package sensitive

const (
	ReasonTrigger          = "SENSITIVE_TRIGGER"
	ReasonAckRequired       = "SENSITIVE_ACK_REQUIRED"
	ReasonOptimizationOverlap = "SENSITIVE_OPTIMIZATION"
)

// Input carries the caller-supplied sensitive-data classification for one
// action (kernel.PipelineInput.Sensitive); it is not derived from the
// action payload.
type Input struct {
	TriggersAction      bool
	Categories          []string
	Acknowledged        bool
	OptimizationTargets []string
}

// Check evaluates the three ordered rules, first match wins.
func Check(in Input) (bool, string) {
	if in.TriggersAction && len(in.Categories) > 0 {
		return false, ReasonTrigger
	}
	if len(in.Categories) > 0 && !in.Acknowledged {
		return false, ReasonAckRequired
	}
	if overlaps(in.Categories, in.OptimizationTargets) {
		return false, ReasonOptimizationOverlap
	}
	return true, ""
}

func overlaps(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	for _, v := range a {
		if set[v] {
			return true
		}
	}
	return false
}
