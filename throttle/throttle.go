// Package throttle implements per-key day/hour caps with a warmup ramp and
// a deliverability cooldown (spec.md §4.6). Grounded on the teacher's
// sliding-window RateLimiter, generalized from requests-per-minute to
// calendar day/hour caps with a ramp period.
package throttle

const (
	ReasonCooldown       = "COOLDOWN_ACTIVE"
	ReasonDeliverability = "DELIVERABILITY_BLOCKED"
	ReasonDailyCap       = "DAILY_CAP_EXCEEDED"
	ReasonHourlyCap      = "HOURLY_CAP_EXCEEDED"
)

// Counts is the per-key usage counter for one day/hour bucket.
type Counts struct {
	DayCount  int
	HourCount int
}

// State is the ThrottleState: caps, warmup configuration, and per-key usage.
type State struct {
	DailyCap      int
	HourlyCap     int
	RampLimit     int
	InWarmup      bool
	CooldownUntil map[string]bool
	Deliverable   map[string]bool
	CountsByKey   map[string]Counts
}

func New(dailyCap, hourlyCap, rampLimit int) *State {
	return &State{
		DailyCap:      dailyCap,
		HourlyCap:     hourlyCap,
		RampLimit:     rampLimit,
		CooldownUntil: make(map[string]bool),
		Deliverable:   make(map[string]bool),
		CountsByKey:   make(map[string]Counts),
	}
}

// effectiveCaps applies the warmup shrink: min(cap, rampLimit) daily and
// min(cap, floor(rampLimit/24) ∨ 1) hourly.
func (s *State) effectiveCaps() (int, int) {
	if !s.InWarmup {
		return s.DailyCap, s.HourlyCap
	}
	day := s.DailyCap
	if s.RampLimit < day {
		day = s.RampLimit
	}
	hourlyRamp := s.RampLimit / 24
	if hourlyRamp < 1 {
		hourlyRamp = 1
	}
	hour := s.HourlyCap
	if hourlyRamp < hour {
		hour = hourlyRamp
	}
	return day, hour
}

// Check evaluates key in precedence order: cooldown > deliverability >
// daily cap > hourly cap > allowed.
func (s *State) Check(key string) (bool, string) {
	if s.CooldownUntil[key] {
		return false, ReasonCooldown
	}
	if bounced, tracked := s.Deliverable[key]; tracked && !bounced {
		return false, ReasonDeliverability
	}
	day, hour := s.effectiveCaps()
	counts := s.CountsByKey[key]
	if counts.DayCount >= day {
		return false, ReasonDailyCap
	}
	if counts.HourCount >= hour {
		return false, ReasonHourlyCap
	}
	return true, ""
}

// RecordUse increments the day/hour counters for key after an allowed use.
func (s *State) RecordUse(key string) {
	counts := s.CountsByKey[key]
	counts.DayCount++
	counts.HourCount++
	s.CountsByKey[key] = counts
}

// SetCooldown marks key as cooling down (e.g. after a bounce/complaint).
func (s *State) SetCooldown(key string, active bool) {
	if active {
		s.CooldownUntil[key] = true
	} else {
		delete(s.CooldownUntil, key)
	}
}

// SetDeliverable records a deliverability signal for key; false marks it
// bounced/complained (blocking future sends until cleared).
func (s *State) SetDeliverable(key string, deliverable bool) {
	s.Deliverable[key] = deliverable
}
