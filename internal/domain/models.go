package domain

import (
	"math"
	"time"
)

// TrendArrow is the direction reported by the sensor alongside a reading.
type TrendArrow int

const (
	TrendNone TrendArrow = iota
	TrendDoubleUp
	TrendSingleUp
	TrendFortyFiveUp
	TrendFlat
	TrendFortyFiveDown
	TrendSingleDown
	TrendDoubleDown
	TrendNotComputable
)

// TrendFromDirection maps a Nightscout direction string to a TrendArrow.
func TrendFromDirection(direction string) TrendArrow {
	switch direction {
	case "DoubleUp":
		return TrendDoubleUp
	case "SingleUp":
		return TrendSingleUp
	case "FortyFiveUp":
		return TrendFortyFiveUp
	case "Flat":
		return TrendFlat
	case "FortyFiveDown":
		return TrendFortyFiveDown
	case "SingleDown":
		return TrendSingleDown
	case "DoubleDown":
		return TrendDoubleDown
	case "NOT COMPUTABLE", "RATE OUT OF RANGE":
		return TrendNotComputable
	default:
		return TrendNone
	}
}

// String returns the Unicode arrow used for trend display.
func (t TrendArrow) String() string {
	switch t {
	case TrendDoubleUp:
		return "⇈"
	case TrendSingleUp:
		return "↑"
	case TrendFortyFiveUp:
		return "↗"
	case TrendFlat:
		return "→"
	case TrendFortyFiveDown:
		return "↘"
	case TrendSingleDown:
		return "↓"
	case TrendDoubleDown:
		return "⇊"
	case TrendNotComputable:
		return "?"
	default:
		return "-"
	}
}

// GlucoseEntry is a single sensor reading. SGV is nil when the sensor
// reported a gap; such entries are kept for trend display but excluded
// from aggregation. Entries are immutable once created.
type GlucoseEntry struct {
	Timestamp time.Time
	SGV       *float64 // mg/dL
	Trend     TrendArrow
}

// HasValue reports whether the entry carries a usable glucose value.
func (e GlucoseEntry) HasValue() bool {
	return e.SGV != nil
}

// RoundedValue returns the value rounded to the sensor's integer
// resolution. Callers must check HasValue first.
func (e GlucoseEntry) RoundedValue() float64 {
	return math.Round(*e.SGV)
}

// TimeWindow is a caregiver-selected time range, inclusive on both ends.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// NewTimeWindow builds a window from two instants, swapping them when
// supplied out of order. The range picker workflow can hand back a
// reversed pair after the time-of-day refinement step.
func NewTimeWindow(from, to time.Time) TimeWindow {
	if to.Before(from) {
		from, to = to, from
	}
	return TimeWindow{From: from, To: to}
}

// DefaultWindow is the session-start window: local midnight+6h until now.
func DefaultWindow(now time.Time) TimeWindow {
	sixAM := time.Date(now.Year(), now.Month(), now.Day(), 6, 0, 0, 0, now.Location())
	return NewTimeWindow(sixAM, now)
}

// Contains reports whether t falls inside the window, bounds included.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// RecommendationItem is a single suggested therapy change produced by
// the advice service.
type RecommendationItem struct {
	Change       string         `json:"change"`
	Reason       string         `json:"reason"`
	ProfilePatch map[string]any `json:"profile_patch"`
}

// RecommendationBatch is one analysis run's set of recommendations.
// Appended to the history log exactly once and never mutated.
type RecommendationBatch struct {
	Timestamp time.Time
	Items     []RecommendationItem
}

// ProfilePatch maps therapy-configuration keys to new values.
type ProfilePatch map[string]any

// Advice is the advice service's response for one analysis run.
type Advice struct {
	Suggestion      string
	Recommendations []RecommendationItem
}

// GateAction identifies the operation a PIN confirmation guards.
type GateAction int

const (
	ActionApplyPatch GateAction = iota
	ActionAuthorizeBolus
)

func (a GateAction) String() string {
	switch a {
	case ActionApplyPatch:
		return "apply-patch"
	case ActionAuthorizeBolus:
		return "authorize-bolus"
	default:
		return "unknown"
	}
}

// AuthorizationOutcome is the transient result of a gated action.
type AuthorizationOutcome int

const (
	OutcomeDenied AuthorizationOutcome = iota
	OutcomeGranted
)

func (o AuthorizationOutcome) String() string {
	if o == OutcomeGranted {
		return "granted"
	}
	return "denied"
}
