// Package analysis contains the pure computation engines of the
// cockpit: the windowed glucose average and the profile patch merge.
package analysis

import (
	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

// Average computes the arithmetic mean of the readings whose timestamp
// falls inside the window (both bounds inclusive) and that carry a
// value. Each value is rounded to the sensor's integer resolution
// before averaging so sub-unit sensor noise does not leak into the
// aggregate; the mean itself is returned unrounded. A nil result means
// no reading qualified, which is distinct from a computed zero.
func Average(entries []domain.GlucoseEntry, window domain.TimeWindow) *float64 {
	var sum float64
	var n int
	for _, e := range entries {
		if !e.HasValue() || !window.Contains(e.Timestamp) {
			continue
		}
		sum += e.RoundedValue()
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
