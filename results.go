package asyncinject

import (
	"sync"
	"time"
)

// Values maps dependency names to values. It is used both for caller-supplied
// seed values and for the full results map returned by ResolveMulti.
type Values map[string]any

// Timing records when a unit executed during a resolution.
type Timing struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Results is the shared accumulator for a single resolution call. Each key is
// written exactly once, by the unit that computes it or by the caller's seed.
// Units that declare a private (underscore-prefixed) parameter receive a live
// *Results so they can inspect the values produced so far.
type Results struct {
	mu      sync.RWMutex
	values  map[string]any
	timings map[string]Timing
}

func newResults(seed Values) *Results {
	values := make(map[string]any, len(seed))
	for name, value := range seed {
		values[name] = value
	}
	return &Results{
		values:  values,
		timings: make(map[string]Timing),
	}
}

// Get returns the value recorded for name, if any.
func (r *Results) Get(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}

// Timing returns the execution timing recorded for name. Seeded and skipped
// names have no timing because nothing executed for them.
func (r *Results) Timing(name string) (Timing, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.timings[name]
	return t, ok
}

// Snapshot copies the accumulated values.
func (r *Results) Snapshot() Values {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := make(Values, len(r.values))
	for name, value := range r.values {
		values[name] = value
	}
	return values
}

func (r *Results) set(name string, value any) {
	r.mu.Lock()
	r.values[name] = value
	r.mu.Unlock()
}

func (r *Results) recordTiming(name string, start, end time.Time) {
	r.mu.Lock()
	r.timings[name] = Timing{
		Start:    start,
		End:      end,
		Duration: end.Sub(start),
	}
	r.mu.Unlock()
}
