package ratewatch

import (
	"sync"
	"time"
)

// Tracker records recent call timestamps per endpoint key for request-loop
// diagnostics. State is explicit and bounded: each key keeps at most limit
// observations, and Reset clears everything between test cases. Instances
// are injected, never package-global.
type Tracker struct {
	mu    sync.Mutex
	limit int
	byKey map[string][]time.Time
	now   func() time.Time
}

func NewTracker(limit int) *Tracker {
	if limit <= 0 {
		limit = 64
	}
	return &Tracker{
		limit: limit,
		byKey: make(map[string][]time.Time),
		now:   time.Now,
	}
}

func (t *Tracker) Observe(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	observations := append(t.byKey[key], t.now())
	if len(observations) > t.limit {
		observations = observations[len(observations)-t.limit:]
	}
	t.byKey[key] = observations
}

// Recent reports how many observations for key fall within the window
// ending now.
func (t *Tracker) Recent(key string, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-window)
	count := 0
	for _, ts := range t.byKey[key] {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// Snapshot returns the per-key observation counts.
func (t *Tracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[string]int, len(t.byKey))
	for key, observations := range t.byKey {
		counts[key] = len(observations)
	}
	return counts
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byKey = make(map[string][]time.Time)
}
