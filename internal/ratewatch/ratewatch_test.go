package ratewatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_RecentCountsWithinWindow(t *testing.T) {
	tracker := NewTracker(16)
	current := time.Now()
	tracker.now = func() time.Time { return current }

	tracker.Observe("payments/status")
	tracker.Observe("payments/status")

	current = current.Add(2 * time.Minute)
	tracker.Observe("payments/status")

	assert.Equal(t, 1, tracker.Recent("payments/status", time.Minute))
	assert.Equal(t, 3, tracker.Recent("payments/status", time.Hour))
	assert.Equal(t, 0, tracker.Recent("webhooks/payment", time.Hour))
}

func TestTracker_BoundedHistory(t *testing.T) {
	tracker := NewTracker(4)

	for i := 0; i < 20; i++ {
		tracker.Observe("k")
	}

	assert.Equal(t, 4, tracker.Snapshot()["k"], "history must stay bounded")
}

func TestTracker_Reset(t *testing.T) {
	tracker := NewTracker(4)
	tracker.Observe("k")

	tracker.Reset()

	assert.Empty(t, tracker.Snapshot())
	assert.Equal(t, 0, tracker.Recent("k", time.Hour))
}
