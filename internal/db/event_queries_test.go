package db

import (
	"testing"
	"time"

	"horse.fit/currents/internal/globaltime"
)

func TestEventTimestampFollowsGlobalClock(t *testing.T) {
	frozen := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	globaltime.Freeze(frozen)
	defer globaltime.Resume()

	if got := eventTimestamp(Event{}); !got.Equal(frozen) {
		t.Errorf("zero CreatedAt should take the shared clock, got %v", got)
	}

	explicit := frozen.Add(-time.Hour)
	if got := eventTimestamp(Event{CreatedAt: explicit}); !got.Equal(explicit) {
		t.Errorf("explicit CreatedAt must be preserved, got %v", got)
	}
}
