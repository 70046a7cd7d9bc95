package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentiles(t *testing.T) {
	tracker := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}

	if got := tracker.Count(); got != 100 {
		t.Fatalf("expected 100 samples, got %d", got)
	}
	if got := tracker.Percentile(0); got != time.Millisecond {
		t.Fatalf("p0: expected 1ms, got %s", got)
	}
	if got := tracker.Percentile(100); got != 100*time.Millisecond {
		t.Fatalf("p100: expected 100ms, got %s", got)
	}
	if got := tracker.Percentile(50); got < 49*time.Millisecond || got > 51*time.Millisecond {
		t.Fatalf("p50: expected around 50ms, got %s", got)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(10)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("expected zero for empty tracker, got %s", got)
	}
}

func TestLatencyTrackerEvictsOldest(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 5; i++ {
		tracker.Observe(time.Duration(i) * time.Second)
	}
	if got := tracker.Count(); got != 3 {
		t.Fatalf("expected cap 3, got %d", got)
	}
	if got := tracker.Percentile(0); got != 3*time.Second {
		t.Fatalf("expected oldest samples evicted, min %s", got)
	}
}
