package queue

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	base := 2 * time.Second

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 30 * time.Second}, // потолок
	}

	for _, tt := range tests {
		if got := backoffDelay(base, tt.attempt); got != tt.expected {
			t.Errorf("backoffDelay(attempt=%d) = %s, expected %s", tt.attempt, got, tt.expected)
		}
	}
}

func TestBackoffDelay_ZeroBase(t *testing.T) {
	if got := backoffDelay(0, 1); got != time.Second {
		t.Errorf("zero base should fall back to 1s, got %s", got)
	}
}

func TestWorkerCounters_ActiveClamp(t *testing.T) {
	w := &Worker{}

	w.decActive()
	if stats := w.Stats(); stats.Active != 0 {
		t.Errorf("active counter must not go negative, got %d", stats.Active)
	}

	w.incActive()
	w.incActive()
	w.decActive()
	if stats := w.Stats(); stats.Active != 1 {
		t.Errorf("expected active 1, got %d", stats.Active)
	}

	w.markCompleted()
	w.markFailed()
	stats := w.Stats()
	if stats.Completed != 1 || stats.Failed != 1 {
		t.Errorf("expected completed=1 failed=1, got %d/%d", stats.Completed, stats.Failed)
	}
}
