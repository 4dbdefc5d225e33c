package session

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	initial := 3 * time.Second
	max := 30 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 3 * time.Second},
		{1, 6 * time.Second},
		{2, 12 * time.Second},
		{3, 24 * time.Second},
		{4, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.attempt, initial, max); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelayOverflowProtection(t *testing.T) {
	// Shift amounts past 30 are clamped so the delay never goes negative.
	for _, attempt := range []int{31, 62, 100, 1 << 20} {
		got := backoffDelay(attempt, 3*time.Second, 30*time.Second)
		if got != 30*time.Second {
			t.Errorf("backoffDelay(%d) = %v, want 30s", attempt, got)
		}
	}
}
