package session

import "time"

// backoffDelay returns the reconnect delay for attempt n (0-based): initial
// doubled per attempt, capped at max. The shift is bounded so large attempt
// counts cannot overflow into a negative duration.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := initial << uint(attempt)
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}
