package session

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithPollInterval sets the temperature poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.pollInterval = d
	}
}

// WithRSSIInterval sets the signal-strength poll interval.
func WithRSSIInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.rssiInterval = d
	}
}

// WithConnectTimeout sets the per-attempt connection timeout, distinct from
// the retry backoff.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.connectTimeout = d
	}
}

// WithBackoff sets the reconnect backoff envelope: the delay starts at
// initial and doubles per failed attempt up to max.
func WithBackoff(initial, max time.Duration) Option {
	return func(m *Manager) {
		m.backoffInitial = initial
		m.backoffMax = max
	}
}

// WithWaitInterval sets the sampling interval for WaitForTemperature.
func WithWaitInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.waitInterval = d
	}
}
