package cache

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmcleod/tablehand/internal/clock"
)

type options struct {
	policy     Policy
	clock      clock.Clock
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// Option configures a Store.
type Option func(*options)

// WithPolicy sets the staleness policy.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithClock sets the time source used for staleness.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegisterer registers the cache counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}
