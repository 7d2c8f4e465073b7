package session

import "log/slog"

type options struct {
	logger  *slog.Logger
	durable Durable
	cache   CacheClearer
	locator Locator
}

// Option configures a Store.
type Option func(*options)

// WithLogger sets the logger for session events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDurable sets where the access credential and return path persist.
// Without it the session does not survive a restart.
func WithDurable(d Durable) Option {
	return func(o *options) {
		o.durable = d
	}
}

// WithCache sets the cache that logout clears.
func WithCache(c CacheClearer) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithLocator sets the source of the location recorded at logout.
func WithLocator(l Locator) Option {
	return func(o *options) {
		o.locator = l
	}
}
