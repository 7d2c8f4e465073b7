package cache

import (
	"strings"
	"time"
)

// DefaultStaleAfter applies to entities without their own window.
const DefaultStaleAfter = time.Minute

// Policy holds per-entity staleness windows.
type Policy struct {
	windows  map[string]time.Duration
	fallback time.Duration
}

// DefaultPolicy returns the built-in windows: short for state that changes
// during service (tables, cashbox), long for near-static catalogs.
func DefaultPolicy() Policy {
	return Policy{
		windows: map[string]time.Duration{
			"products":           5 * time.Minute,
			"product-categories": 30 * time.Minute,
			"tables":             2 * time.Minute,
			"payments":           5 * time.Minute,
			"cashbox":            30 * time.Second,
			"sales":              time.Minute,
			"dashboard":          time.Minute,
		},
		fallback: DefaultStaleAfter,
	}
}

// With returns a copy of p with the window for entity set to d.
func (p Policy) With(entity string, d time.Duration) Policy {
	windows := make(map[string]time.Duration, len(p.windows)+1)
	for k, v := range p.windows {
		windows[k] = v
	}
	windows[entity] = d
	p.windows = windows
	return p
}

// WithFallback returns a copy of p using d for unlisted entities.
func (p Policy) WithFallback(d time.Duration) Policy {
	p.fallback = d
	return p
}

// Window returns the staleness window for entity. An entity without its own
// window inherits the one of its family, the part before the first hyphen
// ("dashboard-guests" uses "dashboard").
func (p Policy) Window(entity string) time.Duration {
	if d, ok := p.windows[entity]; ok {
		return d
	}
	if family, _, ok := strings.Cut(entity, "-"); ok {
		if d, ok := p.windows[family]; ok {
			return d
		}
	}
	if p.fallback > 0 {
		return p.fallback
	}
	return DefaultStaleAfter
}
