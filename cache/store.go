// Package cache keeps fetched read results keyed by query key. Entries go
// stale after a per-entity window or when invalidated; either way the next
// Read refetches. Invalidation never touches the network.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmcleod/tablehand/internal/clock"
)

// Entry is a cached read result.
type Entry struct {
	Key            Key
	Value          json.RawMessage
	FetchedAt      time.Time
	StaleAfter     time.Duration
	PendingRefetch bool
	// Generation counts the invalidations this entry has seen.
	Generation uint64
}

// Stale reports whether the entry must be refetched at now.
func (e Entry) Stale(now time.Time) bool {
	return e.PendingRefetch || now.Sub(e.FetchedAt) > e.StaleAfter
}

func (e Entry) clone() Entry {
	e.Key = slices.Clone(e.Key)
	e.Value = slices.Clone(e.Value)
	return e
}

// Fetcher loads the current value for a key from the backend.
type Fetcher func(ctx context.Context) (json.RawMessage, error)

// inflight tracks a running fetch so an invalidation that lands before it
// finishes still leaves the stored result pending.
type inflight struct {
	key   Key
	dirty bool
	epoch uint64
}

type subscription struct {
	pattern Pattern
	fn      func(Key)
}

// Store is a concurrency-safe query cache.
type Store struct {
	policy  Policy
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics

	flight singleflight.Group

	mu       sync.Mutex
	entries  map[string]*Entry
	inflight map[string]*inflight
	epoch    uint64
	subs     map[int]subscription
	nextSub  int
}

// New returns an empty store.
func New(opts ...Option) *Store {
	o := options{
		policy: DefaultPolicy(),
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		policy:   o.policy,
		clock:    o.clock,
		logger:   o.logger.With("component", "cache"),
		metrics:  newMetrics(o.registerer),
		entries:  make(map[string]*Entry),
		inflight: make(map[string]*inflight),
		subs:     make(map[int]subscription),
	}
}

// Read returns the cached value for key when it is fresh. Otherwise it calls
// fetch, stores the result and returns it. Concurrent reads of the same key
// share one fetch. A caller whose ctx ends stops waiting; the fetch itself
// completes and is stored for the next reader. A failed fetch leaves the
// cache unchanged.
func (s *Store) Read(ctx context.Context, key Key, fetch Fetcher) (json.RawMessage, error) {
	id := key.id()
	s.mu.Lock()
	if e, ok := s.entries[id]; ok && !e.Stale(s.clock.Now()) {
		v := slices.Clone(e.Value)
		s.mu.Unlock()
		s.metrics.hits.WithLabelValues(key.Entity()).Inc()
		return v, nil
	}
	s.mu.Unlock()
	s.metrics.misses.WithLabelValues(key.Entity()).Inc()

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(id, func() (any, error) {
		return s.fill(fetchCtx, key, fetch)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.(json.RawMessage)), nil
	}
}

func (s *Store) fill(ctx context.Context, key Key, fetch Fetcher) (json.RawMessage, error) {
	id := key.id()
	s.mu.Lock()
	f := &inflight{key: slices.Clone(key), epoch: s.epoch}
	s.inflight[id] = f
	s.mu.Unlock()

	value, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	superseded := s.inflight[id] != f
	if !superseded {
		delete(s.inflight, id)
	}
	if err != nil {
		return nil, err
	}
	if superseded {
		// A later fetch owns the key; only its result is stored.
		return value, nil
	}
	if f.epoch != s.epoch {
		// Cleared while fetching; the result may belong to a previous user.
		return value, nil
	}
	e := s.putLocked(key, value)
	if f.dirty {
		e.PendingRefetch = true
	}
	return value, nil
}

// putLocked stores value under key. Caller holds s.mu.
func (s *Store) putLocked(key Key, value json.RawMessage) *Entry {
	id := key.id()
	e, ok := s.entries[id]
	if !ok {
		e = &Entry{Key: slices.Clone(key)}
		s.entries[id] = e
	}
	e.Value = slices.Clone(value)
	e.FetchedAt = s.clock.Now()
	e.StaleAfter = s.policy.Window(key.Entity())
	e.PendingRefetch = false
	return e
}

// Write replaces the entry for key and marks it fresh.
func (s *Store) Write(key Key, value json.RawMessage) {
	s.mu.Lock()
	s.putLocked(key, value)
	s.mu.Unlock()
}

// WriteJSON marshals v and writes it under key.
func (s *Store) WriteJSON(key Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	s.Write(key, data)
	return nil
}

// Invalidate marks every entry matched by any of patterns as pending
// refetch and returns how many were marked. Entries are kept, nothing is
// fetched. Subscribers whose pattern matches a marked key are notified
// after the store is unlocked.
func (s *Store) Invalidate(patterns ...Pattern) int {
	type note struct {
		fn  func(Key)
		key Key
	}
	var notes []note
	marked := 0

	s.mu.Lock()
	for _, e := range s.entries {
		if !matchesAny(patterns, e.Key) {
			continue
		}
		e.PendingRefetch = true
		e.Generation++
		marked++
		s.metrics.invalidations.WithLabelValues(e.Key.Entity()).Inc()
		for _, sub := range s.subs {
			if sub.pattern.Matches(e.Key) {
				notes = append(notes, note{fn: sub.fn, key: slices.Clone(e.Key)})
			}
		}
	}
	for id, f := range s.inflight {
		if matchesAny(patterns, f.key) {
			f.dirty = true
			// Reads from here on start a fresh fetch instead of joining
			// one that began before the invalidation.
			s.flight.Forget(id)
		}
	}
	s.mu.Unlock()

	if marked > 0 {
		s.logger.Debug("invalidated", "patterns", fmt.Sprint(patterns), "marked", marked)
	}
	for _, n := range notes {
		n.fn(n.key)
	}
	return marked
}

func matchesAny(patterns []Pattern, k Key) bool {
	for _, p := range patterns {
		if p.Matches(k) {
			return true
		}
	}
	return false
}

// ClearAll drops every entry. Fetches still running when it is called do
// not repopulate the store.
func (s *Store) ClearAll() {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = make(map[string]*Entry)
	s.epoch++
	for id := range s.inflight {
		s.flight.Forget(id)
	}
	s.mu.Unlock()
	s.metrics.clears.Inc()
	s.logger.Debug("cleared", "entries", n)
}

// Subscribe registers fn to be called with each key matched by pattern that
// an Invalidate marks. The returned func removes the subscription.
func (s *Store) Subscribe(pattern Pattern, fn func(Key)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscription{pattern: pattern, fn: fn}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Peek returns the entry for key without fetching or counting a read.
func (s *Store) Peek(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.id()]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns copies of all entries ordered by key.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.clone())
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b Entry) int {
		return compareKeys(a.Key, b.Key)
	})
	return out
}

func compareKeys(a, b Key) int {
	for i := range min(len(a), len(b)) {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return len(a) - len(b)
}

// Load reads key through s and decodes the value into T.
func Load[T any](ctx context.Context, s *Store, key Key, fetch Fetcher) (T, error) {
	var out T
	raw, err := s.Read(ctx, key, fetch)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding %s: %w", key, err)
	}
	return out, nil
}
