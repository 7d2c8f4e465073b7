package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/tablehand/internal/clock"
)

var epoch = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type countingFetcher struct {
	calls atomic.Int32
	value string
}

func (f *countingFetcher) fetch(context.Context) (json.RawMessage, error) {
	n := f.calls.Add(1)
	if f.value != "" {
		return json.RawMessage(f.value), nil
	}
	return json.RawMessage(`{"version":` + string(rune('0'+n)) + `}`), nil
}

func newTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	return New(WithClock(clk)), clk
}

func TestPatternMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		key     Key
		want    bool
	}{
		{"entity only", All("sales"), NewKey("sales", "open", "1"), true},
		{"entity mismatch", All("sales"), NewKey("sale-items", "s1"), false},
		{"wildcard matches bare key", Match("tables", Wildcard), NewKey("tables"), true},
		{"wildcard matches any value", Match("tables", Wildcard), NewKey("tables", "terrace"), true},
		{"literal prefix", Match("sale-items", "s1"), NewKey("sale-items", "s1"), true},
		{"literal other id", Match("sale-items", "s1"), NewKey("sale-items", "s2"), false},
		{"literal longer key", Match("reservations", "r1", "per-diems"), NewKey("reservations", "r1", "per-diems", "page", "2"), true},
		{"literal sibling subresource", Match("reservations", "r1", "per-diems"), NewKey("reservations", "r1", "consumptions"), false},
		{"literal missing position", Match("reservations", "r1"), NewKey("reservations"), false},
		{"middle wildcard", Match("cashbox-transactions", "cb1", Wildcard), NewKey("cashbox-transactions", "cb1", "2026-03-14"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.Matches(tt.key))
		})
	}
}

func TestKey(t *testing.T) {
	k := NewKey("reservations", "list", "confirmed")
	assert.Equal(t, "reservations", k.Entity())
	assert.Equal(t, []string{"list", "confirmed"}, k.Params())
	assert.True(t, k.Equal(NewKey("reservations", "list", "confirmed")))
	assert.False(t, k.Equal(NewKey("reservations", "confirmed", "list")), "order is significant")
	assert.Equal(t, "reservations(list,confirmed)", k.String())
}

func TestReadHitAndStaleness(t *testing.T) {
	s, clk := newTestStore(t)
	f := &countingFetcher{}
	key := NewKey("tables")

	v1, err := s.Read(t.Context(), key, f.fetch)
	require.NoError(t, err)
	v2, err := s.Read(t.Context(), key, f.fetch)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), f.calls.Load())

	clk.Advance(2 * time.Minute)
	_, _ = s.Read(t.Context(), key, f.fetch)
	assert.Equal(t, int32(1), f.calls.Load(), "exactly at the window is still fresh")

	clk.Advance(time.Second)
	_, _ = s.Read(t.Context(), key, f.fetch)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestInvalidateIsLazy(t *testing.T) {
	s, _ := newTestStore(t)
	f := &countingFetcher{}
	key := NewKey("tables", "terrace")
	_, err := s.Read(t.Context(), key, f.fetch)
	require.NoError(t, err)

	n := s.Invalidate(Match("tables", Wildcard))
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), f.calls.Load(), "invalidation does not fetch")

	e, ok := s.Peek(key)
	require.True(t, ok, "invalidated entries are kept")
	assert.True(t, e.PendingRefetch)
	assert.Equal(t, uint64(1), e.Generation)

	_, err = s.Read(t.Context(), key, f.fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
	e, _ = s.Peek(key)
	assert.False(t, e.PendingRefetch)
}

func TestInvalidateNoOverreach(t *testing.T) {
	s, _ := newTestStore(t)
	f := &countingFetcher{}
	a := NewKey("reservations", "A", "per-diems")
	b := NewKey("reservations", "B", "per-diems")
	aDetail := NewKey("reservations", "A")
	for _, k := range []Key{a, b, aDetail} {
		_, err := s.Read(t.Context(), k, f.fetch)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, s.Invalidate(Match("reservations", "A", "per-diems")))

	e, _ := s.Peek(a)
	assert.True(t, e.PendingRefetch)
	e, _ = s.Peek(b)
	assert.False(t, e.PendingRefetch)
	e, _ = s.Peek(aDetail)
	assert.False(t, e.PendingRefetch)
	assert.Equal(t, 3, s.Len())
}

func TestReadCoalescesConcurrentFetches(t *testing.T) {
	s, _ := newTestStore(t)
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (json.RawMessage, error) {
		calls.Add(1)
		<-release
		return json.RawMessage(`[1,2,3]`), nil
	}

	const n = 10
	var started, wg sync.WaitGroup
	started.Add(n)
	results := make([]json.RawMessage, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			results[i], _ = s.Read(t.Context(), NewKey("products"), fetch)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.JSONEq(t, `[1,2,3]`, string(r))
	}
}

func TestFailedFetchLeavesCacheUnchanged(t *testing.T) {
	s, clk := newTestStore(t)
	f := &countingFetcher{value: `{"open":true}`}
	key := NewKey("cashbox", "current")
	_, err := s.Read(t.Context(), key, f.fetch)
	require.NoError(t, err)
	before := s.Snapshot()

	clk.Advance(time.Minute)
	boom := errors.New("backend down")
	_, err = s.Read(t.Context(), key, func(context.Context) (json.RawMessage, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, s.Snapshot())
}

func TestInvalidateDuringFetchStaysPending(t *testing.T) {
	s, _ := newTestStore(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (json.RawMessage, error) {
		close(entered)
		<-release
		return json.RawMessage(`"old"`), nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Read(t.Context(), NewKey("sales", "open"), fetch)
	}()
	<-entered
	s.Invalidate(All("sales"))
	close(release)
	<-done

	e, ok := s.Peek(NewKey("sales", "open"))
	require.True(t, ok)
	assert.True(t, e.PendingRefetch, "a result fetched across an invalidation is not trusted")
}

// blockingRead starts a Read whose fetch returns value once release is
// closed. It returns after the fetch has started.
func blockingRead(t *testing.T, s *Store, key Key, value string) (release chan struct{}, done chan json.RawMessage) {
	t.Helper()
	entered := make(chan struct{})
	release = make(chan struct{})
	done = make(chan json.RawMessage, 1)
	go func() {
		v, err := s.Read(t.Context(), key, func(context.Context) (json.RawMessage, error) {
			close(entered)
			<-release
			return json.RawMessage(value), nil
		})
		assert.NoError(t, err)
		done <- v
	}()
	<-entered
	return release, done
}

func TestReadAfterInvalidateStartsNewFetch(t *testing.T) {
	s, _ := newTestStore(t)
	key := NewKey("tables", "list", "", "")
	release, first := blockingRead(t, s, key, `"pre-mutation"`)

	s.Invalidate(All("tables"))
	fresh := &countingFetcher{value: `"post-mutation"`}
	v, err := s.Read(t.Context(), key, fresh.fetch)
	require.NoError(t, err)
	assert.JSONEq(t, `"post-mutation"`, string(v))
	assert.Equal(t, int32(1), fresh.calls.Load())

	close(release)
	assert.JSONEq(t, `"pre-mutation"`, string(<-first))

	e, ok := s.Peek(key)
	require.True(t, ok)
	assert.JSONEq(t, `"post-mutation"`, string(e.Value), "the earlier fetch does not overwrite the newer one")
	assert.False(t, e.PendingRefetch)
}

func TestReadAfterClearAllStartsNewFetch(t *testing.T) {
	s, _ := newTestStore(t)
	key := NewKey("employees", "list")
	release, first := blockingRead(t, s, key, `"previous user"`)

	s.ClearAll()
	next := &countingFetcher{value: `"next user"`}
	v, err := s.Read(t.Context(), key, next.fetch)
	require.NoError(t, err)
	assert.JSONEq(t, `"next user"`, string(v))

	close(release)
	<-first

	e, ok := s.Peek(key)
	require.True(t, ok)
	assert.JSONEq(t, `"next user"`, string(e.Value))
}

func TestKeysWithSeparatorsDoNotCollide(t *testing.T) {
	s, _ := newTestStore(t)
	s.Write(NewKey("tables", "a\x1fb"), json.RawMessage(`1`))
	s.Write(NewKey("tables", "a", "b"), json.RawMessage(`2`))
	s.Write(NewKey("tables", "1:a"), json.RawMessage(`3`))
	assert.Equal(t, 3, s.Len())

	e, ok := s.Peek(NewKey("tables", "a\x1fb"))
	require.True(t, ok)
	assert.JSONEq(t, `1`, string(e.Value))
}

func TestClearAllDuringFetch(t *testing.T) {
	s, _ := newTestStore(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (json.RawMessage, error) {
		close(entered)
		<-release
		return json.RawMessage(`"previous user"`), nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := s.Read(t.Context(), NewKey("employees"), fetch)
		assert.NoError(t, err)
		assert.JSONEq(t, `"previous user"`, string(v))
	}()
	<-entered
	s.ClearAll()
	close(release)
	<-done

	assert.Equal(t, 0, s.Len())
}

func TestReadCancelledWaiter(t *testing.T) {
	s, _ := newTestStore(t)
	release := make(chan struct{})
	fetch := func(context.Context) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`"v"`), nil
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := s.Read(ctx, NewKey("payments"), fetch)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return s.Len() == 1 }, time.Second, 5*time.Millisecond,
		"the abandoned fetch is still stored")
}

func TestSubscribe(t *testing.T) {
	s, _ := newTestStore(t)
	f := &countingFetcher{}
	_, _ = s.Read(t.Context(), NewKey("tables"), f.fetch)
	_, _ = s.Read(t.Context(), NewKey("sales"), f.fetch)

	var got []Key
	unsubscribe := s.Subscribe(All("tables"), func(k Key) {
		got = append(got, k)
		// Subscribers may read straight away.
		_, err := s.Read(t.Context(), k, f.fetch)
		assert.NoError(t, err)
	})

	s.Invalidate(All("tables"), All("sales"))
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(NewKey("tables")))
	assert.Equal(t, int32(3), f.calls.Load())

	unsubscribe()
	s.Invalidate(All("tables"))
	assert.Len(t, got, 1)
}

func TestSnapshotOrder(t *testing.T) {
	s, _ := newTestStore(t)
	s.Write(NewKey("tables"), json.RawMessage(`1`))
	s.Write(NewKey("sales", "b"), json.RawMessage(`2`))
	s.Write(NewKey("sales"), json.RawMessage(`3`))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "sales()", snap[0].Key.String())
	assert.Equal(t, "sales(b)", snap[1].Key.String())
	assert.Equal(t, "tables()", snap[2].Key.String())
}

func TestWriteResetsPending(t *testing.T) {
	s, _ := newTestStore(t)
	key := NewKey("cashbox", "current")
	require.NoError(t, s.WriteJSON(key, map[string]string{"status": "open"}))
	s.Invalidate(All("cashbox"))

	require.NoError(t, s.WriteJSON(key, map[string]string{"status": "closed"}))
	e, _ := s.Peek(key)
	assert.False(t, e.PendingRefetch)
	assert.Equal(t, 30*time.Second, e.StaleAfter)
	assert.JSONEq(t, `{"status":"closed"}`, string(e.Value))
}

func TestLoad(t *testing.T) {
	s, _ := newTestStore(t)
	type table struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	got, err := Load[[]table](t.Context(), s, NewKey("tables"), func(context.Context) (json.RawMessage, error) {
		return json.RawMessage(`[{"id":"T12","status":"occupied"}]`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []table{{ID: "T12", Status: "occupied"}}, got)

	_, err = Load[int](t.Context(), s, NewKey("tables"), nil)
	require.Error(t, err)
}

func TestPolicyWindow(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 5*time.Minute, p.Window("products"))
	assert.Equal(t, 30*time.Minute, p.Window("product-categories"))
	assert.Equal(t, time.Minute, p.Window("dashboard-guests"))
	assert.Equal(t, 30*time.Second, p.Window("cashbox-transactions"))
	assert.Equal(t, DefaultStaleAfter, p.Window("employees"))

	custom := p.With("employees", time.Hour).WithFallback(10 * time.Second)
	assert.Equal(t, time.Hour, custom.Window("employees"))
	assert.Equal(t, 10*time.Second, custom.Window("accommodations"))
	assert.Equal(t, DefaultStaleAfter, p.Window("employees"), "With does not mutate the receiver")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(WithClock(clock.Fake(epoch)), WithRegisterer(reg))
	f := &countingFetcher{}

	_, _ = s.Read(t.Context(), NewKey("tables"), f.fetch)
	_, _ = s.Read(t.Context(), NewKey("tables"), f.fetch)
	s.Invalidate(All("tables"))
	s.ClearAll()

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.misses.WithLabelValues("tables")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.hits.WithLabelValues("tables")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.invalidations.WithLabelValues("tables")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.clears))
}
