package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/tablehand/internal/clock"
	"github.com/jmcleod/tablehand/session"
)

// backend is a scripted auth + data server. Access tokens are "tok-<n>";
// only the token in valid is accepted on data routes.
type backend struct {
	mu        sync.Mutex
	valid     string
	issued    int
	denyNext  bool
	refreshes atomic.Int32
	requests  []recorded

	// dataHandler overrides the default data route behaviour.
	dataHandler http.HandlerFunc
	// beforeData runs before a data request is recorded.
	beforeData func(r *http.Request)
	// refreshHold blocks refreshes until closed.
	refreshHold chan struct{}
}

type recorded struct {
	method    string
	path      string
	auth      string
	requestID string
	body      string
}

func (b *backend) issue() string {
	b.issued++
	b.valid = "tok-" + string(rune('0'+b.issued))
	return b.valid
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/auth/login":
		b.mu.Lock()
		tok := b.issue()
		b.mu.Unlock()
		writeData(w, http.StatusOK, map[string]any{
			"access_token":  tok,
			"refresh_token": "r-1",
			"user":          map[string]string{"id": "u1", "username": "ana"},
		})
	case "/api/v1/auth/refresh":
		b.refreshes.Add(1)
		if b.refreshHold != nil {
			<-b.refreshHold
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.denyNext {
			writeMessage(w, http.StatusUnauthorized, "refresh token revoked")
			return
		}
		writeData(w, http.StatusOK, map[string]any{"access_token": b.issue(), "refresh_token": "r-2"})
	default:
		b.mu.Lock()
		before := b.beforeData
		b.mu.Unlock()
		if before != nil {
			before(r)
		}
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.requests = append(b.requests, recorded{
			method:    r.Method,
			path:      r.URL.Path,
			auth:      r.Header.Get("Authorization"),
			requestID: r.Header.Get(RequestIDHeader),
			body:      string(body),
		})
		valid := b.valid
		h := b.dataHandler
		b.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			writeMessage(w, http.StatusUnauthorized, "token expired")
			return
		}
		if h != nil {
			h(w, r)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (b *backend) setData(h http.HandlerFunc) {
	b.mu.Lock()
	b.dataHandler = h
	b.mu.Unlock()
}

// expire invalidates the current access token without issuing a new one.
func (b *backend) expire() {
	b.mu.Lock()
	b.valid = "expired"
	b.mu.Unlock()
}

func (b *backend) recorded() []recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recorded(nil), b.requests...)
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

type harness struct {
	backend *backend
	server  *httptest.Server
	session *session.Store
	client  *Client
	reg     *prometheus.Registry
}

func newHarness(t *testing.T, b *backend, login bool) *harness {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	base := srv.URL + "/api/v1"
	httpClient := NewHTTPClient(5 * time.Second)
	auth, err := NewAuthenticator(base, httpClient)
	require.NoError(t, err)
	store := session.New(auth)
	reg := prometheus.NewRegistry()
	client, err := New(Config{BaseURL: base, Session: store, HTTPClient: httpClient, Registerer: reg})
	require.NoError(t, err)

	if login {
		_, err := store.Login(t.Context(), session.Credentials{Username: "ana", Password: "pw"})
		require.NoError(t, err)
	}
	return &harness{backend: b, server: srv, session: store, client: client, reg: reg}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Session: session.New(nil)})
	require.Error(t, err)
	_, err = New(Config{BaseURL: "ftp://example.com", Session: session.New(nil)})
	require.Error(t, err)
	_, err = New(Config{BaseURL: "https://example.com/api/v1"})
	require.Error(t, err)
}

func TestUnauthenticatedFailsFast(t *testing.T) {
	h := newHarness(t, &backend{}, false)

	_, err := h.client.Get(t.Context(), "/tables", nil)
	require.ErrorIs(t, err, session.ErrUnauthenticated)
	assert.Equal(t, KindUnauthenticated, KindOf(err))
	assert.Empty(t, h.backend.recorded())
}

func TestSuccessAttachesCredential(t *testing.T) {
	h := newHarness(t, &backend{}, true)

	resp, err := h.client.Post(t.Context(), "/sales", map[string]string{"table_id": "T1"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Attempts)

	got, err := Decode[map[string]string](resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", got["status"])

	reqs := h.backend.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer tok-1", reqs[0].auth)
	assert.NotEmpty(t, reqs[0].requestID)
	assert.JSONEq(t, `{"table_id":"T1"}`, reqs[0].body)
}

func TestRetryAfterRefresh(t *testing.T) {
	h := newHarness(t, &backend{}, true)
	h.backend.expire()

	resp, err := h.client.Patch(t.Context(), "/tables/T12/close", map[string]int{"guests": 4})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, int32(1), h.backend.refreshes.Load())

	reqs := h.backend.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer tok-1", reqs[0].auth)
	assert.Equal(t, "Bearer tok-2", reqs[1].auth)
	assert.Equal(t, reqs[0].requestID, reqs[1].requestID)
	assert.Equal(t, reqs[0].body, reqs[1].body)

	token, err := h.session.Credential()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.client.metrics.refreshes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.client.metrics.requests.WithLabelValues(http.MethodPatch, "success")))
}

func TestSecondUnauthorizedTearsDown(t *testing.T) {
	b := &backend{}
	h := newHarness(t, b, true)
	b.setData(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusUnauthorized, "account disabled")
	})

	var reasons []session.Reason
	h.session.OnTeardown(func(r session.Reason) { reasons = append(reasons, r) })

	_, err := h.client.Delete(t.Context(), "/products/p1")
	require.ErrorIs(t, err, ErrAuthorizationExpired)
	assert.Equal(t, KindAuthorizationExpired, KindOf(err))
	assert.Len(t, b.recorded(), 2)
	assert.Equal(t, []session.Reason{session.ReasonAuthorizationExpired}, reasons)
	assert.False(t, h.session.Authenticated())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.client.metrics.teardowns))
}

func TestSecondUnauthorizedSparesNewerLogin(t *testing.T) {
	b := &backend{}
	h := newHarness(t, b, true)
	b.expire()

	var relogged atomic.Bool
	b.setData(func(w http.ResponseWriter, r *http.Request) {
		// Another login lands while the replayed request is being rejected.
		if relogged.CompareAndSwap(false, true) {
			_, err := h.session.Login(context.Background(), session.Credentials{Username: "ana", Password: "pw"})
			assert.NoError(t, err)
		}
		writeMessage(w, http.StatusUnauthorized, "account disabled")
	})

	var teardowns atomic.Int32
	h.session.OnTeardown(func(session.Reason) { teardowns.Add(1) })

	_, err := h.client.Get(t.Context(), "/tables", nil)
	require.ErrorIs(t, err, ErrAuthorizationExpired)
	assert.True(t, relogged.Load())
	assert.True(t, h.session.Authenticated(), "the newer session stays")
	assert.Equal(t, int32(0), teardowns.Load())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.client.metrics.teardowns))

	token, err := h.session.Credential()
	require.NoError(t, err)
	assert.Equal(t, "tok-3", token)
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	b := &backend{refreshHold: make(chan struct{})}
	h := newHarness(t, b, true)
	b.expire()

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.client.Get(t.Context(), "/tables", nil)
		}()
	}
	require.Eventually(t, func() bool { return b.refreshes.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(b.refreshHold)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), b.refreshes.Load())
}

func TestRefreshDeniedFailsAllWaiters(t *testing.T) {
	b := &backend{denyNext: true, refreshHold: make(chan struct{})}
	h := newHarness(t, b, true)
	b.expire()

	arrived := make(chan struct{}, 2)
	release := make(chan struct{})
	var teardowns atomic.Int32
	h.session.OnTeardown(func(session.Reason) { teardowns.Add(1) })

	// Hold both requests until both reach the server so their 401s are
	// concurrent.
	b.mu.Lock()
	b.beforeData = func(*http.Request) {
		arrived <- struct{}{}
		<-release
	}
	b.mu.Unlock()
	go func() {
		<-arrived
		<-arrived
		close(release)
		close(b.refreshHold)
	}()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.client.Get(t.Context(), "/sales", nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, session.ErrRefreshDenied)
		assert.Equal(t, KindRefreshDenied, KindOf(err))
	}
	assert.Equal(t, int32(1), b.refreshes.Load())
	assert.Equal(t, int32(1), teardowns.Load())
}

func TestFailuresAreNotRetried(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		kind    Kind
	}{
		{"validation", http.StatusUnprocessableEntity, "table T12 is already closed", KindValidationFailure},
		{"not found", http.StatusNotFound, "sale not found", KindValidationFailure},
		{"server", http.StatusInternalServerError, "database unavailable", KindServerFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &backend{}
			h := newHarness(t, b, true)
			b.setData(func(w http.ResponseWriter, r *http.Request) {
				writeMessage(w, tt.status, tt.message)
			})

			_, err := h.client.Patch(t.Context(), "/tables/T12/close", nil)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.message, Message(err))
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Len(t, b.recorded(), 1)
			assert.Equal(t, int32(0), b.refreshes.Load())
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	b := &backend{}
	h := newHarness(t, b, true)
	h.server.Close()

	_, err := h.client.Get(t.Context(), "/tables", nil)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, KindNetworkFailure, KindOf(err))
	assert.True(t, h.session.Authenticated(), "network failures never end the session")
}

func TestTimeoutIsNetworkFailure(t *testing.T) {
	b := &backend{}
	h := newHarness(t, b, true)
	b.setData(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeData(w, http.StatusOK, nil)
	})
	h.client.httpClient.Timeout = 20 * time.Millisecond

	_, err := h.client.Post(t.Context(), "/payments", map[string]int{"amount": 10})
	require.Error(t, err)
	assert.Equal(t, KindNetworkFailure, KindOf(err))
	assert.Equal(t, int32(0), b.refreshes.Load())
}

func TestMutationSurvivesCallerCancellation(t *testing.T) {
	b := &backend{}
	h := newHarness(t, b, true)
	started := make(chan struct{})
	b.setData(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		writeData(w, http.StatusOK, map[string]string{"id": "s1"})
	})

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		<-started
		cancel()
	}()
	resp, err := h.client.Post(ctx, "/sales", map[string]string{"table_id": "T1"})
	require.NoError(t, err)
	got, err := Decode[map[string]string](resp)
	require.NoError(t, err)
	assert.Equal(t, "s1", got["id"])
}

func TestUnauthorizedSpikeAlert(t *testing.T) {
	var alerts []AlertEvent
	clk := clock.Fake(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	w := newUnauthorizedWindow(func(e AlertEvent) { alerts = append(alerts, e) }, clk, time.Minute, 3)

	w.record()
	w.record()
	clk.Advance(2 * time.Minute)
	w.record()
	w.record()
	assert.Empty(t, alerts, "old entries fall out of the window")

	w.record()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertUnauthorizedSpike, alerts[0].Type)
	assert.Equal(t, 3, alerts[0].Count)
}

func TestAuthenticatorMapsRejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			writeMessage(w, http.StatusUnauthorized, "invalid username or password")
		case "/auth/refresh":
			writeMessage(w, http.StatusUnauthorized, "refresh token expired")
		case "/auth/me":
			writeMessage(w, http.StatusUnauthorized, "token expired")
		}
	}))
	defer srv.Close()

	a, err := NewAuthenticator(srv.URL, nil)
	require.NoError(t, err)

	_, err = a.Login(t.Context(), session.Credentials{Username: "ana", Password: "x"})
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "invalid username or password")

	_, err = a.Refresh(t.Context(), "r-1")
	require.ErrorIs(t, err, session.ErrRefreshDenied)

	_, _, err = a.Profile(t.Context(), "tok")
	require.ErrorIs(t, err, session.ErrUnauthenticated)
}

func TestResponseEnvelope(t *testing.T) {
	r := &Response{Body: []byte(`{"data":[{"id":"T1"}],"pagination":{"page":2,"page_size":10,"total":11,"total_pages":2}}`)}
	data, err := r.Data()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"T1"}]`, string(data))

	p, err := r.Pagination()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 11, p.Total)

	empty := &Response{}
	data, err = empty.Data()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
