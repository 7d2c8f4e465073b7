package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/tablehand/internal/clock"
	"github.com/jmcleod/tablehand/internal/util"
)

func newTestAPI(t *testing.T, opts ...Option) (*API, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	data := NewData(clk, util.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1})
	require.NoError(t, Seed(data))
	require.NoError(t, data.AddUser("ana", "correct horse", "Ana Costa", "cashier"))
	a, err := New(data, bytes.Repeat([]byte{7}, util.KeySize),
		append([]Option{WithClock(clk), WithLogger(discard)}, opts...)...)
	require.NoError(t, err)
	return a, clk
}

func call(t *testing.T, a *API, method, path, bearer string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)
	return rec
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) TokenResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func login(t *testing.T, a *API) TokenResponse {
	t.Helper()
	return decodeTokens(t, call(t, a, http.MethodPost, "/auth/login", "", LoginRequest{Username: "Ana", Password: "correct horse"}))
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	a, _ := newTestAPI(t)
	rec := call(t, a, http.MethodPost, "/auth/login", "", LoginRequest{Username: "Ana", Password: "correct horse"})
	tokens := decodeTokens(t, rec)

	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.True(t, epoch.Add(defaultAccessTTL).Equal(tokens.ExpiresAt))
	require.NotNil(t, tokens.User)
	assert.Equal(t, "ana", tokens.User.Username)
	assert.Nil(t, tokens.Cashbox)

	c := refreshCookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, tokens.RefreshToken, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/api/v1/auth", c.Path)
}

func TestLoginFailures(t *testing.T) {
	a, _ := newTestAPI(t)

	rec := call(t, a, http.MethodPost, "/auth/login", "", LoginRequest{Username: "ana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, a, http.MethodPost, "/auth/login", "", map[string]string{"user": "ana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	for range maxFailures {
		rec = call(t, a, http.MethodPost, "/auth/login", "", LoginRequest{Username: "ana", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec = call(t, a, http.MethodPost, "/auth/login", "", LoginRequest{Username: "ana", Password: "correct horse"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRefreshRotatesToken(t *testing.T) {
	a, _ := newTestAPI(t)
	first := login(t, a)

	second := decodeTokens(t, call(t, a, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: first.RefreshToken}))
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	rec := call(t, a, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a consumed refresh token is rejected")
}

func TestRefreshFromCookie(t *testing.T) {
	a, _ := newTestAPI(t)
	rec := call(t, a, http.MethodPost, "/auth/login", "", LoginRequest{Username: "ana", Password: "correct horse"})
	c := refreshCookie(rec)
	require.NotNil(t, c)

	tokens := decodeTokens(t, call(t, a, http.MethodPost, "/auth/refresh", "", nil, c))
	assert.NotEmpty(t, tokens.AccessToken)

	rec = call(t, a, http.MethodPost, "/auth/refresh", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshAfterExpiry(t *testing.T) {
	a, clk := newTestAPI(t)
	tokens := login(t, a)
	clk.Advance(defaultRefreshTTL + time.Minute)

	rec := call(t, a, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	a, _ := newTestAPI(t)
	tokens := login(t, a)

	rec := call(t, a, http.MethodPost, "/auth/logout", "", RefreshRequest{RefreshToken: tokens.RefreshToken})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	c := refreshCookie(rec)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)

	rec = call(t, a, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, a, http.MethodPost, "/auth/logout", "", RefreshRequest{RefreshToken: tokens.RefreshToken})
	assert.Equal(t, http.StatusNoContent, rec.Code, "logout is idempotent")
}

func TestAccessTokenExpiry(t *testing.T) {
	a, clk := newTestAPI(t)
	tokens := login(t, a)

	rec := call(t, a, http.MethodGet, "/auth/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	clk.Advance(defaultAccessTTL + time.Second)
	rec = call(t, a, http.MethodGet, "/auth/me", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, a, http.MethodGet, "/tables", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = call(t, a, http.MethodGet, "/tables", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeIncludesOpenCashbox(t *testing.T) {
	a, _ := newTestAPI(t)
	tokens := login(t, a)

	rec := call(t, a, http.MethodPost, "/cashbox/open", tokens.AccessToken, map[string]float64{"opening_amount": 50})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, a, http.MethodGet, "/auth/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data MeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "Ana Costa", env.Data.User.Name)
	require.NotNil(t, env.Data.Cashbox)
	assert.Equal(t, 50.0, env.Data.Cashbox.OpeningAmount)

	rec = call(t, a, http.MethodPost, "/cashbox/open", tokens.AccessToken, map[string]float64{"opening_amount": 10})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var errBody ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Contains(t, errBody.Message, "already open")
	assert.NotContains(t, errBody.Message, ErrInvalid.Error())
}

func TestRequestIDEchoedAndHeadersSet(t *testing.T) {
	a, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/tables", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New(NewData(nil, util.DefaultArgon2idParams()), []byte("short"))
	require.ErrorIs(t, err, errSigningKey)
}
