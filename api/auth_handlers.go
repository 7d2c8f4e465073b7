package api

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/internal/util"
)

const refreshTokenBytes = 32

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	// Check rate limits before the password hash: global, then per-user.
	if blocked, retryAfter := a.globalLimit.check(); blocked {
		a.audit.log(AuditLoginRateLimited, r, slog.String("reason", "global"))
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter := a.rateLimiter.check(req.Username); blocked {
		a.audit.log(AuditLoginRateLimited, r, slog.String("username", limiterKey(req.Username)))
		writeRateLimited(w, retryAfter)
		return
	}

	u, ok := a.data.authenticate(req.Username, req.Password)
	if !ok {
		a.rateLimiter.recordFailure(req.Username)
		a.globalLimit.recordFailure()
		a.audit.log(AuditLoginFailure, r, slog.String("username", limiterKey(req.Username)))
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	a.rateLimiter.recordSuccess(req.Username)

	resp, err := a.grant(w, r, u)
	if err != nil {
		a.logger.Error("issuing tokens", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.audit.logUser(AuditLoginSuccess, r, u.ID)
	writeData(w, http.StatusOK, resp)
}

// Refresh handles POST /auth/refresh. The refresh token is consumed; the
// reply carries its replacement.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := a.refreshToken(w, r)
	if !ok {
		return
	}
	sess, found := a.sessions.Take(token)
	if !found {
		clearRefreshCookie(w, r)
		a.audit.log(AuditRefreshDenied, r)
		writeError(w, http.StatusUnauthorized, "refresh token expired or revoked")
		return
	}
	u, found := a.data.userByID(sess.UserID)
	if !found {
		clearRefreshCookie(w, r)
		a.audit.log(AuditRefreshDenied, r, slog.String("user_id", sess.UserID))
		writeError(w, http.StatusUnauthorized, "refresh token expired or revoked")
		return
	}

	resp, err := a.grant(w, r, u)
	if err != nil {
		a.logger.Error("issuing tokens", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.audit.logUser(AuditRefresh, r, u.ID)
	writeData(w, http.StatusOK, resp)
}

// Logout handles POST /auth/logout. It succeeds even when the refresh token
// is unknown.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := a.refreshToken(w, r)
	if !ok {
		return
	}
	if sess, found := a.sessions.Take(token); found {
		a.audit.logUser(AuditLogout, r, sess.UserID)
	}
	clearRefreshCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	p := principalFromContext(r.Context())
	u, ok := a.data.userByID(p.UserID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	writeData(w, http.StatusOK, MeResponse{
		User:    userResponse(u),
		Cashbox: cashboxRef(a.data.CurrentCashbox()),
	})
}

// refreshToken reads the refresh token from the body, falling back to the
// refresh cookie.
func (a *API) refreshToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	req, ok := decodeJSON[RefreshRequest](w, r)
	if !ok {
		return "", false
	}
	if req.RefreshToken != "" {
		return req.RefreshToken, true
	}
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	writeError(w, http.StatusBadRequest, "refresh_token is required")
	return "", false
}

// grant issues a fresh access token and refresh token pair for u.
func (a *API) grant(w http.ResponseWriter, r *http.Request, u user) (TokenResponse, error) {
	access, expiresAt, err := a.signer.issue(u)
	if err != nil {
		return TokenResponse{}, err
	}
	raw, err := util.RandomBytes(refreshTokenBytes)
	if err != nil {
		return TokenResponse{}, err
	}
	refresh := base64.RawURLEncoding.EncodeToString(raw)
	now := a.clock.Now()
	refreshExpires := now.Add(a.refreshTTL)
	a.sessions.Put(refresh, RefreshSession{UserID: u.ID, IssuedAt: now, ExpiresAt: refreshExpires})
	writeRefreshCookie(w, r, refresh, refreshExpires)

	ur := userResponse(u)
	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         &ur,
		Cashbox:      cashboxRef(a.data.CurrentCashbox()),
	}, nil
}

func userResponse(u user) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

func cashboxRef(cb *domain.Cashbox) *CashboxRef {
	if cb == nil {
		return nil
	}
	return &CashboxRef{ID: cb.ID, OpenedAt: cb.OpenedAt, OpeningAmount: cb.OpeningAmount}
}
