package api

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type contextKey int

const principalKey contextKey = iota

const (
	refreshCookieName = "tablehand_refresh"
	requestIDHeader   = "X-Request-ID"
)

// principal is the authenticated caller of a request.
type principal struct {
	UserID   string
	Username string
	Role     string
}

// AuthMiddleware requires a valid bearer access token and stores the
// caller on the request context. Every rejection is a 401 so clients know
// to renew.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := a.signer.verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "access token expired or invalid")
			return
		}
		p := principal{UserID: claims.Subject, Username: claims.Username, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

func principalFromContext(ctx context.Context) principal {
	p, _ := ctx.Value(principalKey).(principal)
	return p
}

// writeRefreshCookie mirrors the refresh token into an HttpOnly cookie so
// browser clients never have to store it themselves.
func writeRefreshCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/v1/auth",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  expiresAt,
	})
}

func clearRefreshCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}

// echoRequestID copies the caller's request id onto the response so a
// replayed request can be correlated with its first attempt.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(requestIDHeader); id != "" {
			w.Header().Set(requestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
