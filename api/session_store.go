package api

import "time"

// SessionStore keeps the server side of refresh credentials. A refresh
// token is opaque and single use: Take removes it atomically, so two
// renewals racing on one token cannot both succeed.
type SessionStore interface {
	// Get returns the session for token without consuming it. Expired
	// sessions are reported missing.
	Get(token string) (RefreshSession, bool)
	// Put creates or replaces the session for token.
	Put(token string, session RefreshSession)
	// Take returns and removes the session for token.
	Take(token string) (RefreshSession, bool)
	// Delete removes the session for token.
	Delete(token string)
}

// RefreshSession is what a refresh token stands for.
type RefreshSession struct {
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
