package session

import (
	"context"
	"time"
)

// Credentials are the login inputs.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserProfile describes the authenticated user.
type UserProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// CashboxRef points at the cashbox currently open for the user.
type CashboxRef struct {
	ID            string    `json:"id"`
	OpenedAt      time.Time `json:"opened_at"`
	OpeningAmount float64   `json:"opening_amount"`
}

// Grant is what the backend hands out on login and refresh. Refresh grants
// may omit the user, in which case the current one is kept.
type Grant struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	User         *UserProfile `json:"user,omitempty"`
	Cashbox      *CashboxRef  `json:"cashbox,omitempty"`
}

// Session is a point-in-time view of the store. Tokens are never exposed
// through it; use Store.Credential.
type Session struct {
	User                 *UserProfile
	Cashbox              *CashboxRef
	HasRefreshCredential bool
	// ReturnPath is the location recorded at the previous logout, set only
	// on the Session returned by Login.
	ReturnPath string
}

// Authenticator talks to the backend's auth endpoints.
//
// Login must return an error wrapping ErrInvalidCredentials for rejected
// credentials and Refresh one wrapping ErrRefreshDenied for a rejected
// renewal. Any other error is treated as transient.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Grant, error)
	Refresh(ctx context.Context, refreshToken string) (Grant, error)
}

// ProfileFetcher is implemented by authenticators that can resolve the user
// behind a bare access credential. Restore uses it when available.
type ProfileFetcher interface {
	Profile(ctx context.Context, accessToken string) (UserProfile, *CashboxRef, error)
}

// Durable is the client-side persistence the store relies on. storage.Slots
// satisfies it.
type Durable interface {
	SaveCredential(token string) error
	LoadCredential() (string, error)
	ClearCredential() error
	SaveReturnPath(path string) error
	TakeReturnPath() (string, error)
}

// CacheClearer is the part of the cache store that logout needs.
type CacheClearer interface {
	ClearAll()
}

// Locator reports where the user currently is, recorded at logout.
type Locator interface {
	Location() string
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func() string

func (f LocatorFunc) Location() string { return f() }

// Reason says why a session ended.
type Reason string

const (
	ReasonLogout               Reason = "logout"
	ReasonRefreshDenied        Reason = "refresh_denied"
	ReasonAuthorizationExpired Reason = "authorization_expired"
)
