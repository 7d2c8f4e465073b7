package session

import "errors"

var (
	// ErrUnauthenticated is returned when an operation needs a credential and
	// none is held. No network call is made.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials is returned by Login when the backend rejects
	// the username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRefreshDenied is returned when the backend refuses to renew the
	// access credential. The session has been torn down.
	ErrRefreshDenied = errors.New("credential refresh denied")
)
