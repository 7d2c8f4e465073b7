package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmcleod/tablehand/session"
)

var (
	// ErrAuthorizationExpired is returned when a request is rejected again
	// after a successful credential renewal. The session has been torn down.
	ErrAuthorizationExpired = errors.New("authorization expired")
	// ErrNetwork wraps transport failures, timeouts included.
	ErrNetwork = errors.New("network failure")
)

// Kind classifies a request failure.
type Kind int

const (
	KindNone Kind = iota
	KindUnauthenticated
	KindAuthorizationExpired
	KindRefreshDenied
	KindValidationFailure
	KindServerFailure
	KindNetworkFailure
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuthorizationExpired:
		return "authorization_expired"
	case KindRefreshDenied:
		return "refresh_denied"
	case KindValidationFailure:
		return "validation_failure"
	case KindServerFailure:
		return "server_failure"
	case KindNetworkFailure:
		return "network_failure"
	default:
		return "unknown"
	}
}

// APIError is a non-2xx, non-401 response. Message is the backend's
// `message` field, unchanged.
type APIError struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Kind reports whether the error is a validation or a server failure.
func (e *APIError) Kind() Kind {
	if e.StatusCode >= 500 {
		return KindServerFailure
	}
	return KindValidationFailure
}

// IsValidation reports whether err is a 4xx response carrying a message.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidationFailure
}

// IsServer reports whether err is a 5xx response.
func IsServer(err error) bool {
	return KindOf(err) == KindServerFailure
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Message returns the backend message carried by err, or err.Error() when
// there is none.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// KindOf maps err onto the failure taxonomy.
func KindOf(err error) Kind {
	var apiErr *APIError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, session.ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrAuthorizationExpired):
		return KindAuthorizationExpired
	case errors.Is(err, session.ErrRefreshDenied):
		return KindRefreshDenied
	case errors.As(err, &apiErr):
		return apiErr.Kind()
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return KindNetworkFailure
	default:
		return KindUnknown
	}
}
