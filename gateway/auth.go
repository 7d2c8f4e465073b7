package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jmcleod/tablehand/session"
)

// Authenticator calls the backend auth endpoints. It satisfies
// session.Authenticator and session.ProfileFetcher. It never goes through a
// Client: a refresh must not itself trigger a refresh.
type Authenticator struct {
	baseURL    string
	httpClient *http.Client
}

var (
	_ session.Authenticator  = (*Authenticator)(nil)
	_ session.ProfileFetcher = (*Authenticator)(nil)
)

// NewAuthenticator returns an Authenticator for the API rooted at baseURL.
// Pass the same http.Client as the gateway so both share the cookie jar.
func NewAuthenticator(baseURL string, httpClient *http.Client) (*Authenticator, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(defaultTimeout)
	}
	return &Authenticator{baseURL: base, httpClient: httpClient}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type profileResponse struct {
	User    session.UserProfile `json:"user"`
	Cashbox *session.CashboxRef `json:"cashbox,omitempty"`
}

// Login exchanges credentials for a grant.
func (a *Authenticator) Login(ctx context.Context, creds session.Credentials) (session.Grant, error) {
	var grant session.Grant
	status, err := a.post(ctx, "/auth/login", "", loginRequest{Username: creds.Username, Password: creds.Password}, &grant)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return session.Grant{}, fmt.Errorf("%w: %s", session.ErrInvalidCredentials, Message(err))
	}
	return grant, err
}

// Refresh exchanges a refresh credential for a new grant.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (session.Grant, error) {
	var grant session.Grant
	status, err := a.post(ctx, "/auth/refresh", "", refreshRequest{RefreshToken: refreshToken}, &grant)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return session.Grant{}, fmt.Errorf("%w: %s", session.ErrRefreshDenied, Message(err))
	}
	return grant, err
}

// Profile resolves the user behind an access credential.
func (a *Authenticator) Profile(ctx context.Context, accessToken string) (session.UserProfile, *session.CashboxRef, error) {
	var out profileResponse
	status, err := a.do(ctx, http.MethodGet, "/auth/me", accessToken, nil, &out)
	if status == http.StatusUnauthorized {
		return session.UserProfile{}, nil, fmt.Errorf("%w: %s", session.ErrUnauthenticated, Message(err))
	}
	if err != nil {
		return session.UserProfile{}, nil, err
	}
	return out.User, out.Cashbox, nil
}

func (a *Authenticator) post(ctx context.Context, path, token string, body, out any) (int, error) {
	return a.do(ctx, http.MethodPost, path, token, body, out)
}

// do sends one request and decodes the envelope's data into out. The status
// is returned alongside any error so callers can map auth rejections.
func (a *Authenticator) do(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("gateway: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("gateway: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return res.StatusCode, fmt.Errorf("%w: reading %s %s: %w", ErrNetwork, method, path, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res.StatusCode, parseAPIError(method, path, res.StatusCode, data)
	}
	if out != nil {
		r := &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}
		raw, err := r.Data()
		if err != nil {
			return res.StatusCode, err
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return res.StatusCode, fmt.Errorf("decoding %s %s: %w", method, path, err)
		}
	}
	return res.StatusCode, nil
}
