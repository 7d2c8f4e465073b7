// Package gateway performs authenticated calls against the back-office
// API. Each call runs a small state machine: send, and on a 401 renew the
// credential once (shared with every concurrent caller) and replay the
// request once. Other failures are returned as they are.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmcleod/tablehand/internal/clock"
	"github.com/jmcleod/tablehand/internal/uuid"
	"github.com/jmcleod/tablehand/session"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 8 << 20

	// RequestIDHeader carries the id shared by a request and its replay.
	RequestIDHeader = "X-Request-ID"
)

// Credentials is the part of the session store the gateway uses.
// *session.Store satisfies it.
type Credentials interface {
	Credential() (string, error)
	RefreshFrom(ctx context.Context, stale string) (string, error)
	TeardownFrom(reason session.Reason, stale string) bool
}

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the versioned API root, e.g. "https://host/api/v1".
	BaseURL string

	// Session supplies and renews the bearer credential. Required.
	Session Credentials

	// HTTPClient is used for all requests. Defaults to NewHTTPClient(30s).
	// Timeouts belong here; a timeout is reported as a network failure.
	HTTPClient *http.Client

	// Clock drives the 401 spike window. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives the gateway counters when set.
	Registerer prometheus.Registerer

	// AlertFn is called when 401s spike. AlertWindow and AlertThreshold
	// tune the sliding window; zero values use the defaults.
	AlertFn        AlertFunc
	AlertWindow    time.Duration
	AlertThreshold int
}

// Client is the request gateway. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    Credentials
	logger     *slog.Logger
	metrics    *metrics
	spikes     *unauthorizedWindow
}

// NewHTTPClient returns an http.Client with a cookie jar, so cookies set by
// the backend travel with later requests.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar, Timeout: timeout}
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("gateway: session is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(defaultTimeout)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		session:    cfg.Session,
		logger:     logger.With("component", "gateway"),
		metrics:    newMetrics(cfg.Registerer),
		spikes:     newUnauthorizedWindow(cfg.AlertFn, clk, cfg.AlertWindow, cfg.AlertThreshold),
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("gateway: base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("gateway: parsing base URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("gateway: base URL must be http or https (got %q)", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("gateway: base URL has no host (got %q)", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying client, shared with the Authenticator.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

type state int

const (
	stateIdle state = iota
	stateSending
	stateUnauthorized
	stateRefreshing
	stateRetrySending
	stateSuccess
	stateFailed
)

func (s state) String() string {
	return [...]string{"idle", "sending", "unauthorized", "refreshing", "retry_sending", "success", "failed"}[s]
}

// call is one logical request, replayed byte-for-byte on retry.
type call struct {
	method    string
	path      string
	body      []byte
	requestID string
	attempts  int
}

// Do sends method to path with body JSON-encoded (nil for none). On success
// it returns the response; otherwise an error classified by KindOf.
//
// Once a write has been handed to the transport its cancellation is
// detached from ctx: the layer never abandons a sent mutation.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	cl := &call{method: method, path: path, requestID: uuid.New()}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: encoding request body: %w", err)
		}
		cl.body = encoded
	}

	var (
		token   string
		resp    *Response
		callErr error
		st      = stateIdle
	)
	for st != stateSuccess && st != stateFailed {
		next := st
		switch st {
		case stateIdle:
			t, err := c.session.Credential()
			if err != nil {
				callErr, next = err, stateFailed
				break
			}
			token, next = t, stateSending

		case stateSending, stateRetrySending:
			status, r, err := c.send(ctx, cl, token)
			switch {
			case err != nil:
				callErr, next = err, stateFailed
			case status != http.StatusUnauthorized:
				resp, next = r, stateSuccess
			case st == stateSending:
				next = stateUnauthorized
			default:
				// Rejected right after a renewal: the backend no longer
				// accepts this session at all. A session from a newer login
				// is not this call's to end.
				c.spikes.record()
				if c.session.TeardownFrom(session.ReasonAuthorizationExpired, token) {
					c.metrics.teardowns.Inc()
				}
				callErr, next = fmt.Errorf("%s %s: %w", method, path, ErrAuthorizationExpired), stateFailed
			}

		case stateUnauthorized:
			c.spikes.record()
			next = stateRefreshing

		case stateRefreshing:
			t, err := c.session.RefreshFrom(ctx, token)
			if err != nil {
				c.metrics.refreshes.WithLabelValues(refreshResult(err)).Inc()
				callErr, next = err, stateFailed
				break
			}
			c.metrics.refreshes.WithLabelValues("success").Inc()
			token, next = t, stateRetrySending
		}
		c.logger.Debug("transition",
			"request_id", cl.requestID,
			"method", method,
			"path", path,
			"from", st.String(),
			"to", next.String())
		st = next
	}

	if callErr != nil {
		c.metrics.requests.WithLabelValues(method, KindOf(callErr).String()).Inc()
		c.logger.Warn("request failed",
			"request_id", cl.requestID,
			"method", method,
			"path", path,
			"attempts", cl.attempts,
			"kind", KindOf(callErr).String(),
			"error", callErr)
		return nil, callErr
	}
	c.metrics.requests.WithLabelValues(method, "success").Inc()
	resp.Attempts = cl.attempts
	return resp, nil
}

func refreshResult(err error) string {
	if errors.Is(err, session.ErrRefreshDenied) {
		return "denied"
	}
	return "error"
}

// send performs one HTTP attempt. A 401 is reported through status with a
// nil error; other non-2xx replies come back as *APIError.
func (c *Client) send(ctx context.Context, cl *call, token string) (int, *Response, error) {
	cl.attempts++
	sendCtx := ctx
	if cl.method != http.MethodGet && cl.method != http.MethodHead {
		sendCtx = context.WithoutCancel(ctx)
	}

	var bodyReader io.Reader
	if cl.body != nil {
		bodyReader = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(sendCtx, cl.method, c.baseURL+cl.path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("gateway: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, cl.requestID)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && cl.method == http.MethodGet {
			return 0, nil, ctxErr
		}
		return 0, nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, cl.method, cl.path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("%w: reading %s %s: %w", ErrNetwork, cl.method, cl.path, err)
	}
	if res.StatusCode == http.StatusUnauthorized {
		return res.StatusCode, nil, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res.StatusCode, nil, parseAPIError(cl.method, cl.path, res.StatusCode, data)
	}
	return res.StatusCode, &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}, nil
}

// Get sends a GET to path with the given query (nil for none).
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post sends body to path.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put sends body to path.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Patch sends body to path.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body)
}

// Delete sends a DELETE to path.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}
