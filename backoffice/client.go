// Package backoffice exposes one facade per business entity. Reads go
// through the cache store under a fixed key shape; writes go through the
// request gateway and, once the backend accepted them, through the
// invalidation graph. Nothing here touches the cache after a failed write.
package backoffice

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jmcleod/tablehand/cache"
	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/gateway"
	"github.com/jmcleod/tablehand/internal/clock"
	"github.com/jmcleod/tablehand/invalidation"
	"github.com/jmcleod/tablehand/session"
)

// Gateway is the part of *gateway.Client the facades use.
type Gateway interface {
	Get(ctx context.Context, path string, query url.Values) (*gateway.Response, error)
	Do(ctx context.Context, method, path string, body any) (*gateway.Response, error)
}

// CashboxTracker receives the open cashbox after it changes.
// *session.Store satisfies it.
type CashboxTracker interface {
	UpdateCashbox(ref *session.CashboxRef)
}

// Client groups the entity facades.
type Client struct {
	Tables         *Tables
	Sales          *Sales
	Reservations   *Reservations
	Accommodations *Accommodations
	Payments       *Payments
	Products       *Products
	Employees      *Employees
	Cashbox        *Cashbox
	Transactions   *Transactions
	Dashboard      *Dashboard
}

// Option configures a Client.
type Option func(*core)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *core) { c.logger = l }
}

// WithClock sets the clock used for default dates. Defaults to clock.Real().
func WithClock(clk clock.Clock) Option {
	return func(c *core) { c.clock = clk }
}

// New wires the facades. sess may be nil when nothing tracks the open
// cashbox.
func New(gw Gateway, store *cache.Store, graph *invalidation.Graph, sess CashboxTracker, opts ...Option) *Client {
	c := &core{
		gw:      gw,
		cache:   store,
		graph:   graph,
		session: sess,
		logger:  slog.Default(),
		clock:   clock.Real(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "backoffice")
	return &Client{
		Tables:         &Tables{c},
		Sales:          &Sales{c},
		Reservations:   &Reservations{c},
		Accommodations: &Accommodations{c},
		Payments:       &Payments{c},
		Products:       &Products{c},
		Employees:      &Employees{c},
		Cashbox:        &Cashbox{c},
		Transactions:   &Transactions{c},
		Dashboard:      &Dashboard{c},
	}
}

type core struct {
	gw      Gateway
	cache   *cache.Store
	graph   *invalidation.Graph
	session CashboxTracker
	logger  *slog.Logger
	clock   clock.Clock
}

// Page is one page of a paginated list.
type Page[T any] struct {
	Items      []T                 `json:"data"`
	Pagination *gateway.Pagination `json:"pagination,omitempty"`
}

// none decodes responses whose data is irrelevant.
type none struct{}

// path joins escaped segments into an API path.
func path(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func setIf(q url.Values, name, value string) {
	if value != "" {
		q.Set(name, value)
	}
}

func (c *core) fetch(p string, query url.Values) cache.Fetcher {
	return func(ctx context.Context) (json.RawMessage, error) {
		resp, err := c.gw.Get(ctx, p, query)
		if err != nil {
			return nil, err
		}
		return resp.Data()
	}
}

// fetchEnvelope keeps the whole envelope so pagination is cached with the
// items.
func (c *core) fetchEnvelope(p string, query url.Values) cache.Fetcher {
	return func(ctx context.Context) (json.RawMessage, error) {
		resp, err := c.gw.Get(ctx, p, query)
		if err != nil {
			return nil, err
		}
		if len(resp.Body) == 0 {
			return json.RawMessage(`{"data":[]}`), nil
		}
		return json.RawMessage(resp.Body), nil
	}
}

func read[T any](ctx context.Context, c *core, key cache.Key, p string, query url.Values) (T, error) {
	return cache.Load[T](ctx, c.cache, key, c.fetch(p, query))
}

func readPage[T any](ctx context.Context, c *core, key cache.Key, p string, query url.Values) (Page[T], error) {
	return cache.Load[Page[T]](ctx, c.cache, key, c.fetchEnvelope(p, query))
}

// write sends one mutation. Only when the backend accepted it is outcome
// built from the decoded reply and applied to the graph.
func write[T any](ctx context.Context, c *core, method, p string, body any, outcome func(T) invalidation.Outcome) (T, error) {
	var zero T
	resp, err := c.gw.Do(ctx, method, p, body)
	if err != nil {
		return zero, err
	}
	out, decodeErr := gateway.Decode[T](resp)
	c.apply(outcome(out))
	return out, decodeErr
}

func (c *core) apply(o invalidation.Outcome) {
	n, err := c.graph.Apply(o)
	if err != nil {
		c.logger.Error("invalidation failed", "mutation", string(o.Kind), "error", err)
		return
	}
	c.logger.Debug("invalidated", "mutation", string(o.Kind), "entries", n)
}

func (c *core) today() string {
	return c.clock.Now().Format(domain.DateLayout)
}

// outcome returns a constant outcome builder for writes whose ids are known
// before the call.
func outcome[T any](kind invalidation.Mutation, pairs ...string) func(T) invalidation.Outcome {
	o := invalidation.NewOutcome(kind, pairs...)
	return func(T) invalidation.Outcome { return o }
}
