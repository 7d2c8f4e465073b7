// Package api is the reference back-office backend: an in-memory
// implementation of the REST catalog the client layer consumes. It issues
// short-lived JWT access tokens and opaque single-use refresh tokens.
package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-openapi/runtime/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmcleod/tablehand/internal/clock"
	"github.com/jmcleod/tablehand/internal/util"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	sweepInterval     = 10 * time.Minute
)

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the REST handlers.
type API struct {
	data        *Data
	sessions    SessionStore
	signer      *signer
	refreshTTL  time.Duration
	clock       clock.Clock
	rateLimiter *loginRateLimiter
	globalLimit *globalRateLimiter
	audit       *auditLogger

	logger     *slog.Logger
	alertFn    AlertFunc
	registerer prometheus.Registerer

	webhookURL    string
	webhookHeader string
	webhook       *auditWebhook
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithSessionStore replaces the in-memory refresh session store.
func WithSessionStore(s SessionStore) Option {
	return func(a *API) { a.sessions = s }
}

// WithClock sets the clock used for token lifetimes and rate limits.
func WithClock(c clock.Clock) Option {
	return func(a *API) { a.clock = c }
}

// WithTokenTTL sets the access and refresh token lifetimes. Zero keeps the
// default.
func WithTokenTTL(access, refresh time.Duration) Option {
	return func(a *API) {
		if access > 0 {
			a.signer.ttl = access
		}
		if refresh > 0 {
			a.refreshTTL = refresh
		}
	}
}

// WithAlertFunc sets the callback for anomaly alerts.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) { a.alertFn = fn }
}

// WithRegisterer registers the audit event counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *API) { a.registerer = reg }
}

// WithAuditWebhook forwards every audit event to url. header, when set, is
// sent as "Name: Value" with each request.
func WithAuditWebhook(url, header string) Option {
	return func(a *API) { a.webhookURL, a.webhookHeader = url, header }
}

// New creates an API serving data. signingKey must be 32 bytes; it signs
// access tokens.
func New(data *Data, signingKey []byte, opts ...Option) (*API, error) {
	if len(signingKey) != util.KeySize {
		return nil, errSigningKey
	}
	a := &API{
		data:       data,
		signer:     &signer{key: append([]byte(nil), signingKey...), ttl: defaultAccessTTL},
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = clock.Real()
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if a.sessions == nil {
		a.sessions = NewMemorySessionStore(a.clock)
	}
	a.signer.clock = a.clock
	a.rateLimiter = newLoginRateLimiter(a.clock)
	a.globalLimit = newGlobalRateLimiter(a.clock)
	if a.webhookURL != "" {
		a.webhook = newAuditWebhook(a.webhookURL, a.webhookHeader, a.logger)
	}
	a.audit = newAuditLogger(a.logger, a.clock, newMetricsCollector(a.alertFn, a.clock, a.registerer), a.webhook)
	return a, nil
}

// Close flushes queued audit webhook deliveries.
func (a *API) Close() {
	if a.webhook != nil {
		a.webhook.close()
	}
}

// Router returns a chi.Router with all API routes mounted. Mount it at
// /api/v1.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer, echoRequestID, SecurityHeaders)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auth/login", a.Login)
	r.Post("/auth/refresh", a.Refresh)
	r.Post("/auth/logout", a.Logout)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/auth/me", a.Me)

		r.Get("/tables", a.ListTables)
		r.Patch("/tables/{tableID}/open", a.OpenTable)
		r.Patch("/tables/{tableID}/close", a.CloseTable)
		r.Patch("/tables/{tableID}/reserve", a.ReserveTable)

		r.Get("/sales", a.ListSales)
		r.Post("/sales", a.CreateSale)
		r.Get("/sales/{saleID}", a.GetSale)
		r.Put("/sales/{saleID}", a.UpdateSale)
		r.Patch("/sales/{saleID}/close", a.CloseSale)
		r.Patch("/sales/{saleID}/cancel", a.CancelSale)
		r.Get("/sales/{saleID}/items", a.ListSaleItems)
		r.Post("/sales/{saleID}/items", a.AddSaleItem)
		r.Put("/sales/{saleID}/items/{itemID}", a.UpdateSaleItem)
		r.Delete("/sales/{saleID}/items/{itemID}", a.RemoveSaleItem)

		r.Get("/reservations", a.ListReservations)
		r.Post("/reservations", a.CreateReservation)
		r.Post("/reservations/batch", a.CreateReservations)
		r.Route("/reservations/{reservationID}", func(r chi.Router) {
			r.Get("/", a.GetReservation)
			r.Put("/", a.UpdateReservation)
			r.Delete("/", a.DeleteReservation)
			r.Post("/check-in", a.CheckIn)
			r.Post("/check-out", a.CheckOut)
			mountSub(r, "/per-diems", a, perDiemSub)
			mountSub(r, "/consumptions", a, consumptionSub)
			mountSub(r, "/payments", a, resPaymentSub)
		})
		r.Get("/accommodations", a.ListAccommodations)

		r.Get("/payments", a.ListPayments)
		r.Post("/payments", a.RegisterPayment)

		r.Get("/products", a.ListProducts)
		r.Post("/products", a.CreateProduct)
		r.Put("/products/{productID}", a.UpdateProduct)
		r.Delete("/products/{productID}", a.DeleteProduct)
		r.Get("/product-categories", a.ListCategories)

		r.Get("/employees", a.ListEmployees)
		r.Post("/employees", a.CreateEmployee)
		r.Put("/employees/{employeeID}", a.UpdateEmployee)
		r.Delete("/employees/{employeeID}", a.DeleteEmployee)

		r.Get("/cashbox/current", a.CurrentCashbox)
		r.Post("/cashbox/open", a.OpenCashbox)
		r.Get("/cashbox/{cashboxID}", a.GetCashbox)
		r.Post("/cashbox/{cashboxID}/close", a.CloseCashbox)
		r.Get("/cashbox/{cashboxID}/transactions", a.ListTransactions)
		r.Post("/cashbox/{cashboxID}/transactions", a.AddTransaction)
		r.Delete("/cashbox/{cashboxID}/transactions/{transactionID}", a.DeleteTransaction)

		r.Get("/dashboard/checkin-today", a.DashboardCheckIns)
		r.Get("/dashboard/checkout-today", a.DashboardCheckOuts)
		r.Get("/dashboard/guests", a.DashboardGuests)
		r.Get("/dashboard/daily-revenue", a.DashboardDailyRevenue)
	})

	return r
}

// RunMaintenance sweeps expired rate-limit records until ctx is done.
func (a *API) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.rateLimiter.sweep()
		}
	}
}
