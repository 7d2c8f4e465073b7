package api_test

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/tablehand/api"
	"github.com/jmcleod/tablehand/backoffice"
	"github.com/jmcleod/tablehand/cache"
	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/gateway"
	"github.com/jmcleod/tablehand/internal/clock"
	"github.com/jmcleod/tablehand/internal/util"
	"github.com/jmcleod/tablehand/invalidation"
	"github.com/jmcleod/tablehand/session"
)

var (
	epoch     = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	fastHash  = util.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1}
	testKey   = []byte("0123456789abcdef0123456789abcdef")
	quietLogs = slog.New(slog.NewTextHandler(io.Discard, nil))
)

type stack struct {
	clock   *clock.FakeClock
	data    *api.Data
	session *session.Store
	client  *backoffice.Client
	base    string
}

// newStack serves a seeded backend and wires the real client layer to it.
func newStack(t *testing.T) *stack {
	t.Helper()
	clk := clock.Fake(epoch)
	data := api.NewData(clk, fastHash)
	require.NoError(t, api.Seed(data))
	require.NoError(t, data.AddUser("ana", "correct horse", "Ana Costa", "cashier"))

	a, err := api.New(data, testKey, api.WithClock(clk), api.WithLogger(quietLogs))
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	base := srv.URL + "/api/v1"
	httpClient := gateway.NewHTTPClient(5 * time.Second)
	auth, err := gateway.NewAuthenticator(base, httpClient)
	require.NoError(t, err)
	store := cache.New()
	sess := session.New(auth, session.WithCache(store), session.WithLogger(quietLogs))
	gw, err := gateway.New(gateway.Config{BaseURL: base, Session: sess, HTTPClient: httpClient, Logger: quietLogs})
	require.NoError(t, err)

	_, err = sess.Login(t.Context(), session.Credentials{Username: "ana", Password: "correct horse"})
	require.NoError(t, err)
	return &stack{
		clock:   clk,
		data:    data,
		session: sess,
		client:  backoffice.New(gw, store, invalidation.Default(store), sess, backoffice.WithLogger(quietLogs), backoffice.WithClock(clk)),
		base:    base,
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newStack(t)
	auth, err := gateway.NewAuthenticator(s.base, nil)
	require.NoError(t, err)
	fresh := session.New(auth)
	_, err = fresh.Login(t.Context(), session.Credentials{Username: "ana", Password: "wrong"})
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestServiceFlow(t *testing.T) {
	s := newStack(t)
	ctx := t.Context()

	box, err := s.client.Cashbox.Open(ctx, domain.OpenCashboxInput{OpeningAmount: 100})
	require.NoError(t, err)
	sess, _ := s.session.Current()
	require.NotNil(t, sess.Cashbox)
	assert.Equal(t, box.ID, sess.Cashbox.ID)

	table, err := s.client.Tables.Open(ctx, "T3", domain.OpenTableInput{Guests: 2})
	require.NoError(t, err)
	require.NotEmpty(t, table.SaleID)

	products, err := s.client.Products.List(ctx, backoffice.ProductFilter{CategoryID: "drinks"})
	require.NoError(t, err)
	require.NotEmpty(t, products)
	espresso := products[0]
	for _, p := range products {
		if p.Name == "Espresso" {
			espresso = p
		}
	}
	_, err = s.client.Sales.AddItem(ctx, table.SaleID, domain.SaleItemInput{ProductID: espresso.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = s.client.Tables.Close(ctx, "T3")
	require.Error(t, err)
	assert.True(t, gateway.IsValidation(err))
	assert.Equal(t, "table Table 3 has an unpaid sale", gateway.Message(err))

	pay, err := s.client.Payments.Register(ctx, domain.PaymentInput{SaleID: table.SaleID, Amount: 2 * espresso.Price, Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, box.ID, pay.CashboxID)

	table, err = s.client.Tables.Close(ctx, "T3")
	require.NoError(t, err)
	assert.Equal(t, domain.TableFree, table.Status)

	txs, err := s.client.Transactions.List(ctx, box.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionIncome, txs[0].Type)

	closed, err := s.client.Cashbox.Close(ctx, box.ID, domain.CloseCashboxInput{ClosingAmount: 105})
	require.NoError(t, err)
	assert.Equal(t, domain.CashboxClosed, closed.Status)
	assert.InDelta(t, 100+2*espresso.Price, closed.Balance, 0.001)

	current, err := s.client.Cashbox.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
	sess, _ = s.session.Current()
	assert.Nil(t, sess.Cashbox)
}

func TestExpiredAccessTokenIsRenewedTransparently(t *testing.T) {
	s := newStack(t)
	ctx := t.Context()

	before, err := s.session.Credential()
	require.NoError(t, err)

	s.clock.Advance(20 * time.Minute)
	tables, err := s.client.Tables.List(ctx, backoffice.TableFilter{Area: "terrace"})
	require.NoError(t, err)
	assert.Len(t, tables, 4)

	after, err := s.session.Credential()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.True(t, s.session.Authenticated())
}

func TestExpiredRefreshTokenEndsSession(t *testing.T) {
	s := newStack(t)
	var reasons []session.Reason
	s.session.OnTeardown(func(r session.Reason) { reasons = append(reasons, r) })

	s.clock.Advance(8 * 24 * time.Hour)
	_, err := s.client.Employees.List(t.Context(), backoffice.EmployeeFilter{})
	require.ErrorIs(t, err, session.ErrRefreshDenied)
	assert.Equal(t, gateway.KindRefreshDenied, gateway.KindOf(err))
	assert.Equal(t, []session.Reason{session.ReasonRefreshDenied}, reasons)
	assert.False(t, s.session.Authenticated())
}

func TestReservationLifecycle(t *testing.T) {
	s := newStack(t)
	ctx := t.Context()

	created, err := s.client.Reservations.CreateBatch(ctx, []domain.ReservationInput{
		{GuestName: "Bruno", Room: "102", Guests: 1, CheckIn: "2026-03-15", CheckOut: "2026-03-17"},
		{GuestName: "Carla", Room: "103", Guests: 3, CheckIn: "2026-03-16", CheckOut: "2026-03-20"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	_, err = s.client.Reservations.CreateBatch(ctx, []domain.ReservationInput{
		{GuestName: "Dario", Room: "104", Guests: 1, CheckIn: "2026-03-15", CheckOut: "2026-03-17"},
		{GuestName: "", Room: "105", Guests: 1, CheckIn: "2026-03-15", CheckOut: "2026-03-17"},
	})
	require.Error(t, err)
	assert.True(t, gateway.IsValidation(err))

	page, err := s.client.Reservations.List(ctx, backoffice.ReservationFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	require.NotNil(t, page.Pagination)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	arrivals, err := s.client.Dashboard.CheckInToday(ctx, "")
	require.NoError(t, err)
	require.Len(t, arrivals, 1)
	guest := arrivals[0]

	_, err = s.client.Reservations.CheckIn(ctx, guest.ID)
	require.NoError(t, err)

	pd, err := s.client.Reservations.SavePerDiem(ctx, guest.ID, domain.PerDiem{Date: "2026-03-14", Amount: 40})
	require.NoError(t, err)
	pd.Amount = 45
	_, err = s.client.Reservations.SavePerDiem(ctx, guest.ID, pd)
	require.NoError(t, err)
	perDiems, err := s.client.Reservations.PerDiems(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, perDiems, 1)
	assert.Equal(t, 45.0, perDiems[0].Amount)

	in, err := s.client.Accommodations.List(ctx)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "101", in[0].Room)

	guests, err := s.client.Dashboard.Guests(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.GuestCount{InHouse: 2, Rooms: 1}, guests)

	_, err = s.client.Reservations.CheckOut(ctx, guest.ID)
	require.NoError(t, err)
	in, err = s.client.Accommodations.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, in)
}

func TestDailyRevenueDefaultsToLastWeek(t *testing.T) {
	s := newStack(t)
	points, err := s.client.Dashboard.DailyRevenue(t.Context(), "", "")
	require.NoError(t, err)
	require.Len(t, points, 7)
	assert.Equal(t, "2026-03-14", points[6].Date)
	assert.Equal(t, "2026-03-08", points[0].Date)
}

func TestNotFound(t *testing.T) {
	s := newStack(t)
	_, err := s.client.Sales.Get(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, gateway.IsNotFound(err))
}
