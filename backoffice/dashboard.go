package backoffice

import (
	"context"
	"net/url"

	"github.com/jmcleod/tablehand/cache"
	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/invalidation"
)

// Dashboard holds the read-only aggregates. An empty date means today.
type Dashboard struct{ c *core }

func (d *Dashboard) date(s string) string {
	if s == "" {
		return d.c.today()
	}
	return s
}

func (d *Dashboard) CheckInToday(ctx context.Context, date string) ([]domain.Reservation, error) {
	date = d.date(date)
	return read[[]domain.Reservation](ctx, d.c, cache.NewKey(invalidation.EntityDashboardCheckInToday, date),
		"/dashboard/checkin-today", url.Values{"date": {date}})
}

func (d *Dashboard) CheckOutToday(ctx context.Context, date string) ([]domain.Reservation, error) {
	date = d.date(date)
	return read[[]domain.Reservation](ctx, d.c, cache.NewKey(invalidation.EntityDashboardCheckOutToday, date),
		"/dashboard/checkout-today", url.Values{"date": {date}})
}

func (d *Dashboard) Guests(ctx context.Context) (domain.GuestCount, error) {
	return read[domain.GuestCount](ctx, d.c, cache.NewKey(invalidation.EntityDashboardGuests), "/dashboard/guests", nil)
}

// DailyRevenue returns revenue per day between from and to inclusive.
func (d *Dashboard) DailyRevenue(ctx context.Context, from, to string) ([]domain.RevenuePoint, error) {
	to = d.date(to)
	q := url.Values{"to": {to}}
	setIf(q, "from", from)
	return read[[]domain.RevenuePoint](ctx, d.c, cache.NewKey(invalidation.EntityDashboardDailyRevenue, from, to),
		"/dashboard/daily-revenue", q)
}
