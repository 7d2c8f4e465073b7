package backoffice

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jmcleod/tablehand/cache"
	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/invalidation"
)

// ReservationFilter narrows and pages the reservation list. From and To are
// check-in dates in domain.DateLayout.
type ReservationFilter struct {
	Status   string
	From     string
	To       string
	Page     int
	PageSize int
}

func (f ReservationFilter) key() cache.Key {
	return cache.NewKey(invalidation.EntityReservations, "list",
		f.Status, f.From, f.To, strconv.Itoa(f.Page), strconv.Itoa(f.PageSize))
}

func (f ReservationFilter) query() url.Values {
	q := url.Values{}
	setIf(q, "status", f.Status)
	setIf(q, "from", f.From)
	setIf(q, "to", f.To)
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return q
}

// Reservations covers lodging reservations and their per-diems,
// consumptions and payments.
type Reservations struct{ c *core }

func (r *Reservations) List(ctx context.Context, f ReservationFilter) (Page[domain.Reservation], error) {
	return readPage[domain.Reservation](ctx, r.c, f.key(), "/reservations", f.query())
}

func (r *Reservations) Get(ctx context.Context, id string) (domain.Reservation, error) {
	return read[domain.Reservation](ctx, r.c, cache.NewKey(invalidation.EntityReservations, id),
		path("reservations", id), nil)
}

func (r *Reservations) Create(ctx context.Context, in domain.ReservationInput) (domain.Reservation, error) {
	return write(ctx, r.c, http.MethodPost, "/reservations", in,
		func(res domain.Reservation) invalidation.Outcome {
			return invalidation.NewOutcome(invalidation.CreateReservation, invalidation.IDReservation, res.ID)
		})
}

// CreateBatch creates several reservations in one call.
func (r *Reservations) CreateBatch(ctx context.Context, in []domain.ReservationInput) ([]domain.Reservation, error) {
	return write(ctx, r.c, http.MethodPost, "/reservations/batch", in,
		outcome[[]domain.Reservation](invalidation.BatchCreateReservations))
}

func (r *Reservations) Update(ctx context.Context, id string, in domain.ReservationInput) (domain.Reservation, error) {
	return write(ctx, r.c, http.MethodPut, path("reservations", id), in,
		outcome[domain.Reservation](invalidation.UpdateReservation, invalidation.IDReservation, id))
}

func (r *Reservations) Delete(ctx context.Context, id string) error {
	_, err := write(ctx, r.c, http.MethodDelete, path("reservations", id), nil,
		outcome[none](invalidation.DeleteReservation, invalidation.IDReservation, id))
	return err
}

func (r *Reservations) CheckIn(ctx context.Context, id string) (domain.Reservation, error) {
	return write(ctx, r.c, http.MethodPost, path("reservations", id, "check-in"), nil,
		outcome[domain.Reservation](invalidation.CheckIn, invalidation.IDReservation, id))
}

func (r *Reservations) CheckOut(ctx context.Context, id string) (domain.Reservation, error) {
	return write(ctx, r.c, http.MethodPost, path("reservations", id, "check-out"), nil,
		outcome[domain.Reservation](invalidation.CheckOut, invalidation.IDReservation, id))
}

func listSub[T any](ctx context.Context, c *core, reservationID, sub string) ([]T, error) {
	return read[[]T](ctx, c, cache.NewKey(invalidation.EntityReservations, reservationID, sub),
		path("reservations", reservationID, sub), nil)
}

// saveSub creates item when itemID is empty and replaces it otherwise.
func saveSub[T any](ctx context.Context, c *core, reservationID, sub, itemID string, item T, kind invalidation.Mutation) (T, error) {
	method, p := http.MethodPost, path("reservations", reservationID, sub)
	if itemID != "" {
		method, p = http.MethodPut, path("reservations", reservationID, sub, itemID)
	}
	return write(ctx, c, method, p, item, outcome[T](kind, invalidation.IDReservation, reservationID))
}

func deleteSub(ctx context.Context, c *core, reservationID, sub, itemID string, kind invalidation.Mutation) error {
	_, err := write(ctx, c, http.MethodDelete, path("reservations", reservationID, sub, itemID), nil,
		outcome[none](kind, invalidation.IDReservation, reservationID))
	return err
}

func (r *Reservations) PerDiems(ctx context.Context, reservationID string) ([]domain.PerDiem, error) {
	return listSub[domain.PerDiem](ctx, r.c, reservationID, invalidation.SubPerDiems)
}

func (r *Reservations) SavePerDiem(ctx context.Context, reservationID string, p domain.PerDiem) (domain.PerDiem, error) {
	return saveSub(ctx, r.c, reservationID, invalidation.SubPerDiems, p.ID, p, invalidation.SavePerDiem)
}

func (r *Reservations) DeletePerDiem(ctx context.Context, reservationID, id string) error {
	return deleteSub(ctx, r.c, reservationID, invalidation.SubPerDiems, id, invalidation.DeletePerDiem)
}

func (r *Reservations) Consumptions(ctx context.Context, reservationID string) ([]domain.Consumption, error) {
	return listSub[domain.Consumption](ctx, r.c, reservationID, invalidation.SubConsumptions)
}

func (r *Reservations) SaveConsumption(ctx context.Context, reservationID string, cons domain.Consumption) (domain.Consumption, error) {
	return saveSub(ctx, r.c, reservationID, invalidation.SubConsumptions, cons.ID, cons, invalidation.SaveConsumption)
}

func (r *Reservations) DeleteConsumption(ctx context.Context, reservationID, id string) error {
	return deleteSub(ctx, r.c, reservationID, invalidation.SubConsumptions, id, invalidation.DeleteConsumption)
}

func (r *Reservations) Payments(ctx context.Context, reservationID string) ([]domain.ReservationPayment, error) {
	return listSub[domain.ReservationPayment](ctx, r.c, reservationID, invalidation.SubPayments)
}

func (r *Reservations) SavePayment(ctx context.Context, reservationID string, p domain.ReservationPayment) (domain.ReservationPayment, error) {
	return saveSub(ctx, r.c, reservationID, invalidation.SubPayments, p.ID, p, invalidation.SaveReservationPayment)
}

func (r *Reservations) DeletePayment(ctx context.Context, reservationID, id string) error {
	return deleteSub(ctx, r.c, reservationID, invalidation.SubPayments, id, invalidation.DeleteReservationPayment)
}

// Accommodations lists the rooms currently occupied.
type Accommodations struct{ c *core }

func (a *Accommodations) List(ctx context.Context) ([]domain.Accommodation, error) {
	return read[[]domain.Accommodation](ctx, a.c, cache.NewKey(invalidation.EntityAccommodations), "/accommodations", nil)
}
