package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/tablehand/domain"
)

// ListReservations handles GET /reservations. It is the one paginated list.
func (a *API) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	all := a.data.ListReservations(q.Get("status"), q.Get("from"), q.Get("to"))
	page, pageSize := parsePagination(r)
	start, end, meta := paginateSlice(len(all), page, pageSize)
	writePage(w, nonNil(all[start:end]), meta)
}

// GetReservation handles GET /reservations/{reservationID}.
func (a *API) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := a.data.GetReservation(chi.URLParam(r, "reservationID"))
	reply(w, http.StatusOK, res, err)
}

// CreateReservation handles POST /reservations.
func (a *API) CreateReservation(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.ReservationInput](w, r)
	if !ok {
		return
	}
	res, err := a.data.CreateReservation(in)
	reply(w, http.StatusCreated, res, err)
}

// CreateReservations handles POST /reservations/batch. Either every
// reservation is created or none is.
func (a *API) CreateReservations(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[[]domain.ReservationInput](w, r)
	if !ok {
		return
	}
	if len(in) == 0 {
		writeError(w, http.StatusBadRequest, "at least one reservation is required")
		return
	}
	res, err := a.data.CreateReservations(in)
	reply(w, http.StatusCreated, res, err)
}

// UpdateReservation handles PUT /reservations/{reservationID}.
func (a *API) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.ReservationInput](w, r)
	if !ok {
		return
	}
	res, err := a.data.UpdateReservation(chi.URLParam(r, "reservationID"), in)
	reply(w, http.StatusOK, res, err)
}

// DeleteReservation handles DELETE /reservations/{reservationID}.
func (a *API) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	if err := a.data.DeleteReservation(chi.URLParam(r, "reservationID")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckIn handles POST /reservations/{reservationID}/check-in.
func (a *API) CheckIn(w http.ResponseWriter, r *http.Request) {
	res, err := a.data.CheckIn(chi.URLParam(r, "reservationID"))
	if err == nil {
		a.logUser(AuditCheckIn, r, slog.String("reservation_id", res.ID))
	}
	reply(w, http.StatusOK, res, err)
}

// CheckOut handles POST /reservations/{reservationID}/check-out.
func (a *API) CheckOut(w http.ResponseWriter, r *http.Request) {
	res, err := a.data.CheckOut(chi.URLParam(r, "reservationID"))
	if err == nil {
		a.logUser(AuditCheckOut, r, slog.String("reservation_id", res.ID))
	}
	reply(w, http.StatusOK, res, err)
}

// mountSub registers list, create, replace and delete routes for one
// per-reservation list under prefix.
func mountSub[T any](r chi.Router, prefix string, a *API, sub subresource[T]) {
	r.Get(prefix, func(w http.ResponseWriter, r *http.Request) {
		items, err := sub.list(a.data, chi.URLParam(r, "reservationID"))
		reply(w, http.StatusOK, nonNil(items), err)
	})
	r.Post(prefix, func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeJSON[T](w, r)
		if !ok {
			return
		}
		item, err := sub.save(a.data, chi.URLParam(r, "reservationID"), "", in)
		reply(w, http.StatusCreated, item, err)
	})
	r.Put(prefix+"/{itemID}", func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeJSON[T](w, r)
		if !ok {
			return
		}
		item, err := sub.save(a.data, chi.URLParam(r, "reservationID"), chi.URLParam(r, "itemID"), in)
		reply(w, http.StatusOK, item, err)
	})
	r.Delete(prefix+"/{itemID}", func(w http.ResponseWriter, r *http.Request) {
		if err := sub.remove(a.data, chi.URLParam(r, "reservationID"), chi.URLParam(r, "itemID")); err != nil {
			mapError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// ListAccommodations handles GET /accommodations.
func (a *API) ListAccommodations(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, a.data.Accommodations())
}

// DashboardCheckIns handles GET /dashboard/checkin-today.
func (a *API) DashboardCheckIns(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, nonNil(a.data.ArrivalsOn(a.dateParam(r, "date"))))
}

// DashboardCheckOuts handles GET /dashboard/checkout-today.
func (a *API) DashboardCheckOuts(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, nonNil(a.data.DeparturesOn(a.dateParam(r, "date"))))
}

// DashboardGuests handles GET /dashboard/guests.
func (a *API) DashboardGuests(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, a.data.Guests())
}

// DashboardDailyRevenue handles GET /dashboard/daily-revenue.
func (a *API) DashboardDailyRevenue(w http.ResponseWriter, r *http.Request) {
	points, err := a.data.DailyRevenue(r.URL.Query().Get("from"), a.dateParam(r, "to"))
	reply(w, http.StatusOK, nonNil(points), err)
}

// dateParam returns the named query date, defaulting to today.
func (a *API) dateParam(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return a.data.today()
}
