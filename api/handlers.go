package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/tablehand/domain"
)

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// reply writes v with status, or maps err.
func reply[T any](w http.ResponseWriter, status int, v T, err error) {
	if err != nil {
		mapError(w, err)
		return
	}
	writeData(w, status, v)
}

func (a *API) logUser(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	a.audit.logUser(event, r, principalFromContext(r.Context()).UserID, attrs...)
}

// Tables

// ListTables handles GET /tables.
func (a *API) ListTables(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeData(w, http.StatusOK, nonNil(a.data.ListTables(q.Get("area"), q.Get("status"))))
}

// OpenTable handles PATCH /tables/{tableID}/open.
func (a *API) OpenTable(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.OpenTableInput](w, r)
	if !ok {
		return
	}
	t, err := a.data.OpenTable(chi.URLParam(r, "tableID"), in.Guests)
	if err == nil {
		a.logUser(AuditTableOpened, r, slog.String("table_id", t.ID), slog.String("sale_id", t.SaleID))
	}
	reply(w, http.StatusOK, t, err)
}

// CloseTable handles PATCH /tables/{tableID}/close.
func (a *API) CloseTable(w http.ResponseWriter, r *http.Request) {
	t, err := a.data.CloseTable(chi.URLParam(r, "tableID"))
	if err == nil {
		a.logUser(AuditTableClosed, r, slog.String("table_id", t.ID))
	}
	reply(w, http.StatusOK, t, err)
}

// ReserveTable handles PATCH /tables/{tableID}/reserve.
func (a *API) ReserveTable(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.ReserveTableInput](w, r)
	if !ok {
		return
	}
	t, err := a.data.ReserveTable(chi.URLParam(r, "tableID"), in.Name)
	reply(w, http.StatusOK, t, err)
}

// Sales

// ListSales handles GET /sales.
func (a *API) ListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeData(w, http.StatusOK, nonNil(a.data.ListSales(q.Get("status"), q.Get("table_id"), q.Get("date"))))
}

// GetSale handles GET /sales/{saleID}.
func (a *API) GetSale(w http.ResponseWriter, r *http.Request) {
	s, err := a.data.GetSale(chi.URLParam(r, "saleID"))
	reply(w, http.StatusOK, s, err)
}

// CreateSale handles POST /sales.
func (a *API) CreateSale(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.SaleInput](w, r)
	if !ok {
		return
	}
	s, err := a.data.CreateSale(in)
	reply(w, http.StatusCreated, s, err)
}

// UpdateSale handles PUT /sales/{saleID}.
func (a *API) UpdateSale(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.SaleInput](w, r)
	if !ok {
		return
	}
	s, err := a.data.UpdateSale(chi.URLParam(r, "saleID"), in)
	reply(w, http.StatusOK, s, err)
}

// CloseSale handles PATCH /sales/{saleID}/close.
func (a *API) CloseSale(w http.ResponseWriter, r *http.Request) {
	s, err := a.data.CloseSale(chi.URLParam(r, "saleID"))
	if err == nil {
		a.logUser(AuditSaleClosed, r, slog.String("sale_id", s.ID))
	}
	reply(w, http.StatusOK, s, err)
}

// CancelSale handles PATCH /sales/{saleID}/cancel.
func (a *API) CancelSale(w http.ResponseWriter, r *http.Request) {
	s, err := a.data.CancelSale(chi.URLParam(r, "saleID"))
	if err == nil {
		a.logUser(AuditSaleCancelled, r, slog.String("sale_id", s.ID))
	}
	reply(w, http.StatusOK, s, err)
}

// ListSaleItems handles GET /sales/{saleID}/items.
func (a *API) ListSaleItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.data.SaleItems(chi.URLParam(r, "saleID"))
	reply(w, http.StatusOK, nonNil(items), err)
}

// AddSaleItem handles POST /sales/{saleID}/items.
func (a *API) AddSaleItem(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.SaleItemInput](w, r)
	if !ok {
		return
	}
	item, err := a.data.AddSaleItem(chi.URLParam(r, "saleID"), in)
	reply(w, http.StatusCreated, item, err)
}

// UpdateSaleItem handles PUT /sales/{saleID}/items/{itemID}.
func (a *API) UpdateSaleItem(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.SaleItemInput](w, r)
	if !ok {
		return
	}
	item, err := a.data.UpdateSaleItem(chi.URLParam(r, "saleID"), chi.URLParam(r, "itemID"), in)
	reply(w, http.StatusOK, item, err)
}

// RemoveSaleItem handles DELETE /sales/{saleID}/items/{itemID}.
func (a *API) RemoveSaleItem(w http.ResponseWriter, r *http.Request) {
	if err := a.data.RemoveSaleItem(chi.URLParam(r, "saleID"), chi.URLParam(r, "itemID")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Payments

// ListPayments handles GET /payments.
func (a *API) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeData(w, http.StatusOK, nonNil(a.data.ListPayments(q.Get("sale_id"), q.Get("date"))))
}

// RegisterPayment handles POST /payments.
func (a *API) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.PaymentInput](w, r)
	if !ok {
		return
	}
	p, err := a.data.RegisterPayment(in)
	if err == nil {
		a.logUser(AuditPaymentRecorded, r,
			slog.String("sale_id", p.SaleID),
			slog.String("cashbox_id", p.CashboxID),
			slog.Float64("amount", p.Amount))
	}
	reply(w, http.StatusCreated, p, err)
}
