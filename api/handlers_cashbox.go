package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/tablehand/domain"
)

// CurrentCashbox handles GET /cashbox/current. The data is null when no
// cashbox is open.
func (a *API) CurrentCashbox(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, a.data.CurrentCashbox())
}

// GetCashbox handles GET /cashbox/{cashboxID}.
func (a *API) GetCashbox(w http.ResponseWriter, r *http.Request) {
	cb, err := a.data.GetCashbox(chi.URLParam(r, "cashboxID"))
	reply(w, http.StatusOK, cb, err)
}

// OpenCashbox handles POST /cashbox/open.
func (a *API) OpenCashbox(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.OpenCashboxInput](w, r)
	if !ok {
		return
	}
	cb, err := a.data.OpenCashbox(principalFromContext(r.Context()).UserID, in.OpeningAmount)
	if err == nil {
		a.logUser(AuditCashboxOpened, r, slog.String("cashbox_id", cb.ID))
	}
	reply(w, http.StatusCreated, cb, err)
}

// CloseCashbox handles POST /cashbox/{cashboxID}/close.
func (a *API) CloseCashbox(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.CloseCashboxInput](w, r)
	if !ok {
		return
	}
	cb, err := a.data.CloseCashbox(chi.URLParam(r, "cashboxID"), in.ClosingAmount)
	if err == nil {
		a.logUser(AuditCashboxClosed, r,
			slog.String("cashbox_id", cb.ID),
			slog.Float64("balance", cb.Balance))
	}
	reply(w, http.StatusOK, cb, err)
}

// ListTransactions handles GET /cashbox/{cashboxID}/transactions.
func (a *API) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := a.data.Transactions(chi.URLParam(r, "cashboxID"))
	reply(w, http.StatusOK, nonNil(txs), err)
}

// AddTransaction handles POST /cashbox/{cashboxID}/transactions.
func (a *API) AddTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.CashboxTransaction](w, r)
	if !ok {
		return
	}
	tx, err := a.data.AddTransaction(chi.URLParam(r, "cashboxID"), in)
	reply(w, http.StatusCreated, tx, err)
}

// DeleteTransaction handles DELETE /cashbox/{cashboxID}/transactions/{transactionID}.
func (a *API) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := a.data.DeleteTransaction(chi.URLParam(r, "cashboxID"), chi.URLParam(r, "transactionID")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Catalog

// ListProducts handles GET /products.
func (a *API) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeData(w, http.StatusOK, nonNil(a.data.ListProducts(q.Get("category_id"), q.Get("active") == "true")))
}

// ListCategories handles GET /product-categories.
func (a *API) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, nonNil(a.data.Categories()))
}

// CreateProduct handles POST /products.
func (a *API) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.ProductInput](w, r)
	if !ok {
		return
	}
	p, err := a.data.CreateProduct(in)
	reply(w, http.StatusCreated, p, err)
}

// UpdateProduct handles PUT /products/{productID}.
func (a *API) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.ProductInput](w, r)
	if !ok {
		return
	}
	p, err := a.data.UpdateProduct(chi.URLParam(r, "productID"), in)
	reply(w, http.StatusOK, p, err)
}

// DeleteProduct handles DELETE /products/{productID}.
func (a *API) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.data.DeleteProduct(chi.URLParam(r, "productID")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEmployees handles GET /employees.
func (a *API) ListEmployees(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, nonNil(a.data.ListEmployees(r.URL.Query().Get("role"))))
}

// CreateEmployee handles POST /employees.
func (a *API) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.EmployeeInput](w, r)
	if !ok {
		return
	}
	e, err := a.data.CreateEmployee(in)
	reply(w, http.StatusCreated, e, err)
}

// UpdateEmployee handles PUT /employees/{employeeID}.
func (a *API) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[domain.EmployeeInput](w, r)
	if !ok {
		return
	}
	e, err := a.data.UpdateEmployee(chi.URLParam(r, "employeeID"), in)
	reply(w, http.StatusOK, e, err)
}

// DeleteEmployee handles DELETE /employees/{employeeID}.
func (a *API) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := a.data.DeleteEmployee(chi.URLParam(r, "employeeID")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
