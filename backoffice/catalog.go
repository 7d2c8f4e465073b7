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

// ProductFilter narrows the product list.
type ProductFilter struct {
	CategoryID string
	ActiveOnly bool
}

func (f ProductFilter) key() cache.Key {
	return cache.NewKey(invalidation.EntityProducts, "list", f.CategoryID, strconv.FormatBool(f.ActiveOnly))
}

func (f ProductFilter) query() url.Values {
	q := url.Values{}
	setIf(q, "category_id", f.CategoryID)
	if f.ActiveOnly {
		q.Set("active", "true")
	}
	return q
}

// Products is the sellable catalog.
type Products struct{ c *core }

func productOutcome(kind invalidation.Mutation) func(domain.Product) invalidation.Outcome {
	return func(p domain.Product) invalidation.Outcome {
		return invalidation.NewOutcome(kind, invalidation.IDProduct, p.ID)
	}
}

func (p *Products) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	return read[[]domain.Product](ctx, p.c, f.key(), "/products", f.query())
}

func (p *Products) Categories(ctx context.Context) ([]domain.ProductCategory, error) {
	return read[[]domain.ProductCategory](ctx, p.c, cache.NewKey(invalidation.EntityProductCategories),
		"/product-categories", nil)
}

func (p *Products) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	return write(ctx, p.c, http.MethodPost, "/products", in, productOutcome(invalidation.CreateProduct))
}

func (p *Products) Update(ctx context.Context, id string, in domain.ProductInput) (domain.Product, error) {
	return write(ctx, p.c, http.MethodPut, path("products", id), in, productOutcome(invalidation.UpdateProduct))
}

func (p *Products) Delete(ctx context.Context, id string) error {
	_, err := write(ctx, p.c, http.MethodDelete, path("products", id), nil,
		outcome[none](invalidation.DeleteProduct, invalidation.IDProduct, id))
	return err
}

// EmployeeFilter narrows the employee list.
type EmployeeFilter struct {
	Role string
}

func (f EmployeeFilter) key() cache.Key {
	return cache.NewKey(invalidation.EntityEmployees, "list", f.Role)
}

// Employees is staff management.
type Employees struct{ c *core }

func (e *Employees) List(ctx context.Context, f EmployeeFilter) ([]domain.Employee, error) {
	q := url.Values{}
	setIf(q, "role", f.Role)
	return read[[]domain.Employee](ctx, e.c, f.key(), "/employees", q)
}

func (e *Employees) Create(ctx context.Context, in domain.EmployeeInput) (domain.Employee, error) {
	return write(ctx, e.c, http.MethodPost, "/employees", in, func(emp domain.Employee) invalidation.Outcome {
		return invalidation.NewOutcome(invalidation.CreateEmployee, invalidation.IDEmployee, emp.ID)
	})
}

func (e *Employees) Update(ctx context.Context, id string, in domain.EmployeeInput) (domain.Employee, error) {
	return write(ctx, e.c, http.MethodPut, path("employees", id), in,
		outcome[domain.Employee](invalidation.UpdateEmployee, invalidation.IDEmployee, id))
}

func (e *Employees) Delete(ctx context.Context, id string) error {
	_, err := write(ctx, e.c, http.MethodDelete, path("employees", id), nil,
		outcome[none](invalidation.DeleteEmployee, invalidation.IDEmployee, id))
	return err
}
