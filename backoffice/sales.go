package backoffice

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jmcleod/tablehand/cache"
	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/invalidation"
)

// SaleFilter narrows the sale list.
type SaleFilter struct {
	Status  string
	TableID string
	Date    string
}

func (f SaleFilter) key() cache.Key {
	return cache.NewKey(invalidation.EntitySales, "list", f.Status, f.TableID, f.Date)
}

func (f SaleFilter) query() url.Values {
	q := url.Values{}
	setIf(q, "status", f.Status)
	setIf(q, "table_id", f.TableID)
	setIf(q, "date", f.Date)
	return q
}

// Sales covers sales and their line items.
type Sales struct{ c *core }

func saleOutcome(kind invalidation.Mutation) func(domain.Sale) invalidation.Outcome {
	return func(s domain.Sale) invalidation.Outcome {
		return invalidation.NewOutcome(kind, invalidation.IDSale, s.ID)
	}
}

func (s *Sales) List(ctx context.Context, f SaleFilter) ([]domain.Sale, error) {
	return read[[]domain.Sale](ctx, s.c, f.key(), "/sales", f.query())
}

func (s *Sales) Get(ctx context.Context, id string) (domain.Sale, error) {
	return read[domain.Sale](ctx, s.c, cache.NewKey(invalidation.EntitySales, id), path("sales", id), nil)
}

func (s *Sales) Create(ctx context.Context, in domain.SaleInput) (domain.Sale, error) {
	return write(ctx, s.c, http.MethodPost, "/sales", in, saleOutcome(invalidation.CreateSale))
}

func (s *Sales) Update(ctx context.Context, id string, in domain.SaleInput) (domain.Sale, error) {
	return write(ctx, s.c, http.MethodPut, path("sales", id), in,
		outcome[domain.Sale](invalidation.UpdateSale, invalidation.IDSale, id))
}

func (s *Sales) Close(ctx context.Context, id string) (domain.Sale, error) {
	return write(ctx, s.c, http.MethodPatch, path("sales", id, "close"), nil,
		outcome[domain.Sale](invalidation.CloseSale, invalidation.IDSale, id))
}

func (s *Sales) Cancel(ctx context.Context, id string) (domain.Sale, error) {
	return write(ctx, s.c, http.MethodPatch, path("sales", id, "cancel"), nil,
		outcome[domain.Sale](invalidation.CancelSale, invalidation.IDSale, id))
}

// Items lists the line items of a sale.
func (s *Sales) Items(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	return read[[]domain.SaleItem](ctx, s.c, cache.NewKey(invalidation.EntitySaleItems, saleID),
		path("sales", saleID, "items"), nil)
}

func (s *Sales) AddItem(ctx context.Context, saleID string, in domain.SaleItemInput) (domain.SaleItem, error) {
	return write(ctx, s.c, http.MethodPost, path("sales", saleID, "items"), in,
		outcome[domain.SaleItem](invalidation.AddSaleItem, invalidation.IDSale, saleID))
}

func (s *Sales) UpdateItem(ctx context.Context, saleID, itemID string, in domain.SaleItemInput) (domain.SaleItem, error) {
	return write(ctx, s.c, http.MethodPut, path("sales", saleID, "items", itemID), in,
		outcome[domain.SaleItem](invalidation.UpdateSaleItem, invalidation.IDSale, saleID))
}

func (s *Sales) RemoveItem(ctx context.Context, saleID, itemID string) error {
	_, err := write(ctx, s.c, http.MethodDelete, path("sales", saleID, "items", itemID), nil,
		outcome[none](invalidation.RemoveSaleItem, invalidation.IDSale, saleID))
	return err
}
