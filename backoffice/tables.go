package backoffice

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jmcleod/tablehand/cache"
	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/invalidation"
)

// TableFilter narrows the table list. Empty fields match everything.
type TableFilter struct {
	Area   string
	Status string
}

func (f TableFilter) key() cache.Key {
	return cache.NewKey(invalidation.EntityTables, "list", f.Area, f.Status)
}

func (f TableFilter) query() url.Values {
	q := url.Values{}
	setIf(q, "area", f.Area)
	setIf(q, "status", f.Status)
	return q
}

// Tables is the dining-room floor.
type Tables struct{ c *core }

func (t *Tables) List(ctx context.Context, f TableFilter) ([]domain.Table, error) {
	return read[[]domain.Table](ctx, t.c, f.key(), "/tables", f.query())
}

// Open seats guests at a free table.
func (t *Tables) Open(ctx context.Context, id string, in domain.OpenTableInput) (domain.Table, error) {
	return write(ctx, t.c, http.MethodPatch, path("tables", id, "open"), in,
		outcome[domain.Table](invalidation.OpenTable, invalidation.IDTable, id))
}

// Close frees a table.
func (t *Tables) Close(ctx context.Context, id string) (domain.Table, error) {
	return write(ctx, t.c, http.MethodPatch, path("tables", id, "close"), nil,
		outcome[domain.Table](invalidation.CloseTable, invalidation.IDTable, id))
}

func (t *Tables) Reserve(ctx context.Context, id string, in domain.ReserveTableInput) (domain.Table, error) {
	return write(ctx, t.c, http.MethodPatch, path("tables", id, "reserve"), in,
		outcome[domain.Table](invalidation.ReserveTable, invalidation.IDTable, id))
}
