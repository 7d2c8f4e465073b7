package backoffice

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jmcleod/tablehand/cache"
	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/invalidation"
)

// PaymentFilter narrows the payment list.
type PaymentFilter struct {
	SaleID string
	Date   string
}

func (f PaymentFilter) key() cache.Key {
	return cache.NewKey(invalidation.EntityPayments, "list", f.SaleID, f.Date)
}

func (f PaymentFilter) query() url.Values {
	q := url.Values{}
	setIf(q, "sale_id", f.SaleID)
	setIf(q, "date", f.Date)
	return q
}

// Payments are sale payments. A payment also moves the open cashbox.
type Payments struct{ c *core }

func (p *Payments) List(ctx context.Context, f PaymentFilter) ([]domain.Payment, error) {
	return read[[]domain.Payment](ctx, p.c, f.key(), "/payments", f.query())
}

// Register records a payment against a sale. The cashbox it lands in comes
// from the reply.
func (p *Payments) Register(ctx context.Context, in domain.PaymentInput) (domain.Payment, error) {
	return write(ctx, p.c, http.MethodPost, "/payments", in, func(pay domain.Payment) invalidation.Outcome {
		return invalidation.NewOutcome(invalidation.RegisterPayment,
			invalidation.IDSale, in.SaleID,
			invalidation.IDCashbox, pay.CashboxID)
	})
}
