package backoffice

import (
	"context"
	"net/http"

	"github.com/jmcleod/tablehand/cache"
	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/gateway"
	"github.com/jmcleod/tablehand/invalidation"
	"github.com/jmcleod/tablehand/session"
)

// Cashbox is the register drawer. Opening and closing it also updates the
// session's cashbox pointer.
type Cashbox struct{ c *core }

func currentCashboxKey() cache.Key { return cache.NewKey(invalidation.EntityCashbox) }

func cashboxKey(id string) cache.Key { return cache.NewKey(invalidation.EntityCashbox, id) }

// Current returns the open cashbox, or nil when none is open.
func (cb *Cashbox) Current(ctx context.Context) (*domain.Cashbox, error) {
	return read[*domain.Cashbox](ctx, cb.c, currentCashboxKey(), "/cashbox/current", nil)
}

func (cb *Cashbox) Get(ctx context.Context, id string) (domain.Cashbox, error) {
	return read[domain.Cashbox](ctx, cb.c, cashboxKey(id), path("cashbox", id), nil)
}

func (cb *Cashbox) Open(ctx context.Context, in domain.OpenCashboxInput) (domain.Cashbox, error) {
	box, err := write(ctx, cb.c, http.MethodPost, "/cashbox/open", in, func(box domain.Cashbox) invalidation.Outcome {
		return invalidation.NewOutcome(invalidation.OpenCashbox, invalidation.IDCashbox, box.ID)
	})
	if err != nil {
		return box, err
	}
	if cb.c.session != nil {
		cb.c.session.UpdateCashbox(&session.CashboxRef{
			ID:            box.ID,
			OpenedAt:      box.OpenedAt,
			OpeningAmount: box.OpeningAmount,
		})
	}
	return box, nil
}

// Close closes the cashbox. The closed snapshot is cached before the
// cashbox keys are invalidated, and the session forgets the cashbox.
func (cb *Cashbox) Close(ctx context.Context, id string, in domain.CloseCashboxInput) (domain.Cashbox, error) {
	resp, err := cb.c.gw.Do(ctx, http.MethodPost, path("cashbox", id, "close"), in)
	if err != nil {
		return domain.Cashbox{}, err
	}
	if cb.c.session != nil {
		defer cb.c.session.UpdateCashbox(nil)
	}
	closed, decodeErr := gateway.Decode[domain.Cashbox](resp)
	if decodeErr == nil {
		if err := cb.c.cache.WriteJSON(cashboxKey(id), closed); err != nil {
			cb.c.logger.Warn("caching closed cashbox", "cashbox", id, "error", err)
		}
		cb.c.cache.Write(currentCashboxKey(), []byte("null"))
	}
	cb.c.apply(invalidation.NewOutcome(invalidation.CloseCashbox, invalidation.IDCashbox, id))
	return closed, decodeErr
}

// Transactions are manual cashbox movements.
type Transactions struct{ c *core }

func (t *Transactions) List(ctx context.Context, cashboxID string) ([]domain.CashboxTransaction, error) {
	return read[[]domain.CashboxTransaction](ctx, t.c,
		cache.NewKey(invalidation.EntityCashboxTransactions, cashboxID, "all"),
		path("cashbox", cashboxID, "transactions"), nil)
}

// Save records a transaction in the given cashbox.
func (t *Transactions) Save(ctx context.Context, cashboxID string, tx domain.CashboxTransaction) (domain.CashboxTransaction, error) {
	return write(ctx, t.c, http.MethodPost, path("cashbox", cashboxID, "transactions"), tx,
		outcome[domain.CashboxTransaction](invalidation.SaveCashboxTransaction, invalidation.IDCashbox, cashboxID))
}

func (t *Transactions) Delete(ctx context.Context, cashboxID, id string) error {
	_, err := write(ctx, t.c, http.MethodDelete, path("cashbox", cashboxID, "transactions", id), nil,
		outcome[none](invalidation.DeleteCashboxTransaction, invalidation.IDCashbox, cashboxID))
	return err
}
