package api

import (
	"slices"
	"strings"
	"time"

	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/internal/uuid"
)

// Cashbox

func (d *Data) openCashboxLocked() *domain.Cashbox {
	for _, cb := range d.cashboxes {
		if cb.Status == domain.CashboxOpen {
			return cb
		}
	}
	return nil
}

// CurrentCashbox returns the open cashbox, or nil.
func (d *Data) CurrentCashbox() *domain.Cashbox {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb := d.openCashboxLocked(); cb != nil {
		c := *cb
		return &c
	}
	return nil
}

func (d *Data) cashbox(id string) (*domain.Cashbox, error) {
	cb, ok := d.cashboxes[id]
	if !ok {
		return nil, notFound("cashbox", id)
	}
	return cb, nil
}

func (d *Data) GetCashbox(id string) (domain.Cashbox, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, err := d.cashbox(id)
	if err != nil {
		return domain.Cashbox{}, err
	}
	return *cb, nil
}

func (d *Data) OpenCashbox(openedBy string, amount float64) (domain.Cashbox, error) {
	if amount < 0 {
		return domain.Cashbox{}, invalid("opening amount cannot be negative")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb := d.openCashboxLocked(); cb != nil {
		return domain.Cashbox{}, invalid("cashbox %s is already open", cb.ID)
	}
	cb := &domain.Cashbox{
		ID:            uuid.New(),
		Status:        domain.CashboxOpen,
		OpenedBy:      openedBy,
		OpenedAt:      d.now(),
		OpeningAmount: amount,
		Balance:       amount,
	}
	d.cashboxes[cb.ID] = cb
	return *cb, nil
}

func (d *Data) CloseCashbox(id string, closing float64) (domain.Cashbox, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, err := d.cashbox(id)
	if err != nil {
		return domain.Cashbox{}, err
	}
	if cb.Status != domain.CashboxOpen {
		return domain.Cashbox{}, invalid("cashbox is already closed")
	}
	now := d.now()
	cb.Status, cb.ClosedAt, cb.ClosingAmount = domain.CashboxClosed, &now, &closing
	return *cb, nil
}

func (d *Data) Transactions(cashboxID string) ([]domain.CashboxTransaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.cashbox(cashboxID); err != nil {
		return nil, err
	}
	return copyAll(d.transactions[cashboxID]), nil
}

func signed(tx *domain.CashboxTransaction) float64 {
	if tx.Type == domain.TransactionExpense {
		return -tx.Amount
	}
	return tx.Amount
}

func (d *Data) addTransactionLocked(cb *domain.Cashbox, tx domain.CashboxTransaction) domain.CashboxTransaction {
	tx.ID, tx.CashboxID, tx.CreatedAt = uuid.New(), cb.ID, d.now()
	d.transactions[cb.ID] = append(d.transactions[cb.ID], &tx)
	cb.Balance += signed(&tx)
	return tx
}

func (d *Data) AddTransaction(cashboxID string, tx domain.CashboxTransaction) (domain.CashboxTransaction, error) {
	if tx.Type != domain.TransactionIncome && tx.Type != domain.TransactionExpense {
		return domain.CashboxTransaction{}, invalid("type must be income or expense")
	}
	if tx.Amount <= 0 {
		return domain.CashboxTransaction{}, invalid("amount must be positive")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, err := d.cashbox(cashboxID)
	if err != nil {
		return domain.CashboxTransaction{}, err
	}
	if cb.Status != domain.CashboxOpen {
		return domain.CashboxTransaction{}, invalid("cashbox is closed")
	}
	return d.addTransactionLocked(cb, tx), nil
}

func (d *Data) DeleteTransaction(cashboxID, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, err := d.cashbox(cashboxID)
	if err != nil {
		return err
	}
	if cb.Status != domain.CashboxOpen {
		return invalid("cashbox is closed")
	}
	txs := d.transactions[cashboxID]
	i := slices.IndexFunc(txs, func(tx *domain.CashboxTransaction) bool { return tx.ID == id })
	if i < 0 {
		return notFound("transaction", id)
	}
	cb.Balance -= signed(txs[i])
	d.transactions[cashboxID] = slices.Delete(txs, i, i+1)
	return nil
}

// Payments

func (d *Data) ListPayments(saleID, date string) []domain.Payment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.DeleteFunc(copyAll(d.payments), func(p domain.Payment) bool {
		return (saleID != "" && p.SaleID != saleID) ||
			(date != "" && p.CreatedAt.Format(domain.DateLayout) != date)
	})
}

// RegisterPayment records a payment against an open sale. It lands in the
// open cashbox as an income transaction.
func (d *Data) RegisterPayment(in domain.PaymentInput) (domain.Payment, error) {
	if in.Amount <= 0 {
		return domain.Payment{}, invalid("amount must be positive")
	}
	if in.Method == "" {
		return domain.Payment{}, invalid("method is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.openSale(in.SaleID)
	if err != nil {
		return domain.Payment{}, err
	}
	cb := d.openCashboxLocked()
	if cb == nil {
		return domain.Payment{}, invalid("no cashbox is open")
	}
	if s.Paid+in.Amount > s.Total {
		return domain.Payment{}, invalid("payment exceeds the outstanding %.2f", s.Total-s.Paid)
	}
	p := &domain.Payment{
		ID:        uuid.New(),
		SaleID:    s.ID,
		CashboxID: cb.ID,
		Amount:    in.Amount,
		Method:    in.Method,
		CreatedAt: d.now(),
	}
	d.payments = append(d.payments, p)
	s.Paid += in.Amount
	d.addTransactionLocked(cb, domain.CashboxTransaction{
		Type:        domain.TransactionIncome,
		Amount:      in.Amount,
		Description: "payment for sale " + s.ID,
	})
	return *p, nil
}

// DailyRevenue sums sale payments per day from..to inclusive. Days without
// payments are reported as zero.
func (d *Data) DailyRevenue(from, to string) ([]domain.RevenuePoint, error) {
	end, err := time.Parse(domain.DateLayout, to)
	if err != nil {
		return nil, invalid("to must be YYYY-MM-DD")
	}
	start := end.AddDate(0, 0, -6)
	if from != "" {
		if start, err = time.Parse(domain.DateLayout, from); err != nil {
			return nil, invalid("from must be YYYY-MM-DD")
		}
	}
	if start.After(end) {
		return nil, invalid("from must not be after to")
	}
	if end.Sub(start) > 366*24*time.Hour {
		return nil, invalid("range is longer than a year")
	}
	byDay := map[string]float64{}
	for _, p := range d.ListPayments("", "") {
		byDay[p.CreatedAt.Format(domain.DateLayout)] += p.Amount
	}
	var out []domain.RevenuePoint
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(domain.DateLayout)
		out = append(out, domain.RevenuePoint{Date: key, Amount: byDay[key]})
	}
	return out, nil
}

// Catalog

func (d *Data) AddCategory(c domain.ProductCategory) domain.ProductCategory {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New()
	}
	d.categories[c.ID] = &c
	return c
}

func (d *Data) Categories() []domain.ProductCategory {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedValues(d.categories, func(c *domain.ProductCategory) string { return c.Name })
}

func (d *Data) ListProducts(categoryID string, activeOnly bool) []domain.Product {
	d.mu.Lock()
	defer d.mu.Unlock()
	all := sortedValues(d.products, func(p *domain.Product) string { return p.Name })
	return slices.DeleteFunc(all, func(p domain.Product) bool {
		return (categoryID != "" && p.CategoryID != categoryID) || (activeOnly && !p.Active)
	})
}

func (d *Data) checkProduct(in domain.ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name is required")
	}
	if in.Price < 0 {
		return invalid("price cannot be negative")
	}
	if _, ok := d.categories[in.CategoryID]; !ok {
		return invalid("unknown category %q", in.CategoryID)
	}
	return nil
}

func (d *Data) CreateProduct(in domain.ProductInput) (domain.Product, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkProduct(in); err != nil {
		return domain.Product{}, err
	}
	p := &domain.Product{ID: uuid.New(), Name: in.Name, CategoryID: in.CategoryID, Price: in.Price, Active: in.Active}
	d.products[p.ID] = p
	return *p, nil
}

func (d *Data) UpdateProduct(id string, in domain.ProductInput) (domain.Product, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.products[id]
	if !ok {
		return domain.Product{}, notFound("product", id)
	}
	if err := d.checkProduct(in); err != nil {
		return domain.Product{}, err
	}
	p.Name, p.CategoryID, p.Price, p.Active = in.Name, in.CategoryID, in.Price, in.Active
	return *p, nil
}

func (d *Data) DeleteProduct(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.products[id]; !ok {
		return notFound("product", id)
	}
	delete(d.products, id)
	return nil
}

// Employees

func (d *Data) ListEmployees(role string) []domain.Employee {
	d.mu.Lock()
	defer d.mu.Unlock()
	all := sortedValues(d.employees, func(e *domain.Employee) string { return e.Name })
	return slices.DeleteFunc(all, func(e domain.Employee) bool { return role != "" && e.Role != role })
}

func checkEmployee(in domain.EmployeeInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name is required")
	}
	if in.Role == "" {
		return invalid("role is required")
	}
	return nil
}

func (d *Data) CreateEmployee(in domain.EmployeeInput) (domain.Employee, error) {
	if err := checkEmployee(in); err != nil {
		return domain.Employee{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e := &domain.Employee{ID: uuid.New(), Name: in.Name, Role: in.Role, Active: in.Active}
	d.employees[e.ID] = e
	return *e, nil
}

func (d *Data) UpdateEmployee(id string, in domain.EmployeeInput) (domain.Employee, error) {
	if err := checkEmployee(in); err != nil {
		return domain.Employee{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.employees[id]
	if !ok {
		return domain.Employee{}, notFound("employee", id)
	}
	e.Name, e.Role, e.Active = in.Name, in.Role, in.Active
	return *e, nil
}

func (d *Data) DeleteEmployee(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.employees[id]; !ok {
		return notFound("employee", id)
	}
	delete(d.employees, id)
	return nil
}
