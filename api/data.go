package api

import (
	"cmp"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/internal/clock"
	"github.com/jmcleod/tablehand/internal/util"
	"github.com/jmcleod/tablehand/internal/uuid"
)

var (
	// ErrNotFound is returned for an unknown record.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when a write breaks a business rule. The
	// message is shown to the operator as is.
	ErrInvalid = errors.New("invalid request")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

type user struct {
	ID       string
	Username string
	Name     string
	Role     string
	salt     []byte
	hash     []byte
}

// Data is the in-memory state of the reference backend. It is safe for
// concurrent use.
type Data struct {
	mu     sync.Mutex
	clock  clock.Clock
	params util.Argon2idParams

	users        map[string]*user // by normalized username
	tables       map[string]*domain.Table
	sales        map[string]*domain.Sale
	items        map[string][]*domain.SaleItem // by sale
	reservations map[string]*domain.Reservation
	perDiems     map[string][]*domain.PerDiem
	consumptions map[string][]*domain.Consumption
	resPayments  map[string][]*domain.ReservationPayment
	payments     []*domain.Payment
	products     map[string]*domain.Product
	categories   map[string]*domain.ProductCategory
	employees    map[string]*domain.Employee
	cashboxes    map[string]*domain.Cashbox
	transactions map[string][]*domain.CashboxTransaction
}

// NewData returns an empty backend state.
func NewData(clk clock.Clock, params util.Argon2idParams) *Data {
	if clk == nil {
		clk = clock.Real()
	}
	return &Data{
		clock:        clk,
		params:       params,
		users:        make(map[string]*user),
		tables:       make(map[string]*domain.Table),
		sales:        make(map[string]*domain.Sale),
		items:        make(map[string][]*domain.SaleItem),
		reservations: make(map[string]*domain.Reservation),
		perDiems:     make(map[string][]*domain.PerDiem),
		consumptions: make(map[string][]*domain.Consumption),
		resPayments:  make(map[string][]*domain.ReservationPayment),
		products:     make(map[string]*domain.Product),
		categories:   make(map[string]*domain.ProductCategory),
		employees:    make(map[string]*domain.Employee),
		cashboxes:    make(map[string]*domain.Cashbox),
		transactions: make(map[string][]*domain.CashboxTransaction),
	}
}

// AddUser registers an operator account.
func (d *Data) AddUser(username, password, name, role string) error {
	salt, err := util.RandomBytes(16)
	if err != nil {
		return err
	}
	hash, err := util.PassphraseKey(password, salt, d.params)
	if err != nil {
		return fmt.Errorf("hashing password for %s: %w", username, err)
	}
	key := util.Normalize(strings.ToLower(username))
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.New()
	if existing, ok := d.users[key]; ok {
		id = existing.ID
	}
	d.users[key] = &user{ID: id, Username: username, Name: name, Role: role, salt: salt, hash: hash}
	return nil
}

// authenticate returns the user when password matches.
func (d *Data) authenticate(username, password string) (user, bool) {
	d.mu.Lock()
	u, ok := d.users[util.Normalize(strings.ToLower(username))]
	d.mu.Unlock()
	if !ok || password == "" {
		return user{}, false
	}
	hash, err := util.PassphraseKey(password, u.salt, d.params)
	if err != nil {
		return user{}, false
	}
	defer util.WipeBytes(hash)
	if subtle.ConstantTimeCompare(hash, u.hash) != 1 {
		return user{}, false
	}
	return *u, true
}

func (d *Data) userByID(id string) (user, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.ID == id {
			return *u, true
		}
	}
	return user{}, false
}

func sortedValues[T any](m map[string]*T, key func(*T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(key(&a), key(&b)) })
	return out
}

func copyAll[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, *v)
	}
	return out
}

func (d *Data) now() time.Time { return d.clock.Now().UTC() }

func (d *Data) today() string { return d.now().Format(domain.DateLayout) }

// Tables

func (d *Data) AddTable(t domain.Table) domain.Table {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = domain.TableFree
	}
	d.tables[t.ID] = &t
	return t
}

func (d *Data) ListTables(area, status string) []domain.Table {
	d.mu.Lock()
	defer d.mu.Unlock()
	all := sortedValues(d.tables, func(t *domain.Table) string { return t.Name })
	return slices.DeleteFunc(all, func(t domain.Table) bool {
		return (area != "" && t.Area != area) || (status != "" && t.Status != status)
	})
}

func (d *Data) table(id string) (*domain.Table, error) {
	t, ok := d.tables[id]
	if !ok {
		return nil, notFound("table", id)
	}
	return t, nil
}

// OpenTable seats guests and starts a sale for the table.
func (d *Data) OpenTable(id string, guests int) (domain.Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.table(id)
	if err != nil {
		return domain.Table{}, err
	}
	if t.Status == domain.TableOccupied {
		return domain.Table{}, invalid("table %s is already occupied", t.Name)
	}
	if guests <= 0 {
		return domain.Table{}, invalid("guests must be positive")
	}
	sale := &domain.Sale{ID: uuid.New(), TableID: t.ID, Status: domain.SaleOpen, OpenedAt: d.now()}
	d.sales[sale.ID] = sale
	t.Status, t.SaleID, t.CurrentGuests, t.ReservedFor = domain.TableOccupied, sale.ID, guests, ""
	return *t, nil
}

// CloseTable frees a table. Its sale must be settled or empty.
func (d *Data) CloseTable(id string) (domain.Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.table(id)
	if err != nil {
		return domain.Table{}, err
	}
	if t.Status == domain.TableFree {
		return domain.Table{}, invalid("table %s is not open", t.Name)
	}
	if s, ok := d.sales[t.SaleID]; ok && s.Status == domain.SaleOpen {
		if s.Paid < s.Total {
			return domain.Table{}, invalid("table %s has an unpaid sale", t.Name)
		}
		d.closeSaleLocked(s)
	}
	t.Status, t.SaleID, t.CurrentGuests, t.ReservedFor = domain.TableFree, "", 0, ""
	return *t, nil
}

func (d *Data) ReserveTable(id, name string) (domain.Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.table(id)
	if err != nil {
		return domain.Table{}, err
	}
	if t.Status != domain.TableFree {
		return domain.Table{}, invalid("table %s is not free", t.Name)
	}
	if strings.TrimSpace(name) == "" {
		return domain.Table{}, invalid("reservation name is required")
	}
	t.Status, t.ReservedFor = domain.TableReserved, name
	return *t, nil
}

// Sales

func (d *Data) ListSales(status, tableID, date string) []domain.Sale {
	d.mu.Lock()
	defer d.mu.Unlock()
	all := sortedValues(d.sales, func(s *domain.Sale) string { return s.OpenedAt.Format(time.RFC3339Nano) + s.ID })
	return slices.DeleteFunc(all, func(s domain.Sale) bool {
		return (status != "" && s.Status != status) ||
			(tableID != "" && s.TableID != tableID) ||
			(date != "" && s.OpenedAt.Format(domain.DateLayout) != date)
	})
}

func (d *Data) sale(id string) (*domain.Sale, error) {
	s, ok := d.sales[id]
	if !ok {
		return nil, notFound("sale", id)
	}
	return s, nil
}

func (d *Data) GetSale(id string) (domain.Sale, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.sale(id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *s, nil
}

func (d *Data) CreateSale(in domain.SaleInput) (domain.Sale, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if in.TableID != "" {
		if _, err := d.table(in.TableID); err != nil {
			return domain.Sale{}, err
		}
	}
	s := &domain.Sale{ID: uuid.New(), TableID: in.TableID, Notes: in.Notes, Status: domain.SaleOpen, OpenedAt: d.now()}
	d.sales[s.ID] = s
	return *s, nil
}

func (d *Data) UpdateSale(id string, in domain.SaleInput) (domain.Sale, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.openSale(id)
	if err != nil {
		return domain.Sale{}, err
	}
	if in.TableID != "" {
		if _, err := d.table(in.TableID); err != nil {
			return domain.Sale{}, err
		}
		s.TableID = in.TableID
	}
	s.Notes = in.Notes
	return *s, nil
}

func (d *Data) openSale(id string) (*domain.Sale, error) {
	s, err := d.sale(id)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.SaleOpen {
		return nil, invalid("sale is %s", s.Status)
	}
	return s, nil
}

func (d *Data) closeSaleLocked(s *domain.Sale) {
	now := d.now()
	s.Status, s.ClosedAt = domain.SaleClosed, &now
}

func (d *Data) CloseSale(id string) (domain.Sale, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.openSale(id)
	if err != nil {
		return domain.Sale{}, err
	}
	if s.Paid < s.Total {
		return domain.Sale{}, invalid("sale has %.2f outstanding", s.Total-s.Paid)
	}
	d.closeSaleLocked(s)
	return *s, nil
}

func (d *Data) CancelSale(id string) (domain.Sale, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.openSale(id)
	if err != nil {
		return domain.Sale{}, err
	}
	if s.Paid > 0 {
		return domain.Sale{}, invalid("sale has payments and cannot be cancelled")
	}
	now := d.now()
	s.Status, s.ClosedAt = domain.SaleCancelled, &now
	return *s, nil
}

func (d *Data) SaleItems(saleID string) ([]domain.SaleItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.sale(saleID); err != nil {
		return nil, err
	}
	return copyAll(d.items[saleID]), nil
}

func (d *Data) recomputeTotal(s *domain.Sale) {
	total := 0.0
	for _, it := range d.items[s.ID] {
		total += float64(it.Quantity) * it.UnitPrice
	}
	s.Total = total
}

func (d *Data) AddSaleItem(saleID string, in domain.SaleItemInput) (domain.SaleItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.openSale(saleID)
	if err != nil {
		return domain.SaleItem{}, err
	}
	p, ok := d.products[in.ProductID]
	if !ok {
		return domain.SaleItem{}, notFound("product", in.ProductID)
	}
	if !p.Active {
		return domain.SaleItem{}, invalid("product %s is not available", p.Name)
	}
	if in.Quantity <= 0 {
		return domain.SaleItem{}, invalid("quantity must be positive")
	}
	it := &domain.SaleItem{
		ID:        uuid.New(),
		SaleID:    saleID,
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  in.Quantity,
		UnitPrice: p.Price,
		Notes:     in.Notes,
	}
	d.items[saleID] = append(d.items[saleID], it)
	d.recomputeTotal(s)
	return *it, nil
}

func (d *Data) UpdateSaleItem(saleID, itemID string, in domain.SaleItemInput) (domain.SaleItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.openSale(saleID)
	if err != nil {
		return domain.SaleItem{}, err
	}
	if in.Quantity <= 0 {
		return domain.SaleItem{}, invalid("quantity must be positive")
	}
	for _, it := range d.items[saleID] {
		if it.ID == itemID {
			it.Quantity, it.Notes = in.Quantity, in.Notes
			d.recomputeTotal(s)
			return *it, nil
		}
	}
	return domain.SaleItem{}, notFound("sale item", itemID)
}

func (d *Data) RemoveSaleItem(saleID, itemID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.openSale(saleID)
	if err != nil {
		return err
	}
	before := len(d.items[saleID])
	d.items[saleID] = slices.DeleteFunc(d.items[saleID], func(it *domain.SaleItem) bool { return it.ID == itemID })
	if len(d.items[saleID]) == before {
		return notFound("sale item", itemID)
	}
	d.recomputeTotal(s)
	return nil
}
