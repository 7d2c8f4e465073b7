// Package domain holds the back-office entities exchanged between the
// client layer and the API.
package domain

import "time"

const (
	TableFree     = "free"
	TableOccupied = "occupied"
	TableReserved = "reserved"

	SaleOpen      = "open"
	SaleClosed    = "closed"
	SaleCancelled = "cancelled"

	ReservationConfirmed  = "confirmed"
	ReservationCheckedIn  = "checked_in"
	ReservationCheckedOut = "checked_out"

	CashboxOpen   = "open"
	CashboxClosed = "closed"

	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type Table struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Area          string `json:"area"`
	Seats         int    `json:"seats"`
	Status        string `json:"status"`
	SaleID        string `json:"sale_id,omitempty"`
	ReservedFor   string `json:"reserved_for,omitempty"`
	CurrentGuests int    `json:"current_guests,omitempty"`
}

type OpenTableInput struct {
	Guests int `json:"guests"`
}

type ReserveTableInput struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

type Sale struct {
	ID       string     `json:"id"`
	TableID  string     `json:"table_id,omitempty"`
	Status   string     `json:"status"`
	Total    float64    `json:"total"`
	Paid     float64    `json:"paid"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

type SaleInput struct {
	TableID string `json:"table_id,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type SaleItem struct {
	ID        string  `json:"id"`
	SaleID    string  `json:"sale_id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Notes     string  `json:"notes,omitempty"`
}

type SaleItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
}

type Reservation struct {
	ID        string `json:"id"`
	GuestName string `json:"guest_name"`
	Room      string `json:"room"`
	Guests    int    `json:"guests"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Status    string `json:"status"`
}

type ReservationInput struct {
	GuestName string `json:"guest_name"`
	Room      string `json:"room"`
	Guests    int    `json:"guests"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
}

type PerDiem struct {
	ID            string  `json:"id,omitempty"`
	ReservationID string  `json:"reservation_id,omitempty"`
	Date          string  `json:"date"`
	Amount        float64 `json:"amount"`
}

type Consumption struct {
	ID            string  `json:"id,omitempty"`
	ReservationID string  `json:"reservation_id,omitempty"`
	ProductID     string  `json:"product_id"`
	Quantity      int     `json:"quantity"`
	Amount        float64 `json:"amount"`
}

type ReservationPayment struct {
	ID            string  `json:"id,omitempty"`
	ReservationID string  `json:"reservation_id,omitempty"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
}

type Accommodation struct {
	ReservationID string `json:"reservation_id"`
	Room          string `json:"room"`
	GuestName     string `json:"guest_name"`
	Guests        int    `json:"guests"`
	CheckOut      string `json:"check_out"`
}

type Payment struct {
	ID        string    `json:"id"`
	SaleID    string    `json:"sale_id"`
	CashboxID string    `json:"cashbox_id,omitempty"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentInput struct {
	SaleID string  `json:"sale_id"`
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
}

type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	CategoryID string  `json:"category_id"`
	Price      float64 `json:"price"`
	Active     bool    `json:"active"`
}

type ProductInput struct {
	Name       string  `json:"name"`
	CategoryID string  `json:"category_id"`
	Price      float64 `json:"price"`
	Active     bool    `json:"active"`
}

type ProductCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Employee struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

type EmployeeInput struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

type Cashbox struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	OpenedBy      string     `json:"opened_by"`
	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	OpeningAmount float64    `json:"opening_amount"`
	ClosingAmount *float64   `json:"closing_amount,omitempty"`
	Balance       float64    `json:"balance"`
}

type OpenCashboxInput struct {
	OpeningAmount float64 `json:"opening_amount"`
}

type CloseCashboxInput struct {
	ClosingAmount float64 `json:"closing_amount"`
}

type CashboxTransaction struct {
	ID          string    `json:"id,omitempty"`
	CashboxID   string    `json:"cashbox_id,omitempty"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type GuestCount struct {
	InHouse int `json:"in_house"`
	Rooms   int `json:"rooms"`
}

type RevenuePoint struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}
