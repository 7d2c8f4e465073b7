package invalidation

// Mutation names a kind of successful write.
type Mutation string

const (
	CreateSale Mutation = "sale.create"
	UpdateSale Mutation = "sale.update"
	CloseSale  Mutation = "sale.close"
	CancelSale Mutation = "sale.cancel"

	AddSaleItem    Mutation = "sale_item.add"
	RemoveSaleItem Mutation = "sale_item.remove"
	UpdateSaleItem Mutation = "sale_item.update"

	OpenTable    Mutation = "table.open"
	CloseTable   Mutation = "table.close"
	ReserveTable Mutation = "table.reserve"

	CreateReservation       Mutation = "reservation.create"
	UpdateReservation       Mutation = "reservation.update"
	DeleteReservation       Mutation = "reservation.delete"
	CheckIn                 Mutation = "reservation.check_in"
	CheckOut                Mutation = "reservation.check_out"
	BatchCreateReservations Mutation = "reservation.batch_create"

	SavePerDiem              Mutation = "per_diem.save"
	DeletePerDiem            Mutation = "per_diem.delete"
	SaveConsumption          Mutation = "consumption.save"
	DeleteConsumption        Mutation = "consumption.delete"
	SaveReservationPayment   Mutation = "reservation_payment.save"
	DeleteReservationPayment Mutation = "reservation_payment.delete"

	SaveCashboxTransaction   Mutation = "cashbox_transaction.save"
	DeleteCashboxTransaction Mutation = "cashbox_transaction.delete"
	OpenCashbox              Mutation = "cashbox.open"
	CloseCashbox             Mutation = "cashbox.close"

	RegisterPayment Mutation = "payment.register"

	CreateProduct Mutation = "product.create"
	UpdateProduct Mutation = "product.update"
	DeleteProduct Mutation = "product.delete"

	CreateEmployee Mutation = "employee.create"
	UpdateEmployee Mutation = "employee.update"
	DeleteEmployee Mutation = "employee.delete"
)

// AllMutations lists every mutation the facades emit. Validate checks that
// each one has a rule.
func AllMutations() []Mutation {
	return []Mutation{
		CreateSale, UpdateSale, CloseSale, CancelSale,
		AddSaleItem, RemoveSaleItem, UpdateSaleItem,
		OpenTable, CloseTable, ReserveTable,
		CreateReservation, UpdateReservation, DeleteReservation,
		CheckIn, CheckOut, BatchCreateReservations,
		SavePerDiem, DeletePerDiem,
		SaveConsumption, DeleteConsumption,
		SaveReservationPayment, DeleteReservationPayment,
		SaveCashboxTransaction, DeleteCashboxTransaction,
		OpenCashbox, CloseCashbox,
		RegisterPayment,
		CreateProduct, UpdateProduct, DeleteProduct,
		CreateEmployee, UpdateEmployee, DeleteEmployee,
	}
}

// Cache entity names. Facades build their keys from these so the rules and
// the keys cannot drift apart.
const (
	EntitySales               = "sales"
	EntitySaleItems           = "sale-items"
	EntityPayments            = "payments"
	EntityTables              = "tables"
	EntityReservations        = "reservations"
	EntityAccommodations      = "accommodations"
	EntityCashbox             = "cashbox"
	EntityCashboxTransactions = "cashbox-transactions"
	EntityProducts            = "products"
	EntityProductCategories   = "product-categories"
	EntityEmployees           = "employees"

	EntityDashboardCheckInToday  = "dashboard-checkin-today"
	EntityDashboardCheckOutToday = "dashboard-checkout-today"
	EntityDashboardGuests        = "dashboard-guests"
	EntityDashboardDailyRevenue  = "dashboard-daily-revenue"
)

// Reservation subresources, the second component of their keys.
const (
	SubPerDiems     = "per-diems"
	SubConsumptions = "consumptions"
	SubPayments     = "payments"
)

// Names of the ids an Outcome binds.
const (
	IDSale        = "sale"
	IDReservation = "reservation"
	IDCashbox     = "cashbox"
	IDTable       = "table"
	IDProduct     = "product"
	IDEmployee    = "employee"
)

// Outcome describes a write that succeeded.
type Outcome struct {
	Kind Mutation
	IDs  map[string]string
}

// NewOutcome builds an outcome from alternating id names and values.
func NewOutcome(kind Mutation, pairs ...string) Outcome {
	o := Outcome{Kind: kind, IDs: make(map[string]string, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		o.IDs[pairs[i]] = pairs[i+1]
	}
	return o
}
