package invalidation

var dashboards = []Template{
	T(EntityDashboardCheckInToday),
	T(EntityDashboardGuests),
	T(EntityDashboardDailyRevenue),
	T(EntityDashboardCheckOutToday),
}

func rows(groups ...[]Template) []Template {
	var out []Template
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// DefaultRules returns the dependency table between writes and cached
// reads. This table is the only place cross-entity consistency is decided;
// a write missing here leaves other views stale.
func DefaultRules() map[Mutation][]Template {
	sale := []Template{
		T(EntitySales, Any),
		T(EntitySaleItems, Bind(IDSale)),
		T(EntityPayments, Any),
	}
	saleItem := []Template{
		T(EntitySaleItems, Bind(IDSale)),
		T(EntitySales, Any),
	}
	table := []Template{T(EntityTables, Any)}
	reservation := []Template{T(EntityReservations, Any)}
	sub := func(name string) []Template {
		return []Template{T(EntityReservations, Bind(IDReservation), Lit(name))}
	}
	cashboxTx := []Template{
		T(EntityCashbox, Any),
		T(EntityCashboxTransactions, Bind(IDCashbox), Any),
	}
	product := []Template{T(EntityProducts, Any)}
	employee := []Template{T(EntityEmployees, Any)}

	return map[Mutation][]Template{
		CreateSale: sale,
		UpdateSale: sale,
		CloseSale:  sale,
		CancelSale: sale,

		AddSaleItem:    saleItem,
		RemoveSaleItem: saleItem,
		UpdateSaleItem: saleItem,

		OpenTable:    table,
		CloseTable:   table,
		ReserveTable: table,

		CreateReservation: reservation,
		UpdateReservation: reservation,
		DeleteReservation: reservation,
		CheckIn: rows(
			[]Template{T(EntityAccommodations), T(EntityReservations, Any)},
			dashboards,
		),
		CheckOut: {
			T(EntityAccommodations),
			T(EntityReservations, Any),
		},
		BatchCreateReservations: rows(
			[]Template{T(EntityReservations, Any), T(EntityAccommodations)},
			dashboards,
		),

		SavePerDiem:              sub(SubPerDiems),
		DeletePerDiem:            sub(SubPerDiems),
		SaveConsumption:          sub(SubConsumptions),
		DeleteConsumption:        sub(SubConsumptions),
		SaveReservationPayment:   sub(SubPayments),
		DeleteReservationPayment: sub(SubPayments),

		SaveCashboxTransaction:   cashboxTx,
		DeleteCashboxTransaction: cashboxTx,
		OpenCashbox:              {T(EntityCashbox, Any)},
		CloseCashbox: {
			T(EntityCashbox, Bind(IDCashbox)),
			T(EntityCashbox),
		},

		RegisterPayment: {
			T(EntityPayments, Any),
			T(EntitySales, Any),
			T(EntitySaleItems, Bind(IDSale)),
			T(EntityCashbox, Any),
			T(EntityCashboxTransactions, Bind(IDCashbox), Any),
		},

		CreateProduct: product,
		UpdateProduct: product,
		DeleteProduct: product,

		CreateEmployee: employee,
		UpdateEmployee: employee,
		DeleteEmployee: employee,
	}
}
