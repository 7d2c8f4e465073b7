package api

import (
	"fmt"

	"github.com/jmcleod/tablehand/domain"
)

// Seed fills d with a small restaurant and guesthouse: twelve tables, a
// drinks and food menu, two employees and one arriving reservation.
func Seed(d *Data) error {
	for i := range 12 {
		area := "hall"
		if i >= 8 {
			area = "terrace"
		}
		d.AddTable(domain.Table{
			ID:    fmt.Sprintf("T%d", i+1),
			Name:  fmt.Sprintf("Table %d", i+1),
			Area:  area,
			Seats: 2 + 2*(i%3),
		})
	}

	drinks := d.AddCategory(domain.ProductCategory{ID: "drinks", Name: "Drinks"})
	food := d.AddCategory(domain.ProductCategory{ID: "food", Name: "Food"})
	for _, p := range []domain.ProductInput{
		{Name: "Espresso", CategoryID: drinks.ID, Price: 2.5, Active: true},
		{Name: "House wine", CategoryID: drinks.ID, Price: 6, Active: true},
		{Name: "Soup of the day", CategoryID: food.ID, Price: 7.5, Active: true},
		{Name: "Grilled fish", CategoryID: food.ID, Price: 18, Active: true},
	} {
		if _, err := d.CreateProduct(p); err != nil {
			return err
		}
	}

	for _, e := range []domain.EmployeeInput{
		{Name: "Marta Ruiz", Role: "waiter", Active: true},
		{Name: "Joao Silva", Role: "receptionist", Active: true},
	} {
		if _, err := d.CreateEmployee(e); err != nil {
			return err
		}
	}

	today := d.now()
	_, err := d.CreateReservation(domain.ReservationInput{
		GuestName: "Ana Costa",
		Room:      "101",
		Guests:    2,
		CheckIn:   today.Format(domain.DateLayout),
		CheckOut:  today.AddDate(0, 0, 3).Format(domain.DateLayout),
	})
	return err
}
