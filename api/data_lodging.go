package api

import (
	"slices"
	"strings"
	"time"

	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/internal/uuid"
)

func validateReservation(in domain.ReservationInput) error {
	if strings.TrimSpace(in.GuestName) == "" {
		return invalid("guest name is required")
	}
	if in.Guests <= 0 {
		return invalid("guests must be positive")
	}
	in1, err := time.Parse(domain.DateLayout, in.CheckIn)
	if err != nil {
		return invalid("check_in must be a date (YYYY-MM-DD)")
	}
	out, err := time.Parse(domain.DateLayout, in.CheckOut)
	if err != nil {
		return invalid("check_out must be a date (YYYY-MM-DD)")
	}
	if !out.After(in1) {
		return invalid("check_out must be after check_in")
	}
	return nil
}

// ListReservations returns reservations whose check-in falls within
// [from, to], ordered by check-in.
func (d *Data) ListReservations(status, from, to string) []domain.Reservation {
	d.mu.Lock()
	defer d.mu.Unlock()
	all := sortedValues(d.reservations, func(r *domain.Reservation) string { return r.CheckIn + r.ID })
	return slices.DeleteFunc(all, func(r domain.Reservation) bool {
		return (status != "" && r.Status != status) ||
			(from != "" && r.CheckIn < from) ||
			(to != "" && r.CheckIn > to)
	})
}

func (d *Data) reservation(id string) (*domain.Reservation, error) {
	r, ok := d.reservations[id]
	if !ok {
		return nil, notFound("reservation", id)
	}
	return r, nil
}

func (d *Data) GetReservation(id string) (domain.Reservation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.reservation(id)
	if err != nil {
		return domain.Reservation{}, err
	}
	return *r, nil
}

func (d *Data) createReservationLocked(in domain.ReservationInput) *domain.Reservation {
	r := &domain.Reservation{
		ID:        uuid.New(),
		GuestName: in.GuestName,
		Room:      in.Room,
		Guests:    in.Guests,
		CheckIn:   in.CheckIn,
		CheckOut:  in.CheckOut,
		Status:    domain.ReservationConfirmed,
	}
	d.reservations[r.ID] = r
	return r
}

func (d *Data) CreateReservation(in domain.ReservationInput) (domain.Reservation, error) {
	if err := validateReservation(in); err != nil {
		return domain.Reservation{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.createReservationLocked(in), nil
}

// CreateReservations creates every reservation or none.
func (d *Data) CreateReservations(in []domain.ReservationInput) ([]domain.Reservation, error) {
	if len(in) == 0 {
		return nil, invalid("batch is empty")
	}
	for i, r := range in {
		if err := validateReservation(r); err != nil {
			return nil, invalid("reservation %d: %s", i+1, businessMessage(err))
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Reservation, 0, len(in))
	for _, r := range in {
		out = append(out, *d.createReservationLocked(r))
	}
	return out, nil
}

func (d *Data) UpdateReservation(id string, in domain.ReservationInput) (domain.Reservation, error) {
	if err := validateReservation(in); err != nil {
		return domain.Reservation{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.reservation(id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if r.Status == domain.ReservationCheckedOut {
		return domain.Reservation{}, invalid("reservation is checked out")
	}
	r.GuestName, r.Room, r.Guests, r.CheckIn, r.CheckOut = in.GuestName, in.Room, in.Guests, in.CheckIn, in.CheckOut
	return *r, nil
}

func (d *Data) DeleteReservation(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.reservation(id)
	if err != nil {
		return err
	}
	if r.Status == domain.ReservationCheckedIn {
		return invalid("guest is checked in")
	}
	delete(d.reservations, id)
	delete(d.perDiems, id)
	delete(d.consumptions, id)
	delete(d.resPayments, id)
	return nil
}

func (d *Data) CheckIn(id string) (domain.Reservation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.reservation(id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if r.Status != domain.ReservationConfirmed {
		return domain.Reservation{}, invalid("reservation is %s", r.Status)
	}
	r.Status = domain.ReservationCheckedIn
	return *r, nil
}

func (d *Data) CheckOut(id string) (domain.Reservation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.reservation(id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if r.Status != domain.ReservationCheckedIn {
		return domain.Reservation{}, invalid("reservation is %s", r.Status)
	}
	r.Status = domain.ReservationCheckedOut
	return *r, nil
}

// subresource is a per-reservation list: per-diems, consumptions or
// payments.
type subresource[T any] struct {
	items func(d *Data) map[string][]*T
	id    func(*T) *string
	owner func(*T) *string
	check func(*T) error
}

var (
	perDiemSub = subresource[domain.PerDiem]{
		items: func(d *Data) map[string][]*domain.PerDiem { return d.perDiems },
		id:    func(p *domain.PerDiem) *string { return &p.ID },
		owner: func(p *domain.PerDiem) *string { return &p.ReservationID },
		check: func(p *domain.PerDiem) error {
			if _, err := time.Parse(domain.DateLayout, p.Date); err != nil {
				return invalid("date must be YYYY-MM-DD")
			}
			if p.Amount <= 0 {
				return invalid("amount must be positive")
			}
			return nil
		},
	}
	consumptionSub = subresource[domain.Consumption]{
		items: func(d *Data) map[string][]*domain.Consumption { return d.consumptions },
		id:    func(c *domain.Consumption) *string { return &c.ID },
		owner: func(c *domain.Consumption) *string { return &c.ReservationID },
		check: func(c *domain.Consumption) error {
			if c.Quantity <= 0 {
				return invalid("quantity must be positive")
			}
			return nil
		},
	}
	resPaymentSub = subresource[domain.ReservationPayment]{
		items: func(d *Data) map[string][]*domain.ReservationPayment { return d.resPayments },
		id:    func(p *domain.ReservationPayment) *string { return &p.ID },
		owner: func(p *domain.ReservationPayment) *string { return &p.ReservationID },
		check: func(p *domain.ReservationPayment) error {
			if p.Amount <= 0 {
				return invalid("amount must be positive")
			}
			if p.Method == "" {
				return invalid("method is required")
			}
			return nil
		},
	}
)

func (s subresource[T]) list(d *Data, reservationID string) ([]T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.reservation(reservationID); err != nil {
		return nil, err
	}
	return copyAll(s.items(d)[reservationID]), nil
}

// save creates v when itemID is empty and replaces the stored item
// otherwise.
func (s subresource[T]) save(d *Data, reservationID, itemID string, v T) (T, error) {
	var zero T
	if err := s.check(&v); err != nil {
		return zero, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.reservation(reservationID)
	if err != nil {
		return zero, err
	}
	if r.Status == domain.ReservationCheckedOut {
		return zero, invalid("reservation is checked out")
	}
	*s.owner(&v) = reservationID
	m := s.items(d)
	if itemID == "" {
		*s.id(&v) = uuid.New()
		m[reservationID] = append(m[reservationID], &v)
		return v, nil
	}
	for i, existing := range m[reservationID] {
		if *s.id(existing) == itemID {
			*s.id(&v) = itemID
			m[reservationID][i] = &v
			return v, nil
		}
	}
	return zero, notFound("item", itemID)
}

func (s subresource[T]) remove(d *Data, reservationID, itemID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.reservation(reservationID); err != nil {
		return err
	}
	m := s.items(d)
	before := len(m[reservationID])
	m[reservationID] = slices.DeleteFunc(m[reservationID], func(v *T) bool { return *s.id(v) == itemID })
	if len(m[reservationID]) == before {
		return notFound("item", itemID)
	}
	return nil
}

// Accommodations lists the guests currently in house.
func (d *Data) Accommodations() []domain.Accommodation {
	out := []domain.Accommodation{}
	for _, r := range d.ListReservations(domain.ReservationCheckedIn, "", "") {
		out = append(out, domain.Accommodation{
			ReservationID: r.ID,
			Room:          r.Room,
			GuestName:     r.GuestName,
			Guests:        r.Guests,
			CheckOut:      r.CheckOut,
		})
	}
	return out
}

// ArrivalsOn lists confirmed reservations arriving on date.
func (d *Data) ArrivalsOn(date string) []domain.Reservation {
	return d.ListReservations(domain.ReservationConfirmed, date, date)
}

// DeparturesOn lists in-house reservations leaving on date.
func (d *Data) DeparturesOn(date string) []domain.Reservation {
	return slices.DeleteFunc(d.ListReservations(domain.ReservationCheckedIn, "", ""), func(r domain.Reservation) bool {
		return r.CheckOut != date
	})
}

func (d *Data) Guests() domain.GuestCount {
	var gc domain.GuestCount
	for _, r := range d.ListReservations(domain.ReservationCheckedIn, "", "") {
		gc.InHouse += r.Guests
		gc.Rooms++
	}
	return gc
}
