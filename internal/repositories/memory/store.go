// Package memory is a mutex-guarded in-process implementation of
// repositories.Store. Entities live in id-keyed maps; relationships are ids,
// so ownership cascades are explicit deletes.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gocart/internal/domain"
	"gocart/internal/domain/models"
	"gocart/internal/repositories"
)

type Store struct {
	mu sync.RWMutex

	nextID int64

	users      map[int64]models.User
	stops      map[int64]models.Stop
	routes     map[int64]models.Route
	routeStops map[int64][]models.RouteStop
	routeFares map[int64][]models.RouteFare
	carts      map[int64]models.Cart
	schedules  map[int64]models.Schedule
	seats      map[int64]models.SeatLayout
	bookings   map[int64]models.Booking
}

var _ repositories.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      map[int64]models.User{},
		stops:      map[int64]models.Stop{},
		routes:     map[int64]models.Route{},
		routeStops: map[int64][]models.RouteStop{},
		routeFares: map[int64][]models.RouteFare{},
		carts:      map[int64]models.Cart{},
		schedules:  map[int64]models.Schedule{},
		seats:      map[int64]models.SeatLayout{},
		bookings:   map[int64]models.Booking{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Catalog

func (s *Store) Stops(_ context.Context) ([]models.Stop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Stop, 0, len(s.stops))
	for _, st := range s.stops {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) StopByID(_ context.Context, id int64) (models.Stop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stops[id]
	if !ok {
		return models.Stop{}, domain.NotFoundError{Resource: "stop", ID: id}
	}
	return st, nil
}

func (s *Store) StopByName(_ context.Context, name string) (models.Stop, error) {
	name = strings.TrimSpace(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.stops {
		if st.Name == name {
			return st, nil
		}
	}
	return models.Stop{}, domain.NotFoundError{Resource: "stop"}
}

func (s *Store) Routes(_ context.Context) ([]models.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) RouteStops(_ context.Context, routeID int64) ([]models.RouteStop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.routeStops[routeID]
	out := make([]models.RouteStop, 0, len(src))
	for _, rs := range src {
		rs.Stop = s.stops[rs.Stop.ID]
		out = append(out, rs)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *Store) RouteFares(_ context.Context, routeID int64) ([]models.RouteFare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RouteFare, len(s.routeFares[routeID]))
	copy(out, s.routeFares[routeID])
	return out, nil
}

func (s *Store) RoutesServing(_ context.Context, from, to int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []int64{}
	for routeID, rss := range s.routeStops {
		fromOrder, toOrder, hasFrom, hasTo := 0, 0, false, false
		for _, rs := range rss {
			if rs.Stop.ID == from && (!hasFrom || rs.Order < fromOrder) {
				fromOrder, hasFrom = rs.Order, true
			}
			if rs.Stop.ID == to && (!hasTo || rs.Order < toOrder) {
				toOrder, hasTo = rs.Order, true
			}
		}
		if hasFrom && hasTo && fromOrder < toOrder {
			out = append(out, routeID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) detail(sc models.Schedule) models.ScheduleDetail {
	cart := s.carts[sc.CartID]
	return models.ScheduleDetail{Schedule: sc, Cart: cart, Route: s.routes[cart.RouteID]}
}

func (s *Store) Schedules(_ context.Context, f models.ScheduleFilter) ([]models.ScheduleDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routes := map[int64]bool{}
	for _, id := range f.RouteIDs {
		routes[id] = true
	}
	out := []models.ScheduleDetail{}
	for _, sc := range s.schedules {
		d := s.detail(sc)
		if f.TravelDate != "" && sc.TravelDate != f.TravelDate {
			continue
		}
		if len(routes) > 0 && !routes[d.Cart.RouteID] {
			continue
		}
		if f.StartAfter != "" && sc.StartTime <= f.StartAfter {
			continue
		}
		if f.DriverID > 0 && d.Cart.DriverID != f.DriverID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TravelDate != b.TravelDate {
			return a.TravelDate < b.TravelDate
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) ScheduleByID(_ context.Context, id int64) (models.ScheduleDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schedules[id]
	if !ok {
		return models.ScheduleDetail{}, domain.NotFoundError{Resource: "schedule", ID: id}
	}
	return s.detail(sc), nil
}

// Seat inventory

func (s *Store) SeatLayout(_ context.Context, scheduleID int64) ([]models.SeatLayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.SeatLayout{}
	for _, seat := range s.seats {
		if seat.ScheduleID == scheduleID {
			out = append(out, cloneSeat(seat))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	models.SortSeats(out)
	return out, nil
}

func (s *Store) SeatsByIDs(_ context.Context, scheduleID int64, ids []int64) ([]models.SeatLayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.SeatLayout{}
	for _, id := range ids {
		if seat, ok := s.seats[id]; ok && seat.ScheduleID == scheduleID {
			out = append(out, cloneSeat(seat))
		}
	}
	models.SortSeats(out)
	return out, nil
}

func (s *Store) BookedSeatNumbers(_ context.Context, scheduleID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for _, seat := range s.seats {
		if seat.ScheduleID == scheduleID && seat.IsBooked {
			out = append(out, seat.SeatNumber)
		}
	}
	models.SortSeatNumbers(out)
	return out, nil
}

func (s *Store) FinalizeSeats(_ context.Context, seatIDs []int64, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalize(seatIDs, userID)
	return nil
}

func (s *Store) finalize(seatIDs []int64, userID int64) {
	for _, id := range seatIDs {
		seat, ok := s.seats[id]
		if !ok || seat.IsBooked {
			continue
		}
		uid := userID
		seat.IsBooked = true
		seat.BookedBy = &uid
		seat.HoldBookingID = nil
		seat.Version++
		s.seats[id] = seat
	}
}

func (s *Store) release(bookingID int64) {
	for id, seat := range s.seats {
		if seat.HoldBookingID != nil && *seat.HoldBookingID == bookingID {
			seat.HoldBookingID = nil
			seat.Version++
			s.seats[id] = seat
		}
	}
}

func cloneSeat(seat models.SeatLayout) models.SeatLayout {
	if seat.BookedBy != nil {
		v := *seat.BookedBy
		seat.BookedBy = &v
	}
	if seat.HoldBookingID != nil {
		v := *seat.HoldBookingID
		seat.HoldBookingID = &v
	}
	return seat
}

// Bookings

func (s *Store) CreatePending(_ context.Context, nb models.NewBooking) (models.Reservation, error) {
	if len(nb.SeatIDs) == 0 {
		return models.Reservation{}, domain.ValidationError{Field: "seat_ids", Msg: "no seats selected", Step: domain.StepSeats}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conflicts := []int64{}
	for _, id := range nb.SeatIDs {
		seat, ok := s.seats[id]
		if !ok || seat.ScheduleID != nb.ScheduleID {
			return models.Reservation{}, domain.ValidationError{Field: "seat_ids", Msg: "seat does not belong to schedule", Step: domain.StepSeats}
		}
		if !seat.Available() {
			conflicts = append(conflicts, id)
		}
	}
	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i] < conflicts[j] })
		return models.Reservation{Conflicts: conflicts}, nil
	}

	b := models.Booking{
		ID:         s.id(),
		StudentID:  nb.StudentID,
		ScheduleID: nb.ScheduleID,
		FromStopID: nb.FromStopID,
		ToStopID:   nb.ToStopID,
		SeatIDs:    append([]int64(nil), nb.SeatIDs...),
		Fare:       nb.Fare,
		Status:     domain.StatusPending,
		CreatedAt:  nb.CreatedAt,
		ExpiresAt:  nb.ExpiresAt,
	}
	for _, id := range nb.SeatIDs {
		seat := s.seats[id]
		hold := b.ID
		seat.HoldBookingID = &hold
		seat.Version++
		s.seats[id] = seat
	}
	s.bookings[b.ID] = b
	return models.Reservation{Booking: cloneBooking(b)}, nil
}

func cloneBooking(b models.Booking) models.Booking {
	b.SeatIDs = append([]int64{}, b.SeatIDs...)
	return b
}

func (s *Store) Booking(_ context.Context, id int64) (models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: id}
	}
	return cloneBooking(b), nil
}

func (s *Store) Bookings(_ context.Context, f models.BookingFilter) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := map[domain.BookingStatus]bool{}
	for _, st := range f.Statuses {
		statuses[st] = true
	}
	out := []models.Booking{}
	for _, b := range s.bookings {
		if f.StudentID > 0 && b.StudentID != f.StudentID {
			continue
		}
		if f.ScheduleID > 0 && b.ScheduleID != f.ScheduleID {
			continue
		}
		if len(statuses) > 0 && !statuses[b.Status] {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) Confirm(_ context.Context, id int64, paymentID string, now time.Time) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: id}
	}
	switch b.Status {
	case domain.StatusConfirmed:
		if b.PaymentID == paymentID {
			return cloneBooking(b), nil
		}
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "already confirmed"}
	case domain.StatusCancelled:
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "booking is cancelled", Step: domain.StepSearch}
	}

	if !now.Before(b.ExpiresAt) {
		s.cancel(b)
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "booking expired", Step: domain.StepSearch}
	}

	b.Status = domain.StatusConfirmed
	b.PaymentID = paymentID
	s.finalize(b.SeatIDs, b.StudentID)
	s.bookings[id] = b
	return cloneBooking(b), nil
}

func (s *Store) cancel(b models.Booking) models.Booking {
	b.Status = domain.StatusCancelled
	s.bookings[b.ID] = b
	s.release(b.ID)
	return b
}

func (s *Store) Cancel(_ context.Context, id int64) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: id}
	}
	switch b.Status {
	case domain.StatusCancelled:
		return cloneBooking(b), nil
	case domain.StatusConfirmed:
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "confirmed bookings cannot be cancelled"}
	}
	return cloneBooking(s.cancel(b)), nil
}

func (s *Store) ExpirePending(_ context.Context, now time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []int64{}
	for _, b := range s.bookings {
		if b.Status == domain.StatusPending && !now.Before(b.ExpiresAt) {
			s.cancel(b)
			ids = append(ids, b.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Users

func (s *Store) UserByID(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, domain.NotFoundError{Resource: "user", ID: id}
	}
	return u, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (models.User, error) {
	username = strings.TrimSpace(username)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, domain.NotFoundError{Resource: "user"}
}

func (s *Store) UsersByIDs(_ context.Context, ids []int64) (map[int64]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}
