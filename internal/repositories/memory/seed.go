package memory

import (
	"context"
	"strings"

	"gocart/internal/domain"
	"gocart/internal/domain/models"
)

func (s *Store) CreateUser(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return models.User{}, domain.ConflictError{Resource: "user", Msg: "already exists"}
		}
	}
	u.ID = s.id()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) CreateStop(_ context.Context, st models.Stop) (models.Stop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.stops {
		if existing.Name == st.Name {
			return models.Stop{}, domain.ConflictError{Resource: "stop", Msg: "already exists"}
		}
	}
	st.ID = s.id()
	s.stops[st.ID] = st
	return st, nil
}

func (s *Store) CreateRoute(_ context.Context, r models.Route, stopIDs []int64, fares []models.RouteFare) (models.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range stopIDs {
		if _, ok := s.stops[id]; !ok {
			return models.Route{}, domain.NotFoundError{Resource: "stop", ID: id}
		}
	}
	r.ID = s.id()
	s.routes[r.ID] = r

	rss := make([]models.RouteStop, 0, len(stopIDs))
	for i, id := range stopIDs {
		rss = append(rss, models.RouteStop{RouteID: r.ID, Stop: s.stops[id], Order: i + 1})
	}
	s.routeStops[r.ID] = rss

	rfs := make([]models.RouteFare, 0, len(fares))
	for _, f := range fares {
		f.ID = s.id()
		f.RouteID = r.ID
		rfs = append(rfs, f)
	}
	s.routeFares[r.ID] = rfs
	return r, nil
}

func (s *Store) CreateCart(_ context.Context, c models.Cart) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[c.RouteID]; !ok {
		return models.Cart{}, domain.NotFoundError{Resource: "route", ID: c.RouteID}
	}
	if _, ok := s.users[c.DriverID]; !ok {
		return models.Cart{}, domain.NotFoundError{Resource: "user", ID: c.DriverID}
	}
	c.ID = s.id()
	s.carts[c.ID] = c
	return c, nil
}

func (s *Store) CreateSchedule(_ context.Context, sc models.Schedule, seatNumbers []string) (models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[sc.CartID]; !ok {
		return models.Schedule{}, domain.NotFoundError{Resource: "cart", ID: sc.CartID}
	}
	sc.ID = s.id()
	s.schedules[sc.ID] = sc
	for _, n := range seatNumbers {
		id := s.id()
		s.seats[id] = models.SeatLayout{ID: id, ScheduleID: sc.ID, SeatNumber: n}
	}
	return sc, nil
}

// DeleteUser removes the user and cascades to their bookings and carts.
// Seats they booked stay in place with booked_by cleared.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.NotFoundError{Resource: "user", ID: id}
	}
	delete(s.users, id)
	for seatID, seat := range s.seats {
		if seat.BookedBy != nil && *seat.BookedBy == id {
			seat.BookedBy = nil
			seat.Version++
			s.seats[seatID] = seat
		}
	}
	for bid, b := range s.bookings {
		if b.StudentID == id {
			s.release(bid)
			delete(s.bookings, bid)
		}
	}
	for cid, c := range s.carts {
		if c.DriverID == id {
			s.deleteCart(cid)
		}
	}
	return nil
}

// DeleteRoute cascades to the route's stops, fares and carts.
func (s *Store) DeleteRoute(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[id]; !ok {
		return domain.NotFoundError{Resource: "route", ID: id}
	}
	delete(s.routes, id)
	delete(s.routeStops, id)
	delete(s.routeFares, id)
	for cid, c := range s.carts {
		if c.RouteID == id {
			s.deleteCart(cid)
		}
	}
	return nil
}

// DeleteSchedule cascades to its seats and bookings.
func (s *Store) DeleteSchedule(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return domain.NotFoundError{Resource: "schedule", ID: id}
	}
	s.deleteSchedule(id)
	return nil
}

func (s *Store) deleteCart(id int64) {
	delete(s.carts, id)
	for sid, sc := range s.schedules {
		if sc.CartID == id {
			s.deleteSchedule(sid)
		}
	}
}

func (s *Store) deleteSchedule(id int64) {
	delete(s.schedules, id)
	for seatID, seat := range s.seats {
		if seat.ScheduleID == id {
			delete(s.seats, seatID)
		}
	}
	for bid, b := range s.bookings {
		if b.ScheduleID == id {
			delete(s.bookings, bid)
		}
	}
}
