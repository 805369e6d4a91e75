package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gocart/internal/domain"
	"gocart/internal/domain/models"
	"gocart/internal/repositories"
	"gocart/internal/topology"
	"gocart/internal/utils"
)

// HistoryService is the read side over finished and running bookings.
type HistoryService struct {
	Catalog  repositories.Catalog
	Seats    repositories.SeatInventory
	Bookings repositories.BookingStore
	Users    repositories.UserStore
	// Location renders booking times; time.Local when nil.
	Location  *time.Location
	RequestID string
}

type RideEntry struct {
	Booking     models.Booking        `json:"booking"`
	Schedule    models.ScheduleDetail `json:"schedule"`
	From        string                `json:"from"`
	To          string                `json:"to"`
	SeatNumbers []string              `json:"seat_numbers"`
	Path        []string              `json:"path"`
}

type DriverSchedule struct {
	Schedule  models.ScheduleDetail `json:"schedule"`
	RoutePath []string              `json:"route_path"`
}

type TripBooking struct {
	BookingID   int64    `json:"booking_id"`
	SeatNumbers []string `json:"seat_numbers"`
	Username    string   `json:"username"`
	From        string   `json:"from_stop"`
	To          string   `json:"to_stop"`
	BookingTime string   `json:"booking_time"`
	Status      string   `json:"status"`
	Path        []string `json:"path"`
}

type TripDetails struct {
	Schedule models.ScheduleDetail `json:"schedule"`
	Bookings []TripBooking         `json:"bookings"`
}

type TripRoster struct {
	Schedule      models.ScheduleDetail `json:"schedule"`
	Seats         []models.SeatLayout   `json:"seats"`
	SeatToBooking map[int64]int64       `json:"seat_to_booking"`
	UserSeats     map[string][]int64    `json:"user_seats"`
}

// PathFor returns the stop names from b's boarding stop to its drop stop,
// inclusive. It is empty when either stop is off the route or the pair is
// not in travel order.
func PathFor(route topology.Route, b models.Booking) []string {
	return route.PathNames(b.FromStopID, b.ToStopID)
}

// routeCache loads each route once per request.
type routeCache struct {
	store  topology.Store
	routes map[int64]topology.Route
}

func newRouteCache(src topology.Source) *routeCache {
	return &routeCache{store: topology.Store{Source: src}, routes: map[int64]topology.Route{}}
}

func (c *routeCache) get(ctx context.Context, routeID int64) (topology.Route, error) {
	if r, ok := c.routes[routeID]; ok {
		return r, nil
	}
	r, err := c.store.Route(ctx, routeID)
	if err != nil {
		return topology.Route{}, err
	}
	c.routes[routeID] = r
	return r, nil
}

// seatNumbers maps seat ids of one schedule to their numbers.
func (s HistoryService) seatNumbers(ctx context.Context, scheduleID int64) (map[int64]string, error) {
	seats, err := s.Seats.SeatLayout(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(seats))
	for _, seat := range seats {
		out[seat.ID] = seat.SeatNumber
	}
	return out, nil
}

func numbersOf(ids []int64, numbers map[int64]string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := numbers[id]; ok {
			out = append(out, n)
		}
	}
	models.SortSeatNumbers(out)
	return out
}

func stopName(route topology.Route, id int64) string {
	if i, ok := route.IndexOf(id); ok {
		return route.StopAt(i).Name
	}
	return ""
}

// BookingPath is PathFor with the route resolved from the booking's schedule.
func (s HistoryService) BookingPath(ctx context.Context, b models.Booking) ([]string, error) {
	sc, err := s.Catalog.ScheduleByID(ctx, b.ScheduleID)
	if err != nil {
		return nil, err
	}
	route, err := topology.Store{Source: s.Catalog}.Route(ctx, sc.Route.ID)
	if err != nil {
		return nil, err
	}
	return PathFor(route, b), nil
}

// RideHistory lists a student's bookings, newest first.
func (s HistoryService) RideHistory(ctx context.Context, studentID int64) ([]RideEntry, error) {
	bookings, err := s.Bookings.Bookings(ctx, models.BookingFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(bookings, func(i, j int) bool { return bookings[i].ID > bookings[j].ID })

	routes := newRouteCache(s.Catalog)
	schedules := map[int64]models.ScheduleDetail{}
	numbers := map[int64]map[int64]string{}
	out := make([]RideEntry, 0, len(bookings))
	for _, b := range bookings {
		sc, ok := schedules[b.ScheduleID]
		if !ok {
			if sc, err = s.Catalog.ScheduleByID(ctx, b.ScheduleID); err != nil {
				return nil, err
			}
			schedules[b.ScheduleID] = sc
			if numbers[b.ScheduleID], err = s.seatNumbers(ctx, b.ScheduleID); err != nil {
				return nil, err
			}
		}
		route, err := routes.get(ctx, sc.Route.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, RideEntry{
			Booking:     b,
			Schedule:    sc,
			From:        stopName(route, b.FromStopID),
			To:          stopName(route, b.ToStopID),
			SeatNumbers: numbersOf(b.SeatIDs, numbers[b.ScheduleID]),
			Path:        PathFor(route, b),
		})
	}
	return out, nil
}

// DriverSchedules lists the schedules of the driver's carts with the full route.
func (s HistoryService) DriverSchedules(ctx context.Context, driverID int64) ([]DriverSchedule, error) {
	schedules, err := s.Catalog.Schedules(ctx, models.ScheduleFilter{DriverID: driverID})
	if err != nil {
		return nil, err
	}
	routes := newRouteCache(s.Catalog)
	out := make([]DriverSchedule, 0, len(schedules))
	for _, sc := range schedules {
		route, err := routes.get(ctx, sc.Route.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, DriverSchedule{Schedule: sc, RoutePath: route.Names()})
	}
	return out, nil
}

// drivenSchedule loads scheduleID and hides it unless driverID drives its cart.
func (s HistoryService) drivenSchedule(ctx context.Context, driverID, scheduleID int64) (models.ScheduleDetail, error) {
	sc, err := s.Catalog.ScheduleByID(ctx, scheduleID)
	if err != nil {
		return models.ScheduleDetail{}, err
	}
	if sc.Cart.DriverID != driverID {
		utils.LogEvent(s.RequestID, "driver", "trip", fmt.Sprintf("schedule_id=%d driver_id=%d not assigned", scheduleID, driverID))
		return models.ScheduleDetail{}, domain.NotFoundError{Resource: "schedule", ID: scheduleID}
	}
	return sc, nil
}

// TripDetails lists the confirmed and cancelled bookings of a driven trip.
func (s HistoryService) TripDetails(ctx context.Context, driverID, scheduleID int64) (TripDetails, error) {
	sc, err := s.drivenSchedule(ctx, driverID, scheduleID)
	if err != nil {
		return TripDetails{}, err
	}
	bookings, err := s.Bookings.Bookings(ctx, models.BookingFilter{
		ScheduleID: scheduleID,
		Statuses:   []domain.BookingStatus{domain.StatusConfirmed, domain.StatusCancelled},
	})
	if err != nil {
		return TripDetails{}, err
	}
	route, err := topology.Store{Source: s.Catalog}.Route(ctx, sc.Route.ID)
	if err != nil {
		return TripDetails{}, err
	}
	numbers, err := s.seatNumbers(ctx, scheduleID)
	if err != nil {
		return TripDetails{}, err
	}
	users, err := s.Users.UsersByIDs(ctx, studentIDs(bookings))
	if err != nil {
		return TripDetails{}, err
	}

	out := TripDetails{Schedule: sc, Bookings: make([]TripBooking, 0, len(bookings))}
	for _, b := range bookings {
		username := "N/A"
		if u, ok := users[b.StudentID]; ok && u.Username != "" {
			username = u.Username
		}
		out.Bookings = append(out.Bookings, TripBooking{
			BookingID:   b.ID,
			SeatNumbers: numbersOf(b.SeatIDs, numbers),
			Username:    username,
			From:        stopName(route, b.FromStopID),
			To:          stopName(route, b.ToStopID),
			BookingTime: utils.FormatDateTime(b.CreatedAt, s.Location),
			Status:      b.Status.Label(),
			Path:        PathFor(route, b),
		})
	}
	return out, nil
}

// TripRoster maps every seat of a driven trip to its live booking and each
// passenger to their seats, in one pass over non-cancelled bookings.
func (s HistoryService) TripRoster(ctx context.Context, driverID, scheduleID int64) (TripRoster, error) {
	sc, err := s.drivenSchedule(ctx, driverID, scheduleID)
	if err != nil {
		return TripRoster{}, err
	}
	seats, err := s.Seats.SeatLayout(ctx, scheduleID)
	if err != nil {
		return TripRoster{}, err
	}
	bookings, err := s.Bookings.Bookings(ctx, models.BookingFilter{
		ScheduleID: scheduleID,
		Statuses:   []domain.BookingStatus{domain.StatusPending, domain.StatusConfirmed},
	})
	if err != nil {
		return TripRoster{}, err
	}
	users, err := s.Users.UsersByIDs(ctx, studentIDs(bookings))
	if err != nil {
		return TripRoster{}, err
	}

	out := TripRoster{
		Schedule:      sc,
		Seats:         seats,
		SeatToBooking: map[int64]int64{},
		UserSeats:     map[string][]int64{},
	}
	for _, b := range bookings {
		username := "N/A"
		if u, ok := users[b.StudentID]; ok && u.Username != "" {
			username = u.Username
		}
		for _, seatID := range b.SeatIDs {
			out.SeatToBooking[seatID] = b.ID
			out.UserSeats[username] = append(out.UserSeats[username], seatID)
		}
	}
	return out, nil
}

func studentIDs(bookings []models.Booking) []int64 {
	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.StudentID)
	}
	return utils.UniqueIDs(ids)
}
