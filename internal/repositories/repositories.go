// Package repositories holds the storage contracts of the booking engine and
// their MySQL implementations. An in-memory implementation lives in
// repositories/memory.
package repositories

import (
	"context"
	"time"

	"gocart/internal/domain/models"
)

// Catalog is the read side over stops, routes, fares and schedules.
type Catalog interface {
	Stops(ctx context.Context) ([]models.Stop, error)
	StopByID(ctx context.Context, id int64) (models.Stop, error)
	StopByName(ctx context.Context, name string) (models.Stop, error)
	Routes(ctx context.Context) ([]models.Route, error)
	RouteStops(ctx context.Context, routeID int64) ([]models.RouteStop, error)
	RouteFares(ctx context.Context, routeID int64) ([]models.RouteFare, error)
	// RoutesServing returns ids of routes visiting from strictly before to.
	RoutesServing(ctx context.Context, from, to int64) ([]int64, error)
	Schedules(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, error)
	ScheduleByID(ctx context.Context, id int64) (models.ScheduleDetail, error)
}

type SeatInventory interface {
	// SeatLayout returns every seat of the schedule in natural seat-number order.
	SeatLayout(ctx context.Context, scheduleID int64) ([]models.SeatLayout, error)
	// SeatsByIDs returns the rows of ids that belong to scheduleID.
	SeatsByIDs(ctx context.Context, scheduleID int64, ids []int64) ([]models.SeatLayout, error)
	BookedSeatNumbers(ctx context.Context, scheduleID int64) ([]string, error)
	// FinalizeSeats marks seats booked by userID. Seats already booked are left alone.
	FinalizeSeats(ctx context.Context, seatIDs []int64, userID int64) error
}

type BookingStore interface {
	// CreatePending atomically claims every seat or none. Taken seats are
	// reported in Reservation.Conflicts and nothing is written.
	CreatePending(ctx context.Context, nb models.NewBooking) (models.Reservation, error)
	Booking(ctx context.Context, id int64) (models.Booking, error)
	Bookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	// Confirm moves a pending booking to confirmed and finalizes its seats.
	// A pending booking past its deadline is cancelled instead and a
	// ConflictError returned.
	Confirm(ctx context.Context, id int64, paymentID string, now time.Time) (models.Booking, error)
	// Cancel moves a pending booking to cancelled and releases its seats.
	Cancel(ctx context.Context, id int64) (models.Booking, error)
	// ExpirePending cancels pending bookings whose deadline is at or before now.
	ExpirePending(ctx context.Context, now time.Time) ([]int64, error)
}

type UserStore interface {
	UserByID(ctx context.Context, id int64) (models.User, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UsersByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error)
}

// SeedWriter creates fixture rows. Schedules get one seat per entry of seatNumbers.
type SeedWriter interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	CreateStop(ctx context.Context, s models.Stop) (models.Stop, error)
	CreateRoute(ctx context.Context, r models.Route, stopIDs []int64, fares []models.RouteFare) (models.Route, error)
	CreateCart(ctx context.Context, c models.Cart) (models.Cart, error)
	CreateSchedule(ctx context.Context, s models.Schedule, seatNumbers []string) (models.Schedule, error)
}

// Store bundles every contract; both backends satisfy it.
type Store interface {
	Catalog
	SeatInventory
	BookingStore
	UserStore
	SeedWriter
}
