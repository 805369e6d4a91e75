package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"gocart/internal/domain"
	"gocart/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *Store
	student  models.User
	other    models.User
	driver   models.User
	schedule models.Schedule
	seats    []models.SeatLayout
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := New()

	student, err := s.CreateUser(ctx, models.User{Username: "rahim", Role: domain.RoleStudent})
	require.NoError(t, err)
	other, err := s.CreateUser(ctx, models.User{Username: "karim", Role: domain.RoleStudent})
	require.NoError(t, err)
	driver, err := s.CreateUser(ctx, models.User{Username: "driver1", Role: domain.RoleDriver})
	require.NoError(t, err)

	a, _ := s.CreateStop(ctx, models.Stop{Name: "A"})
	b, _ := s.CreateStop(ctx, models.Stop{Name: "B"})
	route, err := s.CreateRoute(ctx, models.Route{Name: "AB"}, []int64{a.ID, b.ID},
		[]models.RouteFare{{FromStopID: a.ID, ToStopID: b.ID, Fare: decimal.NewFromInt(10)}})
	require.NoError(t, err)
	cart, err := s.CreateCart(ctx, models.Cart{NumberPlate: "GC-01", DriverID: driver.ID, RouteID: route.ID, Capacity: 3})
	require.NoError(t, err)
	sc, err := s.CreateSchedule(ctx, models.Schedule{CartID: cart.ID, TravelDate: "2026-03-01", StartTime: "09:00:00", DropTime: "09:30:00"},
		[]string{"1", "2", "3"})
	require.NoError(t, err)

	seats, err := s.SeatLayout(ctx, sc.ID)
	require.NoError(t, err)
	require.Len(t, seats, 3)

	return fixture{store: s, student: student, other: other, driver: driver, schedule: sc, seats: seats}
}

func (f fixture) claim(t *testing.T, student int64, seatIDs ...int64) models.Reservation {
	t.Helper()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	res, err := f.store.CreatePending(context.Background(), models.NewBooking{
		StudentID: student, ScheduleID: f.schedule.ID, SeatIDs: seatIDs,
		Fare: decimal.NewFromInt(10), CreatedAt: now, ExpiresAt: now.Add(15 * time.Minute),
	})
	require.NoError(t, err)
	return res
}

func TestConcurrentClaimsOnOneSeatHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	seat2 := f.seats[1].ID

	const workers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		loses int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(student int64) {
			defer wg.Done()
			res := f.claim(t, student, seat2)
			mu.Lock()
			defer mu.Unlock()
			if res.AllReserved() {
				wins++
			} else {
				loses++
				assert.Equal(t, []int64{seat2}, res.Conflicts)
			}
		}(f.student.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, loses)

	pending, err := f.store.Bookings(context.Background(), models.BookingFilter{Statuses: []domain.BookingStatus{domain.StatusPending}})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestClaimIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	first := f.claim(t, f.student.ID, f.seats[1].ID)
	require.True(t, first.AllReserved())

	res := f.claim(t, f.other.ID, f.seats[0].ID, f.seats[1].ID)
	assert.Equal(t, []int64{f.seats[1].ID}, res.Conflicts)

	seats, _ := f.store.SeatsByIDs(context.Background(), f.schedule.ID, []int64{f.seats[0].ID})
	assert.True(t, seats[0].Available(), "seat 1 must not be held after a rejected claim")
}

func TestConfirmFinalizesAndIsIdempotentForSameMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.claim(t, f.student.ID, f.seats[0].ID, f.seats[2].ID)
	now := res.Booking.CreatedAt.Add(time.Minute)

	b, err := f.store.Confirm(ctx, res.Booking.ID, "bkash", now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, b.Status)
	assert.Equal(t, "bkash", b.PaymentID)

	booked, _ := f.store.BookedSeatNumbers(ctx, f.schedule.ID)
	assert.Equal(t, []string{"1", "3"}, booked)

	again, err := f.store.Confirm(ctx, res.Booking.ID, "bkash", now)
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)

	_, err = f.store.Confirm(ctx, res.Booking.ID, "nagad", now)
	assert.True(t, domain.IsConflict(err))

	_, err = f.store.Cancel(ctx, res.Booking.ID)
	assert.True(t, domain.IsConflict(err))
}

func TestFinalizeKeepsExistingOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seat := f.seats[0].ID

	require.NoError(t, f.store.FinalizeSeats(ctx, []int64{seat}, f.student.ID))
	require.NoError(t, f.store.FinalizeSeats(ctx, []int64{seat}, f.other.ID))

	got, _ := f.store.SeatsByIDs(ctx, f.schedule.ID, []int64{seat})
	require.NotNil(t, got[0].BookedBy)
	assert.Equal(t, f.student.ID, *got[0].BookedBy)
}

func TestExpiredBookingCannotBeConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.claim(t, f.student.ID, f.seats[0].ID)

	_, err := f.store.Confirm(ctx, res.Booking.ID, "rocket", res.Booking.ExpiresAt)
	require.True(t, domain.IsConflict(err))

	b, _ := f.store.Booking(ctx, res.Booking.ID)
	assert.Equal(t, domain.StatusCancelled, b.Status)
	seats, _ := f.store.SeatsByIDs(ctx, f.schedule.ID, []int64{f.seats[0].ID})
	assert.True(t, seats[0].Available())
}

func TestExpirePendingReleasesOnlyExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.claim(t, f.student.ID, f.seats[0].ID)

	later := old.Booking.ExpiresAt
	fresh, err := f.store.CreatePending(ctx, models.NewBooking{
		StudentID: f.other.ID, ScheduleID: f.schedule.ID, SeatIDs: []int64{f.seats[1].ID},
		CreatedAt: later, ExpiresAt: later.Add(15 * time.Minute),
	})
	require.NoError(t, err)

	ids, err := f.store.ExpirePending(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, []int64{old.Booking.ID}, ids)

	b, _ := f.store.Booking(ctx, fresh.Booking.ID)
	assert.Equal(t, domain.StatusPending, b.Status)
}

func TestDeleteUserNullsBookedByAndDropsBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.claim(t, f.student.ID, f.seats[0].ID)
	_, err := f.store.Confirm(ctx, res.Booking.ID, "bkash", res.Booking.CreatedAt)
	require.NoError(t, err)
	held := f.claim(t, f.student.ID, f.seats[1].ID)
	require.True(t, held.AllReserved())

	require.NoError(t, f.store.DeleteUser(ctx, f.student.ID))

	seats, _ := f.store.SeatLayout(ctx, f.schedule.ID)
	assert.True(t, seats[0].IsBooked)
	assert.Nil(t, seats[0].BookedBy)
	assert.True(t, seats[1].Available())

	_, err = f.store.Booking(ctx, res.Booking.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestDeleteRouteCascadesToSchedulesAndSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc, _ := f.store.ScheduleByID(ctx, f.schedule.ID)

	require.NoError(t, f.store.DeleteRoute(ctx, sc.Route.ID))

	_, err := f.store.ScheduleByID(ctx, f.schedule.ID)
	assert.True(t, domain.IsNotFound(err))
	seats, _ := f.store.SeatLayout(ctx, f.schedule.ID)
	assert.Empty(t, seats)
}

func TestSchedulesFilterAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc, _ := f.store.ScheduleByID(ctx, f.schedule.ID)
	_, err := f.store.CreateSchedule(ctx, models.Schedule{CartID: sc.CartID, TravelDate: "2026-03-01", StartTime: "07:00:00", DropTime: "07:30:00"}, []string{"1"})
	require.NoError(t, err)

	all, _ := f.store.Schedules(ctx, models.ScheduleFilter{TravelDate: "2026-03-01"})
	require.Len(t, all, 2)
	assert.Equal(t, "07:00:00", all[0].StartTime)

	late, _ := f.store.Schedules(ctx, models.ScheduleFilter{TravelDate: "2026-03-01", StartAfter: "07:00:00"})
	require.Len(t, late, 1)
	assert.Equal(t, f.schedule.ID, late[0].ID)

	mine, _ := f.store.Schedules(ctx, models.ScheduleFilter{DriverID: f.driver.ID})
	assert.Len(t, mine, 2)
}

func TestRoutesServingUsesFirstVisitOfRepeatedStop(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, _ := s.CreateStop(ctx, models.Stop{Name: "A"})
	b, _ := s.CreateStop(ctx, models.Stop{Name: "B"})
	c, _ := s.CreateStop(ctx, models.Stop{Name: "C"})
	loop, err := s.CreateRoute(ctx, models.Route{Name: "Loop"}, []int64{a.ID, b.ID, c.ID, a.ID}, nil)
	require.NoError(t, err)

	got, err := s.RoutesServing(ctx, a.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{loop.ID}, got)

	// A is indexed at its first visit, so C never comes before it.
	got, err = s.RoutesServing(ctx, c.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
