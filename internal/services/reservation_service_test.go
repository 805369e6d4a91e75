package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gocart/internal/clock"
	"gocart/internal/domain"
	"gocart/internal/domain/models"
	"gocart/internal/events"
	"gocart/internal/metrics"
	"gocart/internal/repositories/memory"
	"gocart/internal/session"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dhaka = time.FixedZone("BDT", 6*60*60)

type fixture struct {
	store    *memory.Store
	clock    *clock.MockClock
	sessions *session.MemoryStore
	events   *events.Recorder
	metrics  *metrics.Metrics

	student models.User
	other   models.User
	driver  models.User
	a, b, c models.Stop
	offline models.Stop

	today    models.Schedule // 10:00 today, seats 1..3
	tomorrow models.Schedule
	seats    []models.SeatLayout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	f := &fixture{
		store:   st,
		clock:   clock.NewMockClock(time.Date(2026, 3, 10, 9, 0, 0, 0, dhaka)),
		events:  &events.Recorder{},
		metrics: metrics.New(),
	}
	f.sessions = session.NewMemoryStore(30*time.Minute, 0, f.clock)

	var err error
	f.student, err = st.CreateUser(ctx, models.User{Username: "rahim", Role: domain.RoleStudent})
	require.NoError(t, err)
	f.other, err = st.CreateUser(ctx, models.User{Username: "karim", Role: domain.RoleStudent})
	require.NoError(t, err)
	f.driver, err = st.CreateUser(ctx, models.User{Username: "driver1", Role: domain.RoleDriver})
	require.NoError(t, err)

	f.a, _ = st.CreateStop(ctx, models.Stop{Name: "Library", Lat: 23.7800, Lng: 90.4070})
	f.b, _ = st.CreateStop(ctx, models.Stop{Name: "Hall", Lat: 23.7830, Lng: 90.4100})
	f.c, _ = st.CreateStop(ctx, models.Stop{Name: "Gate", Lat: 23.7870, Lng: 90.4150})
	f.offline, _ = st.CreateStop(ctx, models.Stop{Name: "Depot", Lat: 23.7000, Lng: 90.3000})

	route, err := st.CreateRoute(ctx, models.Route{Name: "Campus loop"}, []int64{f.a.ID, f.b.ID, f.c.ID}, []models.RouteFare{
		{FromStopID: f.a.ID, ToStopID: f.b.ID, Fare: decimal.NewFromInt(10)},
		{FromStopID: f.b.ID, ToStopID: f.c.ID, Fare: decimal.NewFromInt(15)},
	})
	require.NoError(t, err)
	cart, err := st.CreateCart(ctx, models.Cart{NumberPlate: "GC-01", DriverID: f.driver.ID, RouteID: route.ID, Capacity: 3})
	require.NoError(t, err)

	seats := []string{"1", "2", "3"}
	_, err = st.CreateSchedule(ctx, models.Schedule{CartID: cart.ID, TravelDate: "2026-03-10", StartTime: "08:00:00", DropTime: "08:30:00"}, seats)
	require.NoError(t, err)
	_, err = st.CreateSchedule(ctx, models.Schedule{CartID: cart.ID, TravelDate: "2026-03-10", StartTime: "09:00:00", DropTime: "09:30:00"}, seats)
	require.NoError(t, err)
	f.today, err = st.CreateSchedule(ctx, models.Schedule{CartID: cart.ID, TravelDate: "2026-03-10", StartTime: "10:00:00", DropTime: "10:30:00"}, seats)
	require.NoError(t, err)
	f.tomorrow, err = st.CreateSchedule(ctx, models.Schedule{CartID: cart.ID, TravelDate: "2026-03-11", StartTime: "07:00:00", DropTime: "07:30:00"}, seats)
	require.NoError(t, err)

	f.seats, err = st.SeatLayout(ctx, f.today.ID)
	require.NoError(t, err)
	require.Len(t, f.seats, 3)
	return f
}

func (f *fixture) svc() ReservationService {
	return ReservationService{
		Catalog:    f.store,
		Seats:      f.store,
		Bookings:   f.store,
		Sessions:   f.sessions,
		Clock:      f.clock,
		Events:     f.events,
		Metrics:    f.metrics,
		PendingTTL: 15 * time.Minute,
	}
}

func (f *fixture) seatID(number string) int64 {
	for _, s := range f.seats {
		if s.SeatNumber == number {
			return s.ID
		}
	}
	return 0
}

// book runs search, selection and pending booking for userID on today's trip.
func (f *fixture) book(t *testing.T, userID int64, method string, numbers ...string) models.Booking {
	t.Helper()
	ctx := context.Background()
	svc := f.svc()
	_, err := svc.Search(ctx, userID, SearchInput{From: f.a.Name, To: f.c.Name, TravelDate: "2026-03-10"})
	require.NoError(t, err)
	ids := make([]int64, 0, len(numbers))
	for _, n := range numbers {
		ids = append(ids, f.seatID(n))
	}
	_, err = svc.SelectSeats(ctx, userID, f.today.ID, ids)
	require.NoError(t, err)
	b, err := svc.PlaceBooking(ctx, userID, f.today.ID, method)
	require.NoError(t, err)
	return b
}

func (f *fixture) seat(t *testing.T, number string) models.SeatLayout {
	t.Helper()
	rows, err := f.store.SeatsByIDs(context.Background(), f.today.ID, []int64{f.seatID(number)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestSearchTodayOnlyListsTripsAfterNow(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc().Search(context.Background(), f.student.ID, SearchInput{From: "Library", To: "Gate", TravelDate: "2026-03-10"})
	require.NoError(t, err)

	require.Len(t, res.Trips, 1)
	assert.Equal(t, f.today.ID, res.Trips[0].ID)
	assert.True(t, decimal.NewFromInt(25).Equal(res.Trips[0].FarePerSeat))

	sel, ok := f.sessions.Get(f.student.ID)
	require.True(t, ok)
	assert.Equal(t, f.a.ID, sel.FromStopID)
	assert.Equal(t, f.c.ID, sel.ToStopID)
}

func TestSearchOtherDates(t *testing.T) {
	f := newFixture(t)
	svc := f.svc()
	ctx := context.Background()

	res, err := svc.Search(ctx, f.student.ID, SearchInput{From: "Library", To: "Hall", TravelDate: "2026-03-11"})
	require.NoError(t, err)
	require.Len(t, res.Trips, 1)
	assert.Equal(t, f.tomorrow.ID, res.Trips[0].ID)
	assert.True(t, decimal.NewFromInt(10).Equal(res.Trips[0].FarePerSeat))

	res, err = svc.Search(ctx, f.student.ID, SearchInput{From: "Library", To: "Gate", TravelDate: "2026-03-09"})
	require.NoError(t, err)
	assert.Empty(t, res.Trips)

	res, err = svc.Search(ctx, f.student.ID, SearchInput{From: "Gate", To: "Library", TravelDate: "2026-03-11"})
	require.NoError(t, err)
	assert.Empty(t, res.Trips)
}

func TestSearchValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.svc()
	ctx := context.Background()

	_, err := svc.Search(ctx, f.student.ID, SearchInput{From: "Nowhere", To: "Gate", TravelDate: "2026-03-10"})
	var ve domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "from", ve.Field)
	assert.Equal(t, domain.StepSearch, ve.Step)

	_, err = svc.Search(ctx, f.student.ID, SearchInput{From: "Library", To: "Gate", TravelDate: "10/03/2026"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "travel_date", ve.Field)
}

func TestSelectSeatsRejectsWholeSelectionWhenOneSeatIsBooked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.other.ID, "", "2")
	_, err := f.svc().ConfirmPayment(ctx, f.other.ID, b.ID, "nagad")
	require.NoError(t, err)

	_, err = f.svc().SelectSeats(ctx, f.student.ID, f.today.ID, []int64{f.seatID("1"), f.seatID("2")})
	var ce domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []int64{f.seatID("2")}, ce.SeatIDs)
	assert.Equal(t, domain.StepSeats, ce.Step)

	sel, _ := f.sessions.Get(f.student.ID)
	assert.Empty(t, sel.SeatsFor(f.today.ID))
}

func TestSelectSeatsValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.svc()

	_, err := svc.SelectSeats(ctx, f.student.ID, f.today.ID, nil)
	assert.True(t, domain.IsValidation(err))

	foreign, err := f.store.SeatLayout(ctx, f.tomorrow.ID)
	require.NoError(t, err)
	_, err = svc.SelectSeats(ctx, f.student.ID, f.today.ID, []int64{foreign[0].ID})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.SelectSeats(ctx, f.student.ID, 9999, []int64{f.seatID("1")})
	assert.True(t, domain.IsNotFound(err))
}

func TestPlaceBookingPricesSeatsAndRemembersMethod(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.student.ID, "Rocket", "1", "3")

	assert.Equal(t, domain.StatusPending, b.Status)
	assert.True(t, decimal.NewFromInt(50).Equal(b.Fare))
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), b.ExpiresAt)
	assert.False(t, f.seat(t, "1").Available())
	assert.False(t, f.seat(t, "1").IsBooked)

	sel, ok := f.sessions.Get(f.student.ID)
	require.True(t, ok)
	assert.Empty(t, sel.SeatIDs)
	assert.Equal(t, domain.PaymentRocket, sel.PaymentMethod)
	assert.Equal(t, []string{"pending"}, f.events.Statuses())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingsTotal.WithLabelValues(metrics.OutcomePending)))
}

func TestPlaceBookingNeedsSelectionAndStopPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.svc()

	_, err := svc.PlaceBooking(ctx, f.student.ID, f.today.ID, "")
	var ve domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, domain.StepSeats, ve.Step)

	_, err = svc.SelectSeats(ctx, f.student.ID, f.today.ID, []int64{f.seatID("1")})
	require.NoError(t, err)
	_, err = svc.PlaceBooking(ctx, f.student.ID, f.today.ID, "")
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, domain.StepSearch, ve.Step)
}

func TestPlaceBookingConcurrentClaimsOnOneSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.svc()
	users := []int64{f.student.ID, f.other.ID}
	for _, u := range users {
		_, err := svc.Search(ctx, u, SearchInput{From: "Library", To: "Gate", TravelDate: "2026-03-10"})
		require.NoError(t, err)
		_, err = svc.SelectSeats(ctx, u, f.today.ID, []int64{f.seatID("2")})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i int, u int64) {
			defer wg.Done()
			_, errs[i] = svc.PlaceBooking(ctx, u, f.today.ID, "")
		}(i, u)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case domain.IsConflict(err):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	pending, err := f.store.Bookings(ctx, models.BookingFilter{ScheduleID: f.today.ID})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestConfirmPaymentFinalizesSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	res, err := f.store.CreatePending(ctx, models.NewBooking{
		StudentID: f.student.ID, ScheduleID: f.today.ID, FromStopID: f.a.ID, ToStopID: f.c.ID,
		SeatIDs: []int64{f.seatID("1"), f.seatID("3")}, Fare: decimal.NewFromInt(25),
		CreatedAt: now, ExpiresAt: now.Add(15 * time.Minute),
	})
	require.NoError(t, err)
	require.True(t, res.AllReserved())
	f.sessions.Set(f.student.ID, session.Selection{
		FromStopID: f.a.ID, ToStopID: f.c.ID, ScheduleID: f.today.ID,
		SeatIDs: []int64{f.seatID("1"), f.seatID("2")}, PaymentMethod: domain.PaymentBkash,
	})

	b, err := f.svc().ConfirmPayment(ctx, f.student.ID, res.Booking.ID, "bkash")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, b.Status)
	assert.Equal(t, "bkash", b.PaymentID)
	assert.True(t, decimal.NewFromInt(25).Equal(b.Fare))
	for _, n := range []string{"1", "3"} {
		seat := f.seat(t, n)
		assert.True(t, seat.IsBooked, "seat %s", n)
		require.NotNil(t, seat.BookedBy)
		assert.Equal(t, f.student.ID, *seat.BookedBy)
	}
	assert.False(t, f.seat(t, "2").IsBooked)

	sel, ok := f.sessions.Get(f.student.ID)
	require.True(t, ok)
	assert.True(t, sel.HasStopPair())
	assert.Empty(t, sel.PaymentMethod)
	assert.Equal(t, []int64{f.seatID("2")}, sel.SeatIDs)
	assert.Equal(t, []string{"confirmed"}, f.events.Statuses())
}

func TestConfirmPaymentKeepsNewerSelection(t *testing.T) {
	for _, viaEvent := range []bool{false, true} {
		f := newFixture(t)
		ctx := context.Background()
		svc := f.svc()
		first := f.book(t, f.student.ID, "", "1")

		_, err := svc.Search(ctx, f.student.ID, SearchInput{From: f.a.Name, To: f.b.Name, TravelDate: "2026-03-11"})
		require.NoError(t, err)
		later, err := f.store.SeatLayout(ctx, f.tomorrow.ID)
		require.NoError(t, err)
		_, err = svc.SelectSeats(ctx, f.student.ID, f.tomorrow.ID, []int64{later[1].ID})
		require.NoError(t, err)

		if viaEvent {
			require.NoError(t, svc.ConfirmPaymentEvent(ctx, events.PaymentConfirmed{BookingID: first.ID, Method: "bkash"}))
		} else {
			_, err = svc.ConfirmPayment(ctx, f.student.ID, first.ID, "bkash")
			require.NoError(t, err)
		}

		second, err := svc.PlaceBooking(ctx, f.student.ID, f.tomorrow.ID, "")
		require.NoError(t, err, "via event: %v", viaEvent)
		assert.Equal(t, []int64{later[1].ID}, second.SeatIDs)
		assert.Equal(t, f.b.ID, second.ToStopID)
		assert.True(t, decimal.NewFromInt(10).Equal(second.Fare))
	}
}

func TestConfirmPaymentIsIdempotentForSameMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.student.ID, "", "1")
	svc := f.svc()

	_, err := svc.ConfirmPayment(ctx, f.student.ID, b.ID, "bkash")
	require.NoError(t, err)
	again, err := svc.ConfirmPayment(ctx, f.student.ID, b.ID, "bkash")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, again.Status)

	_, err = svc.ConfirmPayment(ctx, f.student.ID, b.ID, "nagad")
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, []string{"pending", "confirmed"}, f.events.Statuses())
}

func TestConfirmPaymentRejectsUnknownMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.student.ID, "", "1")

	_, err := f.svc().ConfirmPayment(ctx, f.student.ID, b.ID, "paypal")
	var ve domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, domain.StepPayment, ve.Step)

	got, err := f.store.Booking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestConfirmPaymentOnExpiredBookingCancelsIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.student.ID, "", "1", "2")
	f.clock.Advance(16 * time.Minute)

	_, err := f.svc().ConfirmPayment(ctx, f.student.ID, b.ID, "bkash")
	var ce domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.StepSearch, ce.Step)

	got, err := f.store.Booking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.True(t, f.seat(t, "1").Available())
	assert.True(t, f.seat(t, "2").Available())
	assert.Equal(t, []string{"pending", "cancelled"}, f.events.Statuses())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingsTotal.WithLabelValues(metrics.OutcomeExpired)))
}

func TestOnlyOwnerSeesBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.student.ID, "", "1")
	svc := f.svc()

	_, err := svc.PaymentView(ctx, f.other.ID, b.ID)
	assert.True(t, domain.IsNotFound(err))
	_, err = svc.ConfirmPayment(ctx, f.other.ID, b.ID, "bkash")
	assert.True(t, domain.IsNotFound(err))
}

func TestPaymentViewPreselection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.student.ID, "nagad", "1")
	svc := f.svc()

	view, err := svc.PaymentView(ctx, f.student.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentNagad, view.Preselected)
	assert.Equal(t, "Library", view.From.Name)
	assert.Equal(t, "Gate", view.To.Name)
	assert.Len(t, view.Methods, 3)

	_, err = svc.ConfirmPayment(ctx, f.student.ID, b.ID, "rocket")
	require.NoError(t, err)
	view, err = svc.PaymentView(ctx, f.student.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRocket, view.Preselected)
}

func TestConfirmView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.svc()
	_, err := svc.Search(ctx, f.student.ID, SearchInput{From: "Hall", To: "Gate", TravelDate: "2026-03-10"})
	require.NoError(t, err)

	view, err := svc.ConfirmView(ctx, f.student.ID, f.today.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Total)
	assert.True(t, decimal.NewFromInt(15).Equal(view.FarePerSeat))

	_, err = svc.SelectSeats(ctx, f.student.ID, f.today.ID, []int64{f.seatID("1"), f.seatID("2")})
	require.NoError(t, err)
	view, err = svc.ConfirmView(ctx, f.student.ID, f.today.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Total)
	assert.True(t, decimal.NewFromInt(30).Equal(*view.Total))
	assert.Len(t, view.Seats, 2)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.svc()
	pending := f.book(t, f.student.ID, "", "1")

	got, err := svc.Cancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.True(t, f.seat(t, "1").Available())

	_, err = svc.Cancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"pending", "cancelled"}, f.events.Statuses())

	confirmed := f.book(t, f.other.ID, "", "2")
	_, err = svc.ConfirmPayment(ctx, f.other.ID, confirmed.ID, "bkash")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, confirmed.ID)
	assert.True(t, domain.IsConflict(err))
}

func TestConfirmPaymentEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.student.ID, "", "3")
	svc := f.svc()

	err := svc.ConfirmPaymentEvent(ctx, events.PaymentConfirmed{BookingID: b.ID, Method: "BKASH"})
	require.NoError(t, err)
	got, err := f.store.Booking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.True(t, f.seat(t, "3").IsBooked)

	err = svc.ConfirmPaymentEvent(ctx, events.PaymentConfirmed{BookingID: b.ID, Method: "cash"})
	assert.True(t, domain.IsValidation(err))
}

func TestSeatMapAndTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.svc()
	b := f.book(t, f.other.ID, "", "2")
	_, err := svc.ConfirmPayment(ctx, f.other.ID, b.ID, "bkash")
	require.NoError(t, err)
	f.book(t, f.other.ID, "", "1")
	_, err = svc.SelectSeats(ctx, f.student.ID, f.today.ID, []int64{f.seatID("3")})
	require.NoError(t, err)

	m, err := svc.SeatMap(ctx, f.student.ID, f.today.ID)
	require.NoError(t, err)
	assert.Len(t, m.Seats, 3)
	assert.Equal(t, []string{"2"}, m.BookedSeats)
	assert.Equal(t, []string{"1"}, m.HeldSeats)
	assert.Equal(t, []int64{f.seatID("3")}, m.Selected)

	track, err := svc.Track(ctx, f.today.ID)
	require.NoError(t, err)
	require.Len(t, track.Stops, 3)
	assert.Equal(t, "Library", track.Stops[0].Name)
	assert.NotEmpty(t, track.Polyline)
}
