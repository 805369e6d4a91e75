package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gocart/internal/clock"
	"gocart/internal/domain"
	"gocart/internal/domain/models"
	"gocart/internal/events"
	"gocart/internal/fare"
	"gocart/internal/geo"
	"gocart/internal/metrics"
	"gocart/internal/repositories"
	"gocart/internal/session"
	"gocart/internal/topology"
	"gocart/internal/utils"

	"github.com/shopspring/decimal"
)

const DefaultPendingTTL = 15 * time.Minute

// ReservationService drives one user's booking flow:
// search, seat selection, pending booking, payment.
type ReservationService struct {
	Catalog    repositories.Catalog
	Seats      repositories.SeatInventory
	Bookings   repositories.BookingStore
	Sessions   session.Store
	Clock      clock.Clock
	Events     events.Publisher
	Metrics    *metrics.Metrics
	PendingTTL time.Duration
	RequestID  string
}

type SearchInput struct {
	From       string `json:"from"`
	To         string `json:"to"`
	TravelDate string `json:"travel_date"`
}

type TripOption struct {
	models.ScheduleDetail
	FarePerSeat decimal.Decimal `json:"fare_per_seat"`
}

type SearchResult struct {
	From       models.Stop  `json:"from"`
	To         models.Stop  `json:"to"`
	TravelDate string       `json:"travel_date"`
	Trips      []TripOption `json:"trips"`
}

type SeatMap struct {
	Schedule    models.ScheduleDetail `json:"schedule"`
	Seats       []models.SeatLayout   `json:"seats"`
	BookedSeats []string              `json:"booked_seats"`
	// HeldSeats are claimed by pending bookings and may free up on expiry.
	HeldSeats []string `json:"held_seats"`
	Selected  []int64  `json:"selected_seat_ids"`
}

type TrackView struct {
	Schedule models.ScheduleDetail `json:"schedule"`
	Stops    []models.Stop         `json:"stops"`
	Polyline string                `json:"polyline"`
}

type ConfirmView struct {
	Schedule    models.ScheduleDetail `json:"schedule"`
	From        models.Stop           `json:"from"`
	To          models.Stop           `json:"to"`
	Seats       []models.SeatLayout   `json:"seats"`
	FarePerSeat decimal.Decimal       `json:"fare_per_seat"`
	Total       *decimal.Decimal      `json:"total"`
}

type PaymentView struct {
	Booking     models.Booking         `json:"booking"`
	Schedule    models.ScheduleDetail  `json:"schedule"`
	From        models.Stop            `json:"from"`
	To          models.Stop            `json:"to"`
	Preselected domain.PaymentMethod   `json:"preselected_method,omitempty"`
	Methods     []domain.PaymentMethod `json:"methods"`
}

// PaymentMethods lists accepted wallets in display order.
var PaymentMethods = []domain.PaymentMethod{domain.PaymentBkash, domain.PaymentNagad, domain.PaymentRocket}

func (s ReservationService) now() time.Time {
	if s.Clock == nil {
		return clock.RealClock{}.Now()
	}
	return s.Clock.Now()
}

func (s ReservationService) publisher() events.Publisher {
	if s.Events == nil {
		return events.Nop{}
	}
	return s.Events
}

func (s ReservationService) pendingTTL() time.Duration {
	if s.PendingTTL > 0 {
		return s.PendingTTL
	}
	return DefaultPendingTTL
}

func (s ReservationService) calculator() fare.Calculator {
	return fare.Calculator{Routes: topology.Store{Source: s.Catalog}, Fares: s.Catalog}
}

func (s ReservationService) publish(b models.Booking) {
	if err := s.publisher().Publish(events.FromBooking(b, s.now())); err != nil {
		utils.LogEvent(s.RequestID, "booking", "publish", fmt.Sprintf("booking_id=%d status=%s err=%v", b.ID, b.Status, err))
	}
}

func (s ReservationService) stopByName(ctx context.Context, field, name string) (models.Stop, error) {
	name = utils.NormalizeSpace(name)
	if name == "" {
		return models.Stop{}, domain.ValidationError{Field: field, Msg: "stop name required", Step: domain.StepSearch}
	}
	stop, err := s.Catalog.StopByName(ctx, name)
	if err != nil {
		if domain.IsNotFound(err) {
			return models.Stop{}, domain.ValidationError{Field: field, Msg: "unknown stop " + name, Step: domain.StepSearch, Err: err}
		}
		return models.Stop{}, err
	}
	return stop, nil
}

// Search stores the stop pair in the user's session and lists the trips of
// travel date that serve from before to. For today only trips that have not
// started yet are listed.
func (s ReservationService) Search(ctx context.Context, userID int64, in SearchInput) (SearchResult, error) {
	from, err := s.stopByName(ctx, "from", in.From)
	if err != nil {
		return SearchResult{}, err
	}
	to, err := s.stopByName(ctx, "to", in.To)
	if err != nil {
		return SearchResult{}, err
	}
	now := s.now()
	day, err := utils.ParseDate(in.TravelDate, now.Location())
	if err != nil {
		return SearchResult{}, domain.ValidationError{Field: "travel_date", Msg: "must be YYYY-MM-DD", Step: domain.StepSearch, Err: err}
	}
	date := utils.FormatDate(day)

	s.Sessions.Set(userID, session.Selection{FromStopID: from.ID, ToStopID: to.ID, TravelDate: date})

	out := SearchResult{From: from, To: to, TravelDate: date, Trips: []TripOption{}}
	routeIDs, err := s.Catalog.RoutesServing(ctx, from.ID, to.ID)
	if err != nil {
		return SearchResult{}, err
	}
	if len(routeIDs) == 0 {
		utils.LogEvent(s.RequestID, "search", "routes", fmt.Sprintf("from=%d to=%d no route", from.ID, to.ID))
		return out, nil
	}

	filter := models.ScheduleFilter{TravelDate: date, RouteIDs: routeIDs}
	if date == utils.FormatDate(now) {
		filter.StartAfter = utils.FormatClock(now)
	}
	schedules, err := s.Catalog.Schedules(ctx, filter)
	if err != nil {
		return SearchResult{}, err
	}

	calc := s.calculator()
	fares := map[int64]decimal.Decimal{}
	for _, sc := range schedules {
		perSeat, ok := fares[sc.Route.ID]
		if !ok {
			perSeat, err = calc.PerSeat(ctx, sc.Route.ID, from.ID, to.ID)
			if err != nil {
				return SearchResult{}, err
			}
			fares[sc.Route.ID] = perSeat
		}
		out.Trips = append(out.Trips, TripOption{ScheduleDetail: sc, FarePerSeat: perSeat})
	}
	utils.LogEvent(s.RequestID, "search", "trips", fmt.Sprintf("from=%d to=%d date=%s found=%d", from.ID, to.ID, date, len(out.Trips)))
	return out, nil
}

func (s ReservationService) SeatMap(ctx context.Context, userID, scheduleID int64) (SeatMap, error) {
	sc, err := s.Catalog.ScheduleByID(ctx, scheduleID)
	if err != nil {
		return SeatMap{}, err
	}
	seats, err := s.Seats.SeatLayout(ctx, scheduleID)
	if err != nil {
		return SeatMap{}, err
	}
	booked, err := s.Seats.BookedSeatNumbers(ctx, scheduleID)
	if err != nil {
		return SeatMap{}, err
	}
	out := SeatMap{Schedule: sc, Seats: seats, BookedSeats: booked, HeldSeats: []string{}, Selected: []int64{}}
	for _, seat := range seats {
		if !seat.IsBooked && seat.HoldBookingID != nil {
			out.HeldSeats = append(out.HeldSeats, seat.SeatNumber)
		}
	}
	if sel, ok := s.Sessions.Get(userID); ok {
		if ids := sel.SeatsFor(scheduleID); len(ids) > 0 {
			out.Selected = ids
		}
	}
	return out, nil
}

// Track returns the stops of the schedule's route with an encoded polyline.
func (s ReservationService) Track(ctx context.Context, scheduleID int64) (TrackView, error) {
	sc, err := s.Catalog.ScheduleByID(ctx, scheduleID)
	if err != nil {
		return TrackView{}, err
	}
	route, err := topology.Store{Source: s.Catalog}.Route(ctx, sc.Route.ID)
	if err != nil {
		return TrackView{}, err
	}
	stops := route.Stops()
	return TrackView{Schedule: sc, Stops: stops, Polyline: geo.EncodePath(stops)}, nil
}

// SelectSeats checks the seats are free and stores them in the session.
// The check is advisory; PlaceBooking claims atomically.
func (s ReservationService) SelectSeats(ctx context.Context, userID, scheduleID int64, seatIDs []int64) (session.Selection, error) {
	if _, err := s.Catalog.ScheduleByID(ctx, scheduleID); err != nil {
		return session.Selection{}, err
	}
	ids := utils.UniqueIDs(seatIDs)
	if len(ids) == 0 {
		return session.Selection{}, domain.ValidationError{Field: "seat_ids", Msg: "select at least one seat", Step: domain.StepSeats}
	}
	rows, err := s.Seats.SeatsByIDs(ctx, scheduleID, ids)
	if err != nil {
		return session.Selection{}, err
	}
	if len(rows) != len(ids) {
		return session.Selection{}, domain.ValidationError{Field: "seat_ids", Msg: "seat does not belong to this trip", Step: domain.StepSeats}
	}
	taken := []int64{}
	for _, seat := range rows {
		if !seat.Available() {
			taken = append(taken, seat.ID)
		}
	}
	if len(taken) > 0 {
		utils.LogEvent(s.RequestID, "booking", "select_seats", fmt.Sprintf("schedule_id=%d taken=%v", scheduleID, taken))
		return session.Selection{}, domain.ConflictError{Resource: "seat", SeatIDs: taken, Step: domain.StepSeats}
	}

	var out session.Selection
	s.Sessions.Update(userID, func(sel *session.Selection) {
		sel.ScheduleID = scheduleID
		sel.SeatIDs = ids
		out = *sel
	})
	return out, nil
}

func (s ReservationService) stopPair(ctx context.Context, sel session.Selection) (models.Stop, models.Stop, error) {
	if !sel.HasStopPair() {
		return models.Stop{}, models.Stop{}, domain.ValidationError{Field: "stops", Msg: "search for a trip first", Step: domain.StepSearch}
	}
	from, err := s.Catalog.StopByID(ctx, sel.FromStopID)
	if err != nil {
		return models.Stop{}, models.Stop{}, err
	}
	to, err := s.Catalog.StopByID(ctx, sel.ToStopID)
	if err != nil {
		return models.Stop{}, models.Stop{}, err
	}
	return from, to, nil
}

// ConfirmView prices the current selection without claiming anything.
func (s ReservationService) ConfirmView(ctx context.Context, userID, scheduleID int64) (ConfirmView, error) {
	sc, err := s.Catalog.ScheduleByID(ctx, scheduleID)
	if err != nil {
		return ConfirmView{}, err
	}
	sel, _ := s.Sessions.Get(userID)
	from, to, err := s.stopPair(ctx, sel)
	if err != nil {
		return ConfirmView{}, err
	}
	perSeat, err := s.calculator().PerSeat(ctx, sc.Route.ID, from.ID, to.ID)
	if err != nil {
		return ConfirmView{}, err
	}
	out := ConfirmView{Schedule: sc, From: from, To: to, Seats: []models.SeatLayout{}, FarePerSeat: perSeat}
	if ids := sel.SeatsFor(scheduleID); len(ids) > 0 {
		seats, err := s.Seats.SeatsByIDs(ctx, scheduleID, ids)
		if err != nil {
			return ConfirmView{}, err
		}
		out.Seats = seats
		total := fare.Total(perSeat, len(ids))
		out.Total = &total
	}
	return out, nil
}

// PlaceBooking claims the selected seats as one pending booking. method is
// remembered for the payment step when it names an accepted wallet.
func (s ReservationService) PlaceBooking(ctx context.Context, userID, scheduleID int64, method string) (models.Booking, error) {
	sc, err := s.Catalog.ScheduleByID(ctx, scheduleID)
	if err != nil {
		return models.Booking{}, err
	}
	sel, _ := s.Sessions.Get(userID)
	seatIDs := sel.SeatsFor(scheduleID)
	if len(seatIDs) == 0 {
		return models.Booking{}, domain.ValidationError{Field: "seat_ids", Msg: "no seats selected", Step: domain.StepSeats}
	}
	if !sel.HasStopPair() {
		return models.Booking{}, domain.ValidationError{Field: "stops", Msg: "search for a trip first", Step: domain.StepSearch}
	}

	perSeat, err := s.calculator().PerSeat(ctx, sc.Route.ID, sel.FromStopID, sel.ToStopID)
	if err != nil {
		return models.Booking{}, err
	}
	now := s.now()
	res, err := s.Bookings.CreatePending(ctx, models.NewBooking{
		StudentID:  userID,
		ScheduleID: scheduleID,
		FromStopID: sel.FromStopID,
		ToStopID:   sel.ToStopID,
		SeatIDs:    seatIDs,
		Fare:       fare.Total(perSeat, len(seatIDs)),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.pendingTTL()),
	})
	if err != nil {
		return models.Booking{}, err
	}
	if !res.AllReserved() {
		s.Metrics.Booking(metrics.OutcomeConflict)
		utils.LogEvent(s.RequestID, "booking", "create_pending", fmt.Sprintf("schedule_id=%d user_id=%d conflicts=%v", scheduleID, userID, res.Conflicts))
		return models.Booking{}, domain.ConflictError{Resource: "seat", SeatIDs: res.Conflicts, Step: domain.StepSeats}
	}

	s.Sessions.Update(userID, func(sel *session.Selection) {
		sel.SeatIDs = nil
		if m, ok := domain.ParsePaymentMethod(method); ok {
			sel.PaymentMethod = m
		}
	})
	b := res.Booking
	s.Metrics.Booking(metrics.OutcomePending)
	utils.LogEvent(s.RequestID, "booking", "create_pending", fmt.Sprintf("booking_id=%d schedule_id=%d seats=%v fare=%s", b.ID, scheduleID, b.SeatIDs, utils.FormatMoney(b.Fare)))
	s.publish(b)
	return b, nil
}

// ownedBooking hides bookings of other users behind NotFound.
func (s ReservationService) ownedBooking(ctx context.Context, userID, bookingID int64) (models.Booking, error) {
	b, err := s.Bookings.Booking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	if b.StudentID != userID {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: bookingID}
	}
	return b, nil
}

func (s ReservationService) PaymentView(ctx context.Context, userID, bookingID int64) (PaymentView, error) {
	b, err := s.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		return PaymentView{}, err
	}
	sc, err := s.Catalog.ScheduleByID(ctx, b.ScheduleID)
	if err != nil {
		return PaymentView{}, err
	}
	from, err := s.Catalog.StopByID(ctx, b.FromStopID)
	if err != nil {
		return PaymentView{}, err
	}
	to, err := s.Catalog.StopByID(ctx, b.ToStopID)
	if err != nil {
		return PaymentView{}, err
	}
	out := PaymentView{Booking: b, Schedule: sc, From: from, To: to, Methods: PaymentMethods}
	if m, ok := domain.ParsePaymentMethod(b.PaymentID); ok {
		out.Preselected = m
	} else if sel, ok := s.Sessions.Get(userID); ok {
		out.Preselected = sel.PaymentMethod
	}
	return out, nil
}

// ConfirmPayment confirms the caller's pending booking with method.
func (s ReservationService) ConfirmPayment(ctx context.Context, userID, bookingID int64, method string) (models.Booking, error) {
	m, ok := domain.ParsePaymentMethod(method)
	if !ok {
		return models.Booking{}, domain.ValidationError{Field: "payment_method", Msg: "choose bkash, nagad or rocket", Step: domain.StepPayment}
	}
	b, err := s.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	return s.confirm(ctx, b, m)
}

// ConfirmPaymentEvent applies a payment confirmation from the relay. It has
// no caller identity, so ownership is not checked.
func (s ReservationService) ConfirmPaymentEvent(ctx context.Context, msg events.PaymentConfirmed) error {
	m, ok := domain.ParsePaymentMethod(msg.Method)
	if !ok {
		return domain.ValidationError{Field: "method", Msg: "unknown payment method " + strings.TrimSpace(msg.Method)}
	}
	b, err := s.Bookings.Booking(ctx, msg.BookingID)
	if err != nil {
		return err
	}
	_, err = s.confirm(ctx, b, m)
	return err
}

func (s ReservationService) confirm(ctx context.Context, before models.Booking, m domain.PaymentMethod) (models.Booking, error) {
	b, err := s.Bookings.Confirm(ctx, before.ID, string(m), s.now())
	if err != nil {
		var ce domain.ConflictError
		if errors.As(err, &ce) && before.Status == domain.StatusPending {
			s.afterExpiry(ctx, before.ID)
		}
		utils.LogEvent(s.RequestID, "payment", "confirm", fmt.Sprintf("booking_id=%d method=%s err=%v", before.ID, m, err))
		return models.Booking{}, err
	}
	if before.Status == domain.StatusConfirmed {
		return b, nil
	}
	s.settleSelection(b, m)
	s.Metrics.Booking(metrics.OutcomeConfirmed)
	utils.LogEvent(s.RequestID, "payment", "confirm", fmt.Sprintf("booking_id=%d method=%s seats=%v", b.ID, m, b.SeatIDs))
	s.publish(b)
	return b, nil
}

// settleSelection drops what the session still holds for the confirmed
// booking: its preselected method and any of its seats still listed for the
// same schedule. A newer search or seat selection is left in place.
func (s ReservationService) settleSelection(b models.Booking, m domain.PaymentMethod) {
	if _, ok := s.Sessions.Get(b.StudentID); !ok {
		return
	}
	booked := make(map[int64]bool, len(b.SeatIDs))
	for _, id := range b.SeatIDs {
		booked[id] = true
	}
	s.Sessions.Update(b.StudentID, func(sel *session.Selection) {
		if sel.PaymentMethod == m {
			sel.PaymentMethod = ""
		}
		if sel.ScheduleID != b.ScheduleID || len(sel.SeatIDs) == 0 {
			return
		}
		kept := sel.SeatIDs[:0]
		for _, id := range sel.SeatIDs {
			if !booked[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		sel.SeatIDs = kept
	})
}

// afterExpiry reports a pending booking the store cancelled during confirm.
func (s ReservationService) afterExpiry(ctx context.Context, bookingID int64) {
	b, err := s.Bookings.Booking(ctx, bookingID)
	if err != nil || b.Status != domain.StatusCancelled {
		return
	}
	s.Metrics.Booking(metrics.OutcomeExpired)
	s.publish(b)
}

// Cancel cancels a pending booking and releases its seats.
func (s ReservationService) Cancel(ctx context.Context, bookingID int64) (models.Booking, error) {
	before, err := s.Bookings.Booking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	b, err := s.Bookings.Cancel(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	if before.Status == domain.StatusPending {
		s.Metrics.Booking(metrics.OutcomeCancelled)
		utils.LogEvent(s.RequestID, "booking", "cancel", fmt.Sprintf("booking_id=%d seats=%v", b.ID, b.SeatIDs))
		s.publish(b)
	}
	return b, nil
}
