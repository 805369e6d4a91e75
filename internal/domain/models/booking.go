package models

import (
	"time"

	"gocart/internal/domain"

	"github.com/shopspring/decimal"
)

// Booking is one passenger reservation over one or more seats.
type Booking struct {
	ID         int64                `json:"id"`
	StudentID  int64                `json:"student_id"`
	ScheduleID int64                `json:"schedule_id"`
	FromStopID int64                `json:"from_stop_id"`
	ToStopID   int64                `json:"to_stop_id"`
	SeatIDs    []int64              `json:"seat_ids"`
	Fare       decimal.Decimal      `json:"fare"`
	Status     domain.BookingStatus `json:"status"`
	PaymentID  string               `json:"payment_id,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	ExpiresAt  time.Time            `json:"expires_at"`
}

// NewBooking is the input of an atomic seat claim.
type NewBooking struct {
	StudentID  int64
	ScheduleID int64
	FromStopID int64
	ToStopID   int64
	SeatIDs    []int64
	Fare       decimal.Decimal
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Reservation is the outcome of a claim: either the pending booking, or the
// seats that blocked it. Nothing is written when Conflicts is non-empty.
type Reservation struct {
	Booking   Booking
	Conflicts []int64
}

func (r Reservation) AllReserved() bool { return len(r.Conflicts) == 0 }

// BookingFilter narrows BookingStore.Bookings. Zero values are ignored.
type BookingFilter struct {
	StudentID  int64
	ScheduleID int64
	Statuses   []domain.BookingStatus
}
