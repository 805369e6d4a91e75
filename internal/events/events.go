// Package events publishes booking lifecycle events and consumes payment
// confirmations over NATS.
package events

import (
	"sync"
	"time"

	"gocart/internal/domain/models"
	"gocart/internal/utils"

	"github.com/google/uuid"
)

const (
	SubjectPrefix           = "gocart.booking."
	SubjectPaymentConfirmed = "gocart.payment.confirmed"
)

type BookingEvent struct {
	ID         string    `json:"id"`
	BookingID  int64     `json:"booking_id"`
	StudentID  int64     `json:"student_id"`
	ScheduleID int64     `json:"schedule_id"`
	SeatIDs    []int64   `json:"seat_ids"`
	Fare       string    `json:"fare"`
	Status     string    `json:"status"`
	PaymentID  string    `json:"payment_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Subject is gocart.booking.<status>.
func (e BookingEvent) Subject() string {
	return SubjectPrefix + e.Status
}

// FromBooking snapshots b into an event with a fresh id.
func FromBooking(b models.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		ID:         uuid.NewString(),
		BookingID:  b.ID,
		StudentID:  b.StudentID,
		ScheduleID: b.ScheduleID,
		SeatIDs:    append([]int64{}, b.SeatIDs...),
		Fare:       utils.FormatMoney(b.Fare),
		Status:     string(b.Status),
		PaymentID:  b.PaymentID,
		OccurredAt: at,
	}
}

type Publisher interface {
	Publish(ev BookingEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(BookingEvent) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []BookingEvent
}

func (r *Recorder) Publish(ev BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []BookingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]BookingEvent{}, r.events...)
}

// Statuses lists recorded statuses in publish order.
func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Status)
	}
	return out
}
