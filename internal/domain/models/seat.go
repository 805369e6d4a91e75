package models

import (
	"sort"
	"strconv"
)

// SeatLayout is one physical seat of a schedule.
type SeatLayout struct {
	ID            int64  `json:"id"`
	ScheduleID    int64  `json:"schedule_id"`
	SeatNumber    string `json:"seat_number"`
	IsBooked      bool   `json:"is_booked"`
	BookedBy      *int64 `json:"booked_by,omitempty"`
	HoldBookingID *int64 `json:"hold_booking_id,omitempty"`
	Version       int64  `json:"version"`
}

// Available reports whether the seat is neither booked nor held by a pending booking.
func (s SeatLayout) Available() bool {
	return !s.IsBooked && s.HoldBookingID == nil
}

// SortSeats orders seats by seat number, numerically when both numbers are integers.
func SortSeats(seats []SeatLayout) {
	sort.SliceStable(seats, func(i, j int) bool {
		return SeatNumberLess(seats[i].SeatNumber, seats[j].SeatNumber)
	})
}

func SeatNumberLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}

func SortSeatNumbers(nums []string) {
	sort.SliceStable(nums, func(i, j int) bool { return SeatNumberLess(nums[i], nums[j]) })
}
