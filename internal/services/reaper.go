package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"gocart/internal/clock"
	"gocart/internal/events"
	"gocart/internal/metrics"
	"gocart/internal/repositories"
	"gocart/internal/utils"
)

// Reaper cancels pending bookings past their deadline and frees their seats.
type Reaper struct {
	Bookings repositories.BookingStore
	Clock    clock.Clock
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Interval time.Duration
}

// Sweep runs one expiry pass and returns the cancelled booking ids.
func (r Reaper) Sweep(ctx context.Context) ([]int64, error) {
	clk := r.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	now := clk.Now()
	ids, err := r.Bookings.ExpirePending(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("expire pending: %w", err)
	}
	for _, id := range ids {
		r.Metrics.Booking(metrics.OutcomeExpired)
		if r.Events == nil {
			continue
		}
		b, err := r.Bookings.Booking(ctx, id)
		if err != nil {
			log.Printf("[REAPER] reload booking %d failed: %v", id, err)
			continue
		}
		if err := r.Events.Publish(events.FromBooking(b, now)); err != nil {
			log.Printf("[REAPER] publish booking %d failed: %v", id, err)
		}
	}
	if len(ids) > 0 {
		utils.LogEvent("", "reaper", "expire", fmt.Sprintf("cancelled=%v", ids))
	}
	return ids, nil
}

// Run sweeps every Interval until ctx is done.
func (r Reaper) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				log.Printf("[REAPER] sweep failed: %v", err)
			}
		}
	}
}
