package services

import (
	"context"
	"testing"
	"time"

	"gocart/internal/domain"
	"gocart/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaperSweepExpiresOnlyOverduePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.book(t, f.student.ID, "", "1")
	f.clock.Advance(10 * time.Minute)
	fresh := f.book(t, f.other.ID, "", "2")
	f.clock.Advance(5 * time.Minute)

	r := Reaper{Bookings: f.store, Clock: f.clock, Events: f.events, Metrics: f.metrics}
	ids, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{old.ID}, ids)

	got, err := f.store.Booking(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.True(t, f.seat(t, "1").Available())

	got, err = f.store.Booking(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, []string{"pending", "pending", "cancelled"}, f.events.Statuses())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingsTotal.WithLabelValues(metrics.OutcomeExpired)))

	ids, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReaperRunStopsWithContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Reaper{Bookings: f.store, Clock: f.clock, Interval: time.Millisecond}.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
