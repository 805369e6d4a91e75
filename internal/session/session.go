// Package session keeps each user's in-progress booking selection between
// requests. Entries are keyed by user id and expire after a period of
// inactivity.
package session

import (
	"sync"
	"time"

	"gocart/internal/clock"
	"gocart/internal/domain"
)

// Selection is the scratch state of one booking flow.
type Selection struct {
	FromStopID    int64                `json:"from_stop_id,omitempty"`
	ToStopID      int64                `json:"to_stop_id,omitempty"`
	TravelDate    string               `json:"travel_date,omitempty"`
	ScheduleID    int64                `json:"schedule_id,omitempty"`
	SeatIDs       []int64              `json:"seat_ids,omitempty"`
	PaymentMethod domain.PaymentMethod `json:"payment_method,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// HasStopPair reports whether the search step stored a from/to pair.
func (s Selection) HasStopPair() bool {
	return s.FromStopID > 0 && s.ToStopID > 0
}

// SeatsFor returns the selected seats when they were chosen for scheduleID.
func (s Selection) SeatsFor(scheduleID int64) []int64 {
	if s.ScheduleID != scheduleID {
		return nil
	}
	return s.SeatIDs
}

func (s Selection) clone() Selection {
	if s.SeatIDs != nil {
		s.SeatIDs = append([]int64{}, s.SeatIDs...)
	}
	return s
}

type Store interface {
	Get(userID int64) (Selection, bool)
	Set(userID int64, sel Selection)
	Update(userID int64, fn func(*Selection))
	Clear(userID int64)
}

// MemoryStore is a Store with idle expiry.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]Selection
	ttl     time.Duration
	clock   clock.Clock

	cleanupTick *time.Ticker
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewMemoryStore starts a janitor that sweeps expired entries every
// interval. A non-positive interval disables the janitor; expired entries
// are still hidden on read.
func NewMemoryStore(ttl, interval time.Duration, clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.RealClock{}
	}
	s := &MemoryStore{
		entries:  make(map[int64]Selection),
		ttl:      ttl,
		clock:    clk,
		stopChan: make(chan struct{}),
	}
	if interval > 0 {
		s.cleanupTick = time.NewTicker(interval)
		go s.cleanup()
	}
	return s
}

func (s *MemoryStore) expired(sel Selection, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sel.UpdatedAt) > s.ttl
}

func (s *MemoryStore) Get(userID int64) (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.entries[userID]
	if !ok {
		return Selection{}, false
	}
	if s.expired(sel, s.clock.Now()) {
		delete(s.entries, userID)
		return Selection{}, false
	}
	return sel.clone(), true
}

func (s *MemoryStore) Set(userID int64, sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel = sel.clone()
	sel.UpdatedAt = s.clock.Now()
	s.entries[userID] = sel
}

// Update applies fn to the current selection (zero if absent or expired)
// and stores the result.
func (s *MemoryStore) Update(userID int64, fn func(*Selection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	sel, ok := s.entries[userID]
	if !ok || s.expired(sel, now) {
		sel = Selection{}
	}
	sel = sel.clone()
	fn(&sel)
	sel.UpdatedAt = now
	s.entries[userID] = sel
}

func (s *MemoryStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

// Len counts stored entries, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) cleanupOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for id, sel := range s.entries {
		if s.expired(sel, now) {
			delete(s.entries, id)
		}
	}
}

func (s *MemoryStore) cleanup() {
	for {
		select {
		case <-s.cleanupTick.C:
			s.cleanupOnce()
		case <-s.stopChan:
			return
		}
	}
}

// Stop ends the janitor. Safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.cleanupTick != nil {
			s.cleanupTick.Stop()
		}
	})
}
