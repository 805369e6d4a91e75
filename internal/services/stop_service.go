package services

import (
	"context"
	"sync"

	"gocart/internal/domain/models"
	"gocart/internal/geo"
	"gocart/internal/repositories"
)

const (
	DefaultNearbyRadiusM = 500.0
	MaxNearbyRadiusM     = 5000.0
	nearbyLimit          = 20
)

// StopService answers stop lookups. The spatial index is built on first use;
// stops do not change while the process runs.
type StopService struct {
	Catalog repositories.Catalog

	mu    sync.Mutex
	index *geo.StopIndex
}

func (s *StopService) Stops(ctx context.Context) ([]models.Stop, error) {
	return s.Catalog.Stops(ctx)
}

func (s *StopService) stopIndex(ctx context.Context) (*geo.StopIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return s.index, nil
	}
	stops, err := s.Catalog.Stops(ctx)
	if err != nil {
		return nil, err
	}
	s.index = geo.NewStopIndex(stops)
	return s.index, nil
}

// Nearby lists stops within radius meters of lat/lng, nearest first.
func (s *StopService) Nearby(ctx context.Context, lat, lng, radius float64) ([]geo.NearbyStop, error) {
	if radius <= 0 {
		radius = DefaultNearbyRadiusM
	}
	if radius > MaxNearbyRadiusM {
		radius = MaxNearbyRadiusM
	}
	idx, err := s.stopIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Nearby(lat, lng, radius, nearbyLimit), nil
}
