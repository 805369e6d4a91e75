// Package topology answers ordering questions about a route's stop sequence.
//
// A stop pair that is absent from the route, or ordered backwards, is not an
// error: it yields an empty span, which callers price at zero and render as
// an empty path.
package topology

import (
	"context"
	"sort"

	"gocart/internal/domain/models"
)

// Route is an immutable ordered stop sequence.
type Route struct {
	ID    int64
	stops []models.Stop
	index map[int64]int
}

// New sorts routeStops by Order and builds the stop index. If a stop appears
// twice the first position wins.
func New(routeID int64, routeStops []models.RouteStop) Route {
	rs := make([]models.RouteStop, len(routeStops))
	copy(rs, routeStops)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Order < rs[j].Order })

	r := Route{
		ID:    routeID,
		stops: make([]models.Stop, 0, len(rs)),
		index: make(map[int64]int, len(rs)),
	}
	for _, s := range rs {
		if _, dup := r.index[s.Stop.ID]; !dup {
			r.index[s.Stop.ID] = len(r.stops)
		}
		r.stops = append(r.stops, s.Stop)
	}
	return r
}

// Stops returns a copy of the ordered stops.
func (r Route) Stops() []models.Stop {
	out := make([]models.Stop, len(r.stops))
	copy(out, r.stops)
	return out
}

func (r Route) Len() int { return len(r.stops) }

func (r Route) StopAt(i int) models.Stop { return r.stops[i] }

func (r Route) IndexOf(stopID int64) (int, bool) {
	i, ok := r.index[stopID]
	return i, ok
}

func (r Route) Contains(stopID int64) bool {
	_, ok := r.index[stopID]
	return ok
}

// IsBefore reports indexOf(a) < indexOf(b); false when either stop is absent.
func (r Route) IsBefore(a, b int64) bool {
	_, _, ok := r.Span(a, b)
	return ok
}

// Span resolves the indices of from and to. ok is false unless both are on
// the route and from comes strictly before to.
func (r Route) Span(from, to int64) (i, j int, ok bool) {
	i, okFrom := r.index[from]
	j, okTo := r.index[to]
	if !okFrom || !okTo || i >= j {
		return 0, 0, false
	}
	return i, j, true
}

// PathNames returns stop names from..to inclusive, or an empty slice.
func (r Route) PathNames(from, to int64) []string {
	i, j, ok := r.Span(from, to)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, j-i+1)
	for _, s := range r.stops[i : j+1] {
		out = append(out, s.Name)
	}
	return out
}

// Names returns every stop name in route order.
func (r Route) Names() []string {
	out := make([]string, 0, len(r.stops))
	for _, s := range r.stops {
		out = append(out, s.Name)
	}
	return out
}

// Source supplies a route's stop rows.
type Source interface {
	RouteStops(ctx context.Context, routeID int64) ([]models.RouteStop, error)
}

// Store loads routes from a Source on demand.
type Store struct {
	Source Source
}

func (s Store) Route(ctx context.Context, routeID int64) (Route, error) {
	rs, err := s.Source.RouteStops(ctx, routeID)
	if err != nil {
		return Route{}, err
	}
	return New(routeID, rs), nil
}
