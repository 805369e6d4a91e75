// Package fare prices sub-paths of a route by summing adjacent segment fares.
package fare

import (
	"context"
	"fmt"

	"gocart/internal/domain/models"
	"gocart/internal/topology"
	"gocart/internal/utils"

	"github.com/shopspring/decimal"
)

type segment struct{ from, to int64 }

// Table holds the configured segment fares of one route.
type Table struct {
	fares map[segment]decimal.Decimal
}

// NewTable indexes fares by (from, to). The first row for a segment wins.
func NewTable(fares []models.RouteFare) Table {
	t := Table{fares: make(map[segment]decimal.Decimal, len(fares))}
	for _, f := range fares {
		k := segment{f.FromStopID, f.ToStopID}
		if _, ok := t.fares[k]; ok {
			continue
		}
		t.fares[k] = f.Fare
	}
	return t
}

func (t Table) Segment(from, to int64) (decimal.Decimal, bool) {
	v, ok := t.fares[segment{from, to}]
	return v, ok
}

// Sum adds the segment fares between from and to along route. Segments with no
// configured fare contribute zero and are counted in gaps. A pair that is not
// ordered on the route sums to zero.
func Sum(route topology.Route, table Table, from, to int64) (total decimal.Decimal, gaps int) {
	i, j, ok := route.Span(from, to)
	if !ok {
		return decimal.Zero, 0
	}
	total = decimal.Zero
	for k := i; k < j; k++ {
		v, ok := table.Segment(route.StopAt(k).ID, route.StopAt(k+1).ID)
		if !ok {
			gaps++
			continue
		}
		total = total.Add(v)
	}
	return total, gaps
}

// Total is the linear price for seats passengers.
func Total(perSeat decimal.Decimal, seats int) decimal.Decimal {
	return perSeat.Mul(decimal.NewFromInt(int64(seats)))
}

// Source supplies the fare rows of a route.
type Source interface {
	RouteFares(ctx context.Context, routeID int64) ([]models.RouteFare, error)
}

type Calculator struct {
	Routes topology.Store
	Fares  Source
}

// PerSeat returns the fare of one seat from..to on routeID.
func (c Calculator) PerSeat(ctx context.Context, routeID, from, to int64) (decimal.Decimal, error) {
	route, err := c.Routes.Route(ctx, routeID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load route %d: %w", routeID, err)
	}
	return c.PerSeatOn(ctx, route, from, to)
}

// PerSeatOn prices from..to on an already loaded route.
func (c Calculator) PerSeatOn(ctx context.Context, route topology.Route, from, to int64) (decimal.Decimal, error) {
	if !route.IsBefore(from, to) {
		return decimal.Zero, nil
	}
	rows, err := c.Fares.RouteFares(ctx, route.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load fares of route %d: %w", route.ID, err)
	}
	total, gaps := Sum(route, NewTable(rows), from, to)
	if gaps > 0 {
		utils.LogEvent("", "fare", "sum", fmt.Sprintf("route_id=%d from=%d to=%d missing_segments=%d", route.ID, from, to, gaps))
	}
	return total, nil
}
