package fare

import (
	"context"
	"testing"

	"gocart/internal/domain/models"
	"gocart/internal/topology"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stopA int64 = 1
	stopB int64 = 2
	stopC int64 = 3
	stopD int64 = 4
)

func abcd() topology.Route {
	return topology.New(1, []models.RouteStop{
		{Stop: models.Stop{ID: stopA, Name: "A"}, Order: 1},
		{Stop: models.Stop{ID: stopB, Name: "B"}, Order: 2},
		{Stop: models.Stop{ID: stopC, Name: "C"}, Order: 3},
		{Stop: models.Stop{ID: stopD, Name: "D"}, Order: 4},
	})
}

func rf(from, to int64, amount string) models.RouteFare {
	return models.RouteFare{RouteID: 1, FromStopID: from, ToStopID: to, Fare: decimal.RequireFromString(amount)}
}

func TestSumScenarioABC(t *testing.T) {
	route := abcd()
	table := NewTable([]models.RouteFare{rf(stopA, stopB, "10"), rf(stopB, stopC, "15")})

	got, gaps := Sum(route, table, stopA, stopC)
	assert.True(t, got.Equal(decimal.NewFromInt(25)), "got %s", got)
	assert.Zero(t, gaps)

	got, _ = Sum(route, table, stopC, stopA)
	assert.True(t, got.IsZero())
}

func TestSumTreatsMissingSegmentsAsZero(t *testing.T) {
	route := abcd()
	table := NewTable([]models.RouteFare{rf(stopA, stopB, "10.25"), rf(stopC, stopD, "4.50")})

	got, gaps := Sum(route, table, stopA, stopD)
	assert.Equal(t, "14.75", got.StringFixed(2))
	assert.Equal(t, 1, gaps)
}

func TestSumEqualsSegmentSumForEveryOrderedPair(t *testing.T) {
	route := abcd()
	fares := []models.RouteFare{rf(stopA, stopB, "0.10"), rf(stopB, stopC, "0.20"), rf(stopC, stopD, "0.30")}
	table := NewTable(fares)
	stops := route.Stops()

	for i := range stops {
		for j := range stops {
			got, _ := Sum(route, table, stops[i].ID, stops[j].ID)
			want := decimal.Zero
			if i < j {
				for k := i; k < j; k++ {
					want = want.Add(fares[k].Fare)
				}
			}
			assert.True(t, want.Equal(got), "pair %d->%d: want %s got %s", i, j, want, got)
		}
	}
}

func TestSumUnknownStopIsZero(t *testing.T) {
	got, gaps := Sum(abcd(), NewTable([]models.RouteFare{rf(stopA, stopB, "10")}), stopA, 42)
	assert.True(t, got.IsZero())
	assert.Zero(t, gaps)
}

func TestReverseDirectionFareIsNotUsed(t *testing.T) {
	table := NewTable([]models.RouteFare{rf(stopB, stopA, "99")})
	got, gaps := Sum(abcd(), table, stopA, stopB)
	assert.True(t, got.IsZero())
	assert.Equal(t, 1, gaps)
}

func TestDuplicateSegmentFirstRowWins(t *testing.T) {
	table := NewTable([]models.RouteFare{rf(stopA, stopB, "10"), rf(stopA, stopB, "20")})
	v, ok := table.Segment(stopA, stopB)
	require.True(t, ok)
	assert.Equal(t, "10", v.String())
}

func TestTotalIsLinear(t *testing.T) {
	assert.Equal(t, "75.30", Total(decimal.RequireFromString("25.10"), 3).StringFixed(2))
	assert.True(t, Total(decimal.NewFromInt(25), 0).IsZero())
}

type stubCatalog struct {
	stops []models.RouteStop
	fares []models.RouteFare
	calls int
}

func (s *stubCatalog) RouteStops(context.Context, int64) ([]models.RouteStop, error) {
	return s.stops, nil
}

func (s *stubCatalog) RouteFares(context.Context, int64) ([]models.RouteFare, error) {
	s.calls++
	return s.fares, nil
}

func TestCalculatorPerSeat(t *testing.T) {
	cat := &stubCatalog{
		stops: []models.RouteStop{
			{Stop: models.Stop{ID: stopA, Name: "A"}, Order: 1},
			{Stop: models.Stop{ID: stopB, Name: "B"}, Order: 2},
			{Stop: models.Stop{ID: stopC, Name: "C"}, Order: 3},
		},
		fares: []models.RouteFare{rf(stopA, stopB, "10"), rf(stopB, stopC, "15")},
	}
	calc := Calculator{Routes: topology.Store{Source: cat}, Fares: cat}

	got, err := calc.PerSeat(context.Background(), 1, stopA, stopC)
	require.NoError(t, err)
	assert.Equal(t, "25", got.String())

	got, err = calc.PerSeat(context.Background(), 1, stopC, stopA)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
	assert.Equal(t, 1, cat.calls, "unordered pairs should not load fares")
}
