package geo

import (
	"testing"

	"gocart/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
)

var campus = []models.Stop{
	{ID: 1, Name: "Main Gate", Lat: 23.7806, Lng: 90.4070},
	{ID: 2, Name: "Library", Lat: 23.7815, Lng: 90.4080},
	{ID: 3, Name: "Hall 5", Lat: 23.7900, Lng: 90.4200},
	{ID: 4, Name: "City Center", Lat: 23.8100, Lng: 90.4500},
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 0, Distance(23.78, 90.40, 23.78, 90.40), 1e-9)
	// one degree of latitude is about 111.2 km
	assert.InDelta(t, 111195, Distance(0, 0, 1, 0), 100)
}

func TestNearbyOrdersByDistanceAndFiltersRadius(t *testing.T) {
	idx := NewStopIndex(campus)
	require.Equal(t, 4, idx.Len())

	got := idx.Nearby(23.7806, 90.4070, 500, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "Main Gate", got[0].Name)
	assert.Equal(t, "Library", got[1].Name)
	assert.Less(t, got[0].DistanceM, got[1].DistanceM)

	wide := idx.Nearby(23.7806, 90.4070, 10_000, 3)
	assert.Len(t, wide, 3)
}

func TestNearbyEmptyIndex(t *testing.T) {
	assert.Empty(t, NewStopIndex(nil).Nearby(0, 0, 1000, 0))
}

func TestEncodePathRoundTrips(t *testing.T) {
	enc := EncodePath(campus[:3])
	coords, _, err := polyline.DecodeCoords([]byte(enc))
	require.NoError(t, err)
	require.Len(t, coords, 3)
	assert.InDelta(t, 23.7806, coords[0][0], 1e-5)
	assert.InDelta(t, 90.4200, coords[2][1], 1e-5)
}
