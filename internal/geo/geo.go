// Package geo indexes stops spatially and encodes route paths as polylines.
package geo

import (
	"math"
	"sort"

	"gocart/internal/domain/models"

	"github.com/tidwall/rtree"
	"github.com/twpayne/go-polyline"
)

const RadiusOfEarthInMeters = 6371010.0

// Bounds is a lat/lng bounding box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundsAround returns the box enclosing a circle of radius meters.
func BoundsAround(lat, lng, meters float64) Bounds {
	latRad := lat * math.Pi / 180
	latOffset := meters / RadiusOfEarthInMeters * 180 / math.Pi
	lngOffset := meters / (math.Cos(latRad) * RadiusOfEarthInMeters) * 180 / math.Pi
	return Bounds{
		MinLat: lat - latOffset,
		MaxLat: lat + latOffset,
		MinLng: lng - lngOffset,
		MaxLng: lng + lngOffset,
	}
}

// Distance is the great-circle distance in meters (haversine).
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * RadiusOfEarthInMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// NearbyStop is a stop with its distance from the query point.
type NearbyStop struct {
	models.Stop
	DistanceM float64 `json:"distance_m"`
}

// StopIndex is an immutable R-tree over stop coordinates. Points are stored
// as (lng, lat).
type StopIndex struct {
	tree rtree.RTreeG[models.Stop]
	size int
}

func NewStopIndex(stops []models.Stop) *StopIndex {
	idx := &StopIndex{}
	for _, s := range stops {
		p := [2]float64{s.Lng, s.Lat}
		idx.tree.Insert(p, p, s)
		idx.size++
	}
	return idx
}

func (idx *StopIndex) Len() int { return idx.size }

// Nearby returns stops within meters of (lat, lng), closest first, at most
// limit entries (0 means no limit).
func (idx *StopIndex) Nearby(lat, lng, meters float64, limit int) []NearbyStop {
	b := BoundsAround(lat, lng, meters)
	out := []NearbyStop{}
	idx.tree.Search([2]float64{b.MinLng, b.MinLat}, [2]float64{b.MaxLng, b.MaxLat},
		func(_, _ [2]float64, s models.Stop) bool {
			if d := Distance(lat, lng, s.Lat, s.Lng); d <= meters {
				out = append(out, NearbyStop{Stop: s, DistanceM: math.Round(d*10) / 10})
			}
			return true
		})
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceM != out[j].DistanceM {
			return out[i].DistanceM < out[j].DistanceM
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// EncodePath encodes stop coordinates in order as a Google polyline.
func EncodePath(stops []models.Stop) string {
	coords := make([][]float64, 0, len(stops))
	for _, s := range stops {
		coords = append(coords, []float64{s.Lat, s.Lng})
	}
	return string(polyline.EncodeCoords(coords))
}
