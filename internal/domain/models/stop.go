package models

import "github.com/shopspring/decimal"

// Stop is a named pickup/drop point.
type Stop struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

type Route struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RouteStop places a stop on a route; Order is unique per route.
type RouteStop struct {
	RouteID int64 `json:"route_id"`
	Stop    Stop  `json:"stop"`
	Order   int   `json:"order"`
}

// RouteFare prices one hop between stops adjacent in the route's ordering.
type RouteFare struct {
	ID         int64           `json:"id"`
	RouteID    int64           `json:"route_id"`
	FromStopID int64           `json:"from_stop_id"`
	ToStopID   int64           `json:"to_stop_id"`
	Fare       decimal.Decimal `json:"fare"`
}
