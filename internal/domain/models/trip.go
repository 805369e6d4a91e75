package models

// Cart is a shuttle assigned to a driver and a route.
type Cart struct {
	ID          int64  `json:"id"`
	NumberPlate string `json:"number_plate"`
	DriverID    int64  `json:"driver_id"`
	RouteID     int64  `json:"route_id"`
	Capacity    int    `json:"capacity"`
}

// Schedule is one dated run of a cart. Dates are YYYY-MM-DD, times HH:MM:SS.
type Schedule struct {
	ID         int64  `json:"id"`
	CartID     int64  `json:"cart_id"`
	TravelDate string `json:"travel_date"`
	StartTime  string `json:"start_time"`
	DropTime   string `json:"drop_time"`
}

// ScheduleDetail is a schedule joined with its cart and route.
type ScheduleDetail struct {
	Schedule
	Cart  Cart  `json:"cart"`
	Route Route `json:"route"`
}

// ScheduleFilter narrows Catalog.Schedules. Zero values are ignored.
type ScheduleFilter struct {
	TravelDate string
	RouteIDs   []int64
	// StartAfter keeps schedules whose start time is strictly later (HH:MM:SS).
	StartAfter string
	DriverID   int64
}
