package repositories

import (
	"context"
	"testing"

	"gocart/internal/domain"
	"gocart/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRouteStopsScansOrderedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM route_stops rs").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"route_id", "stop_order", "id", "name", "lat", "lng"}).
			AddRow(int64(1), 1, int64(10), "Main Gate", 23.78, 90.42).
			AddRow(int64(1), 2, int64(11), "Library", 23.79, 90.43))

	got, err := CatalogRepository{DB: db}.RouteStops(context.Background(), 1)
	if err != nil {
		t.Fatalf("route stops: %v", err)
	}
	if len(got) != 2 || got[1].Stop.Name != "Library" || got[1].Order != 2 {
		t.Fatalf("unexpected stops %+v", got)
	}
}

func TestSchedulesBuildsFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	cols := []string{"id", "cart_id", "travel_date", "start_time", "drop_time", "number_plate", "driver_id", "route_id", "capacity", "name"}
	mock.ExpectQuery("FROM schedules s").WithArgs("2026-03-01", int64(1), int64(2), "09:00:00").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(4), int64(2), "2026-03-01", "09:30:00", "10:00:00", "GC-02", int64(8), int64(1), 6, "Campus Loop"))

	got, err := CatalogRepository{DB: db}.Schedules(context.Background(), models.ScheduleFilter{
		TravelDate: "2026-03-01",
		RouteIDs:   []int64{1, 2},
		StartAfter: "09:00:00",
	})
	if err != nil {
		t.Fatalf("schedules: %v", err)
	}
	if len(got) != 1 || got[0].Cart.ID != 2 || got[0].Route.ID != 1 || got[0].Route.Name != "Campus Loop" {
		t.Fatalf("unexpected schedules %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStopByNameMissingIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM stops WHERE name").WithArgs("Nowhere").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "lat", "lng"}))

	_, err = CatalogRepository{DB: db}.StopByName(context.Background(), " Nowhere ")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBookedSeatNumbersNaturalOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT seat_number FROM seat_layouts").WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow("10").AddRow("2").AddRow("1"))

	got, err := SeatRepository{DB: db}.BookedSeatNumbers(context.Background(), 4)
	if err != nil {
		t.Fatalf("booked seats: %v", err)
	}
	if len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "10" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestRoutesServingComparesFirstStopOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`MIN\(stop_order\) AS first_order FROM route_stops WHERE stop_id=\?`).WithArgs(int64(3), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"route_id"}))

	got, err := CatalogRepository{DB: db}.RoutesServing(context.Background(), 3, 1)
	if err != nil {
		t.Fatalf("routes serving: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no routes, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
