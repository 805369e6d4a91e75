package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	intconfig "gocart/internal/config"
	intdb "gocart/internal/db"
	"gocart/internal/domain/models"
)

type CatalogRepository struct {
	DB *sql.DB
}

func (r CatalogRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r CatalogRepository) Stops(ctx context.Context) ([]models.Stop, error) {
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}
	rows, err := db.QueryContext(ctx, `SELECT id, name, lat, lng FROM stops ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list stops: %w", err)
	}
	defer rows.Close()

	out := []models.Stop{}
	for rows.Next() {
		var s models.Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lng); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r CatalogRepository) StopByID(ctx context.Context, id int64) (models.Stop, error) {
	db := r.db()
	if db == nil {
		return models.Stop{}, errNoDB
	}
	var s models.Stop
	err := db.QueryRowContext(ctx, `SELECT id, name, lat, lng FROM stops WHERE id=?`, id).
		Scan(&s.ID, &s.Name, &s.Lat, &s.Lng)
	if err != nil {
		return models.Stop{}, mapNoRows(err, "stop", id)
	}
	return s, nil
}

func (r CatalogRepository) StopByName(ctx context.Context, name string) (models.Stop, error) {
	db := r.db()
	if db == nil {
		return models.Stop{}, errNoDB
	}
	var s models.Stop
	err := db.QueryRowContext(ctx, `SELECT id, name, lat, lng FROM stops WHERE name=?`, strings.TrimSpace(name)).
		Scan(&s.ID, &s.Name, &s.Lat, &s.Lng)
	if err != nil {
		return models.Stop{}, mapNoRows(err, "stop", 0)
	}
	return s, nil
}

func (r CatalogRepository) Routes(ctx context.Context) ([]models.Route, error) {
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM routes ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	out := []models.Route{}
	for rows.Next() {
		var rt models.Route
		if err := rows.Scan(&rt.ID, &rt.Name); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r CatalogRepository) RouteStops(ctx context.Context, routeID int64) ([]models.RouteStop, error) {
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}
	rows, err := db.QueryContext(ctx, `
		SELECT rs.route_id, rs.stop_order, s.id, s.name, s.lat, s.lng
		FROM route_stops rs
		JOIN stops s ON s.id = rs.stop_id
		WHERE rs.route_id=?
		ORDER BY rs.stop_order ASC
	`, routeID)
	if err != nil {
		return nil, fmt.Errorf("route stops: %w", err)
	}
	defer rows.Close()

	out := []models.RouteStop{}
	for rows.Next() {
		var rs models.RouteStop
		if err := rows.Scan(&rs.RouteID, &rs.Order, &rs.Stop.ID, &rs.Stop.Name, &rs.Stop.Lat, &rs.Stop.Lng); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (r CatalogRepository) RouteFares(ctx context.Context, routeID int64) ([]models.RouteFare, error) {
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, route_id, from_stop_id, to_stop_id, fare
		FROM route_fares
		WHERE route_id=?
		ORDER BY id ASC
	`, routeID)
	if err != nil {
		return nil, fmt.Errorf("route fares: %w", err)
	}
	defer rows.Close()

	out := []models.RouteFare{}
	for rows.Next() {
		var f models.RouteFare
		if err := rows.Scan(&f.ID, &f.RouteID, &f.FromStopID, &f.ToStopID, &f.Fare); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RoutesServing compares the first position of each stop on a route, the
// same position topology.Route indexes.
func (r CatalogRepository) RoutesServing(ctx context.Context, from, to int64) ([]int64, error) {
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}
	rows, err := db.QueryContext(ctx, `
		SELECT a.route_id
		FROM (SELECT route_id, MIN(stop_order) AS first_order FROM route_stops WHERE stop_id=? GROUP BY route_id) a
		JOIN (SELECT route_id, MIN(stop_order) AS first_order FROM route_stops WHERE stop_id=? GROUP BY route_id) b
			ON b.route_id = a.route_id
		WHERE a.first_order < b.first_order
		ORDER BY a.route_id ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("routes serving: %w", err)
	}
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const scheduleSelect = `
	SELECT s.id, s.cart_id,
		DATE_FORMAT(s.travel_date, '%Y-%m-%d'),
		TIME_FORMAT(s.start_time, '%H:%i:%s'),
		TIME_FORMAT(s.drop_time, '%H:%i:%s'),
		c.number_plate, c.driver_id, c.route_id, c.capacity, r.name
	FROM schedules s
	JOIN carts c ON c.id = s.cart_id
	JOIN routes r ON r.id = c.route_id`

func scanSchedule(sc interface{ Scan(...any) error }) (models.ScheduleDetail, error) {
	var d models.ScheduleDetail
	err := sc.Scan(&d.ID, &d.CartID, &d.TravelDate, &d.StartTime, &d.DropTime,
		&d.Cart.NumberPlate, &d.Cart.DriverID, &d.Cart.RouteID, &d.Cart.Capacity, &d.Route.Name)
	if err != nil {
		return d, err
	}
	d.Cart.ID = d.CartID
	d.Route.ID = d.Cart.RouteID
	return d, nil
}

func (r CatalogRepository) Schedules(ctx context.Context, f models.ScheduleFilter) ([]models.ScheduleDetail, error) {
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}

	where := []string{"1=1"}
	args := []any{}
	if f.TravelDate != "" {
		where = append(where, "s.travel_date=?")
		args = append(args, f.TravelDate)
	}
	if len(f.RouteIDs) > 0 {
		where = append(where, "c.route_id IN ("+intdb.Placeholders(len(f.RouteIDs))+")")
		args = append(args, intdb.Int64Args(f.RouteIDs)...)
	}
	if f.StartAfter != "" {
		where = append(where, "s.start_time>?")
		args = append(args, f.StartAfter)
	}
	if f.DriverID > 0 {
		where = append(where, "c.driver_id=?")
		args = append(args, f.DriverID)
	}

	query := scheduleSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY s.travel_date ASC, s.start_time ASC, s.id ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	out := []models.ScheduleDetail{}
	for rows.Next() {
		d, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r CatalogRepository) ScheduleByID(ctx context.Context, id int64) (models.ScheduleDetail, error) {
	db := r.db()
	if db == nil {
		return models.ScheduleDetail{}, errNoDB
	}
	d, err := scanSchedule(db.QueryRowContext(ctx, scheduleSelect+` WHERE s.id=?`, id))
	if err != nil {
		return models.ScheduleDetail{}, mapNoRows(err, "schedule", id)
	}
	return d, nil
}
