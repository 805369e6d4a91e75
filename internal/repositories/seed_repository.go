package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	intconfig "gocart/internal/config"
	"gocart/internal/domain/models"
)

type SeedRepository struct {
	DB *sql.DB
}

func (r SeedRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r SeedRepository) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	db := r.db()
	if db == nil {
		return models.User{}, errNoDB
	}
	res, err := db.ExecContext(ctx, `INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		u.Username, u.PasswordHash, u.Role)
	if err != nil {
		return models.User{}, mapWriteError(err, "user")
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (r SeedRepository) CreateStop(ctx context.Context, s models.Stop) (models.Stop, error) {
	db := r.db()
	if db == nil {
		return models.Stop{}, errNoDB
	}
	res, err := db.ExecContext(ctx, `INSERT INTO stops (name, lat, lng) VALUES (?, ?, ?)`, s.Name, s.Lat, s.Lng)
	if err != nil {
		return models.Stop{}, mapWriteError(err, "stop")
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return models.Stop{}, err
	}
	return s, nil
}

// CreateRoute inserts the route, its ordered stops (order 1..n) and fares together.
func (r SeedRepository) CreateRoute(ctx context.Context, rt models.Route, stopIDs []int64, fares []models.RouteFare) (models.Route, error) {
	db := r.db()
	if db == nil {
		return models.Route{}, errNoDB
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.Route{}, fmt.Errorf("begin route: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO routes (name) VALUES (?)`, rt.Name)
	if err != nil {
		return models.Route{}, mapWriteError(err, "route")
	}
	if rt.ID, err = res.LastInsertId(); err != nil {
		return models.Route{}, err
	}

	if len(stopIDs) > 0 {
		ph := make([]string, 0, len(stopIDs))
		args := make([]any, 0, 3*len(stopIDs))
		for i, id := range stopIDs {
			ph = append(ph, "(?, ?, ?)")
			args = append(args, rt.ID, id, i+1)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO route_stops (route_id, stop_id, stop_order) VALUES `+strings.Join(ph, ","), args...); err != nil {
			return models.Route{}, mapWriteError(err, "route stop")
		}
	}

	if len(fares) > 0 {
		ph := make([]string, 0, len(fares))
		args := make([]any, 0, 4*len(fares))
		for _, f := range fares {
			ph = append(ph, "(?, ?, ?, ?)")
			args = append(args, rt.ID, f.FromStopID, f.ToStopID, f.Fare.StringFixed(2))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO route_fares (route_id, from_stop_id, to_stop_id, fare) VALUES `+strings.Join(ph, ","), args...); err != nil {
			return models.Route{}, mapWriteError(err, "route fare")
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Route{}, fmt.Errorf("commit route: %w", err)
	}
	return rt, nil
}

func (r SeedRepository) CreateCart(ctx context.Context, c models.Cart) (models.Cart, error) {
	db := r.db()
	if db == nil {
		return models.Cart{}, errNoDB
	}
	res, err := db.ExecContext(ctx, `INSERT INTO carts (number_plate, driver_id, route_id, capacity) VALUES (?, ?, ?, ?)`,
		c.NumberPlate, c.DriverID, c.RouteID, c.Capacity)
	if err != nil {
		return models.Cart{}, mapWriteError(err, "cart")
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return models.Cart{}, err
	}
	return c, nil
}

// CreateSchedule inserts the schedule and its fixed seat set.
func (r SeedRepository) CreateSchedule(ctx context.Context, s models.Schedule, seatNumbers []string) (models.Schedule, error) {
	db := r.db()
	if db == nil {
		return models.Schedule{}, errNoDB
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("begin schedule: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO schedules (cart_id, travel_date, start_time, drop_time) VALUES (?, ?, ?, ?)`,
		s.CartID, s.TravelDate, s.StartTime, s.DropTime)
	if err != nil {
		return models.Schedule{}, mapWriteError(err, "schedule")
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return models.Schedule{}, err
	}

	if len(seatNumbers) > 0 {
		ph := make([]string, 0, len(seatNumbers))
		args := make([]any, 0, 2*len(seatNumbers))
		for _, n := range seatNumbers {
			ph = append(ph, "(?, ?)")
			args = append(args, s.ID, n)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO seat_layouts (schedule_id, seat_number) VALUES `+strings.Join(ph, ","), args...); err != nil {
			return models.Schedule{}, mapWriteError(err, "seat")
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Schedule{}, fmt.Errorf("commit schedule: %w", err)
	}
	return s, nil
}
