package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

type table struct {
	name string
	ddl  string
}

// Tables in dependency order. Ownership edges cascade; seat_layouts.booked_by
// is a weak reference nulled when the user goes away.
var tables = []table{
	{"users", `CREATE TABLE users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(150) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"stops", `CREATE TABLE stops (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE,
		lat DOUBLE NOT NULL DEFAULT 0,
		lng DOUBLE NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"routes", `CREATE TABLE routes (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"route_stops", `CREATE TABLE route_stops (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		route_id BIGINT NOT NULL,
		stop_id BIGINT NOT NULL,
		stop_order INT NOT NULL,
		UNIQUE KEY uq_route_order (route_id, stop_order),
		CONSTRAINT fk_rs_route FOREIGN KEY (route_id) REFERENCES routes(id) ON DELETE CASCADE,
		CONSTRAINT fk_rs_stop FOREIGN KEY (stop_id) REFERENCES stops(id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"route_fares", `CREATE TABLE route_fares (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		route_id BIGINT NOT NULL,
		from_stop_id BIGINT NOT NULL,
		to_stop_id BIGINT NOT NULL,
		fare DECIMAL(8,2) NOT NULL,
		UNIQUE KEY uq_route_segment (route_id, from_stop_id, to_stop_id),
		CONSTRAINT fk_rf_route FOREIGN KEY (route_id) REFERENCES routes(id) ON DELETE CASCADE,
		CONSTRAINT fk_rf_from FOREIGN KEY (from_stop_id) REFERENCES stops(id) ON DELETE RESTRICT,
		CONSTRAINT fk_rf_to FOREIGN KEY (to_stop_id) REFERENCES stops(id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"carts", `CREATE TABLE carts (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		number_plate VARCHAR(20) NOT NULL UNIQUE,
		driver_id BIGINT NOT NULL,
		route_id BIGINT NOT NULL,
		capacity INT NOT NULL,
		CONSTRAINT fk_cart_driver FOREIGN KEY (driver_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT fk_cart_route FOREIGN KEY (route_id) REFERENCES routes(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"schedules", `CREATE TABLE schedules (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		cart_id BIGINT NOT NULL,
		travel_date DATE NOT NULL,
		start_time TIME NOT NULL,
		drop_time TIME NOT NULL,
		KEY idx_schedule_date (travel_date, start_time),
		CONSTRAINT fk_schedule_cart FOREIGN KEY (cart_id) REFERENCES carts(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"seat_layouts", `CREATE TABLE seat_layouts (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		schedule_id BIGINT NOT NULL,
		seat_number VARCHAR(10) NOT NULL,
		is_booked TINYINT(1) NOT NULL DEFAULT 0,
		booked_by BIGINT NULL,
		hold_booking_id BIGINT NULL,
		version BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uq_schedule_seat (schedule_id, seat_number),
		CONSTRAINT fk_seat_schedule FOREIGN KEY (schedule_id) REFERENCES schedules(id) ON DELETE CASCADE,
		CONSTRAINT fk_seat_user FOREIGN KEY (booked_by) REFERENCES users(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"bookings", `CREATE TABLE bookings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		student_id BIGINT NOT NULL,
		schedule_id BIGINT NOT NULL,
		from_stop_id BIGINT NOT NULL,
		to_stop_id BIGINT NOT NULL,
		fare DECIMAL(8,2) NOT NULL,
		status VARCHAR(10) NOT NULL DEFAULT 'pending',
		payment_id VARCHAR(50) NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		KEY idx_booking_status (status, expires_at),
		CONSTRAINT fk_booking_student FOREIGN KEY (student_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT fk_booking_schedule FOREIGN KEY (schedule_id) REFERENCES schedules(id) ON DELETE CASCADE,
		CONSTRAINT fk_booking_from FOREIGN KEY (from_stop_id) REFERENCES stops(id) ON DELETE RESTRICT,
		CONSTRAINT fk_booking_to FOREIGN KEY (to_stop_id) REFERENCES stops(id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"booking_seats", `CREATE TABLE booking_seats (
		booking_id BIGINT NOT NULL,
		seat_id BIGINT NOT NULL,
		PRIMARY KEY (booking_id, seat_id),
		CONSTRAINT fk_bs_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE,
		CONSTRAINT fk_bs_seat FOREIGN KEY (seat_id) REFERENCES seat_layouts(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
}

// TableNames lists the managed tables in creation order.
func TableNames() []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.name)
	}
	return out
}

// EnsureSchema creates missing tables. Existing tables are left untouched.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, t := range tables {
		if HasTable(ctx, db, t.name) {
			continue
		}
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
		log.Printf("[DB] created table %s", t.name)
	}
	return nil
}
