package repositories

import (
	"context"
	"database/sql"
	"fmt"

	intconfig "gocart/internal/config"
	intdb "gocart/internal/db"
	"gocart/internal/domain/models"
)

type SeatRepository struct {
	DB *sql.DB
}

func (r SeatRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const seatColumns = `id, schedule_id, seat_number, is_booked, booked_by, hold_booking_id, version`

func scanSeats(rows *sql.Rows) ([]models.SeatLayout, error) {
	out := []models.SeatLayout{}
	for rows.Next() {
		var (
			s      models.SeatLayout
			by     sql.NullInt64
			holder sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.ScheduleID, &s.SeatNumber, &s.IsBooked, &by, &holder, &s.Version); err != nil {
			return nil, err
		}
		if by.Valid {
			v := by.Int64
			s.BookedBy = &v
		}
		if holder.Valid {
			v := holder.Int64
			s.HoldBookingID = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r SeatRepository) SeatLayout(ctx context.Context, scheduleID int64) ([]models.SeatLayout, error) {
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}
	rows, err := db.QueryContext(ctx, `SELECT `+seatColumns+` FROM seat_layouts WHERE schedule_id=?`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("seat layout: %w", err)
	}
	defer rows.Close()

	seats, err := scanSeats(rows)
	if err != nil {
		return nil, err
	}
	models.SortSeats(seats)
	return seats, nil
}

func (r SeatRepository) SeatsByIDs(ctx context.Context, scheduleID int64, ids []int64) ([]models.SeatLayout, error) {
	if len(ids) == 0 {
		return []models.SeatLayout{}, nil
	}
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}
	args := append([]any{scheduleID}, intdb.Int64Args(ids)...)
	rows, err := db.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM seat_layouts WHERE schedule_id=? AND id IN (`+intdb.Placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("seats by ids: %w", err)
	}
	defer rows.Close()

	seats, err := scanSeats(rows)
	if err != nil {
		return nil, err
	}
	models.SortSeats(seats)
	return seats, nil
}

func (r SeatRepository) BookedSeatNumbers(ctx context.Context, scheduleID int64) ([]string, error) {
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}
	rows, err := db.QueryContext(ctx, `SELECT seat_number FROM seat_layouts WHERE schedule_id=? AND is_booked=1`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("booked seats: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	models.SortSeatNumbers(out)
	return out, nil
}

func (r SeatRepository) FinalizeSeats(ctx context.Context, seatIDs []int64, userID int64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	db := r.db()
	if db == nil {
		return errNoDB
	}
	return finalizeSeats(ctx, db, seatIDs, userID)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// finalizeSeats only touches seats that are not booked yet, so a booked
// seat keeps its owner.
func finalizeSeats(ctx context.Context, ex execer, seatIDs []int64, userID int64) error {
	args := append([]any{userID}, intdb.Int64Args(seatIDs)...)
	_, err := ex.ExecContext(ctx, `
		UPDATE seat_layouts
		SET is_booked=1, booked_by=?, hold_booking_id=NULL, version=version+1
		WHERE is_booked=0 AND id IN (`+intdb.Placeholders(len(seatIDs))+`)`, args...)
	if err != nil {
		return fmt.Errorf("finalize seats: %w", err)
	}
	return nil
}

func releaseHolds(ctx context.Context, ex execer, bookingIDs []int64) error {
	if len(bookingIDs) == 0 {
		return nil
	}
	_, err := ex.ExecContext(ctx, `
		UPDATE seat_layouts
		SET hold_booking_id=NULL, version=version+1
		WHERE hold_booking_id IN (`+intdb.Placeholders(len(bookingIDs))+`)`, intdb.Int64Args(bookingIDs)...)
	if err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	return nil
}
