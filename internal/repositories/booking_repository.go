package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	intconfig "gocart/internal/config"
	intdb "gocart/internal/db"
	"gocart/internal/domain"
	"gocart/internal/domain/models"
)

type BookingRepository struct {
	DB *sql.DB
}

func (r BookingRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const bookingColumns = `id, student_id, schedule_id, from_stop_id, to_stop_id, fare, status, COALESCE(payment_id,''), created_at, expires_at`

func scanBooking(sc interface{ Scan(...any) error }) (models.Booking, error) {
	var (
		b      models.Booking
		status string
	)
	err := sc.Scan(&b.ID, &b.StudentID, &b.ScheduleID, &b.FromStopID, &b.ToStopID, &b.Fare, &status, &b.PaymentID, &b.CreatedAt, &b.ExpiresAt)
	b.Status = domain.BookingStatus(status)
	b.SeatIDs = []int64{}
	return b, err
}

// CreatePending locks the selected seat rows, checks them, and inserts the
// booking with its seat links and holds in one transaction.
func (r BookingRepository) CreatePending(ctx context.Context, nb models.NewBooking) (models.Reservation, error) {
	if len(nb.SeatIDs) == 0 {
		return models.Reservation{}, domain.ValidationError{Field: "seat_ids", Msg: "no seats selected", Step: domain.StepSeats}
	}
	db := r.db()
	if db == nil {
		return models.Reservation{}, errNoDB
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	args := append([]any{nb.ScheduleID}, intdb.Int64Args(nb.SeatIDs)...)
	rows, err := tx.QueryContext(ctx, `
		SELECT id, is_booked, hold_booking_id
		FROM seat_layouts
		WHERE schedule_id=? AND id IN (`+intdb.Placeholders(len(nb.SeatIDs))+`)
		ORDER BY id ASC
		FOR UPDATE`, args...)
	if err != nil {
		return models.Reservation{}, mapWriteError(err, "seat")
	}
	found := 0
	conflicts := []int64{}
	for rows.Next() {
		var (
			id     int64
			booked bool
			holder sql.NullInt64
		)
		if err := rows.Scan(&id, &booked, &holder); err != nil {
			rows.Close()
			return models.Reservation{}, err
		}
		found++
		if booked || holder.Valid {
			conflicts = append(conflicts, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return models.Reservation{}, err
	}
	rows.Close()

	if found != len(nb.SeatIDs) {
		return models.Reservation{}, domain.ValidationError{Field: "seat_ids", Msg: "seat does not belong to schedule", Step: domain.StepSeats}
	}
	if len(conflicts) > 0 {
		return models.Reservation{Conflicts: conflicts}, nil
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (student_id, schedule_id, from_stop_id, to_stop_id, fare, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nb.StudentID, nb.ScheduleID, nb.FromStopID, nb.ToStopID, nb.Fare.StringFixed(2),
		string(domain.StatusPending), nb.CreatedAt, nb.ExpiresAt)
	if err != nil {
		return models.Reservation{}, mapWriteError(err, "booking")
	}
	bookingID, err := res.LastInsertId()
	if err != nil {
		return models.Reservation{}, err
	}

	links := make([]string, 0, len(nb.SeatIDs))
	linkArgs := make([]any, 0, 2*len(nb.SeatIDs))
	for _, id := range nb.SeatIDs {
		links = append(links, "(?, ?)")
		linkArgs = append(linkArgs, bookingID, id)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO booking_seats (booking_id, seat_id) VALUES `+strings.Join(links, ","), linkArgs...); err != nil {
		return models.Reservation{}, mapWriteError(err, "seat")
	}

	holdArgs := append([]any{bookingID}, intdb.Int64Args(nb.SeatIDs)...)
	if _, err := tx.ExecContext(ctx, `
		UPDATE seat_layouts
		SET hold_booking_id=?, version=version+1
		WHERE id IN (`+intdb.Placeholders(len(nb.SeatIDs))+`)`, holdArgs...); err != nil {
		return models.Reservation{}, mapWriteError(err, "seat")
	}

	if err := tx.Commit(); err != nil {
		return models.Reservation{}, fmt.Errorf("commit claim: %w", err)
	}

	seatIDs := make([]int64, len(nb.SeatIDs))
	copy(seatIDs, nb.SeatIDs)
	return models.Reservation{Booking: models.Booking{
		ID:         bookingID,
		StudentID:  nb.StudentID,
		ScheduleID: nb.ScheduleID,
		FromStopID: nb.FromStopID,
		ToStopID:   nb.ToStopID,
		SeatIDs:    seatIDs,
		Fare:       nb.Fare,
		Status:     domain.StatusPending,
		CreatedAt:  nb.CreatedAt,
		ExpiresAt:  nb.ExpiresAt,
	}}, nil
}

func (r BookingRepository) Booking(ctx context.Context, id int64) (models.Booking, error) {
	db := r.db()
	if db == nil {
		return models.Booking{}, errNoDB
	}
	b, err := scanBooking(db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=?`, id))
	if err != nil {
		return models.Booking{}, mapNoRows(err, "booking", id)
	}
	if b.SeatIDs, err = seatIDsOf(ctx, db, b.ID); err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

func (r BookingRepository) Bookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}

	where := []string{"1=1"}
	args := []any{}
	if f.StudentID > 0 {
		where = append(where, "student_id=?")
		args = append(args, f.StudentID)
	}
	if f.ScheduleID > 0 {
		where = append(where, "schedule_id=?")
		args = append(args, f.ScheduleID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+intdb.Placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(out))
	for _, b := range out {
		ids = append(ids, b.ID)
	}
	links, err := seatLinks(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if s, ok := links[out[i].ID]; ok {
			out[i].SeatIDs = s
		}
	}
	return out, nil
}

func (r BookingRepository) Confirm(ctx context.Context, id int64, paymentID string, now time.Time) (models.Booking, error) {
	db := r.db()
	if db == nil {
		return models.Booking{}, errNoDB
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.Booking{}, fmt.Errorf("begin confirm: %w", err)
	}
	defer tx.Rollback()

	b, err := lockBooking(ctx, tx, id)
	if err != nil {
		return models.Booking{}, err
	}

	switch b.Status {
	case domain.StatusConfirmed:
		if b.PaymentID == paymentID {
			return b, nil
		}
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "already confirmed", Step: domain.StepUnassigned}
	case domain.StatusCancelled:
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "booking is cancelled", Step: domain.StepSearch}
	}

	if !now.Before(b.ExpiresAt) {
		if err := cancelLocked(ctx, tx, []int64{b.ID}); err != nil {
			return models.Booking{}, err
		}
		if err := tx.Commit(); err != nil {
			return models.Booking{}, fmt.Errorf("commit expiry: %w", err)
		}
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "booking expired", Step: domain.StepSearch}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET status=?, payment_id=? WHERE id=?`,
		string(domain.StatusConfirmed), paymentID, b.ID); err != nil {
		return models.Booking{}, mapWriteError(err, "booking")
	}
	if len(b.SeatIDs) > 0 {
		if err := finalizeSeats(ctx, tx, b.SeatIDs, b.StudentID); err != nil {
			return models.Booking{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Booking{}, fmt.Errorf("commit confirm: %w", err)
	}

	b.Status = domain.StatusConfirmed
	b.PaymentID = paymentID
	return b, nil
}

func (r BookingRepository) Cancel(ctx context.Context, id int64) (models.Booking, error) {
	db := r.db()
	if db == nil {
		return models.Booking{}, errNoDB
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.Booking{}, fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback()

	b, err := lockBooking(ctx, tx, id)
	if err != nil {
		return models.Booking{}, err
	}
	switch b.Status {
	case domain.StatusCancelled:
		return b, nil
	case domain.StatusConfirmed:
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "confirmed bookings cannot be cancelled"}
	}

	if err := cancelLocked(ctx, tx, []int64{b.ID}); err != nil {
		return models.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Booking{}, fmt.Errorf("commit cancel: %w", err)
	}
	b.Status = domain.StatusCancelled
	return b, nil
}

func (r BookingRepository) ExpirePending(ctx context.Context, now time.Time) ([]int64, error) {
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin expire: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM bookings
		WHERE status=? AND expires_at<=?
		ORDER BY id ASC
		FOR UPDATE`, string(domain.StatusPending), now)
	if err != nil {
		return nil, fmt.Errorf("select expired: %w", err)
	}
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return ids, nil
	}
	if err := cancelLocked(ctx, tx, ids); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit expire: %w", err)
	}
	return ids, nil
}

func lockBooking(ctx context.Context, tx *sql.Tx, id int64) (models.Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=? FOR UPDATE`, id))
	if err != nil {
		return models.Booking{}, mapNoRows(err, "booking", id)
	}
	if b.SeatIDs, err = seatIDsOf(ctx, tx, b.ID); err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

func cancelLocked(ctx context.Context, tx *sql.Tx, ids []int64) error {
	args := append([]any{string(domain.StatusCancelled)}, intdb.Int64Args(ids)...)
	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET status=? WHERE id IN (`+intdb.Placeholders(len(ids))+`)`, args...); err != nil {
		return mapWriteError(err, "booking")
	}
	return releaseHolds(ctx, tx, ids)
}

func seatIDsOf(ctx context.Context, q querier, bookingID int64) ([]int64, error) {
	links, err := seatLinks(ctx, q, []int64{bookingID})
	if err != nil {
		return nil, err
	}
	if s, ok := links[bookingID]; ok {
		return s, nil
	}
	return []int64{}, nil
}

func seatLinks(ctx context.Context, q querier, bookingIDs []int64) (map[int64][]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT booking_id, seat_id FROM booking_seats
		WHERE booking_id IN (`+intdb.Placeholders(len(bookingIDs))+`)
		ORDER BY booking_id ASC, seat_id ASC`, intdb.Int64Args(bookingIDs)...)
	if err != nil {
		return nil, fmt.Errorf("booking seats: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64, len(bookingIDs))
	for rows.Next() {
		var bid, sid int64
		if err := rows.Scan(&bid, &sid); err != nil {
			return nil, err
		}
		out[bid] = append(out[bid], sid)
	}
	return out, rows.Err()
}
