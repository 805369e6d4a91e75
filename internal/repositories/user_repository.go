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

type UserRepository struct {
	DB *sql.DB
}

func (r UserRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r UserRepository) UserByID(ctx context.Context, id int64) (models.User, error) {
	db := r.db()
	if db == nil {
		return models.User{}, errNoDB
	}
	var u models.User
	err := db.QueryRowContext(ctx, `SELECT id, username, password_hash, role FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if err != nil {
		return models.User{}, mapNoRows(err, "user", id)
	}
	return u, nil
}

func (r UserRepository) UserByUsername(ctx context.Context, username string) (models.User, error) {
	db := r.db()
	if db == nil {
		return models.User{}, errNoDB
	}
	var u models.User
	err := db.QueryRowContext(ctx, `SELECT id, username, password_hash, role FROM users WHERE username=?`, strings.TrimSpace(username)).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if err != nil {
		return models.User{}, mapNoRows(err, "user", 0)
	}
	return u, nil
}

// UsersByIDs resolves ids in one query. Unknown ids are absent from the map.
func (r UserRepository) UsersByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	out := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db := r.db()
	if db == nil {
		return nil, errNoDB
	}
	rows, err := db.QueryContext(ctx, `SELECT id, username, role FROM users WHERE id IN (`+intdb.Placeholders(len(ids))+`)`, intdb.Int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("users by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}
