package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"gocart/internal/domain"

	"github.com/go-sql-driver/mysql"
)

var errNoDB = domain.InternalError{Msg: "database not connected"}

const (
	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213
	mysqlLockWait       = 1205
)

// mapNoRows turns sql.ErrNoRows into a NotFoundError for resource/id.
func mapNoRows(err error, resource string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: resource, ID: id, Err: err}
	}
	return err
}

// mapWriteError classifies MySQL write failures that callers can act on.
func mapWriteError(err error, resource string) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlDuplicateEntry:
		return domain.ConflictError{Resource: resource, Msg: "already exists", Err: err}
	case mysqlDeadlock, mysqlLockWait:
		return domain.ConflictError{Resource: resource, Msg: "concurrent update, try again", Err: err}
	}
	return fmt.Errorf("%s write: %w", resource, err)
}
