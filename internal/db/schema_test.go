package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestEnsureSchemaCreatesOnlyMissingTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	for _, name := range TableNames() {
		if name == "users" {
			mock.ExpectQuery("information_schema\\.tables").WithArgs(name).
				WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow(name))
			continue
		}
		mock.ExpectQuery("information_schema\\.tables").WithArgs(name).
			WillReturnRows(sqlmock.NewRows([]string{"table_name"}))
		mock.ExpectExec("CREATE TABLE " + name).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHasColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("information_schema\\.columns").WithArgs("seat_layouts", "version").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("version"))
	mock.ExpectQuery("information_schema\\.columns").WithArgs("seat_layouts", "color").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))

	if !HasColumn(context.Background(), db, "seat_layouts", "version") {
		t.Fatalf("expected version column")
	}
	if HasColumn(context.Background(), db, "seat_layouts", "color") {
		t.Fatalf("unexpected color column")
	}
}

func TestPlaceholders(t *testing.T) {
	if got := Placeholders(3); got != "?,?,?" {
		t.Fatalf("got %q", got)
	}
	if got := Placeholders(0); got != "" {
		t.Fatalf("got %q", got)
	}
}
