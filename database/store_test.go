package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	store := NewFromDB(sqlx.NewDb(db, "sqlmock"))
	t.Cleanup(func() { store.Close() })
	return store, mock
}

func TestQueryReturnsRows(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(int64(1), "Ann").
		AddRow(int64(2), "Bob")
	mock.ExpectQuery("SELECT id, name FROM users WHERE city = .").
		WithArgs("Riga").
		WillReturnRows(rows)

	results, err := store.Query(context.Background(), "SELECT id, name FROM users WHERE city = :city", map[string]any{"city": "Riga"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d rows, want 2", len(results))
	}
	if results[0]["name"] != "Ann" || results[1]["name"] != "Bob" {
		t.Errorf("unexpected rows: %v", results)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryNoRows(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	results, err := store.Query(context.Background(), "SELECT id FROM users", map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d rows, want 0", len(results))
	}
}

func TestQueryError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT broken").
		WillReturnError(errors.New("syntax error"))

	_, err := store.Query(context.Background(), "SELECT broken", map[string]any{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
