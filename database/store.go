// Package database executes bot-authored queries against PostgreSQL.
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

// Store runs parameterized queries for database blocks. Queries use named
// parameters (:name), bound from the rendered block params.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database and verifies the connection.
func Open(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an existing connection.
func NewFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Query executes the query with named parameters and returns every row as a
// column-to-value map.
func (s *Store) Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	rows, err := s.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var results []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading rows: %w", err)
	}
	return results, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
