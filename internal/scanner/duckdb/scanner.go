// Package duckdb provides the DuckDB schema scanner.
// DuckDB backs local analytics extracts; scanning them catches tagged data
// copied out of a service store into an untracked file.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/harperz567/food-app-qa/internal/scanner"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
)

// Config configures the DuckDB scanner.
type Config struct {
	// Service is the service whose store this scanner reads.
	Service string

	// DatabasePath is the path to the DuckDB database file.
	// Use ":memory:" for an in-memory database.
	DatabasePath string

	// Schema is the schema to scan (default "main").
	Schema string
}

// Scanner implements the scanner interface for DuckDB.
type Scanner struct {
	mu     sync.RWMutex
	config Config
	db     *sql.DB
	closed bool
}

// NewScanner creates a DuckDB scanner. A scanner that fails to open its
// database is returned in a failed state and errors on first use.
func NewScanner(config Config) *Scanner {
	if config.DatabasePath == "" {
		config.DatabasePath = ":memory:"
	}
	if config.Schema == "" {
		config.Schema = "main"
	}

	db, err := sql.Open("duckdb", config.DatabasePath)
	if err != nil {
		return &Scanner{config: config, closed: true}
	}

	return &Scanner{config: config, db: db}
}

// Name returns the store technology name.
func (s *Scanner) Name() string {
	return "duckdb"
}

// Service returns the service whose store this scanner reads.
func (s *Scanner) Service() string {
	return s.config.Service
}

// Ping checks if the database is usable.
func (s *Scanner) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.db == nil {
		return fmt.Errorf("duckdb scanner: connection is closed")
	}

	return s.db.PingContext(ctx)
}

// columnQuery lists every column of the configured schema in stable order.
const columnQuery = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = ?
ORDER BY table_name, ordinal_position`

// ListColumns returns every column of the configured schema.
func (s *Scanner) ListColumns(ctx context.Context) ([]scanner.Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("duckdb scanner: context error: %w", err)
	}

	s.mu.RLock()
	if s.closed || s.db == nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("duckdb scanner: connection is closed")
	}
	db := s.db
	s.mu.RUnlock()

	rows, err := db.QueryContext(ctx, columnQuery, s.config.Schema)
	if err != nil {
		return nil, fmt.Errorf("duckdb scanner: schema query failed: %w", err)
	}
	defer rows.Close()

	var columns []scanner.Column
	for rows.Next() {
		var column scanner.Column
		var nullable string
		if err := rows.Scan(&column.Table, &column.Name, &column.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("duckdb scanner: failed to scan column row: %w", err)
		}
		column.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb scanner: row iteration error: %w", err)
	}

	return columns, nil
}

// Close releases the database handle. Idempotent.
func (s *Scanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure Scanner implements the scanner interface.
var _ scanner.Scanner = (*Scanner)(nil)
