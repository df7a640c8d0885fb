// Package trino provides the Trino schema scanner. Trino fronts the lake
// tables downstream analytics read, so its schema is where dropped tags
// tend to resurface.
package trino

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harperz567/food-app-qa/internal/scanner"

	_ "github.com/trinodb/trino-go-client/trino" // Trino driver
)

// Config configures the Trino scanner.
type Config struct {
	// Service is the service whose store this scanner reads.
	Service string

	// DSN is the trino-go-client connection string.
	// Format: http[s]://user@host:port?catalog=X&schema=Y
	DSN string

	// Catalog is the catalog whose information_schema is scanned.
	// Empty falls back to the DSN's default catalog.
	Catalog string

	// Schema is the schema to scan (default "default").
	Schema string

	// Connection pool settings.
	// MaxOpenConns is the maximum number of open connections. Default: 5.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections. Default: 2.
	MaxIdleConns int

	// ConnMaxLifetime is the maximum lifetime of a connection. Default: 5 minutes.
	ConnMaxLifetime time.Duration

	// QueryTimeout bounds the schema query. Default: 1 minute.
	QueryTimeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("trino scanner: service is required")
	}
	if c.DSN == "" {
		return fmt.Errorf("trino scanner: dsn is required")
	}
	return nil
}

// Scanner implements the scanner interface for Trino.
type Scanner struct {
	mu     sync.RWMutex
	config Config
	db     *sql.DB
	closed bool
}

// NewScanner creates a Trino scanner. A scanner that fails to open its
// connection is returned in a failed state and errors on first use.
func NewScanner(config Config) *Scanner {
	if config.Schema == "" {
		config.Schema = "default"
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 5
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 2
	}
	if config.ConnMaxLifetime <= 0 {
		config.ConnMaxLifetime = 5 * time.Minute
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = time.Minute
	}

	db, err := sql.Open("trino", config.DSN)
	if err != nil {
		return &Scanner{config: config, closed: true}
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	return &Scanner{config: config, db: db}
}

// Name returns the store technology name.
func (s *Scanner) Name() string {
	return "trino"
}

// Service returns the service whose store this scanner reads.
func (s *Scanner) Service() string {
	return s.config.Service
}

// Ping checks if the Trino coordinator is reachable.
func (s *Scanner) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.db == nil {
		return fmt.Errorf("trino scanner: connection is closed")
	}

	return s.db.PingContext(ctx)
}

// ListColumns returns every column of the configured schema.
func (s *Scanner) ListColumns(ctx context.Context) ([]scanner.Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("trino scanner: context error: %w", err)
	}

	s.mu.RLock()
	if s.closed || s.db == nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("trino scanner: connection is closed")
	}
	db := s.db
	config := s.config
	s.mu.RUnlock()

	// Trino scopes information_schema per catalog.
	source := "information_schema.columns"
	if config.Catalog != "" {
		source = config.Catalog + ".information_schema.columns"
	}
	query := fmt.Sprintf(`
SELECT table_name, column_name, data_type, is_nullable
FROM %s
WHERE table_schema = ?
ORDER BY table_name, ordinal_position`, source)

	queryCtx, cancel := context.WithTimeout(ctx, config.QueryTimeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, query, config.Schema)
	if err != nil {
		return nil, fmt.Errorf("trino scanner: schema query failed: %w", err)
	}
	defer rows.Close()

	var columns []scanner.Column
	for rows.Next() {
		var column scanner.Column
		var nullable string
		if err := rows.Scan(&column.Table, &column.Name, &column.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("trino scanner: failed to scan column row: %w", err)
		}
		column.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trino scanner: row iteration error: %w", err)
	}

	return columns, nil
}

// Close releases the connection pool. Idempotent.
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
