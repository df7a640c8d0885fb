// Package snowflake provides the Snowflake schema scanner.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harperz567/food-app-qa/internal/scanner"

	// Import gosnowflake driver - registers as "snowflake"
	_ "github.com/snowflakedb/gosnowflake"
)

// Config configures the Snowflake scanner.
type Config struct {
	// Service is the service whose store this scanner reads.
	Service string

	// DSN is the gosnowflake connection string.
	// Format: user:password@account/database/schema?warehouse=X
	DSN string

	// Database is the database whose INFORMATION_SCHEMA is scanned.
	// Empty falls back to the DSN's default database.
	Database string

	// Schema is the schema to scan (default "PUBLIC").
	Schema string

	// ConnectTimeout is the timeout for the connection test.
	ConnectTimeout time.Duration

	// QueryTimeout bounds the schema query.
	QueryTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Schema:         "PUBLIC",
		ConnectTimeout: 30 * time.Second,
		QueryTimeout:   time.Minute,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("snowflake scanner: service is required")
	}
	if c.DSN == "" {
		return fmt.Errorf("snowflake scanner: dsn is required")
	}
	return nil
}

// Scanner implements the scanner interface for Snowflake.
type Scanner struct {
	mu     sync.RWMutex
	config Config
	db     *sql.DB
	closed bool
}

// NewScanner creates a Snowflake scanner and verifies connectivity.
func NewScanner(ctx context.Context, config Config) (*Scanner, error) {
	if config.Schema == "" {
		config.Schema = "PUBLIC"
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = time.Minute
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("snowflake", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("snowflake scanner: failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("snowflake scanner: connection test failed: %w", err)
	}

	return &Scanner{config: config, db: db}, nil
}

// NewScannerWithoutConnect creates a scanner without establishing a
// connection. Useful for configuration validation in tests.
func NewScannerWithoutConnect(config Config) *Scanner {
	if config.Schema == "" {
		config.Schema = "PUBLIC"
	}
	return &Scanner{config: config}
}

// Name returns the store technology name.
func (s *Scanner) Name() string {
	return "snowflake"
}

// Service returns the service whose store this scanner reads.
func (s *Scanner) Service() string {
	return s.config.Service
}

// Ping checks if Snowflake is reachable.
func (s *Scanner) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("snowflake scanner: scanner is closed")
	}
	if s.db == nil {
		return fmt.Errorf("snowflake scanner: connection not available")
	}

	return s.db.PingContext(ctx)
}

// ListColumns returns every column of the configured schema.
func (s *Scanner) ListColumns(ctx context.Context) ([]scanner.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("snowflake scanner: scanner is closed")
	}
	if s.db == nil {
		return nil, fmt.Errorf("snowflake scanner: connection not available")
	}

	// Snowflake scopes INFORMATION_SCHEMA per database.
	source := "INFORMATION_SCHEMA.COLUMNS"
	if s.config.Database != "" {
		source = s.config.Database + ".INFORMATION_SCHEMA.COLUMNS"
	}
	query := fmt.Sprintf(`
SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, IS_NULLABLE
FROM %s
WHERE TABLE_SCHEMA = ?
ORDER BY TABLE_NAME, ORDINAL_POSITION`, source)

	queryCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, query, s.config.Schema)
	if err != nil {
		return nil, fmt.Errorf("snowflake scanner: schema query failed: %w", err)
	}
	defer rows.Close()

	var columns []scanner.Column
	for rows.Next() {
		var column scanner.Column
		var nullable string
		if err := rows.Scan(&column.Table, &column.Name, &column.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("snowflake scanner: failed to scan column row: %w", err)
		}
		column.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snowflake scanner: row iteration error: %w", err)
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
