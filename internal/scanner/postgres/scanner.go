// Package postgres provides the PostgreSQL schema scanner.
// PostgreSQL backs the user store in the reference deployment, so this is
// the scanner most audits start with.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harperz567/food-app-qa/internal/scanner"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Config configures the PostgreSQL scanner.
type Config struct {
	// Service is the service whose store this scanner reads.
	Service string

	// Host is the PostgreSQL host.
	Host string

	// Port is the PostgreSQL port (default 5432).
	Port int

	// Database is the database name.
	Database string

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// Schema is the schema to scan (default "public").
	Schema string

	// SSLMode controls SSL: disable, require, verify-ca, verify-full.
	SSLMode string

	// ConnectTimeout is the timeout for the connection test.
	ConnectTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Port:           5432,
		Schema:         "public",
		SSLMode:        "disable",
		ConnectTimeout: 10 * time.Second,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("postgres scanner: service is required")
	}
	if c.Host == "" {
		return fmt.Errorf("postgres scanner: host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("postgres scanner: database is required")
	}
	if c.User == "" {
		return fmt.Errorf("postgres scanner: user is required")
	}
	return nil
}

// Scanner implements the scanner interface for PostgreSQL.
type Scanner struct {
	mu     sync.RWMutex
	config Config
	db     *sql.DB
	closed bool
}

// NewScanner creates a PostgreSQL scanner and verifies connectivity.
func NewScanner(ctx context.Context, config Config) (*Scanner, error) {
	if config.Port <= 0 {
		config.Port = 5432
	}
	if config.Schema == "" {
		config.Schema = "public"
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		config.Host, config.Port, config.Database,
		config.User, config.Password, config.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres scanner: failed to open connection: %w", err)
	}

	// A scanner reads schemas, not data; a small pool is plenty.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres scanner: connection test failed: %w", err)
	}

	return &Scanner{config: config, db: db}, nil
}

// NewScannerWithoutConnect creates a scanner without establishing a
// connection. Useful for configuration validation in tests.
func NewScannerWithoutConnect(config Config) *Scanner {
	if config.Schema == "" {
		config.Schema = "public"
	}
	return &Scanner{config: config}
}

// Name returns the store technology name.
func (s *Scanner) Name() string {
	return "postgres"
}

// Service returns the service whose store this scanner reads.
func (s *Scanner) Service() string {
	return s.config.Service
}

// Ping checks if PostgreSQL is reachable.
func (s *Scanner) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("postgres scanner: scanner is closed")
	}
	if s.db == nil {
		return fmt.Errorf("postgres scanner: connection not available")
	}

	return s.db.PingContext(ctx)
}

// columnQuery lists every column of the configured schema in stable order.
const columnQuery = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

// ListColumns returns every column of the configured schema.
func (s *Scanner) ListColumns(ctx context.Context) ([]scanner.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("postgres scanner: scanner is closed")
	}
	if s.db == nil {
		return nil, fmt.Errorf("postgres scanner: connection not available")
	}

	rows, err := s.db.QueryContext(ctx, columnQuery, s.config.Schema)
	if err != nil {
		return nil, fmt.Errorf("postgres scanner: schema query failed: %w", err)
	}
	defer rows.Close()

	var columns []scanner.Column
	for rows.Next() {
		var column scanner.Column
		var nullable string
		if err := rows.Scan(&column.Table, &column.Name, &column.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("postgres scanner: failed to scan column row: %w", err)
		}
		column.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres scanner: row iteration error: %w", err)
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
