// Package bigquery provides the Google BigQuery schema scanner.
// BigQuery holds the food catalog's analytical tables; RECORD fields are
// flattened to dotted column names so nested schemas resolve against
// dotted registry field paths.
package bigquery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/harperz567/food-app-qa/internal/scanner"
)

// Config configures the BigQuery scanner.
type Config struct {
	// Service is the service whose store this scanner reads.
	Service string

	// ProjectID is the GCP project ID.
	ProjectID string

	// Dataset is the dataset to scan.
	Dataset string

	// CredentialsJSON is the service account key (optional if using ADC).
	CredentialsJSON string

	// Location is the BigQuery region (e.g., "US", "EU").
	Location string

	// ScanTimeout bounds the full table-metadata walk.
	ScanTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Location:    "US",
		ScanTimeout: time.Minute,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("bigquery scanner: service is required")
	}
	if c.ProjectID == "" {
		return fmt.Errorf("bigquery scanner: project_id is required")
	}
	if c.Dataset == "" {
		return fmt.Errorf("bigquery scanner: dataset is required")
	}
	return nil
}

// Scanner implements the scanner interface for BigQuery.
type Scanner struct {
	mu     sync.RWMutex
	config Config
	client *bigquery.Client
	closed bool
}

// NewScanner creates a BigQuery scanner.
func NewScanner(ctx context.Context, config Config) (*Scanner, error) {
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = time.Minute
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if config.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	}
	// Without explicit credentials the SDK uses Application Default Credentials.

	client, err := bigquery.NewClient(ctx, config.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery scanner: failed to create client: %w", err)
	}

	return &Scanner{config: config, client: client}, nil
}

// NewScannerWithoutConnect creates a scanner without a client.
// Useful for configuration validation in tests.
func NewScannerWithoutConnect(config Config) *Scanner {
	return &Scanner{config: config}
}

// Name returns the store technology name.
func (s *Scanner) Name() string {
	return "bigquery"
}

// Service returns the service whose store this scanner reads.
func (s *Scanner) Service() string {
	return s.config.Service
}

// Ping checks if the dataset is reachable.
func (s *Scanner) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("bigquery scanner: scanner is closed")
	}
	if s.client == nil {
		return fmt.Errorf("bigquery scanner: client not available")
	}

	if _, err := s.client.Dataset(s.config.Dataset).Metadata(ctx); err != nil {
		return fmt.Errorf("bigquery scanner: ping failed: %w", err)
	}
	return nil
}

// ListColumns walks every table of the dataset and flattens its schema.
func (s *Scanner) ListColumns(ctx context.Context) ([]scanner.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("bigquery scanner: scanner is closed")
	}
	if s.client == nil {
		return nil, fmt.Errorf("bigquery scanner: client not available")
	}

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	var columns []scanner.Column
	it := s.client.Dataset(s.config.Dataset).Tables(scanCtx)
	for {
		table, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery scanner: failed to list tables: %w", err)
		}

		metadata, err := table.Metadata(scanCtx)
		if err != nil {
			return nil, fmt.Errorf("bigquery scanner: failed to read metadata for %s: %w", table.TableID, err)
		}

		for _, field := range metadata.Schema {
			columns = append(columns, flattenField(table.TableID, "", field)...)
		}
	}

	return columns, nil
}

// flattenField converts one schema field into columns. RECORD fields
// recurse with dotted prefixes: a field "address" with sub-field "city"
// becomes the column "address.city".
func flattenField(table, prefix string, field *bigquery.FieldSchema) []scanner.Column {
	name := field.Name
	if prefix != "" {
		name = prefix + "." + field.Name
	}

	if field.Type == bigquery.RecordFieldType {
		var columns []scanner.Column
		for _, sub := range field.Schema {
			columns = append(columns, flattenField(table, name, sub)...)
		}
		return columns
	}

	return []scanner.Column{{
		Table:    table,
		Name:     name,
		DataType: string(field.Type),
		Nullable: !field.Required,
	}}
}

// Close releases the client. Idempotent.
func (s *Scanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Ensure Scanner implements the scanner interface.
var _ scanner.Scanner = (*Scanner)(nil)
