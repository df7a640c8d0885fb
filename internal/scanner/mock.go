package scanner

import (
	"context"
	"sync"
)

// MockScanner is an in-memory Scanner implementation for testing.
// Supports failure injection so callers can exercise unreachable-store and
// broken-schema paths without a live database.
type MockScanner struct {
	mu      sync.Mutex
	name    string
	service string
	columns []Column

	pingFailure error
	listFailure error
	closed      bool
	pingCount   int
}

// NewMockScanner creates a mock scanner reporting the given columns for
// the service.
func NewMockScanner(name, service string, columns []Column) *MockScanner {
	return &MockScanner{
		name:    name,
		service: service,
		columns: columns,
	}
}

// Name returns the store technology name given at construction.
func (m *MockScanner) Name() string {
	return m.name
}

// Service returns the service name given at construction.
func (m *MockScanner) Service() string {
	return m.service
}

// Ping returns the injected ping failure, if any.
func (m *MockScanner) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingCount++
	return m.pingFailure
}

// ListColumns returns a copy of the configured columns, or the injected
// list failure.
func (m *MockScanner) ListColumns(ctx context.Context) ([]Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listFailure != nil {
		return nil, m.listFailure
	}
	columns := make([]Column, len(m.columns))
	copy(columns, m.columns)
	return columns, nil
}

// Close marks the scanner closed. Idempotent.
func (m *MockScanner) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetPingFailure injects an error returned by subsequent Ping calls.
func (m *MockScanner) SetPingFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingFailure = err
}

// SetListFailure injects an error returned by subsequent ListColumns calls.
func (m *MockScanner) SetListFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listFailure = err
}

// PingCount returns how many times Ping was called.
func (m *MockScanner) PingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingCount
}

// Closed reports whether Close was called.
func (m *MockScanner) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Ensure MockScanner implements the Scanner interface.
var _ Scanner = (*MockScanner)(nil)
