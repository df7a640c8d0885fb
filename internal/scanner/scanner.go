// Package scanner audits live service stores against the tag registry.
// Each scanner connects to one service's backing store and lists the
// columns the store actually exposes; the coverage audit diffs that schema
// against the registered fields. Live columns without tags and tagged
// fields without live columns are both findings.
//
// Per docs/pii-tagging-policy.md §3: "A tag schema describes what a
// service should store. Only the store itself can say what it does store."
//
// Scanners are stateless, replaceable, thin. No silent retries, no hidden
// fallbacks: retry is explicit via ExecuteWithRetry, and every attempt is
// visible in the result.
package scanner

import (
	"context"
	"sort"
)

// Column is one live column of a service's backing store.
type Column struct {
	// Table is the table holding the column.
	Table string `json:"table"`

	// Name is the column name as the store reports it.
	Name string `json:"name"`

	// DataType is the store's type name, reported verbatim.
	DataType string `json:"dataType"`

	// Nullable reports whether the store allows NULL values.
	Nullable bool `json:"nullable"`
}

// Scanner reads the live schema of one service's backing store.
// Implementations must propagate errors explicitly and never swallow them.
type Scanner interface {
	// Name returns the store technology, e.g. "postgres".
	Name() string

	// Service returns the service whose store this scanner reads.
	Service() string

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error

	// ListColumns returns every column of the service's store schema,
	// ordered by table then ordinal position.
	ListColumns(ctx context.Context) ([]Column, error)

	// Close releases any resources held by the scanner.
	Close() error
}

// ScannerRegistry manages the configured scanners, keyed by service name.
// One service has one backing store; registering a second scanner for the
// same service replaces the first.
type ScannerRegistry struct {
	scanners map[string]Scanner
}

// NewScannerRegistry creates an empty scanner registry.
func NewScannerRegistry() *ScannerRegistry {
	return &ScannerRegistry{
		scanners: make(map[string]Scanner),
	}
}

// Register adds a scanner to the registry under its service name.
func (r *ScannerRegistry) Register(s Scanner) {
	r.scanners[s.Service()] = s
}

// Get returns the scanner for a service.
func (r *ScannerRegistry) Get(service string) (Scanner, bool) {
	s, ok := r.scanners[service]
	return s, ok
}

// Available returns the service names with a configured scanner, sorted.
func (r *ScannerRegistry) Available() []string {
	services := make([]string, 0, len(r.scanners))
	for service := range r.scanners {
		services = append(services, service)
	}
	sort.Strings(services)
	return services
}

// PingAll checks the reachability of every configured store.
// Returns a map of service name to ping result; a nil value means the
// store answered.
func (r *ScannerRegistry) PingAll(ctx context.Context) map[string]error {
	results := make(map[string]error, len(r.scanners))
	for service, s := range r.scanners {
		results[service] = s.Ping(ctx)
	}
	return results
}

// CloseAll closes every registered scanner and returns the last error.
func (r *ScannerRegistry) CloseAll() error {
	var lastErr error
	for _, s := range r.scanners {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// IsEmpty returns true if no scanners are registered.
func (r *ScannerRegistry) IsEmpty() bool {
	return len(r.scanners) == 0
}
