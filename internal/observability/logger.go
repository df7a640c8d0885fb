// Package observability provides structured audit logging for tag
// validation runs. Per docs/pii-tagging-policy.md §6: "Structured
// logging only. Every validation run must be attributable."
//
// Every run must emit: run_id, actor, operation, services touched,
// transition and violation counts, outcome, and duration.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation names recorded in audit entries. One per auditable surface.
const (
	OperationValidate    = "validate"
	OperationSchemaLint  = "schema-lint"
	OperationAccessCheck = "access-check"
	OperationInspect     = "inspect"
	OperationScan        = "scan"
)

// NewRunID returns a fresh identifier for a validation run.
func NewRunID() string {
	return uuid.NewString()
}

// RunLogEntry contains all required fields for run logging.
// Per docs/pii-tagging-policy.md §6 every run is attributed to an actor
// and carries enough detail to reconstruct what was checked, without
// reproducing the payload data itself.
type RunLogEntry struct {
	// RunID is the unique identifier for this run.
	// Required: every run must have an ID.
	RunID string

	// Actor is the authenticated caller who triggered the run.
	// Required: every run must be attributed.
	Actor string

	// Operation names the surface that produced the entry:
	// validate, schema-lint, access-check, inspect, or scan.
	Operation string

	// Services are the service names touched by the run.
	// May be empty for runs like an access check.
	Services []string

	// TransitionCount is the number of transitions validated.
	TransitionCount int

	// ViolationCount is the number of violations reported.
	ViolationCount int

	// ViolationTypes lists the type of each reported violation, one
	// element per violation. Duplicates are expected and counted.
	ViolationTypes []string

	// Passed records whether the run finished without violations.
	Passed bool

	// Duration is how long the run took.
	// Must be non-negative.
	Duration time.Duration

	// Outcome is the result status: "passed", "violations", "error",
	// or "rejected".
	Outcome string

	// Error contains the error message if the run failed outright.
	// Empty string for runs that completed, violations included.
	Error string
}

// Validate checks that all required fields are present.
func (e *RunLogEntry) Validate() error {
	if e.RunID == "" {
		return fmt.Errorf("observability: run_id is required")
	}
	if e.Actor == "" {
		return fmt.Errorf("observability: actor is required")
	}
	if e.Duration < 0 {
		return fmt.Errorf("observability: duration cannot be negative")
	}
	return nil
}

// RunLogger is the interface for validation run logging.
type RunLogger interface {
	// LogRun logs a validation run event.
	// Returns an error if logging fails or the entry is invalid.
	LogRun(ctx context.Context, entry RunLogEntry) error

	// GetAuditSummary returns aggregated audit statistics.
	// Aggregates only: no payload data exposure.
	GetAuditSummary() *AuditSummary
}

// AuditSummary represents aggregated audit statistics.
// Counts and rankings only: raw field values never appear here.
type AuditSummary struct {
	PassedCount       int                 `json:"passed_count"`
	FailedCount       int                 `json:"failed_count"`
	TopViolationTypes []ViolationTypeStat `json:"top_violation_types"`
	TopServices       []ServiceRunStat    `json:"top_services"`
}

// ViolationTypeStat represents violation type statistics.
type ViolationTypeStat struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ServiceRunStat represents per-service run statistics.
type ServiceRunStat struct {
	Service string `json:"service"`
	Count   int    `json:"count"`
}

// runLogOutput is the structured format for JSON logs, one object per line.
type runLogOutput struct {
	Timestamp       string   `json:"timestamp"`
	Level           string   `json:"level"`
	RunID           string   `json:"run_id"`
	Actor           string   `json:"actor"`
	Operation       string   `json:"operation,omitempty"`
	Services        []string `json:"services"`
	TransitionCount int      `json:"transition_count"`
	ViolationCount  int      `json:"violation_count"`
	ViolationTypes  []string `json:"violation_types,omitempty"`
	Passed          bool     `json:"passed"`
	DurationMs      int64    `json:"duration_ms"`
	Outcome         string   `json:"outcome,omitempty"`
	Error           string   `json:"error,omitempty"`
}

func entryLevel(entry RunLogEntry) string {
	switch {
	case entry.Error != "":
		return "error"
	case entry.ViolationCount > 0:
		return "warn"
	default:
		return "info"
	}
}

func entryOutput(entry RunLogEntry) runLogOutput {
	output := runLogOutput{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Level:           entryLevel(entry),
		RunID:           entry.RunID,
		Actor:           entry.Actor,
		Operation:       entry.Operation,
		Services:        entry.Services,
		TransitionCount: entry.TransitionCount,
		ViolationCount:  entry.ViolationCount,
		ViolationTypes:  entry.ViolationTypes,
		Passed:          entry.Passed,
		DurationMs:      entry.Duration.Milliseconds(),
		Outcome:         entry.Outcome,
		Error:           entry.Error,
	}
	// Services is never null in JSON output.
	if output.Services == nil {
		output.Services = []string{}
	}
	return output
}

// JSONLogger implements RunLogger with line-oriented JSON output.
type JSONLogger struct {
	writer  io.Writer
	entries []RunLogEntry // Track entries for audit summary
	mu      sync.RWMutex
}

// NewJSONLogger creates a new JSON logger writing to the given writer.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{
		writer:  w,
		entries: make([]RunLogEntry, 0),
	}
}

// LogRun logs a validation run event as a single JSON line.
func (l *JSONLogger) LogRun(ctx context.Context, entry RunLogEntry) error {
	// Check context first
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}

	// Validate entry
	if err := entry.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(entryOutput(entry))
	if err != nil {
		return fmt.Errorf("observability: failed to marshal log: %w", err)
	}

	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("observability: failed to write log: %w", err)
	}

	// Track entry for audit summary
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	return nil
}

// GetAuditSummary returns aggregated audit statistics.
func (l *JSONLogger) GetAuditSummary() *AuditSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := &AuditSummary{
		TopViolationTypes: []ViolationTypeStat{},
		TopServices:       []ServiceRunStat{},
	}

	violationTypes := make(map[string]int)
	serviceCounts := make(map[string]int)

	for _, entry := range l.entries {
		if entry.Passed && entry.Error == "" {
			summary.PassedCount++
		} else {
			summary.FailedCount++
		}

		for _, vt := range entry.ViolationTypes {
			violationTypes[vt]++
		}
		for _, service := range entry.Services {
			serviceCounts[service]++
		}
	}

	summary.TopViolationTypes = topViolationTypes(violationTypes)
	summary.TopServices = topServices(serviceCounts)

	return summary
}

func topViolationTypes(counts map[string]int) []ViolationTypeStat {
	stats := make([]ViolationTypeStat, 0, len(counts))
	for vt, count := range counts {
		stats = append(stats, ViolationTypeStat{Type: vt, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Type < stats[j].Type
	})
	if len(stats) > 5 {
		stats = stats[:5]
	}
	return stats
}

func topServices(counts map[string]int) []ServiceRunStat {
	stats := make([]ServiceRunStat, 0, len(counts))
	for service, count := range counts {
		stats = append(stats, ServiceRunStat{Service: service, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Service < stats[j].Service
	})
	if len(stats) > 5 {
		stats = stats[:5]
	}
	return stats
}

// NoopLogger is a logger that discards all logs.
// Useful for testing or when logging is disabled.
type NoopLogger struct{}

// NewNoopLogger creates a new no-op logger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// LogRun does nothing and always succeeds.
func (l *NoopLogger) LogRun(ctx context.Context, entry RunLogEntry) error {
	return nil
}

// GetAuditSummary returns an empty summary for the no-op logger.
func (l *NoopLogger) GetAuditSummary() *AuditSummary {
	return &AuditSummary{
		TopViolationTypes: []ViolationTypeStat{},
		TopServices:       []ServiceRunStat{},
	}
}

// PersistentLogger implements RunLogger with database persistence.
// Audit entries must survive gateway restart, so they are written to
// the audit_runs table rather than held in memory.
type PersistentLogger struct {
	db     *sql.DB
	writer io.Writer // optional: also write to stdout for debugging
}

// NewPersistentLogger creates a logger that persists audit entries.
func NewPersistentLogger(db *sql.DB) (*PersistentLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("observability: database connection is required for persistent logging")
	}
	return &PersistentLogger{
		db: db,
	}, nil
}

// NewPersistentLoggerWithWriter creates a logger that persists to both
// the database and a writer.
func NewPersistentLoggerWithWriter(db *sql.DB, w io.Writer) (*PersistentLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("observability: database connection is required for persistent logging")
	}
	return &PersistentLogger{
		db:     db,
		writer: w,
	}, nil
}

// LogRun persists a run log entry to the audit_runs table.
func (l *PersistentLogger) LogRun(ctx context.Context, entry RunLogEntry) error {
	// Check context first
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}

	// Validate entry
	if err := entry.Validate(); err != nil {
		return err
	}

	servicesJSON, err := json.Marshal(entry.Services)
	if err != nil {
		servicesJSON = []byte("[]")
	}
	violationTypesJSON, err := json.Marshal(entry.ViolationTypes)
	if err != nil {
		violationTypesJSON = []byte("[]")
	}

	query := `
		INSERT INTO audit_runs (
			run_id, actor, operation, services_json, transition_count,
			violation_count, violation_types_json, passed, duration_ms,
			outcome, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = l.db.ExecContext(ctx, query,
		entry.RunID,
		entry.Actor,
		nullableString(entry.Operation),
		servicesJSON,
		entry.TransitionCount,
		entry.ViolationCount,
		violationTypesJSON,
		entry.Passed,
		entry.Duration.Milliseconds(),
		nullableString(entry.Outcome),
		nullableString(entry.Error),
	)
	if err != nil {
		return fmt.Errorf("observability: failed to persist audit entry: %w", err)
	}

	// Also write to optional writer (for debugging)
	if l.writer != nil {
		if data, err := json.Marshal(entryOutput(entry)); err == nil {
			l.writer.Write(append(data, '\n'))
		}
	}

	return nil
}

// GetAuditSummary returns aggregated audit statistics from the database.
func (l *PersistentLogger) GetAuditSummary() *AuditSummary {
	summary := &AuditSummary{
		TopViolationTypes: []ViolationTypeStat{},
		TopServices:       []ServiceRunStat{},
	}

	ctx := context.Background()

	row := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_runs WHERE passed AND (error_message IS NULL OR error_message = '')
	`)
	row.Scan(&summary.PassedCount)

	row = l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_runs WHERE NOT passed OR (error_message IS NOT NULL AND error_message != '')
	`)
	row.Scan(&summary.FailedCount)

	rows, err := l.db.QueryContext(ctx, `
		SELECT violation_type, COUNT(*) as cnt
		FROM audit_runs, jsonb_array_elements_text(violation_types_json) as violation_type
		GROUP BY violation_type
		ORDER BY cnt DESC, violation_type
		LIMIT 5
	`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var vt string
			var count int
			if rows.Scan(&vt, &count) == nil {
				summary.TopViolationTypes = append(summary.TopViolationTypes, ViolationTypeStat{
					Type:  vt,
					Count: count,
				})
			}
		}
	}

	rows, err = l.db.QueryContext(ctx, `
		SELECT service_name, COUNT(*) as cnt
		FROM audit_runs, jsonb_array_elements_text(services_json) as service_name
		GROUP BY service_name
		ORDER BY cnt DESC, service_name
		LIMIT 5
	`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var service string
			var count int
			if rows.Scan(&service, &count) == nil {
				summary.TopServices = append(summary.TopServices, ServiceRunStat{
					Service: service,
					Count:   count,
				})
			}
		}
	}

	return summary
}

// nullableString converts empty strings to nil for SQL NULL.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
