// Package storage provides persistence for validation runs and registry
// snapshots. Reports survive gateway restarts so audit trails stay
// complete, and snapshots record what the registry looked like when a
// run was judged.
//
// Per docs/pii-tagging-policy.md §6: audit data is persisted, never
// reconstructed from memory.
package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/propagation"
	"github.com/harperz567/food-app-qa/internal/registry"
)

// ReportRecord is a persisted validation run: who ran it, what it
// touched, and every violation it reported.
type ReportRecord struct {
	RunID           string
	Actor           string
	Services        []string
	TransitionCount int
	Passed          bool
	Violations      []propagation.Violation
	CreatedAt       time.Time
}

// Validate checks that the record carries the required attribution.
func (r *ReportRecord) Validate() error {
	if r.RunID == "" {
		return errors.NewStorageFailed("validate report record", fmt.Errorf("run id is required"))
	}
	if r.Actor == "" {
		return errors.NewStorageFailed("validate report record", fmt.Errorf("actor is required"))
	}
	return nil
}

// SnapshotRecord is a persisted copy of the tag registry at a point in
// time. Reports reference the snapshot that was live when they ran.
type SnapshotRecord struct {
	SnapshotID string
	Source     string
	Fields     []registry.FieldDescriptor
	CreatedAt  time.Time
}

// Validate checks that the record is complete enough to persist.
func (s *SnapshotRecord) Validate() error {
	if s.SnapshotID == "" {
		return errors.NewStorageFailed("validate snapshot record", fmt.Errorf("snapshot id is required"))
	}
	if len(s.Fields) == 0 {
		return errors.NewStorageFailed("validate snapshot record", fmt.Errorf("snapshot carries no fields"))
	}
	return nil
}

// Repository defines the interface for run and snapshot persistence.
// All implementations must be:
// - Thread-safe
// - Context-aware (respecting cancellation/timeout)
// - Explicit about errors (never swallow)
type Repository interface {
	// SaveReport persists a validation run report.
	// Returns an error if:
	// - The record is missing its run id or actor
	// - A report with the same run id already exists
	// - Context is cancelled
	SaveReport(ctx context.Context, record *ReportRecord) error

	// GetReport retrieves a report by run id.
	// Returns ErrReportNotFound if no report matches.
	GetReport(ctx context.Context, runID string) (*ReportRecord, error)

	// ListReports returns the most recent reports, newest first.
	// Returns empty slice (not nil) if no reports exist.
	ListReports(ctx context.Context, limit int) ([]*ReportRecord, error)

	// SaveSnapshot persists a registry snapshot.
	SaveSnapshot(ctx context.Context, record *SnapshotRecord) error

	// LatestSnapshot returns the newest persisted registry snapshot.
	// Returns ErrSnapshotNotFound if none has been saved.
	LatestSnapshot(ctx context.Context) (*SnapshotRecord, error)

	// CheckConnectivity verifies the backend is reachable.
	// Startup fails if the configured repository is unavailable.
	CheckConnectivity(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

// SnapshotFromRegistry builds a snapshot record from a loaded registry.
func SnapshotFromRegistry(snapshotID, source string, reg *registry.Registry) *SnapshotRecord {
	return &SnapshotRecord{
		SnapshotID: snapshotID,
		Source:     source,
		Fields:     reg.All(),
		CreatedAt:  time.Now().UTC(),
	}
}

// DetectRegistryDrift compares the latest persisted snapshot against the
// live registry. Drift means the schema files changed since the snapshot
// was taken; reports judged against the old registry may no longer hold.
func DetectRegistryDrift(ctx context.Context, repo Repository, reg *registry.Registry) ([]string, error) {
	snapshot, err := repo.LatestSnapshot(ctx)
	if err != nil {
		if _, ok := err.(*errors.ErrSnapshotNotFound); ok {
			// Nothing persisted yet, nothing to drift from.
			return nil, nil
		}
		return nil, err
	}

	persisted := make(map[string]registry.FieldDescriptor, len(snapshot.Fields))
	for _, desc := range snapshot.Fields {
		persisted[desc.Service+"."+desc.FieldPath] = desc
	}

	var drift []string
	for _, desc := range reg.All() {
		key := desc.Service + "." + desc.FieldPath
		old, ok := persisted[key]
		if !ok {
			drift = append(drift, "added: "+key)
			continue
		}
		if !old.Tag.Equal(desc.Tag) || old.Required != desc.Required {
			drift = append(drift, "changed: "+key)
		}
		delete(persisted, key)
	}
	for key := range persisted {
		drift = append(drift, "removed: "+key)
	}
	sort.Strings(drift)
	return drift, nil
}
