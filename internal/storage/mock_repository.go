package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/propagation"
	"github.com/harperz567/food-app-qa/internal/registry"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It is thread-safe and respects context cancellation.
// In-memory stores may exist ONLY for tests; the gateway refuses to start
// without a real backend.
type MockRepository struct {
	mu        sync.RWMutex
	reports   map[string]*ReportRecord
	snapshots []*SnapshotRecord

	// Test helper fields for simulating failures
	connectivityFailure     bool
	persistenceFailure      bool
	connectivityCheckCalled bool
}

// NewMockRepository creates a new mock repository.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		reports: make(map[string]*ReportRecord),
	}
}

// checkContext verifies the context is not cancelled or timed out.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// SaveReport persists a validation run report.
func (r *MockRepository) SaveReport(ctx context.Context, record *ReportRecord) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.persistenceFailure {
		return errors.NewDatabaseUnavailable("persistence failure (simulated)")
	}

	if _, exists := r.reports[record.RunID]; exists {
		return errors.NewStorageFailed("save report",
			fmt.Errorf("report %s already persisted", record.RunID))
	}

	stored := copyReport(record)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.reports[record.RunID] = stored
	return nil
}

// GetReport retrieves a report by run id.
func (r *MockRepository) GetReport(ctx context.Context, runID string) (*ReportRecord, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.reports[runID]
	if !exists {
		return nil, errors.NewReportNotFound(runID)
	}
	return copyReport(record), nil
}

// ListReports returns the most recent reports, newest first.
func (r *MockRepository) ListReports(ctx context.Context, limit int) ([]*ReportRecord, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*ReportRecord, 0, len(r.reports))
	for _, record := range r.reports {
		result = append(result, copyReport(record))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SaveSnapshot persists a registry snapshot.
func (r *MockRepository) SaveSnapshot(ctx context.Context, record *SnapshotRecord) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.persistenceFailure {
		return errors.NewDatabaseUnavailable("persistence failure (simulated)")
	}

	stored := copySnapshot(record)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.snapshots = append(r.snapshots, stored)
	return nil
}

// LatestSnapshot returns the newest persisted registry snapshot.
func (r *MockRepository) LatestSnapshot(ctx context.Context) (*SnapshotRecord, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.snapshots) == 0 {
		return nil, errors.NewSnapshotNotFound()
	}

	latest := r.snapshots[0]
	for _, snap := range r.snapshots[1:] {
		if snap.CreatedAt.After(latest.CreatedAt) {
			latest = snap
		}
	}
	return copySnapshot(latest), nil
}

// CheckConnectivity verifies the (simulated) backend is reachable.
func (r *MockRepository) CheckConnectivity(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectivityCheckCalled = true

	if r.connectivityFailure {
		return errors.NewDatabaseUnavailable("mock connectivity failure")
	}
	return nil
}

// Close is a no-op for the mock.
func (r *MockRepository) Close() error {
	return nil
}

// Test helper methods for simulating failures

// SetConnectivityFailure configures the mock to simulate connectivity failures.
func (r *MockRepository) SetConnectivityFailure(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectivityFailure = fail
}

// SetPersistenceFailure configures the mock to simulate persistence failures.
func (r *MockRepository) SetPersistenceFailure(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistenceFailure = fail
}

// ConnectivityCheckCalled returns whether CheckConnectivity was called.
func (r *MockRepository) ConnectivityCheckCalled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectivityCheckCalled
}

// copyReport creates a deep copy of a report record.
func copyReport(src *ReportRecord) *ReportRecord {
	dst := &ReportRecord{
		RunID:           src.RunID,
		Actor:           src.Actor,
		TransitionCount: src.TransitionCount,
		Passed:          src.Passed,
		CreatedAt:       src.CreatedAt,
	}
	if len(src.Services) > 0 {
		dst.Services = make([]string, len(src.Services))
		copy(dst.Services, src.Services)
	}
	dst.Violations = make([]propagation.Violation, len(src.Violations))
	copy(dst.Violations, src.Violations)
	return dst
}

// copySnapshot creates a deep copy of a snapshot record.
func copySnapshot(src *SnapshotRecord) *SnapshotRecord {
	dst := &SnapshotRecord{
		SnapshotID: src.SnapshotID,
		Source:     src.Source,
		CreatedAt:  src.CreatedAt,
	}
	if len(src.Fields) > 0 {
		dst.Fields = make([]registry.FieldDescriptor, len(src.Fields))
		copy(dst.Fields, src.Fields)
	}
	return dst
}

// Verify MockRepository implements Repository interface.
var _ Repository = (*MockRepository)(nil)
