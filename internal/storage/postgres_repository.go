// Package storage provides persistence for validation runs and registry
// snapshots.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/propagation"
	"github.com/harperz567/food-app-qa/internal/registry"
)

// PostgresRepository implements Repository using PostgreSQL.
// This is the production implementation behind the gateway.
type PostgresRepository struct {
	db *sql.DB
}

// PostgresConfig configures the PostgreSQL repository.
type PostgresConfig struct {
	// ConnectionString is the PostgreSQL connection string.
	ConnectionString string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime.
	ConnMaxLifetime time.Duration
}

// OpenPostgres opens a pooled PostgreSQL connection and verifies it.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, errors.NewDatabaseUnavailable(fmt.Sprintf("cannot open postgres connection: %v", err))
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewDatabaseUnavailable(fmt.Sprintf("postgres ping failed: %v", err))
	}
	return db, nil
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SaveReport persists a validation run report.
func (r *PostgresRepository) SaveReport(ctx context.Context, record *ReportRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	servicesJSON, err := json.Marshal(record.Services)
	if err != nil {
		return fmt.Errorf("failed to encode services: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM validation_reports WHERE run_id = $1)",
		record.RunID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check report existence: %w", err)
	}
	if exists {
		return errors.NewStorageFailed("save report",
			fmt.Errorf("report %s already persisted", record.RunID))
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO validation_reports (run_id, actor, services_json, transition_count, passed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.RunID, record.Actor, servicesJSON, record.TransitionCount, record.Passed, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert validation report: %w", err)
	}

	// Violation order is a reporting guarantee, so the ordinal is stored
	// rather than relying on insertion order.
	for i, v := range record.Violations {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO report_violations (run_id, ordinal, violation_type, transition_index, field_path, detail)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			record.RunID, i, string(v.Type), v.TransitionIndex, v.FieldPath, v.Detail,
		)
		if err != nil {
			return fmt.Errorf("failed to insert violation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetReport retrieves a report by run id.
func (r *PostgresRepository) GetReport(ctx context.Context, runID string) (*ReportRecord, error) {
	if runID == "" {
		return nil, errors.NewReportNotFound(runID)
	}

	var servicesJSON []byte
	record := &ReportRecord{RunID: runID}

	err := r.db.QueryRowContext(ctx,
		`SELECT actor, services_json, transition_count, passed, created_at
		 FROM validation_reports WHERE run_id = $1`,
		runID,
	).Scan(&record.Actor, &servicesJSON, &record.TransitionCount, &record.Passed, &record.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, errors.NewReportNotFound(runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation report: %w", err)
	}

	if len(servicesJSON) > 0 {
		if err := json.Unmarshal(servicesJSON, &record.Services); err != nil {
			return nil, fmt.Errorf("failed to decode services: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT violation_type, transition_index, field_path, detail
		 FROM report_violations WHERE run_id = $1 ORDER BY ordinal`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get violations: %w", err)
	}
	defer rows.Close()

	record.Violations = make([]propagation.Violation, 0)
	for rows.Next() {
		var v propagation.Violation
		var vtype string
		if err := rows.Scan(&vtype, &v.TransitionIndex, &v.FieldPath, &v.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		v.Type = propagation.ViolationType(vtype)
		record.Violations = append(record.Violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violations: %w", err)
	}

	return record, nil
}

// ListReports returns the most recent reports, newest first.
func (r *PostgresRepository) ListReports(ctx context.Context, limit int) ([]*ReportRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT run_id FROM validation_reports ORDER BY created_at DESC, run_id LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list validation reports: %w", err)
	}
	defer rows.Close()

	var runIDs []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		runIDs = append(runIDs, runID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run ids: %w", err)
	}

	result := make([]*ReportRecord, 0, len(runIDs))
	for _, runID := range runIDs {
		record, err := r.GetReport(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to get report %s: %w", runID, err)
		}
		result = append(result, record)
	}

	return result, nil
}

// SaveSnapshot persists a registry snapshot.
func (r *PostgresRepository) SaveSnapshot(ctx context.Context, record *SnapshotRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO registry_snapshots (snapshot_id, source, field_count, created_at)
		 VALUES ($1, $2, $3, $4)`,
		record.SnapshotID, record.Source, len(record.Fields), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert registry snapshot: %w", err)
	}

	for _, desc := range record.Fields {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshot_fields (snapshot_id, service, field_path, level, retention, required, description)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			record.SnapshotID, desc.Service, desc.FieldPath,
			string(desc.Tag.Level), string(desc.Tag.Retention), desc.Required, desc.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot field: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LatestSnapshot returns the newest persisted registry snapshot.
func (r *PostgresRepository) LatestSnapshot(ctx context.Context) (*SnapshotRecord, error) {
	record := &SnapshotRecord{}

	err := r.db.QueryRowContext(ctx,
		`SELECT snapshot_id, source, created_at
		 FROM registry_snapshots ORDER BY created_at DESC, snapshot_id LIMIT 1`,
	).Scan(&record.SnapshotID, &record.Source, &record.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, errors.NewSnapshotNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registry snapshot: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT service, field_path, level, retention, required, description
		 FROM snapshot_fields WHERE snapshot_id = $1 ORDER BY service, field_path`,
		record.SnapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var desc registry.FieldDescriptor
		var level, retention string
		var description sql.NullString
		if err := rows.Scan(&desc.Service, &desc.FieldPath, &level, &retention, &desc.Required, &description); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot field: %w", err)
		}
		desc.Tag = registry.Tag{
			Level:     classification.Level(level),
			Retention: classification.RetentionPolicy(retention),
		}
		desc.Description = description.String
		record.Fields = append(record.Fields, desc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot fields: %w", err)
	}

	return record, nil
}

// CheckConnectivity verifies database connectivity.
func (r *PostgresRepository) CheckConnectivity(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return errors.NewDatabaseUnavailable(fmt.Sprintf("postgres ping failed: %v", err))
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Verify PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
