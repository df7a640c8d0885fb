// Package storage provides persistence for validation runs and registry
// snapshots.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/propagation"
	"github.com/harperz567/food-app-qa/internal/registry"
)

// SQLiteRepository implements Repository using an embedded SQLite file.
// This is the local path: a laptop running the CLI against a schema
// checkout, with no PostgreSQL around. The gateway uses PostgreSQL.
type SQLiteRepository struct {
	db *sql.DB
}

// sqliteTimeLayout is fixed-width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000Z07:00"

// NewSQLiteRepository opens (or creates) a SQLite database at the given
// path and bootstraps the schema. Pass ":memory:" for a throwaway store.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path == "" {
		return nil, errors.NewDatabaseUnavailable("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewDatabaseUnavailable(fmt.Sprintf("cannot open sqlite database: %v", err))
	}
	// A single writer avoids SQLITE_BUSY on concurrent CLI invocations.
	db.SetMaxOpenConns(1)

	repo := &SQLiteRepository{db: db}
	if err := repo.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// ensureSchema creates the local tables when missing. The gateway's
// PostgreSQL schema is managed by migrations instead.
func (r *SQLiteRepository) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS validation_reports (
			run_id TEXT PRIMARY KEY,
			actor TEXT NOT NULL,
			services_json TEXT NOT NULL DEFAULT '[]',
			transition_count INTEGER NOT NULL DEFAULT 0,
			passed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS report_violations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES validation_reports(run_id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			violation_type TEXT NOT NULL,
			transition_index INTEGER NOT NULL,
			field_path TEXT NOT NULL,
			detail TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS registry_snapshots (
			snapshot_id TEXT PRIMARY KEY,
			source TEXT,
			field_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_fields (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id TEXT NOT NULL REFERENCES registry_snapshots(snapshot_id) ON DELETE CASCADE,
			service TEXT NOT NULL,
			field_path TEXT NOT NULL,
			level TEXT NOT NULL,
			retention TEXT NOT NULL,
			required INTEGER NOT NULL DEFAULT 0,
			description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS audit_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			actor TEXT NOT NULL,
			operation TEXT,
			services_json TEXT DEFAULT '[]',
			transition_count INTEGER DEFAULT 0,
			violation_count INTEGER DEFAULT 0,
			violation_types_json TEXT DEFAULT '[]',
			passed INTEGER DEFAULT 0,
			duration_ms INTEGER DEFAULT 0,
			outcome TEXT,
			error_message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return errors.NewStorageFailed("bootstrap sqlite schema", err)
		}
	}
	return nil
}

// SaveReport persists a validation run report.
func (r *SQLiteRepository) SaveReport(ctx context.Context, record *ReportRecord) error {
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
		"SELECT EXISTS(SELECT 1 FROM validation_reports WHERE run_id = ?)",
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
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.RunID, record.Actor, string(servicesJSON), record.TransitionCount, record.Passed,
		createdAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert validation report: %w", err)
	}

	for i, v := range record.Violations {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO report_violations (run_id, ordinal, violation_type, transition_index, field_path, detail)
			 VALUES (?, ?, ?, ?, ?, ?)`,
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
func (r *SQLiteRepository) GetReport(ctx context.Context, runID string) (*ReportRecord, error) {
	if runID == "" {
		return nil, errors.NewReportNotFound(runID)
	}

	var servicesJSON, createdAt string
	record := &ReportRecord{RunID: runID}

	err := r.db.QueryRowContext(ctx,
		`SELECT actor, services_json, transition_count, passed, created_at
		 FROM validation_reports WHERE run_id = ?`,
		runID,
	).Scan(&record.Actor, &servicesJSON, &record.TransitionCount, &record.Passed, &createdAt)

	if err == sql.ErrNoRows {
		return nil, errors.NewReportNotFound(runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation report: %w", err)
	}

	if record.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse report timestamp: %w", err)
	}

	if servicesJSON != "" {
		if err := json.Unmarshal([]byte(servicesJSON), &record.Services); err != nil {
			return nil, fmt.Errorf("failed to decode services: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT violation_type, transition_index, field_path, detail
		 FROM report_violations WHERE run_id = ? ORDER BY ordinal`,
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
		var detail sql.NullString
		if err := rows.Scan(&vtype, &v.TransitionIndex, &v.FieldPath, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		v.Type = propagation.ViolationType(vtype)
		v.Detail = detail.String
		record.Violations = append(record.Violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violations: %w", err)
	}

	return record, nil
}

// ListReports returns the most recent reports, newest first.
func (r *SQLiteRepository) ListReports(ctx context.Context, limit int) ([]*ReportRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT run_id FROM validation_reports ORDER BY created_at DESC, run_id LIMIT ?",
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
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, record *SnapshotRecord) error {
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
		 VALUES (?, ?, ?, ?)`,
		record.SnapshotID, record.Source, len(record.Fields),
		createdAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert registry snapshot: %w", err)
	}

	for _, desc := range record.Fields {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshot_fields (snapshot_id, service, field_path, level, retention, required, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
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
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context) (*SnapshotRecord, error) {
	record := &SnapshotRecord{}
	var createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT snapshot_id, source, created_at
		 FROM registry_snapshots ORDER BY created_at DESC, snapshot_id LIMIT 1`,
	).Scan(&record.SnapshotID, &record.Source, &createdAt)

	if err == sql.ErrNoRows {
		return nil, errors.NewSnapshotNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registry snapshot: %w", err)
	}

	if record.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot timestamp: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT service, field_path, level, retention, required, description
		 FROM snapshot_fields WHERE snapshot_id = ? ORDER BY service, field_path`,
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

// CheckConnectivity verifies the database file is reachable.
func (r *SQLiteRepository) CheckConnectivity(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return errors.NewDatabaseUnavailable(fmt.Sprintf("sqlite ping failed: %v", err))
	}
	return nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// DB exposes the handle for the persistent audit logger, which shares
// the same database file.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

// Verify SQLiteRepository implements Repository interface.
var _ Repository = (*SQLiteRepository)(nil)
