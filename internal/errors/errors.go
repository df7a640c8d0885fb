// Package errors provides explicit, human-readable error types for datatags.
// All errors must include a Reason and Suggestion for actionable feedback.
//
// Per docs/pii-tagging-policy.md: "A rejected schema or payload must tell the
// operator what to fix. If you can't explain the failure, don't ship."
package errors

import (
	"fmt"
)

// TagError is the base error type for all datatags errors.
// Every error must provide a human-readable reason and suggestion.
type TagError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error for exit code mapping.
type ErrorCode int

const (
	CodeValidation ErrorCode = 1
	CodeAuth       ErrorCode = 2
	CodeStore      ErrorCode = 3
	CodeInternal   ErrorCode = 4
)

func (e *TagError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *TagError) Unwrap() error {
	return e.Cause
}

// tagCarrier is satisfied by every concrete error type in this package
// through method promotion on the embedded TagError.
type tagCarrier interface {
	tagError() *TagError
}

func (e *TagError) tagError() *TagError { return e }

// FromError returns the TagError carried by err, or nil when err is not
// a datatags error. Callers use it to map errors onto HTTP statuses and
// exit codes without enumerating every concrete type.
func FromError(err error) *TagError {
	if carrier, ok := err.(tagCarrier); ok {
		return carrier.tagError()
	}
	return nil
}

// ErrDuplicateField is returned when the same (service, field path) is
// registered twice with conflicting tags within one registry load.
type ErrDuplicateField struct {
	TagError
	Service   string
	FieldPath string
}

// NewDuplicateField creates a new ErrDuplicateField.
func NewDuplicateField(service, fieldPath string) *ErrDuplicateField {
	return &ErrDuplicateField{
		TagError: TagError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("duplicate field registration: %s.%s", service, fieldPath),
			Reason:     "the field is already registered with a conflicting tag",
			Suggestion: "remove the stale definition from the tag schema, or register with overwrite enabled",
		},
		Service:   service,
		FieldPath: fieldPath,
	}
}

// ErrUnknownField is returned when a looked-up field has no registry entry.
// An unregistered field flowing through the system is a policy gap, never a
// silent default.
type ErrUnknownField struct {
	TagError
	Service   string
	FieldPath string
}

// NewUnknownField creates a new ErrUnknownField.
func NewUnknownField(service, fieldPath string) *ErrUnknownField {
	return &ErrUnknownField{
		TagError: TagError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("field not registered: %s.%s", service, fieldPath),
			Reason:     "no tag registered for this (service, field path)",
			Suggestion: fmt.Sprintf("list registered fields with 'datatags field list --service %s'", service),
		},
		Service:   service,
		FieldPath: fieldPath,
	}
}

// ErrUnknownService is returned when a referenced service has no registered fields.
type ErrUnknownService struct {
	TagError
	Service string
}

// NewUnknownService creates a new ErrUnknownService.
func NewUnknownService(service string) *ErrUnknownService {
	return &ErrUnknownService{
		TagError: TagError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("service not registered: %s", service),
			Reason:     "no fields are registered for this service",
			Suggestion: "list known services with 'datatags schema show'",
		},
		Service: service,
	}
}

// ErrInvalidTag is returned when a tag definition carries an invalid
// sensitivity level or retention policy.
type ErrInvalidTag struct {
	TagError
	Service   string
	FieldPath string
}

// NewInvalidTag creates a new ErrInvalidTag.
func NewInvalidTag(service, fieldPath, reason string) *ErrInvalidTag {
	return &ErrInvalidTag{
		TagError: TagError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("invalid tag for %s.%s", service, fieldPath),
			Reason:     reason,
			Suggestion: "allowed levels and retention policies are listed in docs/pii-tagging-policy.md",
		},
		Service:   service,
		FieldPath: fieldPath,
	}
}

// ErrSchemaLoadFailed is returned when a tag schema file cannot be loaded.
// No partial registry is ever accepted.
type ErrSchemaLoadFailed struct {
	TagError
	Path string
}

// NewSchemaLoadFailed creates a new ErrSchemaLoadFailed.
func NewSchemaLoadFailed(path, reason string, cause error) *ErrSchemaLoadFailed {
	return &ErrSchemaLoadFailed{
		TagError: TagError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("tag schema load failed: %s", path),
			Reason:     reason,
			Suggestion: "validate the file with 'datatags schema lint' and fix every reported entry",
			Cause:      cause,
		},
		Path: path,
	}
}

// ErrMalformedTransition is returned when a transition is structurally
// invalid. Policy violations are report data; this error is reserved for
// input the validator cannot evaluate at all.
type ErrMalformedTransition struct {
	TagError
	Index int
}

// NewMalformedTransition creates a new ErrMalformedTransition.
func NewMalformedTransition(index int, reason string) *ErrMalformedTransition {
	return &ErrMalformedTransition{
		TagError: TagError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("malformed transition at index %d", index),
			Reason:     reason,
			Suggestion: "each transition needs a source and destination payload with a service name",
		},
		Index: index,
	}
}

// ErrAuthFailed is returned when gateway authentication fails.
type ErrAuthFailed struct {
	TagError
}

// NewAuthFailed creates a new ErrAuthFailed.
func NewAuthFailed(reason string) *ErrAuthFailed {
	return &ErrAuthFailed{
		TagError: TagError{
			Code:       CodeAuth,
			Message:    "authentication failed",
			Reason:     reason,
			Suggestion: "pass a configured API key via the Authorization header",
		},
	}
}

// ErrAccessDenied is returned when the access matrix has no allowing row.
type ErrAccessDenied struct {
	TagError
	Role     string
	Endpoint string
}

// NewAccessDenied creates a new ErrAccessDenied.
func NewAccessDenied(role, endpoint string) *ErrAccessDenied {
	return &ErrAccessDenied{
		TagError: TagError{
			Code:       CodeAuth,
			Message:    fmt.Sprintf("access denied: %s on %s", role, endpoint),
			Reason:     "no matrix row allows this role on this endpoint",
			Suggestion: "review the matrix with 'datatags access matrix'",
		},
		Role:     role,
		Endpoint: endpoint,
	}
}

// ErrStorageFailed is returned when the configured repository cannot
// complete an operation.
type ErrStorageFailed struct {
	TagError
	Operation string
}

// NewStorageFailed creates a new ErrStorageFailed.
func NewStorageFailed(operation string, cause error) *ErrStorageFailed {
	return &ErrStorageFailed{
		TagError: TagError{
			Code:       CodeStore,
			Message:    fmt.Sprintf("storage operation failed: %s", operation),
			Reason:     "the configured repository backend returned an error",
			Suggestion: "check the storage configuration with 'datatags doctor'",
			Cause:      cause,
		},
		Operation: operation,
	}
}

// ErrReportNotFound is returned when no validation report exists for a
// run identifier.
type ErrReportNotFound struct {
	TagError
	RunID string
}

// NewReportNotFound creates a new ErrReportNotFound.
func NewReportNotFound(runID string) *ErrReportNotFound {
	return &ErrReportNotFound{
		TagError: TagError{
			Code:       CodeStore,
			Message:    fmt.Sprintf("validation report not found: %s", runID),
			Reason:     "no persisted report matches this run id",
			Suggestion: "list recent runs with 'datatags audit summary'",
		},
		RunID: runID,
	}
}

// ErrSnapshotNotFound is returned when no registry snapshot has been
// persisted yet.
type ErrSnapshotNotFound struct {
	TagError
}

// NewSnapshotNotFound creates a new ErrSnapshotNotFound.
func NewSnapshotNotFound() *ErrSnapshotNotFound {
	return &ErrSnapshotNotFound{
		TagError: TagError{
			Code:       CodeStore,
			Message:    "no registry snapshot persisted",
			Reason:     "the repository holds no snapshot of the tag registry",
			Suggestion: "start the gateway with registry.snapshotOnLoad enabled so it persists one",
		},
	}
}

// ErrDatabaseUnavailable is returned when the repository backend cannot
// be reached.
type ErrDatabaseUnavailable struct {
	TagError
}

// NewDatabaseUnavailable creates a new ErrDatabaseUnavailable.
func NewDatabaseUnavailable(reason string) *ErrDatabaseUnavailable {
	return &ErrDatabaseUnavailable{
		TagError: TagError{
			Code:       CodeStore,
			Message:    "database unavailable",
			Reason:     reason,
			Suggestion: "verify the storage DSN and that the database is accepting connections",
		},
	}
}

// ErrMigrationFailed is returned when a schema migration cannot be applied.
// Startup must fail rather than run against a partial schema.
type ErrMigrationFailed struct {
	TagError
	Migration string
}

// NewMigrationFailed creates a new ErrMigrationFailed.
func NewMigrationFailed(migration string, cause error) *ErrMigrationFailed {
	return &ErrMigrationFailed{
		TagError: TagError{
			Code:       CodeStore,
			Message:    fmt.Sprintf("migration failed: %s", migration),
			Reason:     "the migration statement did not apply cleanly",
			Suggestion: "inspect the migration SQL and the database logs, then retry",
			Cause:      cause,
		},
		Migration: migration,
	}
}

// ErrScannerFailed is returned when a schema scanner cannot reach or read
// its store.
type ErrScannerFailed struct {
	TagError
	Store string
}

// NewScannerFailed creates a new ErrScannerFailed.
func NewScannerFailed(store, reason string, cause error) *ErrScannerFailed {
	return &ErrScannerFailed{
		TagError: TagError{
			Code:       CodeStore,
			Message:    fmt.Sprintf("schema scan failed: %s", store),
			Reason:     reason,
			Suggestion: "verify connectivity with 'datatags doctor' and the scanner settings in the config file",
			Cause:      cause,
		},
		Store: store,
	}
}

// ErrGatewayUnavailable is returned when the CLI cannot reach the
// gateway endpoint.
type ErrGatewayUnavailable struct {
	TagError
	Endpoint string
}

// NewGatewayUnavailable creates a new ErrGatewayUnavailable.
func NewGatewayUnavailable(endpoint, reason string) *ErrGatewayUnavailable {
	message := "gateway unavailable"
	if endpoint != "" {
		message = fmt.Sprintf("gateway unavailable: %s", endpoint)
	}
	return &ErrGatewayUnavailable{
		TagError: TagError{
			Code:       CodeInternal,
			Message:    message,
			Reason:     reason,
			Suggestion: "check the endpoint setting and that the gateway is running",
		},
		Endpoint: endpoint,
	}
}

// ErrQueryRejected is returned when a SQL statement cannot be inspected.
type ErrQueryRejected struct {
	TagError
	Query string
}

// NewQueryRejected creates a new ErrQueryRejected.
func NewQueryRejected(query, reason, suggestion string) *ErrQueryRejected {
	return &ErrQueryRejected{
		TagError: TagError{
			Code:       CodeValidation,
			Message:    "query rejected",
			Reason:     reason,
			Suggestion: suggestion,
		},
		Query: query,
	}
}
