// Package models provides shared data models for the datatags public API.
// The types mirror the gateway wire format without importing internal
// packages, so external clients can depend on them directly.
package models

import (
	"time"
)

// FieldTag is the classification a payload claims for one field.
type FieldTag struct {
	Level           string `json:"level" yaml:"level"`
	RetentionPolicy string `json:"retentionPolicy" yaml:"retentionPolicy"`
}

// Payload is a snapshot of tagged data at one side of a service hop.
type Payload struct {
	Service string              `json:"service" yaml:"service"`
	Fields  map[string]FieldTag `json:"fields" yaml:"fields"`
}

// Transition is one hop of data flow between two services.
type Transition struct {
	Source      *Payload `json:"source" yaml:"source"`
	Destination *Payload `json:"destination" yaml:"destination"`
	Dropped     []string `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// ValidateRequest is the API request for validating a transition chain.
type ValidateRequest struct {
	Transitions []Transition `json:"transitions"`
}

// Violation is one policy violation found during a validation run.
type Violation struct {
	Type            string `json:"type"`
	TransitionIndex int    `json:"transitionIndex"`
	FieldPath       string `json:"fieldPath"`
	Detail          string `json:"detail"`
}

// ValidateResponse is the API response for a validation run.
type ValidateResponse struct {
	RunID           string      `json:"run_id"`
	Passed          bool        `json:"passed"`
	TransitionCount int         `json:"transition_count"`
	Violations      []Violation `json:"violations"`
	DurationMs      int64       `json:"duration_ms"`
}

// FieldInfo is the API representation of one registered field.
type FieldInfo struct {
	Service            string `json:"service"`
	FieldPath          string `json:"fieldPath"`
	Level              string `json:"level"`
	RetentionPolicy    string `json:"retentionPolicy"`
	Required           bool   `json:"required"`
	RequiresEncryption bool   `json:"requiresEncryption"`
	Description        string `json:"description,omitempty"`
}

// ServicesResponse lists the services with registered fields.
type ServicesResponse struct {
	Services []string `json:"services"`
	Count    int      `json:"count"`
}

// FieldsResponse lists the registered fields of one service.
type FieldsResponse struct {
	Service string      `json:"service"`
	Fields  []FieldInfo `json:"fields"`
}

// AccessCheckRequest asks the matrix for a (role, endpoint) decision.
type AccessCheckRequest struct {
	Role      string `json:"role"`
	Endpoint  string `json:"endpoint"`
	OwnRecord bool   `json:"own_record"`
}

// AccessCheckResponse is the matrix decision for one check.
type AccessCheckResponse struct {
	Role      string `json:"role"`
	Endpoint  string `json:"endpoint"`
	Decision  string `json:"decision"`
	Allowed   bool   `json:"allowed"`
	OwnRecord bool   `json:"own_record"`
}

// AccessRow is one row of the access policy table.
type AccessRow struct {
	Role     string `json:"role"`
	Endpoint string `json:"endpoint"`
	Scope    string `json:"scope"`
}

// AccessMatrixResponse is the full policy table.
type AccessMatrixResponse struct {
	Rows []AccessRow `json:"rows"`
}

// InspectRequest asks the gateway to inspect a service query.
type InspectRequest struct {
	Service string `json:"service"`
	Query   string `json:"query"`
}

// ColumnFinding is one column reference resolved during inspection.
type ColumnFinding struct {
	Column             string `json:"column"`
	Table              string `json:"table,omitempty"`
	FieldPath          string `json:"fieldPath,omitempty"`
	Registered         bool   `json:"registered"`
	Level              string `json:"level,omitempty"`
	Retention          string `json:"retention,omitempty"`
	RequiresEncryption bool   `json:"requiresEncryption"`
	WriteTarget        bool   `json:"writeTarget"`
}

// InspectResponse is the outcome of inspecting one query.
type InspectResponse struct {
	Service       string          `json:"service"`
	Kind          string          `json:"kind"`
	Mutates       bool            `json:"mutates"`
	Tables        []string        `json:"tables"`
	Columns       []ColumnFinding `json:"columns"`
	Unregistered  []string        `json:"unregistered,omitempty"`
	StarExpansion bool            `json:"starExpansion"`
	MaxLevel      string          `json:"maxLevel,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// RunSummary is one persisted validation run in the audit listing.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	Actor          string    `json:"actor"`
	Services       []string  `json:"services"`
	Passed         bool      `json:"passed"`
	ViolationCount int       `json:"violation_count"`
	CreatedAt      time.Time `json:"created_at"`
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

// AuditSummaryResponse is the aggregated audit statistics response.
// Counts and rankings only: raw field values never appear here.
type AuditSummaryResponse struct {
	PassedCount       int                 `json:"passed_count"`
	FailedCount       int                 `json:"failed_count"`
	TopViolationTypes []ViolationTypeStat `json:"top_violation_types"`
	TopServices       []ServiceRunStat    `json:"top_services"`
	RecentRuns        []RunSummary        `json:"recent_runs"`
}

// ErrorResponse is the API response for errors.
type ErrorResponse struct {
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
}
