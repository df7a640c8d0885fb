package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/harperz567/food-app-qa/internal/access"
	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/observability"
	"github.com/harperz567/food-app-qa/internal/propagation"
	"github.com/harperz567/food-app-qa/internal/registry"
	"github.com/harperz567/food-app-qa/internal/status"
	"github.com/harperz567/food-app-qa/internal/storage"
	"github.com/harperz567/food-app-qa/pkg/api"
)

// auditRecentLimit caps the recent-run listing in the audit summary.
const auditRecentLimit = 10

// readinessTimeout bounds the storage connectivity probe.
const readinessTimeout = 5 * time.Second

// HealthResponse is the health endpoint response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// handleHealth reports liveness. Public: no token required.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	g.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: g.version,
	})
}

// ComponentStatus reports the readiness of one gateway dependency.
type ComponentStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// ReadyResponse is the readiness endpoint response.
type ReadyResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
}

// handleReady reports whether the gateway can serve real traffic:
// storage reachable, registry loaded, matrix loaded. Public, so
// orchestrators can probe it before tokens exist.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	report := status.Run(ctx, g.readinessChecks())

	components := make(map[string]ComponentStatus, len(report.Checks))
	for _, check := range report.Checks {
		components[check.Name] = ComponentStatus{Ready: check.OK, Message: check.Detail}
	}

	state := "ready"
	code := http.StatusOK
	if !report.OK() {
		state = "degraded"
		code = http.StatusServiceUnavailable
	}

	g.writeJSON(w, code, ReadyResponse{Status: state, Components: components})
}

func (g *Gateway) readinessChecks() []status.Check {
	return []status.Check{
		{
			Name: "storage",
			Run: func(ctx context.Context) (string, error) {
				if err := g.repo.CheckConnectivity(ctx); err != nil {
					return "repository unreachable", err
				}
				return "connected", nil
			},
		},
		{
			Name: "registry",
			Run: func(ctx context.Context) (string, error) {
				count := g.registry.Len()
				if count == 0 {
					return "no fields registered", fmt.Errorf("registry is empty")
				}
				return fmt.Sprintf("%d field(s) registered", count), nil
			},
		},
		{
			Name: "access",
			Run: func(ctx context.Context) (string, error) {
				roles, err := g.matrix.Roles()
				if err != nil {
					return "policy table unreadable", err
				}
				return fmt.Sprintf("%d role(s) loaded", len(roles)), nil
			},
		},
	}
}

// ValidateRequest is the wire request for a validation run.
type ValidateRequest struct {
	Transitions []propagation.Transition `json:"transitions"`
}

// ValidateResponse is the wire response for a validation run.
type ValidateResponse struct {
	RunID           string                  `json:"run_id"`
	Passed          bool                    `json:"passed"`
	TransitionCount int                     `json:"transition_count"`
	Violations      []propagation.Violation `json:"violations"`
	DurationMs      int64                   `json:"duration_ms"`
}

// handleValidate runs the propagation validator over a transition chain,
// persists the report, and logs the run. Violations are data: a run
// that finds them still responds 200 with passed=false.
func (g *Gateway) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeBadRequest(w, "request body is not valid JSON", `send {"transitions": [...]}`)
		return
	}

	runID := observability.NewRunID()
	actor := actorID(r)
	start := time.Now()

	report, err := g.validator.Validate(req.Transitions)
	if err != nil {
		// The rejection reaches the caller even if the audit write fails.
		_ = g.logRun(r.Context(), observability.RunLogEntry{
			RunID:           runID,
			Actor:           actor,
			Operation:       observability.OperationValidate,
			TransitionCount: len(req.Transitions),
			Duration:        time.Since(start),
			Outcome:         "rejected",
			Error:           err.Error(),
		})
		g.writeError(w, err)
		return
	}

	services := transitionServices(req.Transitions)
	record := &storage.ReportRecord{
		RunID:           runID,
		Actor:           actor,
		Services:        services,
		TransitionCount: len(req.Transitions),
		Passed:          report.Passed,
		Violations:      report.Violations,
		CreatedAt:       time.Now().UTC(),
	}
	if err := g.repo.SaveReport(r.Context(), record); err != nil {
		_ = g.logRun(r.Context(), observability.RunLogEntry{
			RunID:     runID,
			Actor:     actor,
			Operation: observability.OperationValidate,
			Services:  services,
			Duration:  time.Since(start),
			Outcome:   "error",
			Error:     err.Error(),
		})
		g.writeError(w, err)
		return
	}

	outcome := "passed"
	if !report.Passed {
		outcome = "violations"
	}
	if err := g.logRun(r.Context(), observability.RunLogEntry{
		RunID:           runID,
		Actor:           actor,
		Operation:       observability.OperationValidate,
		Services:        services,
		TransitionCount: len(req.Transitions),
		ViolationCount:  len(report.Violations),
		ViolationTypes:  violationTypes(report),
		Passed:          report.Passed,
		Duration:        time.Since(start),
		Outcome:         outcome,
	}); err != nil {
		g.writeError(w, err)
		return
	}

	violations := report.Violations
	if violations == nil {
		violations = []propagation.Violation{}
	}

	w.Header().Set(api.HeaderRunID, runID)
	g.writeJSON(w, http.StatusOK, ValidateResponse{
		RunID:           runID,
		Passed:          report.Passed,
		TransitionCount: len(req.Transitions),
		Violations:      violations,
		DurationMs:      time.Since(start).Milliseconds(),
	})
}

// logRun writes an audit entry. A failing audit trail fails the
// request: per docs/pii-tagging-policy.md §6 runs are never silently
// unattributed.
func (g *Gateway) logRun(ctx context.Context, entry observability.RunLogEntry) error {
	if err := g.logger.LogRun(ctx, entry); err != nil {
		return errors.NewStorageFailed("write audit log", err)
	}
	return nil
}

// transitionServices collects the distinct service names a chain
// touches, sorted.
func transitionServices(transitions []propagation.Transition) []string {
	seen := make(map[string]struct{})
	for _, t := range transitions {
		if t.Source != nil && t.Source.Service != "" {
			seen[t.Source.Service] = struct{}{}
		}
		if t.Destination != nil && t.Destination.Service != "" {
			seen[t.Destination.Service] = struct{}{}
		}
	}
	services := make([]string, 0, len(seen))
	for service := range seen {
		services = append(services, service)
	}
	sort.Strings(services)
	return services
}

// violationTypes lists the type of each violation, one element per
// violation, for audit aggregation.
func violationTypes(report *propagation.Report) []string {
	if len(report.Violations) == 0 {
		return nil
	}
	types := make([]string, 0, len(report.Violations))
	for _, v := range report.Violations {
		types = append(types, string(v.Type))
	}
	return types
}

// ServicesResponse lists the services with registered fields.
type ServicesResponse struct {
	Services []string `json:"services"`
	Count    int      `json:"count"`
}

// handleServices lists every service the registry knows.
func (g *Gateway) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	services := g.registry.Services()
	g.writeJSON(w, http.StatusOK, ServicesResponse{
		Services: services,
		Count:    len(services),
	})
}

// FieldInfo is the wire representation of one registered field.
type FieldInfo struct {
	Service            string `json:"service"`
	FieldPath          string `json:"fieldPath"`
	Level              string `json:"level"`
	RetentionPolicy    string `json:"retentionPolicy"`
	Required           bool   `json:"required"`
	RequiresEncryption bool   `json:"requiresEncryption"`
	Description        string `json:"description,omitempty"`
}

func fieldInfo(desc registry.FieldDescriptor) FieldInfo {
	return FieldInfo{
		Service:            desc.Service,
		FieldPath:          desc.FieldPath,
		Level:              desc.Tag.Level.String(),
		RetentionPolicy:    desc.Tag.Retention.String(),
		Required:           desc.Required,
		RequiresEncryption: desc.Tag.Level.RequiresEncryption(),
		Description:        desc.Description,
	}
}

// FieldsResponse lists the registered fields of one service.
type FieldsResponse struct {
	Service string      `json:"service"`
	Fields  []FieldInfo `json:"fields"`
}

// handleFields lists the registered fields of the service named in the
// query string. An optional min_level restricts the listing to fields at
// or above a sensitivity level.
func (g *Gateway) handleFields(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	service := r.URL.Query().Get("service")
	if service == "" {
		g.writeBadRequest(w, "query parameter service is required", "GET "+api.EndpointRegistryFields+"?service=<name>")
		return
	}

	min := classification.LevelPublic
	if raw := r.URL.Query().Get("min_level"); raw != "" {
		parsed, err := classification.ParseLevel(raw)
		if err != nil {
			g.writeBadRequest(w, err.Error(), "min_level is a sensitivity level, e.g. SENSITIVE")
			return
		}
		min = parsed
	}

	descriptors, err := g.registry.SensitiveFields(service, min)
	if err != nil {
		g.writeError(w, err)
		return
	}

	fields := make([]FieldInfo, 0, len(descriptors))
	for _, desc := range descriptors {
		fields = append(fields, fieldInfo(desc))
	}
	g.writeJSON(w, http.StatusOK, FieldsResponse{Service: service, Fields: fields})
}

// handleLookup resolves one (service, field path) to its registered tag.
func (g *Gateway) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	service := r.URL.Query().Get("service")
	fieldPath := r.URL.Query().Get("path")
	if service == "" || fieldPath == "" {
		g.writeBadRequest(w, "query parameters service and path are required", "GET "+api.EndpointRegistryLookup+"?service=<name>&path=<path>")
		return
	}

	desc, err := g.registry.Describe(service, fieldPath)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, fieldInfo(desc))
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

// handleAccessCheck evaluates the access matrix for one probe. The
// decision is data: denials respond 200 with allowed=false, so security
// test cases can assert the designed matrix.
func (g *Gateway) handleAccessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req AccessCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeBadRequest(w, "request body is not valid JSON", `send {"role": "...", "endpoint": "...", "own_record": false}`)
		return
	}
	if req.Role == "" {
		g.writeBadRequest(w, "role is required", "name one of the roles from the access matrix")
		return
	}
	if req.Endpoint == "" {
		g.writeBadRequest(w, "endpoint is required", "name a service endpoint, e.g. /user/fetchUserById")
		return
	}

	start := time.Now()
	allowed, decision, err := g.matrix.EvaluateOwnership(req.Role, req.Endpoint, req.OwnRecord)
	if err != nil {
		g.writeError(w, err)
		return
	}

	if err := g.logRun(r.Context(), observability.RunLogEntry{
		RunID:     observability.NewRunID(),
		Actor:     actorID(r),
		Operation: observability.OperationAccessCheck,
		Passed:    allowed,
		Duration:  time.Since(start),
		Outcome:   "passed",
	}); err != nil {
		g.writeError(w, err)
		return
	}

	g.writeJSON(w, http.StatusOK, AccessCheckResponse{
		Role:      access.NormalizeRole(req.Role),
		Endpoint:  req.Endpoint,
		Decision:  decision.String(),
		Allowed:   allowed,
		OwnRecord: req.OwnRecord,
	})
}

// AccessMatrixResponse is the full policy table.
type AccessMatrixResponse struct {
	Rows []access.Row `json:"rows"`
}

// handleAccessMatrix returns the policy table.
func (g *Gateway) handleAccessMatrix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	rows, err := g.matrix.Rows()
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, AccessMatrixResponse{Rows: rows})
}

// InspectRequest asks for column-level inspection of a service query.
type InspectRequest struct {
	Service string `json:"service"`
	Query   string `json:"query"`
}

// handleInspect resolves the columns a query touches against the
// registry. Warnings are advisory; only unparseable input is an error.
func (g *Gateway) handleInspect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req InspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeBadRequest(w, "request body is not valid JSON", `send {"service": "...", "query": "SELECT ..."}`)
		return
	}
	if req.Service == "" {
		g.writeBadRequest(w, "service is required", "name the service issuing the query")
		return
	}

	runID := observability.NewRunID()
	actor := actorID(r)
	start := time.Now()

	report, err := g.inspector.Inspect(req.Service, req.Query)
	if err != nil {
		_ = g.logRun(r.Context(), observability.RunLogEntry{
			RunID:     runID,
			Actor:     actor,
			Operation: observability.OperationInspect,
			Services:  []string{req.Service},
			Duration:  time.Since(start),
			Outcome:   "rejected",
			Error:     err.Error(),
		})
		g.writeError(w, err)
		return
	}

	if err := g.logRun(r.Context(), observability.RunLogEntry{
		RunID:     runID,
		Actor:     actor,
		Operation: observability.OperationInspect,
		Services:  []string{req.Service},
		Passed:    len(report.Warnings) == 0,
		Duration:  time.Since(start),
		Outcome:   "passed",
	}); err != nil {
		g.writeError(w, err)
		return
	}

	w.Header().Set(api.HeaderRunID, runID)
	g.writeJSON(w, http.StatusOK, report)
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

// AuditSummaryResponse is the aggregated audit statistics response.
// Counts and rankings only: raw field values never appear here.
type AuditSummaryResponse struct {
	PassedCount       int                               `json:"passed_count"`
	FailedCount       int                               `json:"failed_count"`
	TopViolationTypes []observability.ViolationTypeStat `json:"top_violation_types"`
	TopServices       []observability.ServiceRunStat    `json:"top_services"`
	RecentRuns        []RunSummary                      `json:"recent_runs"`
}

// handleAuditSummary combines in-process run statistics with the most
// recent persisted reports.
func (g *Gateway) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	summary := g.logger.GetAuditSummary()

	records, err := g.repo.ListReports(r.Context(), auditRecentLimit)
	if err != nil {
		g.writeError(w, err)
		return
	}

	recent := make([]RunSummary, 0, len(records))
	for _, record := range records {
		recent = append(recent, RunSummary{
			RunID:          record.RunID,
			Actor:          record.Actor,
			Services:       record.Services,
			Passed:         record.Passed,
			ViolationCount: len(record.Violations),
			CreatedAt:      record.CreatedAt,
		})
	}

	g.writeJSON(w, http.StatusOK, AuditSummaryResponse{
		PassedCount:       summary.PassedCount,
		FailedCount:       summary.FailedCount,
		TopViolationTypes: summary.TopViolationTypes,
		TopServices:       summary.TopServices,
		RecentRuns:        recent,
	})
}
