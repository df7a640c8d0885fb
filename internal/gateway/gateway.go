// Package gateway implements the HTTP audit surface of datatags.
// The gateway authenticates callers, validates tag propagation chains,
// answers registry and access-matrix questions, inspects service
// queries, and serves aggregated audit statistics.
//
// Per docs/pii-tagging-policy.md §6: every validation run that passes
// through the gateway is persisted and attributed. The gateway refuses
// to start without a repository; audit trails are never reconstructed
// from memory.
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/harperz567/food-app-qa/internal/access"
	"github.com/harperz567/food-app-qa/internal/auth"
	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/inspect"
	"github.com/harperz567/food-app-qa/internal/observability"
	"github.com/harperz567/food-app-qa/internal/propagation"
	"github.com/harperz567/food-app-qa/internal/registry"
	"github.com/harperz567/food-app-qa/internal/storage"
	"github.com/harperz567/food-app-qa/pkg/api"
)

// Config holds gateway construction options.
type Config struct {
	// Version is reported by the health endpoint.
	Version string

	// RequiredFieldCheck enables reporting of required destination
	// fields missing from both payloads during validation.
	RequiredFieldCheck bool
}

// Gateway is the HTTP handler for the datatags audit API.
type Gateway struct {
	authenticator auth.Authenticator
	authorizer    *auth.Authorizer
	registry      *registry.Registry
	validator     *propagation.Validator
	inspector     *inspect.Inspector
	matrix        *access.Matrix
	repo          storage.Repository
	logger        observability.RunLogger
	mux           *http.ServeMux
	version       string
}

// NewGateway creates a gateway over a loaded registry.
// Startup fails when any mandatory collaborator is missing: requests
// must never be judged against an empty registry, and runs must never
// go unpersisted.
func NewGateway(
	authenticator auth.Authenticator,
	reg *registry.Registry,
	matrix *access.Matrix,
	repo storage.Repository,
	logger observability.RunLogger,
	cfg Config,
) (*Gateway, error) {
	if authenticator == nil {
		return nil, fmt.Errorf("gateway requires an authenticator")
	}
	if reg == nil || reg.Len() == 0 {
		return nil, fmt.Errorf("gateway requires a loaded tag registry: an empty registry would judge every field unregistered")
	}
	if matrix == nil {
		return nil, fmt.Errorf("gateway requires an access matrix")
	}
	if repo == nil {
		return nil, fmt.Errorf("gateway requires a repository: validation runs must be persisted")
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	var opts []propagation.Option
	if cfg.RequiredFieldCheck {
		opts = append(opts, propagation.WithRequiredFieldCheck())
	}

	g := &Gateway{
		authenticator: authenticator,
		authorizer:    auth.NewAuthorizer(matrix),
		registry:      reg,
		validator:     propagation.NewValidator(reg, opts...),
		inspector:     inspect.NewInspector(reg),
		matrix:        matrix,
		repo:          repo,
		logger:        logger,
		mux:           http.NewServeMux(),
		version:       cfg.Version,
	}
	g.routes()
	return g, nil
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

// routes wires every endpoint. Health and readiness are public; the
// rest of the API requires a bearer token.
func (g *Gateway) routes() {
	g.mux.HandleFunc(api.EndpointHealth, g.handleHealth)
	g.mux.HandleFunc(api.EndpointReady, g.handleReady)

	g.mux.HandleFunc(api.EndpointValidate, g.requireAuth(g.handleValidate))
	g.mux.HandleFunc(api.EndpointRegistryServices, g.requireAuth(g.handleServices))
	g.mux.HandleFunc(api.EndpointRegistryFields, g.requireAuth(g.handleFields))
	g.mux.HandleFunc(api.EndpointRegistryLookup, g.requireAuth(g.handleLookup))
	g.mux.HandleFunc(api.EndpointAccessCheck, g.requireAuth(g.handleAccessCheck))
	g.mux.HandleFunc(api.EndpointAccessMatrix, g.requireAuth(g.handleAccessMatrix))
	g.mux.HandleFunc(api.EndpointInspect, g.requireAuth(g.handleInspect))
	g.mux.HandleFunc(api.EndpointAuditSummary, g.requireAuth(g.handleAuditSummary))
}

// requireAuth authenticates the request and attaches the caller to the
// context before invoking the handler.
func (g *Gateway) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := g.authenticator.ValidateToken(r.Context(), requestToken(r))
		if err != nil {
			g.writeError(w, err)
			return
		}
		next(w, r.WithContext(auth.ContextWithUser(r.Context(), user)))
	}
}

// requestToken extracts the token from the Authorization header, with
// X-API-Key as a fallback for CI systems that cannot set bearer headers.
// Returns empty for a missing header or a non-bearer scheme, which the
// authenticator rejects as "token required".
func requestToken(r *http.Request) string {
	header := r.Header.Get(api.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get(api.HeaderAPIKey))
}

// actorID names the authenticated caller for run attribution.
func actorID(r *http.Request) string {
	if user := auth.UserFromContext(r.Context()); user != nil {
		return user.ID
	}
	return "anonymous"
}

// ErrorResponse is the wire shape of every gateway error.
type ErrorResponse struct {
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
}

// writeJSON writes a JSON response with the given status code.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing left to do but note it.
		http.Error(w, "encoding failed", http.StatusInternalServerError)
	}
}

// writeError maps a datatags error onto an HTTP status and the shared
// error shape. Foreign errors become opaque 500s.
func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	tagErr := errors.FromError(err)
	if tagErr == nil {
		g.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal error",
			Code:  int(errors.CodeInternal),
		})
		return
	}
	g.writeJSON(w, statusForError(err), ErrorResponse{
		Error:      tagErr.Message,
		Reason:     tagErr.Reason,
		Suggestion: tagErr.Suggestion,
		Code:       int(tagErr.Code),
	})
}

// writeBadRequest reports a request the gateway cannot parse.
func (g *Gateway) writeBadRequest(w http.ResponseWriter, reason, suggestion string) {
	g.writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:      "invalid request",
		Reason:     reason,
		Suggestion: suggestion,
		Code:       int(errors.CodeValidation),
	})
}

// writeMethodNotAllowed reports an unsupported HTTP method.
func (g *Gateway) writeMethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	g.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:  "method not allowed",
		Reason: fmt.Sprintf("this endpoint accepts %s", allowed),
		Code:   int(errors.CodeValidation),
	})
}

// statusForError maps datatags error types onto HTTP statuses.
func statusForError(err error) int {
	switch err.(type) {
	case *errors.ErrAuthFailed:
		return http.StatusUnauthorized
	case *errors.ErrAccessDenied:
		return http.StatusForbidden
	case *errors.ErrUnknownService, *errors.ErrUnknownField,
		*errors.ErrReportNotFound, *errors.ErrSnapshotNotFound:
		return http.StatusNotFound
	case *errors.ErrMalformedTransition, *errors.ErrQueryRejected,
		*errors.ErrInvalidTag, *errors.ErrDuplicateField,
		*errors.ErrSchemaLoadFailed:
		return http.StatusBadRequest
	case *errors.ErrDatabaseUnavailable, *errors.ErrStorageFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
