// Package api defines the public endpoints and headers of the datatags
// gateway. The CLI client and the gateway handlers both build their
// routes from these constants so the two cannot drift apart.
package api

// API version
const Version = "0.1.0"

// API endpoints
const (
	EndpointValidate         = "/api/v1/validate"
	EndpointRegistryServices = "/api/v1/registry/services"
	EndpointRegistryFields   = "/api/v1/registry/fields"
	EndpointRegistryLookup   = "/api/v1/registry/lookup"
	EndpointAccessCheck      = "/api/v1/access/check"
	EndpointAccessMatrix     = "/api/v1/access/matrix"
	EndpointInspect          = "/api/v1/inspect"
	EndpointAuditSummary     = "/api/v1/audit/summary"
	EndpointHealth           = "/health"
	EndpointReady            = "/ready"
)

// HTTP headers
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "X-API-Key"
	HeaderRequestID     = "X-Request-ID"
	HeaderRunID         = "X-Run-ID"
)

// Content types
const (
	ContentTypeJSON = "application/json"
)
