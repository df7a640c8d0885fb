package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/pkg/api"
	"github.com/harperz567/food-app-qa/pkg/models"
)

// GatewayClient is the HTTP client for the datatags gateway. CI boxes
// use it to validate against a shared instance and to read the audit
// history the gateway persists.
type GatewayClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewGatewayClient creates a new gateway client.
func NewGatewayClient(endpoint, token string) *GatewayClient {
	return &GatewayClient{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Endpoint returns the configured gateway endpoint.
func (c *GatewayClient) Endpoint() string {
	return c.endpoint
}

// HealthInfo is the gateway health response.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ComponentState is the readiness of one gateway dependency.
type ComponentState struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// ReadinessInfo is the gateway readiness response.
type ReadinessInfo struct {
	Status     string                    `json:"status"`
	Components map[string]ComponentState `json:"components"`
}

// Ready reports whether every component answered ready.
func (r *ReadinessInfo) Ready() bool {
	return r.Status == "ready"
}

// GetHealthInfo retrieves the gateway health and version.
func (c *GatewayClient) GetHealthInfo(ctx context.Context) (*HealthInfo, error) {
	var result HealthInfo
	if err := c.get(ctx, api.EndpointHealth, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetReadiness retrieves the per-component readiness report.
// A degraded gateway answers 503 with the same body, so the report is
// returned for any decodable response.
func (c *GatewayClient) GetReadiness(ctx context.Context) (*ReadinessInfo, error) {
	if c.endpoint == "" {
		return nil, errors.NewGatewayUnavailable("", "no gateway endpoint configured")
	}

	resp, err := c.doRequest(ctx, http.MethodGet, api.EndpointReady, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, c.parseErrorResponse(resp)
	}

	var result ReadinessInfo
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// Validate runs a transition chain through the gateway validator.
// The run is persisted and attributed server-side.
func (c *GatewayClient) Validate(ctx context.Context, req *models.ValidateRequest) (*models.ValidateResponse, error) {
	var result models.ValidateResponse
	if err := c.post(ctx, api.EndpointValidate, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetServices lists the services with registered fields.
func (c *GatewayClient) GetServices(ctx context.Context) (*models.ServicesResponse, error) {
	var result models.ServicesResponse
	if err := c.get(ctx, api.EndpointRegistryServices, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetFields lists the registered fields of one service.
func (c *GatewayClient) GetFields(ctx context.Context, service string) (*models.FieldsResponse, error) {
	path := api.EndpointRegistryFields + "?service=" + url.QueryEscape(service)
	var result models.FieldsResponse
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LookupField resolves one (service, field path) to its registered tag.
func (c *GatewayClient) LookupField(ctx context.Context, service, fieldPath string) (*models.FieldInfo, error) {
	path := api.EndpointRegistryLookup +
		"?service=" + url.QueryEscape(service) +
		"&path=" + url.QueryEscape(fieldPath)
	var result models.FieldInfo
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckAccess asks the gateway matrix for a (role, endpoint) decision.
func (c *GatewayClient) CheckAccess(ctx context.Context, req *models.AccessCheckRequest) (*models.AccessCheckResponse, error) {
	var result models.AccessCheckResponse
	if err := c.post(ctx, api.EndpointAccessCheck, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAccessMatrix retrieves the full policy table.
func (c *GatewayClient) GetAccessMatrix(ctx context.Context) (*models.AccessMatrixResponse, error) {
	var result models.AccessMatrixResponse
	if err := c.get(ctx, api.EndpointAccessMatrix, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Inspect resolves a service query against the gateway registry.
func (c *GatewayClient) Inspect(ctx context.Context, req *models.InspectRequest) (*models.InspectResponse, error) {
	var result models.InspectResponse
	if err := c.post(ctx, api.EndpointInspect, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAuditSummary retrieves aggregated audit statistics.
// Counts and rankings only: raw field values never cross this API.
func (c *GatewayClient) GetAuditSummary(ctx context.Context) (*models.AuditSummaryResponse, error) {
	var result models.AuditSummaryResponse
	if err := c.get(ctx, api.EndpointAuditSummary, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// get performs a GET request and decodes a 200 response into out.
func (c *GatewayClient) get(ctx context.Context, path string, out interface{}) error {
	if c.endpoint == "" {
		return errors.NewGatewayUnavailable("", "no gateway endpoint configured")
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// post performs a POST request with a JSON body and decodes a 200
// response into out.
func (c *GatewayClient) post(ctx context.Context, path string, in, out interface{}) error {
	if c.endpoint == "" {
		return errors.NewGatewayUnavailable("", "no gateway endpoint configured")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request to the gateway.
func (c *GatewayClient) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(api.HeaderContentType, api.ContentTypeJSON)
	if c.token != "" {
		req.Header.Set(api.HeaderAuthorization, "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewGatewayUnavailable(c.endpoint, err.Error())
	}

	return resp, nil
}

// parseErrorResponse rebuilds the gateway's error as a TagError so the
// exit-code mapping treats remote failures like local ones.
func (c *GatewayClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("gateway error: %d - %s", resp.StatusCode, string(body))
	}

	return &errors.TagError{
		Code:       errors.ErrorCode(errResp.Code),
		Message:    errResp.Error,
		Reason:     errResp.Reason,
		Suggestion: errResp.Suggestion,
	}
}
