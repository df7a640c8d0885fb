package gateway_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harperz567/food-app-qa/internal/access"
	"github.com/harperz567/food-app-qa/internal/auth"
	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/gateway"
	"github.com/harperz567/food-app-qa/internal/inspect"
	"github.com/harperz567/food-app-qa/internal/observability"
	"github.com/harperz567/food-app-qa/internal/propagation"
	"github.com/harperz567/food-app-qa/internal/registry"
	"github.com/harperz567/food-app-qa/internal/storage"
	"github.com/harperz567/food-app-qa/pkg/api"
)

// harnessRegistry mirrors the seed behind gateway.NewTestGateway for
// tests that build the gateway by hand around a custom repository.
func harnessRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()
	seed := []registry.FieldDescriptor{
		{Service: "userinfoservice", FieldPath: "users.userId", Tag: registry.Tag{Level: classification.LevelInternal, Retention: classification.RetainYears(7)}},
		{Service: "userinfoservice", FieldPath: "users.userEmail", Tag: registry.Tag{Level: classification.LevelSensitive, Retention: classification.DeleteOnRequest}},
		{Service: "userinfoservice", FieldPath: "users.userPassword", Tag: registry.Tag{Level: classification.LevelCritical, Retention: classification.DeleteOnRequest}, Required: true},
		{Service: "orderservice", FieldPath: "orders.orderId", Tag: registry.Tag{Level: classification.LevelInternal, Retention: classification.Retain1Year}},
	}
	for _, desc := range seed {
		if err := reg.Register(desc); err != nil {
			t.Fatalf("failed to seed registry: %v", err)
		}
	}
	return reg
}

// newGatewayWithRepo builds a gateway around a caller-chosen repository
// so tests can assert persistence and simulate storage failures.
func newGatewayWithRepo(t *testing.T, repo storage.Repository) *gateway.Gateway {
	t.Helper()

	authenticator := auth.NewStaticTokenAuthenticator()
	authenticator.RegisterToken(gateway.TestToken, &auth.User{
		ID:    "test-user",
		Name:  "Test User",
		Roles: []string{"admin"},
	})
	matrix, err := access.NewMatrix()
	if err != nil {
		t.Fatalf("failed to build access matrix: %v", err)
	}
	g, err := gateway.NewGateway(
		authenticator,
		harnessRegistry(t),
		matrix,
		repo,
		observability.NewJSONLogger(io.Discard),
		gateway.Config{Version: "test"},
	)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}
	return g
}

// request performs one in-process HTTP request against the gateway. An
// empty token sends no credentials; a non-nil body is marshalled to JSON.
func request(t *testing.T, g *gateway.Gateway, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set(api.HeaderAuthorization, "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	g.ServeHTTP(rr, req)
	return rr
}

// decode unmarshals a recorded JSON response.
func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func fieldTag(level classification.Level, retention classification.RetentionPolicy) propagation.FieldTag {
	return propagation.FieldTag{Level: level, Retention: retention}
}

func TestHealth_PublicAndVersioned(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet, api.EndpointHealth, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp gateway.HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Version != "test" {
		t.Errorf("version = %q, want test", resp.Version)
	}
}

func TestReady_AllComponentsReady(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet, api.EndpointReady, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("ready status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp gateway.ReadyResponse
	decode(t, rr, &resp)
	if resp.Status != "ready" {
		t.Errorf("status = %q, want ready", resp.Status)
	}
	for _, name := range []string{"storage", "registry", "access"} {
		component, ok := resp.Components[name]
		if !ok {
			t.Errorf("component %s missing from readiness report", name)
			continue
		}
		if !component.Ready {
			t.Errorf("component %s not ready: %s", name, component.Message)
		}
	}
}

func TestReady_DegradedWhenStorageUnreachable(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SetConnectivityFailure(true)
	g := newGatewayWithRepo(t, repo)

	rr := request(t, g, http.MethodGet, api.EndpointReady, "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var resp gateway.ReadyResponse
	decode(t, rr, &resp)
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Components["storage"].Ready {
		t.Error("storage component reported ready while unreachable")
	}
	if !resp.Components["registry"].Ready {
		t.Error("registry component should stay ready")
	}
}

func TestAuth_MissingTokenRejected(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet, api.EndpointRegistryServices, "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	var resp gateway.ErrorResponse
	decode(t, rr, &resp)
	if resp.Code != int(errors.CodeAuth) {
		t.Errorf("error code = %d, want %d", resp.Code, int(errors.CodeAuth))
	}
}

func TestAuth_WrongTokenRejected(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet, api.EndpointRegistryServices, "not-the-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuth_APIKeyHeaderAccepted(t *testing.T) {
	g := gateway.NewTestGateway(t)

	req := httptest.NewRequest(http.MethodGet, api.EndpointRegistryServices, nil)
	req.Header.Set(api.HeaderAPIKey, gateway.TestToken)
	rr := httptest.NewRecorder()
	g.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status with X-API-Key = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestValidate_CleanChainPersistsRun(t *testing.T) {
	repo := storage.NewMockRepository()
	g := newGatewayWithRepo(t, repo)

	body := gateway.ValidateRequest{Transitions: []propagation.Transition{{
		Source: &propagation.Payload{Service: "userinfoservice", Fields: map[string]propagation.FieldTag{
			"users.userEmail": fieldTag(classification.LevelSensitive, classification.DeleteOnRequest),
		}},
		Destination: &propagation.Payload{Service: "userinfoservice", Fields: map[string]propagation.FieldTag{
			"users.userEmail": fieldTag(classification.LevelSensitive, classification.DeleteOnRequest),
		}},
	}}}

	rr := request(t, g, http.MethodPost, api.EndpointValidate, gateway.TestToken, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp gateway.ValidateResponse
	decode(t, rr, &resp)
	if !resp.Passed {
		t.Errorf("clean chain did not pass: %+v", resp.Violations)
	}
	if resp.RunID == "" {
		t.Fatal("response carries no run id")
	}
	if got := rr.Header().Get(api.HeaderRunID); got != resp.RunID {
		t.Errorf("%s header = %q, want %q", api.HeaderRunID, got, resp.RunID)
	}
	if resp.Violations == nil {
		t.Error("violations must be an empty list, not null")
	}

	record, err := repo.GetReport(t.Context(), resp.RunID)
	if err != nil {
		t.Fatalf("run was not persisted: %v", err)
	}
	if !record.Passed || record.TransitionCount != 1 {
		t.Errorf("persisted record = %+v, want passed with 1 transition", record)
	}
	if record.Actor != "test-user" {
		t.Errorf("persisted actor = %q, want test-user", record.Actor)
	}
}

func TestValidate_LevelRegressionIsDataNotError(t *testing.T) {
	g := gateway.NewTestGateway(t)

	body := gateway.ValidateRequest{Transitions: []propagation.Transition{{
		Source: &propagation.Payload{Service: "userinfoservice", Fields: map[string]propagation.FieldTag{
			"users.userEmail": fieldTag(classification.LevelSensitive, classification.DeleteOnRequest),
		}},
		Destination: &propagation.Payload{Service: "userinfoservice", Fields: map[string]propagation.FieldTag{
			"users.userEmail": fieldTag(classification.LevelInternal, classification.DeleteOnRequest),
		}},
	}}}

	rr := request(t, g, http.MethodPost, api.EndpointValidate, gateway.TestToken, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: violations are data", rr.Code, http.StatusOK)
	}

	var resp gateway.ValidateResponse
	decode(t, rr, &resp)
	if resp.Passed {
		t.Fatal("regressing chain passed")
	}
	if len(resp.Violations) != 1 {
		t.Fatalf("violations = %d, want 1: %+v", len(resp.Violations), resp.Violations)
	}
	v := resp.Violations[0]
	if v.Type != propagation.ViolationLevelRegression {
		t.Errorf("violation type = %s, want %s", v.Type, propagation.ViolationLevelRegression)
	}
	if v.FieldPath != "users.userEmail" {
		t.Errorf("violation field = %s, want users.userEmail", v.FieldPath)
	}
}

func TestValidate_DeclaredDropPasses(t *testing.T) {
	g := gateway.NewTestGateway(t)

	body := gateway.ValidateRequest{Transitions: []propagation.Transition{{
		Source: &propagation.Payload{Service: "userinfoservice", Fields: map[string]propagation.FieldTag{
			"users.userId":    fieldTag(classification.LevelInternal, classification.RetainYears(7)),
			"users.userEmail": fieldTag(classification.LevelSensitive, classification.DeleteOnRequest),
		}},
		Destination: &propagation.Payload{Service: "userinfoservice", Fields: map[string]propagation.FieldTag{
			"users.userId": fieldTag(classification.LevelInternal, classification.RetainYears(7)),
		}},
		Dropped: []string{"users.userEmail"},
	}}}

	rr := request(t, g, http.MethodPost, api.EndpointValidate, gateway.TestToken, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp gateway.ValidateResponse
	decode(t, rr, &resp)
	if !resp.Passed {
		t.Errorf("declared drop reported violations: %+v", resp.Violations)
	}
}

func TestValidate_MalformedTransitionRejected(t *testing.T) {
	repo := storage.NewMockRepository()
	g := newGatewayWithRepo(t, repo)

	body := gateway.ValidateRequest{Transitions: []propagation.Transition{{
		Source: &propagation.Payload{Service: "userinfoservice"},
		// Destination missing: the validator cannot reason about the chain.
	}}}

	rr := request(t, g, http.MethodPost, api.EndpointValidate, gateway.TestToken, body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	records, err := repo.ListReports(t.Context(), 10)
	if err != nil {
		t.Fatalf("failed to list reports: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("rejected run was persisted: %d record(s)", len(records))
	}
}

func TestValidate_BadJSONBody(t *testing.T) {
	g := gateway.NewTestGateway(t)

	req := httptest.NewRequest(http.MethodPost, api.EndpointValidate, bytes.NewReader([]byte("{not json")))
	req.Header.Set(api.HeaderAuthorization, "Bearer "+gateway.TestToken)
	rr := httptest.NewRecorder()
	g.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestValidate_MethodNotAllowed(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet, api.EndpointValidate, gateway.TestToken, nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
	if allow := rr.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow header = %q, want %q", allow, http.MethodPost)
	}
}

func TestServices_ListsRegisteredServices(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet, api.EndpointRegistryServices, gateway.TestToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp gateway.ServicesResponse
	decode(t, rr, &resp)
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
	want := []string{"orderservice", "userinfoservice"}
	if len(resp.Services) != len(want) {
		t.Fatalf("services = %v, want %v", resp.Services, want)
	}
	for i, service := range want {
		if resp.Services[i] != service {
			t.Errorf("services[%d] = %q, want %q", i, resp.Services[i], service)
		}
	}
}

func TestFields_FiltersByMinLevel(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet,
		api.EndpointRegistryFields+"?service=userinfoservice&min_level=SENSITIVE",
		gateway.TestToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp gateway.FieldsResponse
	decode(t, rr, &resp)
	if len(resp.Fields) != 2 {
		t.Fatalf("fields = %d, want 2 at or above SENSITIVE: %+v", len(resp.Fields), resp.Fields)
	}
	if resp.Fields[0].FieldPath != "users.userEmail" || resp.Fields[1].FieldPath != "users.userPassword" {
		t.Errorf("unexpected field paths: %q, %q", resp.Fields[0].FieldPath, resp.Fields[1].FieldPath)
	}
}

func TestFields_InvalidMinLevelRejected(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet,
		api.EndpointRegistryFields+"?service=userinfoservice&min_level=TOP_SECRET",
		gateway.TestToken, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestFields_UnknownServiceIs404(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet,
		api.EndpointRegistryFields+"?service=geolocationservice",
		gateway.TestToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestLookup_ResolvesFieldTag(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet,
		api.EndpointRegistryLookup+"?service=userinfoservice&path=users.userPassword",
		gateway.TestToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp gateway.FieldInfo
	decode(t, rr, &resp)
	if resp.Level != "CRITICAL" {
		t.Errorf("level = %q, want CRITICAL", resp.Level)
	}
	if !resp.RequiresEncryption {
		t.Error("CRITICAL field must require encryption")
	}
	if !resp.Required {
		t.Error("users.userPassword is seeded required")
	}
}

func TestLookup_UnknownFieldIs404(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet,
		api.EndpointRegistryLookup+"?service=userinfoservice&path=users.nope",
		gateway.TestToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestLookup_MissingParamsRejected(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet,
		api.EndpointRegistryLookup+"?service=userinfoservice",
		gateway.TestToken, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAccessCheck_MatrixDecisions(t *testing.T) {
	g := gateway.NewTestGateway(t)

	cases := []struct {
		name     string
		role     string
		endpoint string
		own      bool
		allowed  bool
		decision string
	}{
		{"admin any record", "admin", "/user/fetchAllUsers", false, true, "ALLOW"},
		{"customer denied listing", "customer", "/user/fetchAllUsers", false, false, "DENY"},
		{"customer own profile", "customer", "/user/fetchUserById", true, true, "SELF_ONLY"},
		{"customer foreign profile", "customer", "/user/fetchUserById", false, false, "SELF_ONLY"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := gateway.AccessCheckRequest{Role: tc.role, Endpoint: tc.endpoint, OwnRecord: tc.own}
			rr := request(t, g, http.MethodPost, api.EndpointAccessCheck, gateway.TestToken, body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d: denials are data", rr.Code, http.StatusOK)
			}

			var resp gateway.AccessCheckResponse
			decode(t, rr, &resp)
			if resp.Allowed != tc.allowed {
				t.Errorf("allowed = %v, want %v", resp.Allowed, tc.allowed)
			}
			if resp.Decision != tc.decision {
				t.Errorf("decision = %q, want %q", resp.Decision, tc.decision)
			}
		})
	}
}

func TestAccessCheck_RequiresRoleAndEndpoint(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodPost, api.EndpointAccessCheck, gateway.TestToken,
		gateway.AccessCheckRequest{Endpoint: "/user/fetchUserById"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing role: status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = request(t, g, http.MethodPost, api.EndpointAccessCheck, gateway.TestToken,
		gateway.AccessCheckRequest{Role: "customer"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing endpoint: status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAccessMatrix_ReturnsPolicyRows(t *testing.T) {
	g := gateway.NewTestGateway(t)

	rr := request(t, g, http.MethodGet, api.EndpointAccessMatrix, gateway.TestToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp gateway.AccessMatrixResponse
	decode(t, rr, &resp)
	if len(resp.Rows) == 0 {
		t.Fatal("matrix has no rows")
	}
	found := false
	for _, row := range resp.Rows {
		if row.Role == "customer" && row.Endpoint == "/user/fetchUserById" && row.Scope == access.ScopeOwn {
			found = true
		}
	}
	if !found {
		t.Error("expected row customer /user/fetchUserById own in the policy table")
	}
}

func TestInspect_ReportsColumnLevels(t *testing.T) {
	g := gateway.NewTestGateway(t)

	body := gateway.InspectRequest{
		Service: "userinfoservice",
		Query:   "SELECT userEmail, userPassword FROM users",
	}
	rr := request(t, g, http.MethodPost, api.EndpointInspect, gateway.TestToken, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if rr.Header().Get(api.HeaderRunID) == "" {
		t.Error("inspection carries no run id header")
	}

	var report inspect.InspectionReport
	decode(t, rr, &report)
	if report.Kind != inspect.StatementSelect {
		t.Errorf("kind = %s, want %s", report.Kind, inspect.StatementSelect)
	}
	if report.MaxLevel != classification.LevelCritical {
		t.Errorf("max level = %s, want %s", report.MaxLevel, classification.LevelCritical)
	}
	if len(report.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(report.Columns))
	}
	if report.Columns[0].FieldPath != "users.userEmail" || report.Columns[1].FieldPath != "users.userPassword" {
		t.Errorf("unexpected column resolution: %+v", report.Columns)
	}
	if !report.Columns[1].RequiresEncryption {
		t.Error("users.userPassword must require encryption")
	}
}

func TestInspect_RejectsUnparseableQuery(t *testing.T) {
	g := gateway.NewTestGateway(t)

	body := gateway.InspectRequest{Service: "userinfoservice", Query: "SELEKT * FORM users"}
	rr := request(t, g, http.MethodPost, api.EndpointInspect, gateway.TestToken, body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAuditSummary_AggregatesRuns(t *testing.T) {
	g := gateway.NewTestGateway(t)

	clean := gateway.ValidateRequest{Transitions: []propagation.Transition{{
		Source: &propagation.Payload{Service: "userinfoservice", Fields: map[string]propagation.FieldTag{
			"users.userEmail": fieldTag(classification.LevelSensitive, classification.DeleteOnRequest),
		}},
		Destination: &propagation.Payload{Service: "userinfoservice", Fields: map[string]propagation.FieldTag{
			"users.userEmail": fieldTag(classification.LevelSensitive, classification.DeleteOnRequest),
		}},
	}}}
	regressing := gateway.ValidateRequest{Transitions: []propagation.Transition{{
		Source: &propagation.Payload{Service: "userinfoservice", Fields: map[string]propagation.FieldTag{
			"users.userEmail": fieldTag(classification.LevelSensitive, classification.DeleteOnRequest),
		}},
		Destination: &propagation.Payload{Service: "userinfoservice", Fields: map[string]propagation.FieldTag{
			"users.userEmail": fieldTag(classification.LevelInternal, classification.DeleteOnRequest),
		}},
	}}}

	for _, body := range []gateway.ValidateRequest{clean, regressing} {
		rr := request(t, g, http.MethodPost, api.EndpointValidate, gateway.TestToken, body)
		if rr.Code != http.StatusOK {
			t.Fatalf("validate status = %d, want %d", rr.Code, http.StatusOK)
		}
	}

	rr := request(t, g, http.MethodGet, api.EndpointAuditSummary, gateway.TestToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp gateway.AuditSummaryResponse
	decode(t, rr, &resp)
	if resp.PassedCount != 1 || resp.FailedCount != 1 {
		t.Errorf("counts = %d passed / %d failed, want 1 / 1", resp.PassedCount, resp.FailedCount)
	}
	if len(resp.RecentRuns) != 2 {
		t.Fatalf("recent runs = %d, want 2", len(resp.RecentRuns))
	}
	foundRegression := false
	for _, stat := range resp.TopViolationTypes {
		if stat.Type == string(propagation.ViolationLevelRegression) && stat.Count == 1 {
			foundRegression = true
		}
	}
	if !foundRegression {
		t.Errorf("top violation types %+v missing %s", resp.TopViolationTypes, propagation.ViolationLevelRegression)
	}
}
