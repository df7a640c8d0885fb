// Package access evaluates the role-based access matrix for the simulated
// services: role × endpoint → ALLOW, DENY, or SELF_ONLY.
//
// Per docs/rbac-access-matrix.md: the matrix is an explicit policy table
// evaluated by a pure function, not conditionals scattered through service
// code. The evaluation asserts the designed matrix for security test cases
// (IDOR probes compare expected against observed decisions); it never sits
// in front of live service traffic. No matching row means deny.
package access

import (
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/harperz567/food-app-qa/internal/errors"
)

// Decision is the outcome of evaluating (role, endpoint) against the matrix.
type Decision string

const (
	// DecisionAllow grants access to any record.
	DecisionAllow Decision = "ALLOW"

	// DecisionDeny refuses access.
	DecisionDeny Decision = "DENY"

	// DecisionSelfOnly grants access to the caller's own records only.
	// Reaching for another subject's record under SELF_ONLY is the IDOR
	// case: it must come back denied.
	DecisionSelfOnly Decision = "SELF_ONLY"
)

// AllDecisions returns all valid decisions.
func AllDecisions() []Decision {
	return []Decision{DecisionAllow, DecisionDeny, DecisionSelfOnly}
}

// IsValid checks if the decision is a known valid decision.
func (d Decision) IsValid() bool {
	for _, valid := range AllDecisions() {
		if d == valid {
			return true
		}
	}
	return false
}

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}

// Scope is the record scope a policy row grants.
type Scope string

const (
	// ScopeAny grants the endpoint for any record.
	ScopeAny Scope = "any"

	// ScopeOwn grants the endpoint for the caller's own records.
	ScopeOwn Scope = "own"
)

// Row is one policy table entry.
type Row struct {
	Role     string `json:"role"`
	Endpoint string `json:"endpoint"`
	Scope    Scope  `json:"scope"`
}

// Matrix evaluates access decisions against a loaded policy table.
type Matrix struct {
	enforcer *casbin.Enforcer
}

// NewMatrix builds the matrix from the embedded default model and policy.
func NewMatrix() (*Matrix, error) {
	m, err := casbinmodel.NewModelFromString(defaultModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse access model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build access enforcer: %w", err)
	}
	for _, row := range parsePolicyRows(defaultPolicy) {
		if _, err := enforcer.AddPolicy(row[0], row[1], row[2]); err != nil {
			return nil, fmt.Errorf("failed to load policy row %v: %w", row, err)
		}
	}
	return &Matrix{enforcer: enforcer}, nil
}

// NewMatrixFromFiles builds the matrix from a model file and a policy CSV,
// for teams maintaining the matrix outside the binary.
func NewMatrixFromFiles(modelPath, policyPath string) (*Matrix, error) {
	enforcer, err := casbin.NewEnforcer(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load access model %s: %w", modelPath, err)
	}
	enforcer.SetAdapter(fileadapter.NewAdapter(policyPath))
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load access policy %s: %w", policyPath, err)
	}
	return &Matrix{enforcer: enforcer}, nil
}

// NormalizeRole lowercases and trims a role slug. An empty role evaluates
// as anonymous, which no policy row grants.
func NormalizeRole(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return "anonymous"
	}
	return role
}

// Evaluate returns the matrix decision for (role, endpoint).
// A row with scope any yields ALLOW; scope own only yields SELF_ONLY;
// no row yields DENY.
func (m *Matrix) Evaluate(role, endpoint string) (Decision, error) {
	role = NormalizeRole(role)

	anyRecord, err := m.enforcer.Enforce(role, endpoint, string(ScopeAny))
	if err != nil {
		return "", fmt.Errorf("matrix evaluation failed: %w", err)
	}
	if anyRecord {
		return DecisionAllow, nil
	}

	ownRecord, err := m.enforcer.Enforce(role, endpoint, string(ScopeOwn))
	if err != nil {
		return "", fmt.Errorf("matrix evaluation failed: %w", err)
	}
	if ownRecord {
		return DecisionSelfOnly, nil
	}

	return DecisionDeny, nil
}

// EvaluateOwnership collapses SELF_ONLY using the ownership of the record
// being reached: own record passes, another subject's record does not.
func (m *Matrix) EvaluateOwnership(role, endpoint string, ownRecord bool) (bool, Decision, error) {
	decision, err := m.Evaluate(role, endpoint)
	if err != nil {
		return false, "", err
	}
	switch decision {
	case DecisionAllow:
		return true, decision, nil
	case DecisionSelfOnly:
		return ownRecord, decision, nil
	default:
		return false, decision, nil
	}
}

// Authorize returns nil when the access is granted and ErrAccessDenied when
// it is not, for callers wanting error semantics instead of a decision.
func (m *Matrix) Authorize(role, endpoint string, ownRecord bool) error {
	allowed, _, err := m.EvaluateOwnership(role, endpoint, ownRecord)
	if err != nil {
		return err
	}
	if !allowed {
		return errors.NewAccessDenied(NormalizeRole(role), endpoint)
	}
	return nil
}

// Rows returns the policy table sorted by role, endpoint, scope.
func (m *Matrix) Rows() ([]Row, error) {
	policy, err := m.enforcer.GetPolicy()
	if err != nil {
		return nil, fmt.Errorf("failed to read policy table: %w", err)
	}
	rows := make([]Row, 0, len(policy))
	for _, entry := range policy {
		if len(entry) != 3 {
			return nil, fmt.Errorf("malformed policy row: %v", entry)
		}
		rows = append(rows, Row{Role: entry[0], Endpoint: entry[1], Scope: Scope(entry[2])})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Role != rows[j].Role {
			return rows[i].Role < rows[j].Role
		}
		if rows[i].Endpoint != rows[j].Endpoint {
			return rows[i].Endpoint < rows[j].Endpoint
		}
		return rows[i].Scope < rows[j].Scope
	})
	return rows, nil
}

// Roles returns the distinct roles in the policy table, sorted.
func (m *Matrix) Roles() ([]string, error) {
	rows, err := m.Rows()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var roles []string
	for _, row := range rows {
		if _, ok := seen[row.Role]; !ok {
			seen[row.Role] = struct{}{}
			roles = append(roles, row.Role)
		}
	}
	return roles, nil
}

// Endpoints returns the distinct endpoints in the policy table, sorted.
func (m *Matrix) Endpoints() ([]string, error) {
	rows, err := m.Rows()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var endpoints []string
	for _, row := range rows {
		if _, ok := seen[row.Endpoint]; !ok {
			seen[row.Endpoint] = struct{}{}
			endpoints = append(endpoints, row.Endpoint)
		}
	}
	sort.Strings(endpoints)
	return endpoints, nil
}

// parsePolicyRows extracts p-rows from a policy CSV: comments and blank
// lines skipped, fields trimmed.
func parsePolicyRows(policy string) [][3]string {
	var rows [][3]string
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 4 || strings.TrimSpace(parts[0]) != "p" {
			continue
		}
		rows = append(rows, [3]string{
			strings.TrimSpace(parts[1]),
			strings.TrimSpace(parts[2]),
			strings.TrimSpace(parts[3]),
		})
	}
	return rows
}
