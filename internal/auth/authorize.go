// Endpoint authorization for authenticated callers.
//
// Core principle: absence of permission is denial. The decision itself
// lives in the access matrix; this layer only folds a caller's roles
// into one answer.
package auth

import (
	"strings"

	"github.com/harperz567/food-app-qa/internal/access"
	"github.com/harperz567/food-app-qa/internal/errors"
)

// Authorizer decides whether an authenticated caller may invoke a
// simulated service endpoint. A caller with several roles is allowed
// when any one of them is; SELF_ONLY rows pass only for the caller's
// own records.
type Authorizer struct {
	matrix *access.Matrix
}

// NewAuthorizer creates an authorizer backed by the given access matrix.
func NewAuthorizer(matrix *access.Matrix) *Authorizer {
	return &Authorizer{matrix: matrix}
}

// Authorize returns nil when some role of the caller grants the endpoint,
// and ErrAccessDenied otherwise. A nil caller evaluates as anonymous.
func (a *Authorizer) Authorize(user *User, endpoint string, ownRecord bool) error {
	if user == nil || len(user.Roles) == 0 {
		return errors.NewAccessDenied(access.NormalizeRole(""), endpoint)
	}

	for _, role := range user.Roles {
		allowed, _, err := a.matrix.EvaluateOwnership(role, endpoint, ownRecord)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
	}

	return errors.NewAccessDenied(normalizedRoles(user.Roles), endpoint)
}

// Decide reports the strongest decision the caller's roles produce:
// ALLOW beats SELF_ONLY beats DENY. Used by the gateway to report the
// matrix outcome without collapsing ownership.
func (a *Authorizer) Decide(user *User, endpoint string) (access.Decision, error) {
	if user == nil || len(user.Roles) == 0 {
		return access.DecisionDeny, nil
	}

	strongest := access.DecisionDeny
	for _, role := range user.Roles {
		decision, err := a.matrix.Evaluate(role, endpoint)
		if err != nil {
			return "", err
		}
		switch decision {
		case access.DecisionAllow:
			return access.DecisionAllow, nil
		case access.DecisionSelfOnly:
			strongest = access.DecisionSelfOnly
		}
	}
	return strongest, nil
}

// normalizedRoles joins the caller's roles for the denial message.
func normalizedRoles(roles []string) string {
	normalized := make([]string, 0, len(roles))
	for _, role := range roles {
		normalized = append(normalized, access.NormalizeRole(role))
	}
	return strings.Join(normalized, ",")
}
