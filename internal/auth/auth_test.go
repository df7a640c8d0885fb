package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/harperz567/food-app-qa/internal/access"
	"github.com/harperz567/food-app-qa/internal/auth"
	"github.com/harperz567/food-app-qa/internal/errors"
)

// TestStaticTokenAuthenticator_ValidToken proves that a registered token
// resolves to its caller.
//
// Green-Flag: System MUST authenticate callers with registered tokens.
func TestStaticTokenAuthenticator_ValidToken(t *testing.T) {
	// Arrange
	authenticator := auth.NewStaticTokenAuthenticator()
	authenticator.RegisterToken("ci-token", &auth.User{
		ID:    "ci-nightly",
		Name:  "Nightly Audit Job",
		Roles: []string{"admin"},
	})
	ctx := context.Background()

	// Act
	user, err := authenticator.ValidateToken(ctx, "ci-token")

	// Assert
	if err != nil {
		t.Fatalf("expected valid token to authenticate, got %v", err)
	}
	if user.ID != "ci-nightly" {
		t.Errorf("expected caller ci-nightly, got %s", user.ID)
	}
	if !user.HasRole("admin") {
		t.Error("expected caller to hold the admin role")
	}
}

// TestStaticTokenAuthenticator_EmptyToken proves that empty tokens are
// rejected.
//
// Red-Flag: System MUST reject authentication with an empty token.
func TestStaticTokenAuthenticator_EmptyToken(t *testing.T) {
	// Arrange
	authenticator := auth.NewStaticTokenAuthenticator()
	ctx := context.Background()

	// Act
	_, err := authenticator.ValidateToken(ctx, "")

	// Assert: Authentication MUST fail
	if err == nil {
		t.Fatal("expected error for empty token, got nil")
	}

	// Assert: Error must be ErrAuthFailed
	if _, ok := err.(*errors.ErrAuthFailed); !ok {
		t.Fatalf("expected ErrAuthFailed, got %T: %v", err, err)
	}
}

// TestStaticTokenAuthenticator_UnknownToken proves that unknown tokens are
// rejected without leaking which tokens exist.
//
// Red-Flag: Authentication failures MUST NOT reveal whether a token exists.
func TestStaticTokenAuthenticator_UnknownToken(t *testing.T) {
	// Arrange
	authenticator := auth.NewStaticTokenAuthenticator()
	authenticator.RegisterToken("valid-token", &auth.User{
		ID:   "operator-1",
		Name: "Operator",
	})
	ctx := context.Background()

	// Act: Try two different unknown tokens
	_, err1 := authenticator.ValidateToken(ctx, "unknown-token-1")
	_, err2 := authenticator.ValidateToken(ctx, "unknown-token-2")

	// Assert: Both must fail
	if err1 == nil || err2 == nil {
		t.Fatal("expected both unknown tokens to fail")
	}

	authErr1, ok1 := err1.(*errors.ErrAuthFailed)
	authErr2, ok2 := err2.(*errors.ErrAuthFailed)
	if !ok1 || !ok2 {
		t.Fatal("expected both errors to be ErrAuthFailed")
	}

	// Assert: Reasons must be indistinguishable (no information leakage)
	if authErr1.Reason != authErr2.Reason {
		t.Fatalf("error reasons differ for unknown tokens (potential info leak): %q vs %q",
			authErr1.Reason, authErr2.Reason)
	}
}

// TestStaticTokenAuthenticator_ExpiredToken proves that expired tokens
// are rejected.
//
// Red-Flag: System MUST reject authentication with expired tokens.
func TestStaticTokenAuthenticator_ExpiredToken(t *testing.T) {
	// Arrange
	authenticator := auth.NewStaticTokenAuthenticator()
	authenticator.RegisterToken("expired-token", &auth.User{
		ID:        "operator-1",
		Name:      "Operator",
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	})
	ctx := context.Background()

	// Act
	_, err := authenticator.ValidateToken(ctx, "expired-token")

	// Assert: Authentication MUST fail
	if err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
	if _, ok := err.(*errors.ErrAuthFailed); !ok {
		t.Fatalf("expected ErrAuthFailed, got %T: %v", err, err)
	}
}

// TestUser_HasRole proves case-insensitive role membership, matching the
// access matrix normalization.
func TestUser_HasRole(t *testing.T) {
	user := &auth.User{Roles: []string{"Admin", "customer"}}

	if !user.HasRole("admin") {
		t.Error("expected Admin to match admin")
	}
	if !user.HasRole("CUSTOMER") {
		t.Error("expected customer to match CUSTOMER")
	}
	if user.HasRole("restaurant_owner") {
		t.Error("expected unheld role to be absent")
	}
}

// TestContextUser proves the authenticated caller survives a context
// round trip.
func TestContextUser(t *testing.T) {
	user := &auth.User{ID: "operator-1", Roles: []string{"admin"}}

	ctx := auth.ContextWithUser(context.Background(), user)
	got := auth.UserFromContext(ctx)

	if got == nil {
		t.Fatal("expected user from context, got nil")
	}
	if got.ID != "operator-1" {
		t.Errorf("expected operator-1, got %s", got.ID)
	}

	if auth.UserFromContext(context.Background()) != nil {
		t.Error("expected nil user from bare context")
	}
}

// TestAuthorizer_AnyRoleAllows proves that a caller passes when any one
// of their roles grants the endpoint.
//
// Green-Flag: System MUST allow a caller whose role set contains an
// allowed role.
func TestAuthorizer_AnyRoleAllows(t *testing.T) {
	// Arrange
	matrix, err := access.NewMatrix()
	if err != nil {
		t.Fatalf("failed to build access matrix: %v", err)
	}
	authorizer := auth.NewAuthorizer(matrix)
	user := &auth.User{
		ID:    "ops-lead",
		Roles: []string{"customer", "admin"},
	}

	// Act: admin grants any record even though customer is own-only
	err = authorizer.Authorize(user, "/user/fetchUserById", false)

	// Assert
	if err != nil {
		t.Fatalf("expected admin role to allow fetchUserById, got %v", err)
	}
}

// TestAuthorizer_SelfOnlyScope proves that own-scoped rows pass only for
// the caller's own records.
//
// Red-Flag: System MUST NOT let an own-scoped role reach another
// subject's record.
func TestAuthorizer_SelfOnlyScope(t *testing.T) {
	// Arrange
	matrix, err := access.NewMatrix()
	if err != nil {
		t.Fatalf("failed to build access matrix: %v", err)
	}
	authorizer := auth.NewAuthorizer(matrix)
	customer := &auth.User{ID: "user-42", Roles: []string{"customer"}}

	// Act + Assert: own record passes
	if err := authorizer.Authorize(customer, "/user/fetchUserById", true); err != nil {
		t.Fatalf("expected customer to reach own record, got %v", err)
	}

	// Act + Assert: another subject's record is denied
	err = authorizer.Authorize(customer, "/user/fetchUserById", false)
	if err == nil {
		t.Fatal("expected denial for another subject's record, got nil")
	}
	denied, ok := err.(*errors.ErrAccessDenied)
	if !ok {
		t.Fatalf("expected ErrAccessDenied, got %T: %v", err, err)
	}
	if denied.Endpoint != "/user/fetchUserById" {
		t.Errorf("expected denial to name the endpoint, got %s", denied.Endpoint)
	}
}

// TestAuthorizer_AnonymousDenied proves that a missing caller is denied.
//
// Red-Flag: System MUST deny endpoint access without an authenticated
// caller.
func TestAuthorizer_AnonymousDenied(t *testing.T) {
	matrix, err := access.NewMatrix()
	if err != nil {
		t.Fatalf("failed to build access matrix: %v", err)
	}
	authorizer := auth.NewAuthorizer(matrix)

	err = authorizer.Authorize(nil, "/user/fetchAllUsers", false)
	if err == nil {
		t.Fatal("expected denial for anonymous caller, got nil")
	}
	if _, ok := err.(*errors.ErrAccessDenied); !ok {
		t.Fatalf("expected ErrAccessDenied, got %T: %v", err, err)
	}
}

// TestAuthorizer_Decide proves the strongest-decision fold across roles.
func TestAuthorizer_Decide(t *testing.T) {
	matrix, err := access.NewMatrix()
	if err != nil {
		t.Fatalf("failed to build access matrix: %v", err)
	}
	authorizer := auth.NewAuthorizer(matrix)

	tests := []struct {
		name     string
		user     *auth.User
		endpoint string
		want     access.Decision
	}{
		{
			name:     "admin allows any record",
			user:     &auth.User{Roles: []string{"admin"}},
			endpoint: "/user/fetchAllUsers",
			want:     access.DecisionAllow,
		},
		{
			name:     "customer is own-only on payments",
			user:     &auth.User{Roles: []string{"customer"}},
			endpoint: "/payment/fetchPaymentsByUser",
			want:     access.DecisionSelfOnly,
		},
		{
			name:     "allow wins over self-only",
			user:     &auth.User{Roles: []string{"customer", "admin"}},
			endpoint: "/payment/fetchPaymentsByUser",
			want:     access.DecisionAllow,
		},
		{
			name:     "no roles denies",
			user:     &auth.User{Roles: nil},
			endpoint: "/user/fetchAllUsers",
			want:     access.DecisionDeny,
		},
		{
			name:     "unknown endpoint denies",
			user:     &auth.User{Roles: []string{"admin"}},
			endpoint: "/payment/refundPayment",
			want:     access.DecisionDeny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := authorizer.Decide(tt.user, tt.endpoint)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
