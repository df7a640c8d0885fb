package gateway

import (
	"io"
	"testing"

	"github.com/harperz567/food-app-qa/internal/access"
	"github.com/harperz567/food-app-qa/internal/auth"
	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/observability"
	"github.com/harperz567/food-app-qa/internal/registry"
	"github.com/harperz567/food-app-qa/internal/storage"
)

// TestToken authenticates requests against gateways built by
// NewTestGateway.
const TestToken = "test-token"

// NewTestGateway builds a gateway over a seeded registry, the embedded
// access matrix, an in-memory repository, and a discarding audit
// logger. Intended for handler and client tests.
func NewTestGateway(t *testing.T) *Gateway {
	t.Helper()
	return NewTestGatewayWithRegistry(t, seedTestRegistry(t))
}

// NewTestGatewayWithRegistry builds a test gateway over a caller-chosen
// registry.
func NewTestGatewayWithRegistry(t *testing.T, reg *registry.Registry) *Gateway {
	t.Helper()

	authenticator := auth.NewStaticTokenAuthenticator()
	authenticator.RegisterToken(TestToken, &auth.User{
		ID:    "test-user",
		Name:  "Test User",
		Roles: []string{"admin"},
	})

	matrix, err := access.NewMatrix()
	if err != nil {
		t.Fatalf("failed to build access matrix: %v", err)
	}

	g, err := NewGateway(
		authenticator,
		reg,
		matrix,
		storage.NewMockRepository(),
		observability.NewJSONLogger(io.Discard),
		Config{Version: "test"},
	)
	if err != nil {
		t.Fatalf("failed to build test gateway: %v", err)
	}
	return g
}

// seedTestRegistry registers the fields the gateway tests exercise.
func seedTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.NewRegistry()
	fields := []registry.FieldDescriptor{
		{
			Service:   "userinfoservice",
			FieldPath: "users.userId",
			Tag:       registry.Tag{Level: classification.LevelInternal, Retention: classification.RetainYears(7)},
		},
		{
			Service:   "userinfoservice",
			FieldPath: "users.userEmail",
			Tag:       registry.Tag{Level: classification.LevelSensitive, Retention: classification.DeleteOnRequest},
		},
		{
			Service:   "userinfoservice",
			FieldPath: "users.userPassword",
			Tag:       registry.Tag{Level: classification.LevelCritical, Retention: classification.DeleteOnRequest},
			Required:  true,
		},
		{
			Service:   "orderservice",
			FieldPath: "orders.orderId",
			Tag:       registry.Tag{Level: classification.LevelInternal, Retention: classification.Retain1Year},
		},
		{
			Service:   "orderservice",
			FieldPath: "orders.deliveryAddress",
			Tag:       registry.Tag{Level: classification.LevelHighlySensitive, Retention: classification.RetainYears(3)},
		},
	}
	for _, desc := range fields {
		if err := reg.Register(desc); err != nil {
			t.Fatalf("failed to seed registry: %v", err)
		}
	}
	return reg
}
