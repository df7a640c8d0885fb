// Package auth provides token authentication for the audit gateway.
//
// The gateway is an internal operations surface: operators and CI jobs
// authenticate with pre-shared bearer tokens, and every authenticated
// caller carries the roles the access matrix evaluates. There is no
// user database and no session state; a token either maps to a known
// caller or the request is refused.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/harperz567/food-app-qa/internal/errors"
)

// User represents an authenticated caller of the gateway.
type User struct {
	// ID uniquely identifies the caller.
	ID string `json:"id"`

	// Name is a human-readable label, typically the operator or job name.
	Name string `json:"name"`

	// Roles the caller holds, evaluated against the access matrix.
	Roles []string `json:"roles"`

	// ExpiresAt is when the caller's token expires. Zero means no expiry.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// IsExpired checks whether the user's token has expired.
func (u *User) IsExpired() bool {
	if u.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(u.ExpiresAt)
}

// HasRole checks whether the user holds the given role. Roles compare
// case-insensitively, matching the access matrix normalization.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Authenticator validates tokens and resolves the caller behind them.
type Authenticator interface {
	// ValidateToken checks the token and returns the authenticated user.
	// Returns an error if the token is unknown or expired.
	ValidateToken(ctx context.Context, token string) (*User, error)
}

// StaticTokenAuthenticator authenticates against a fixed token table.
// Tokens are registered at startup from configuration, which covers the
// gateway's callers: a handful of operators and CI jobs.
type StaticTokenAuthenticator struct {
	mu     sync.RWMutex
	tokens map[string]*User
}

// NewStaticTokenAuthenticator creates an empty static token authenticator.
func NewStaticTokenAuthenticator() *StaticTokenAuthenticator {
	return &StaticTokenAuthenticator{
		tokens: make(map[string]*User),
	}
}

// RegisterToken maps a token to a user. Registering an existing token
// replaces the previous mapping.
func (a *StaticTokenAuthenticator) RegisterToken(token string, user *User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[token] = user
}

// ValidateToken checks a token against the registered table.
func (a *StaticTokenAuthenticator) ValidateToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, errors.NewAuthFailed("token required")
	}

	a.mu.RLock()
	user, ok := a.tokens[token]
	a.mu.RUnlock()

	if !ok {
		return nil, errors.NewAuthFailed("invalid token")
	}

	if user.IsExpired() {
		return nil, errors.NewAuthFailed("token expired")
	}

	return user, nil
}

var _ Authenticator = (*StaticTokenAuthenticator)(nil)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey contextKey = "datatags_user"

// ContextWithUser returns a new context with the user attached.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the user from the context.
// Returns nil if no user is attached.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}
