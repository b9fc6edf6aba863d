package client

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// RolePrefix marks role authorities, as opposed to permission authorities
const RolePrefix = "ROLE_"

// Identity is the authenticated caller of one request
type Identity struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Roles       []string  `json:"roles"`
	Authorities []string  `json:"authorities"`
}

func (i Identity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_id", i.UserID.String()),
		slog.String("username", i.Username),
		slog.Any("roles", i.Roles),
	)
}

// HasAnyRole accepts role names with or without the ROLE_ prefix
func (i *Identity) HasAnyRole(roles ...string) bool {
	if i == nil {
		return false
	}
	for _, role := range roles {
		if slices.Contains(i.Roles, strings.TrimPrefix(role, RolePrefix)) {
			return true
		}
	}
	return false
}

// HasAuthority reports whether the identity holds the exact authority string
func (i *Identity) HasAuthority(authority string) bool {
	return i != nil && slices.Contains(i.Authorities, authority)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "simple-auth context value " + k.name
}

var IdentityKey = &contextKey{"Identity"}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFromContext returns the identity attached by the Authenticator, if any
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(*Identity)
	return id, ok && id != nil
}
