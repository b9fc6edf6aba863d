// Package client authenticates bearer tokens on inbound requests and enforces
// role and permission requirements downstream.
//
// The Authenticator never rejects a request. It attaches an Identity to the
// request context when the token is valid and the account is active, and leaves
// the request anonymous otherwise. RequireAuth, RequireRole and RequirePermission
// turn the absence of an identity into 401 and a missing grant into 403.
package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth/v5"

	"github.com/tendant/simple-auth/pkg/user"
)

// TokenValidator is the subset of the token service the Authenticator needs
type TokenValidator interface {
	Validate(token string) bool
	SubjectOf(token string) (string, error)
}

// UserFinder looks up the current account state
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (user.User, error)
}

// DefaultSkipPaths are served without looking at the Authorization header.
// Entries ending in "/" match as prefixes, the rest match exactly or as a path prefix.
var DefaultSkipPaths = []string{
	"/api/auth/",
	"/api/captcha",
	"/oauth2/",
	"/login",
	"/error",
	"/healthz",
}

type authenticator struct {
	tokens    TokenValidator
	users     UserFinder
	skipPaths []string
}

type AuthenticatorOption func(*authenticator)

// WithSkipPaths replaces the default unauthenticated paths
func WithSkipPaths(paths ...string) AuthenticatorOption {
	return func(a *authenticator) {
		a.skipPaths = paths
	}
}

// Authenticator returns middleware resolving the bearer token into an Identity
func Authenticator(tokens TokenValidator, users UserFinder, opts ...AuthenticatorOption) func(http.Handler) http.Handler {
	a := &authenticator{
		tokens:    tokens,
		users:     users,
		skipPaths: DefaultSkipPaths,
	}
	for _, opt := range opts {
		opt(a)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if id := a.identify(r); id != nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *authenticator) skip(path string) bool {
	if path == "/" {
		return true
	}
	for _, p := range a.skipPaths {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (a *authenticator) identify(r *http.Request) *Identity {
	token := jwtauth.TokenFromHeader(r)
	if token == "" || !a.tokens.Validate(token) {
		return nil
	}

	username, err := a.tokens.SubjectOf(token)
	if err != nil || username == "" {
		return nil
	}

	u, err := a.users.FindByUsername(r.Context(), username)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			slog.Error("Failed to load user for bearer token", "username", username, "error", err)
		}
		return nil
	}
	if !u.IsActive() || !u.Enabled {
		slog.Debug("Bearer token for inactive account", "username", username, "status", u.Status, "enabled", u.Enabled)
		return nil
	}

	return NewIdentity(u)
}

// NewIdentity builds the identity of u with ROLE_ authorities followed by permissions
func NewIdentity(u user.User) *Identity {
	id := &Identity{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Roles:    u.RoleNames(),
	}
	seen := make(map[string]bool)
	for _, role := range u.Roles {
		id.Authorities = append(id.Authorities, RolePrefix+role.Name)
	}
	for _, role := range u.Roles {
		for _, perm := range role.Permissions {
			if !seen[perm] {
				seen[perm] = true
				id.Authorities = append(id.Authorities, perm)
			}
		}
	}
	return id
}
