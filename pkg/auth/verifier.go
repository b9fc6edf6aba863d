package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-auth/pkg/user"
)

// ErrInvalidCredentials covers every credential failure: unknown user, wrong
// password and accounts that may not sign in.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialVerifier checks a username and password and returns the account on success.
// Failures must be reported as ErrInvalidCredentials; any other error means the check
// itself could not run.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (user.User, error)
}

// UserFinder looks up accounts by username
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (user.User, error)
}

// PasswordVerifier verifies bcrypt password hashes from a UserFinder
type PasswordVerifier struct {
	users UserFinder
}

func NewPasswordVerifier(users UserFinder) *PasswordVerifier {
	return &PasswordVerifier{users: users}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// burnCompare spends the same bcrypt work as a real comparison so unknown
// usernames cannot be told apart by response time
func burnCompare(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("simple-auth-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

func (v *PasswordVerifier) Verify(ctx context.Context, username, password string) (user.User, error) {
	u, err := v.users.FindByUsername(ctx, username)
	if errors.Is(err, user.ErrUserNotFound) {
		burnCompare(password)
		return user.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return user.User{}, fmt.Errorf("failed to find user %s: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.User{}, ErrInvalidCredentials
	}

	if !u.IsActive() || !u.Enabled {
		slog.Info("Sign-in refused for inactive account", "username", username, "status", u.Status, "enabled", u.Enabled)
		return user.User{}, ErrInvalidCredentials
	}
	return u, nil
}
