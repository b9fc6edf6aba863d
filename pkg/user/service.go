package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	autherrors "github.com/tendant/simple-auth/pkg/errors"
)

const (
	DefaultActivationTTL = 24 * time.Hour
	DefaultRoleName      = "USER"
)

// Registration field limits
const (
	UsernameMinLength = 4
	UsernameMaxLength = 20
	PasswordMinLength = 6
	PasswordMaxLength = 30
)

// ActivationNotifier delivers the activation token to a newly registered user
type ActivationNotifier interface {
	NotifyActivation(ctx context.Context, u User, token string) error
}

// LoggingNotifier logs activation tokens instead of sending email
type LoggingNotifier struct{}

func (LoggingNotifier) NotifyActivation(ctx context.Context, u User, token string) error {
	slog.Info("Activation token issued", "username", u.Username, "email", u.Email, "token", token)
	return nil
}

// RegisterParams is a self-registration request
type RegisterParams struct {
	Username string
	Password string
	Email    string
	Locale   string
}

// Service handles registration and activation
type Service struct {
	repo          Repository
	notifier      ActivationNotifier
	defaultRole   Role
	activationTTL time.Duration
	bcryptCost    int
	now           func() time.Time
}

// Option configures a Service
type Option func(*Service)

func WithNotifier(n ActivationNotifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithDefaultRole(role Role) Option {
	return func(s *Service) {
		s.defaultRole = role
	}
}

func WithActivationTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.activationTTL = ttl
	}
}

// WithBcryptCost lowers the hashing cost, for tests
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		notifier:      LoggingNotifier{},
		defaultRole:   Role{Name: DefaultRoleName},
		activationTTL: DefaultActivationTTL,
		bcryptCost:    bcrypt.DefaultCost,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateRegistration(p RegisterParams) error {
	details := map[string]interface{}{}
	if n := len([]rune(p.Username)); n < UsernameMinLength || n > UsernameMaxLength {
		details["username"] = fmt.Sprintf("must be between %d and %d characters", UsernameMinLength, UsernameMaxLength)
	}
	if n := len([]rune(p.Password)); n < PasswordMinLength || n > PasswordMaxLength {
		details["password"] = fmt.Sprintf("must be between %d and %d characters", PasswordMinLength, PasswordMaxLength)
	}
	if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
		details["email"] = "must be a valid email address"
	}
	if len(details) == 0 {
		return nil
	}
	return &autherrors.Error{Code: autherrors.ErrCodeValidationFailed, Message: "registration validation failed", Details: details}
}

// Register creates a pending, disabled account and sends its activation token
func (s *Service) Register(ctx context.Context, p RegisterParams) (User, error) {
	if err := validateRegistration(p); err != nil {
		return User{}, err
	}

	if _, err := s.repo.FindByUsername(ctx, p.Username); err == nil {
		return User{}, autherrors.New(autherrors.ErrCodeUserAlreadyExists, "username already exists")
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, autherrors.InternalWrap(err, "failed to check username")
	}
	if _, err := s.repo.FindByEmail(ctx, p.Email); err == nil {
		return User{}, autherrors.New(autherrors.ErrCodeEmailAlreadyUsed, "email already exists")
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, autherrors.InternalWrap(err, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.bcryptCost)
	if err != nil {
		return User{}, autherrors.InternalWrap(err, "failed to hash password")
	}

	expires := s.now().Add(s.activationTTL).UTC()
	u, err := s.repo.Create(ctx, User{
		Username:            p.Username,
		Email:               p.Email,
		PasswordHash:        string(hash),
		Status:              StatusPendingActivation,
		Enabled:             false,
		Locale:              p.Locale,
		Roles:               []Role{s.defaultRole},
		ActivationToken:     uuid.NewString(),
		ActivationExpiresAt: &expires,
	})
	switch {
	case errors.Is(err, ErrDuplicateUsername):
		return User{}, autherrors.New(autherrors.ErrCodeUserAlreadyExists, "username already exists")
	case errors.Is(err, ErrDuplicateEmail):
		return User{}, autherrors.New(autherrors.ErrCodeEmailAlreadyUsed, "email already exists")
	case err != nil:
		return User{}, autherrors.InternalWrap(err, "failed to create user")
	}

	slog.Info("User registered", "user_id", u.ID, "username", u.Username)
	if err := s.notifier.NotifyActivation(ctx, u, u.ActivationToken); err != nil {
		slog.Error("Failed to send activation notice", "username", u.Username, "error", err)
	}
	return u, nil
}

// Activate enables the account holding token. Activating an active account is a no-op.
func (s *Service) Activate(ctx context.Context, token string) (User, error) {
	u, err := s.repo.FindByActivationToken(ctx, token)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, autherrors.New(autherrors.ErrCodeActivationTokenInvalid, "invalid activation token")
	}
	if err != nil {
		return User{}, autherrors.InternalWrap(err, "failed to look up activation token")
	}

	if u.ActivationExpiresAt != nil && s.now().After(*u.ActivationExpiresAt) {
		return User{}, autherrors.New(autherrors.ErrCodeActivationTokenExpired, "activation token expired")
	}

	if u.IsActive() {
		slog.Warn("Account already active", "username", u.Username)
		return u, nil
	}

	u.Status = StatusActive
	u.Enabled = true
	u.ActivationToken = ""
	u.ActivationExpiresAt = nil
	u, err = s.repo.Update(ctx, u)
	if err != nil {
		return User{}, autherrors.InternalWrap(err, "failed to activate user")
	}

	slog.Info("User activated", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// EnsureUser creates an active account with the given roles unless the username exists.
// Used to bootstrap an administrator.
func (s *Service) EnsureUser(ctx context.Context, username, email, password string, roles ...Role) (User, bool, error) {
	if u, err := s.repo.FindByUsername(ctx, username); err == nil {
		return u, false, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, false, fmt.Errorf("failed to look up %s: %w", username, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return User{}, false, fmt.Errorf("failed to hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Status:       StatusActive,
		Enabled:      true,
		Roles:        roles,
	})
	if err != nil {
		return User{}, false, fmt.Errorf("failed to create %s: %w", username, err)
	}
	return u, true, nil
}
