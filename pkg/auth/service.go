package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	autherrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/loginattempt"
	"github.com/tendant/simple-auth/pkg/metrics"
	"github.com/tendant/simple-auth/pkg/tokengenerator"
	"github.com/tendant/simple-auth/pkg/user"
)

const TokenTypeBearer = "Bearer"

// CaptchaVerifier checks a captcha answer
type CaptchaVerifier interface {
	Verify(ctx context.Context, id, code string) bool
}

type LoginParams struct {
	Username    string
	Password    string
	CaptchaID   string
	CaptchaCode string
	IP          string
}

// UserInfo is the account summary returned with tokens
type UserInfo struct {
	ID       uuid.UUID   `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Status   user.Status `json:"status"`
	Roles    []string    `json:"roles" copier:"-"`
	Locale   string      `json:"locale,omitempty"`
}

type LoginResult struct {
	AccessToken      string   `json:"access_token"`
	RefreshToken     string   `json:"refresh_token"`
	TokenType        string   `json:"token_type"`
	ExpiresIn        int64    `json:"expires_in"`
	RefreshExpiresIn int64    `json:"refresh_expires_in"`
	Message          string   `json:"message,omitempty"`
	UserInfo         UserInfo `json:"user_info"`
}

// Service coordinates lockout checks, credential verification and token issuance
type Service struct {
	tracker        *loginattempt.Tracker
	tokens         *tokengenerator.JwtService
	verifier       CredentialVerifier
	users          UserFinder
	captcha        CaptchaVerifier
	requireCaptcha bool
	keyByIP        bool
	metrics        *metrics.Metrics
}

type Option func(*Service)

// WithKeyByIP keys failed attempts by username and client IP
func WithKeyByIP(enabled bool) Option {
	return func(s *Service) {
		s.keyByIP = enabled
	}
}

// WithCaptcha requires a solved captcha on every login
func WithCaptcha(captcha CaptchaVerifier) Option {
	return func(s *Service) {
		s.captcha = captcha
		s.requireCaptcha = captcha != nil
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(tracker *loginattempt.Tracker, tokens *tokengenerator.JwtService, verifier CredentialVerifier, users UserFinder, opts ...Option) *Service {
	s := &Service{
		tracker:  tracker,
		tokens:   tokens,
		verifier: verifier,
		users:    users,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttemptKey is the login-attempt key for a username and client IP
func (s *Service) AttemptKey(username, ip string) string {
	if s.keyByIP && ip != "" {
		return username + "|" + ip
	}
	return username
}

func validateLogin(p LoginParams) error {
	details := make(map[string]interface{})
	if n := len(strings.TrimSpace(p.Username)); n == 0 {
		details["username"] = "username is required"
	} else if n < 3 || n > 50 {
		details["username"] = "username must be between 3 and 50 characters"
	}
	if n := len(p.Password); n == 0 {
		details["password"] = "password is required"
	} else if n < 6 || n > 100 {
		details["password"] = "password must be between 6 and 100 characters"
	}
	if len(details) == 0 {
		return nil
	}
	return &autherrors.Error{Code: autherrors.ErrCodeValidationFailed, Message: "login validation failed", Details: details}
}

// Login authenticates p and issues an access and refresh token.
// A locked key is rejected before the credentials are looked at.
func (s *Service) Login(ctx context.Context, p LoginParams) (LoginResult, error) {
	if err := validateLogin(p); err != nil {
		return LoginResult{}, err
	}

	key := s.AttemptKey(p.Username, p.IP)
	if s.tracker.IsBlocked(key) {
		minutes := s.tracker.LockoutRemainingMinutes(key)
		slog.Warn("Login rejected for locked key", "username", p.Username, "ip", p.IP, "lockout_minutes", minutes)
		s.metrics.LoginOutcome(metrics.OutcomeLocked)
		return LoginResult{}, autherrors.UserLocked(minutes)
	}

	if s.requireCaptcha && !s.captcha.Verify(ctx, p.CaptchaID, p.CaptchaCode) {
		s.metrics.LoginOutcome(metrics.OutcomeCaptchaInvalid)
		return LoginResult{}, autherrors.New(autherrors.ErrCodeCaptchaInvalid, "invalid captcha")
	}

	u, err := s.verifier.Verify(ctx, p.Username, p.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		if attempts := s.tracker.RecordFailure(key); attempts == s.tracker.MaxAttempts() {
			s.metrics.Lockout()
		}
		slog.Info("Login failed", "username", p.Username, "ip", p.IP)
		s.metrics.LoginOutcome(metrics.OutcomeInvalidCredentials)
		return LoginResult{}, autherrors.InvalidCredentials()
	}
	if err != nil {
		s.metrics.LoginOutcome(metrics.OutcomeError)
		return LoginResult{}, autherrors.InternalWrap(err, "failed to verify credentials")
	}

	s.tracker.Reset(key)

	result, err := s.issue(u)
	if err != nil {
		s.metrics.LoginOutcome(metrics.OutcomeError)
		return LoginResult{}, err
	}
	result.Message = "Login successful"

	slog.Info("Login succeeded", "user_id", u.ID, "username", u.Username, "ip", p.IP)
	s.metrics.LoginOutcome(metrics.OutcomeSuccess)
	return result, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The account is
// looked up again so locked or deleted accounts cannot refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	if refreshToken == "" {
		return LoginResult{}, autherrors.New(autherrors.ErrCodeTokenInvalid, "refresh token is required")
	}
	if !s.tokens.Validate(refreshToken) {
		if s.tokens.IsExpired(refreshToken) {
			return LoginResult{}, autherrors.New(autherrors.ErrCodeTokenExpired, "refresh token expired")
		}
		return LoginResult{}, autherrors.New(autherrors.ErrCodeTokenInvalid, "invalid refresh token")
	}

	claims, err := s.tokens.ParseClaims(refreshToken)
	if err != nil {
		return LoginResult{}, autherrors.Wrap(err, autherrors.ErrCodeTokenInvalid, "invalid refresh token")
	}
	if claims.TokenType != tokengenerator.RefreshToken {
		return LoginResult{}, autherrors.New(autherrors.ErrCodeTokenInvalid, "not a refresh token")
	}

	u, err := s.users.FindByUsername(ctx, claims.Subject)
	if errors.Is(err, user.ErrUserNotFound) {
		return LoginResult{}, autherrors.New(autherrors.ErrCodeTokenInvalid, "invalid refresh token")
	}
	if err != nil {
		return LoginResult{}, autherrors.InternalWrap(err, "failed to load user")
	}
	if claims.UserID != "" && claims.UserID != u.ID.String() {
		slog.Warn("Refresh token user id does not match account", "username", u.Username)
		return LoginResult{}, autherrors.New(autherrors.ErrCodeTokenInvalid, "invalid refresh token")
	}
	if !u.IsActive() || !u.Enabled {
		return LoginResult{}, autherrors.New(autherrors.ErrCodeUserDisabled, "account is not active")
	}

	return s.issue(u)
}

func (s *Service) issue(u user.User) (LoginResult, error) {
	p := tokengenerator.Principal{
		UserID:   u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
		Roles:    u.RoleNames(),
	}

	access, err := s.tokens.IssueAccessToken(p)
	if err != nil {
		return LoginResult{}, autherrors.InternalWrap(err, "failed to create access token")
	}
	s.metrics.TokenIssued(string(tokengenerator.AccessToken))

	refresh, err := s.tokens.IssueRefreshToken(p)
	if err != nil {
		return LoginResult{}, autherrors.InternalWrap(err, "failed to create refresh token")
	}
	s.metrics.TokenIssued(string(tokengenerator.RefreshToken))

	return LoginResult{
		AccessToken:      access.Value,
		RefreshToken:     refresh.Value,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        int64(access.TTL.Seconds()),
		RefreshExpiresIn: int64(refresh.TTL.Seconds()),
		UserInfo:         NewUserInfo(u),
	}, nil
}

// NewUserInfo summarizes u for API responses
func NewUserInfo(u user.User) UserInfo {
	info := UserInfo{}
	if err := copier.Copy(&info, &u); err != nil {
		slog.Error("Failed to copy user info", "username", u.Username, "error", err)
	}
	info.Roles = u.RoleNames()
	return info
}
