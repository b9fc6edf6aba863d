package tokengenerator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token settings
const (
	DefaultAccessTokenExpiry  = time.Hour
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
	DefaultIssuer             = "oauth-server"
)

var ErrMissingSubject = errors.New("token has no subject")

// JwtService issues and verifies HS256 tokens. It is immutable after construction
// and safe for concurrent use.
type JwtService struct {
	key                []byte
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	now                func() time.Time
}

// JwtServiceOption is a function that configures a JwtService
type JwtServiceOption func(*JwtService)

// WithIssuer sets the iss claim
func WithIssuer(issuer string) JwtServiceOption {
	return func(js *JwtService) {
		js.issuer = issuer
	}
}

// WithAccessTokenExpiry sets the access token expiry duration
func WithAccessTokenExpiry(expiry time.Duration) JwtServiceOption {
	return func(js *JwtService) {
		js.accessTokenExpiry = expiry
	}
}

// WithRefreshTokenExpiry sets the refresh token expiry duration
func WithRefreshTokenExpiry(expiry time.Duration) JwtServiceOption {
	return func(js *JwtService) {
		js.refreshTokenExpiry = expiry
	}
}

// WithClock replaces time.Now for issuing and validating
func WithClock(now func() time.Time) JwtServiceOption {
	return func(js *JwtService) {
		js.now = now
	}
}

// NewJwtService creates a new JwtService. The signing key is derived once, here.
func NewJwtService(secret string, options ...JwtServiceOption) *JwtService {
	js := &JwtService{
		issuer:             DefaultIssuer,
		accessTokenExpiry:  DefaultAccessTokenExpiry,
		refreshTokenExpiry: DefaultRefreshTokenExpiry,
		now:                time.Now,
	}

	for _, option := range options {
		option(js)
	}

	js.key = signingKey(secret)
	return js
}

// AccessTokenExpiry returns the configured access token lifetime
func (js *JwtService) AccessTokenExpiry() time.Duration {
	return js.accessTokenExpiry
}

// RefreshTokenExpiry returns the configured refresh token lifetime
func (js *JwtService) RefreshTokenExpiry() time.Duration {
	return js.refreshTokenExpiry
}

// IssueAccessToken signs an access token carrying the user id, email and roles
func (js *JwtService) IssueAccessToken(p Principal) (Token, error) {
	claims := Claims{
		UserID:    p.UserID,
		Email:     p.Email,
		Roles:     p.Roles,
		TokenType: AccessToken,
	}
	return js.issue(p.Username, claims, js.accessTokenExpiry)
}

// IssueRefreshToken signs a refresh token. It carries no email or roles.
func (js *JwtService) IssueRefreshToken(p Principal) (Token, error) {
	claims := Claims{
		UserID:    p.UserID,
		TokenType: RefreshToken,
	}
	return js.issue(p.Username, claims, js.refreshTokenExpiry)
}

func (js *JwtService) issue(subject string, claims Claims, expiry time.Duration) (Token, error) {
	if subject == "" {
		return Token{}, ErrMissingSubject
	}

	now := js.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    js.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		ID:        uuid.New().String(),
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(js.key)
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return Token{Value: ss, ExpiresAt: claims.ExpiresAt.Time, TTL: expiry}, nil
}

// ParseClaims verifies signature, algorithm and expiry and returns the claims
func (js *JwtService) ParseClaims(tokenStr string) (*Claims, error) {
	return js.parse(tokenStr,
		jwt.WithTimeFunc(js.now),
		jwt.WithExpirationRequired(),
	)
}

func (js *JwtService) parse(tokenStr string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return js.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

// Validate reports whether the token is well formed, correctly signed and unexpired.
// Any failure yields false.
func (js *JwtService) Validate(tokenStr string) bool {
	if tokenStr == "" {
		return false
	}
	if _, err := js.ParseClaims(tokenStr); err != nil {
		slog.Debug("Token validation failed", "err", err)
		return false
	}
	return true
}

// SubjectOf returns the username a valid token was issued for
func (js *JwtService) SubjectOf(tokenStr string) (string, error) {
	claims, err := js.ParseClaims(tokenStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

// IsExpired reports whether a correctly signed token is past its expiry.
// Unparseable or mis-signed tokens count as expired.
func (js *JwtService) IsExpired(tokenStr string) bool {
	claims, err := js.parse(tokenStr, jwt.WithoutClaimsValidation())
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !js.now().Before(claims.ExpiresAt.Time)
}
