package tokengenerator

import (
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access tokens from refresh tokens
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// MinSecretLength is the shortest secret accepted as an HS256 key, in bytes
const MinSecretLength = 32

// Principal is the identity a token is issued for
type Principal struct {
	UserID   string
	Username string
	Email    string
	Roles    []string
}

// Claims struct for JWT claims. The subject is the username.
type Claims struct {
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Token is a signed token and its lifetime
type Token struct {
	Value     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// signingKey returns the secret as an HS256 key, or 32 random bytes when the secret is too short.
// Tokens signed with a random key do not survive a restart.
func signingKey(secret string) []byte {
	if len(secret) >= MinSecretLength {
		return []byte(secret)
	}

	slog.Warn("JWT secret is shorter than required, using a random signing key; tokens will not survive a restart",
		"min_length", MinSecretLength, "length", len(secret))
	key := make([]byte, MinSecretLength)
	if _, err := rand.Read(key); err != nil {
		panic("tokengenerator: crypto/rand unavailable: " + err.Error())
	}
	return key
}
