package config

import "time"

// JWTConfig holds token signing settings. TTLs are whole seconds.
type JWTConfig struct {
	Secret          string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret-change-me-please"`
	AccessTokenTTL  int    `env:"JWT_ACCESS_TOKEN_TTL" env-default:"3600"`
	RefreshTokenTTL int    `env:"JWT_REFRESH_TOKEN_TTL" env-default:"604800"`
	Issuer          string `env:"JWT_ISSUER" env-default:"oauth-server"`
}

// AccessTTL returns the access token lifetime
func (j JWTConfig) AccessTTL() time.Duration {
	return time.Duration(j.AccessTokenTTL) * time.Second
}

// RefreshTTL returns the refresh token lifetime
func (j JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(j.RefreshTokenTTL) * time.Second
}

func (j JWTConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("jwt_secret", j.Secret),
		RequireNonEmpty("jwt_issuer", j.Issuer),
		RequirePositive("jwt_access_token_ttl", j.AccessTokenTTL),
		RequirePositive("jwt_refresh_token_ttl", j.RefreshTokenTTL),
	)
}
