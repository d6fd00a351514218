package config

import (
	"time"

	"github.com/sosodev/duration"
)

// JWTConfig holds JWT authentication configuration
type JWTConfig struct {
	Secret            string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	AccessTokenExpiry string `env:"ACCESS_TOKEN_EXPIRY" env-default:"5m"`
	Issuer            string `env:"JWT_ISSUER" env-default:"compliance-core"`
	Audience          string `env:"JWT_AUDIENCE" env-default:"compliance-core"`
}

// ParseAccessTokenExpiry parses the access token expiry duration
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(j.AccessTokenExpiry)
}

// Validate checks the JWT configuration for production use
func (j JWTConfig) Validate() error {
	return Validate(
		func() ValidationErrors {
			expiry, err := j.ParseAccessTokenExpiry()
			if err != nil {
				return CollectErrors(&ValidationError{
					Field:   "access_token_expiry",
					Message: "must be a valid duration",
				})
			}
			return CollectErrors(
				RequireMinLength("jwt_secret", j.Secret, 16),
				RequireNonEmpty("jwt_issuer", j.Issuer),
				RequirePositiveDuration("access_token_expiry", expiry),
			)
		},
	)
}

// parseDurationISO8601 tries to parse duration as ISO8601 first, then Go duration
func parseDurationISO8601(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}

	return time.ParseDuration(s)
}
