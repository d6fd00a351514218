package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_CollectsAllErrors(t *testing.T) {
	err := Validate(
		func() ValidationErrors {
			return CollectErrors(
				RequireNonEmpty("issuer", ""),
				RequireMinLength("secret", "short", 16),
				RequirePositiveDuration("ttl", 0),
				RequireInRange("max_sessions", 0, 1, 100),
			)
		},
	)
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 4)
	assert.Contains(t, err.Error(), "issuer: is required")
	assert.Contains(t, err.Error(), "secret: must be at least 16 characters")
}

func TestValidate_NoErrors(t *testing.T) {
	err := Validate(
		func() ValidationErrors {
			return CollectErrors(
				RequireNonEmpty("issuer", "compliance-core"),
				RequireInRange("max_sessions", 5, 1, 100),
			)
		},
	)
	assert.NoError(t, err)
}

func TestJWTConfig_Validate(t *testing.T) {
	valid := JWTConfig{
		Secret:            "a-long-enough-signing-secret",
		AccessTokenExpiry: "5m",
		Issuer:            "compliance-core",
	}
	assert.NoError(t, valid.Validate())

	shortSecret := valid
	shortSecret.Secret = "short"
	err := shortSecret.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")

	badExpiry := valid
	badExpiry.AccessTokenExpiry = "not-a-duration"
	err = badExpiry.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token_expiry")
}

func TestJWTConfig_ParseAccessTokenExpiry(t *testing.T) {
	// Go duration syntax.
	c := JWTConfig{AccessTokenExpiry: "5m"}
	d, err := c.ParseAccessTokenExpiry()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	// ISO 8601 syntax.
	c.AccessTokenExpiry = "PT1H30M"
	d, err = c.ParseAccessTokenExpiry()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	c.AccessTokenExpiry = "garbage"
	_, err = c.ParseAccessTokenExpiry()
	assert.Error(t, err)
}

func TestImpersonationConfig_Validate(t *testing.T) {
	valid := ImpersonationConfig{
		AbsoluteTTL:       time.Hour,
		InactivityTTL:     15 * time.Minute,
		MaxActiveSessions: 5,
	}
	assert.NoError(t, valid.Validate())

	bad := ImpersonationConfig{AbsoluteTTL: -time.Minute, MaxActiveSessions: 0}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "impersonation_absolute_ttl")
	assert.Contains(t, err.Error(), "impersonation_inactivity_ttl")
	assert.Contains(t, err.Error(), "impersonation_max_active_sessions")
}

func TestImpersonationConfig_ToServiceOptions(t *testing.T) {
	c := ImpersonationConfig{
		AbsoluteTTL:       30 * time.Minute,
		InactivityTTL:     5 * time.Minute,
		MaxActiveSessions: 3,
	}
	opts := c.ToServiceOptions()
	assert.Equal(t, 30*time.Minute, opts.AbsoluteTTL)
	assert.Equal(t, 5*time.Minute, opts.InactivityTTL)
	assert.Equal(t, 3, opts.MaxActiveSessions)
	assert.NotNil(t, opts.Now)
}

func TestDatabaseConfig_ToDbConfig(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "compliance_db",
		User:     "compliance",
		Password: "pwd",
	}
	dbConfig := c.ToDbConfig()
	assert.Equal(t, "db.internal", dbConfig.Host)
	assert.Equal(t, uint16(5433), dbConfig.Port)
	assert.Equal(t, "compliance_db", dbConfig.Database)
	assert.Equal(t, "compliance", dbConfig.User)
	assert.Equal(t, "pwd", dbConfig.Password)
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	assert.Equal(t, Production, GetEnvironment())
	assert.True(t, IsProduction())
	assert.False(t, IsDevelopment())

	t.Setenv("APP_ENV", "")
	assert.Equal(t, Development, GetEnvironment())
	assert.True(t, IsDevelopment())
}
