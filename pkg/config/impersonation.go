package config

import (
	"time"

	"github.com/accredia/compliance-core/pkg/impersonate"
)

// ImpersonationConfig holds impersonation session lifecycle settings
type ImpersonationConfig struct {
	AbsoluteTTL       time.Duration `env:"IMPERSONATION_ABSOLUTE_TTL" env-default:"1h"`
	InactivityTTL     time.Duration `env:"IMPERSONATION_INACTIVITY_TTL" env-default:"15m"`
	MaxActiveSessions int           `env:"IMPERSONATION_MAX_ACTIVE_SESSIONS" env-default:"5"`
}

// Validate checks that the lifecycle settings make sense
func (c ImpersonationConfig) Validate() error {
	return Validate(
		func() ValidationErrors {
			return CollectErrors(
				RequirePositiveDuration("impersonation_absolute_ttl", c.AbsoluteTTL),
				RequirePositiveDuration("impersonation_inactivity_ttl", c.InactivityTTL),
				RequireInRange("impersonation_max_active_sessions", c.MaxActiveSessions, 1, 100),
			)
		},
	)
}

// ToServiceOptions converts the config to impersonation service options
func (c ImpersonationConfig) ToServiceOptions() impersonate.ServiceOptions {
	opts := impersonate.DefaultServiceOptions()
	opts.AbsoluteTTL = c.AbsoluteTTL
	opts.InactivityTTL = c.InactivityTTL
	opts.MaxActiveSessions = c.MaxActiveSessions
	return opts
}
