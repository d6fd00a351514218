// Package config provides common configuration utilities for compliance-core.
//
// It centralizes the per-concern configuration structs (database, JWT,
// impersonation) used across services. Structs carry cleanenv tags and are
// loaded with cleanenv.ReadEnv at startup.
//
// Validate configuration with structured error handling:
//
//	err := config.Validate(
//		func() config.ValidationErrors {
//			return config.CollectErrors(
//				config.RequireNonEmpty("jwt_issuer", c.Issuer),
//				config.RequireMinLength("jwt_secret", c.Secret, 16),
//			)
//		},
//	)
package config
