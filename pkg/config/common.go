package config

import (
	"os"
)

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Environment represents different deployment environments
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
	Test        Environment = "test"
)

// GetEnvironment returns the current environment from APP_ENV or defaults to development
func GetEnvironment() Environment {
	env := GetEnvOrDefault("APP_ENV", "development")
	switch env {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	case "test", "testing":
		return Test
	default:
		return Development
	}
}

// IsDevelopment returns true if running in development environment
func IsDevelopment() bool {
	return GetEnvironment() == Development
}

// IsProduction returns true if running in production environment
func IsProduction() bool {
	return GetEnvironment() == Production
}
