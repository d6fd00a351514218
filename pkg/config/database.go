package config

import (
	dbutils "github.com/tendant/db-utils/db"
)

// DatabaseConfig holds PostgreSQL database configuration
// This is shared across all services to avoid duplication
type DatabaseConfig struct {
	Host     string `env:"COMPLIANCE_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"COMPLIANCE_PG_PORT" env-default:"5432"`
	Database string `env:"COMPLIANCE_PG_DATABASE" env-default:"compliance_db"`
	User     string `env:"COMPLIANCE_PG_USER" env-default:"compliance"`
	Password string `env:"COMPLIANCE_PG_PASSWORD" env-default:"pwd"`
}

// ToDbConfig converts the config to a db-utils DbConfig
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}
