package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/accredia/compliance-core/pkg/audit"
	"github.com/accredia/compliance-core/pkg/authz"
	authzapi "github.com/accredia/compliance-core/pkg/authz/api"
	"github.com/accredia/compliance-core/pkg/client"
	pkgconfig "github.com/accredia/compliance-core/pkg/config"
	"github.com/accredia/compliance-core/pkg/impersonate"
	impersonateapi "github.com/accredia/compliance-core/pkg/impersonate/api"
	"github.com/accredia/compliance-core/pkg/ratelimit"
)

type Config struct {
	DbConfig            pkgconfig.DatabaseConfig
	JwtConfig           pkgconfig.JWTConfig
	ImpersonationConfig pkgconfig.ImpersonationConfig
}

func main() {
	logOpts := &slog.HandlerOptions{
		AddSource: pkgconfig.IsDevelopment(),
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, logOpts)
	if pkgconfig.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, logOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	loadEnvFile()

	config := Config{}
	cleanenv.ReadEnv(&config)

	if err := config.JwtConfig.Validate(); err != nil {
		slog.Error("Invalid JWT configuration", "error", err)
		os.Exit(-1)
	}
	if err := config.ImpersonationConfig.Validate(); err != nil {
		slog.Error("Invalid impersonation configuration", "error", err)
		os.Exit(-1)
	}
	accessTokenTTL, err := config.JwtConfig.ParseAccessTokenExpiry()
	if err != nil {
		slog.Error("Invalid access token expiry", "error", err)
		os.Exit(-1)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	pool, err := dbutils.NewDbPool(context.Background(), config.DbConfig.ToDbConfig())
	if err != nil {
		slog.Error("Failed to create database pool", "error", err)
		os.Exit(-1)
	}
	defer pool.Close()

	// Access decision engine
	resourceStore := authz.NewPostgresResourceStore(pool)
	authzService := authz.NewService(resourceStore)
	authzHandle := authzapi.NewHandle(authzService)

	// Impersonation sessions
	sessionRepo := impersonate.NewPostgresRepository(pool)
	impersonateService := impersonate.NewServiceWithOptions(sessionRepo, authzService,
		config.ImpersonationConfig.ToServiceOptions())
	impersonateHandle := impersonateapi.NewHandle(impersonateService, []byte(config.JwtConfig.Secret), accessTokenTTL)

	requestAudit := audit.NewMiddleware(logger)
	rateLimiter := ratelimit.NewMiddleware(ratelimit.DefaultConfig())

	tokenAuth := jwtauth.New("HS256", []byte(config.JwtConfig.Secret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.PrincipalMiddleware)
		r.Use(impersonate.Middleware(impersonateService, resourceStore))
		r.Use(rateLimiter.Handler)
		r.Use(requestAudit.AuditRequests)

		r.Route("/api/v1", func(r chi.Router) {
			authzHandle.RegisterRoutes(r)
			impersonateHandle.RegisterRoutes(r)
		})
	})

	slog.Info("Compliance core ready",
		"db", config.DbConfig.Host,
		"impersonation_absolute_ttl", config.ImpersonationConfig.AbsoluteTTL,
		"impersonation_inactivity_ttl", config.ImpersonationConfig.InactivityTTL)

	server.Run()
}

// loadEnvFile loads environment variables from .env file if it exists
// Only sets variables that are not already set in the environment
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "error", err)
		return
	}

	execDir := filepath.Dir(execPath)
	envFile := filepath.Join(execDir, ".env")

	// Also check current working directory
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, err := os.Getwd()
		if err != nil {
			slog.Error("Failed to get current working directory", "error", err)
			return
		}
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Info("No .env file found, using environment variables", "path", envFile)
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)

	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
		return
	}
}
