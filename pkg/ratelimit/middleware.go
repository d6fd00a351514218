package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/accredia/compliance-core/pkg/client"
)

// Config holds rate limiting configuration
type Config struct {
	// Per-IP rate limiting
	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64

	// Per-User rate limiting (for authenticated requests)
	PerUserEnabled    bool
	PerUserCapacity   int
	PerUserRefillRate float64

	// Bucket TTL (how long to keep inactive buckets in memory)
	BucketTTL time.Duration

	// Headers to include in response
	IncludeHeaders bool
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		// Per-IP: 100 requests per minute
		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 100.0 / 60.0,

		// Per-User: 200 requests per minute (higher than IP for authenticated users)
		PerUserEnabled:    true,
		PerUserCapacity:   200,
		PerUserRefillRate: 200.0 / 60.0,

		// Keep buckets for 1 hour after last use
		BucketTTL: 1 * time.Hour,

		IncludeHeaders: true,
	}
}

// Middleware holds the rate limiting middleware state
type Middleware struct {
	config      *Config
	ipLimiter   *RateLimiter
	userLimiter *RateLimiter
}

// NewMiddleware creates a new rate limiting middleware
func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{
		config: config,
	}

	if config.PerIPEnabled {
		m.ipLimiter = NewRateLimiter(
			config.PerIPCapacity,
			config.PerIPRefillRate,
			config.BucketTTL,
		)
	}

	if config.PerUserEnabled {
		m.userLimiter = NewRateLimiter(
			config.PerUserCapacity,
			config.PerUserRefillRate,
			config.BucketTTL,
		)
	}

	return m
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if m.config.PerIPEnabled && ip != "" && !m.ipLimiter.Allow(ip) {
			m.rateLimitExceeded(w, r, "ip")
			return
		}

		userID := accountableUserID(r)
		if m.config.PerUserEnabled && userID != "" && !m.userLimiter.Allow(userID) {
			m.rateLimitExceeded(w, r, "user")
			return
		}

		if m.config.IncludeHeaders {
			m.addRateLimitHeaders(w, ip, userID)
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitExceeded handles rate limit exceeded responses
func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", getClientIP(r),
		"user", accountableUserID(r),
		"path", r.URL.Path,
		"method", r.Method,
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60")
	w.WriteHeader(http.StatusTooManyRequests)

	w.Write([]byte(fmt.Sprintf(`{
		"error": "rate_limit_exceeded",
		"message": "Too many requests. Please try again later.",
		"type": "%s"
	}`, limitType)))
}

// addRateLimitHeaders adds rate limit information headers
func (m *Middleware) addRateLimitHeaders(w http.ResponseWriter, ip, userID string) {
	if m.config.PerIPEnabled && ip != "" {
		w.Header().Set("X-RateLimit-Limit-IP", fmt.Sprintf("%d", m.config.PerIPCapacity))
	}

	if m.config.PerUserEnabled && userID != "" {
		w.Header().Set("X-RateLimit-Limit-User", fmt.Sprintf("%d", m.config.PerUserCapacity))
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is in format "IP:port", we only want the IP
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}

	return addr
}

// accountableUserID returns the identity a request's usage is charged to.
// Impersonated requests count against the impersonator, not the target,
// so switching identities never grants a fresh quota.
func accountableUserID(r *http.Request) string {
	ctx := r.Context()
	if impersonator, ok := client.ImpersonatorFromContext(ctx); ok {
		return impersonator.ID.String()
	}
	if principal, ok := client.PrincipalFromContext(ctx); ok {
		return principal.ID.String()
	}
	return ""
}

// GetStats returns statistics about all rate limiters
func (m *Middleware) GetStats() map[string]Stats {
	stats := make(map[string]Stats)

	if m.ipLimiter != nil {
		stats["ip"] = m.ipLimiter.GetStats()
	}

	if m.userLimiter != nil {
		stats["user"] = m.userLimiter.GetStats()
	}

	return stats
}

// Reset resets rate limits for a specific IP or user
func (m *Middleware) Reset(key string) {
	if m.ipLimiter != nil {
		m.ipLimiter.Reset(key)
	}
	if m.userLimiter != nil {
		m.userLimiter.Reset(key)
	}
}
