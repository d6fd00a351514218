package client

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/accredia/compliance-core/pkg/rbac"
)

// PrincipalMiddleware maps a verified JWT (jwtauth.Verifier must run
// first) to the effective principal. Requests without a valid, parseable
// identity are rejected before any handler runs.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		principal, err := PrincipalFromClaims(claims)
		if err != nil {
			slog.Debug("rejecting request with malformed identity claims", "err", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireCapability returns a middleware that denies requests whose
// effective principal lacks the capability. Must be used after
// PrincipalMiddleware.
func RequireCapability(capability rbac.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !rbac.HasCapability(principal.Role, capability) {
				slog.Warn("principal lacks required capability",
					"principal", principal,
					"capability", capability)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole returns a middleware that checks the effective principal
// holds one of the given roles. Must be used after PrincipalMiddleware.
func RequireRole(roles ...rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			slog.Warn("principal lacks required role",
				"principal", principal,
				"requiredRoles", roles)
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
		})
	}
}
