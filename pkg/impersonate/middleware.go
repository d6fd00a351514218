package impersonate

import (
	"log/slog"
	"net/http"

	"github.com/accredia/compliance-core/pkg/authz"
	"github.com/accredia/compliance-core/pkg/client"
)

// TokenHeader carries the impersonation session token on requests made
// while "viewing as" another user.
const TokenHeader = "X-Impersonation-Token"

// Middleware substitutes the impersonation target as the effective
// principal when a valid session token accompanies the request. The
// original actor stays available via client.ImpersonatorFromContext, and
// the session's activity clock is touched on every authenticated request.
//
// Requests without the header pass through untouched. Requests with an
// invalid or retired token are rejected rather than silently falling back
// to the actor's own identity.
func Middleware(service *Service, store authz.ResourceStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			actor, ok := client.PrincipalFromContext(ctx)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			session, err := service.ValidateToken(ctx, token)
			if err != nil {
				slog.Info("rejecting impersonated request", "actor", actor, "err", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if session.ImpersonatorID != actor.ID {
				slog.Warn("impersonation token presented by a different user",
					"actor", actor, "session", session.ID)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			scope, err := store.GetUserScope(ctx, session.TargetUserID)
			if err != nil {
				slog.Error("failed to resolve impersonation target", "session", session.ID, "err", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			// A target removed after the session was opened must not keep
			// being impersonated until the session expires.
			if scope.Deletion.Deleted() {
				slog.Info("rejecting impersonation of a removed user",
					"session", session.ID, "target", session.TargetUserID)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := service.Touch(ctx, token); err != nil {
				// Activity refresh is best-effort.
				slog.Debug("failed to touch impersonation session", "session", session.ID, "err", err)
			}

			ctx = client.WithImpersonator(ctx, actor)
			ctx = client.WithPrincipal(ctx, client.UserScopePrincipal(scope))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
