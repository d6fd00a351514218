package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/accredia/compliance-core/pkg/client"
)

// Middleware emits a request-level audit event for every authenticated
// request. It complements the per-field audit records written by the
// Executor; the event stream is for operational monitoring, the records
// are the compliance trail.
type Middleware struct {
	logger *slog.Logger
}

// NewMiddleware creates a new request audit middleware instance. A nil
// logger falls back to the default.
func NewMiddleware(logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		logger: logger,
	}
}

// AuditRequests is an HTTP middleware that audits authenticated requests.
// When the request runs under an impersonation session, the event carries
// both the effective principal and the human behind it.
func (m *Middleware) AuditRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		attrs := []any{
			slog.String("method", r.Method),
			slog.String("uri", r.RequestURI),
			slog.Time("timestamp", time.Now()),
		}
		if principal, ok := client.PrincipalFromContext(ctx); ok {
			attrs = append(attrs,
				slog.String("user", principal.ID.String()),
				slog.String("role", string(principal.Role)))
		} else {
			attrs = append(attrs, slog.String("message", "no authenticated principal"))
		}
		if impersonator, ok := client.ImpersonatorFromContext(ctx); ok {
			attrs = append(attrs, slog.String("impersonator", impersonator.ID.String()))
		}

		m.logger.InfoContext(ctx, "audited request", attrs...)

		next.ServeHTTP(w, r)
	})
}
