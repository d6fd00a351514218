package impersonate

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/accredia/compliance-core/pkg/authz"
	"github.com/accredia/compliance-core/pkg/client"
	pkgerrors "github.com/accredia/compliance-core/pkg/errors"
	"github.com/accredia/compliance-core/pkg/impersonate"
)

// Handle exposes the impersonation session lifecycle over HTTP.
type Handle struct {
	service   *impersonate.Service
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewHandle creates the impersonation HTTP handler. The secret signs the
// short-lived claims token issued alongside a new session; tokenTTL bounds
// that token's lifetime independently of the session clocks.
func NewHandle(service *impersonate.Service, jwtSecret []byte, tokenTTL time.Duration) Handle {
	return Handle{
		service:   service,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// RegisterRoutes mounts the impersonation endpoints.
func (h Handle) RegisterRoutes(r chi.Router) {
	r.Post("/impersonate", h.Create)
	r.Post("/impersonate/validate", h.Validate)
	r.Post("/impersonate/{sessionID}/complete", h.Complete)
	r.Delete("/impersonate/{sessionID}", h.Revoke)
}

// CreateRequest is the POST /impersonate payload.
type CreateRequest struct {
	TargetUserID uuid.UUID `json:"target_user_id"`
}

// SessionResponse is the API shape of a session. The opaque token is only
// returned on creation.
type SessionResponse struct {
	ID             uuid.UUID          `json:"id"`
	Token          string             `json:"token,omitempty"`
	ImpersonatorID uuid.UUID          `json:"impersonator_id"`
	TargetUserID   uuid.UUID          `json:"target_user_id"`
	Status         impersonate.Status `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	ExpiresAt      time.Time          `json:"expires_at"`
	LastActivityAt time.Time          `json:"last_activity_at"`
	AccessToken    string             `json:"access_token,omitempty"`
}

// Create handles POST /impersonate.
func (h Handle) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := client.PrincipalFromContext(r.Context())
	if !ok {
		renderError(w, r, pkgerrors.Unauthorized("authentication required"))
		return
	}

	var req CreateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, pkgerrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.TargetUserID == uuid.Nil {
		renderError(w, r, pkgerrors.InvalidInput("target_user_id", "required"))
		return
	}

	session, err := h.service.CreateSession(r.Context(), principal, req.TargetUserID,
		r.RemoteAddr, r.UserAgent())
	if err != nil {
		renderError(w, r, err)
		return
	}

	var resp SessionResponse
	if err := copier.Copy(&resp, session); err != nil {
		renderError(w, r, pkgerrors.InternalWrap(err, "mapping session"))
		return
	}

	accessToken, err := h.issueClaims(session)
	if err != nil {
		renderError(w, r, pkgerrors.InternalWrap(err, "issuing impersonation claims"))
		return
	}
	resp.AccessToken = accessToken

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// ValidateRequest is the POST /impersonate/validate payload.
type ValidateRequest struct {
	Token string `json:"token"`
}

// Validate handles POST /impersonate/validate.
func (h Handle) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil || req.Token == "" {
		renderError(w, r, pkgerrors.InvalidInput("token", "required"))
		return
	}

	session, err := h.service.ValidateToken(r.Context(), req.Token)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var resp SessionResponse
	if err := copier.Copy(&resp, session); err != nil {
		renderError(w, r, pkgerrors.InternalWrap(err, "mapping session"))
		return
	}
	resp.Token = ""
	render.JSON(w, r, resp)
}

// Revoke handles DELETE /impersonate/{sessionID}.
func (h Handle) Revoke(w http.ResponseWriter, r *http.Request) {
	h.end(w, r, (*impersonate.Service).Revoke)
}

// Complete handles POST /impersonate/{sessionID}/complete.
func (h Handle) Complete(w http.ResponseWriter, r *http.Request) {
	h.end(w, r, (*impersonate.Service).Complete)
}

func (h Handle) end(w http.ResponseWriter, r *http.Request, terminate func(*impersonate.Service, context.Context, uuid.UUID, authz.Principal) error) {
	principal, ok := client.PrincipalFromContext(r.Context())
	if !ok {
		renderError(w, r, pkgerrors.Unauthorized("authentication required"))
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		renderError(w, r, pkgerrors.InvalidInput("sessionID", "must be a UUID"))
		return
	}

	if err := terminate(h.service, r.Context(), sessionID, principal); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// issueClaims builds a short-lived JWT carrying the session token so the
// frontend can switch identities without re-authenticating. The token never
// outlives the session's absolute expiry.
func (h Handle) issueClaims(session *impersonate.Session) (string, error) {
	expiresAt := session.ExpiresAt
	if h.tokenTTL > 0 {
		if bounded := session.CreatedAt.Add(h.tokenTTL); bounded.Before(expiresAt) {
			expiresAt = bounded
		}
	}
	claims := jwt.MapClaims{
		"sub":                 session.TargetUserID.String(),
		"impersonator":        session.ImpersonatorID.String(),
		"impersonation_token": session.Token,
		"iat":                 session.CreatedAt.Unix(),
		"exp":                 expiresAt.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := pkgerrors.GetCode(err)
	message := "internal error"
	if e, ok := err.(*pkgerrors.Error); ok {
		message = e.Message
	}
	render.Status(r, pkgerrors.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, map[string]string{
		"error": message,
		"code":  string(code),
	})
}
