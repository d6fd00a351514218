package authz

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/accredia/compliance-core/pkg/authz"
	"github.com/accredia/compliance-core/pkg/client"
	pkgerrors "github.com/accredia/compliance-core/pkg/errors"
)

// Handle exposes the access decision engine over HTTP for callers that need
// a preflight check (UI affordances, batch jobs). Mutations never rely on
// it; they re-check inside their own transaction.
type Handle struct {
	service *authz.Service
}

func NewHandle(service *authz.Service) Handle {
	return Handle{service: service}
}

// RegisterRoutes mounts the access check endpoint.
func (h Handle) RegisterRoutes(r chi.Router) {
	r.Post("/access/check", h.Check)
}

// CheckRequest is the POST /access/check payload.
type CheckRequest struct {
	ResourceType string    `json:"resource_type"`
	ResourceID   uuid.UUID `json:"resource_id"`
	Action       string    `json:"action"`
}

// CheckResponse reports the verdict for the caller's own principal. Denial
// reasons are internal; the response only distinguishes allowed from not.
type CheckResponse struct {
	Allowed bool   `json:"allowed"`
	Scope   string `json:"scope,omitempty"`
}

// Check handles POST /access/check.
func (h Handle) Check(w http.ResponseWriter, r *http.Request) {
	principal, ok := client.PrincipalFromContext(r.Context())
	if !ok {
		renderError(w, r, pkgerrors.Unauthorized("authentication required"))
		return
	}

	var req CheckRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, pkgerrors.InvalidInput("body", "malformed JSON"))
		return
	}

	resourceType, err := authz.ParseResourceType(req.ResourceType)
	if err != nil {
		renderError(w, r, pkgerrors.InvalidInput("resource_type", err.Error()))
		return
	}
	if req.ResourceID == uuid.Nil {
		renderError(w, r, pkgerrors.InvalidInput("resource_id", "required"))
		return
	}
	action := authz.Action(req.Action)
	switch action {
	case authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete:
	default:
		renderError(w, r, pkgerrors.InvalidInput("action", "must be one of READ, CREATE, UPDATE, DELETE"))
		return
	}

	verdict, err := h.service.CheckAccess(r.Context(), principal,
		authz.ResourceRef{Type: resourceType, ID: req.ResourceID}, action)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, CheckResponse{
		Allowed: verdict.Allowed,
		Scope:   string(verdict.Scope),
	})
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
