package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accredia/compliance-core/pkg/authz"
	"github.com/accredia/compliance-core/pkg/rbac"
)

func TestPrincipalFromClaims(t *testing.T) {
	userID := uuid.New()
	institutionID := uuid.New()

	principal, err := PrincipalFromClaims(map[string]interface{}{
		"sub":            userID.String(),
		"role":           "institution_admin",
		"institution_id": institutionID.String(),
		"provinces":      []interface{}{"Gauteng", "Limpopo"},
	})
	require.NoError(t, err)
	assert.Equal(t, userID, principal.ID)
	assert.Equal(t, rbac.RoleInstitutionAdmin, principal.Role)
	require.NotNil(t, principal.InstitutionID)
	assert.Equal(t, institutionID, *principal.InstitutionID)
	assert.Equal(t, []string{"Gauteng", "Limpopo"}, principal.AssignedProvinces)
}

func TestPrincipalFromClaims_Invalid(t *testing.T) {
	// Missing subject.
	_, err := PrincipalFromClaims(map[string]interface{}{"role": "student"})
	assert.Error(t, err)

	// Unknown role fails closed.
	_, err = PrincipalFromClaims(map[string]interface{}{
		"sub":  uuid.New().String(),
		"role": "root",
	})
	assert.Error(t, err)

	// Malformed institution id.
	_, err = PrincipalFromClaims(map[string]interface{}{
		"sub":            uuid.New().String(),
		"role":           "student",
		"institution_id": "not-a-uuid",
	})
	assert.Error(t, err)
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	principal := authz.Principal{ID: uuid.New(), Role: rbac.RoleQCTOUser}
	ctx := WithPrincipal(context.Background(), principal)

	got, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, principal, got)

	_, ok = PrincipalFromContext(context.Background())
	assert.False(t, ok)
}

func TestRequireCapability(t *testing.T) {
	handler := RequireCapability(rbac.CapabilityStaffInvite)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	// No principal: 401.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Principal without the capability: 403.
	student := authz.Principal{ID: uuid.New(), Role: rbac.RoleStudent}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), student))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Principal with the capability passes through.
	admin := authz.Principal{ID: uuid.New(), Role: rbac.RoleInstitutionAdmin}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), admin))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(rbac.RoleQCTOAdmin, rbac.RoleQCTOSuperAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), authz.Principal{ID: uuid.New(), Role: rbac.RoleQCTOAdmin}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), authz.Principal{ID: uuid.New(), Role: rbac.RoleQCTOViewer}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
