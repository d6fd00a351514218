package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/accredia/compliance-core/pkg/authz"
	"github.com/accredia/compliance-core/pkg/rbac"
)

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "compliance context value " + k.name
}

var (
	// PrincipalKey holds the effective authz.Principal for the request.
	// Under an impersonation session this is the target user's principal;
	// ImpersonatorKey then holds the original actor.
	PrincipalKey = &contextKey{"Principal"}

	// ImpersonatorKey holds the original principal when the request runs
	// under an impersonation session.
	ImpersonatorKey = &contextKey{"Impersonator"}
)

// WithPrincipal returns a context carrying the effective principal.
func WithPrincipal(ctx context.Context, p authz.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFromContext extracts the effective principal.
func PrincipalFromContext(ctx context.Context) (authz.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(authz.Principal)
	return p, ok
}

// WithImpersonator returns a context carrying the original actor of an
// impersonated request.
func WithImpersonator(ctx context.Context, p authz.Principal) context.Context {
	return context.WithValue(ctx, ImpersonatorKey, p)
}

// ImpersonatorFromContext extracts the original actor, if the request runs
// under an impersonation session.
func ImpersonatorFromContext(ctx context.Context) (authz.Principal, bool) {
	p, ok := ctx.Value(ImpersonatorKey).(authz.Principal)
	return p, ok
}

// PrincipalFromClaims maps verified JWT claims from the upstream identity
// layer to a Principal. The identity layer authenticates; this module only
// trusts and translates.
func PrincipalFromClaims(claims map[string]interface{}) (authz.Principal, error) {
	rawID, _ := claims["sub"].(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("invalid subject claim: %w", err)
	}

	rawRole, _ := claims["role"].(string)
	role, err := rbac.ParseRole(rawRole)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("invalid role claim: %w", err)
	}

	principal := authz.Principal{
		ID:   id,
		Role: role,
	}

	if raw, ok := claims["institution_id"].(string); ok && raw != "" {
		institutionID, err := uuid.Parse(raw)
		if err != nil {
			return authz.Principal{}, fmt.Errorf("invalid institution_id claim: %w", err)
		}
		principal.InstitutionID = &institutionID
	}
	if raw, ok := claims["qcto_id"].(string); ok && raw != "" {
		qctoID, err := uuid.Parse(raw)
		if err != nil {
			return authz.Principal{}, fmt.Errorf("invalid qcto_id claim: %w", err)
		}
		principal.QCTOID = &qctoID
	}
	if raw, ok := claims["provinces"].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				principal.AssignedProvinces = append(principal.AssignedProvinces, s)
			}
		}
	}
	return principal, nil
}

// UserScopePrincipal builds a Principal from a stored user scope, used when
// substituting the impersonation target as the effective principal.
func UserScopePrincipal(scope authz.UserScope) authz.Principal {
	return authz.Principal{
		ID:                scope.UserID,
		Role:              scope.Role,
		InstitutionID:     scope.InstitutionID,
		AssignedProvinces: scope.AssignedProvinces,
	}
}
