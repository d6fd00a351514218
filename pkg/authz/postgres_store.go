package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accredia/compliance-core/pkg/rbac"
)

// PostgresResourceStore implements ResourceStore against the platform
// schema using pgx.
type PostgresResourceStore struct {
	pool *pgxpool.Pool
}

// NewPostgresResourceStore creates a new PostgreSQL-backed resource store.
func NewPostgresResourceStore(pool *pgxpool.Pool) *PostgresResourceStore {
	return &PostgresResourceStore{
		pool: pool,
	}
}

// ResolveOwner resolves a resource to its owning institution. Multi-hop
// ownership (facilitator -> readiness -> institution) is resolved inside a
// single query per variant so resolution is deterministic and total: a
// broken hop surfaces as ErrNotFound, never as a default owner.
func (s *PostgresResourceStore) ResolveOwner(ctx context.Context, ref ResourceRef) (OwnerInfo, error) {
	var query string
	switch ref.Type {
	case ResourceInstitution:
		query = `SELECT id, deleted_at FROM institutions WHERE id = $1`
	case ResourceReadiness:
		query = `SELECT institution_id, deleted_at FROM readiness_records WHERE id = $1`
	case ResourceLearner:
		query = `SELECT institution_id, deleted_at FROM learners WHERE id = $1`
	case ResourceEnrolment:
		query = `
			SELECT l.institution_id, e.deleted_at
			FROM enrolments e
			JOIN learners l ON l.id = e.learner_id
			WHERE e.id = $1`
	case ResourceDocument:
		query = `SELECT institution_id, deleted_at FROM documents WHERE id = $1`
	case ResourceFacilitator:
		query = `
			SELECT r.institution_id, f.deleted_at
			FROM facilitators f
			JOIN readiness_records r ON r.id = f.readiness_id
			WHERE f.id = $1`
	case ResourceRequest:
		query = `SELECT institution_id, deleted_at FROM requests WHERE id = $1`
	case ResourceSubmission:
		query = `SELECT institution_id, deleted_at FROM submissions WHERE id = $1`
	default:
		return OwnerInfo{}, fmt.Errorf("resource type %q has no owner resolution", ref.Type)
	}

	var institutionID uuid.UUID
	var deletedAt sql.NullTime
	err := s.pool.QueryRow(ctx, query, ref.ID).Scan(&institutionID, &deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OwnerInfo{}, ErrNotFound
	}
	if err != nil {
		return OwnerInfo{}, fmt.Errorf("resolving owner of %s: %w", ref, err)
	}
	return OwnerInfo{
		InstitutionID: institutionID,
		Deletion:      DeletionFromNullTime(deletedAt),
	}, nil
}

// HasSubmissionLink reports whether a submission matching the query links
// the resource.
func (s *PostgresResourceStore) HasSubmissionLink(ctx context.Context, q LinkQuery) (bool, error) {
	return s.hasLink(ctx, q, "submission_resources", "submissions", "submission_id")
}

// HasRequestLink reports whether a request matching the query links the
// resource.
func (s *PostgresResourceStore) HasRequestLink(ctx context.Context, q LinkQuery) (bool, error) {
	return s.hasLink(ctx, q, "request_resources", "requests", "request_id")
}

func (s *PostgresResourceStore) hasLink(ctx context.Context, q LinkQuery, linkTable, parentTable, parentFK string) (bool, error) {
	statuses := make([]string, len(q.Statuses))
	for i, st := range q.Statuses {
		statuses[i] = string(st)
	}

	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1
			FROM %s lr
			JOIN %s p ON p.id = lr.%s
			WHERE lr.resource_type = $1
			  AND lr.resource_id_value = $2
			  AND p.status = ANY($3)
			  AND ($4 OR p.deleted_at IS NULL)
		)`, linkTable, parentTable, parentFK)

	var exists bool
	err := s.pool.QueryRow(ctx, query,
		string(q.ResourceType), q.ResourceID, statuses, q.IncludeDeleted,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("querying %s links: %w", parentTable, err)
	}
	return exists, nil
}

// GetUserScope returns the stored authorization scope of a user, including
// their assigned provinces.
func (s *PostgresResourceStore) GetUserScope(ctx context.Context, userID uuid.UUID) (UserScope, error) {
	query := `
		SELECT u.id, u.role, u.institution_id, u.deleted_at,
		       COALESCE(array_agg(up.province) FILTER (WHERE up.province IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN user_provinces up ON up.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id, u.role, u.institution_id, u.deleted_at`

	var scope UserScope
	var role string
	var institutionID uuid.NullUUID
	var deletedAt sql.NullTime
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&scope.UserID,
		&role,
		&institutionID,
		&deletedAt,
		&scope.AssignedProvinces,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserScope{}, ErrNotFound
	}
	if err != nil {
		return UserScope{}, fmt.Errorf("loading user scope: %w", err)
	}

	parsedRole, err := parseStoredRole(role)
	if err != nil {
		return UserScope{}, err
	}
	scope.Role = parsedRole
	if institutionID.Valid {
		id := institutionID.UUID
		scope.InstitutionID = &id
	}
	scope.Deletion = DeletionFromNullTime(deletedAt)
	return scope, nil
}

func parseStoredRole(raw string) (rbac.Role, error) {
	role, err := rbac.ParseRole(raw)
	if err != nil {
		return "", fmt.Errorf("stored user has invalid role: %w", err)
	}
	return role, nil
}
