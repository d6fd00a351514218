package impersonate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL session repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

const sessionColumns = `
	id, token, impersonator_id, target_user_id, status,
	created_at, expires_at, last_activity_at, ip_address, user_agent`

func (r *PostgresRepository) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	query := `
		INSERT INTO impersonation_sessions (
			token, impersonator_id, target_user_id, status,
			created_at, expires_at, last_activity_at, ip_address, user_agent
		) VALUES (
			$1, $2, $3, 'active', NOW(), $4, $5, $6, $7
		) RETURNING` + sessionColumns

	row := r.pool.QueryRow(ctx, query,
		req.Token,
		req.ImpersonatorID,
		req.TargetUserID,
		req.ExpiresAt,
		req.LastActivityAt,
		req.IPAddress,
		req.UserAgent,
	)
	return scanSession(row)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `SELECT` + sessionColumns + ` FROM impersonation_sessions WHERE id = $1`
	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*Session, error) {
	query := `SELECT` + sessionColumns + ` FROM impersonation_sessions WHERE token = $1`
	session, err := scanSession(r.pool.QueryRow(ctx, query, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

func (r *PostgresRepository) CountActive(ctx context.Context, impersonatorID uuid.UUID, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM impersonation_sessions
		WHERE impersonator_id = $1
		  AND status = 'active'
		  AND expires_at > $2`

	var count int
	if err := r.pool.QueryRow(ctx, query, impersonatorID, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting active sessions: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) UpdateActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	// Last-write-wins; no status guard needed for activity refreshes.
	tag, err := r.pool.Exec(ctx,
		`UPDATE impersonation_sessions SET last_activity_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("updating session activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PostgresRepository) TransitionStatus(ctx context.Context, id uuid.UUID, to Status) error {
	// The status guard makes the transition a compare-and-swap: a session
	// that already left ACTIVE is never resurrected by a racing flip.
	tag, err := r.pool.Exec(ctx,
		`UPDATE impersonation_sessions SET status = $2 WHERE id = $1 AND status = 'active'`,
		id, string(to))
	if err != nil {
		return fmt.Errorf("transitioning session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing session from a lost race.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrNotActive
	}
	return nil
}

func scanSession(row pgx.Row) (*Session, error) {
	session := &Session{}
	var status string
	err := row.Scan(
		&session.ID,
		&session.Token,
		&session.ImpersonatorID,
		&session.TargetUserID,
		&status,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastActivityAt,
		&session.IPAddress,
		&session.UserAgent,
	)
	if err != nil {
		return nil, err
	}
	session.Status = Status(status)
	return session, nil
}
