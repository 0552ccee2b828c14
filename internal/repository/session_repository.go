package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"contactbook/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	db DB
}

func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Replace stores session as the only session of its user, overwriting
// whatever pair the user held before.
func (r *SessionRepository) Replace(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO sessions (
			id, user_id, access_token_hash, refresh_token_hash,
			access_token_valid_until, refresh_token_valid_until, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			id = EXCLUDED.id,
			access_token_hash = EXCLUDED.access_token_hash,
			refresh_token_hash = EXCLUDED.refresh_token_hash,
			access_token_valid_until = EXCLUDED.access_token_valid_until,
			refresh_token_valid_until = EXCLUDED.refresh_token_valid_until,
			created_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.AccessTokenHash,
		session.RefreshTokenHash,
		session.AccessTokenValidUntil,
		session.RefreshTokenValidUntil,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Rotate swaps in a new token pair for the session currently holding
// oldRefreshHash, provided it has not expired at now. A consumed or expired
// refresh token matches nothing and yields ErrSessionNotFound.
func (r *SessionRepository) Rotate(ctx context.Context, oldRefreshHash []byte, now time.Time, next models.Session) error {
	const query = `
		UPDATE sessions SET
			access_token_hash = $4,
			refresh_token_hash = $5,
			access_token_valid_until = $6,
			refresh_token_valid_until = $7
		WHERE refresh_token_hash = $1
		  AND user_id = $2
		  AND refresh_token_valid_until > $3
	`

	cmd, err := r.db.Exec(ctx, query,
		oldRefreshHash,
		next.UserID,
		now,
		next.AccessTokenHash,
		next.RefreshTokenHash,
		next.AccessTokenValidUntil,
		next.RefreshTokenValidUntil,
	)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) FindByAccessHash(ctx context.Context, accessHash []byte) (models.Session, error) {
	const query = `
		SELECT id, user_id, access_token_hash, refresh_token_hash,
		       access_token_valid_until, refresh_token_valid_until, created_at
		FROM sessions
		WHERE access_token_hash = $1
	`

	var session models.Session
	err := r.db.QueryRow(ctx, query, accessHash).Scan(
		&session.ID,
		&session.UserID,
		&session.AccessTokenHash,
		&session.RefreshTokenHash,
		&session.AccessTokenValidUntil,
		&session.RefreshTokenValidUntil,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) DeleteByRefreshHash(ctx context.Context, refreshHash []byte) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE refresh_token_hash = $1`, refreshHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes sessions whose refresh token lapsed before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE refresh_token_valid_until <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return cmd.RowsAffected(), nil
}
