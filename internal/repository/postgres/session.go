package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
)

type SessionRepo struct {
	DB DBTX
}

const setSession = `-- name: Set session, overwrite the previous one
INSERT INTO refresh_sessions (user_id, token_hash, created_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET token_hash = EXCLUDED.token_hash, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
`

func (r *SessionRepo) Set(ctx context.Context, s models.Session) error {
	_, err := r.DB.Exec(ctx, setSession, s.UserID, s.TokenHash, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const getSession = `-- name: Get session
SELECT user_id, token_hash, created_at, expires_at
FROM refresh_sessions
WHERE user_id = $1
`

func (r *SessionRepo) Get(ctx context.Context, userID uuid.UUID) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, getSession, userID)
	session, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Session, error) {
		var s models.Session
		err := row.Scan(&s.UserID, &s.TokenHash, &s.CreatedAt, &s.ExpiresAt)
		return s, err
	})

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return session, fmt.Errorf("db error: %w", err)
	}
}

const rotateSession = `-- name: Rotate session if token hash matches
UPDATE refresh_sessions
SET token_hash = $3, created_at = $4, expires_at = $5
WHERE user_id = $1 AND token_hash = $2
`

// Rotate token hash if the stored one equals oldHash
// Concurrent rotations with the same oldHash: row lock makes the second one re-check WHERE and miss
func (r *SessionRepo) Rotate(ctx context.Context, userID uuid.UUID, oldHash string, next models.Session) error {
	tag, err := r.DB.Exec(ctx, rotateSession, userID, oldHash, next.TokenHash, next.CreatedAt, next.ExpiresAt)

	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenMismatch)
	default:
		return nil
	}
}

const deleteSession = `-- name: Delete session
DELETE FROM refresh_sessions
WHERE user_id = $1
`

func (r *SessionRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteSession, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
