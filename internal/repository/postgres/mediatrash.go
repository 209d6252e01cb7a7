package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/videotube/internal/models"
)

type MediaTrashRepo struct {
	DB DBTX
}

const putTrash = `-- name: Put media to trash
INSERT INTO media_trash (public_id)
VALUES ($1)
ON CONFLICT (public_id) DO NOTHING
`

func (r *MediaTrashRepo) Put(ctx context.Context, publicID string) error {
	_, err := r.DB.Exec(ctx, putTrash, publicID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listTrash = `-- name: List media to remove, oldest first
SELECT public_id, created_at, attempts
FROM media_trash
WHERE attempts < $2
ORDER BY created_at, public_id
LIMIT $1
`

func (r *MediaTrashRepo) List(ctx context.Context, limit int, maxAttempts int) ([]models.TrashedMedia, error) {
	rows, _ := r.DB.Query(ctx, listTrash, limit, maxAttempts)
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TrashedMedia, error) {
		var m models.TrashedMedia
		err := row.Scan(&m.PublicID, &m.CreatedAt, &m.Attempts)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

const removeTrash = `-- name: Remove media from trash
DELETE FROM media_trash
WHERE public_id = $1
`

func (r *MediaTrashRepo) Remove(ctx context.Context, publicID string) error {
	_, err := r.DB.Exec(ctx, removeTrash, publicID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const markTrashFailed = `-- name: Mark media removal failed
UPDATE media_trash
SET attempts = attempts + 1, last_error = $2
WHERE public_id = $1
`

func (r *MediaTrashRepo) MarkFailed(ctx context.Context, publicID string, reason string) error {
	_, err := r.DB.Exec(ctx, markTrashFailed, publicID, reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
