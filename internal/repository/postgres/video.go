package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
)

type VideoRepo struct {
	DB DBTX
}

const createVideo = `-- name: CreateVideo
INSERT INTO videos (id, owner_id, title, description, video_url, thumbnail_url, duration, views, is_published)
VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8, $9)
RETURNING id, owner_id, title, description, video_url, thumbnail_url, duration::text, views, is_published, created_at
`

func (r *VideoRepo) CreateVideo(ctx context.Context, v models.Video) (models.Video, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createVideo,
		v.ID,
		v.OwnerID,
		v.Title,
		v.Description,
		v.VideoURL,
		v.ThumbnailURL,
		v.Duration.String(),
		v.Views,
		v.IsPublished,
	)
	video, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Video, error) {
		var v models.Video
		var duration string
		err := row.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoURL, &v.ThumbnailURL, &duration, &v.Views, &v.IsPublished, &v.CreatedAt)
		if err != nil {
			return v, err
		}
		v.Duration, err = decimal.NewFromString(duration)
		return v, err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return video, apperrors.ErrUserNotFound
		}
		return video, fmt.Errorf("db error: %w", err)
	}

	return video, nil
}

const addToWatchHistory = `-- name: AddToWatchHistory
INSERT INTO watch_history (user_id, video_id, watched_at)
VALUES ($1, $2, clock_timestamp())
ON CONFLICT (user_id, video_id) DO UPDATE
SET watched_at = EXCLUDED.watched_at
`

func (r *VideoRepo) AddToWatchHistory(ctx context.Context, userID uuid.UUID, videoID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, addToWatchHistory, userID, videoID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return apperrors.ErrVideoNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listWatchHistory = `-- name: ListWatchHistory
SELECT
    v.id, v.owner_id, v.title, v.description, v.video_url, v.thumbnail_url, v.duration::text, v.views, v.is_published, v.created_at,
    o.id, o.username, o.full_name, o.avatar_url,
    h.watched_at
FROM watch_history h
JOIN videos v ON v.id = h.video_id
JOIN users o ON o.id = v.owner_id
WHERE h.user_id = $1
ORDER BY h.watched_at DESC
`

func (r *VideoRepo) ListWatchHistory(ctx context.Context, userID uuid.UUID) ([]models.WatchedVideo, error) {
	rows, _ := r.DB.Query(ctx, listWatchHistory, userID)
	history, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WatchedVideo, error) {
		var w models.WatchedVideo
		var duration string
		err := row.Scan(
			&w.ID, &w.OwnerID, &w.Title, &w.Description, &w.VideoURL, &w.ThumbnailURL, &duration, &w.Views, &w.IsPublished, &w.CreatedAt,
			&w.Owner.ID, &w.Owner.Username, &w.Owner.FullName, &w.Owner.Avatar.URL,
			&w.WatchedAt,
		)
		if err != nil {
			return w, err
		}
		w.Duration, err = decimal.NewFromString(duration)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return history, nil
}
