package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
)

type SubscriptionRepo struct {
	DB DBTX
}

// No-op update on conflict to get the existing row back
const subscribe = `-- name: Subscribe
INSERT INTO subscriptions (id, subscriber_id, channel_id)
VALUES ($1, $2, $3)
ON CONFLICT (subscriber_id, channel_id) DO UPDATE
SET subscriber_id = EXCLUDED.subscriber_id
RETURNING id, subscriber_id, channel_id, created_at
`

func (r *SubscriptionRepo) Subscribe(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) (models.Subscription, error) {
	rows, _ := r.DB.Query(ctx, subscribe, uuid.New(), subscriberID, channelID)
	sub, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Subscription, error) {
		var s models.Subscription
		err := row.Scan(&s.ID, &s.SubscriberID, &s.ChannelID, &s.CreatedAt)
		return s, err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return sub, apperrors.ErrChannelNotFound
		}
		return sub, fmt.Errorf("db error: %w", err)
	}

	return sub, nil
}

const unsubscribe = `-- name: Unsubscribe
DELETE FROM subscriptions
WHERE subscriber_id = $1 AND channel_id = $2
`

func (r *SubscriptionRepo) Unsubscribe(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, unsubscribe, subscriberID, channelID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const getChannel = `-- name: GetChannel
SELECT
    u.id,
    u.username,
    u.full_name,
    u.email,
    u.avatar_url,
    u.cover_image_url,
    (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id) AS subscribers_count,
    (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS subscribed_to_count,
    EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2) AS is_subscribed
FROM users u
WHERE u.username = $1
`

func (r *SubscriptionRepo) GetChannel(ctx context.Context, username string, viewerID uuid.UUID) (models.Channel, error) {
	rows, _ := r.DB.Query(ctx, getChannel, username, viewerID)
	channel, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Channel, error) {
		var c models.Channel
		var coverURL *string
		err := row.Scan(
			&c.ID,
			&c.Username,
			&c.FullName,
			&c.Email,
			&c.Avatar.URL,
			&coverURL,
			&c.SubscribersCount,
			&c.ChannelsSubscribedToCount,
			&c.IsSubscribed,
		)
		c.CoverImage = toOptionalMedia(coverURL, nil)
		return c, err
	})

	switch {
	case err == nil:
		return channel, nil
	case errors.Is(err, pgx.ErrNoRows):
		return channel, apperrors.ErrChannelNotFound
	default:
		return channel, fmt.Errorf("db error: %w", err)
	}
}
