package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/models"
)

type CreateUserParams struct {
	Username       string
	Email          string
	FullName       string
	HashedPassword string
	Avatar         models.Media
	CoverImage     models.Optional[models.Media]
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username or email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id, username or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByLogin(ctx context.Context, username string, email string) (models.User, error)

	// Return true if username or email is taken already
	Exists(ctx context.Context, username string, email string) (bool, error)

	// Partial updates: only the named fields are touched
	// If user not found must return apperrors.ErrUserNotFound
	SetPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
	UpdateAccount(ctx context.Context, userID uuid.UUID, fullName string, email string) (models.User, error)

	// Replace media and return the previous one (if any)
	SetAvatar(ctx context.Context, userID uuid.UUID, avatar models.Media) (previous models.Media, err error)
	SetCoverImage(ctx context.Context, userID uuid.UUID, cover models.Media) (previous models.Optional[models.Media], err error)
}

// Session state: one refresh token per account
type SessionRepo interface {
	// Create or overwrite the account session
	Set(ctx context.Context, session models.Session) error

	// If session not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, userID uuid.UUID) (models.Session, error)

	// Compare-and-set the token hash in a single statement
	// If stored hash differs from oldHash (or no session) must return apperrors.ErrRefreshTokenMismatch
	Rotate(ctx context.Context, userID uuid.UUID, oldHash string, next models.Session) error

	// Remove the session. Must not fail if there is nothing to remove
	Delete(ctx context.Context, userID uuid.UUID) error
}

type SubscriptionRepo interface {
	// Subscribe is idempotent
	Subscribe(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) (models.Subscription, error)
	Unsubscribe(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) error

	// Channel profile with subscription counters as seen by viewer
	// If channel not found must return apperrors.ErrChannelNotFound
	GetChannel(ctx context.Context, username string, viewerID uuid.UUID) (models.Channel, error)
}

type VideoRepo interface {
	CreateVideo(ctx context.Context, video models.Video) (models.Video, error)

	// Record the video as watched now. Watching again moves the video to the top
	// If video not found must return apperrors.ErrVideoNotFound
	AddToWatchHistory(ctx context.Context, userID uuid.UUID, videoID uuid.UUID) error

	// Most recent first
	ListWatchHistory(ctx context.Context, userID uuid.UUID) ([]models.WatchedVideo, error)
}

// Media waiting to be removed from the media host
type MediaTrashRepo interface {
	Put(ctx context.Context, publicID string) error
	// Entries which failed maxAttempts times already are skipped
	List(ctx context.Context, limit int, maxAttempts int) ([]models.TrashedMedia, error)
	Remove(ctx context.Context, publicID string) error
	MarkFailed(ctx context.Context, publicID string, reason string) error
}

type Storage interface {
	User() UserRepo
	Session() SessionRepo
	Subscription() SubscriptionRepo
	Video() VideoRepo
	MediaTrash() MediaTrashRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
