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
	"github.com/nkiryanov/videotube/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, updated_at, username, email, full_name,
avatar_url, avatar_public_id, cover_image_url, cover_image_public_id, password_hash`

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, full_name, avatar_url, avatar_public_id, cover_image_url, cover_image_public_id, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	coverURL, coverID := optionalMedia(arg.CoverImage)

	rows, _ := r.DB.Query(ctx, createUser,
		uuid.New(),
		arg.Username,
		arg.Email,
		arg.FullName,
		arg.Avatar.URL,
		arg.Avatar.PublicID,
		coverURL,
		coverID,
		arg.HashedPassword,
	)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		if isUniqueViolation(err) {
			return user, apperrors.ErrUserAlreadyExists
		}
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: getUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByUsername = `-- name: getUserByUsername
SELECT ` + userColumns + ` FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	return collectUser(rows)
}

const getUserByLogin = `-- name: getUserByLogin
SELECT ` + userColumns + ` FROM users
WHERE username = $1 OR email = $2
ORDER BY username = $1 DESC
LIMIT 1
`

// Get user by username or email, username match wins
func (r *UserRepo) GetUserByLogin(ctx context.Context, username string, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByLogin, username, email)
	return collectUser(rows)
}

const userExists = `-- name: userExists
SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)
`

func (r *UserRepo) Exists(ctx context.Context, username string, email string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, userExists, username, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

const setPassword = `-- name: setPassword
UPDATE users
SET password_hash = $2, updated_at = NOW()
WHERE id = $1
`

func (r *UserRepo) SetPassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, setPassword, id, hashedPassword)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

const updateAccount = `-- name: updateAccount
UPDATE users
SET full_name = $2, email = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdateAccount(ctx context.Context, id uuid.UUID, fullName string, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateAccount, id, fullName, email)
	user, err := collectUser(rows)
	if err != nil && isUniqueViolation(err) {
		return user, apperrors.ErrUserAlreadyExists
	}
	return user, err
}

// Old values are read in the same statement, so concurrent updates can't lose the previous media
const setAvatar = `-- name: setAvatar
UPDATE users u
SET avatar_url = $2, avatar_public_id = $3, updated_at = NOW()
FROM (SELECT id, avatar_url, avatar_public_id FROM users WHERE id = $1 FOR UPDATE) old
WHERE u.id = old.id
RETURNING old.avatar_url, old.avatar_public_id
`

func (r *UserRepo) SetAvatar(ctx context.Context, id uuid.UUID, avatar models.Media) (models.Media, error) {
	var previous models.Media
	err := r.DB.QueryRow(ctx, setAvatar, id, avatar.URL, avatar.PublicID).Scan(&previous.URL, &previous.PublicID)

	switch {
	case err == nil:
		return previous, nil
	case errors.Is(err, pgx.ErrNoRows):
		return previous, apperrors.ErrUserNotFound
	default:
		return previous, fmt.Errorf("db error: %w", err)
	}
}

const setCoverImage = `-- name: setCoverImage
UPDATE users u
SET cover_image_url = $2, cover_image_public_id = $3, updated_at = NOW()
FROM (SELECT id, cover_image_url, cover_image_public_id FROM users WHERE id = $1 FOR UPDATE) old
WHERE u.id = old.id
RETURNING old.cover_image_url, old.cover_image_public_id
`

func (r *UserRepo) SetCoverImage(ctx context.Context, id uuid.UUID, cover models.Media) (models.Optional[models.Media], error) {
	var url, publicID *string
	err := r.DB.QueryRow(ctx, setCoverImage, id, cover.URL, cover.PublicID).Scan(&url, &publicID)

	switch {
	case err == nil:
		return toOptionalMedia(url, publicID), nil
	case errors.Is(err, pgx.ErrNoRows):
		return models.None[models.Media](), apperrors.ErrUserNotFound
	default:
		return models.None[models.Media](), fmt.Errorf("db error: %w", err)
	}
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	var coverURL, coverID *string

	err := row.Scan(
		&u.ID,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.Avatar.URL,
		&u.Avatar.PublicID,
		&coverURL,
		&coverID,
		&u.HashedPassword,
	)
	u.CoverImage = toOptionalMedia(coverURL, coverID)

	return u, err
}

// Cover image is stored as nullable columns: NULL url means no cover
func optionalMedia(m models.Optional[models.Media]) (url *string, publicID *string) {
	media, ok := m.Get()
	if !ok {
		return nil, nil
	}
	return &media.URL, &media.PublicID
}

func toOptionalMedia(url *string, publicID *string) models.Optional[models.Media] {
	if url == nil || *url == "" {
		return models.None[models.Media]()
	}

	media := models.Media{URL: *url}
	if publicID != nil {
		media.PublicID = *publicID
	}
	return models.Some(media)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
