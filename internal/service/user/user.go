package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
)

type mediaHost interface {
	// Upload local file. The file is removed afterwards
	Upload(ctx context.Context, localPath string) (models.Media, error)
}

type UserService struct {
	hasher  models.Hasher
	storage repository.Storage
	media   mediaHost
	logger  logger.Logger
}

func NewService(hasher models.Hasher, storage repository.Storage, media mediaHost, l logger.Logger) *UserService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
		media:   media,
		logger:  l,
	}
}

type RegisterParams struct {
	Username string
	Email    string
	FullName string
	Password string

	// Spooled uploads
	AvatarPath     string
	CoverImagePath models.Optional[string]
}

func normalizeLogin(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isBlank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

// Register new user
// Username and email are trimmed and lower-cased, full name trimmed
func (s *UserService) Register(ctx context.Context, p RegisterParams) (models.User, error) {
	var user models.User

	if isBlank(p.Username, p.Email, p.FullName, p.Password) {
		return user, apperrors.ErrInvalidInput
	}
	username := normalizeLogin(p.Username)
	email := normalizeLogin(p.Email)
	fullName := strings.TrimSpace(p.FullName)

	exists, err := s.storage.User().Exists(ctx, username, email)
	switch {
	case err != nil:
		return user, fmt.Errorf("can't check user exists. Err: %w", err)
	case exists:
		return user, apperrors.ErrUserAlreadyExists
	}

	if p.AvatarPath == "" {
		return user, apperrors.ErrAvatarRequired
	}

	err = user.SetPassword(p.Password, s.hasher)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	avatar, err := s.media.Upload(ctx, p.AvatarPath)
	if err != nil {
		return user, fmt.Errorf("%w: %w", apperrors.ErrMediaUpload, err)
	}
	uploaded := []string{avatar.PublicID}

	cover := models.None[models.Media]()
	if coverPath, ok := p.CoverImagePath.Get(); ok {
		media, err := s.media.Upload(ctx, coverPath)
		if err != nil {
			s.discard(ctx, uploaded...)
			return user, fmt.Errorf("%w: %w", apperrors.ErrMediaUpload, err)
		}
		cover = models.Some(media)
		uploaded = append(uploaded, media.PublicID)
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Username:       username,
		Email:          email,
		FullName:       fullName,
		HashedPassword: user.HashedPassword,
		Avatar:         avatar,
		CoverImage:     cover,
	})
	if err != nil {
		s.discard(ctx, uploaded...)
		return models.User{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) error {
	if oldPassword == "" || isBlank(newPassword) {
		return apperrors.ErrInvalidInput
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.CheckPassword(oldPassword, s.hasher) {
		return apperrors.ErrInvalidPassword
	}

	err = user.SetPassword(newPassword, s.hasher)
	if err != nil {
		return fmt.Errorf("can't use this as password, Err: %w", err)
	}

	return s.storage.User().SetPassword(ctx, userID, user.HashedPassword)
}

func (s *UserService) UpdateAccount(ctx context.Context, userID uuid.UUID, fullName string, email string) (models.User, error) {
	if isBlank(fullName, email) {
		return models.User{}, apperrors.ErrInvalidInput
	}

	return s.storage.User().UpdateAccount(ctx, userID, strings.TrimSpace(fullName), normalizeLogin(email))
}

// Replace avatar. The previous one goes to media trash
func (s *UserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, localPath string) (models.User, error) {
	if localPath == "" {
		return models.User{}, apperrors.ErrAvatarRequired
	}

	return s.replaceMedia(ctx, userID, localPath, func(users repository.UserRepo, media models.Media) (string, error) {
		previous, err := users.SetAvatar(ctx, userID, media)
		return previous.PublicID, err
	})
}

// Replace cover image. The previous one (if any) goes to media trash
func (s *UserService) UpdateCoverImage(ctx context.Context, userID uuid.UUID, localPath string) (models.User, error) {
	if localPath == "" {
		return models.User{}, apperrors.ErrCoverRequired
	}

	return s.replaceMedia(ctx, userID, localPath, func(users repository.UserRepo, media models.Media) (string, error) {
		previous, err := users.SetCoverImage(ctx, userID, media)
		return previous.Or(models.Media{}).PublicID, err
	})
}

// Upload new media, store it and trash the previous one in the same transaction
func (s *UserService) replaceMedia(
	ctx context.Context,
	userID uuid.UUID,
	localPath string,
	set func(users repository.UserRepo, media models.Media) (previousID string, err error),
) (models.User, error) {
	var user models.User

	media, err := s.media.Upload(ctx, localPath)
	if err != nil {
		return user, fmt.Errorf("%w: %w", apperrors.ErrMediaUpload, err)
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		previousID, err := set(tx.User(), media)
		if err != nil {
			return err
		}

		if previousID != "" {
			err = tx.MediaTrash().Put(ctx, previousID)
			if err != nil {
				return err
			}
		}

		user, err = tx.User().GetUserByID(ctx, userID)
		return err
	})
	if err != nil {
		s.discard(ctx, media.PublicID)
		return models.User{}, err
	}

	return user, nil
}

// Put uploaded but not stored media to trash
func (s *UserService) discard(ctx context.Context, publicIDs ...string) {
	for _, id := range publicIDs {
		err := s.storage.MediaTrash().Put(context.WithoutCancel(ctx), id)
		if err != nil {
			s.logger.Warn("Media left on media host", "public_id", id, "error", err)
		}
	}
}

func (s *UserService) GetChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.Channel, error) {
	username = normalizeLogin(username)
	if username == "" {
		return models.Channel{}, apperrors.ErrUsernameRequired
	}

	return s.storage.Subscription().GetChannel(ctx, username, viewerID)
}

func (s *UserService) Subscribe(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) (models.Subscription, error) {
	if subscriberID == channelID {
		return models.Subscription{}, apperrors.ErrSelfSubscription
	}

	return s.storage.Subscription().Subscribe(ctx, subscriberID, channelID)
}

func (s *UserService) Unsubscribe(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) error {
	return s.storage.Subscription().Unsubscribe(ctx, subscriberID, channelID)
}

func (s *UserService) AddToWatchHistory(ctx context.Context, userID uuid.UUID, videoID uuid.UUID) error {
	return s.storage.Video().AddToWatchHistory(ctx, userID, videoID)
}

func (s *UserService) GetWatchHistory(ctx context.Context, userID uuid.UUID) ([]models.WatchedVideo, error) {
	history, err := s.storage.Video().ListWatchHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	return history, nil
}
