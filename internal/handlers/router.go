package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/handlers/middleware"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/service/user"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type RouterConfig struct {
	// Directory multipart files are spooled to before upload to media host
	// os.TempDir() is used if empty
	UploadDir string

	// Limits login and refresh attempts. No limit if nil
	Limiter limiter
}

func NewRouter(
	cfg RouterConfig,
	authService authService,
	userService userService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService, logger)

	withLimit := func(h http.Handler) http.Handler { return h }
	if cfg.Limiter != nil {
		withLimit = middleware.RateLimit(cfg.Limiter, logger)
	}

	uploads := uploadSpool{dir: cfg.UploadDir}

	apiusers := http.NewServeMux()

	apiusers.Handle("POST /register", handleRegister(userService, uploads, logger))
	apiusers.Handle("POST /login", withLimit(handleLogin(authService, logger)))
	apiusers.Handle("POST /refresh-token", withLimit(handleTokenRefresh(authService, logger)))
	apiusers.Handle("POST /logout", withAuth(handleLogout(authService, logger)))

	apiusers.Handle("GET /current-user", withAuth(handleCurrentUser()))
	apiusers.Handle("POST /change-password", withAuth(handleChangePassword(userService, logger)))
	apiusers.Handle("PATCH /update-account", withAuth(handleUpdateAccount(userService, logger)))
	apiusers.Handle("PATCH /avatar", withAuth(handleUpdateAvatar(userService, uploads, logger)))
	apiusers.Handle("PATCH /cover-image", withAuth(handleUpdateCoverImage(userService, uploads, logger)))

	apiusers.Handle("GET /c/{username}", withAuth(handleChannelProfile(userService, logger)))
	apiusers.Handle("POST /subscriptions/{channelID}", withAuth(handleSubscribe(userService, logger)))
	apiusers.Handle("DELETE /subscriptions/{channelID}", withAuth(handleUnsubscribe(userService, logger)))
	apiusers.Handle("GET /history", withAuth(handleWatchHistory(userService, logger)))
	apiusers.Handle("POST /history/{videoID}", withAuth(handleAddToWatchHistory(userService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/v1/users/", http.StripPrefix("/api/v1/users", apiusers))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.Recover(logger),
	)

	return handler
}

type limiter interface {
	Allow(ctx context.Context, key string) bool
}

type authService interface {
	// Login user with username or email and password
	// Has to return apperrors.ErrInvalidCredentials if user not found or password is wrong
	Login(ctx context.Context, username string, email string, password string) (models.User, models.TokenPair, error)

	// Revoke the user refresh token
	Logout(ctx context.Context, userID uuid.UUID) error

	// Refresh tokens using refresh token
	// Any failure has to be an Unauthorized apperror
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Set auth tokens (access, refresh) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)

	// Expire auth cookies
	ClearTokens(w http.ResponseWriter)

	// Get refresh token from request. Empty if absent
	GetRefreshString(r *http.Request) string

	// Get request and return user if it authenticated or error
	GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error)
}

type userService interface {
	Register(ctx context.Context, p user.RegisterParams) (models.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) error
	UpdateAccount(ctx context.Context, userID uuid.UUID, fullName string, email string) (models.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, localPath string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, localPath string) (models.User, error)

	GetChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.Channel, error)
	Subscribe(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) (models.Subscription, error)
	Unsubscribe(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) error

	AddToWatchHistory(ctx context.Context, userID uuid.UUID, videoID uuid.UUID) error
	GetWatchHistory(ctx context.Context, userID uuid.UUID) ([]models.WatchedVideo, error)
}
