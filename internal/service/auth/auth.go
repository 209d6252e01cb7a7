package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
	"github.com/nkiryanov/videotube/internal/service/auth/tokenmanager"
)

const (
	defaultAccessCookieName  = "accessToken"
	defaultRefreshCookieName = "refreshToken"
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshBodyField  = "refreshToken"

	// Refresh body is tiny; do not read more than that
	maxRefreshBodySize = 16 << 10
)

type Config struct {
	// Hasher to compare user passwords on login
	// BcryptHasher is used if not set
	Hasher models.Hasher

	// No-op logger is used if not set
	Logger logger.Logger

	// Cookie and header names. Defaults are used if not set
	AccessCookieName  string
	RefreshCookieName string
	AccessHeaderName  string
	AccessAuthScheme  string
}

type tokenManager interface {
	IssuePair(ctx context.Context, userID uuid.UUID) (models.TokenPair, error)
	RotatePair(ctx context.Context, userID uuid.UUID, presented string) (models.TokenPair, error)
	ParseAccess(ctx context.Context, access string) (tokenmanager.AccessTokenClaims, error)
	ParseRefresh(ctx context.Context, refresh string) (uuid.UUID, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Auth service
type AuthService struct {
	accessCookieName  string
	refreshCookieName string
	accessHeaderName  string
	accessAuthScheme  string

	hasher models.Hasher
	logger logger.Logger

	// Compared against when user is not found
	dummyHash func() string

	tokens  tokenManager
	storage repository.Storage
}

func NewService(cfg Config, tokens *tokenmanager.TokenManager, storage repository.Storage) (*AuthService, error) {
	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)

	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	s := &AuthService{
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		hasher:            cfg.Hasher,
		logger:            cfg.Logger,
		tokens:            tokens,
		storage:           storage,
	}
	s.dummyHash = sync.OnceValue(func() string {
		hash, _ := cfg.Hasher.Hash("not-a-password")
		return hash
	})

	return s, nil
}

// Login user by username or email and password
// Unknown user and wrong password are the same apperrors.ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, username string, email string, password string) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" && email == "" {
		return models.User{}, pair, apperrors.New(apperrors.KindInvalidInput, "Username or email is required")
	}
	if password == "" {
		return models.User{}, pair, apperrors.New(apperrors.KindInvalidInput, "Password is required")
	}

	user, err := s.storage.User().GetUserByLogin(ctx, username, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		// Same hashing effort as for existing user
		_ = s.hasher.Compare(s.dummyHash(), password)
		return user, pair, apperrors.ErrInvalidCredentials
	case err != nil:
		return user, pair, err
	}

	if !user.CheckPassword(password, s.hasher) {
		return models.User{}, pair, apperrors.ErrInvalidCredentials
	}

	pair, err = s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		return models.User{}, pair, err
	}

	return user, pair, nil
}

// Remove the session so no refresh token issued before is accepted anymore
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	err := s.storage.Session().Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("error while removing session. Err: %w", err)
	}
	return nil
}

// Exchange the active refresh token for a new pair
// Every failure is reported as Unauthorized; the cause is logged only
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	if refresh == "" {
		return models.TokenPair{}, apperrors.ErrRefreshTokenRequired
	}

	userID, err := s.tokens.ParseRefresh(ctx, refresh)
	if err != nil {
		s.logger.Debug("Refresh token rejected", "error", err)
		return models.TokenPair{}, apperrors.ErrRefreshTokenInvalid
	}

	pair, err := s.tokens.RotatePair(ctx, userID, refresh)
	switch {
	case err == nil:
		return pair, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		s.logger.Warn("Refresh token of not existed user", "user_id", userID)
		return pair, apperrors.ErrRefreshTokenInvalid
	case errors.Is(err, apperrors.ErrRefreshTokenMismatch):
		s.logger.Warn("Refresh token is not the active one", "user_id", userID)
		return pair, apperrors.ErrRefreshTokenExpired
	default:
		s.logger.Error("Refresh failed", "user_id", userID, "error", err)
		return pair, apperrors.ErrRefreshTokenInvalid
	}
}

// Resolve user from access token
// Cookie has precedence over header. Any failure is apperrors.ErrUnauthorized
func (s *AuthService) GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error) {
	access := s.accessFromRequest(r)
	if access == "" {
		return models.User{}, apperrors.ErrUnauthorized
	}

	claims, err := s.tokens.ParseAccess(ctx, access)
	if err != nil {
		s.logger.Debug("Access token rejected", "error", err)
		return models.User{}, apperrors.ErrUnauthorized
	}

	user, err := s.storage.User().GetUserByID(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrUserNotFound) {
			s.logger.Error("Could not load user by access token", "user_id", claims.UserID, "error", err)
		}
		return models.User{}, apperrors.ErrUnauthorized
	}

	return user, nil
}

func (s *AuthService) accessFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(s.accessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get(s.accessHeaderName)
	prefix := s.accessAuthScheme + " "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}

	return ""
}

// Get refresh token from cookie or from JSON body field
// Empty string returned if there is no token
func (s *AuthService) GetRefreshString(r *http.Request) string {
	if cookie, err := r.Cookie(s.refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if r.Body == nil {
		return ""
	}

	var body map[string]any
	err := json.NewDecoder(io.LimitReader(r.Body, maxRefreshBodySize)).Decode(&body)
	if err != nil {
		return ""
	}

	refresh, _ := body[defaultRefreshBodyField].(string)
	return refresh
}

// Set auth tokens (access, refresh) to response cookies
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, s.cookie(s.accessCookieName, pair.Access.Value, s.tokens.AccessTTL()))
	http.SetCookie(w, s.cookie(s.refreshCookieName, pair.Refresh.Value, s.tokens.RefreshTTL()))
}

// Expire auth cookies
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(s.accessCookieName, "", -1))
	http.SetCookie(w, s.cookie(s.refreshCookieName, "", -1))
}

func (s *AuthService) cookie(name string, value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
