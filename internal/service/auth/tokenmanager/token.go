package tokenmanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 10 * 24 * time.Hour

	accessTokenType  = "access"
	refreshTokenType = "refresh"
)

var errWrongTokenType = errors.New("wrong token type")

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Type     string    `json:"typ"`
	UserID   uuid.UUID `json:"uid"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
}

type RefreshTokenClaims struct {
	jwt.RegisteredClaims
	Type   string    `json:"typ"`
	UserID uuid.UUID `json:"uid"`
}

// Token manager with sensible default
type Config struct {
	// Secret keys to sign access and refresh tokens
	// Both required to be set and expected to differ
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	accessKey  []byte
	refreshKey []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Accounts and session state
	storage repository.Storage
}

func New(cfg Config, storage repository.Storage) (*TokenManager, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("access token secret must not be empty")
	}
	if cfg.RefreshSecret == "" {
		return nil, errors.New("refresh token secret must not be empty")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing method %q, HMAC expected", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		storage:    storage,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// Sign access token with user identity claims
func (m *TokenManager) IssueAccess(user models.User, now time.Time) (models.IssuedToken, error) {
	expiresAt := now.Add(m.accessTTL)

	token := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Type:     accessTokenType,
			UserID:   user.ID,
			Username: user.Username,
			Email:    user.Email,
			FullName: user.FullName,
		},
	)
	access, err := token.SignedString(m.accessKey)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: access, ExpiresAt: expiresAt}, nil
}

// Sign refresh token. It carries user id only
// jti makes every token unique even if two of them issued within the same second
func (m *TokenManager) IssueRefresh(userID uuid.UUID, now time.Time) (models.IssuedToken, error) {
	expiresAt := now.Add(m.refreshTTL)

	token := jwt.NewWithClaims(
		m.alg,
		RefreshTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Type:   refreshTokenType,
			UserID: userID,
		},
	)
	refresh, err := token.SignedString(m.refreshKey)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.IssuedToken{Value: refresh, ExpiresAt: expiresAt}, nil
}

// Load user, issue token pair and save refresh token to the session state
// The previous session (if any) is overwritten
func (m *TokenManager) IssuePair(ctx context.Context, userID uuid.UUID) (models.TokenPair, error) {
	return m.issuePair(ctx, userID, func(next models.Session) error {
		return m.storage.Session().Set(ctx, next)
	})
}

// Same as IssuePair but the session is replaced only if it still holds the presented token
// Otherwise apperrors.ErrRefreshTokenMismatch returned
func (m *TokenManager) RotatePair(ctx context.Context, userID uuid.UUID, presented string) (models.TokenPair, error) {
	return m.issuePair(ctx, userID, func(next models.Session) error {
		return m.storage.Session().Rotate(ctx, userID, HashToken(presented), next)
	})
}

func (m *TokenManager) issuePair(ctx context.Context, userID uuid.UUID, save func(models.Session) error) (models.TokenPair, error) {
	var pair models.TokenPair

	user, err := m.storage.User().GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return pair, err
	case err != nil:
		return pair, fmt.Errorf("%w: %w", apperrors.ErrTokenIssuance, err)
	}

	now := time.Now().Truncate(time.Second)

	access, err := m.IssueAccess(user, now)
	if err != nil {
		return pair, fmt.Errorf("%w: %w", apperrors.ErrTokenIssuance, err)
	}
	refresh, err := m.IssueRefresh(user.ID, now)
	if err != nil {
		return pair, fmt.Errorf("%w: %w", apperrors.ErrTokenIssuance, err)
	}

	err = save(models.Session{
		UserID:    user.ID,
		TokenHash: HashToken(refresh.Value),
		CreatedAt: now,
		ExpiresAt: refresh.ExpiresAt,
	})
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenMismatch):
		return pair, err
	case err != nil:
		return pair, fmt.Errorf("%w: %w", apperrors.ErrTokenIssuance, err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse and validate access token
func (m *TokenManager) ParseAccess(ctx context.Context, access string) (AccessTokenClaims, error) {
	claims := AccessTokenClaims{}

	err := m.parse(access, &claims, m.accessKey)
	if err != nil {
		return claims, err
	}
	if claims.Type != accessTokenType {
		return claims, fmt.Errorf("error while validating access token. Err: %w", errWrongTokenType)
	}

	return claims, nil
}

// Parse and validate refresh token signature and expiry
// Whether it is still the active one is decided by session state
func (m *TokenManager) ParseRefresh(ctx context.Context, refresh string) (uuid.UUID, error) {
	claims := RefreshTokenClaims{}

	err := m.parse(refresh, &claims, m.refreshKey)
	if err != nil {
		return uuid.Nil, err
	}
	if claims.Type != refreshTokenType {
		return uuid.Nil, fmt.Errorf("error while validating refresh token. Err: %w", errWrongTokenType)
	}

	return claims.UserID, nil
}

func (m *TokenManager) parse(value string, claims jwt.Claims, key []byte) error {
	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("error while parsing or validating token. Err: %w", err)
	}

	return nil
}

// Session state keeps hashes, not tokens
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
