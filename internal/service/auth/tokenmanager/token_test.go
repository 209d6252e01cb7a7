package tokenmanager

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
	"github.com/nkiryanov/videotube/internal/repository/postgres"
	"github.com/nkiryanov/videotube/internal/testutil"
)

const (
	testAccessSecret  = "test-access-secret"
	testRefreshSecret = "test-refresh-secret"
)

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(dbpool *pgxpool.Pool, t *testing.T, accessTTL time.Duration, refreshTTL time.Duration, fn func(m *TokenManager, storage repository.Storage, user models.User)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			cfg := Config{
				AccessSecret:  testAccessSecret,
				RefreshSecret: testRefreshSecret,
				AccessTTL:     accessTTL,
				RefreshTTL:    refreshTTL,
			}
			storage := postgres.NewStorage(tx)
			user := testutil.CreateUser(t, storage.User(), "testuser")

			tokenManager, err := New(cfg, storage)
			require.NoError(t, err, "token manager should be created without errors")

			fn(tokenManager, storage, user)
		})
	}

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{AccessSecret: "access", RefreshSecret: "refresh"}, nil)
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, []byte("access"), m.accessKey, "access key should be set")
		require.Equal(t, []byte("refresh"), m.refreshKey, "refresh key should be set")
		require.Equal(t, defaultAccessTokenTTL, m.accessTTL, "default access token TTL should be set")
		require.Equal(t, defaultRefreshTokenTTL, m.refreshTTL, "default refresh token TTL")
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
	})

	t.Run("new fails without secrets", func(t *testing.T) {
		tests := []struct {
			name string
			cfg  Config
		}{
			{"no access secret", Config{RefreshSecret: "refresh"}},
			{"no refresh secret", Config{AccessSecret: "access"}},
			{"same secrets", Config{AccessSecret: "secret", RefreshSecret: "secret"}},
			{"not a mac alg", Config{AccessSecret: "access", RefreshSecret: "refresh", Alg: "none"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := New(tt.cfg, nil)
				require.Error(t, err)
			})
		}
	})

	t.Run("IssuePair", func(t *testing.T) {
		t.Run("return token pair", func(t *testing.T) {
			withTx(pg.Pool, t, 15*time.Minute, 24*time.Hour,
				func(tokenManager *TokenManager, _ repository.Storage, user models.User) {
					pair, err := tokenManager.IssuePair(t.Context(), user.ID)

					require.NoError(t, err)

					assert.NotEmpty(t, pair.Access.Value, "access token should not be empty")
					assert.WithinDuration(t, time.Now().Add(15*time.Minute), pair.Access.ExpiresAt, time.Second)
					assert.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
					assert.WithinDuration(t, time.Now().Add(24*time.Hour), pair.Refresh.ExpiresAt, time.Second)
				},
			)
		})

		t.Run("session holds issued refresh token", func(t *testing.T) {
			withTx(pg.Pool, t, 15*time.Minute, 24*time.Hour,
				func(tokenManager *TokenManager, storage repository.Storage, user models.User) {
					pair, err := tokenManager.IssuePair(t.Context(), user.ID)
					require.NoError(t, err)

					session, err := storage.Session().Get(t.Context(), user.ID)
					require.NoError(t, err)

					assert.Equal(t, HashToken(pair.Refresh.Value), session.TokenHash)
					assert.NotEqual(t, pair.Refresh.Value, session.TokenHash, "raw token must not be stored")
					assert.WithinDuration(t, pair.Refresh.ExpiresAt, session.ExpiresAt, 0)
				},
			)
		})

		t.Run("access claims", func(t *testing.T) {
			withTx(pg.Pool, t, 15*time.Minute, 24*time.Hour,
				func(tokenManager *TokenManager, _ repository.Storage, user models.User) {
					pair, err := tokenManager.IssuePair(t.Context(), user.ID)
					require.NoError(t, err)

					token, err := jwt.ParseWithClaims(pair.Access.Value, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
						return []byte(testAccessSecret), nil
					})
					require.NoError(t, err)
					require.True(t, token.Valid, "access token should be valid")

					claims, ok := token.Claims.(*AccessTokenClaims)
					require.True(t, ok, "claims should be of type AccessTokenClaims")
					assert.Equal(t, accessTokenType, claims.Type, "access token has to be typed")
					assert.Equal(t, user.ID, claims.UserID, "user ID in token should match")
					assert.Equal(t, user.Username, claims.Username)
					assert.Equal(t, user.Email, claims.Email)
					assert.Equal(t, user.FullName, claims.FullName)
					assert.NotEmpty(t, claims.ID, "token has to has jti")
					assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second, "issued at should be close to now")
					assert.WithinDuration(t, pair.Access.ExpiresAt, claims.ExpiresAt.Time, 0, "access expires at should match token pair")
				},
			)
		})

		t.Run("refresh claims signed with refresh secret", func(t *testing.T) {
			withTx(pg.Pool, t, 15*time.Minute, 24*time.Hour,
				func(tokenManager *TokenManager, _ repository.Storage, user models.User) {
					pair, err := tokenManager.IssuePair(t.Context(), user.ID)
					require.NoError(t, err)

					claims := &RefreshTokenClaims{}
					_, err = jwt.ParseWithClaims(pair.Refresh.Value, claims, func(token *jwt.Token) (any, error) {
						return []byte(testRefreshSecret), nil
					})
					require.NoError(t, err)
					assert.Equal(t, refreshTokenType, claims.Type, "refresh token has to be typed")
					assert.Equal(t, user.ID, claims.UserID)
					assert.WithinDuration(t, pair.Refresh.ExpiresAt, claims.ExpiresAt.Time, 0)

					_, err = jwt.ParseWithClaims(pair.Refresh.Value, &RefreshTokenClaims{}, func(token *jwt.Token) (any, error) {
						return []byte(testAccessSecret), nil
					})
					assert.Error(t, err, "refresh token must not verify with access secret")
				},
			)
		})

		t.Run("generate different tokens", func(t *testing.T) {
			withTx(pg.Pool, t, 15*time.Minute, 24*time.Hour,
				func(tokenManager *TokenManager, _ repository.Storage, user models.User) {
					pair1, err := tokenManager.IssuePair(t.Context(), user.ID)
					require.NoError(t, err)

					pair2, err := tokenManager.IssuePair(t.Context(), user.ID)
					require.NoError(t, err)

					assert.NotEqual(t, pair1.Refresh.Value, pair2.Refresh.Value, "refresh tokens should be different")
					assert.NotEqual(t, pair1.Access.Value, pair2.Access.Value, "access tokens should be different")
				},
			)
		})

		t.Run("unknown user", func(t *testing.T) {
			withTx(pg.Pool, t, 15*time.Minute, 24*time.Hour,
				func(tokenManager *TokenManager, _ repository.Storage, _ models.User) {
					_, err := tokenManager.IssuePair(t.Context(), uuid.New())

					require.ErrorIs(t, err, apperrors.ErrUserNotFound)
				},
			)
		})
	})

	t.Run("RotatePair", func(t *testing.T) {
		t.Run("rotate once", func(t *testing.T) {
			withTx(pg.Pool, t, 15*time.Minute, 24*time.Hour,
				func(tokenManager *TokenManager, storage repository.Storage, user models.User) {
					pair, err := tokenManager.IssuePair(t.Context(), user.ID)
					require.NoError(t, err)

					next, err := tokenManager.RotatePair(t.Context(), user.ID, pair.Refresh.Value)
					require.NoError(t, err, "rotating active refresh token should not return an error")

					assert.NotEqual(t, pair.Refresh.Value, next.Refresh.Value)
					session, err := storage.Session().Get(t.Context(), user.ID)
					require.NoError(t, err)
					assert.Equal(t, HashToken(next.Refresh.Value), session.TokenHash)
				},
			)
		})

		t.Run("rotate same token twice", func(t *testing.T) {
			withTx(pg.Pool, t, 15*time.Minute, 24*time.Hour,
				func(tokenManager *TokenManager, _ repository.Storage, user models.User) {
					pair, err := tokenManager.IssuePair(t.Context(), user.ID)
					require.NoError(t, err)

					_, err = tokenManager.RotatePair(t.Context(), user.ID, pair.Refresh.Value)
					require.NoError(t, err)

					_, err = tokenManager.RotatePair(t.Context(), user.ID, pair.Refresh.Value)
					require.ErrorIs(t, err, apperrors.ErrRefreshTokenMismatch, "used token has to be rejected")
				},
			)
		})

		t.Run("rotate without session", func(t *testing.T) {
			withTx(pg.Pool, t, 15*time.Minute, 24*time.Hour,
				func(tokenManager *TokenManager, _ repository.Storage, user models.User) {
					refresh, err := tokenManager.IssueRefresh(user.ID, time.Now())
					require.NoError(t, err)

					_, err = tokenManager.RotatePair(t.Context(), user.ID, refresh.Value)
					require.ErrorIs(t, err, apperrors.ErrRefreshTokenMismatch)
				},
			)
		})
	})

	t.Run("ParseAccess", func(t *testing.T) {
		t.Run("valid token", func(t *testing.T) {
			withTx(pg.Pool, t, 15*time.Minute, 24*time.Hour,
				func(tokenManager *TokenManager, _ repository.Storage, user models.User) {
					pair, err := tokenManager.IssuePair(t.Context(), user.ID)
					require.NoError(t, err, "token pair should be generated without errors")

					claims, err := tokenManager.ParseAccess(t.Context(), pair.Access.Value)
					require.NoError(t, err, "valid token should be parsed without errors")
					require.Equal(t, user.ID, claims.UserID)
					require.Equal(t, user.Username, claims.Username)
				},
			)
		})

		t.Run("not a token", func(t *testing.T) {
			m, err := New(Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret}, nil)
			require.NoError(t, err)

			_, err = m.ParseAccess(t.Context(), "invalid token")
			require.Error(t, err, "parsing even not a token should return an error")
		})

		t.Run("expired token", func(t *testing.T) {
			m, err := New(Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret, AccessTTL: time.Second}, nil)
			require.NoError(t, err)

			access, err := m.IssueAccess(models.User{ID: uuid.New()}, time.Now().Add(-time.Minute))
			require.NoError(t, err)

			_, err = m.ParseAccess(t.Context(), access.Value)
			require.ErrorIs(t, err, jwt.ErrTokenExpired, "token has to become expired")
		})

		t.Run("signed with another secret", func(t *testing.T) {
			m, err := New(Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret}, nil)
			require.NoError(t, err)
			other, err := New(Config{AccessSecret: "other-secret", RefreshSecret: testRefreshSecret}, nil)
			require.NoError(t, err)

			access, err := other.IssueAccess(models.User{ID: uuid.New()}, time.Now())
			require.NoError(t, err)

			_, err = m.ParseAccess(t.Context(), access.Value)
			require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
		})

		t.Run("refresh token is not access token", func(t *testing.T) {
			m, err := New(Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret}, nil)
			require.NoError(t, err)

			refresh, err := m.IssueRefresh(uuid.New(), time.Now())
			require.NoError(t, err)

			_, err = m.ParseAccess(t.Context(), refresh.Value)
			require.Error(t, err)
		})

		t.Run("token of another type signed with access secret", func(t *testing.T) {
			m, err := New(Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret}, nil)
			require.NoError(t, err)

			// Refresh shaped claims that somehow got signed with access secret
			token := jwt.NewWithClaims(
				m.alg,
				RefreshTokenClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						ID:        uuid.NewString(),
						IssuedAt:  jwt.NewNumericDate(time.Now()),
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
					},
					Type:   refreshTokenType,
					UserID: uuid.New(),
				},
			)
			value, err := token.SignedString(m.accessKey)
			require.NoError(t, err)

			_, err = m.ParseAccess(t.Context(), value)
			require.ErrorIs(t, err, errWrongTokenType)
		})

		t.Run("not signed token", func(t *testing.T) {
			m, err := New(Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret}, nil)
			require.NoError(t, err)

			// Create valid but unsigned token
			token := jwt.NewWithClaims(
				jwt.SigningMethodNone,
				AccessTokenClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						ID:        uuid.NewString(),
						IssuedAt:  jwt.NewNumericDate(time.Now()),
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
					},
					UserID: uuid.New(),
				},
			)
			access, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)

			_, err = m.ParseAccess(t.Context(), access)
			require.Error(t, err, "Valid token with empty alg must fail")
		})
	})

	t.Run("ParseRefresh", func(t *testing.T) {
		m, err := New(Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret}, nil)
		require.NoError(t, err)
		userID := uuid.New()

		t.Run("valid token", func(t *testing.T) {
			refresh, err := m.IssueRefresh(userID, time.Now())
			require.NoError(t, err)

			got, err := m.ParseRefresh(t.Context(), refresh.Value)

			require.NoError(t, err)
			require.Equal(t, userID, got)
		})

		t.Run("access token is not refresh token", func(t *testing.T) {
			access, err := m.IssueAccess(models.User{ID: userID}, time.Now())
			require.NoError(t, err)

			_, err = m.ParseRefresh(t.Context(), access.Value)
			require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
		})

		t.Run("access claims signed with refresh secret", func(t *testing.T) {
			token := jwt.NewWithClaims(
				m.alg,
				AccessTokenClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						ID:        uuid.NewString(),
						IssuedAt:  jwt.NewNumericDate(time.Now()),
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
					},
					Type:   accessTokenType,
					UserID: userID,
				},
			)
			value, err := token.SignedString(m.refreshKey)
			require.NoError(t, err)

			_, err = m.ParseRefresh(t.Context(), value)
			require.ErrorIs(t, err, errWrongTokenType)
		})

		t.Run("expired token", func(t *testing.T) {
			refresh, err := m.IssueRefresh(userID, time.Now().Add(-2*defaultRefreshTokenTTL))
			require.NoError(t, err)

			_, err = m.ParseRefresh(t.Context(), refresh.Value)
			require.ErrorIs(t, err, jwt.ErrTokenExpired)
		})
	})
}

func Test_HashToken(t *testing.T) {
	t.Parallel()

	require.Equal(t, HashToken("token"), HashToken("token"), "hash has to be stable")
	require.NotEqual(t, HashToken("token"), HashToken("token2"))
	require.Len(t, HashToken("token"), 64, "sha256 hex")
}
