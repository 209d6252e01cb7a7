package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/videotube/internal/db"
	"github.com/nkiryanov/videotube/internal/handlers"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/ratelimit"
	"github.com/nkiryanov/videotube/internal/repository/postgres"
	"github.com/nkiryanov/videotube/internal/service/auth"
	"github.com/nkiryanov/videotube/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/videotube/internal/service/janitor"
	"github.com/nkiryanov/videotube/internal/service/media"
	"github.com/nkiryanov/videotube/internal/service/user"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	rateLimitPrefix   = "videotube:ratelimit"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	janitor *janitor.Janitor
	logger  logger.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app := &ServerApp{ListenAddr: c.ListenAddr, logger: logger, pool: pool}

	err = app.wire(ctx, c)
	if err != nil {
		app.close()
		return nil, err
	}

	return app, nil
}

func (s *ServerApp) wire(ctx context.Context, c *Config) error {
	// Initialize repositories
	storage := postgres.NewStorage(s.pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessTokenSecret,
		RefreshSecret: c.RefreshTokenSecret,
		AccessTTL:     c.AccessTokenExpiry,
		RefreshTTL:    c.RefreshTokenExpiry,
	}, storage)
	if err != nil {
		return fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{Logger: s.logger.With("service", "auth")}, tokenManager, storage)
	if err != nil {
		return fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mediaHost, err := media.New(ctx, media.Config{
		Endpoint:  c.S3Endpoint,
		Region:    c.S3Region,
		Bucket:    c.S3Bucket,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		PublicURL: c.S3PublicURL,
	})
	if err != nil {
		return fmt.Errorf("error while creating media host. Err: %w", err)
	}

	userService := user.NewService(auth.BcryptHasher{}, storage, mediaHost, s.logger.With("service", "user"))
	s.janitor = janitor.New(janitor.Config{Interval: c.JanitorInterval}, storage.MediaTrash(), mediaHost, s.logger.With("service", "janitor"))

	routerCfg := handlers.RouterConfig{UploadDir: c.UploadDir}
	if c.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
		routerCfg.Limiter = ratelimit.NewRedisLimiter(s.redis, c.RateLimit, c.RateLimitWindow, rateLimitPrefix, s.logger)
	}

	s.Handler = handlers.NewRouter(routerCfg, authService, userService, s.logger)
	return nil
}

func (s *ServerApp) close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	s.pool.Close()
}

// Run starts http server and media janitor and closes them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	janitorStopped := s.janitor.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-janitorStopped

	return err
}
