package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/videotube/internal/logger"
)

const (
	defaultListenAddr         = "localhost:8000"
	defaultLoggingLevel       = logger.LevelInfo
	defaultEnvironment        = logger.EnvProduction
	defaultS3Region           = "us-east-1"
	defaultRateLimit          = 10
	defaultRateLimitWindow    = time.Minute
	defaultJanitorInterval    = 30 * time.Second
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the videotube service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Environment
	Environment string

	// Access and refresh tokens are signed with different keys
	// Secrets and lifetimes have no defaults
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenSecret string
	RefreshTokenExpiry time.Duration

	// Redis backs login and refresh rate limiting. Limiting is off if address is empty
	RedisAddr       string
	RedisPassword   string
	RateLimit       int
	RateLimitWindow time.Duration

	// S3 compatible media host
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string

	// Directory uploaded files are spooled to. OS temp dir if empty
	UploadDir string

	// How often replaced media is removed from media host
	JanitorInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:           defaultLoggingLevel,
		ListenAddr:         defaultListenAddr,
		Environment:        defaultEnvironment,
		S3Region:           defaultS3Region,
		RateLimit:          defaultRateLimit,
		RateLimitWindow:    defaultRateLimitWindow,
		JanitorInterval:    defaultJanitorInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			i, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = i
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENVIRONMENT":          setString(&c.Environment),
		"ACCESS_TOKEN_SECRET":  setString(&c.AccessTokenSecret),
		"ACCESS_TOKEN_EXPIRY":  setDuration(&c.AccessTokenExpiry),
		"REFRESH_TOKEN_SECRET": setString(&c.RefreshTokenSecret),
		"REFRESH_TOKEN_EXPIRY": setDuration(&c.RefreshTokenExpiry),
		"REDIS_ADDR":           setString(&c.RedisAddr),
		"REDIS_PASSWORD":       setString(&c.RedisPassword),
		"RATE_LIMIT":           setInt(&c.RateLimit),
		"RATE_LIMIT_WINDOW":    setDuration(&c.RateLimitWindow),
		"S3_ENDPOINT":          setString(&c.S3Endpoint),
		"S3_REGION":            setString(&c.S3Region),
		"S3_BUCKET":            setString(&c.S3Bucket),
		"S3_ACCESS_KEY":        setString(&c.S3AccessKey),
		"S3_SECRET_KEY":        setString(&c.S3SecretKey),
		"S3_PUBLIC_URL":        setString(&c.S3PublicURL),
		"UPLOAD_DIR":           setString(&c.UploadDir),
		"JANITOR_INTERVAL":     setDuration(&c.JanitorInterval),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("videotube", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.AccessTokenSecret, "access-secret", c.AccessTokenSecret, "Access token signing secret")
	fs.DurationVar(&c.AccessTokenExpiry, "access-expiry", c.AccessTokenExpiry, "Access token lifetime")
	fs.StringVar(&c.RefreshTokenSecret, "refresh-secret", c.RefreshTokenSecret, "Refresh token signing secret")
	fs.DurationVar(&c.RefreshTokenExpiry, "refresh-expiry", c.RefreshTokenExpiry, "Refresh token lifetime")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for rate limiting (disabled if empty)")
	fs.IntVar(&c.RateLimit, "rate-limit", c.RateLimit, "Login and refresh attempts per window per client")
	fs.DurationVar(&c.RateLimitWindow, "rate-limit-window", c.RateLimitWindow, "Rate limit window")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", c.S3Endpoint, "S3 compatible endpoint (AWS if empty)")
	fs.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "Bucket media is stored in")
	fs.StringVar(&c.S3PublicURL, "s3-public-url", c.S3PublicURL, "Base URL media is served from")
	fs.StringVar(&c.UploadDir, "upload-dir", c.UploadDir, "Directory uploads are spooled to")
	fs.DurationVar(&c.JanitorInterval, "janitor-interval", c.JanitorInterval, "Replaced media removal interval")

	return fs.Parse(args)
}

// Process must not start without token secrets and lifetimes
func (c *Config) Validate() error {
	var errs []error

	if c.AccessTokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.AccessTokenExpiry <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRY is required and must be positive"))
	}
	if c.RefreshTokenExpiry <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRY is required and must be positive"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_URI is required"))
	}
	if c.S3Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required"))
	}

	return errors.Join(errs...)
}
