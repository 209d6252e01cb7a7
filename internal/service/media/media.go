package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/models"
)

// S3 compatible storage settings (AWS, MinIO, ...)
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string

	// Base URL objects are publicly served from
	// If empty, endpoint/bucket is used
	PublicURL string

	// Request attempts including the first one. SDK default if zero
	MaxAttempts int
}

// Media host keeps uploaded images
type Host struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func New(ctx context.Context, cfg Config) (*Host, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("media bucket must not be empty")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("error while loading s3 config. Err: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return &Host{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload local file and remove it afterwards, whether upload succeeded or not
func (h *Host) Upload(ctx context.Context, localPath string) (models.Media, error) {
	defer os.Remove(localPath) // nolint:errcheck

	f, err := os.Open(localPath)
	if err != nil {
		return models.Media{}, fmt.Errorf("error while opening file to upload. Err: %w", err)
	}
	defer f.Close() // nolint:errcheck

	contentType, err := detectContentType(f)
	if err != nil {
		return models.Media{}, err
	}

	key := newObjectKey(filepath.Ext(localPath))
	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return models.Media{}, fmt.Errorf("error while uploading media. Err: %w", err)
	}

	return models.Media{URL: h.publicURL + "/" + key, PublicID: key}, nil
}

// Delete media by its public id
// Deleting not existed object is not an error
func (h *Host) Delete(ctx context.Context, publicID string) error {
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("error while deleting media. Err: %w", err)
	}
	return nil
}

// Sniff content type and rewind the file
func detectContentType(f *os.File) (string, error) {
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("error while reading file to upload. Err: %w", err)
	}

	_, err = f.Seek(0, io.SeekStart)
	if err != nil {
		return "", fmt.Errorf("error while reading file to upload. Err: %w", err)
	}

	return http.DetectContentType(head[:n]), nil
}

func newObjectKey(ext string) string {
	d := time.Now()
	return fmt.Sprintf("media/%d/%02d/%02d/%v%s", d.Year(), d.Month(), d.Day(), uuid.New(), strings.ToLower(ext))
}
