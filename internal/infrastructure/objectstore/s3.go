package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned by a presigner built without a bucket
var ErrNotConfigured = errors.New("object storage is not configured")

// Config holds S3 connection settings. Endpoint is optional and enables path-style
// addressing for S3-compatible servers such as MinIO.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Expires   time.Duration
}

// Enabled reports whether uploads can be presigned
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// Upload is a presigned PUT target for one verification document
type Upload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// S3Presigner hands out presigned upload URLs for land documents
type S3Presigner struct {
	client  *s3.PresignClient
	bucket  string
	expires time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

var loadAWSConfig = config.LoadDefaultConfig

// NewS3Presigner builds a presigner from cfg
func NewS3Presigner(ctx context.Context, cfg Config, logger *slog.Logger) (*S3Presigner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Expires <= 0 {
		cfg.Expires = 15 * time.Minute
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("object storage configured",
		slog.String("bucket", cfg.Bucket),
		slog.String("region", cfg.Region),
	)
	return &S3Presigner{
		client:  s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expires: cfg.Expires,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// DocumentKey returns a fresh storage key under the land's prefix
func DocumentKey(landID string, at time.Time) string {
	return fmt.Sprintf("lands/%s/%d/%02d/%s", landID, at.Year(), at.Month(), uuid.NewString())
}

// PresignDocumentUpload returns a PUT URL for a new document of landID
func (p *S3Presigner) PresignDocumentUpload(ctx context.Context, landID, contentType string) (*Upload, error) {
	now := p.now().UTC()
	key := DocumentKey(landID, now)

	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := p.client.PresignPutObject(ctx, in, s3.WithPresignExpires(p.expires))
	if err != nil {
		p.logger.Error("failed to presign upload",
			slog.String("land_id", landID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &Upload{
		Key:       key,
		URL:       req.URL,
		Method:    req.Method,
		ExpiresAt: now.Add(p.expires),
	}, nil
}
