package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Publisher stores rendered certificates somewhere reachable by URL.
type Publisher interface {
	Publish(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// S3Options configures the S3 publisher. Credentials fall back to the default
// AWS chain (env, shared config, instance role) when the keys are empty.
type S3Options struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
	UsePathStyle    bool   `json:"use_path_style" yaml:"use_path_style"`
}

// uploadAPI is the subset of manager.Uploader used here.
type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Publisher uploads objects with the multipart-aware upload manager.
type S3Publisher struct {
	uploader uploadAPI
	bucket   string
	prefix   string
	logger   *zap.Logger
}

// NewS3Publisher builds an S3 client from the default AWS configuration plus
// the given overrides.
func NewS3Publisher(ctx context.Context, opts S3Options, logger *zap.Logger) (*S3Publisher, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return newS3Publisher(manager.NewUploader(client), opts, logger), nil
}

func newS3Publisher(uploader uploadAPI, opts S3Options, logger *zap.Logger) *S3Publisher {
	return &S3Publisher{
		uploader: uploader,
		bucket:   opts.Bucket,
		prefix:   strings.Trim(opts.Prefix, "/"),
		logger:   logger,
	}
}

// Publish uploads body under prefix/key and returns the object location.
func (p *S3Publisher) Publish(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	objectKey := p.ObjectKey(key)

	out, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(objectKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", p.bucket, objectKey, err)
	}

	p.logger.Debug("Uploaded object",
		zap.String("bucket", p.bucket),
		zap.String("key", objectKey),
		zap.String("location", out.Location))

	return out.Location, nil
}

// ObjectKey joins the configured prefix with key.
func (p *S3Publisher) ObjectKey(key string) string {
	return path.Join(p.prefix, strings.TrimLeft(key, "/"))
}
