// Package s3 implements storage.Backend on an S3-compatible object store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/prn-tf/amethyst-cdn/internal/config"
	"github.com/prn-tf/amethyst-cdn/internal/storage"
)

// Backend stores content as objects in a single bucket.
type Backend struct {
	client *awss3.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewClient builds an S3 client from configuration.
// Static credentials are used when configured, the default AWS chain otherwise.
func NewClient(ctx context.Context, cfg config.S3StorageConfig) (*awss3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
		awsconfig.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// NewBackend creates an S3 backend over client.
func NewBackend(client *awss3.Client, bucket, prefix string, logger zerolog.Logger) *Backend {
	logger.Info().Str("bucket", bucket).Str("prefix", prefix).Msg("s3 storage ready")
	return &Backend{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "s3_storage").Logger(),
	}
}

// Create uploads r with If-None-Match: * so that an existing object is never replaced.
// Non-seekable readers are buffered in memory first.
func (b *Backend) Create(ctx context.Context, key storage.Key, r io.Reader) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	body, size, err := seekable(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read content: %w", err)
	}

	_, err = b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.objectKey(key)),
		Body:          body,
		ContentLength: aws.Int64(size),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return 0, storage.ErrExists
		}
		return 0, fmt.Errorf("failed to put object: %w", err)
	}

	b.logger.Debug().Str("key", key.String()).Int64("size", size).Msg("stored content")
	return size, nil
}

// Open streams the object body.
func (b *Backend) Open(ctx context.Context, key storage.Key) (io.ReadCloser, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return out.Body, nil
}

// Stat returns the object size.
func (b *Backend) Stat(ctx context.Context, key storage.Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	out, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Exists checks if an object is stored under key.
func (b *Backend) Exists(ctx context.Context, key storage.Key) (bool, error) {
	_, err := b.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Remove deletes the object. S3 treats deleting a missing key as success.
func (b *Backend) Remove(ctx context.Context, key storage.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Location returns s3://bucket/key.
func (b *Backend) Location(key storage.Key) string {
	return "s3://" + b.bucket + "/" + b.objectKey(key)
}

func (b *Backend) objectKey(key storage.Key) string {
	return storage.ComputeObjectKey(b.prefix, key)
}

// seekable returns r as an io.ReadSeeker along with the remaining length.
func seekable(r io.Reader) (io.ReadSeeker, int64, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		cur, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, 0, err
		}
		end, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, err
		}
		if _, err := rs.Seek(cur, io.SeekStart); err != nil {
			return nil, 0, err
		}
		return rs, end - cur, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

var _ storage.Backend = (*Backend)(nil)
