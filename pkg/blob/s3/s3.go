// Package s3 provides an S3-backed blob adapter. The declared content type
// is stored as S3 object metadata, so no sidecar objects are needed.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/blinkhost/blink/pkg/blob"
)

// Scheme is the reference prefix for S3 blobs.
const Scheme = "s3"

const filenameMetaKey = "blink-filename"

// Config holds configuration for the S3 blob adapter.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// KeyPrefix is prepended to all blob keys (e.g. "images/").
	// Should end with "/" if non-empty.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// Adapter is an S3-backed implementation of blob.Adapter.
type Adapter struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	closed    bool
	mu        sync.RWMutex
}

// New creates a new S3 blob adapter with an existing client.
func New(client *s3.Client, cfg Config) *Adapter {
	return &Adapter{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}
}

// NewFromConfig creates a new S3 blob adapter by building an S3 client from
// the ambient AWS configuration. Preferred when no client exists yet.
func NewFromConfig(ctx context.Context, cfg Config) (*Adapter, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return New(client, cfg), nil
}

// Scheme implements blob.Adapter.
func (a *Adapter) Scheme() string { return Scheme }

// fullKey returns the full S3 key for a blob key. The key prefix is part of
// adapter configuration, not of the reference, so references stay portable
// across prefix changes only if the prefix is stable. Keep it stable.
func (a *Adapter) fullKey(key string) string {
	return a.keyPrefix + key
}

// Write uploads data to S3 under key.
func (a *Adapter) Write(ctx context.Context, key string, data []byte, meta blob.Meta) error {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return blob.ErrStoreClosed
	}
	a.mu.RUnlock()

	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.fullKey(key)),
		Body:   bytes.NewReader(data),
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if meta.Filename != "" {
		input.Metadata = map[string]string{filenameMetaKey: meta.Filename}
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}

	return nil
}

// Read downloads the complete object stored under key.
func (a *Adapter) Read(ctx context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return nil, blob.ErrStoreClosed
	}
	a.mu.RUnlock()

	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, blob.ErrBlobNotFound
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}

	return data, nil
}

// ContentType returns the content type stored as object metadata.
func (a *Adapter) ContentType(ctx context.Context, key string) (string, error) {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return "", blob.ErrStoreClosed
	}
	a.mu.RUnlock()

	resp, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return "", blob.ErrBlobNotFound
		}
		return "", fmt.Errorf("s3 head object: %w", err)
	}

	return aws.ToString(resp.ContentType), nil
}

// HealthCheck verifies the bucket is reachable.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return blob.ErrStoreClosed
	}
	a.mu.RUnlock()

	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 head bucket: %w", err)
	}
	return nil
}

// Close marks the adapter as closed. The underlying client is shared and
// not closed here.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	return nil
}

// isNotFoundError reports whether err is an S3 missing-key error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}

var _ blob.Adapter = (*Adapter)(nil)
