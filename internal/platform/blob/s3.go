// Package blob stores vehicle images in an S3-compatible bucket (AWS S3, Cloudflare R2,
// MinIO) and returns a publicly viewable URL.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/phoenix-garage/garage/internal/shared"
)

// Object identifies a stored image.
type Object struct {
	URL    string `json:"url"`
	FileID string `json:"fileId"`
}

// Uploader accepts raw bytes and returns a stored object.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, mimeType string) (Object, error)
}

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures the S3 uploader.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
	Prefix    string
	Timeout   time.Duration
	MaxBytes  int64
}

// S3Uploader implements Uploader against an S3-compatible API.
type S3Uploader struct {
	client    ObjectPutter
	bucket    string
	publicURL string
	prefix    string
	timeout   time.Duration
	maxBytes  int64
}

// NewS3Uploader builds the S3 client from cfg. A custom endpoint switches to path-style
// addressing, which R2 and MinIO require.
func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	if cfg.Bucket == "" || cfg.PublicURL == "" {
		return nil, errors.New("platform/blob: bucket and public url are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("platform/blob: load config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewUploaderWithClient(client, cfg), nil
}

// NewUploaderWithClient wires an existing client, used by tests.
func NewUploaderWithClient(client ObjectPutter, cfg Config) *S3Uploader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "vehicle-images"
	}
	return &S3Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		prefix:    prefix,
		timeout:   timeout,
		maxBytes:  maxBytes,
	}
}

// Upload stores one image. The content type is sniffed when mimeType is empty or
// generic, and anything that is not an image is rejected with shared.ErrUpload.
func (u *S3Uploader) Upload(ctx context.Context, data []byte, filename, mimeType string) (Object, error) {
	if len(data) == 0 {
		return Object{}, fmt.Errorf("%w: %s is empty", shared.ErrUpload, filename)
	}
	if int64(len(data)) > u.maxBytes {
		return Object{}, fmt.Errorf("%w: %s exceeds %d bytes", shared.ErrUpload, filename, u.maxBytes)
	}
	detected := mimetype.Detect(data)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = detected.String()
	}
	if !strings.HasPrefix(detected.String(), "image/") {
		return Object{}, fmt.Errorf("%w: %s is %s, not an image", shared.ErrUpload, filename, detected.String())
	}

	fileID := uuid.NewString()
	key := path.Join(u.prefix, fileID+extensionFor(filename, detected))

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Object{}, fmt.Errorf("upload %s: %w", filename, shared.ErrTimeout)
		}
		return Object{}, fmt.Errorf("%w: put %s: %v", shared.ErrUpload, filename, err)
	}
	return Object{URL: u.publicURL + "/" + escapeKey(key), FileID: fileID}, nil
}

func extensionFor(filename string, detected *mimetype.MIME) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" && len(ext) <= 5 {
		return ext
	}
	return detected.Extension()
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
