package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/angelmondragon/productdesk/pkg/config"
)

// S3Storage uploads to an S3-compatible endpoint with static service credentials.
type S3Storage struct {
	client *minio.Client
	region string
}

// NewS3Storage builds the minio client from the storage config.
func NewS3Storage(cfg config.StorageConfig) (*S3Storage, error) {
	endpoint := cfg.S3Endpoint
	useSSL := cfg.S3UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		if p := strings.Trim(u.Path, "/"); p != "" {
			return nil, fmt.Errorf("s3 endpoint %q must not carry a path", endpoint)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: useSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &S3Storage{client: client, region: cfg.S3Region}, nil
}

// EnsureBucket creates bucket when it does not exist yet.
func (s *S3Storage) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// Upload ignores token: the S3 endpoint authenticates with service credentials.
func (s *S3Storage) Upload(ctx context.Context, obj Object, _ string) error {
	if err := obj.validate(); err != nil {
		return err
	}
	size := obj.Size
	if size <= 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, obj.Bucket, strings.TrimLeft(obj.Path, "/"), obj.Body, size, minio.PutObjectOptions{
		ContentType: obj.ContentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", obj.Bucket, obj.Path, err)
	}
	return nil
}
