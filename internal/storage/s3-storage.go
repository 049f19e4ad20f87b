package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Capeo/SupplAI/internal/config"
	"github.com/Capeo/SupplAI/internal/models"
)

// ErrObjectNotFound is returned when a tender key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Storage holds tender documents referenced by key.
type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Fetch(ctx context.Context, key string, maxSize int64) (*models.Document, error)
}

type s3Storage struct {
	client     *minio.Client
	bucketName string
}

// NewS3Storage connects to the configured bucket, creating it when missing.
func NewS3Storage(ctx context.Context, cfg config.S3Config) (Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &s3Storage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

func (s *s3Storage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	reader := bytes.NewReader(data)

	_, err := s.client.PutObject(
		ctx,
		s.bucketName,
		key,
		reader,
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

// Fetch downloads the object at key. Objects larger than maxSize are
// rejected before the body is read.
func (s *s3Storage) Fetch(ctx context.Context, key string, maxSize int64) (*models.Document, error) {
	object, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer object.Close()

	info, err := object.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	if maxSize > 0 && info.Size > maxSize {
		return nil, fmt.Errorf("object %s is %d bytes, limit is %d", key, info.Size, maxSize)
	}

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}

	return &models.Document{
		Data:        data,
		Filename:    path.Base(key),
		ContentType: info.ContentType,
	}, nil
}
