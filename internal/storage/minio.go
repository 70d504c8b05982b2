package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const objectPrefix = "invoices/"

// MinIOStore keeps documents as objects in one bucket of an S3 compatible server.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore connects to the server and creates the bucket when it is missing.
func NewMinIOStore(ctx context.Context, cfg config.MinIOConfig, log *zap.Logger) (*MinIOStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Info("created storage bucket", zap.String("bucket", cfg.Bucket))
	}
	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinIOStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	ref := objectPrefix + objectName(name)
	_, err := s.client.PutObject(ctx, s.bucket, ref, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	return ref, nil
}

func (s *MinIOStore) Get(ctx context.Context, ref string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapObjectError(ref, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, mapObjectError(ref, err)
	}
	return data, nil
}

func (s *MinIOStore) Delete(ctx context.Context, ref string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object %s: %w", ref, err)
	}
	return nil
}

func mapObjectError(ref string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("document %s: %w", ref, apperror.ErrNotFound)
	}
	return fmt.Errorf("get object %s: %w", ref, err)
}
