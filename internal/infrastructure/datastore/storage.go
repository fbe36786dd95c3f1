package datastore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"sakura_marketplace/internal/app/port"

	storage_go "github.com/supabase-community/storage-go"
)

// objectAPI is the subset of *storage_go.Client used by Storage.
type objectAPI interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
	RemoveFile(bucketID string, paths []string) ([]storage_go.FileUploadResponse, error)
}

// Storage implements port.ObjectStorage on Supabase Storage buckets.
type Storage struct {
	api    objectAPI
	logger port.Logger
}

// NewStorage wraps api.
func NewStorage(api objectAPI, logger port.Logger) *Storage {
	return &Storage{api: api, logger: logger.With("component", "storage")}
}

// Upload overwrites any object already stored at bucket/path.
func (s *Storage) Upload(ctx context.Context, bucket, path, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	upsert := true
	opts := storage_go.FileOptions{ContentType: &contentType, Upsert: &upsert}
	if _, err := s.api.UploadFile(bucket, path, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("failed to upload %s/%s: %w", bucket, path, err)
	}
	url := s.api.GetPublicUrl(bucket, path).SignedURL
	if url == "" {
		return "", fmt.Errorf("no public URL for %s/%s", bucket, path)
	}
	s.logger.Debug("Object uploaded", "bucket", bucket, "path", path, "bytes", len(data))
	return url, nil
}

func (s *Storage) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.api.RemoveFile(bucket, paths); err != nil {
		return fmt.Errorf("failed to remove objects from %s: %w", bucket, err)
	}
	return nil
}

var _ port.ObjectStorage = (*Storage)(nil)
