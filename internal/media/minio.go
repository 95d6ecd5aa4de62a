package media

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/centrodecompra/catalog/internal/config"
	"github.com/centrodecompra/catalog/pkg/logger"
	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const publicReadPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`

// MinIOStore stores images in an S3-compatible bucket. Durable URLs are
// <public url>/<bucket>/<key>, and the key doubles as the public id.
type MinIOStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinIOStore creates the client and ensures the bucket exists and is
// publicly readable.
func NewMinIOStore(ctx context.Context, cfg config.MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}

	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}
	s := &MinIOStore{client: mc, bucket: cfg.Bucket, baseURL: joinURL(public, cfg.Bucket)}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	if err := mc.SetBucketPolicy(ctx, s.bucket, fmt.Sprintf(publicReadPolicy, s.bucket)); err != nil {
		logger.Warnf("minio: could not set public-read policy on %s: %v", s.bucket, err)
	}
	return s, nil
}

func (s *MinIOStore) Upload(ctx context.Context, localPath, targetFolder string) (string, error) {
	key := objectKey(targetFolder, localPath)
	contentType := "application/octet-stream"
	if m, err := mimetype.DetectFile(localPath); err == nil {
		contentType = m.String()
	}
	if _, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", &UploadError{File: localPath, Err: classifyMinIOError(err)}
	}
	return joinURL(s.baseURL, key), nil
}

func (s *MinIOStore) Delete(ctx context.Context, publicID string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return &DeletionError{PublicID: publicID, Err: err}
	}
	return nil
}

func (s *MinIOStore) PublicID(rawURL string) (string, error) {
	return keyFromURL(s.baseURL, rawURL)
}

func classifyMinIOError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "EntityTooLarge" || resp.StatusCode == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
	case resp.Code == "InvalidArgument" && resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return err
}
