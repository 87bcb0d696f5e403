package attachment

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Folder    string
	PublicURL string
}

// MinioStore keeps images in an S3 compatible bucket served from PublicURL.
type MinioStore struct {
	cfg    MinioConfig
	client *minio.Client
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create object storage client: %w", err)
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &MinioStore{cfg: cfg, client: cl}, nil
}

func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("could not check bucket %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("could not create bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, img Image) (Attachment, error) {
	key := s.objectKey(img)
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, img.Reader, img.Size, minio.PutObjectOptions{
		ContentType: img.ContentType,
		UserMetadata: map[string]string{
			"original-filename": img.Filename,
		},
	})
	if err != nil {
		return Attachment{}, fmt.Errorf("could not upload image: %w", err)
	}
	return Attachment{URL: s.URL(key), PublicID: key}, nil
}

func (s *MinioStore) Release(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("could not release image %s: %w", publicID, err)
	}
	return nil
}

func (s *MinioStore) URL(key string) string {
	return s.cfg.PublicURL + "/" + key
}

func (s *MinioStore) objectKey(img Image) string {
	return path.Join(s.cfg.Folder, uuid.NewString()+img.Extension())
}
