package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"path"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/use-agent/bughunter/config"
)

// MinioStore uploads screenshots to an S3-compatible bucket. References are
// s3://bucket/key URIs.
type MinioStore struct {
	mc     *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects to the endpoint in cfg and creates the bucket if
// it does not exist.
func NewMinioStore(ctx context.Context, cfg config.ScreenshotConfig) (*MinioStore, error) {
	mc, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: minio client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("screenshot: check bucket %s: %w", cfg.S3Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("screenshot: create bucket %s: %w", cfg.S3Bucket, err)
		}
	}

	return &MinioStore{mc: mc, bucket: cfg.S3Bucket, prefix: cfg.S3Prefix}, nil
}

// Save implements Store.
func (s *MinioStore) Save(ctx context.Context, name string, png []byte) (string, error) {
	if len(png) == 0 {
		return "", ErrEmpty
	}
	key := objectKey(s.prefix, name)
	_, err := s.mc.PutObject(ctx, s.bucket, key, bytes.NewReader(png), int64(len(png)), minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("screenshot: upload %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func objectKey(prefix, name string) string {
	name = path.Base(name)
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
