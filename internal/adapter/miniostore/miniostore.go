// Package miniostore implements the archive port using MinIO / S3-compatible
// object storage. The GC engine writes run state snapshots here before
// removing an environment.
package miniostore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Strob0t/RunForge/internal/config"
)

// Archiver stores GC backups as objects in a single bucket.
type Archiver struct {
	client *minio.Client
	bucket string
}

// Connect creates the MinIO client and ensures the archive bucket exists.
func Connect(ctx context.Context, cfg config.Archive) (*Archiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Archiver{client: client, bucket: cfg.Bucket}, nil
}

// Archive writes data under the given key.
func (a *Archiver) Archive(ctx context.Context, key string, data []byte) error {
	_, err := a.client.PutObject(ctx, a.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}
