package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Driver talks to any S3-compatible endpoint (AWS, MinIO) through
// minio-go.
type S3Driver struct {
	client *minio.Client
	bucket string
	prefix string
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewS3Driver(cfg S3Config) (*S3Driver, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 driver: %w", err)
	}
	return &S3Driver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (d *S3Driver) objectName(key string) string {
	return path.Join(d.prefix, key)
}

func (d *S3Driver) Put(ctx context.Context, key string, r io.Reader) (string, int64, string, error) {
	if key == "" {
		now := time.Now().UTC()
		key = fmt.Sprintf("%04d/%02d/%s", now.Year(), int(now.Month()), randomHex(16))
	}
	// hash while uploading; size -1 lets minio stream with multipart
	h := sha256.New()
	info, err := d.client.PutObject(ctx, d.bucket, d.objectName(key),
		io.TeeReader(r, h), -1, minio.PutObjectOptions{})
	if err != nil {
		return "", 0, "", err
	}
	return key, info.Size, hex.EncodeToString(h.Sum(nil)), nil
}

func (d *S3Driver) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, d.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (d *S3Driver) Delete(ctx context.Context, key string) error {
	return d.client.RemoveObject(ctx, d.bucket, d.objectName(key), minio.RemoveObjectOptions{})
}
