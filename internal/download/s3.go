package download

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
)

// S3Downloader fetches s3://bucket/key URLs from an S3-compatible endpoint.
type S3Downloader struct {
	client *minio.Client
	dir    string
}

func NewS3Downloader(client *minio.Client, dir string) *S3Downloader {
	return &S3Downloader{client: client, dir: dir}
}

func (d *S3Downloader) Download(ctx context.Context, rawURL string) (string, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return "", err
	}

	dest := localPath(d.dir, rawURL)
	// FGetObject writes to a part file and renames it on success.
	if err := d.client.FGetObject(ctx, bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return dest, nil
}

func parseS3URL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", rawURL, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: expected s3://bucket/key", rawURL)
	}
	return u.Host, key, nil
}
