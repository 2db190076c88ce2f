package staging

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
)

// MinioSource serves keys from {bucket}/{prefix}/{key}.
type MinioSource struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioSource(client *minio.Client, bucket, prefix string) *MinioSource {
	return &MinioSource{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (m *MinioSource) Fetch(ctx context.Context, key, dest string) error {
	objectKey := m.objectKey(key)
	err := m.client.FGetObject(ctx, m.bucket, objectKey, dest, minio.GetObjectOptions{})
	if err == nil {
		return nil
	}
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("get %s/%s: %w", m.bucket, objectKey, err)
}

func (m *MinioSource) objectKey(key string) string {
	if m.prefix == "" {
		return key
	}
	return m.prefix + "/" + key
}
