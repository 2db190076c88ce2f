package artifacts

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/roadan/incubator-amaterasu/internal/action"
)

// MinioStore serves a maven-style repository kept in an S3-compatible bucket.
// Matching objects are downloaded to {cacheDir}/{jobID}/{bucket}/{key}.
type MinioStore struct {
	client   *minio.Client
	bucket   string
	prefix   string
	cacheDir string
}

func NewMinioStore(client *minio.Client, bucket, prefix, cacheDir string) (*MinioStore, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &MinioStore{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		cacheDir: cacheDir,
	}, nil
}

func (s *MinioStore) Fetch(ctx context.Context, jobID string, coord action.Artifact) ([]Artifact, error) {
	listPrefix := s.key(artifactDir(coord)) + "/"
	if coord.Version != LatestVersion {
		listPrefix += coord.Version + "/"
	}

	// Stops the listing goroutine when we return before draining it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var found []Artifact
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: listPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", s.bucket, listPrefix, obj.Err)
		}

		version, ok := versionOf(listPrefix, coord, obj.Key)
		if !ok {
			continue
		}

		local := filepath.Join(s.cacheDir, jobID, s.bucket, filepath.FromSlash(obj.Key))
		if err := s.client.FGetObject(ctx, s.bucket, obj.Key, local, minio.GetObjectOptions{}); err != nil {
			return nil, fmt.Errorf("download %s/%s: %w", s.bucket, obj.Key, err)
		}

		resolved := coord
		resolved.Version = version
		found = append(found, Artifact{
			Coordinate: resolved,
			Path:       local,
			Size:       obj.Size,
			ModTime:    obj.LastModified,
		})
	}
	return found, nil
}

func (s *MinioStore) key(rel string) string {
	if s.prefix == "" {
		return rel
	}
	return s.prefix + "/" + rel
}

// versionOf extracts the version directory from an object key listed under
// listPrefix and reports whether the object is an artifact file of coord.
func versionOf(listPrefix string, coord action.Artifact, key string) (string, bool) {
	rel := strings.TrimPrefix(key, listPrefix)
	version := coord.Version
	if version == LatestVersion {
		dir, file, ok := strings.Cut(rel, "/")
		if !ok {
			return "", false
		}
		version, rel = dir, file
	}
	if strings.Contains(rel, "/") {
		return "", false
	}
	return version, matchFile(coord, version, path.Base(rel))
}
