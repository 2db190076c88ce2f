package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roadan/incubator-amaterasu/internal/action"
)

// LocalStore serves a maven-style repository laid out on the local
// filesystem: {basePath}/{group path}/{artifact}/{version}/{artifact}-{version}*.
// Files are read in place, so the job id only scopes logging for callers.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a new LocalStore instance.
func NewLocalStore(basePath string) *LocalStore {
	return &LocalStore{basePath: basePath}
}

// Fetch lists the files of the coordinate in directory order. A coordinate
// with LatestVersion lists every version directory.
func (ls *LocalStore) Fetch(ctx context.Context, jobID string, coord action.Artifact) ([]Artifact, error) {
	versions := []string{coord.Version}
	if coord.Version == LatestVersion {
		var err error
		versions, err = ls.versions(coord)
		if err != nil {
			return nil, err
		}
	}

	var found []Artifact
	for _, version := range versions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := filepath.Join(ls.basePath, filepath.FromSlash(artifactDir(coord)), version)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("failed to read artifact directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !matchFile(coord, version, entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("failed to stat artifact file: %w", err)
			}
			resolved := coord
			resolved.Version = version
			found = append(found, Artifact{
				Coordinate: resolved,
				Path:       filepath.Join(dir, entry.Name()),
				Size:       info.Size(),
				ModTime:    info.ModTime(),
			})
		}
	}

	return found, nil
}

func (ls *LocalStore) versions(coord action.Artifact) ([]string, error) {
	dir := filepath.Join(ls.basePath, filepath.FromSlash(artifactDir(coord)))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read artifact versions: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() {
			versions = append(versions, entry.Name())
		}
	}
	return versions, nil
}
