// Package staging copies the files a prepared action needs from a resource
// source into a worker directory.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roadan/incubator-amaterasu/internal/dispatch"
)

// ErrNotFound is returned by a Source for keys it does not hold.
var ErrNotFound = errors.New("resource not found")

// Source fetches a resource by its staging key into dest.
type Source interface {
	Fetch(ctx context.Context, key, dest string) error
}

type Stager struct {
	source Source
	logger *slog.Logger
}

func NewStager(source Source, logger *slog.Logger) *Stager {
	return &Stager{source: source, logger: logger}
}

// Keys lists what Stage fetches for pkg: runner resources first, then the
// action resources in their prepared order.
func Keys(pkg *dispatch.Package) []string {
	keys := make([]string, 0, len(pkg.RunnerResources)+len(pkg.Resources))
	keys = append(keys, pkg.RunnerResources...)
	return append(keys, pkg.Resources...)
}

// Stage fetches every key of pkg into destDir and returns the local paths in
// key order. It stops at the first failure.
func (s *Stager) Stage(ctx context.Context, pkg *dispatch.Package, destDir string) ([]string, error) {
	keys := Keys(pkg)
	staged := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dest, err := destPath(destDir, key)
		if err != nil {
			return nil, err
		}
		if err := s.fetch(ctx, pkg, key, dest); err != nil {
			return nil, fmt.Errorf("stage %s: %w", key, err)
		}
		s.logger.Debug("resource staged", "job_id", pkg.JobID, "action", pkg.Action, "key", key, "path", dest)
		staged = append(staged, dest)
	}

	s.logger.Info("action staged", "job_id", pkg.JobID, "action", pkg.Action, "files", len(staged), "dir", destDir)
	return staged, nil
}

// fetch copies a source downloaded during preparation from its local path
// and takes every other key from the resource source.
func (s *Stager) fetch(ctx context.Context, pkg *dispatch.Package, key, dest string) error {
	if key != pkg.SourceKey || pkg.ExecutablePath == "" {
		return s.source.Fetch(ctx, key, dest)
	}
	in, err := os.Open(pkg.ExecutablePath)
	if err != nil {
		return fmt.Errorf("open downloaded source: %w", err)
	}
	defer in.Close()
	return copyFile(dest, in)
}

// destPath maps a staging key under dir, rejecting keys that would escape it.
func destPath(dir, key string) (string, error) {
	dest := filepath.Join(dir, filepath.FromSlash(key))
	rel, err := filepath.Rel(dir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("resource key %q escapes the staging directory", key)
	}
	return dest, nil
}

// LocalSource serves keys from a directory tree.
type LocalSource struct {
	root string
}

func NewLocalSource(root string) *LocalSource {
	return &LocalSource{root: root}
}

func (l *LocalSource) Fetch(ctx context.Context, key, dest string) error {
	src, err := destPath(l.root, key)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	return copyFile(dest, in)
}

func copyFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part-*")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("copy resource: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("move resource into place: %w", err)
	}
	return nil
}
