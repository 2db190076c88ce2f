// Package download fetches URL-based action sources into a local directory.
//
// A Mux routes URLs to a Downloader per scheme and doubles as the URL
// classifier: a URL is supported exactly when its scheme has a registered
// downloader. Cache wraps any Downloader so that each distinct URL is fetched
// at most once, even under concurrent requests.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnsupportedScheme is returned for URLs whose scheme has no downloader.
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Downloader fetches a URL and returns the local path of the copy.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (string, error)
}

// Classifier decides whether a string is a URL this process can fetch.
type Classifier interface {
	IsSupportedURL(s string) bool
}

// Mux dispatches downloads by URL scheme.
type Mux struct {
	mu      sync.RWMutex
	schemes map[string]Downloader
}

func NewMux() *Mux {
	return &Mux{schemes: make(map[string]Downloader)}
}

// Handle registers d for scheme, e.g. "https".
func (m *Mux) Handle(scheme string, d Downloader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes[strings.ToLower(scheme)] = d
}

func (m *Mux) IsSupportedURL(s string) bool {
	_, ok := m.lookup(s)
	return ok
}

func (m *Mux) Download(ctx context.Context, rawURL string) (string, error) {
	d, ok := m.lookup(rawURL)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
	}
	return d.Download(ctx, rawURL)
}

func (m *Mux) lookup(s string) (Downloader, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.schemes[strings.ToLower(u.Scheme)]
	return d, ok
}

// localPath maps a URL to {dir}/{hash}/{base name}. The same URL always maps
// to the same path, so a retried download overwrites the previous attempt.
func localPath(dir, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	name := "download"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	return filepath.Join(dir, hex.EncodeToString(sum[:8]), name)
}

// writeFile streams r into dest through a temporary file in the same
// directory. On failure the temporary file is removed and dest is untouched.
func writeFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part-*")
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write download data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close download file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}
