package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/roadan/incubator-amaterasu/internal/netutil"
	"github.com/roadan/incubator-amaterasu/internal/version"
)

// HTTPDownloader fetches http and https URLs into dir.
type HTTPDownloader struct {
	client *http.Client
	dir    string
}

func NewHTTPDownloader(client *http.Client, dir string) *HTTPDownloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDownloader{client: client, dir: dir}
}

// NewSafeClient returns a client whose connections go through
// netutil.SafeDialer, for coordinators that must not reach internal hosts.
func NewSafeClient(timeout time.Duration) *http.Client {
	dialer := &netutil.SafeDialer{Timeout: 10 * time.Second}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("get %s: unexpected status %d: %s", rawURL, resp.StatusCode, string(body))
	}

	dest := localPath(d.dir, rawURL)
	if err := writeFile(dest, resp.Body); err != nil {
		return "", err
	}
	return dest, nil
}
