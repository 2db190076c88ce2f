package download

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache remembers where each URL was downloaded to. Concurrent requests for
// the same URL share one download; once a URL is warm it is served from disk
// for as long as the file exists.
type Cache struct {
	next   Downloader
	logger *slog.Logger

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]string
	flights map[string]*flight
}

// flight is one shared download. It is aborted only when every caller
// waiting on it has gone away.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewCache(next Downloader, logger *slog.Logger) *Cache {
	return &Cache{
		next:    next,
		logger:  logger,
		entries: make(map[string]string),
		flights: make(map[string]*flight),
	}
}

// Download returns the cached copy of rawURL, downloading it on a miss. A
// cancelled ctx stops this caller only; the shared download keeps running
// while any other caller still waits for it.
func (c *Cache) Download(ctx context.Context, rawURL string) (string, error) {
	if p, ok := c.lookup(rawURL); ok {
		c.logger.Debug("download cache hit", "url", rawURL, "path", p)
		return p, nil
	}

	f := c.join(ctx, rawURL)
	defer c.leave(rawURL, f)

	ch := c.group.DoChan(rawURL, func() (interface{}, error) {
		defer c.finish(rawURL, f)
		if p, ok := c.lookup(rawURL); ok {
			return p, nil
		}
		c.logger.Info("downloading source", "url", rawURL)
		p, err := c.next.Download(f.ctx, rawURL)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.entries[rawURL] = p
		c.mu.Unlock()
		return p, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Cache) join(ctx context.Context, rawURL string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[rawURL]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[rawURL] = f
	}
	f.waiters++
	return f
}

// leave drops one waiter. The last one out aborts the download and makes
// the next caller start a fresh one instead of joining the aborted call.
func (c *Cache) leave(rawURL string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[rawURL] == f {
		delete(c.flights, rawURL)
		c.group.Forget(rawURL)
	}
}

func (c *Cache) finish(rawURL string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flights[rawURL] == f {
		delete(c.flights, rawURL)
	}
}

// Forget drops the entry for rawURL so the next request downloads again.
func (c *Cache) Forget(rawURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, rawURL)
}

func (c *Cache) lookup(rawURL string) (string, bool) {
	c.mu.Lock()
	p, ok := c.entries[rawURL]
	c.mu.Unlock()
	if !ok {
		return "", false
	}
	if _, err := os.Stat(p); err != nil {
		c.Forget(rawURL)
		return "", false
	}
	return p, true
}
