// Package preload fetches image bytes ahead of need and memoizes the result
// by URL in a process-wide cache.
//
// The cache is append-only and never evicts: the URL set of a page is small
// and finite, and a cached failure is as useful as a cached success (both mean
// "settled — stop waiting"). A broken image must never block a color switch,
// so PreloadFirst resolves for failures instead of returning them.
package preload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hazyhaar/swatchsync/swatchdata"
)

// Handle is the cached outcome of one image fetch.
type Handle struct {
	URL         string    `json:"url"`
	OK          bool      `json:"ok"`
	Size        int64     `json:"size,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Cache is the process-wide URL → Handle map. Safe for concurrent use;
// entries are never removed during the process lifetime.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Handle
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Handle)}
}

// Get returns the cached handle for url, if any.
func (c *Cache) Get(url string) (Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.entries[url]
	return h, ok
}

// Put stores a handle. First write wins on races; the outcome of a URL fetch
// does not change within a page lifetime.
func (c *Cache) Put(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[h.URL]; !ok {
		c.entries[h.URL] = h
	}
}

// Len returns the number of cached URLs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fetch retrieves one image and reports its outcome. Implementations return
// an error only for transport-level failures; HTTP error statuses are mapped
// to a Handle with OK=false by the loader.
type Fetch func(ctx context.Context, url string) (Handle, error)

// Options tunes a Loader.
type Options struct {
	// Fetch overrides the default HTTP fetcher.
	Fetch Fetch
	// BatchSize is the number of records eagerly preloaded at init time.
	// Default: 3.
	BatchSize int
	// Timeout bounds one fetch. Default: 15s.
	Timeout time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 3
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Loader preloads swatch images into a shared cache, deduplicating in-flight
// fetches of the same URL.
type Loader struct {
	cache  *Cache
	opts   Options
	flight singleflight.Group
	logger *slog.Logger
}

// NewLoader creates a Loader over the given cache. A nil cache gets a fresh
// private one.
func NewLoader(cache *Cache, opts Options) *Loader {
	opts.defaults()
	if cache == nil {
		cache = NewCache()
	}
	if opts.Fetch == nil {
		client := &http.Client{Timeout: opts.Timeout}
		opts.Fetch = httpFetch(client)
	}
	return &Loader{cache: cache, opts: opts, logger: opts.Logger}
}

// Cache exposes the underlying cache (status surface, tests).
func (l *Loader) Cache() *Cache { return l.cache }

// PreloadFirst blocks until the first image of the record has either loaded
// or failed to load. It never returns an error for the image itself: a broken
// image settles as a cached OK=false handle. A record with no images at all
// settles immediately. Context cancellation is the only abort path.
func (l *Loader) PreloadFirst(ctx context.Context, rec swatchdata.Record) {
	images := rec.ImageList()
	if len(images) == 0 {
		return
	}
	l.PreloadURL(ctx, images[0].URL)
}

// PreloadURL fetches one URL through the cache, collapsing concurrent
// requests for the same URL into a single fetch.
func (l *Loader) PreloadURL(ctx context.Context, url string) Handle {
	if url == "" {
		return Handle{}
	}
	if h, ok := l.cache.Get(url); ok {
		return h
	}

	v, _, _ := l.flight.Do(url, func() (any, error) {
		if h, ok := l.cache.Get(url); ok {
			return h, nil
		}
		h, err := l.opts.Fetch(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled, not settled: leave the URL uncached so the
				// next switch retries the fetch.
				return Handle{URL: url}, nil
			}
			l.logger.Debug("preload: fetch failed", "url", url, "error", err)
			h = Handle{URL: url, OK: false, FetchedAt: time.Now()}
		}
		h.URL = url
		l.cache.Put(h)
		return h, nil
	})
	h, _ := v.(Handle)
	return h
}

// PreloadBatch eagerly preloads the primary image of the first n records in
// the background. Zero n uses the configured batch size. It never blocks the
// caller and deduplicates against the cache.
func (l *Loader) PreloadBatch(ctx context.Context, recs []swatchdata.Record, n int) {
	if n <= 0 {
		n = l.opts.BatchSize
	}
	if n > len(recs) {
		n = len(recs)
	}
	seen := make(map[string]bool, n)
	for _, rec := range recs[:n] {
		images := rec.ImageList()
		if len(images) == 0 {
			continue
		}
		url := images[0].URL
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		if _, ok := l.cache.Get(url); ok {
			continue
		}
		go l.PreloadURL(ctx, url)
	}
}

// httpFetch builds the default Fetch: GET the URL and drain the body so the
// bytes are actually pulled over the wire.
func httpFetch(client *http.Client) Fetch {
	return func(ctx context.Context, url string) (Handle, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Handle{}, fmt.Errorf("preload: build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return Handle{}, fmt.Errorf("preload: fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		size, _ := io.Copy(io.Discard, resp.Body)
		return Handle{
			URL:         url,
			OK:          resp.StatusCode >= 200 && resp.StatusCode < 300,
			Size:        size,
			ContentType: resp.Header.Get("Content-Type"),
			FetchedAt:   time.Now(),
		}, nil
	}
}
