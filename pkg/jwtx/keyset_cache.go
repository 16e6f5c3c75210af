package jwtx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Defaults for KeySetCache.
const (
	DefaultKeySetTTL             = 10 * time.Minute
	DefaultKeySetRefreshInterval = time.Minute
	DefaultKeySetFetchTimeout    = 5 * time.Second

	maxKeySetBody = 1 << 20
)

// KeySetFetcher retrieves a key set document from url.
type KeySetFetcher interface {
	FetchKeySet(ctx context.Context, url string) (JWKS, error)
}

// HTTPKeySetFetcher fetches key sets over HTTP.
type HTTPKeySetFetcher struct {
	Client *http.Client
}

// NewHTTPKeySetFetcher returns a fetcher whose requests time out after timeout.
func NewHTTPKeySetFetcher(timeout time.Duration) *HTTPKeySetFetcher {
	if timeout <= 0 {
		timeout = DefaultKeySetFetchTimeout
	}
	return &HTTPKeySetFetcher{Client: &http.Client{Timeout: timeout}}
}

// FetchKeySet performs a GET on url. Any non-2xx status is an error.
func (f *HTTPKeySetFetcher) FetchKeySet(ctx context.Context, url string) (JWKS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return JWKS{}, fmt.Errorf("jwtx: build key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return JWKS{}, fmt.Errorf("jwtx: fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return JWKS{}, fmt.Errorf("jwtx: fetch key set: unexpected status %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetBody)).Decode(&jwks); err != nil {
		return JWKS{}, fmt.Errorf("jwtx: decode key set: %w", err)
	}
	return jwks, nil
}

// KeySetCacheConfig tunes a KeySetCache. Zero values pick the defaults.
type KeySetCacheConfig struct {
	// TTL is how long a fetched set is served without going back to the
	// network.
	TTL time.Duration

	// MinRefreshInterval bounds forced refreshes triggered by unknown kids.
	MinRefreshInterval time.Duration

	Now func() time.Time
}

type keySetEntry struct {
	keys      *KeySet
	fetchedAt time.Time
}

// KeySetCache keeps one fetched KeySet per URL. Concurrent misses for the
// same URL share a single fetch.
type KeySetCache struct {
	fetcher    KeySetFetcher
	ttl        time.Duration
	minRefresh time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]keySetEntry
	group   singleflight.Group
}

// NewKeySetCache returns an empty cache backed by fetcher.
func NewKeySetCache(fetcher KeySetFetcher, cfg KeySetCacheConfig) *KeySetCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultKeySetTTL
	}
	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = DefaultKeySetRefreshInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &KeySetCache{
		fetcher:    fetcher,
		ttl:        cfg.TTL,
		minRefresh: cfg.MinRefreshInterval,
		now:        cfg.Now,
		entries:    make(map[string]keySetEntry),
	}
}

// Get returns the cached set for url, fetching it when absent or older
// than the TTL. A failed fetch leaves the cache untouched.
func (c *KeySetCache) Get(ctx context.Context, url string) (*KeySet, error) {
	ks, _, err := c.load(ctx, url, c.ttl)
	return ks, err
}

// Refresh re-fetches url unless the current entry is younger than the
// minimum refresh interval. The boolean reports whether a fetch happened.
func (c *KeySetCache) Refresh(ctx context.Context, url string) (*KeySet, bool, error) {
	return c.load(ctx, url, c.minRefresh)
}

// Cached returns the last set fetched for url and when it was fetched,
// without checking freshness or touching the network.
func (c *KeySetCache) Cached(url string) (*KeySet, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	return e.keys, e.fetchedAt, ok
}

// Invalidate drops the entry for url.
func (c *KeySetCache) Invalidate(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, url)
}

func (c *KeySetCache) fresh(url string, maxAge time.Duration) (*KeySet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok || c.now().Sub(e.fetchedAt) >= maxAge {
		return nil, false
	}
	return e.keys, true
}

type loadResult struct {
	keys    *KeySet
	fetched bool
}

// load serves an entry younger than maxAge or fetches a new one. The
// freshness check is repeated inside the flight so callers that missed
// just before a fetch finished reuse its result.
func (c *KeySetCache) load(ctx context.Context, url string, maxAge time.Duration) (*KeySet, bool, error) {
	if ks, ok := c.fresh(url, maxAge); ok {
		return ks, false, nil
	}

	v, err, _ := c.group.Do(url, func() (any, error) {
		if ks, ok := c.fresh(url, maxAge); ok {
			return loadResult{keys: ks}, nil
		}

		// The fetch is shared by every joined caller, so it ignores the first
		// caller's cancellation. The fetcher's client timeout bounds it.
		jwks, err := c.fetcher.FetchKeySet(context.WithoutCancel(ctx), url)
		if err != nil {
			return nil, err
		}

		ks := NewKeySetFromJWKS(jwks)
		if !ks.IsReady() {
			return nil, errors.New("jwtx: key set has no usable RSA signing keys")
		}

		c.mu.Lock()
		c.entries[url] = keySetEntry{keys: ks, fetchedAt: c.now()}
		c.mu.Unlock()

		return loadResult{keys: ks, fetched: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(loadResult)
	return res.keys, res.fetched, nil
}
