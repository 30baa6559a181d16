/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/cache"
	"github.com/friendsincode/tekkin/internal/telemetry"
)

// Signed link lifetimes.
const (
	TrackURLTTL      = 30 * time.Minute
	DownloadURLTTL   = 5 * time.Minute
	expiryHeadroom   = 5 * time.Second
	defaultRevalFrac = 2
)

// SignedURL is a link and the moments it expires and should be re-signed.
type SignedURL struct {
	URL          string    `json:"url"`
	ExpiresAt    time.Time `json:"expires_at"`
	RevalidateAt time.Time `json:"-"`
}

func (s SignedURL) fresh(now time.Time) bool {
	return s.URL != "" && now.Before(s.RevalidateAt) && now.Before(s.ExpiresAt)
}

// URLCache memoizes signed links per version. The first signed link for a
// version wins until it passes its revalidate point, which is
// min(now+reval, expires-5s). Redis is the second tier shared between
// instances.
type URLCache struct {
	storage *Service
	shared  *cache.Cache
	ttl     time.Duration
	reval   time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]SignedURL
}

// NewURLCache creates a cache. reval <= 0 re-signs at half the ttl.
func NewURLCache(storage *Service, shared *cache.Cache, ttl, reval time.Duration, logger zerolog.Logger) *URLCache {
	if ttl <= 0 {
		ttl = TrackURLTTL
	}
	if reval <= 0 {
		reval = ttl / defaultRevalFrac
	}
	return &URLCache{
		storage: storage,
		shared:  shared,
		ttl:     ttl,
		reval:   reval,
		logger:  logger.With().Str("component", "signed_url_cache").Logger(),
		now:     time.Now,
		entries: make(map[string]SignedURL),
	}
}

func (c *URLCache) revalidateAt(now, expires time.Time) time.Time {
	at := now.Add(c.reval)
	if limit := expires.Add(-expiryHeadroom); limit.Before(at) {
		at = limit
	}
	return at
}

func (c *URLCache) local(versionID string, now time.Time) (SignedURL, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[versionID]
	return e, ok, ok && e.fresh(now)
}

// Get returns the cached link for a version, signing path when needed.
func (c *URLCache) Get(ctx context.Context, versionID, path string) (SignedURL, error) {
	now := c.now()

	existing, had, fresh := c.local(versionID, now)
	if fresh {
		telemetry.SignedURLCacheTotal.WithLabelValues("hit").Inc()
		return existing, nil
	}

	if !had {
		if shared, ok := c.shared.GetSignedURL(ctx, versionID); ok {
			entry := SignedURL{URL: shared.URL, ExpiresAt: shared.ExpiresAt, RevalidateAt: shared.RevalidateAt}
			if entry.fresh(now) {
				telemetry.SignedURLCacheTotal.WithLabelValues("shared_hit").Inc()
				return c.storeFirst(versionID, entry), nil
			}
			had = true
		}
	}

	url, err := c.storage.Sign(ctx, path, c.ttl)
	if err != nil {
		return SignedURL{}, err
	}
	expires := now.Add(c.ttl)
	entry := SignedURL{URL: url, ExpiresAt: expires, RevalidateAt: c.revalidateAt(now, expires)}
	shared := cache.CachedSignedURL{URL: entry.URL, ExpiresAt: entry.ExpiresAt, RevalidateAt: entry.RevalidateAt}

	if had {
		telemetry.SignedURLCacheTotal.WithLabelValues("revalidated").Inc()
		if err := c.shared.ReplaceSignedURL(ctx, versionID, shared); err != nil {
			c.logger.Debug().Err(err).Str("version_id", versionID).Msg("shared replace failed")
		}
		c.mu.Lock()
		c.entries[versionID] = entry
		c.trackSizeLocked()
		c.mu.Unlock()
		return entry, nil
	}

	telemetry.SignedURLCacheTotal.WithLabelValues("miss").Inc()
	if c.shared.IsAvailable() && !c.shared.PutSignedURLIfAbsent(ctx, versionID, shared) {
		// Another instance signed first; adopt its link.
		if winner, ok := c.shared.GetSignedURL(ctx, versionID); ok {
			entry = SignedURL{URL: winner.URL, ExpiresAt: winner.ExpiresAt, RevalidateAt: winner.RevalidateAt}
		}
	}
	return c.storeFirst(versionID, entry), nil
}

// storeFirst keeps a fresh entry already present, otherwise stores entry.
func (c *URLCache) storeFirst(versionID string, entry SignedURL) SignedURL {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[versionID]; ok && cur.fresh(c.now()) {
		return cur
	}
	c.entries[versionID] = entry
	c.trackSizeLocked()
	return entry
}

// Invalidate drops a version from both tiers.
func (c *URLCache) Invalidate(ctx context.Context, versionID string) {
	c.mu.Lock()
	delete(c.entries, versionID)
	c.trackSizeLocked()
	c.mu.Unlock()
	if err := c.shared.InvalidateSignedURL(ctx, versionID); err != nil {
		c.logger.Debug().Err(err).Str("version_id", versionID).Msg("shared invalidate failed")
	}
}

// trackSizeLocked publishes the number of locally memoized versions.
// c.mu must be held.
func (c *URLCache) trackSizeLocked() {
	telemetry.SignedURLCacheEntries.Set(float64(len(c.entries)))
}
