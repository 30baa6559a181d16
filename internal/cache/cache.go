/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultReferenceTTL     = 6 * time.Hour
	DefaultChartSnapshotTTL = 10 * time.Minute
	DefaultPlaylistsTTL     = 5 * time.Minute
	DefaultArtistRankTTL    = 15 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyReference     = "tekkin:cache:reference:"  // + profile key
	KeySignedURL     = "tekkin:cache:signed_url:" // + version id
	KeyChartSnapshot = "tekkin:cache:charts:"     // + profile key + ":" + period start
	KeyPlaylists     = "tekkin:cache:playlists"
	KeyArtistRank    = "tekkin:cache:artist_rank:" // + artist id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	ReferenceTTL     time.Duration
	ChartSnapshotTTL time.Duration
	PlaylistsTTL     time.Duration
	ArtistRankTTL    time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:        "localhost:6379",
		ReferenceTTL:     DefaultReferenceTTL,
		ChartSnapshotTTL: DefaultChartSnapshotTTL,
		PlaylistsTTL:     DefaultPlaylistsTTL,
		ArtistRankTTL:    DefaultArtistRankTTL,
		DisableOnError:   true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A nil *Cache
// behaves like a disabled one.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		_ = client.Close()
		return Disabled(logger), nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Disabled returns a cache that never stores anything.
func Disabled(logger zerolog.Logger) *Cache {
	return &Cache{
		logger:   logger.With().Str("component", "cache").Logger(),
		config:   DefaultConfig(),
		disabled: true,
	}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// Client exposes the underlying Redis client, nil when disabled.
func (c *Cache) Client() *redis.Client {
	if !c.IsAvailable() {
		return nil
	}
	return c.client
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

func ttlOr(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// setNX stores a value only when the key does not exist yet.
func (c *Cache) setNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal cache value: %w", err)
	}

	ok, err := c.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		c.handleError(err, "setnx")
		return false, err
	}
	return ok, nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// SCAN rather than KEYS to avoid blocking Redis.
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Reference models

// GetReference returns the raw JSON of a cached reference model.
func (c *Cache) GetReference(ctx context.Context, key string) (json.RawMessage, bool) {
	var raw json.RawMessage
	found, _ := c.get(ctx, KeyReference+key, &raw)
	return raw, found
}

// SetReference caches the raw JSON of a reference model.
func (c *Cache) SetReference(ctx context.Context, key string, raw json.RawMessage) error {
	if c == nil {
		return nil
	}
	return c.set(ctx, KeyReference+key, raw, ttlOr(c.config.ReferenceTTL, DefaultReferenceTTL))
}

// InvalidateReferences drops every cached reference model.
func (c *Cache) InvalidateReferences(ctx context.Context) error {
	return c.deletePattern(ctx, KeyReference+"*")
}

// Signed URLs

// CachedSignedURL is a signed audio link and its lifetime.
type CachedSignedURL struct {
	URL          string    `json:"url"`
	ExpiresAt    time.Time `json:"expires_at"`
	RevalidateAt time.Time `json:"revalidate_at"`
}

// GetSignedURL looks up the shared signed link for a version.
func (c *Cache) GetSignedURL(ctx context.Context, versionID string) (*CachedSignedURL, bool) {
	var entry CachedSignedURL
	found, _ := c.get(ctx, KeySignedURL+versionID, &entry)
	if !found {
		return nil, false
	}
	return &entry, true
}

// PutSignedURLIfAbsent stores entry unless another instance already did.
// It reports whether this call won.
func (c *Cache) PutSignedURLIfAbsent(ctx context.Context, versionID string, entry CachedSignedURL) bool {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return false
	}
	ok, _ := c.setNX(ctx, KeySignedURL+versionID, entry, ttl)
	return ok
}

// ReplaceSignedURL overwrites the shared entry after revalidation.
func (c *Cache) ReplaceSignedURL(ctx context.Context, versionID string, entry CachedSignedURL) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return c.set(ctx, KeySignedURL+versionID, entry, ttl)
}

// InvalidateSignedURL removes the entry for a version.
func (c *Cache) InvalidateSignedURL(ctx context.Context, versionID string) error {
	return c.delete(ctx, KeySignedURL+versionID)
}

// Charts

// GetChartSnapshot reads a cached chart page into dest.
func (c *Cache) GetChartSnapshot(ctx context.Context, profileKey, period string, dest any) bool {
	found, _ := c.get(ctx, KeyChartSnapshot+profileKey+":"+period, dest)
	return found
}

// SetChartSnapshot caches a chart page.
func (c *Cache) SetChartSnapshot(ctx context.Context, profileKey, period string, value any) error {
	if c == nil {
		return nil
	}
	return c.set(ctx, KeyChartSnapshot+profileKey+":"+period, value, ttlOr(c.config.ChartSnapshotTTL, DefaultChartSnapshotTTL))
}

// GetPlaylists reads the cached active playlist list.
func (c *Cache) GetPlaylists(ctx context.Context, dest any) bool {
	found, _ := c.get(ctx, KeyPlaylists, dest)
	return found
}

// SetPlaylists caches the active playlist list.
func (c *Cache) SetPlaylists(ctx context.Context, value any) error {
	if c == nil {
		return nil
	}
	return c.set(ctx, KeyPlaylists, value, ttlOr(c.config.PlaylistsTTL, DefaultPlaylistsTTL))
}

// InvalidateCharts removes cached chart pages and playlists.
func (c *Cache) InvalidateCharts(ctx context.Context) error {
	if err := c.deletePattern(ctx, KeyChartSnapshot+"*"); err != nil {
		return err
	}
	return c.delete(ctx, KeyPlaylists)
}

// Artists

// GetArtistRank reads a cached artist rank view.
func (c *Cache) GetArtistRank(ctx context.Context, artistID string, dest any) bool {
	found, _ := c.get(ctx, KeyArtistRank+artistID, dest)
	return found
}

// SetArtistRank caches an artist rank view.
func (c *Cache) SetArtistRank(ctx context.Context, artistID string, value any) error {
	if c == nil {
		return nil
	}
	return c.set(ctx, KeyArtistRank+artistID, value, ttlOr(c.config.ArtistRankTTL, DefaultArtistRankTTL))
}

// InvalidateArtistRank removes the cached view of one artist.
func (c *Cache) InvalidateArtistRank(ctx context.Context, artistID string) error {
	return c.delete(ctx, KeyArtistRank+artistID)
}

// FlushAll removes every Tekkin cache entry.
func (c *Cache) FlushAll(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "tekkin:cache:*")
}
