package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDisabledCache_IsNoop(t *testing.T) {
	ctx := context.Background()
	c := Disabled(zerolog.Nop())

	if c.IsAvailable() {
		t.Fatalf("disabled cache reports available")
	}
	if err := c.SetReference(ctx, "tech_house", json.RawMessage(`{"a":1}`)); err != nil {
		t.Fatalf("SetReference: %v", err)
	}
	if _, ok := c.GetReference(ctx, "tech_house"); ok {
		t.Fatalf("disabled cache returned a hit")
	}
	if c.PutSignedURLIfAbsent(ctx, "v1", CachedSignedURL{URL: "x", ExpiresAt: time.Now().Add(time.Hour)}) {
		t.Fatalf("disabled cache accepted a signed url")
	}
	if c.Client() != nil {
		t.Fatalf("disabled cache exposes a client")
	}
}

func TestNilCache_IsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	if c.IsAvailable() {
		t.Fatalf("nil cache reports available")
	}
	if err := c.SetPlaylists(ctx, []string{"a"}); err != nil {
		t.Fatalf("SetPlaylists: %v", err)
	}
	var out []string
	if c.GetPlaylists(ctx, &out) {
		t.Fatalf("nil cache returned a hit")
	}
	if err := c.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
}

func TestNew_UnreachableRedisFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.IsAvailable() {
		t.Fatalf("expected cache to be disabled when redis is unreachable")
	}
}
