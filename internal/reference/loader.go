/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package reference

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/friendsincode/tekkin/internal/cache"
	"github.com/rs/zerolog"
)

// SanitizeKey lowercases a key, maps "-" to "_" and drops anything outside
// [a-z0-9_].
func SanitizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r == '-':
			b.WriteByte('_')
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Loader reads reference models from a directory. Parsed models are kept
// in memory for the life of the process and mirrored to Redis so other
// instances can skip the disk read.
type Loader struct {
	dir    string
	cache  *cache.Cache
	logger zerolog.Logger

	mu   sync.RWMutex
	memo map[string]*Model
}

// NewLoader creates a loader rooted at dir. c may be nil.
func NewLoader(dir string, c *cache.Cache, logger zerolog.Logger) *Loader {
	return &Loader{
		dir:    dir,
		cache:  c,
		logger: logger.With().Str("component", "reference").Logger(),
		memo:   make(map[string]*Model),
	}
}

// Load returns the model for key. A missing or unreadable model yields
// (nil, nil) and is logged; only context errors are returned.
func (l *Loader) Load(ctx context.Context, key string) (*Model, error) {
	if key == "" {
		return nil, nil
	}
	safe := SanitizeKey(key)
	if safe == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	m, ok := l.memo[safe]
	l.mu.RUnlock()
	if ok {
		return m, nil
	}

	if raw, found := l.cache.GetReference(ctx, safe); found {
		if m, err := Decode(raw); err == nil {
			l.remember(safe, m)
			return m, nil
		}
	}

	path := filepath.Join(l.dir, safe+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn().Str("key", key).Str("path", path).Msg("reference model not found")
		} else {
			l.logger.Error().Err(err).Str("path", path).Msg("reference model unreadable")
		}
		return nil, nil
	}

	m, err = Decode(raw)
	if err != nil {
		l.logger.Error().Err(err).Str("path", path).Msg("reference model is not valid JSON")
		return nil, nil
	}

	l.remember(safe, m)
	if err := l.cache.SetReference(ctx, safe, raw); err != nil {
		l.logger.Debug().Err(err).Str("key", safe).Msg("mirror reference to cache failed")
	}
	return m, nil
}

func (l *Loader) remember(key string, m *Model) {
	l.mu.Lock()
	l.memo[key] = m
	l.mu.Unlock()
}

// Forget drops memoized models so the next Load rereads them.
func (l *Loader) Forget() {
	l.mu.Lock()
	l.memo = make(map[string]*Model)
	l.mu.Unlock()
}

// Keys lists the model keys available on disk.
func (l *Loader) Keys() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".json"))
	}
	return out, nil
}
