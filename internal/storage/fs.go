/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MediaRoutePrefix is where the filesystem backend serves signed objects.
const MediaRoutePrefix = "/media/"

// ErrBadSignature is returned for tampered or expired links.
var ErrBadSignature = errors.New("storage: invalid or expired signature")

// FilesystemBackend stores objects under a root directory and signs links
// with an HMAC over key and expiry.
type FilesystemBackend struct {
	rootDir string
	baseURL string
	secret  []byte
	logger  zerolog.Logger
	now     func() time.Time
}

// NewFilesystemBackend creates a filesystem backend.
func NewFilesystemBackend(rootDir, baseURL, secret string, logger zerolog.Logger) *FilesystemBackend {
	return &FilesystemBackend{
		rootDir: rootDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		logger:  logger,
		now:     time.Now,
	}
}

func (fs *FilesystemBackend) fullPath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", ErrEmptyPath
	}
	return filepath.Join(fs.rootDir, clean), nil
}

// Put writes an object to disk.
func (fs *FilesystemBackend) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	full, err := fs.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	dest, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, body); err != nil {
		os.Remove(full)
		return fmt.Errorf("write file: %w", err)
	}

	fs.logger.Debug().Str("path", full).Msg("filesystem storage: object stored")
	return nil
}

// Delete removes an object from disk.
func (fs *FilesystemBackend) Delete(ctx context.Context, key string) error {
	full, err := fs.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (fs *FilesystemBackend) signature(key string, exp int64) string {
	mac := hmac.New(sha256.New, fs.secret)
	fmt.Fprintf(mac, "%s\n%d", key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignURL returns <base>/media/<key>?exp=<unix>&sig=<hmac>.
func (fs *FilesystemBackend) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	exp := fs.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", fs.signature(key, exp))
	return fs.baseURL + MediaRoutePrefix + key + "?" + q.Encode(), nil
}

// Verify checks a link's signature and expiry.
func (fs *FilesystemBackend) Verify(key, expRaw, sig string) error {
	exp, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil || fs.now().Unix() > exp {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(sig), []byte(fs.signature(key, exp))) {
		return ErrBadSignature
	}
	return nil
}

// ServeHTTP serves signed objects mounted under MediaRoutePrefix.
func (fs *FilesystemBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, MediaRoutePrefix)
	if err := fs.Verify(key, r.URL.Query().Get("exp"), r.URL.Query().Get("sig")); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	full, err := fs.fullPath(key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, full)
}

// CheckAccess verifies the root directory exists.
func (fs *FilesystemBackend) CheckAccess(ctx context.Context) error {
	info, err := os.Stat(fs.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("media root directory does not exist: %s", fs.rootDir)
		}
		return fmt.Errorf("cannot access media root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root is not a directory: %s", fs.rootDir)
	}
	return nil
}
