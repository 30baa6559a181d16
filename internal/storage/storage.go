/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/config"
)

// Bucket is the logical bucket holding track audio.
const Bucket = "tracks"

// ErrEmptyPath is returned when a path normalizes to nothing.
var ErrEmptyPath = errors.New("storage: empty path")

// Backend abstracts object storage operations.
type Backend interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	CheckAccess(ctx context.Context) error
}

// Service stores track audio and hands out signed links.
type Service struct {
	backend Backend
	logger  zerolog.Logger
}

// NewService picks S3 when a bucket is configured, the filesystem otherwise.
func NewService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	logger = logger.With().Str("component", "storage").Logger()

	var backend Backend
	if cfg.S3Bucket != "" {
		if cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			logger.Warn().Msg("S3 credentials not configured, falling back to the default AWS chain")
		}
		s3b, err := NewS3Backend(ctx, S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init S3 storage: %w", err)
		}
		backend = s3b
	} else {
		backend = NewFilesystemBackend(cfg.MediaRoot, cfg.BaseURL, cfg.JWTSigningKey, logger)
	}

	return New(backend, logger), nil
}

// New wraps an existing backend.
func New(backend Backend, logger zerolog.Logger) *Service {
	return &Service{backend: backend, logger: logger}
}

// Backend exposes the underlying backend.
func (s *Service) Backend() Backend { return s.backend }

// NormalizePath trims the bucket prefix and leading slash of a stored path.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, Bucket+"/")
	p = strings.TrimPrefix(p, "/")
	return p
}

// TrackKey builds the object key of a new upload: <project>/<uuid>.<ext>.
func TrackKey(projectID, filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		ext = "wav"
	}
	return fmt.Sprintf("%s/%s.%s", projectID, uuid.NewString(), ext)
}

// Upload stores an audio file and returns its key.
func (s *Service) Upload(ctx context.Context, projectID, filename, contentType string, body io.Reader) (string, error) {
	key := TrackKey(projectID, filename)
	if contentType == "" {
		contentType = "audio/wav"
	}
	if err := s.backend.Put(ctx, key, body, contentType); err != nil {
		s.logger.Error().Err(err).Str("project_id", projectID).Msg("track upload failed")
		return "", fmt.Errorf("store track: %w", err)
	}

	s.logger.Info().Str("project_id", projectID).Str("key", key).Msg("track stored")
	return key, nil
}

// Delete removes an object. Missing objects are not an error.
func (s *Service) Delete(ctx context.Context, p string) error {
	key := NormalizePath(p)
	if key == "" {
		return nil
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("track delete failed")
		return fmt.Errorf("delete track: %w", err)
	}
	s.logger.Debug().Str("key", key).Msg("track deleted")
	return nil
}

// Sign returns a time-limited URL for a stored path.
func (s *Service) Sign(ctx context.Context, p string, ttl time.Duration) (string, error) {
	key := NormalizePath(p)
	if key == "" {
		return "", ErrEmptyPath
	}
	url, err := s.backend.SignURL(ctx, key, ttl)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("sign url failed")
		return "", fmt.Errorf("sign url: %w", err)
	}
	return url, nil
}

// CheckAccess verifies that the backend is reachable.
func (s *Service) CheckAccess(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.backend.CheckAccess(ctx)
}
