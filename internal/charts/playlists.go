/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package charts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/models"
)

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// PlaylistInput creates a curated playlist. IsActive defaults to true.
type PlaylistInput struct {
	Title       string         `json:"title" validate:"required,max=255"`
	Slug        string         `json:"slug" validate:"omitempty,max=255"`
	Description string         `json:"description"`
	CoverURL    string         `json:"cover_url" validate:"omitempty,url"`
	OrderIndex  int            `json:"order_index"`
	IsActive    *bool          `json:"is_active"`
	Genres      []string       `json:"genres"`
	Filters     map[string]any `json:"filters"`
}

// PlaylistUpdate changes the non-nil fields of a playlist.
type PlaylistUpdate struct {
	Title       *string        `json:"title"`
	Slug        *string        `json:"slug"`
	Description *string        `json:"description"`
	CoverURL    *string        `json:"cover_url"`
	OrderIndex  *int           `json:"order_index"`
	IsActive    *bool          `json:"is_active"`
	Genres      []string       `json:"genres"`
	Filters     map[string]any `json:"filters"`
}

// ListPlaylists returns every playlist ordered for the admin view.
func (s *Service) ListPlaylists(ctx context.Context) ([]models.CuratedPlaylist, error) {
	out := []models.CuratedPlaylist{}
	if err := s.db.WithContext(ctx).Order("order_index ASC, created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	return out, nil
}

// ActivePlaylists returns the playlists shown on the public charts page.
func (s *Service) ActivePlaylists(ctx context.Context) ([]models.CuratedPlaylist, error) {
	var out []models.CuratedPlaylist
	if s.cache.GetPlaylists(ctx, &out) {
		return out, nil
	}
	out = []models.CuratedPlaylist{}
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("order_index ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list active playlists: %w", err)
	}
	_ = s.cache.SetPlaylists(ctx, out)
	return out, nil
}

// CreatePlaylist stores a new curated playlist.
func (s *Service) CreatePlaylist(ctx context.Context, in PlaylistInput) (*models.CuratedPlaylist, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title required", models.ErrInvalidInput)
	}
	slug := Slugify(strings.TrimSpace(in.Slug))
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return nil, fmt.Errorf("%w: slug required", models.ErrInvalidInput)
	}
	p := &models.CuratedPlaylist{
		Title:       title,
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
		CoverURL:    strings.TrimSpace(in.CoverURL),
		OrderIndex:  in.OrderIndex,
		IsActive:    in.IsActive == nil || *in.IsActive,
		Genres:      in.Genres,
		Filters:     in.Filters,
	}
	// gorm skips false bools on create when the column has a default.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if !p.IsActive {
			return tx.Model(p).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	s.playlistsChanged(ctx, p.ID)
	return p, nil
}

// UpdatePlaylist applies an admin edit.
func (s *Service) UpdatePlaylist(ctx context.Context, id string, in PlaylistUpdate) (*models.CuratedPlaylist, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id required", models.ErrInvalidInput)
	}
	var p models.CuratedPlaylist
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load playlist: %w", err)
	}

	changed := false
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", models.ErrInvalidInput)
		}
		p.Title, changed = t, true
	}
	if in.Slug != nil {
		slug := Slugify(*in.Slug)
		if slug == "" {
			return nil, fmt.Errorf("%w: slug cannot be empty", models.ErrInvalidInput)
		}
		p.Slug, changed = slug, true
	}
	if in.Description != nil {
		p.Description, changed = strings.TrimSpace(*in.Description), true
	}
	if in.CoverURL != nil {
		p.CoverURL, changed = strings.TrimSpace(*in.CoverURL), true
	}
	if in.OrderIndex != nil {
		p.OrderIndex, changed = *in.OrderIndex, true
	}
	if in.IsActive != nil {
		p.IsActive, changed = *in.IsActive, true
	}
	if in.Genres != nil {
		p.Genres, changed = in.Genres, true
	}
	if in.Filters != nil {
		p.Filters, changed = in.Filters, true
	}
	if !changed {
		return nil, fmt.Errorf("%w: no fields to update", models.ErrInvalidInput)
	}

	// Save writes every column, so false and empty values stick.
	if err := s.db.WithContext(ctx).Save(&p).Error; err != nil {
		return nil, fmt.Errorf("update playlist: %w", err)
	}
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("reload playlist: %w", err)
	}
	s.playlistsChanged(ctx, p.ID)
	return &p, nil
}

func (s *Service) playlistsChanged(ctx context.Context, id string) {
	if err := s.cache.InvalidateCharts(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("playlist cache invalidation failed")
	}
	if s.bus != nil {
		s.bus.Publish(events.EventPlaylistsChanged, events.Payload{"playlist_id": id})
	}
}
