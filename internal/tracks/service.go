/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package tracks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/notifications"
	"github.com/friendsincode/tekkin/internal/storage"
)

// Visitor cookie used to attribute anonymous plays.
const (
	VisitorCookie       = "tekkin_vid"
	VisitorCookieMaxAge = 365 * 24 * time.Hour
)

// DefaultPlayWindow suppresses repeated plays of the same visitor.
const DefaultPlayWindow = 30 * time.Minute

// MaxLikeLookup bounds the ids accepted by Likes.
const MaxLikeLookup = 200

// LikeState is the like counter of a version as seen by one user.
type LikeState struct {
	Count int64 `json:"count"`
	Liked bool  `json:"liked"`
}

// Service implements likes, plays and audio links for versions.
type Service struct {
	db       *gorm.DB
	urls     *storage.URLCache
	notifier *notifications.Service
	logger   zerolog.Logger

	playWindow time.Duration
	now        func() time.Time
}

// NewService creates a track service. notifier may be nil.
func NewService(db *gorm.DB, urls *storage.URLCache, notifier *notifications.Service, logger zerolog.Logger) *Service {
	return &Service{
		db:         db,
		urls:       urls,
		notifier:   notifier,
		logger:     logger.With().Str("component", "tracks").Logger(),
		playWindow: DefaultPlayWindow,
		now:        time.Now,
	}
}

type versionOwner struct {
	models.ProjectVersion
	OwnerID string
	Title   string
}

func (s *Service) version(ctx context.Context, versionID string) (*versionOwner, error) {
	if versionID == "" {
		return nil, fmt.Errorf("%w: version_id missing", models.ErrInvalidInput)
	}
	var row versionOwner
	err := s.db.WithContext(ctx).
		Table("project_versions").
		Select("project_versions.*, projects.user_id AS owner_id, projects.title AS title").
		Joins("JOIN projects ON projects.id = project_versions.project_id").
		Where("project_versions.id = ?", versionID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	return &row, nil
}

// ToggleLike flips the like of userID on a version and returns the new state.
func (s *Service) ToggleLike(ctx context.Context, userID, versionID string) (LikeState, error) {
	v, err := s.version(ctx, versionID)
	if err != nil {
		return LikeState{}, err
	}

	var state LikeState
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("version_id = ? AND user_id = ?", versionID, userID).Delete(&models.TrackLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.TrackLike{VersionID: versionID, UserID: userID})
			if ins.Error != nil {
				return ins.Error
			}
			state.Liked = true
		}
		return tx.Model(&models.TrackLike{}).Where("version_id = ?", versionID).Count(&state.Count).Error
	})
	if err != nil {
		return LikeState{}, fmt.Errorf("toggle like: %w", err)
	}

	if state.Liked && s.notifier != nil && v.OwnerID != userID {
		_, err := s.notifier.Notify(ctx, notifications.Notification{
			UserID: v.OwnerID,
			Type:   models.NotificationTrackLiked,
			Title:  "New like",
			Body:   v.Title,
			Href:   "/artist/projects/" + v.ProjectID,
			Data:   map[string]any{"version_id": versionID},
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("version_id", versionID).Msg("like notification failed")
		}
	}
	return state, nil
}

// ParseIDs splits a comma separated id list, dropping blanks and duplicates.
func ParseIDs(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Likes returns the like state of each version. userID may be empty for
// anonymous callers, in which case nothing is liked.
func (s *Service) Likes(ctx context.Context, userID string, versionIDs []string) (map[string]LikeState, error) {
	out := make(map[string]LikeState, len(versionIDs))
	if len(versionIDs) == 0 {
		return out, nil
	}
	if len(versionIDs) > MaxLikeLookup {
		return nil, fmt.Errorf("%w: too many version ids", models.ErrInvalidInput)
	}

	var counts []struct {
		VersionID string
		N         int64
	}
	if err := s.db.WithContext(ctx).Model(&models.TrackLike{}).
		Select("version_id, COUNT(*) AS n").
		Where("version_id IN ?", versionIDs).
		Group("version_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}

	liked := map[string]bool{}
	if userID != "" {
		var ids []string
		if err := s.db.WithContext(ctx).Model(&models.TrackLike{}).
			Where("user_id = ? AND version_id IN ?", userID, versionIDs).
			Pluck("version_id", &ids).Error; err != nil {
			return nil, fmt.Errorf("read user likes: %w", err)
		}
		for _, id := range ids {
			liked[id] = true
		}
	}

	for _, id := range versionIDs {
		out[id] = LikeState{Liked: liked[id]}
	}
	for _, c := range counts {
		st := out[c.VersionID]
		st.Count = c.N
		out[c.VersionID] = st
	}
	return out, nil
}

// NewVisitorID returns a fresh anonymous visitor id.
func NewVisitorID() string { return uuid.NewString() }

// RecordPlay stores a play unless the same visitor played the version
// within the play window. It reports whether a row was inserted.
func (s *Service) RecordPlay(ctx context.Context, versionID, visitorID, userID string) (bool, error) {
	if visitorID == "" {
		return false, fmt.Errorf("%w: visitor missing", models.ErrInvalidInput)
	}
	if _, err := s.version(ctx, versionID); err != nil {
		return false, err
	}

	now := s.now().UTC()
	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recent int64
		if err := tx.Model(&models.TrackPlay{}).
			Where("version_id = ? AND visitor_id = ? AND created_at > ?", versionID, visitorID, now.Add(-s.playWindow)).
			Count(&recent).Error; err != nil {
			return err
		}
		if recent > 0 {
			return nil
		}
		play := models.TrackPlay{VersionID: versionID, VisitorID: visitorID, CreatedAt: now}
		if userID != "" {
			play.UserID = &userID
		}
		if err := tx.Create(&play).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("record play: %w", err)
	}
	return inserted, nil
}

// SignedURL returns a cached signed link to a version's audio. Public
// versions are open to everyone; others need the owner or a collaborator.
func (s *Service) SignedURL(ctx context.Context, userID, versionID string) (storage.SignedURL, error) {
	v, err := s.version(ctx, versionID)
	if err != nil {
		return storage.SignedURL{}, err
	}
	if !v.HasAudio() {
		return storage.SignedURL{}, models.ErrNotFound
	}
	if v.Visibility != models.VisibilityPublic && v.OwnerID != userID {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.ProjectCollaborator{}).
			Where("project_id = ? AND user_id = ?", v.ProjectID, userID).
			Count(&n).Error; err != nil {
			return storage.SignedURL{}, err
		}
		if n == 0 {
			return storage.SignedURL{}, models.ErrForbidden
		}
	}
	return s.urls.Get(ctx, v.ID, v.StoragePath())
}
