/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/storage"
)

// InboxFilter narrows the inbox by the attached discovery track.
type InboxFilter struct {
	Kind      string
	Genre     string
	HasVocals *bool
	MinScore  *float64
}

// InboxItem is a pending request as the receiver sees it. It carries no
// sender information.
type InboxItem struct {
	RequestID    string   `json:"request_id"`
	Kind         string   `json:"kind"`
	ProjectID    string   `json:"project_id"`
	Genre        string   `json:"genre,omitempty"`
	OverallScore *float64 `json:"overall_score"`
	HasVocals    bool     `json:"has_vocals"`
	Message      string   `json:"message,omitempty"`
}

// Inbox lists the pending requests addressed to userID. Requests whose
// project has no discovery track, or whose track fails the filter, are
// left out.
func (s *Service) Inbox(ctx context.Context, userID string, f InboxFilter) ([]InboxItem, error) {
	q := s.db.WithContext(ctx).Where("receiver_id = ? AND status = ?", userID, models.DiscoveryPending)
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	var requests []models.DiscoveryRequest
	if err := q.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}
	if len(requests) == 0 {
		return []InboxItem{}, nil
	}

	tq := s.db.WithContext(ctx).Where("project_id IN ?", projectIDs(requests))
	if f.Genre != "" {
		tq = tq.Where("genre = ?", f.Genre)
	}
	if f.HasVocals != nil {
		tq = tq.Where("has_vocals = ?", *f.HasVocals)
	}
	if f.MinScore != nil {
		tq = tq.Where("overall_score >= ?", *f.MinScore)
	}
	var tracks []models.DiscoveryTrack
	if err := tq.Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("load discovery tracks: %w", err)
	}
	byProject := make(map[string]models.DiscoveryTrack, len(tracks))
	for _, t := range tracks {
		byProject[t.ProjectID] = t
	}

	out := make([]InboxItem, 0, len(requests))
	for _, r := range requests {
		t, ok := byProject[r.ProjectID]
		if !ok {
			continue
		}
		out = append(out, InboxItem{
			RequestID:    r.ID,
			Kind:         r.Kind,
			ProjectID:    r.ProjectID,
			Genre:        t.Genre,
			OverallScore: t.OverallScore,
			HasVocals:    t.HasVocals,
			Message:      r.Message,
		})
	}
	return out, nil
}

// OutboxItem is a sent request with the project, track and receiver.
type OutboxItem struct {
	RequestID      string   `json:"request_id"`
	Kind           string   `json:"kind"`
	ProjectID      string   `json:"project_id"`
	ProjectTitle   string   `json:"project_title"`
	Status         string   `json:"status"`
	ReceiverID     string   `json:"receiver_id"`
	ReceiverName   *string  `json:"receiver_name"`
	ReceiverAvatar *string  `json:"receiver_avatar"`
	Genre          *string  `json:"genre"`
	OverallScore   *float64 `json:"overall_score"`
	HasVocals      *bool    `json:"has_vocals"`
	AudioURL       *string  `json:"audio_url"`
	Message        string   `json:"message,omitempty"`
}

// OutboxFilter narrows the outbox.
type OutboxFilter struct {
	Kind   string
	Status string
}

// Outbox lists the requests sent by userID, newest first.
func (s *Service) Outbox(ctx context.Context, userID string, f OutboxFilter) ([]OutboxItem, error) {
	q := s.db.WithContext(ctx).Where("sender_id = ?", userID)
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var requests []models.DiscoveryRequest
	if err := q.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}
	if len(requests) == 0 {
		return []OutboxItem{}, nil
	}
	ids := projectIDs(requests)

	var projects []models.Project
	if err := s.db.WithContext(ctx).Select("id", "title").Where("id IN ?", ids).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	titles := make(map[string]string, len(projects))
	for _, p := range projects {
		titles[p.ID] = p.Title
	}

	var tracks []models.DiscoveryTrack
	if err := s.db.WithContext(ctx).Where("project_id IN ?", ids).Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("load discovery tracks: %w", err)
	}
	trackByProject := make(map[string]models.DiscoveryTrack, len(tracks))
	for _, t := range tracks {
		trackByProject[t.ProjectID] = t
	}

	// Latest version per project backs requests without a discovery track.
	var versions []models.ProjectVersion
	if err := s.db.WithContext(ctx).Select("id", "project_id", "audio_path", "audio_url", "overall_score", "created_at").
		Where("project_id IN ?", ids).Order("created_at DESC").Find(&versions).Error; err != nil {
		s.logger.Warn().Err(err).Msg("outbox version fallback failed")
	}
	versionByProject := make(map[string]models.ProjectVersion)
	for _, v := range versions {
		if _, seen := versionByProject[v.ProjectID]; !seen {
			versionByProject[v.ProjectID] = v
		}
	}

	receivers, err := s.profiles(ctx, receiverIDs(requests))
	if err != nil {
		return nil, err
	}

	out := make([]OutboxItem, 0, len(requests))
	for _, r := range requests {
		title := titles[r.ProjectID]
		if title == "" {
			title = "Project"
		}
		item := OutboxItem{
			RequestID:    r.ID,
			Kind:         r.Kind,
			ProjectID:    r.ProjectID,
			ProjectTitle: title,
			Status:       r.Status,
			ReceiverID:   r.ReceiverID,
			Message:      r.Message,
		}
		if p, ok := receivers[r.ReceiverID]; ok {
			item.ReceiverName = &p.ArtistName
			if p.AvatarURL != "" {
				item.ReceiverAvatar = &p.AvatarURL
			}
		}
		if t, ok := trackByProject[r.ProjectID]; ok {
			genre, vocals := t.Genre, t.HasVocals
			item.Genre, item.HasVocals, item.OverallScore = &genre, &vocals, t.OverallScore
			item.AudioURL = s.audioURL(ctx, "discovery:"+t.ID, t.AudioPath)
		} else if v, ok := versionByProject[r.ProjectID]; ok {
			item.OverallScore = v.OverallScore
			item.AudioURL = s.audioURL(ctx, v.ID, v.StoragePath())
		}
		out = append(out, item)
	}
	return out, nil
}

// audioURL signs a stored path through the cache. Absolute links pass
// through unchanged.
func (s *Service) audioURL(ctx context.Context, cacheKey, raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return &raw
	}
	if s.urls == nil {
		return nil
	}
	signed, err := s.urls.Get(ctx, cacheKey, storage.NormalizePath(raw))
	if err != nil {
		s.logger.Warn().Err(err).Str("key", cacheKey).Msg("signing discovery audio failed")
		return nil
	}
	return &signed.URL
}

// ReportItem is one request in a project report.
type ReportItem struct {
	RequestID      string     `json:"request_id"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	ReceiverID     string     `json:"receiver_id"`
	ReceiverName   *string    `json:"receiver_name"`
	ReceiverAvatar *string    `json:"receiver_avatar"`
	Message        string     `json:"message,omitempty"`
	RevealedAt     *time.Time `json:"revealed_at,omitempty"`
}

// Report records a report about an owned project and returns the
// requests the owner sent for it.
func (s *Service) Report(ctx context.Context, userID, projectID, reason string) ([]ReportItem, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project_id missing", models.ErrInvalidInput)
	}
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if project.UserID != userID {
		return nil, models.ErrForbidden
	}

	if reason = strings.TrimSpace(reason); reason != "" {
		if err := s.db.WithContext(ctx).Create(&models.DiscoveryReport{
			ReporterID: userID,
			ProjectID:  projectID,
			Reason:     reason,
		}).Error; err != nil {
			return nil, fmt.Errorf("save report: %w", err)
		}
	}

	var requests []models.DiscoveryRequest
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND sender_id = ?", projectID, userID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}
	receivers, err := s.profiles(ctx, receiverIDs(requests))
	if err != nil {
		return nil, err
	}

	out := make([]ReportItem, 0, len(requests))
	for _, r := range requests {
		item := ReportItem{
			RequestID:  r.ID,
			Kind:       r.Kind,
			Status:     r.Status,
			ReceiverID: r.ReceiverID,
			Message:    r.Message,
		}
		if p, ok := receivers[r.ReceiverID]; ok {
			item.ReceiverName = &p.ArtistName
			if p.AvatarURL != "" {
				item.ReceiverAvatar = &p.AvatarURL
			}
		}
		item.RevealedAt = r.RevealedAt
		out = append(out, item)
	}
	return out, nil
}

func (s *Service) profiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Profile
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func projectIDs(reqs []models.DiscoveryRequest) []string {
	return unique(reqs, func(r models.DiscoveryRequest) string { return r.ProjectID })
}

func receiverIDs(reqs []models.DiscoveryRequest) []string {
	return unique(reqs, func(r models.DiscoveryRequest) string { return r.ReceiverID })
}

func unique(reqs []models.DiscoveryRequest, key func(models.DiscoveryRequest) string) []string {
	seen := make(map[string]struct{}, len(reqs))
	var out []string
	for _, r := range reqs {
		k := key(r)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
