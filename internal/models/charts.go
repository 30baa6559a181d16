/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Chart profile keys.
const (
	ChartProfileGlobal  = "global"
	ChartProfileQuality = "quality"
)

// CuratedPlaylist is an admin-maintained chart playlist.
type CuratedPlaylist struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Slug        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	CoverURL    string         `gorm:"type:text" json:"cover_url,omitempty"`
	OrderIndex  int            `gorm:"default:0" json:"order_index"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	Genres      pq.StringArray `gorm:"type:text" json:"genres"`
	Filters     map[string]any `gorm:"type:text;serializer:json" json:"filters,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName keeps the historical table name.
func (CuratedPlaylist) TableName() string { return "tekkin_charts_curated_playlists" }

// BeforeCreate assigns an id when missing.
func (p *CuratedPlaylist) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// RankConfig is the scoring configuration stored on a rank profile version.
type RankConfig struct {
	Weights          map[string]float64 `json:"weights,omitempty"`
	Refs             map[string]float64 `json:"refs,omitempty"`
	PublicMultiplier *float64           `json:"public_multiplier,omitempty"`
}

// RankProfileVersion is one published revision of a chart scoring profile.
type RankProfileVersion struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProfileKey  string     `gorm:"type:varchar(32);index;not null" json:"profile_key"`
	Config      RankConfig `gorm:"type:text;serializer:json" json:"config"`
	IsPublished bool       `gorm:"index" json:"is_published"`
	CreatedAt   time.Time  `json:"created_at"`
}

// BeforeCreate assigns an id when missing.
func (r *RankProfileVersion) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ChartMetric is the per-version aggregate used by the chart rebuild.
type ChartMetric struct {
	VersionID      string     `gorm:"type:varchar(36);primaryKey" json:"version_id"`
	ProjectID      string     `gorm:"type:varchar(36);index" json:"project_id"`
	ArtistID       string     `gorm:"type:varchar(36);index" json:"artist_id"`
	AnalyzerScore  float64    `json:"analyzer_score"`
	LikesTotal     int64      `json:"likes_total"`
	PlaysTotal     int64      `json:"plays_total"`
	DownloadsTotal int64      `json:"downloads_total"`
	Visibility     string     `gorm:"type:varchar(32)" json:"visibility"`
	ReleaseDate    *time.Time `json:"release_date,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ChartSnapshot is one ranked row of a weekly chart.
type ChartSnapshot struct {
	ID               string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProfileKey       string    `gorm:"type:varchar(32);index:idx_snapshot_period;not null" json:"profile_key"`
	ProfileVersionID string    `gorm:"type:varchar(36)" json:"profile_version_id"`
	PeriodStart      time.Time `gorm:"type:date;index:idx_snapshot_period" json:"period_start"`
	PeriodEnd        time.Time `gorm:"type:date" json:"period_end"`
	RankPosition     int       `json:"rank_position"`
	ProjectID        string    `gorm:"type:varchar(36)" json:"project_id"`
	VersionID        string    `gorm:"type:varchar(36)" json:"version_id"`
	ArtistID         string    `gorm:"type:varchar(36)" json:"artist_id"`
	Score            float64   `json:"score"`
	ScorePublic      float64   `json:"score_public"`
	TrackTitle       string    `gorm:"type:varchar(255)" json:"track_title"`
	ArtistName       string    `gorm:"type:varchar(255)" json:"artist_name"`
	CoverURL         string    `gorm:"type:text" json:"cover_url,omitempty"`
	AudioURL         string    `gorm:"type:text" json:"audio_url,omitempty"`
	MixType          string    `gorm:"type:varchar(16)" json:"mix_type,omitempty"`
	Genre            string    `gorm:"type:varchar(64)" json:"genre,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// BeforeCreate assigns an id when missing.
func (s *ChartSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
