/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Artist links a profile to external catalog identities.
type Artist struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID          string    `gorm:"type:varchar(36);index" json:"user_id"`
	ArtistName      string    `gorm:"type:varchar(255)" json:"artist_name"`
	SpotifyID       string    `gorm:"type:varchar(64)" json:"spotify_id,omitempty"`
	BeatportURL     string    `gorm:"type:text" json:"beatport_url,omitempty"`
	BandsintownName string    `gorm:"type:varchar(255)" json:"bandsintown_name,omitempty"`
	Genre           string    `gorm:"type:varchar(64)" json:"genre,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id when missing.
func (a *Artist) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// ArtistMetricsDaily is one collected sample of external artist metrics.
type ArtistMetricsDaily struct {
	ID                      string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ArtistID                string    `gorm:"type:varchar(36);index:idx_artist_metrics_collected;not null" json:"artist_id"`
	SpotifyFollowers        *int64    `json:"spotify_followers"`
	SpotifyPopularity       *int64    `json:"spotify_popularity"`
	SpotifyMonthlyListeners *int64    `json:"spotify_monthly_listeners"`
	TotalReleases           *int64    `json:"total_releases"`
	ReleasesLast12m         *int64    `gorm:"column:releases_last_12m" json:"releases_last_12m"`
	BeatportCharts          *int64    `json:"beatport_charts"`
	BeatportHypeCharts      *int64    `json:"beatport_hype_charts"`
	ShowsLast90Days         *int64    `gorm:"column:shows_last_90_days" json:"shows_last_90_days"`
	CollectedAt             time.Time `gorm:"index:idx_artist_metrics_collected" json:"collected_at"`
}

// BeforeCreate assigns an id when missing.
func (m *ArtistMetricsDaily) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Sync job statuses.
const (
	SyncPending = "pending"
	SyncRunning = "running"
	SyncDone    = "done"
	SyncError   = "error"
)

// ArtistSyncJob schedules a metrics refresh for one artist.
type ArtistSyncJob struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	ArtistID  string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"artist_id"`
	Status    string     `gorm:"type:varchar(16);index;default:pending" json:"status"`
	Priority  int        `gorm:"default:0" json:"priority"`
	NextRunAt time.Time  `gorm:"index" json:"next_run_at"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `gorm:"type:text" json:"last_error,omitempty"`
}

// TableName keeps the historical table name.
func (ArtistSyncJob) TableName() string { return "artist_sync_queue" }

// BeforeCreate assigns an id when missing.
func (j *ArtistSyncJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// SpotlightEvent is an upcoming live show pulled from an events provider.
type SpotlightEvent struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Provider        string         `gorm:"type:varchar(32);uniqueIndex:idx_spotlight_provider_event;not null" json:"provider"`
	ProviderEventID string         `gorm:"type:varchar(255);uniqueIndex:idx_spotlight_provider_event;not null" json:"provider_event_id"`
	Artist          string         `gorm:"type:varchar(255);index" json:"artist"`
	Venue           string         `gorm:"type:varchar(255)" json:"venue,omitempty"`
	City            string         `gorm:"type:varchar(255)" json:"city,omitempty"`
	Country         string         `gorm:"type:varchar(128)" json:"country,omitempty"`
	EventDate       *time.Time     `gorm:"index" json:"event_date,omitempty"`
	EventURL        string         `gorm:"type:text" json:"event_url,omitempty"`
	ImageURL        string         `gorm:"type:text" json:"image_url,omitempty"`
	Raw             map[string]any `gorm:"type:text;serializer:json" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// BeforeCreate assigns an id when missing.
func (e *SpotlightEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
