/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package artists computes artist ranks and keeps external artist metrics
// fresh through the sync queue.
package artists

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/tekkin/internal/cache"
	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/scoring"
	"github.com/friendsincode/tekkin/internal/spotify"
	"github.com/friendsincode/tekkin/internal/telemetry"
)

// Queue tuning.
const (
	SyncBatchLimit = 50
	SyncDoneDelay  = 24 * time.Hour
	SyncErrorDelay = 6 * time.Hour
)

// MetricsSource fetches catalog metrics for a Spotify artist id.
type MetricsSource interface {
	Artist(ctx context.Context, spotifyID string) (*spotify.ArtistMetrics, error)
}

// Service implements artist ranking and metric sync.
type Service struct {
	db      *gorm.DB
	source  MetricsSource
	cache   *cache.Cache
	bus     events.Broker
	logger  zerolog.Logger
	now     func() time.Time
	batchSz int
}

// NewService creates an artist service. source, cache and bus may be nil.
func NewService(db *gorm.DB, source MetricsSource, c *cache.Cache, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		source:  source,
		cache:   c,
		bus:     bus,
		logger:  logger.With().Str("component", "artists").Logger(),
		now:     time.Now,
		batchSz: SyncBatchLimit,
	}
}

// RankView is an artist with both rank flavours and the metrics behind them.
type RankView struct {
	Artist      models.Artist              `json:"artist"`
	Rank        scoring.ArtistRank         `json:"rank"`
	MetricsRank scoring.ArtistRank         `json:"metrics_rank"`
	Metrics     *models.ArtistMetricsDaily `json:"metrics"`
}

func toFloat(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// Rank builds the rank view of an artist from its latest daily metrics.
func (s *Service) Rank(ctx context.Context, artistID string) (*RankView, error) {
	var cached RankView
	if s.cache.GetArtistRank(ctx, artistID, &cached) {
		return &cached, nil
	}

	var artist models.Artist
	if err := s.db.WithContext(ctx).First(&artist, "id = ?", artistID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load artist: %w", err)
	}

	latest, err := s.latestMetrics(ctx, artistID, s.now())
	if err != nil {
		return nil, err
	}
	view := &RankView{Artist: artist, Metrics: latest}

	if latest == nil {
		view.MetricsRank = scoring.FallbackRank()
	} else {
		view.MetricsRank = scoring.CalculateArtistRankFromMetrics(&scoring.DailyMetrics{
			SpotifyFollowers:        toFloat(latest.SpotifyFollowers),
			SpotifyMonthlyListeners: toFloat(latest.SpotifyMonthlyListeners),
			SpotifyPopularity:       toFloat(latest.SpotifyPopularity),
			BeatportCharts:          toFloat(latest.BeatportCharts),
			BeatportHypeCharts:      toFloat(latest.BeatportHypeCharts),
			ShowsLast90Days:         toFloat(latest.ShowsLast90Days),
		})
	}

	in := &scoring.ArtistMetrics{}
	if latest != nil {
		in.SpotifyFollowers = toFloat(latest.SpotifyFollowers)
		in.SpotifyPopularity = toFloat(latest.SpotifyPopularity)
		in.ReleasesLast12m = toFloat(latest.ReleasesLast12m)
		in.TotalReleases = toFloat(latest.TotalReleases)
		past, err := s.latestMetrics(ctx, artistID, latest.CollectedAt.AddDate(0, 0, -30))
		if err != nil {
			return nil, err
		}
		if past != nil {
			in.SpotifyFollowers30dAgo = toFloat(past.SpotifyFollowers)
		}
	}
	if artist.UserID != "" {
		var analyzed int64
		err := s.db.WithContext(ctx).Model(&models.ProjectVersion{}).
			Joins("JOIN projects ON projects.id = project_versions.project_id").
			Where("projects.user_id = ? AND project_versions.overall_score IS NOT NULL", artist.UserID).
			Count(&analyzed).Error
		if err != nil {
			return nil, fmt.Errorf("count analyzed versions: %w", err)
		}
		n := float64(analyzed)
		in.AnalyzedVersions = &n
	}
	view.Rank = scoring.ComputeArtistRank(in)

	_ = s.cache.SetArtistRank(ctx, artistID, view)
	return view, nil
}

// latestMetrics returns the newest sample collected at or before t.
func (s *Service) latestMetrics(ctx context.Context, artistID string, t time.Time) (*models.ArtistMetricsDaily, error) {
	var m models.ArtistMetricsDaily
	err := s.db.WithContext(ctx).
		Where("artist_id = ? AND collected_at <= ?", artistID, t).
		Order("collected_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load artist metrics: %w", err)
	}
	return &m, nil
}

// Enqueue schedules an immediate sync for an artist. An existing job is
// reset to pending.
func (s *Service) Enqueue(ctx context.Context, artistID string, priority int) error {
	job := models.ArtistSyncJob{ArtistID: artistID, Status: models.SyncPending, Priority: priority, NextRunAt: s.now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "artist_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "priority", "next_run_at"}),
	}).Create(&job).Error
	if err != nil {
		return fmt.Errorf("enqueue artist sync: %w", err)
	}
	return nil
}

// SyncError reports one failed job.
type SyncError struct {
	ArtistID string `json:"artist_id"`
	Error    string `json:"error"`
}

// SyncResult summarizes a sync batch.
type SyncResult struct {
	Processed int         `json:"processed"`
	Errors    []SyncError `json:"errors"`
	Message   string      `json:"message,omitempty"`
}

// SyncDue processes up to SyncBatchLimit due jobs, lowest priority value
// first. Finished and failed jobs come back once their next_run_at passes.
func (s *Service) SyncDue(ctx context.Context) (*SyncResult, error) {
	now := s.now().UTC()
	var jobs []models.ArtistSyncJob
	err := s.db.WithContext(ctx).
		Where("status IN ? AND next_run_at <= ?", []string{models.SyncPending, models.SyncDone, models.SyncError}, now).
		Order("priority ASC, next_run_at ASC").
		Limit(s.batchSz).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("read sync queue: %w", err)
	}
	res := &SyncResult{Errors: []SyncError{}}
	if len(jobs) == 0 {
		res.Message = "No pending jobs"
		return res, nil
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		claimed := s.db.WithContext(ctx).Model(&models.ArtistSyncJob{}).
			Where("id = ? AND status = ?", job.ID, job.Status).
			Updates(map[string]any{"status": models.SyncRunning, "last_run_at": now})
		if claimed.Error != nil {
			return res, fmt.Errorf("claim sync job: %w", claimed.Error)
		}
		if claimed.RowsAffected == 0 {
			continue
		}

		if err := s.syncArtist(ctx, job.ArtistID); err != nil {
			telemetry.ArtistSyncTotal.WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Str("artist_id", job.ArtistID).Msg("artist sync failed")
			res.Errors = append(res.Errors, SyncError{ArtistID: job.ArtistID, Error: err.Error()})
			s.finishJob(ctx, job.ID, models.SyncError, err.Error(), now.Add(SyncErrorDelay))
			continue
		}
		telemetry.ArtistSyncTotal.WithLabelValues("ok").Inc()
		s.finishJob(ctx, job.ID, models.SyncDone, "", now.Add(SyncDoneDelay))
		res.Processed++
	}
	return res, nil
}

func (s *Service) finishJob(ctx context.Context, id, status, lastErr string, next time.Time) {
	err := s.db.WithContext(ctx).Model(&models.ArtistSyncJob{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "last_error": lastErr, "next_run_at": next}).Error
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", id).Msg("failed to update sync job")
	}
}

// syncArtist pulls fresh Spotify figures and stores a daily sample. Signals
// Spotify cannot provide are carried over from the previous sample.
func (s *Service) syncArtist(ctx context.Context, artistID string) error {
	var artist models.Artist
	if err := s.db.WithContext(ctx).First(&artist, "id = ?", artistID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("artist %s: %w", artistID, models.ErrNotFound)
		}
		return fmt.Errorf("load artist: %w", err)
	}
	if artist.SpotifyID == "" {
		return fmt.Errorf("%w: artist has no spotify id", models.ErrInvalidInput)
	}
	if s.source == nil {
		return spotify.ErrNotConfigured
	}
	m, err := s.source.Artist(ctx, artist.SpotifyID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	prev, err := s.latestMetrics(ctx, artistID, now)
	if err != nil {
		return err
	}
	sample := models.ArtistMetricsDaily{
		ArtistID:          artistID,
		SpotifyFollowers:  &m.Followers,
		SpotifyPopularity: &m.Popularity,
		TotalReleases:     &m.TotalReleases,
		ReleasesLast12m:   &m.ReleasesLast12m,
		CollectedAt:       now,
	}
	if prev != nil {
		sample.SpotifyMonthlyListeners = prev.SpotifyMonthlyListeners
		sample.BeatportCharts = prev.BeatportCharts
		sample.BeatportHypeCharts = prev.BeatportHypeCharts
		sample.ShowsLast90Days = prev.ShowsLast90Days
	}
	if err := s.db.WithContext(ctx).Create(&sample).Error; err != nil {
		return fmt.Errorf("insert artist metrics: %w", err)
	}

	if err := s.cache.InvalidateArtistRank(ctx, artistID); err != nil {
		s.logger.Debug().Err(err).Msg("artist rank cache invalidation failed")
	}
	if s.bus != nil {
		s.bus.Publish(events.EventArtistMetrics, events.Payload{"artist_id": artistID})
	}
	return nil
}

// RecordShows stores the number of shows played in the last 90 days on
// today's sample, creating one when needed.
func (s *Service) RecordShows(ctx context.Context, artistID string, shows int64) error {
	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	res := s.db.WithContext(ctx).Model(&models.ArtistMetricsDaily{}).
		Where("artist_id = ? AND collected_at >= ?", artistID, day).
		Update("shows_last_90_days", shows)
	if res.Error != nil {
		return fmt.Errorf("record shows: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		prev, err := s.latestMetrics(ctx, artistID, now)
		if err != nil {
			return err
		}
		sample := models.ArtistMetricsDaily{ArtistID: artistID, ShowsLast90Days: &shows, CollectedAt: now}
		if prev != nil {
			sample = *prev
			sample.ID = ""
			sample.ShowsLast90Days = &shows
			sample.CollectedAt = now
		}
		if err := s.db.WithContext(ctx).Create(&sample).Error; err != nil {
			return fmt.Errorf("record shows: %w", err)
		}
	}
	if err := s.cache.InvalidateArtistRank(ctx, artistID); err != nil {
		s.logger.Debug().Err(err).Msg("artist rank cache invalidation failed")
	}
	return nil
}
