/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package charts builds the weekly track charts and serves curated playlists.
package charts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/tekkin/internal/cache"
	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/scoring"
	"github.com/friendsincode/tekkin/internal/telemetry"
)

// Snapshot sizes per profile.
const (
	GlobalLimit  = 100
	QualityLimit = 10
)

const dateLayout = "2006-01-02"

// ErrMissingProfiles is returned when a rebuild finds no published
// global or quality rank profile.
var ErrMissingProfiles = errors.New("missing published rank profile versions")

// Service rebuilds and reads chart snapshots.
type Service struct {
	db     *gorm.DB
	cache  *cache.Cache
	bus    events.Broker
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a chart service. cache and bus may be nil.
func NewService(db *gorm.DB, c *cache.Cache, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  c,
		bus:    bus,
		logger: logger.With().Str("component", "charts").Logger(),
		now:    time.Now,
	}
}

// RebuildResult summarizes one rebuild.
type RebuildResult struct {
	OK               bool   `json:"ok"`
	PeriodStart      string `json:"period_start"`
	PeriodEnd        string `json:"period_end"`
	MetricsUpserted  int    `json:"metrics_upserted"`
	SnapshotsWritten int    `json:"snapshots_written"`
}

type candidate struct {
	version   models.ProjectVersion
	project   models.Project
	artist    string
	counters  scoring.ChartCounters
	createdAt time.Time
}

type scored struct {
	c      *candidate
	score  float64
	public int64
}

func (s *Service) latestProfile(ctx context.Context, key string) (*models.RankProfileVersion, error) {
	var pv models.RankProfileVersion
	err := s.db.WithContext(ctx).
		Where("profile_key = ? AND is_published = ?", key, true).
		Order("created_at DESC").
		First(&pv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s profile: %w", key, err)
	}
	return &pv, nil
}

type countRow struct {
	VersionID string
	Total     int64
}

func (s *Service) countBy(ctx context.Context, table string) (map[string]int64, error) {
	var rows []countRow
	err := s.db.WithContext(ctx).Table(table).
		Select("version_id, COUNT(*) AS total").
		Group("version_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.VersionID] = r.Total
	}
	return out, nil
}

// candidates returns the latest version of every project with its totals.
func (s *Service) candidates(ctx context.Context) ([]*candidate, error) {
	var versions []models.ProjectVersion
	if err := s.db.WithContext(ctx).Order("project_id, created_at DESC").Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("load versions: %w", err)
	}
	latest := make(map[string]models.ProjectVersion)
	var projectIDs []string
	for _, v := range versions {
		if _, seen := latest[v.ProjectID]; seen {
			continue
		}
		latest[v.ProjectID] = v
		projectIDs = append(projectIDs, v.ProjectID)
	}
	if len(projectIDs) == 0 {
		return nil, nil
	}

	var projects []models.Project
	if err := s.db.WithContext(ctx).Where("id IN ?", projectIDs).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	var ownerIDs []string
	for _, p := range projects {
		ownerIDs = append(ownerIDs, p.UserID)
	}
	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Where("id IN ?", ownerIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.ArtistName
	}

	likes, err := s.countBy(ctx, "track_likes")
	if err != nil {
		return nil, err
	}
	plays, err := s.countBy(ctx, "track_plays")
	if err != nil {
		return nil, err
	}
	var metrics []models.ChartMetric
	if err := s.db.WithContext(ctx).Select("version_id, downloads_total").Find(&metrics).Error; err != nil {
		return nil, fmt.Errorf("load chart metrics: %w", err)
	}
	downloads := make(map[string]int64, len(metrics))
	for _, m := range metrics {
		downloads[m.VersionID] = m.DownloadsTotal
	}

	out := make([]*candidate, 0, len(projects))
	for _, p := range projects {
		v := latest[p.ID]
		if p.UserID == "" {
			return nil, fmt.Errorf("project %s has no owner", p.ID)
		}
		var analyzer float64
		if v.OverallScore != nil {
			analyzer = *v.OverallScore
		}
		out = append(out, &candidate{
			version: v,
			project: p,
			artist:  names[p.UserID],
			counters: scoring.ChartCounters{
				AnalyzerScore: analyzer,
				Likes:         likes[v.ID],
				Plays:         plays[v.ID],
				Downloads:     downloads[v.ID],
			},
			createdAt: v.CreatedAt,
		})
	}
	return out, nil
}

func rank(cands []*candidate, limit int, score func(*candidate) float64, multiplier *float64) []scored {
	var list []scored
	for _, c := range cands {
		if c.version.Visibility != models.VisibilityPublic {
			continue
		}
		sc := score(c)
		list = append(list, scored{c: c, score: sc, public: scoring.PublicScore(sc, multiplier)})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].c.createdAt.After(list[j].c.createdAt)
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

func snapshotRows(profile *models.RankProfileVersion, list []scored, start, end time.Time) []models.ChartSnapshot {
	rows := make([]models.ChartSnapshot, 0, len(list))
	for i, e := range list {
		mix := e.c.version.MixType
		if mix == "" {
			mix = e.c.project.MixType
		}
		audio := e.c.version.AudioURL
		if audio == "" {
			audio = e.c.version.AudioPath
		}
		rows = append(rows, models.ChartSnapshot{
			ProfileKey:       profile.ProfileKey,
			ProfileVersionID: profile.ID,
			PeriodStart:      start,
			PeriodEnd:        end,
			RankPosition:     i + 1,
			ProjectID:        e.c.project.ID,
			VersionID:        e.c.version.ID,
			ArtistID:         e.c.project.UserID,
			Score:            e.score,
			ScorePublic:      float64(e.public),
			TrackTitle:       e.c.project.Title,
			ArtistName:       e.c.artist,
			CoverURL:         e.c.project.CoverURL,
			AudioURL:         audio,
			MixType:          mix,
			Genre:            e.c.project.Genre,
		})
	}
	return rows
}

// Rebuild recomputes chart metrics and replaces this week's snapshots.
func (s *Service) Rebuild(ctx context.Context) (*RebuildResult, error) {
	ctx, end := telemetry.StartSpan(ctx, "charts.rebuild")
	res, err := s.rebuild(ctx)
	end(err)
	if err != nil {
		telemetry.ChartRebuildsTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("chart rebuild failed")
		return nil, err
	}
	telemetry.ChartRebuildsTotal.WithLabelValues("ok").Inc()
	return res, nil
}

func (s *Service) rebuild(ctx context.Context) (*RebuildResult, error) {
	now := s.now().UTC()
	start, end := scoring.WeekBounds(now)

	global, err := s.latestProfile(ctx, models.ChartProfileGlobal)
	if err != nil {
		return nil, err
	}
	quality, err := s.latestProfile(ctx, models.ChartProfileQuality)
	if err != nil {
		return nil, err
	}
	if global == nil || quality == nil {
		return nil, ErrMissingProfiles
	}

	cands, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}

	weights := scoring.DefaultChartWeights().WithOverrides(global.Config.Weights, global.Config.Refs)
	globalRows := snapshotRows(global, rank(cands, GlobalLimit, func(c *candidate) float64 {
		return scoring.GlobalChartScore(c.counters, weights)
	}, global.Config.PublicMultiplier), start, end)
	qualityRows := snapshotRows(quality, rank(cands, QualityLimit, func(c *candidate) float64 {
		return scoring.QualityChartScore(c.counters)
	}, quality.Config.PublicMultiplier), start, end)

	metrics := make([]models.ChartMetric, 0, len(cands))
	for _, c := range cands {
		created := c.createdAt.UTC()
		release := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
		metrics = append(metrics, models.ChartMetric{
			VersionID:      c.version.ID,
			ProjectID:      c.project.ID,
			ArtistID:       c.project.UserID,
			AnalyzerScore:  c.counters.AnalyzerScore,
			LikesTotal:     c.counters.Likes,
			PlaysTotal:     c.counters.Plays,
			DownloadsTotal: c.counters.Downloads,
			Visibility:     c.version.Visibility,
			ReleaseDate:    &release,
			UpdatedAt:      now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(metrics) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "version_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"project_id", "artist_id", "analyzer_score", "likes_total", "plays_total",
					"downloads_total", "visibility", "release_date", "updated_at",
				}),
			}).CreateInBatches(metrics, 200).Error
			if err != nil {
				return fmt.Errorf("upsert chart metrics: %w", err)
			}
		}
		err := tx.Where("period_start = ? AND period_end = ? AND profile_key IN ?",
			start, end, []string{models.ChartProfileGlobal, models.ChartProfileQuality}).
			Delete(&models.ChartSnapshot{}).Error
		if err != nil {
			return fmt.Errorf("clear snapshots: %w", err)
		}
		rows := append(globalRows, qualityRows...)
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return fmt.Errorf("insert snapshots: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.ChartSnapshotRows.WithLabelValues(models.ChartProfileGlobal).Set(float64(len(globalRows)))
	telemetry.ChartSnapshotRows.WithLabelValues(models.ChartProfileQuality).Set(float64(len(qualityRows)))

	if err := s.cache.InvalidateCharts(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("chart cache invalidation failed")
	}
	res := &RebuildResult{
		OK:               true,
		PeriodStart:      start.Format(dateLayout),
		PeriodEnd:        end.Format(dateLayout),
		MetricsUpserted:  len(metrics),
		SnapshotsWritten: len(globalRows) + len(qualityRows),
	}
	if s.bus != nil {
		s.bus.Publish(events.EventChartsRebuilt, events.Payload{
			"period_start": res.PeriodStart,
			"snapshots":    res.SnapshotsWritten,
		})
	}
	s.logger.Info().
		Str("period_start", res.PeriodStart).
		Int("metrics", res.MetricsUpserted).
		Int("snapshots", res.SnapshotsWritten).
		Msg("charts rebuilt")
	return res, nil
}

// SnapshotPage is one chart as served to clients.
type SnapshotPage struct {
	ProfileKey  string                 `json:"profile_key"`
	PeriodStart string                 `json:"period_start,omitempty"`
	PeriodEnd   string                 `json:"period_end,omitempty"`
	Items       []models.ChartSnapshot `json:"items"`
}

// Snapshot returns the chart of the current week for a profile. When the
// week has not been built yet the most recent period is served instead.
func (s *Service) Snapshot(ctx context.Context, profileKey string) (*SnapshotPage, error) {
	if profileKey == "" {
		profileKey = models.ChartProfileGlobal
	}
	if profileKey != models.ChartProfileGlobal && profileKey != models.ChartProfileQuality {
		return nil, fmt.Errorf("%w: unknown chart profile %q", models.ErrInvalidInput, profileKey)
	}
	start, _ := scoring.WeekBounds(s.now())
	period := start.Format(dateLayout)

	var page SnapshotPage
	if s.cache.GetChartSnapshot(ctx, profileKey, period, &page) {
		return &page, nil
	}

	var rows []models.ChartSnapshot
	err := s.db.WithContext(ctx).
		Where("profile_key = ? AND period_start = ?", profileKey, start).
		Order("rank_position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if len(rows) == 0 {
		var last models.ChartSnapshot
		err := s.db.WithContext(ctx).
			Where("profile_key = ?", profileKey).
			Order("period_start DESC").
			First(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load latest period: %w", err)
		}
		if err == nil {
			err = s.db.WithContext(ctx).
				Where("profile_key = ? AND period_start = ?", profileKey, last.PeriodStart).
				Order("rank_position ASC").
				Find(&rows).Error
			if err != nil {
				return nil, fmt.Errorf("load snapshot: %w", err)
			}
		}
	}

	page = SnapshotPage{ProfileKey: profileKey, Items: rows}
	if page.Items == nil {
		page.Items = []models.ChartSnapshot{}
	}
	if len(rows) > 0 {
		page.PeriodStart = rows[0].PeriodStart.Format(dateLayout)
		page.PeriodEnd = rows[0].PeriodEnd.Format(dateLayout)
	}
	_ = s.cache.SetChartSnapshot(ctx, profileKey, period, page)
	return &page, nil
}
