/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package spotlight keeps a table of upcoming live shows for featured
// artists, pulled from Bandsintown.
package spotlight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/tekkin/internal/models"
)

// DefaultArtists are synced when neither the request nor the config names any.
var DefaultArtists = []string{"Cloonee", "Jamie Jones", "Ilario Alicante"}

// ProviderMock names the fixture event written by a mock sync.
const ProviderMock = "mock"

// ShowsWindow is the look-back used for an artist's recent show count.
const ShowsWindow = 90 * 24 * time.Hour

// EventSource lists the events of one artist.
type EventSource interface {
	Name() string
	Events(ctx context.Context, artist string) ([]models.SpotlightEvent, error)
}

// ShowRecorder stores an artist's recent show count.
type ShowRecorder interface {
	RecordShows(ctx context.Context, artistID string, shows int64) error
}

// Service syncs and lists spotlight events.
type Service struct {
	db       *gorm.DB
	source   EventSource
	shows    ShowRecorder
	defaults []string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a spotlight service. shows may be nil; defaults
// replaces DefaultArtists when non-empty.
func NewService(db *gorm.DB, source EventSource, shows ShowRecorder, defaults []string, logger zerolog.Logger) *Service {
	if len(defaults) == 0 {
		defaults = DefaultArtists
	}
	return &Service{
		db:       db,
		source:   source,
		shows:    shows,
		defaults: defaults,
		logger:   logger.With().Str("component", "spotlight").Logger(),
		now:      time.Now,
	}
}

// SyncInput selects what to sync.
type SyncInput struct {
	Artists []string `json:"artists"`
	Mock    bool     `json:"mock"`
}

// SyncResult reports a sync run.
type SyncResult struct {
	OK       bool              `json:"ok"`
	Reason   string            `json:"reason"`
	Inserted []string          `json:"inserted"`
	Skipped  []string          `json:"skipped"`
	Notes    map[string]string `json:"notes"`
}

func (s *Service) upsert(ctx context.Context, ev *models.SpotlightEvent) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"artist", "venue", "city", "country", "event_date", "event_url", "image_url", "raw", "updated_at",
		}),
	}).Create(ev).Error
}

// Sync pulls events for each artist and upserts them. A failing artist is
// noted and the run continues.
func (s *Service) Sync(ctx context.Context, in SyncInput) (*SyncResult, error) {
	res := &SyncResult{OK: true, Reason: "ok", Inserted: []string{}, Skipped: []string{}, Notes: map[string]string{}}

	if in.Mock {
		now := s.now().UTC()
		ev := &models.SpotlightEvent{
			Provider:        ProviderMock,
			ProviderEventID: "mock-1",
			Artist:          "Test Artist",
			Venue:           "Test Venue",
			City:            "Napoli",
			Country:         "IT",
			EventDate:       &now,
			EventURL:        "https://example.com",
			Raw:             map[string]any{"source": ProviderMock},
		}
		if err := s.upsert(ctx, ev); err != nil {
			res.OK, res.Reason = false, err.Error()
			return res, nil
		}
		res.Inserted = append(res.Inserted, ev.ProviderEventID)
		return res, nil
	}

	artists := cleanNames(in.Artists)
	if len(artists) == 0 {
		artists = s.defaults
	}
	if s.source == nil {
		res.OK, res.Reason = false, ErrMissingAppID.Error()
		return res, nil
	}

	for _, artist := range artists {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		evs, err := s.source.Events(ctx, artist)
		if err != nil {
			res.OK = false
			var ue *UpstreamError
			switch {
			case errors.Is(err, ErrMissingAppID):
				res.Reason = ErrMissingAppID.Error()
				res.Notes[artist] = "missing app id"
			case errors.As(err, &ue):
				res.Reason = s.source.Name() + "_error"
				res.Notes[artist] = fmt.Sprintf("Upstream %d", ue.Status)
			default:
				res.Reason = s.source.Name() + "_error"
				res.Notes[artist] = err.Error()
			}
			s.logger.Warn().Err(err).Str("artist", artist).Msg("spotlight fetch failed")
			continue
		}
		for i := range evs {
			if err := s.upsert(ctx, &evs[i]); err != nil {
				s.logger.Debug().Err(err).Str("event", evs[i].ProviderEventID).Msg("spotlight upsert failed")
				res.Skipped = append(res.Skipped, evs[i].ProviderEventID)
				continue
			}
			res.Inserted = append(res.Inserted, evs[i].ProviderEventID)
		}
		s.recordShows(ctx, artist, evs)
	}
	s.logger.Info().Int("inserted", len(res.Inserted)).Int("skipped", len(res.Skipped)).Msg("spotlight synced")
	return res, nil
}

// recordShows updates the show count of the linked Tekkin artist, if any.
func (s *Service) recordShows(ctx context.Context, name string, evs []models.SpotlightEvent) {
	if s.shows == nil {
		return
	}
	var linked []models.Artist
	err := s.db.WithContext(ctx).Where("LOWER(bandsintown_name) = ?", strings.ToLower(name)).Find(&linked).Error
	if err != nil || len(linked) == 0 {
		return
	}
	now := s.now()
	var n int64
	for _, ev := range evs {
		if ev.EventDate != nil && !ev.EventDate.After(now) && now.Sub(*ev.EventDate) <= ShowsWindow {
			n++
		}
	}
	for _, a := range linked {
		if err := s.shows.RecordShows(ctx, a.ID, n); err != nil {
			s.logger.Warn().Err(err).Str("artist_id", a.ID).Msg("failed to record shows")
		}
	}
}

// Upcoming lists events from today on, soonest first.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]models.SpotlightEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	out := []models.SpotlightEvent{}
	err := s.db.WithContext(ctx).
		Where("event_date >= ?", today).
		Order("event_date ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list spotlight events: %w", err)
	}
	return out, nil
}

// Event returns a single event by id.
func (s *Service) Event(ctx context.Context, id string) (*models.SpotlightEvent, error) {
	var ev models.SpotlightEvent
	if err := s.db.WithContext(ctx).First(&ev, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load spotlight event: %w", err)
	}
	return &ev, nil
}

func cleanNames(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" || seen[strings.ToLower(n)] {
			continue
		}
		seen[strings.ToLower(n)] = true
		out = append(out, n)
	}
	return out
}
