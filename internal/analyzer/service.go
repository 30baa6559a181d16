/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/notifications"
	"github.com/friendsincode/tekkin/internal/reference"
	"github.com/friendsincode/tekkin/internal/scoring"
	"github.com/friendsincode/tekkin/internal/storage"
	"github.com/friendsincode/tekkin/internal/telemetry"
)

// Defaults applied when a project leaves genre or mix type empty.
const (
	DefaultProfileKey = "minimal_deep_tech"
	DefaultMode       = models.MixTypeMaster
	AudioURLTTL       = 30 * time.Minute
)

// Service runs the external analyzer for project versions and persists
// the results.
type Service struct {
	db       *gorm.DB
	runner   Runner
	storage  *storage.Service
	refs     *reference.Loader
	notifier *notifications.Service
	bus      events.Broker
	bucket   string
	logger   zerolog.Logger

	pollInterval time.Duration
	now          func() time.Time
}

// Deps groups the collaborators of the analyzer service.
type Deps struct {
	DB            *gorm.DB
	Runner        Runner
	Storage       *storage.Service
	References    *reference.Loader
	Notifications *notifications.Service
	Bus           events.Broker
	Bucket        string
}

// NewService creates an analyzer service.
func NewService(d Deps, logger zerolog.Logger) *Service {
	bucket := d.Bucket
	if bucket == "" {
		bucket = storage.Bucket
	}
	return &Service{
		db:           d.DB,
		runner:       d.Runner,
		storage:      d.Storage,
		refs:         d.References,
		notifier:     d.Notifications,
		bus:          d.Bus,
		bucket:       bucket,
		logger:       logger.With().Str("component", "analyzer").Logger(),
		pollInterval: 3 * time.Second,
		now:          time.Now,
	}
}

// RunOutcome is returned after a synchronous analyzer run.
type RunOutcome struct {
	Version      *models.ProjectVersion `json:"version"`
	Availability scoring.Availability   `json:"availability"`
	Warnings     []string               `json:"warnings,omitempty"`
}

func (s *Service) loadOwned(ctx context.Context, userID, versionID string) (*models.ProjectVersion, *models.Project, error) {
	version, project, err := s.load(ctx, versionID)
	if err != nil {
		return nil, nil, err
	}
	if project.UserID != userID {
		return nil, nil, models.ErrForbidden
	}
	return version, project, nil
}

func (s *Service) load(ctx context.Context, versionID string) (*models.ProjectVersion, *models.Project, error) {
	if versionID == "" {
		return nil, nil, fmt.Errorf("%w: version_id missing", models.ErrInvalidInput)
	}
	var version models.ProjectVersion
	if err := s.db.WithContext(ctx).First(&version, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, models.ErrNotFound
		}
		return nil, nil, fmt.Errorf("load version: %w", err)
	}
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", version.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, models.ErrNotFound
		}
		return nil, nil, fmt.Errorf("load project: %w", err)
	}
	return &version, &project, nil
}

// RunForVersion analyzes a version owned by userID and waits for the result.
func (s *Service) RunForVersion(ctx context.Context, userID, versionID string) (*RunOutcome, error) {
	version, project, err := s.loadOwned(ctx, userID, versionID)
	if err != nil {
		return nil, err
	}
	return s.analyze(ctx, version, project)
}

func (s *Service) analyze(ctx context.Context, version *models.ProjectVersion, project *models.Project) (*RunOutcome, error) {
	if s.runner == nil {
		return nil, errors.New("analyzer not configured")
	}
	if !version.HasAudio() {
		return nil, fmt.Errorf("%w: version has no audio", models.ErrInvalidInput)
	}

	profileKey := project.Genre
	if profileKey == "" {
		profileKey = DefaultProfileKey
	}
	mode := project.MixType
	if mode == "" {
		mode = DefaultMode
	}

	audioURL, err := s.storage.Sign(ctx, version.StoragePath(), AudioURLTTL)
	if err != nil {
		return nil, fmt.Errorf("sign audio: %w", err)
	}

	req := Request{
		VersionID:        version.ID,
		ProjectID:        project.ID,
		AudioURL:         audioURL,
		ProfileKey:       profileKey,
		Mode:             mode,
		Lang:             "it",
		UploadArraysBlob: true,
		StorageBucket:    s.bucket,
		StorageBasePath:  "analyzer/" + project.ID + "/" + version.ID,
	}

	start := time.Now()
	runCtx, end := telemetry.StartSpan(ctx, "analyzer.run",
		attribute.String("version_id", version.ID),
		attribute.String("runner", s.runner.Name()),
	)
	raw, err := s.runner.Run(runCtx, req)
	end(err)
	telemetry.AnalyzerRunDuration.WithLabelValues(s.runner.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.AnalyzerRunsTotal.WithLabelValues(s.runner.Name(), "error").Inc()
		s.publish(events.EventAnalysisFailed, version, err)
		return nil, err
	}

	result, err := ParseResult(raw)
	if err != nil {
		telemetry.AnalyzerRunsTotal.WithLabelValues(s.runner.Name(), "error").Inc()
		return nil, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	telemetry.AnalyzerRunsTotal.WithLabelValues(s.runner.Name(), "ok").Inc()

	result.Apply(version, s.now().UTC())
	version.AnalyzerProfileKey = profileKey
	version.AnalyzerMode = mode

	model, err := s.refs.Load(ctx, profileKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("profile", profileKey).Msg("reference model unavailable")
	}
	if model != nil {
		version.ReferenceModelKey = reference.SanitizeKey(profileKey)
	} else {
		version.ReferenceModelKey = ""
	}

	if version.OverallScore == nil {
		details := scoring.CalculateVersionRank(scoring.VersionRankInputFrom(version), reference.ExtractRanges(model))
		score := details.Score
		version.OverallScore = &score
	}

	if err := s.db.WithContext(ctx).Save(version).Error; err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	s.publish(events.EventAnalysisCompleted, version, nil)
	if s.bus != nil {
		s.bus.Publish(events.EventVersionUpdated, events.Payload{"version_id": version.ID, "project_id": version.ProjectID})
	}

	if s.notifier != nil {
		_, err := s.notifier.Notify(ctx, notifications.Notification{
			UserID: project.UserID,
			Type:   models.NotificationAnalysisReady,
			Title:  "Analysis ready",
			Body:   project.Title + " " + version.VersionName,
			Href:   "/artist/projects/" + project.ID,
			Data:   map[string]any{"version_id": version.ID, "project_id": project.ID},
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("version_id", version.ID).Msg("analysis notification failed")
		}
	}

	s.logger.Info().
		Str("version_id", version.ID).
		Str("profile", profileKey).
		Str("transport", s.runner.Name()).
		Msg("analysis stored")

	return &RunOutcome{
		Version:      version,
		Availability: scoring.AnalyzerAvailability(version),
		Warnings:     result.Warnings,
	}, nil
}

func (s *Service) publish(t events.EventType, v *models.ProjectVersion, err error) {
	if s.bus == nil {
		return
	}
	payload := events.Payload{"version_id": v.ID, "project_id": v.ProjectID}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.bus.Publish(t, payload)
}

// RankView is the full ranking breakdown of a version.
type RankView struct {
	VersionID    string                     `json:"version_id"`
	ProfileKey   string                     `json:"profile_key"`
	Rank         scoring.VersionRankDetails `json:"rank"`
	Bands        []reference.BandCompare    `json:"bands"`
	Loudness     []reference.BandCompare    `json:"loudness,omitempty"`
	ModelMatch   *reference.MatchResult     `json:"model_match"`
	MixScores    scoring.MixScores          `json:"mix_scores"`
	Availability scoring.Availability       `json:"availability"`
}

// VersionRank computes the rank view of a version owned by userID.
func (s *Service) VersionRank(ctx context.Context, userID, versionID string) (*RankView, error) {
	version, project, err := s.loadOwned(ctx, userID, versionID)
	if err != nil {
		return nil, err
	}

	profileKey := version.AnalyzerProfileKey
	if profileKey == "" {
		profileKey = project.Genre
	}
	if profileKey == "" {
		profileKey = DefaultProfileKey
	}

	model, err := s.refs.Load(ctx, profileKey)
	if err != nil {
		return nil, fmt.Errorf("load reference: %w", err)
	}

	match := reference.ComputeModelMatch(reference.MatchMetrics{
		BPM:                version.AnalyzerBPM,
		IntegratedLUFS:     version.LUFS,
		StereoWidth:        version.StereoWidth,
		SpectralCentroidHz: version.SpectralCentroidHz,
		BandEnergyNorm:     version.AnalyzerBandsNorm,
	}, model)

	mixIn := scoring.MixInput{
		LUFS:               version.LUFS,
		LRA:                version.LRA,
		SamplePeakDB:       version.SamplePeakDB,
		SpectralCentroidHz: version.SpectralCentroidHz,
		SpectralRolloffHz:  version.SpectralRolloffHz,
		SpectralFlatness:   version.SpectralFlatness,
		StereoWidth:        version.StereoWidth,
		BandsNorm:          version.AnalyzerBandsNorm,
	}
	if match != nil {
		pct := match.MatchPercent
		mixIn.ModelMatchPercent = &pct
	} else {
		mixIn.ModelMatchPercent = version.ModelMatchPercent
	}

	ranges := reference.ExtractRanges(model)
	loudness := reference.CompareLoudness(reference.LoudnessMetrics{
		LUFS:         version.LUFS,
		LRA:          version.LRA,
		SamplePeakDB: version.SamplePeakDB,
		StereoWidth:  version.StereoWidth,
	}, ranges)

	return &RankView{
		VersionID:    version.ID,
		ProfileKey:   reference.SanitizeKey(profileKey),
		Rank:         scoring.CalculateVersionRank(scoring.VersionRankInputFrom(version), ranges),
		Bands:        reference.CompareBands(version.AnalyzerBandsNorm, model),
		Loudness:     loudness,
		ModelMatch:   match,
		MixScores:    scoring.ComputeMixScores(mixIn),
		Availability: scoring.AnalyzerAvailability(version),
	}, nil
}

// ArraysView carries the time series of an analyzed version.
type ArraysView struct {
	VersionID     string                `json:"version_id"`
	LoudnessStats *models.VersionArrays `json:"loudness_stats"`
	WaveformPeaks []float64             `json:"waveform_peaks,omitempty"`
}

// Arrays returns the loudness series of a version. The owner can read any
// of their versions; other callers only public ones. ErrNotFound means the
// version is unknown or has no stored series.
func (s *Service) Arrays(ctx context.Context, userID, versionID string) (*ArraysView, error) {
	version, project, err := s.load(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID && version.Visibility != models.VisibilityPublic {
		return nil, models.ErrForbidden
	}
	if version.AnalyzerArrays == nil ||
		(len(version.AnalyzerArrays.MomentaryLUFS) == 0 && len(version.AnalyzerArrays.ShortTermLUFS) == 0) {
		return nil, fmt.Errorf("%w: no arrays for version", models.ErrNotFound)
	}
	return &ArraysView{
		VersionID:     version.ID,
		LoudnessStats: version.AnalyzerArrays,
		WaveformPeaks: version.WaveformPeaks,
	}, nil
}
