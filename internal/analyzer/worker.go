/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analyzer

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/telemetry"
)

// MaxAttempts caps how often a job is picked up before it stays failed.
const MaxAttempts = 3

// Enqueue registers an asynchronous analysis for a version owned by userID.
func (s *Service) Enqueue(ctx context.Context, userID, versionID string) (*models.AnalysisJob, error) {
	version, _, err := s.loadOwned(ctx, userID, versionID)
	if err != nil {
		return nil, err
	}

	// An outstanding job already covers this version.
	var existing models.AnalysisJob
	err = s.db.WithContext(ctx).
		Where("version_id = ? AND status IN ?", version.ID, []models.AnalysisStatus{models.AnalysisPending, models.AnalysisRunning}).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	job := models.AnalysisJob{
		VersionID:   version.ID,
		RequestedBy: userID,
		Status:      models.AnalysisPending,
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	s.publish(events.EventAnalysisQueued, version, nil)
	s.updateQueueDepth(ctx)
	return &job, nil
}

// Run drains the analysis queue until context cancellation.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().Msg("analysis worker started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("analysis worker stopped")
			return ctx.Err()
		default:
		}

		job, err := s.nextPendingJob(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("fetching analysis job failed")
			s.sleep(ctx, 2*time.Second)
			continue
		}
		if job == nil {
			s.sleep(ctx, s.pollInterval)
			continue
		}

		if err := s.processJob(ctx, job); err != nil {
			s.logger.Error().Err(err).Str("job", job.ID).Msg("analysis job failed")
		}
		s.updateQueueDepth(ctx)
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ProcessNext claims and runs one pending job. It reports whether a job
// was found.
func (s *Service) ProcessNext(ctx context.Context) (bool, error) {
	job, err := s.nextPendingJob(ctx)
	if err != nil || job == nil {
		return false, err
	}
	return true, s.processJob(ctx, job)
}

func (s *Service) nextPendingJob(ctx context.Context) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := s.db.WithContext(ctx).
		Where("status = ?", models.AnalysisPending).
		Order("created_at ASC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Another worker may have claimed it in the meantime.
	res := s.db.WithContext(ctx).
		Model(&models.AnalysisJob{}).
		Where("id = ? AND status = ?", job.ID, models.AnalysisPending).
		Updates(map[string]any{
			"status":     models.AnalysisRunning,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	job.Status = models.AnalysisRunning
	job.Attempts++
	return &job, nil
}

func (s *Service) processJob(ctx context.Context, job *models.AnalysisJob) error {
	version, project, err := s.load(ctx, job.VersionID)
	if err != nil {
		s.failJob(ctx, job, err)
		return err
	}

	if _, err := s.analyze(ctx, version, project); err != nil {
		s.failJob(ctx, job, err)
		return err
	}

	return s.db.WithContext(ctx).
		Model(&models.AnalysisJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{"status": models.AnalysisDone, "error": "", "updated_at": s.now()}).Error
}

// failJob records the error. Upstream failures go back to pending until
// the attempt budget is spent.
func (s *Service) failJob(ctx context.Context, job *models.AnalysisJob, jobErr error) {
	status := models.AnalysisFailed
	if errors.Is(jobErr, models.ErrUpstream) && job.Attempts < MaxAttempts {
		status = models.AnalysisPending
	}
	err := s.db.WithContext(ctx).
		Model(&models.AnalysisJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{"status": status, "error": jobErr.Error(), "updated_at": s.now()}).Error
	if err != nil {
		s.logger.Error().Err(err).Str("job", job.ID).Msg("recording job failure")
	}
}

func (s *Service) updateQueueDepth(ctx context.Context) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.AnalysisJob{}).Where("status = ?", models.AnalysisPending).Count(&n).Error; err == nil {
		telemetry.AnalysisQueueDepth.Set(float64(n))
	}
}
