/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler runs the periodic maintenance jobs (chart rebuild,
// artist metric sync, spotlight sync) on the elected leader only.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/telemetry"
)

// Leader reports whether this instance should run cluster-wide jobs.
type Leader interface {
	IsLeader() bool
}

// Job is a named unit of periodic work.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Service owns the cron runner and the registered jobs.
type Service struct {
	cron   *cron.Cron
	leader Leader
	logger zerolog.Logger

	mu   sync.Mutex
	jobs map[string]Job
	ctx  context.Context
}

// New creates a scheduler. A nil leader means this instance always runs jobs.
func New(leader Leader, logger zerolog.Logger) *Service {
	logger = logger.With().Str("component", "scheduler").Logger()
	adapter := cronLogger{logger: logger}
	return &Service{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		leader: leader,
		logger: logger,
		jobs:   make(map[string]Job),
		ctx:    context.Background(),
	}
}

// Add registers a job. An empty spec leaves the job manual-only.
func (s *Service) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("scheduler: job needs a name and a func")
	}
	s.mu.Lock()
	s.jobs[job.Name] = job
	s.mu.Unlock()
	if job.Spec == "" {
		s.logger.Info().Str("job", job.Name).Msg("job registered without schedule")
		return nil
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.fire(job) }); err != nil {
		return fmt.Errorf("scheduler: job %s: %w", job.Name, err)
	}
	s.logger.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("job scheduled")
	return nil
}

// Jobs lists the registered job names.
func (s *Service) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Run starts the cron loop and blocks until ctx is cancelled. Running jobs
// are waited for before returning.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("entries", len(s.cron.Entries())).Msg("scheduler started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
	return nil
}

// RunNow executes a job immediately, regardless of leadership.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	return s.execute(ctx, job)
}

func (s *Service) fire(job Job) {
	if s.leader != nil && !s.leader.IsLeader() {
		telemetry.CronRunsTotal.WithLabelValues(job.Name, "skipped").Inc()
		s.logger.Debug().Str("job", job.Name).Msg("not leader, skipping")
		return
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_ = s.execute(ctx, job)
}

func (s *Service) execute(ctx context.Context, job Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		telemetry.CronRunsTotal.WithLabelValues(job.Name, "error").Inc()
		s.logger.Error().Err(err).Str("job", job.Name).Dur("took", time.Since(start)).Msg("job failed")
		return err
	}
	telemetry.CronRunsTotal.WithLabelValues(job.Name, "ok").Inc()
	s.logger.Info().Str("job", job.Name).Dur("took", time.Since(start)).Msg("job finished")
	return nil
}

// cronLogger routes cron's internal logging to zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
