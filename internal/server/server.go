/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/access"
	"github.com/friendsincode/tekkin/internal/analyzer"
	"github.com/friendsincode/tekkin/internal/api"
	"github.com/friendsincode/tekkin/internal/artists"
	"github.com/friendsincode/tekkin/internal/auth"
	"github.com/friendsincode/tekkin/internal/cache"
	"github.com/friendsincode/tekkin/internal/charts"
	"github.com/friendsincode/tekkin/internal/config"
	"github.com/friendsincode/tekkin/internal/db"
	"github.com/friendsincode/tekkin/internal/discovery"
	"github.com/friendsincode/tekkin/internal/eventbus"
	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/genres"
	"github.com/friendsincode/tekkin/internal/leadership"
	"github.com/friendsincode/tekkin/internal/notifications"
	"github.com/friendsincode/tekkin/internal/projects"
	"github.com/friendsincode/tekkin/internal/reference"
	"github.com/friendsincode/tekkin/internal/scanner"
	"github.com/friendsincode/tekkin/internal/scheduler"
	"github.com/friendsincode/tekkin/internal/spotify"
	"github.com/friendsincode/tekkin/internal/spotlight"
	"github.com/friendsincode/tekkin/internal/storage"
	"github.com/friendsincode/tekkin/internal/telemetry"
	"github.com/friendsincode/tekkin/internal/tracks"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error
	workers    bool

	db        *gorm.DB
	cache     *cache.Cache
	bus       events.Broker
	storage   *storage.Service
	urls      *storage.URLCache
	refs      *reference.Loader
	notifier  *notifications.Service
	hub       *notifications.Hub
	projects  *projects.Service
	tracks    *tracks.Service
	discovery *discovery.Service
	analyzer  *analyzer.Service
	charts    *charts.Service
	artists   *artists.Service
	spotlight *spotlight.Service
	spotify   *spotify.Client
	scanner   *scanner.Beatport
	election  *leadership.Election
	scheduler *scheduler.Service
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// Option tweaks server construction.
type Option func(*Server)

// WithoutWorkers wires services and routes but starts no background
// goroutines. One-shot CLI commands use it.
func WithoutWorkers() Option {
	return func(s *Server) { s.workers = false }
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(corsMiddleware(cfg.CORSOrigins))
	router.Use(telemetry.TracingMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(timeoutMiddleware)

	srv := &Server{
		cfg:     cfg,
		logger:  logger,
		router:  router,
		workers: true,
	}
	for _, opt := range opts {
		opt(srv)
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	if srv.workers {
		srv.startBackgroundWorkers()
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Uploads can run long, so only the header read is bounded here.
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	ctx := context.Background()

	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database

	s.cache = cache.Disabled(s.logger)
	if s.cfg.RedisAddr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		shared, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = shared
			s.DeferClose(shared.Close)
		}
	}

	s.bus = eventbus.New(s.cfg, s.logger)
	s.DeferClose(s.bus.Close)

	s.storage, err = storage.NewService(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	s.urls = storage.NewURLCache(s.storage, s.cache, storage.TrackURLTTL, 0, s.logger)
	s.refs = reference.NewLoader(s.cfg.ReferenceDir, s.cache, s.logger)

	catalog := genres.Default()
	s.notifier = notifications.NewService(database, s.bus, s.logger)
	s.hub = notifications.NewHub(s.notifier, s.bus, s.cfg.CORSOrigins, s.logger)
	s.projects = projects.NewService(database, s.storage, catalog, s.bus, s.logger)
	s.tracks = tracks.NewService(database, s.urls, s.notifier, s.logger)
	s.discovery = discovery.NewService(database, s.urls, s.notifier, s.logger)
	s.analyzer = analyzer.NewService(analyzer.Deps{
		DB:            database,
		Runner:        analyzer.NewRunner(s.cfg, s.logger),
		Storage:       s.storage,
		References:    s.refs,
		Notifications: s.notifier,
		Bus:           s.bus,
		Bucket:        s.cfg.StorageBucket,
	}, s.logger)
	s.charts = charts.NewService(database, s.cache, s.bus, s.logger)

	// Optional integrations stay nil when unconfigured so the API can
	// answer 503 instead of failing at request time.
	var metrics artists.MetricsSource
	var previews api.AlbumPreviewer
	client, err := spotify.New(spotify.Config{
		ClientID:          s.cfg.SpotifyClientID,
		ClientSecret:      s.cfg.SpotifyClientSecret,
		RequestsPerSecond: s.cfg.SpotifyRPS,
	}, s.logger)
	switch {
	case err == nil:
		s.spotify = client
		metrics, previews = client, client
	case errors.Is(err, spotify.ErrNotConfigured):
		s.logger.Info().Msg("spotify credentials missing, artist sync and previews disabled")
	default:
		return fmt.Errorf("init spotify: %w", err)
	}
	s.artists = artists.NewService(database, metrics, s.cache, s.bus, s.logger)

	source := spotlight.NewBandsintown(s.cfg.BandsintownAppID, "", 0, s.logger)
	s.spotlight = spotlight.NewService(database, source, s.artists, s.cfg.SpotlightArtists, s.logger)

	var finder api.ArtistFinder
	if s.cfg.BeatportSearchURL != "" {
		s.scanner = scanner.NewBeatport(s.cfg.BeatportSearchURL, scanner.RodRenderer{Bin: s.cfg.BrowserBin}, s.logger)
		finder = s.scanner
	}

	if client := s.cache.Client(); client != nil && s.workers {
		s.election = leadership.NewElection(client, leadership.Config{
			ElectionKey: "tekkin:leader:cron",
			InstanceID:  s.cfg.InstanceID,
		}, s.logger)
		s.DeferClose(func() error {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.election.Stop(stopCtx)
			return nil
		})
	}

	var leader scheduler.Leader
	if s.election != nil {
		leader = s.election
	}
	s.scheduler = scheduler.New(leader, s.logger)
	if err := s.registerJobs(); err != nil {
		return err
	}

	s.api = api.New(api.Deps{
		DB:             database,
		JWTSecret:      []byte(s.cfg.JWTSigningKey),
		JWTTTL:         s.cfg.JWTTTL,
		CronSecret:     s.cfg.CronSecret,
		Admins:         auth.NewAdminPolicy(s.cfg.AdminEmails, s.cfg.AdminUserIDs),
		Access:         access.NewService(database, s.logger),
		Catalog:        catalog,
		References:     s.refs,
		Storage:        s.storage,
		URLs:           s.urls,
		Notifications:  s.notifier,
		Hub:            s.hub,
		Projects:       s.projects,
		Tracks:         s.tracks,
		Analyzer:       s.analyzer,
		Discovery:      s.discovery,
		Charts:         s.charts,
		Artists:        s.artists,
		Spotlight:      s.spotlight,
		Spotify:        previews,
		Scanner:        finder,
		MaxUploadBytes: s.cfg.MaxUploadSizeBytes(),
		PlayRateLimit:  s.cfg.PlayRateLimit,
	}, s.logger)

	return nil
}

func (s *Server) registerJobs() error {
	jobs := []scheduler.Job{
		{
			Name:    JobChartsRebuild,
			Spec:    s.cfg.ChartsCron,
			Timeout: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := s.charts.Rebuild(ctx)
				return err
			},
		},
		{
			Name:    JobArtistSync,
			Spec:    s.cfg.ArtistSyncCron,
			Timeout: 5 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := s.artists.SyncDue(ctx)
				return err
			},
		},
		{
			Name:    JobSpotlightSync,
			Spec:    s.cfg.SpotlightCron,
			Timeout: 5 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := s.spotlight.Sync(ctx, spotlight.SyncInput{})
				return err
			},
		},
	}
	for _, job := range jobs {
		if err := s.scheduler.Add(job); err != nil {
			return fmt.Errorf("register job %s: %w", job.Name, err)
		}
	}
	return nil
}

// Scheduled job names, also accepted by RunJob.
const (
	JobChartsRebuild = "charts_rebuild"
	JobArtistSync    = "artist_sync"
	JobSpotlightSync = "spotlight_sync"
)

// RunJob executes a registered job immediately on this instance.
func (s *Server) RunJob(ctx context.Context, name string) error {
	return s.scheduler.RunNow(ctx, name)
}

// References exposes the reference model loader.
func (s *Server) References() *reference.Loader { return s.refs }

// Scanner returns the Beatport scanner, nil when disabled.
func (s *Server) Scanner() *scanner.Beatport { return s.scanner }

func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.election != nil {
		s.election.Start(ctx)
	}

	s.goWorker("analyzer", func() error { return s.analyzer.Run(ctx) })
	s.goWorker("notification hub", func() error { s.hub.Run(ctx); return nil })
	s.goWorker("scheduler", func() error { return s.scheduler.Run(ctx) })
	s.goWorker("cache invalidation", func() error { s.runCacheInvalidationListener(ctx); return nil })

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()
}

func (s *Server) goWorker(name string, run func() error) {
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := run(); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Str("worker", name).Msg("background worker stopped")
		}
	}()
}

// runCacheInvalidationListener drops cached signed URLs and reference
// models when the underlying rows change, including on peer instances.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	versionUpdated := s.bus.Subscribe(events.EventVersionUpdated)
	versionDeleted := s.bus.Subscribe(events.EventVersionDeleted)
	refsRefreshed := s.bus.Subscribe(events.EventReferenceRefreshed)

	defer func() {
		s.bus.Unsubscribe(events.EventVersionUpdated, versionUpdated)
		s.bus.Unsubscribe(events.EventVersionDeleted, versionDeleted)
		s.bus.Unsubscribe(events.EventReferenceRefreshed, refsRefreshed)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return

		case payload := <-versionUpdated:
			if id := payload.String("version_id"); id != "" {
				s.logger.Debug().Str("version_id", id).Msg("invalidating signed url (version updated)")
				s.urls.Invalidate(ctx, id)
			}

		case payload := <-versionDeleted:
			if id := payload.String("version_id"); id != "" {
				s.logger.Debug().Str("version_id", id).Msg("invalidating signed url (version deleted)")
				s.urls.Invalidate(ctx, id)
			}

		case <-refsRefreshed:
			s.refs.Forget()
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", telemetry.Handler())

	if fs, ok := s.storage.Backend().(*storage.FilesystemBackend); ok {
		s.router.Handle(strings.TrimSuffix(storage.MediaRoutePrefix, "/")+"/*", fs)
	}

	s.api.Routes(s.router)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := `{"status":"ok"`
	if s.election != nil {
		if s.election.IsLeader() {
			response += `,"leader":true`
		} else {
			response += `,"leader":false`
		}
	}
	response += `}`
	_, _ = w.Write([]byte(response))
}
