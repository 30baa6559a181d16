/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/access"
	"github.com/friendsincode/tekkin/internal/analyzer"
	"github.com/friendsincode/tekkin/internal/artists"
	"github.com/friendsincode/tekkin/internal/auth"
	"github.com/friendsincode/tekkin/internal/charts"
	"github.com/friendsincode/tekkin/internal/discovery"
	"github.com/friendsincode/tekkin/internal/genres"
	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/notifications"
	"github.com/friendsincode/tekkin/internal/projects"
	"github.com/friendsincode/tekkin/internal/reference"
	"github.com/friendsincode/tekkin/internal/scanner"
	"github.com/friendsincode/tekkin/internal/spotify"
	"github.com/friendsincode/tekkin/internal/spotlight"
	"github.com/friendsincode/tekkin/internal/storage"
	"github.com/friendsincode/tekkin/internal/tracks"
)

// CronHeader carries the shared secret on scheduler-triggered routes.
const CronHeader = "x-tekkin-cron"

// AlbumPreviewer resolves a playable preview for a Spotify album.
type AlbumPreviewer interface {
	AlbumPreview(ctx context.Context, albumID string) (*spotify.Preview, error)
}

// ArtistFinder looks an artist up on Beatport.
type ArtistFinder interface {
	FindArtist(ctx context.Context, name string) (*scanner.Match, error)
}

// Deps groups the services behind the HTTP surface. Optional integrations
// (Spotify, Scanner) may be nil and answer 503.
type Deps struct {
	DB         *gorm.DB
	JWTSecret  []byte
	JWTTTL     time.Duration
	CronSecret string
	Admins     *auth.AdminPolicy

	Catalog    *genres.Catalog
	References *reference.Loader
	Storage    *storage.Service
	URLs       *storage.URLCache

	Access        *access.Service
	Notifications *notifications.Service
	Hub           *notifications.Hub
	Projects      *projects.Service
	Tracks        *tracks.Service
	Analyzer      *analyzer.Service
	Discovery     *discovery.Service
	Charts        *charts.Service
	Artists       *artists.Service
	Spotlight     *spotlight.Service
	Spotify       AlbumPreviewer
	Scanner       ArtistFinder

	MaxUploadBytes int64
	PlayRateLimit  int
}

// API exposes HTTP handlers.
type API struct {
	Deps
	logger zerolog.Logger
}

// New creates the API router wrapper.
func New(d Deps, logger zerolog.Logger) *API {
	if d.JWTTTL <= 0 {
		d.JWTTTL = 7 * 24 * time.Hour
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 200 << 20
	}
	if d.PlayRateLimit <= 0 {
		d.PlayRateLimit = 60
	}
	if d.Catalog == nil {
		d.Catalog = genres.Default()
	}
	return &API{Deps: d, logger: logger.With().Str("component", "api").Logger()}
}

// Routes registers every endpoint under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public endpoints, the caller is identified when a token is present.
		r.Group(func(r chi.Router) {
			r.Use(auth.Optional(a.JWTSecret))

			r.With(httprate.LimitByIP(10, time.Minute)).Post("/auth/login", a.handleLogin)
			r.Get("/genres", a.handleGenres)
			r.Get("/tracks/likes", a.handleLikes)
			r.With(httprate.LimitByIP(a.PlayRateLimit, time.Minute)).Post("/tracks/played", a.handlePlayed)
			r.Get("/charts/snapshots", a.handleChartSnapshots)
			r.Get("/charts/playlists", a.handleChartPlaylists)
			r.Get("/spotify/preview", a.handleSpotifyPreview)
			r.Get("/spotlight/events", a.handleSpotlightEvents)
			r.Get("/spotlight/events/{id}", a.handleSpotlightEvent)
		})

		// Scheduler hooks guarded by the cron secret.
		r.With(a.requireCronBearer).Post("/charts/rebuild", a.handleChartsRebuild)
		r.With(a.requireCronHeader).Post("/artists/sync", a.handleArtistsSync)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.JWTSecret))

			pr.Get("/profile/me", a.handleProfileMe)

			pr.Route("/access", func(r chi.Router) {
				r.With(httprate.LimitByIP(10, time.Minute)).Post("/redeem", a.handleRedeemInvite)
				r.Get("/me", a.handleAccessMe)
			})

			pr.Route("/notifications", func(r chi.Router) {
				r.Get("/list", a.handleNotificationsList)
				r.Get("/unread-count", a.handleUnreadCount)
				r.Post("/mark-read", a.handleMarkRead)
				r.Post("/mark-all-read", a.handleMarkAllRead)
				if a.Hub != nil {
					r.Get("/stream", a.Hub.ServeHTTP)
				}
			})

			pr.Post("/tracks/toggle-like", a.handleToggleLike)
			pr.Get("/tracks/signed-url", a.handleTrackSignedURL)
			pr.Post("/storage/sign-track", a.handleSignTrack)

			pr.Route("/projects", func(r chi.Router) {
				r.Post("/create-with-upload", a.handleCreateWithUpload)
				r.Post("/add-version", a.handleAddVersion)
				r.Post("/update-info", a.handleUpdateInfo)
				r.Post("/update-project", a.handleUpdateProject)
				r.Post("/update-version", a.handleUpdateVersion)
				r.Post("/set-visibility", a.handleSetVisibility)
				r.Post("/delete-version", a.handleDeleteVersion)
				r.Post("/delete-project", a.handleDeleteProject)
				r.Post("/leave-collab", a.handleLeaveCollab)
				r.Post("/update-version-profile-key", a.handleUpdateVersionProfileKey)
				r.Get("/download-latest", a.handleDownloadLatest)
				r.Post("/save-waveform-peaks", a.handleSaveWaveformPeaks)
			})

			pr.Route("/analyzer", func(r chi.Router) {
				r.Post("/run-for-version", a.handleRunForVersion)
				r.Post("/queue", a.handleQueueAnalysis)
				r.Get("/version/{id}/rank", a.handleVersionRank)
				r.Get("/arrays/{versionId}", a.handleAnalyzerArrays)
			})

			pr.Get("/reference/{profileKey}", a.handleReference)

			pr.Route("/discovery", func(r chi.Router) {
				r.Post("/request", a.handleDiscoveryRequest)
				r.Post("/respond", a.handleDiscoveryRespond)
				r.Get("/inbox", a.handleDiscoveryInbox)
				r.Get("/outbox", a.handleDiscoveryOutbox)
				r.Post("/message", a.handleDiscoveryMessage)
				r.Post("/report", a.handleDiscoveryReport)
			})

			pr.Get("/artists/{id}/rank", a.handleArtistRank)
			pr.Get("/scanner/beatport", a.handleScannerBeatport)

			pr.Route("/admin", func(r chi.Router) {
				r.Use(a.requireAdmin)
				r.Get("/playlists", a.handleAdminPlaylists)
				r.Post("/playlists", a.handleAdminCreatePlaylist)
				r.Patch("/playlists/{id}", a.handleAdminUpdatePlaylist)
				r.Post("/rebuild-charts", a.handleChartsRebuild)
				r.Post("/spotlight/sync", a.handleSpotlightSync)
				r.Post("/invite-codes", a.handleAdminCreateInvite)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !a.Admins.IsAdmin(claims) {
			writeError(w, http.StatusForbidden, "admin_required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secretMatches compares in constant time. An unset secret never matches.
func (a *API) secretMatches(got string) bool {
	if a.CronSecret == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.CronSecret)) == 1
}

func (a *API) requireCronBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.secretMatches(auth.BearerToken(r)) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requireCronHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.secretMatches(strings.TrimSpace(r.Header.Get(CronHeader))) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userID returns the caller or writes 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := auth.UserID(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return id, true
}

// writeServiceError maps domain sentinels to statuses. Anything else is
// logged and reported as fallback with a 500.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, models.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, models.ErrNoPublishableVersion):
		writeError(w, http.StatusConflict, "no_publishable_version")
	case errors.Is(err, models.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_input", "detail": detail(err)})
	case errors.Is(err, models.ErrUpstream):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream_error", "detail": detail(err)})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout")
	default:
		a.logger.Error().Err(err).Str("path", r.URL.Path).Str("user_id", auth.UserID(r.Context())).Msg(fallback)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
