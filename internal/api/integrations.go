/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/tekkin/internal/spotify"
	"github.com/friendsincode/tekkin/internal/spotlight"
)

func (a *API) handleArtistRank(w http.ResponseWriter, r *http.Request) {
	view, err := a.Artists.Rank(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err, "rank_failed")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleArtistsSync(w http.ResponseWriter, r *http.Request) {
	res, err := a.Artists.SyncDue(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, "sync_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"processed": res.Processed,
		"errors":    res.Errors,
		"message":   res.Message,
	})
}

func (a *API) handleSpotifyPreview(w http.ResponseWriter, r *http.Request) {
	albumID, ok := spotify.AlbumID(r.URL.Query().Get("albumId"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_album_id")
		return
	}
	if a.Spotify == nil {
		writeError(w, http.StatusServiceUnavailable, "spotify_not_configured")
		return
	}
	preview, err := a.Spotify.AlbumPreview(r.Context(), albumID)
	if err != nil {
		if errors.Is(err, spotify.ErrNoPreview) {
			writeError(w, http.StatusNotFound, "no_preview")
			return
		}
		a.writeServiceError(w, r, err, "spotify_failed")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, preview)
}

func (a *API) handleSpotlightSync(w http.ResponseWriter, r *http.Request) {
	var in spotlight.SyncInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := a.Spotlight.Sync(r.Context(), in)
	if err != nil {
		a.writeServiceError(w, r, err, "spotlight_sync_failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleSpotlightEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := a.Spotlight.Upcoming(r.Context(), limit)
	if err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleSpotlightEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := a.Spotlight.Event(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": ev})
}

func (a *API) handleScannerBeatport(w http.ResponseWriter, r *http.Request) {
	if a.Scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "scanner_disabled")
		return
	}
	name := r.URL.Query().Get("artist")
	if name == "" {
		writeError(w, http.StatusBadRequest, "artist_required")
		return
	}
	match, err := a.Scanner.FindArtist(r.Context(), name)
	if err != nil {
		a.writeServiceError(w, r, err, "scanner_failed")
		return
	}
	writeJSON(w, http.StatusOK, match)
}
