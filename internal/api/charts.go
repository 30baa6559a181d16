/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/tekkin/internal/charts"
)

func (a *API) handleChartSnapshots(w http.ResponseWriter, r *http.Request) {
	page, err := a.Charts.Snapshot(r.Context(), r.URL.Query().Get("profile"))
	if err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleChartPlaylists(w http.ResponseWriter, r *http.Request) {
	items, err := a.Charts.ActivePlaylists(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleChartsRebuild serves both the cron hook and the admin button.
func (a *API) handleChartsRebuild(w http.ResponseWriter, r *http.Request) {
	res, err := a.Charts.Rebuild(r.Context())
	if err != nil {
		if errors.Is(err, charts.ErrMissingProfiles) {
			writeError(w, http.StatusConflict, "missing_rank_profiles")
			return
		}
		a.writeServiceError(w, r, err, "rebuild_failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleAdminPlaylists(w http.ResponseWriter, r *http.Request) {
	items, err := a.Charts.ListPlaylists(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleAdminCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var in charts.PlaylistInput
	if !decodeJSON(w, r, &in) {
		return
	}
	pl, err := a.Charts.CreatePlaylist(r.Context(), in)
	if err != nil {
		a.writeServiceError(w, r, err, "playlist_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "playlist": pl})
}

func (a *API) handleAdminUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	var upd charts.PlaylistUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	pl, err := a.Charts.UpdatePlaylist(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		a.writeServiceError(w, r, err, "playlist_update_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "playlist": pl})
}
