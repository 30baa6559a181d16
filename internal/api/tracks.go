/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/friendsincode/tekkin/internal/auth"
	"github.com/friendsincode/tekkin/internal/storage"
	"github.com/friendsincode/tekkin/internal/tracks"
)

const signTrackTTL = 1800 * time.Second

type versionRequest struct {
	VersionID string `json:"version_id" validate:"required"`
}

func (a *API) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req versionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	state, err := a.Tracks.ToggleLike(r.Context(), uid, req.VersionID)
	if err != nil {
		a.writeServiceError(w, r, err, "like_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"liked": state.Liked, "count": state.Count})
}

func (a *API) handleLikes(w http.ResponseWriter, r *http.Request) {
	ids := tracks.ParseIDs(r.URL.Query().Get("version_ids"))
	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"map": map[string]tracks.LikeState{}})
		return
	}
	states, err := a.Tracks.Likes(r.Context(), auth.UserID(r.Context()), ids)
	if err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"map": states})
}

// handlePlayed records an anonymous play. The visitor cookie survives a
// year so repeated plays inside the dedupe window are ignored.
func (a *API) handlePlayed(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	visitor := ""
	if c, err := r.Cookie(tracks.VisitorCookie); err == nil {
		visitor = c.Value
	}
	if visitor == "" {
		visitor = tracks.NewVisitorID()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tracks.VisitorCookie,
		Value:    visitor,
		Path:     "/",
		MaxAge:   int(tracks.VisitorCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	inserted, err := a.Tracks.RecordPlay(r.Context(), req.VersionID, visitor, auth.UserID(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err, "play_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"inserted": inserted})
}

func (a *API) handleTrackSignedURL(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	versionID := r.URL.Query().Get("version_id")
	if versionID == "" {
		writeError(w, http.StatusBadRequest, "version_id_required")
		return
	}
	signed, err := a.Tracks.SignedURL(r.Context(), uid, versionID)
	if err != nil {
		a.writeServiceError(w, r, err, "sign_failed")
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

type signTrackRequest struct {
	Path string `json:"path" validate:"required"`
}

func (a *API) handleSignTrack(w http.ResponseWriter, r *http.Request) {
	if _, ok := userID(w, r); !ok {
		return
	}
	var req signTrackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	url, err := a.Storage.Sign(r.Context(), req.Path, signTrackTTL)
	if err != nil {
		if errors.Is(err, storage.ErrEmptyPath) {
			writeError(w, http.StatusBadRequest, "path_required")
			return
		}
		a.writeServiceError(w, r, err, "sign_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signedUrl": url})
}
