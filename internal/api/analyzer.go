/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/tekkin/internal/reference"
)

func (a *API) handleRunForVersion(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req versionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := a.Analyzer.RunForVersion(r.Context(), uid, req.VersionID)
	if err != nil {
		a.writeServiceError(w, r, err, "analyzer_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"version":      out.Version,
		"availability": out.Availability,
		"warnings":     out.Warnings,
	})
}

func (a *API) handleQueueAnalysis(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req versionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	job, err := a.Analyzer.Enqueue(r.Context(), uid, req.VersionID)
	if err != nil {
		a.writeServiceError(w, r, err, "analysis_queue_failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "job": job})
}

func (a *API) handleVersionRank(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	view, err := a.Analyzer.VersionRank(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err, "rank_failed")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleAnalyzerArrays(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	view, err := a.Analyzer.Arrays(r.Context(), uid, chi.URLParam(r, "versionId"))
	if err != nil {
		a.writeServiceError(w, r, err, "arrays_failed")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleReference(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "profileKey")
	model, err := a.References.Load(r.Context(), key)
	if err != nil {
		a.writeServiceError(w, r, err, "reference_failed")
		return
	}
	if model == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":      "Reference not found",
			"profileKey": reference.SanitizeKey(key),
		})
		return
	}
	preview, err := reference.NormalizeForPreview(model)
	if err != nil {
		a.writeServiceError(w, r, err, "reference_failed")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (a *API) handleGenres(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": a.Catalog.List()})
}
