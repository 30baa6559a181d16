/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"

	"github.com/friendsincode/tekkin/internal/discovery"
)

type discoveryRequestBody struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	ProjectID  string `json:"project_id" validate:"required"`
	TrackID    string `json:"track_id"`
	Kind       string `json:"kind" validate:"required,oneof=collab promo"`
	Message    string `json:"message" validate:"max=2000"`
}

func (a *API) handleDiscoveryRequest(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req discoveryRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := a.Discovery.Request(r.Context(), uid, discovery.RequestInput{
		ReceiverID: req.ReceiverID,
		ProjectID:  req.ProjectID,
		TrackID:    req.TrackID,
		Kind:       req.Kind,
		Message:    req.Message,
	})
	if err != nil {
		a.writeServiceError(w, r, err, "request_failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":     created.ID,
		"status": created.Status,
		"kind":   created.Kind,
	})
}

type respondRequest struct {
	RequestID string `json:"request_id" validate:"required"`
	Action    string `json:"action" validate:"required,oneof=accept reject"`
}

func (a *API) handleDiscoveryRespond(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req respondRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.Discovery.Respond(r.Context(), uid, req.RequestID, req.Action)
	if err != nil {
		a.writeServiceError(w, r, err, "respond_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"request_id": res.RequestID,
		"status":     res.Status,
		"kind":       res.Kind,
		"already":    res.Already,
		"sender":     res.Sender,
	})
}

func (a *API) handleDiscoveryInbox(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := discovery.InboxFilter{Kind: q.Get("kind"), Genre: q.Get("genre")}
	if raw := q.Get("has_vocals"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "has_vocals_invalid")
			return
		}
		f.HasVocals = &v
	}
	if raw := q.Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_score_invalid")
			return
		}
		f.MinScore = &v
	}
	items, err := a.Discovery.Inbox(r.Context(), uid, f)
	if err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleDiscoveryOutbox(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	items, err := a.Discovery.Outbox(r.Context(), uid, discovery.OutboxFilter{
		Kind:   r.URL.Query().Get("kind"),
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type discoveryMessageRequest struct {
	RequestID string `json:"request_id" validate:"required"`
	Message   string `json:"message" validate:"required,max=2000"`
}

func (a *API) handleDiscoveryMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req discoveryMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := a.Discovery.PostMessage(r.Context(), uid, req.RequestID, req.Message)
	if err != nil {
		a.writeServiceError(w, r, err, "message_failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "message": msg})
}

type reportRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
	Reason    string `json:"reason" validate:"max=2000"`
}

func (a *API) handleDiscoveryReport(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req reportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items, err := a.Discovery.Report(r.Context(), uid, req.ProjectID, req.Reason)
	if err != nil {
		a.writeServiceError(w, r, err, "report_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "requests": items})
}
