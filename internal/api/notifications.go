/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
)

func (a *API) handleNotificationsList(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := a.Notifications.List(r.Context(), uid, limit)
	if err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	n, err := a.Notifications.UnreadCount(r.Context(), uid)
	if err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": n})
}

type markReadRequest struct {
	ID string `json:"id" validate:"required"`
}

func (a *API) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req markReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Notifications.MarkRead(r.Context(), uid, req.ID); err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := a.Notifications.MarkAllRead(r.Context(), uid); err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
