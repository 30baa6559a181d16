/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"
)

type redeemRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

func (a *API) handleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req redeemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	acc, err := a.Access.Redeem(r.Context(), uid, req.Code)
	if err != nil {
		a.writeServiceError(w, r, err, "redeem_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "access": acc})
}

func (a *API) handleAccessMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	acc, err := a.Access.Status(r.Context(), uid)
	if err != nil {
		a.writeServiceError(w, r, err, "access_failed")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

type inviteCodeRequest struct {
	Code     string `json:"code" validate:"required,max=64"`
	MaxUses  int    `json:"max_uses" validate:"required,min=1"`
	TTLHours int    `json:"ttl_hours" validate:"omitempty,min=1"`
}

func (a *API) handleAdminCreateInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	invite, err := a.Access.CreateCode(r.Context(), req.Code, req.MaxUses, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		a.writeServiceError(w, r, err, "invite_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}
