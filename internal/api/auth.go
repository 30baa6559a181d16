/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/auth"
	"github.com/friendsincode/tekkin/internal/models"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var profile models.Profile
	err := a.DB.WithContext(r.Context()).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	if !auth.CheckPassword(profile.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.Issue(a.JWTSecret, auth.Claims{
		UserID: profile.ID,
		Email:  profile.Email,
		Roles:  profile.RoleList(),
	}, a.JWTTTL)
	if err != nil {
		a.writeServiceError(w, r, err, "token_error")
		return
	}
	a.logger.Info().Str("user_id", profile.ID).Msg("login")
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int64(a.JWTTTL.Seconds()),
	})
}

func (a *API) handleProfileMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var profile models.Profile
	if err := a.DB.WithContext(r.Context()).First(&profile, "id = ?", uid).Error; err != nil {
		a.writeServiceError(w, r, err, "db_error")
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":  profile,
		"roles":    profile.RoleList(),
		"is_admin": a.Admins.IsAdmin(claims),
	})
}
