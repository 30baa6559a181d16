/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/friendsincode/tekkin/internal/projects"
)

// parseUpload reads a multipart form with one "audio" file part. The
// caller must close the returned file.
func (a *API) parseUpload(w http.ResponseWriter, r *http.Request) (multipart.File, projects.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return nil, projects.Upload{}, false
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		// Older clients send the part as "file".
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_required")
		return nil, projects.Upload{}, false
	}
	return file, projects.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, true
}

func (a *API) handleCreateWithUpload(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	file, upload, ok := a.parseUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	project, version, err := a.Projects.Create(r.Context(), uid, projects.CreateInput{
		Title:   r.FormValue("title"),
		Genre:   r.FormValue("genre"),
		MixType: r.FormValue("mix_type"),
		Audio:   upload,
	})
	if err != nil {
		a.writeServiceError(w, r, err, "project_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "project": project, "version": version})
}

func (a *API) handleAddVersion(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	file, upload, ok := a.parseUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	version, err := a.Projects.AddVersion(r.Context(), uid, r.FormValue("project_id"), r.FormValue("version_name"), upload)
	if err != nil {
		a.writeServiceError(w, r, err, "version_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "version": version})
}

type updateInfoRequest struct {
	ProjectID   string  `json:"projectId" validate:"required"`
	CoverLink   *string `json:"coverLink" validate:"omitempty,max=2048"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

func (a *API) handleUpdateInfo(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req updateInfoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CoverLink == nil && req.Description == nil {
		writeError(w, http.StatusBadRequest, "no_fields")
		return
	}
	project, err := a.Projects.UpdateInfo(r.Context(), uid, req.ProjectID, projects.InfoUpdate{
		CoverLink:   req.CoverLink,
		Description: req.Description,
	})
	if err != nil {
		a.writeServiceError(w, r, err, "project_update_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "project": project})
}

type updateProjectRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
	Title     string `json:"title" validate:"required,max=200"`
}

func (a *API) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req updateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	project, err := a.Projects.Rename(r.Context(), uid, req.ProjectID, req.Title)
	if err != nil {
		a.writeServiceError(w, r, err, "project_update_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": map[string]string{"id": project.ID, "title": project.Title}})
}

type updateVersionRequest struct {
	VersionID   string `json:"version_id" validate:"required"`
	VersionName string `json:"version_name" validate:"required,max=128"`
}

func (a *API) handleUpdateVersion(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req updateVersionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	version, err := a.Projects.RenameVersion(r.Context(), uid, req.VersionID, req.VersionName)
	if err != nil {
		a.writeServiceError(w, r, err, "version_update_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": map[string]string{"id": version.ID, "version_name": version.VersionName}})
}

type setVisibilityRequest struct {
	ProjectID  string `json:"project_id" validate:"required"`
	Visibility string `json:"visibility" validate:"required,oneof=public private_with_secret_link"`
}

func (a *API) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req setVisibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	published, err := a.Projects.SetVisibility(r.Context(), uid, req.ProjectID, req.Visibility)
	if err != nil {
		a.writeServiceError(w, r, err, "visibility_update_failed")
		return
	}
	resp := map[string]any{"ok": true, "visibility": req.Visibility}
	if published != nil {
		resp["public_version_id"] = published.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

type projectRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
}

func (a *API) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req versionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Projects.DeleteVersion(r.Context(), uid, req.VersionID); err != nil {
		a.writeServiceError(w, r, err, "version_delete_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Projects.DeleteProject(r.Context(), uid, req.ProjectID); err != nil {
		a.writeServiceError(w, r, err, "project_delete_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleLeaveCollab(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Projects.LeaveCollab(r.Context(), uid, req.ProjectID); err != nil {
		a.writeServiceError(w, r, err, "leave_collab_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type profileKeyRequest struct {
	VersionID  string `json:"versionId" validate:"required"`
	ProfileKey string `json:"profileKey" validate:"required"`
}

func (a *API) handleUpdateVersionProfileKey(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req profileKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, err := a.Projects.UpdateVersionProfileKey(r.Context(), uid, req.VersionID, req.ProfileKey)
	if err != nil {
		a.writeServiceError(w, r, err, "profile_key_update_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "profileKey": key})
}

func (a *API) handleDownloadLatest(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project_id_required")
		return
	}
	dl, err := a.Projects.DownloadLatest(r.Context(), uid, projectID)
	if err != nil {
		a.writeServiceError(w, r, err, "download_failed")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.FileName))
	http.Redirect(w, r, dl.URL, http.StatusFound)
}

type waveformRequest struct {
	VersionID string    `json:"versionId" validate:"required"`
	Peaks     []float64 `json:"peaks" validate:"required,min=1,max=20000"`
}

func (a *API) handleSaveWaveformPeaks(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req waveformRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	saved, err := a.Projects.SaveWaveformPeaks(r.Context(), uid, req.VersionID, req.Peaks)
	if err != nil {
		a.writeServiceError(w, r, err, "waveform_save_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "saved": saved})
}
