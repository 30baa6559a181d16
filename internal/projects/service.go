/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package projects manages artist projects and their versions. Ownership
// is enforced here: every mutating call checks the caller against the
// project owner or its collaborators.
package projects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/genres"
	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/storage"
)

// DownloadURLTTL bounds links handed out by DownloadLatest.
const DownloadURLTTL = 5 * time.Minute

// Service implements the project and version lifecycle.
type Service struct {
	db      *gorm.DB
	storage *storage.Service
	catalog *genres.Catalog
	bus     events.Broker
	logger  zerolog.Logger
}

// NewService creates a project service. catalog defaults to the built-in
// genre catalog.
func NewService(db *gorm.DB, store *storage.Service, catalog *genres.Catalog, bus events.Broker, logger zerolog.Logger) *Service {
	if catalog == nil {
		catalog = genres.Default()
	}
	return &Service{
		db:      db,
		storage: store,
		catalog: catalog,
		bus:     bus,
		logger:  logger.With().Str("component", "projects").Logger(),
	}
}

// Upload is an audio file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// CreateInput describes a new project with its first version.
type CreateInput struct {
	Title   string
	Genre   string
	MixType string
	Audio   Upload
}

func (s *Service) publish(t events.EventType, payload events.Payload) {
	if s.bus != nil {
		s.bus.Publish(t, payload)
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}

func (s *Service) project(ctx context.Context, projectID string) (*models.Project, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project_id missing", models.ErrInvalidInput)
	}
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, "id = ?", projectID).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ownedProject loads a project and requires userID to own it. Foreign
// projects are reported as missing.
func (s *Service) ownedProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (s *Service) isCollaborator(ctx context.Context, userID, projectID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ProjectCollaborator{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&n).Error
	return n > 0, err
}

// ownedVersion loads a version whose parent project is owned by userID.
func (s *Service) ownedVersion(ctx context.Context, userID, versionID string) (*models.ProjectVersion, *models.Project, error) {
	if versionID == "" {
		return nil, nil, fmt.Errorf("%w: version_id missing", models.ErrInvalidInput)
	}
	var v models.ProjectVersion
	if err := s.db.WithContext(ctx).First(&v, "id = ?", versionID).Error; err != nil {
		return nil, nil, notFound(err)
	}
	p, err := s.ownedProject(ctx, userID, v.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return &v, p, nil
}

// Create uploads the audio and creates the project with version v1.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Project, *models.ProjectVersion, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || in.Audio.Body == nil {
		return nil, nil, fmt.Errorf("%w: missing file or title", models.ErrInvalidInput)
	}
	if in.Genre != "" && !s.catalog.Valid(in.Genre) {
		return nil, nil, fmt.Errorf("%w: unknown genre %q", models.ErrInvalidInput, in.Genre)
	}
	mixType, err := normalizeMixType(in.MixType)
	if err != nil {
		return nil, nil, err
	}

	project := models.Project{
		UserID:     userID,
		Title:      in.Title,
		Genre:      in.Genre,
		MixType:    mixType,
		Visibility: models.VisibilityPrivateSecretLink,
	}
	// The id is needed for the object key before the row exists.
	if err := project.BeforeCreate(nil); err != nil {
		return nil, nil, err
	}

	key, err := s.storage.Upload(ctx, project.ID, in.Audio.Filename, in.Audio.ContentType, in.Audio.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("upload audio: %w", err)
	}

	version := models.ProjectVersion{
		ProjectID:   project.ID,
		VersionName: "v1",
		AudioPath:   key,
		MixType:     mixType,
		Visibility:  models.VisibilityPrivateSecretLink,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		return tx.Create(&version).Error
	})
	if err != nil {
		s.removeObject(ctx, key)
		return nil, nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info().Str("project_id", project.ID).Str("user_id", userID).Msg("project created")
	return &project, &version, nil
}

// AddVersion uploads a new revision of a project owned by userID.
func (s *Service) AddVersion(ctx context.Context, userID, projectID, versionName string, audio Upload) (*models.ProjectVersion, error) {
	if projectID == "" || audio.Body == nil {
		return nil, fmt.Errorf("%w: project_id or audio missing", models.ErrInvalidInput)
	}
	project, err := s.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	versionName = strings.TrimSpace(versionName)
	if versionName == "" {
		versionName = "v2"
	}

	key, err := s.storage.Upload(ctx, project.ID, audio.Filename, audio.ContentType, audio.Body)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}

	version := models.ProjectVersion{
		ProjectID:   project.ID,
		VersionName: versionName,
		AudioPath:   key,
		MixType:     project.MixType,
		Visibility:  models.VisibilityPrivateSecretLink,
	}
	if err := s.db.WithContext(ctx).Create(&version).Error; err != nil {
		s.removeObject(ctx, key)
		return nil, fmt.Errorf("create version: %w", err)
	}
	return &version, nil
}

// InfoUpdate carries optional project fields. Nil means unchanged.
type InfoUpdate struct {
	CoverLink   *string
	Description *string
}

// UpdateInfo edits the cover link and description of an owned project.
func (s *Service) UpdateInfo(ctx context.Context, userID, projectID string, in InfoUpdate) (*models.Project, error) {
	updates := map[string]any{}
	if in.CoverLink != nil {
		updates["cover_link"] = strings.TrimSpace(*in.CoverLink)
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", models.ErrInvalidInput)
	}

	project, err := s.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

// Rename changes the title of an owned project.
func (s *Service) Rename(ctx context.Context, userID, projectID, title string) (*models.Project, error) {
	title = strings.TrimSpace(title)
	if projectID == "" || title == "" {
		return nil, fmt.Errorf("%w: project_id and title are required", models.ErrInvalidInput)
	}
	project, err := s.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(project).Update("title", title).Error; err != nil {
		return nil, fmt.Errorf("rename project: %w", err)
	}
	project.Title = title
	return project, nil
}

// LeaveCollab removes userID from the collaborators of a project.
func (s *Service) LeaveCollab(ctx context.Context, userID, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("%w: project_id missing", models.ErrInvalidInput)
	}
	ok, err := s.isCollaborator(ctx, userID, projectID)
	if err != nil {
		return fmt.Errorf("check collaborator: %w", err)
	}
	if !ok {
		return models.ErrForbidden
	}
	return s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectCollaborator{}).Error
}

func normalizeMixType(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return "", nil
	case models.MixTypeMaster:
		return models.MixTypeMaster, nil
	case models.MixTypePremaster:
		return models.MixTypePremaster, nil
	default:
		return "", fmt.Errorf("%w: mix_type must be master or premaster", models.ErrInvalidInput)
	}
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if key == "" || s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to delete stored audio")
	}
}
