/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/models"
)

var errPremaster = fmt.Errorf("%w: only master versions can be published", models.ErrInvalidInput)

// SetVisibility changes who can see a project. Owners and collaborators
// may call it. Going public promotes the newest publishable version and
// fails with ErrNoPublishableVersion when there is none, or ErrInvalidInput
// when that version is a premaster.
func (s *Service) SetVisibility(ctx context.Context, userID, projectID, visibility string) (*models.ProjectVersion, error) {
	if visibility != models.VisibilityPublic && visibility != models.VisibilityPrivateSecretLink {
		return nil, fmt.Errorf("%w: invalid visibility", models.ErrInvalidInput)
	}
	project, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		ok, err := s.isCollaborator(ctx, userID, projectID)
		if err != nil {
			return nil, fmt.Errorf("check collaborator: %w", err)
		}
		if !ok {
			return nil, models.ErrForbidden
		}
	}

	var promoted *models.ProjectVersion
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if visibility == models.VisibilityPublic {
			var candidates []models.ProjectVersion
			if err := tx.Where("project_id = ? AND overall_score IS NOT NULL", projectID).
				Order("created_at DESC").
				Find(&candidates).Error; err != nil {
				return err
			}
			for i := range candidates {
				if candidates[i].Publishable() {
					promoted = &candidates[i]
					break
				}
			}
			if promoted == nil {
				return models.ErrNoPublishableVersion
			}
			if !promoted.IsMaster() {
				return errPremaster
			}
		}

		if err := tx.Model(&models.ProjectVersion{}).
			Where("project_id = ?", projectID).
			Update("visibility", models.VisibilityPrivateSecretLink).Error; err != nil {
			return err
		}
		if promoted != nil {
			if err := tx.Model(promoted).Update("visibility", models.VisibilityPublic).Error; err != nil {
				return err
			}
			promoted.Visibility = models.VisibilityPublic
		}
		return tx.Model(project).Update("visibility", visibility).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrNoPublishableVersion) || errors.Is(err, models.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("set visibility: %w", err)
	}

	if promoted != nil {
		s.publish(events.EventVersionUpdated, events.Payload{"version_id": promoted.ID, "project_id": projectID})
	}
	return promoted, nil
}

// DeleteVersion removes a version of an owned project and its audio.
func (s *Service) DeleteVersion(ctx context.Context, userID, versionID string) error {
	version, _, err := s.ownedVersion(ctx, userID, versionID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version_id = ?", version.ID).Delete(&models.TrackLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("version_id = ?", version.ID).Delete(&models.TrackPlay{}).Error; err != nil {
			return err
		}
		if err := tx.Where("version_id = ?", version.ID).Delete(&models.ChartMetric{}).Error; err != nil {
			return err
		}
		return tx.Delete(version).Error
	})
	if err != nil {
		return fmt.Errorf("delete version: %w", err)
	}

	s.removeObject(ctx, version.AudioPath)
	s.publish(events.EventVersionDeleted, events.Payload{"version_id": version.ID, "project_id": version.ProjectID})
	return nil
}

// DeleteProject removes an owned project with its versions, discovery
// rows, likes, plays and stored audio.
func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	project, err := s.ownedProject(ctx, userID, projectID)
	if err != nil {
		return err
	}

	var versions []models.ProjectVersion
	if err := s.db.WithContext(ctx).Where("project_id = ?", project.ID).Find(&versions).Error; err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	versionIDs := make([]string, 0, len(versions))
	for _, v := range versions {
		versionIDs = append(versionIDs, v.ID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := tx.Model(&models.DiscoveryRequest{}).Select("id").Where("project_id = ?", project.ID)
		if err := tx.Where("request_id IN (?)", requests).Delete(&models.DiscoveryMessage{}).Error; err != nil {
			return err
		}
		for _, target := range []any{&models.DiscoveryRequest{}, &models.DiscoveryTrack{}, &models.DiscoveryReport{}, &models.ProjectCollaborator{}} {
			if err := tx.Where("project_id = ?", project.ID).Delete(target).Error; err != nil {
				return err
			}
		}
		if len(versionIDs) > 0 {
			for _, target := range []any{&models.TrackLike{}, &models.TrackPlay{}, &models.ChartMetric{}, &models.AnalysisJob{}} {
				if err := tx.Where("version_id IN ?", versionIDs).Delete(target).Error; err != nil {
					return err
				}
			}
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectVersion{}).Error; err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	for _, v := range versions {
		s.removeObject(ctx, v.AudioPath)
		s.publish(events.EventVersionDeleted, events.Payload{"version_id": v.ID, "project_id": project.ID})
	}
	s.publish(events.EventProjectDeleted, events.Payload{"project_id": project.ID})
	s.logger.Info().Str("project_id", project.ID).Int("versions", len(versions)).Msg("project deleted")
	return nil
}

// RenameVersion changes the name of a version of an owned project.
func (s *Service) RenameVersion(ctx context.Context, userID, versionID, name string) (*models.ProjectVersion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: version_id and version_name are required", models.ErrInvalidInput)
	}
	version, _, err := s.ownedVersion(ctx, userID, versionID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(version).Update("version_name", name).Error; err != nil {
		return nil, fmt.Errorf("rename version: %w", err)
	}
	version.VersionName = name
	s.publish(events.EventVersionUpdated, events.Payload{"version_id": version.ID, "project_id": version.ProjectID})
	return version, nil
}

// UpdateVersionProfileKey sets the reference profile used when ranking a
// version. The key must name a catalog genre.
func (s *Service) UpdateVersionProfileKey(ctx context.Context, userID, versionID, profileKey string) (string, error) {
	profileKey = strings.TrimSpace(profileKey)
	if versionID == "" || profileKey == "" {
		return "", fmt.Errorf("%w: versionId and profileKey are required", models.ErrInvalidInput)
	}
	if !s.catalog.Valid(profileKey) {
		return "", fmt.Errorf("%w: unknown profile key", models.ErrInvalidInput)
	}
	version, _, err := s.ownedVersion(ctx, userID, versionID)
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(version).Update("analyzer_profile_key", profileKey).Error; err != nil {
		return "", fmt.Errorf("update profile key: %w", err)
	}
	s.publish(events.EventVersionUpdated, events.Payload{"version_id": version.ID, "project_id": version.ProjectID})
	return profileKey, nil
}

// SaveWaveformPeaks stores client-computed peaks once. Existing peaks are
// never overwritten; the result reports whether this call stored them.
func (s *Service) SaveWaveformPeaks(ctx context.Context, userID, versionID string, peaks []float64) (bool, error) {
	if versionID == "" || len(peaks) == 0 {
		return false, fmt.Errorf("%w: invalid payload", models.ErrInvalidInput)
	}
	version, _, err := s.versionForMember(ctx, userID, versionID)
	if err != nil {
		return false, err
	}
	encoded, err := json.Marshal(peaks)
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	res := s.db.WithContext(ctx).Model(&models.ProjectVersion{}).
		Where("id = ? AND (waveform_peaks IS NULL OR waveform_peaks = '' OR waveform_peaks = 'null')", version.ID).
		Update("waveform_peaks", string(encoded))
	if res.Error != nil {
		return false, fmt.Errorf("save peaks: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// versionForMember loads a version whose project userID owns or
// collaborates on.
func (s *Service) versionForMember(ctx context.Context, userID, versionID string) (*models.ProjectVersion, *models.Project, error) {
	var v models.ProjectVersion
	if err := s.db.WithContext(ctx).First(&v, "id = ?", versionID).Error; err != nil {
		return nil, nil, notFound(err)
	}
	p, err := s.project(ctx, v.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if p.UserID != userID {
		ok, err := s.isCollaborator(ctx, userID, p.ID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, models.ErrForbidden
		}
	}
	return &v, p, nil
}

// Download is a short-lived link to the newest audio of a project.
type Download struct {
	VersionID string `json:"version_id"`
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFileName makes a value safe for a Content-Disposition header.
func SanitizeFileName(v string) string {
	safe := strings.Trim(unsafeFileChars.ReplaceAllString(strings.TrimSpace(v), "-"), "-")
	if safe == "" {
		return "tekkin-audio"
	}
	return safe
}

func extensionOf(p string) string {
	p = strings.SplitN(strings.SplitN(p, "?", 2)[0], "#", 2)[0]
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return "mp3"
}

// DownloadLatest signs the newest version with audio of an owned project
// and counts the download for the charts.
func (s *Service) DownloadLatest(ctx context.Context, userID, projectID string) (*Download, error) {
	project, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var versions []models.ProjectVersion
	if err := s.db.WithContext(ctx).Where("project_id = ?", project.ID).
		Order("created_at DESC").Limit(10).Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	var latest *models.ProjectVersion
	for i := range versions {
		if versions[i].HasAudio() {
			latest = &versions[i]
			break
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	if project.UserID != userID {
		return nil, models.ErrForbidden
	}

	stored := latest.StoragePath()
	url := stored
	if latest.AudioPath != "" || !strings.HasPrefix(stored, "http") {
		// Only absolute external links are handed out unsigned.
		url, err = s.storage.Sign(ctx, stored, DownloadURLTTL)
		if err != nil {
			return nil, fmt.Errorf("sign audio: %w", err)
		}
	}

	title := project.Title
	if title == "" {
		title = project.ID
	}
	s.countDownload(ctx, latest, project)

	return &Download{
		VersionID: latest.ID,
		URL:       url,
		FileName:  fmt.Sprintf("tekkin-%s-%s.%s", SanitizeFileName(title), latest.ID, extensionOf(stored)),
	}, nil
}

func (s *Service) countDownload(ctx context.Context, v *models.ProjectVersion, p *models.Project) {
	row := models.ChartMetric{
		VersionID:      v.ID,
		ProjectID:      p.ID,
		ArtistID:       p.UserID,
		DownloadsTotal: 1,
		Visibility:     v.Visibility,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "version_id"}},
		DoUpdates: clause.Assignments(map[string]any{"downloads_total": gorm.Expr("downloads_total + 1")}),
	}).Create(&row).Error
	if err != nil {
		s.logger.Warn().Err(err).Str("version_id", v.ID).Msg("failed to count download")
	}
}
