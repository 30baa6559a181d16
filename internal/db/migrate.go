/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/tekkin/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		// Accounts
		&models.Profile{},
		&models.Artist{},
		&models.InviteCode{},
		&models.InviteRedemption{},
		&models.ArtistAccess{},

		// Projects and analysis
		&models.Project{},
		&models.ProjectCollaborator{},
		&models.ProjectVersion{},
		&models.AnalysisJob{},

		// Social
		&models.TrackLike{},
		&models.TrackPlay{},
		&models.Notification{},

		// Discovery
		&models.DiscoveryTrack{},
		&models.DiscoveryRequest{},
		&models.DiscoveryMessage{},
		&models.DiscoveryReport{},

		// Charts
		&models.CuratedPlaylist{},
		&models.RankProfileVersion{},
		&models.ChartMetric{},
		&models.ChartSnapshot{},

		// External metrics
		&models.ArtistMetricsDaily{},
		&models.ArtistSyncJob{},
		&models.SpotlightEvent{},
	); err != nil {
		return err
	}

	if err := normalizeLegacyVisibility(database); err != nil {
		return err
	}
	return seedRankProfiles(database)
}

// normalizeLegacyVisibility maps the old "private" visibility of projects
// and versions onto the secret-link variant that replaced it.
func normalizeLegacyVisibility(database *gorm.DB) error {
	for _, table := range []string{"projects", "project_versions"} {
		if err := database.Exec(
			"UPDATE "+table+" SET visibility = ? WHERE visibility = ? OR visibility = '' OR visibility IS NULL",
			models.VisibilityPrivateSecretLink, models.VisibilityPrivate,
		).Error; err != nil {
			return fmt.Errorf("normalize %s visibility: %w", table, err)
		}
	}
	return nil
}

// seedRankProfiles publishes a default global and quality profile when none
// exists so a fresh install can rebuild charts.
func seedRankProfiles(database *gorm.DB) error {
	multiplier := 5.0
	defaults := []models.RankProfileVersion{
		{
			ProfileKey:  models.ChartProfileGlobal,
			IsPublished: true,
			Config: models.RankConfig{
				Weights:          map[string]float64{"analyzer": 0.55, "likes": 0.2, "plays": 0.15, "downloads": 0.1},
				Refs:             map[string]float64{"likes": 200, "plays": 3000, "downloads": 30},
				PublicMultiplier: &multiplier,
			},
		},
		{
			ProfileKey:  models.ChartProfileQuality,
			IsPublished: true,
			Config:      models.RankConfig{PublicMultiplier: &multiplier},
		},
	}

	for i := range defaults {
		var count int64
		if err := database.Model(&models.RankProfileVersion{}).
			Where("profile_key = ?", defaults[i].ProfileKey).
			Count(&count).Error; err != nil {
			return fmt.Errorf("count rank profiles: %w", err)
		}
		if count > 0 {
			continue
		}
		if err := database.Create(&defaults[i]).Error; err != nil {
			return fmt.Errorf("seed rank profile %s: %w", defaults[i].ProfileKey, err)
		}
	}
	return nil
}
