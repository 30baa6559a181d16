package db

import (
	"testing"

	"github.com/friendsincode/tekkin/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrate_SeedsRankProfilesOnce(t *testing.T) {
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := Migrate(database); err != nil {
			t.Fatalf("migrate pass %d: %v", i+1, err)
		}
	}

	var profiles []models.RankProfileVersion
	if err := database.Order("profile_key").Find(&profiles).Error; err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("profiles=%d want 2", len(profiles))
	}
	if profiles[0].ProfileKey != models.ChartProfileGlobal || profiles[0].Config.Weights["analyzer"] != 0.55 {
		t.Fatalf("unexpected global profile: %+v", profiles[0])
	}
	if m := profiles[1].Config.PublicMultiplier; m == nil || *m != 5 {
		t.Fatalf("quality multiplier=%v want 5", m)
	}
}

func TestMigrate_NormalizesLegacyPrivateVisibility(t *testing.T) {
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	p := models.Project{UserID: "u1", Title: "old", Visibility: models.VisibilityPrivate}
	if err := database.Create(&p).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	v := models.ProjectVersion{ProjectID: p.ID, VersionName: "v1", Visibility: models.VisibilityPrivate}
	if err := database.Create(&v).Error; err != nil {
		t.Fatalf("create version: %v", err)
	}
	if err := Migrate(database); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}

	var got models.Project
	database.First(&got, "id = ?", p.ID)
	if got.Visibility != models.VisibilityPrivateSecretLink {
		t.Fatalf("visibility=%q want %q", got.Visibility, models.VisibilityPrivateSecretLink)
	}
	var gotV models.ProjectVersion
	database.First(&gotV, "id = ?", v.ID)
	if gotV.Visibility != models.VisibilityPrivateSecretLink {
		t.Fatalf("version visibility=%q", gotV.Visibility)
	}
}

func TestRegisterCallbacks(t *testing.T) {
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := RegisterCallbacks(database); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := database.AutoMigrate(&models.Profile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := database.Create(&models.Profile{Email: "a@b.c"}).Error; err != nil {
		t.Fatalf("create with callbacks: %v", err)
	}
	UpdateConnectionMetrics(database)
}
