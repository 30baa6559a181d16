package projects

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/storage"
)

type testEnv struct {
	db   *gorm.DB
	svc  *Service
	bus  *events.Bus
	root string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	err = db.AutoMigrate(
		&models.Project{}, &models.ProjectVersion{}, &models.ProjectCollaborator{},
		&models.TrackLike{}, &models.TrackPlay{}, &models.ChartMetric{}, &models.AnalysisJob{},
		&models.DiscoveryRequest{}, &models.DiscoveryTrack{}, &models.DiscoveryMessage{}, &models.DiscoveryReport{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	root := t.TempDir()
	logger := zerolog.Nop()
	store := storage.New(storage.NewFilesystemBackend(root, "http://tekkin.test", "secret", logger), logger)
	bus := events.NewBus()
	return &testEnv{db: db, svc: NewService(db, store, nil, bus, logger), bus: bus, root: root}
}

func (e *testEnv) create(t *testing.T, owner string) (*models.Project, *models.ProjectVersion) {
	t.Helper()
	p, v, err := e.svc.Create(context.Background(), owner, CreateInput{
		Title: "Night Drive",
		Genre: "minimal_deep_tech",
		Audio: Upload{Filename: "mix.wav", ContentType: "audio/wav", Body: strings.NewReader("RIFF")},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return p, v
}

func score(v float64) *float64 { return &v }

func TestCreateAndAddVersion(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p, v1 := e.create(t, "owner")

	if v1.VersionName != "v1" || !strings.HasPrefix(v1.AudioPath, p.ID+"/") {
		t.Fatalf("v1=%+v", v1)
	}
	if _, err := os.Stat(filepath.Join(e.root, v1.AudioPath)); err != nil {
		t.Fatalf("audio not stored: %v", err)
	}

	v2, err := e.svc.AddVersion(ctx, "owner", p.ID, "", Upload{Filename: "mix2.wav", Body: strings.NewReader("RIFF")})
	if err != nil {
		t.Fatalf("add version: %v", err)
	}
	if v2.VersionName != "v2" {
		t.Fatalf("default name=%q", v2.VersionName)
	}

	if _, err := e.svc.AddVersion(ctx, "other", p.ID, "v3", Upload{Body: strings.NewReader("x")}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("foreign add: %v", err)
	}
	if _, _, err := e.svc.Create(ctx, "owner", CreateInput{Title: " "}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("missing title: %v", err)
	}
}

func TestUpdateInfo(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p, _ := e.create(t, "owner")

	if _, err := e.svc.UpdateInfo(ctx, "owner", p.ID, InfoUpdate{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("empty update: %v", err)
	}
	desc := "  deep and rolling "
	got, err := e.svc.UpdateInfo(ctx, "owner", p.ID, InfoUpdate{Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Description != "deep and rolling" {
		t.Fatalf("description=%q", got.Description)
	}
}

func TestRename(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p, v := e.create(t, "owner")
	sub := e.bus.Subscribe(events.EventVersionUpdated)
	defer e.bus.Unsubscribe(events.EventVersionUpdated, sub)

	got, err := e.svc.Rename(ctx, "owner", p.ID, "  Night Drive II ")
	if err != nil || got.Title != "Night Drive II" {
		t.Fatalf("rename=%+v err=%v", got, err)
	}
	if _, err := e.svc.Rename(ctx, "owner", p.ID, " "); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("blank title: %v", err)
	}
	if _, err := e.svc.Rename(ctx, "stranger", p.ID, "Mine"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("stranger rename: %v", err)
	}

	gotV, err := e.svc.RenameVersion(ctx, "owner", v.ID, "final bounce")
	if err != nil || gotV.VersionName != "final bounce" {
		t.Fatalf("rename version=%+v err=%v", gotV, err)
	}
	select {
	case payload := <-sub:
		if payload["version_id"] != v.ID {
			t.Fatalf("payload=%v", payload)
		}
	default:
		t.Fatal("no version.updated event")
	}
	if _, err := e.svc.RenameVersion(ctx, "stranger", v.ID, "x"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("stranger rename version: %v", err)
	}

	var stored models.ProjectVersion
	e.db.First(&stored, "id = ?", v.ID)
	if stored.VersionName != "final bounce" {
		t.Fatalf("stored name=%q", stored.VersionName)
	}
}

func TestSetVisibility(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p, v1 := e.create(t, "owner")

	if _, err := e.svc.SetVisibility(ctx, "owner", p.ID, "friends"); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("bad visibility: %v", err)
	}
	if _, err := e.svc.SetVisibility(ctx, "stranger", p.ID, models.VisibilityPublic); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("stranger: %v", err)
	}
	if _, err := e.svc.SetVisibility(ctx, "owner", p.ID, models.VisibilityPublic); !errors.Is(err, models.ErrNoPublishableVersion) {
		t.Fatalf("unanalyzed publish: %v", err)
	}

	e.db.Model(v1).Update("overall_score", 71.0)
	v2, err := e.svc.AddVersion(ctx, "owner", p.ID, "v2", Upload{Filename: "b.wav", Body: strings.NewReader("RIFF")})
	if err != nil {
		t.Fatalf("add version: %v", err)
	}

	e.db.Create(&models.ProjectCollaborator{ProjectID: p.ID, UserID: "collab"})
	promoted, err := e.svc.SetVisibility(ctx, "collab", p.ID, models.VisibilityPublic)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	// v2 is newer but not analyzed.
	if promoted.ID != v1.ID {
		t.Fatalf("promoted=%s want %s", promoted.ID, v1.ID)
	}

	var stored models.ProjectVersion
	e.db.First(&stored, "id = ?", v2.ID)
	if stored.Visibility != models.VisibilityPrivateSecretLink {
		t.Fatalf("v2 visibility=%s", stored.Visibility)
	}

	if _, err := e.svc.SetVisibility(ctx, "owner", p.ID, models.VisibilityPrivateSecretLink); err != nil {
		t.Fatalf("private: %v", err)
	}
	var public int64
	e.db.Model(&models.ProjectVersion{}).Where("project_id = ? AND visibility = ?", p.ID, models.VisibilityPublic).Count(&public)
	if public != 0 {
		t.Fatalf("public versions=%d", public)
	}
}

func TestSetVisibility_MasterOnly(t *testing.T) {
	tests := []struct {
		name    string
		mixType string
		wantErr error
	}{
		{"unset counts as master", "", nil},
		{"master", models.MixTypeMaster, nil},
		{"premaster refused", models.MixTypePremaster, models.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			ctx := context.Background()
			p, v, err := e.svc.Create(ctx, "owner", CreateInput{
				Title:   "Warehouse",
				MixType: tt.mixType,
				Audio:   Upload{Filename: "mix.wav", Body: strings.NewReader("RIFF")},
			})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if v.Visibility != models.VisibilityPrivateSecretLink {
				t.Fatalf("new version visibility=%s", v.Visibility)
			}
			e.db.Model(v).Update("overall_score", 80.0)

			promoted, err := e.svc.SetVisibility(ctx, "owner", p.ID, models.VisibilityPublic)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v want %v", err, tt.wantErr)
				}
				var stored models.ProjectVersion
				e.db.First(&stored, "id = ?", v.ID)
				if stored.Visibility != models.VisibilityPrivateSecretLink {
					t.Fatalf("refused publish changed visibility to %s", stored.Visibility)
				}
				return
			}
			if err != nil {
				t.Fatalf("publish: %v", err)
			}
			if promoted.ID != v.ID || promoted.Visibility != models.VisibilityPublic {
				t.Fatalf("promoted=%+v", promoted)
			}
		})
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p, v1 := e.create(t, "owner")
	sub := e.bus.Subscribe(events.EventProjectDeleted)

	req := models.DiscoveryRequest{SenderID: "a", ReceiverID: "owner", ProjectID: p.ID, Kind: models.DiscoveryKindCollab}
	e.db.Create(&req)
	e.db.Create(&models.DiscoveryMessage{RequestID: req.ID, SenderID: "a", Message: "hi"})
	e.db.Create(&models.DiscoveryTrack{ProjectID: p.ID, UserID: "owner"})
	e.db.Create(&models.TrackLike{VersionID: v1.ID, UserID: "fan"})

	if err := e.svc.DeleteProject(ctx, "intruder", p.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("foreign delete: %v", err)
	}
	if err := e.svc.DeleteProject(ctx, "owner", p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for name, m := range map[string]any{
		"versions": &models.ProjectVersion{},
		"requests": &models.DiscoveryRequest{},
		"messages": &models.DiscoveryMessage{},
		"tracks":   &models.DiscoveryTrack{},
		"likes":    &models.TrackLike{},
		"projects": &models.Project{},
	} {
		var n int64
		e.db.Model(m).Count(&n)
		if n != 0 {
			t.Errorf("%s left: %d", name, n)
		}
	}
	if _, err := os.Stat(filepath.Join(e.root, v1.AudioPath)); !os.IsNotExist(err) {
		t.Fatalf("audio not removed: %v", err)
	}
	select {
	case payload := <-sub:
		if payload.String("project_id") != p.ID {
			t.Fatalf("payload=%v", payload)
		}
	default:
		t.Fatal("project deletion not published")
	}
}

func TestDeleteVersionAndLeaveCollab(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p, v1 := e.create(t, "owner")

	if err := e.svc.DeleteVersion(ctx, "other", v1.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("foreign delete: %v", err)
	}
	if err := e.svc.DeleteVersion(ctx, "owner", v1.ID); err != nil {
		t.Fatalf("delete version: %v", err)
	}

	if err := e.svc.LeaveCollab(ctx, "collab", p.ID); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("not a collaborator: %v", err)
	}
	e.db.Create(&models.ProjectCollaborator{ProjectID: p.ID, UserID: "collab"})
	if err := e.svc.LeaveCollab(ctx, "collab", p.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
}

func TestProfileKeyAndPeaks(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, v1 := e.create(t, "owner")

	if _, err := e.svc.UpdateVersionProfileKey(ctx, "owner", v1.ID, "polka"); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("unknown key: %v", err)
	}
	key, err := e.svc.UpdateVersionProfileKey(ctx, "owner", v1.ID, "afro_house")
	if err != nil || key != "afro_house" {
		t.Fatalf("update key: %q %v", key, err)
	}

	saved, err := e.svc.SaveWaveformPeaks(ctx, "owner", v1.ID, []float64{0.1, 0.8})
	if err != nil || !saved {
		t.Fatalf("save peaks: %v %v", saved, err)
	}
	saved, err = e.svc.SaveWaveformPeaks(ctx, "owner", v1.ID, []float64{0.9})
	if err != nil || saved {
		t.Fatalf("peaks must not be overwritten: %v %v", saved, err)
	}
	var stored models.ProjectVersion
	e.db.First(&stored, "id = ?", v1.ID)
	if len(stored.WaveformPeaks) != 2 {
		t.Fatalf("peaks=%v", stored.WaveformPeaks)
	}
}

func TestDownloadLatest(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p, v1 := e.create(t, "owner")

	dl, err := e.svc.DownloadLatest(ctx, "owner", p.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if dl.VersionID != v1.ID || !strings.Contains(dl.URL, "sig=") {
		t.Fatalf("download=%+v", dl)
	}
	if dl.FileName != "tekkin-Night-Drive-"+v1.ID+".wav" {
		t.Fatalf("file name=%q", dl.FileName)
	}
	if _, err := e.svc.DownloadLatest(ctx, "other", p.ID); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("foreign download: %v", err)
	}

	var metric models.ChartMetric
	if err := e.db.First(&metric, "version_id = ?", v1.ID).Error; err != nil || metric.DownloadsTotal != 1 {
		t.Fatalf("metric=%+v err=%v", metric, err)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"Night Drive!": "Night-Drive",
		"  ":           "tekkin-audio",
		"a/b..c":       "a-b..c",
	}
	for in, want := range tests {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q)=%q want %q", in, got, want)
		}
	}
}
