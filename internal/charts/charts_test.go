package charts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/models"
)

var wednesday = time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB, *events.Bus) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	err = db.AutoMigrate(
		&models.Profile{}, &models.Project{}, &models.ProjectVersion{},
		&models.TrackLike{}, &models.TrackPlay{}, &models.ChartMetric{},
		&models.ChartSnapshot{}, &models.RankProfileVersion{}, &models.CuratedPlaylist{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	bus := events.NewBus()
	svc := NewService(db, nil, bus, zerolog.Nop())
	svc.now = func() time.Time { return wednesday }
	return svc, db, bus
}

func score(v float64) *float64 { return &v }

func mustCreate(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func seedProfiles(t *testing.T, db *gorm.DB) {
	t.Helper()
	mustCreate(t, db, &models.RankProfileVersion{ProfileKey: models.ChartProfileGlobal, IsPublished: true,
		Config: models.RankConfig{PublicMultiplier: score(5)}, CreatedAt: wednesday.Add(-48 * time.Hour)})
	mustCreate(t, db, &models.RankProfileVersion{ProfileKey: models.ChartProfileQuality, IsPublished: true,
		CreatedAt: wednesday.Add(-48 * time.Hour)})
	// Newer draft must be ignored.
	mustCreate(t, db, &models.RankProfileVersion{ProfileKey: models.ChartProfileGlobal, IsPublished: false,
		Config: models.RankConfig{Weights: map[string]float64{"analyzer": 0}}, CreatedAt: wednesday})
}

// seedCatalog creates three projects:
//   - alpha: two public versions, latest scores 80
//   - bravo: one private version scoring 95
//   - delta: one public version scoring 80, older, with likes and plays
func seedCatalog(t *testing.T, db *gorm.DB) (alphaLatest, delta string) {
	t.Helper()
	base := wednesday.Add(-72 * time.Hour)
	mustCreate(t, db, &models.Profile{ID: "u1", Email: "u1@tekkin.test", ArtistName: "Nova"})
	mustCreate(t, db, &models.Profile{ID: "u2", Email: "u2@tekkin.test", ArtistName: "Hidden"})

	mustCreate(t, db, &models.Project{ID: "p-alpha", UserID: "u1", Title: "Alpha", Genre: "minimal_deep_tech", MixType: models.MixTypeMaster})
	mustCreate(t, db, &models.ProjectVersion{ID: "v-alpha-1", ProjectID: "p-alpha", AudioPath: "p-alpha/1.wav",
		Visibility: models.VisibilityPublic, OverallScore: score(50), CreatedAt: base})
	mustCreate(t, db, &models.ProjectVersion{ID: "v-alpha-2", ProjectID: "p-alpha", AudioPath: "p-alpha/2.wav",
		Visibility: models.VisibilityPublic, OverallScore: score(80), CreatedAt: base.Add(2 * time.Hour)})

	mustCreate(t, db, &models.Project{ID: "p-bravo", UserID: "u2", Title: "Bravo"})
	mustCreate(t, db, &models.ProjectVersion{ID: "v-bravo-1", ProjectID: "p-bravo", AudioPath: "p-bravo/1.wav",
		Visibility: models.VisibilityPrivateSecretLink, OverallScore: score(95), CreatedAt: base})

	mustCreate(t, db, &models.Project{ID: "p-delta", UserID: "u1", Title: "Delta"})
	mustCreate(t, db, &models.ProjectVersion{ID: "v-delta-1", ProjectID: "p-delta", AudioPath: "p-delta/1.wav",
		Visibility: models.VisibilityPublic, OverallScore: score(80), CreatedAt: base.Add(time.Hour)})
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		mustCreate(t, db, &models.TrackLike{VersionID: "v-delta-1", UserID: u})
	}
	for i := 0; i < 20; i++ {
		mustCreate(t, db, &models.TrackPlay{VersionID: "v-delta-1", VisitorID: "vis"})
	}
	mustCreate(t, db, &models.ChartMetric{VersionID: "v-alpha-2", ProjectID: "p-alpha", DownloadsTotal: 4})
	return "v-alpha-2", "v-delta-1"
}

func TestRebuildRequiresPublishedProfiles(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Rebuild(context.Background()); !errors.Is(err, ErrMissingProfiles) {
		t.Fatalf("err = %v, want ErrMissingProfiles", err)
	}
}

func TestRebuild(t *testing.T) {
	svc, db, bus := newTestService(t)
	seedProfiles(t, db)
	alpha, delta := seedCatalog(t, db)
	sub := bus.Subscribe(events.EventChartsRebuilt)

	res, err := svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res.PeriodStart != "2026-10-19" || res.PeriodEnd != "2026-10-25" {
		t.Fatalf("period = %s..%s", res.PeriodStart, res.PeriodEnd)
	}
	if res.MetricsUpserted != 3 {
		t.Fatalf("metrics upserted = %d, want 3", res.MetricsUpserted)
	}
	if res.SnapshotsWritten != 4 {
		t.Fatalf("snapshots written = %d, want 4", res.SnapshotsWritten)
	}
	select {
	case <-sub:
	default:
		t.Fatal("expected charts rebuilt event")
	}

	var m models.ChartMetric
	if err := db.First(&m, "version_id = ?", alpha).Error; err != nil {
		t.Fatalf("load metric: %v", err)
	}
	if m.DownloadsTotal != 4 || m.AnalyzerScore != 80 || m.ArtistID != "u1" {
		t.Fatalf("alpha metric = %+v", m)
	}
	if err := db.First(&m, "version_id = ?", delta).Error; err != nil {
		t.Fatalf("load metric: %v", err)
	}
	if m.LikesTotal != 5 || m.PlaysTotal != 20 {
		t.Fatalf("delta metric likes=%d plays=%d", m.LikesTotal, m.PlaysTotal)
	}

	quality, err := svc.Snapshot(context.Background(), models.ChartProfileQuality)
	if err != nil {
		t.Fatalf("quality snapshot: %v", err)
	}
	if len(quality.Items) != 2 {
		t.Fatalf("quality rows = %d, want 2 (private excluded)", len(quality.Items))
	}
	// Equal analyzer scores: the newer version ranks first.
	if quality.Items[0].VersionID != alpha || quality.Items[1].VersionID != delta {
		t.Fatalf("quality order = %s, %s", quality.Items[0].VersionID, quality.Items[1].VersionID)
	}
	if quality.Items[0].ScorePublic != 400 || quality.Items[0].ArtistName != "Nova" {
		t.Fatalf("quality top = %+v", quality.Items[0])
	}

	global, err := svc.Snapshot(context.Background(), models.ChartProfileGlobal)
	if err != nil {
		t.Fatalf("global snapshot: %v", err)
	}
	if len(global.Items) != 2 || global.Items[0].VersionID != delta {
		t.Fatalf("global top should be the engaged track, got %+v", global.Items)
	}
	if global.Items[0].RankPosition != 1 || global.Items[1].RankPosition != 2 {
		t.Fatalf("rank positions = %d, %d", global.Items[0].RankPosition, global.Items[1].RankPosition)
	}
	for _, row := range global.Items {
		if row.Score < 0 || row.Score > 100 {
			t.Fatalf("score out of range: %v", row.Score)
		}
	}

	// Rebuilding the same week replaces rather than appends.
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	var count int64
	db.Model(&models.ChartSnapshot{}).Count(&count)
	if count != 4 {
		t.Fatalf("snapshot rows after second rebuild = %d, want 4", count)
	}
}

func TestSnapshotFallsBackToLatestPeriod(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedProfiles(t, db)
	seedCatalog(t, db)
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	svc.now = func() time.Time { return wednesday.AddDate(0, 0, 7) }
	page, err := svc.Snapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if page.ProfileKey != models.ChartProfileGlobal || page.PeriodStart != "2026-10-19" || len(page.Items) == 0 {
		t.Fatalf("fallback page = %+v", page)
	}

	if _, err := svc.Snapshot(context.Background(), "weekly"); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("unknown profile err = %v", err)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)
	page, err := svc.Snapshot(context.Background(), models.ChartProfileQuality)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("items = %#v, want empty slice", page.Items)
	}
}

func TestPlaylists(t *testing.T) {
	svc, _, bus := newTestService(t)
	ctx := context.Background()
	sub := bus.Subscribe(events.EventPlaylistsChanged)
	off := false

	if _, err := svc.CreatePlaylist(ctx, PlaylistInput{Title: "   "}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("blank title err = %v", err)
	}

	top, err := svc.CreatePlaylist(ctx, PlaylistInput{Title: "Deep Tech Picks!", OrderIndex: 2, Genres: []string{"minimal_deep_tech"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if top.Slug != "deep-tech-picks" || !top.IsActive {
		t.Fatalf("created = %+v", top)
	}
	<-sub

	hidden, err := svc.CreatePlaylist(ctx, PlaylistInput{Title: "Afro", Slug: "Afro House", OrderIndex: 1, IsActive: &off})
	if err != nil {
		t.Fatalf("create hidden: %v", err)
	}
	if hidden.Slug != "afro-house" {
		t.Fatalf("slug = %q", hidden.Slug)
	}

	active, err := svc.ActivePlaylists(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].ID != top.ID {
		t.Fatalf("active = %+v", active)
	}

	on := true
	desc := " curated weekly "
	updated, err := svc.UpdatePlaylist(ctx, hidden.ID, PlaylistUpdate{IsActive: &on, Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.IsActive || updated.Description != "curated weekly" || updated.Title != "Afro" {
		t.Fatalf("updated = %+v", updated)
	}

	all, err := svc.ListPlaylists(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != hidden.ID {
		t.Fatalf("list order = %+v", all)
	}
	if len(all[1].Genres) != 1 || all[1].Genres[0] != "minimal_deep_tech" {
		t.Fatalf("genres = %v", all[1].Genres)
	}

	if _, err := svc.UpdatePlaylist(ctx, "missing", PlaylistUpdate{IsActive: &on}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
	if _, err := svc.UpdatePlaylist(ctx, hidden.ID, PlaylistUpdate{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("empty update err = %v", err)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Deep Tech Picks!": "deep-tech-picks",
		"  --Afro__House ": "afro-house",
		"###":              "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
