package tracks

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
	"github.com/friendsincode/tekkin/internal/notifications"
	"github.com/friendsincode/tekkin/internal/storage"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, models.ProjectVersion) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Project{}, &models.ProjectVersion{}, &models.ProjectCollaborator{},
		&models.TrackLike{}, &models.TrackPlay{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zerolog.Nop()
	store := storage.New(storage.NewFilesystemBackend(t.TempDir(), "http://tekkin.test", "secret", logger), logger)
	urls := storage.NewURLCache(store, nil, storage.TrackURLTTL, 0, logger)
	svc := NewService(db, urls, notifications.NewService(db, events.NewBus(), logger), logger)

	p := models.Project{UserID: "owner", Title: "Night Drive"}
	db.Create(&p)
	v := models.ProjectVersion{ProjectID: p.ID, VersionName: "v1", AudioPath: p.ID + "/a.wav", Visibility: models.VisibilityPrivateSecretLink}
	db.Create(&v)
	return svc, db, v
}

func TestToggleLike(t *testing.T) {
	svc, db, v := newTestService(t)
	ctx := context.Background()

	st, err := svc.ToggleLike(ctx, "fan", v.ID)
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if !st.Liked || st.Count != 1 {
		t.Fatalf("state=%+v", st)
	}
	var n int64
	db.Model(&models.Notification{}).Where("user_id = ?", "owner").Count(&n)
	if n != 1 {
		t.Fatalf("owner notifications=%d", n)
	}

	st, err = svc.ToggleLike(ctx, "fan", v.ID)
	if err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if st.Liked || st.Count != 0 {
		t.Fatalf("state=%+v", st)
	}

	if _, err := svc.ToggleLike(ctx, "fan", "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing version: %v", err)
	}
}

func TestLikes(t *testing.T) {
	svc, _, v := newTestService(t)
	ctx := context.Background()
	svc.ToggleLike(ctx, "a", v.ID)
	svc.ToggleLike(ctx, "b", v.ID)

	m, err := svc.Likes(ctx, "a", ParseIDs(v.ID+", other,"+v.ID))
	if err != nil {
		t.Fatalf("likes: %v", err)
	}
	if got := m[v.ID]; got.Count != 2 || !got.Liked {
		t.Fatalf("liked version=%+v", got)
	}
	if got, ok := m["other"]; !ok || got.Count != 0 || got.Liked {
		t.Fatalf("other=%+v ok=%v", got, ok)
	}

	anon, err := svc.Likes(ctx, "", []string{v.ID})
	if err != nil || anon[v.ID].Liked {
		t.Fatalf("anonymous=%+v err=%v", anon, err)
	}
}

func TestRecordPlay_DedupesWithinWindow(t *testing.T) {
	svc, _, v := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if ok, err := svc.RecordPlay(ctx, v.ID, "vid-1", ""); err != nil || !ok {
		t.Fatalf("first play: %v %v", ok, err)
	}
	if ok, err := svc.RecordPlay(ctx, v.ID, "vid-1", ""); err != nil || ok {
		t.Fatalf("repeat play: %v %v", ok, err)
	}
	if ok, err := svc.RecordPlay(ctx, v.ID, "vid-2", "fan"); err != nil || !ok {
		t.Fatalf("other visitor: %v %v", ok, err)
	}

	now = now.Add(DefaultPlayWindow + time.Minute)
	if ok, err := svc.RecordPlay(ctx, v.ID, "vid-1", ""); err != nil || !ok {
		t.Fatalf("after window: %v %v", ok, err)
	}
}

func TestSignedURL_Access(t *testing.T) {
	svc, db, v := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SignedURL(ctx, "stranger", v.ID); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("private version: %v", err)
	}
	first, err := svc.SignedURL(ctx, "owner", v.ID)
	if err != nil || first.URL == "" {
		t.Fatalf("owner: %+v %v", first, err)
	}

	db.Model(&models.ProjectVersion{}).Where("id = ?", v.ID).Update("visibility", models.VisibilityPublic)
	second, err := svc.SignedURL(ctx, "stranger", v.ID)
	if err != nil {
		t.Fatalf("public: %v", err)
	}
	if second.URL != first.URL {
		t.Fatal("expected the cached link to be reused")
	}
}
