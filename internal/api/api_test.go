package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/access"
	"github.com/friendsincode/tekkin/internal/analyzer"
	"github.com/friendsincode/tekkin/internal/artists"
	"github.com/friendsincode/tekkin/internal/auth"
	"github.com/friendsincode/tekkin/internal/charts"
	"github.com/friendsincode/tekkin/internal/db"
	"github.com/friendsincode/tekkin/internal/discovery"
	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/genres"
	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/notifications"
	"github.com/friendsincode/tekkin/internal/projects"
	"github.com/friendsincode/tekkin/internal/reference"
	"github.com/friendsincode/tekkin/internal/scanner"
	"github.com/friendsincode/tekkin/internal/spotify"
	"github.com/friendsincode/tekkin/internal/spotlight"
	"github.com/friendsincode/tekkin/internal/storage"
	"github.com/friendsincode/tekkin/internal/tracks"
)

var testSecret = []byte("test-secret")

const cronSecret = "cron-secret"

type fakePreviewer struct{}

func (fakePreviewer) AlbumPreview(_ context.Context, id string) (*spotify.Preview, error) {
	if id == "0000000000000000000000" {
		return nil, spotify.ErrNoPreview
	}
	return &spotify.Preview{PreviewURL: "https://p.scdn.co/mp3-preview/x", TrackName: "Intro"}, nil
}

type fakeFinder struct{}

func (fakeFinder) FindArtist(_ context.Context, name string) (*scanner.Match, error) {
	if name == "Nobody" {
		return nil, models.ErrNotFound
	}
	return &scanner.Match{URL: "https://www.beatport.com/artist/nova/1", Slug: "nova", ID: "1", Source: scanner.SourceStatic}, nil
}

type testEnv struct {
	db     *gorm.DB
	router chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := database.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zerolog.Nop()
	bus := events.NewBus()
	store := storage.New(storage.NewFilesystemBackend(t.TempDir(), "http://tekkin.test", "secret", logger), logger)
	urls := storage.NewURLCache(store, nil, storage.TrackURLTTL, 0, logger)
	notif := notifications.NewService(database, bus, logger)
	refs := reference.NewLoader(t.TempDir(), nil, logger)

	a := New(Deps{
		DB:            database,
		JWTSecret:     testSecret,
		CronSecret:    cronSecret,
		Admins:        auth.NewAdminPolicy([]string{"boss@tekkin.test"}, nil),
		Access:        access.NewService(database, logger),
		Catalog:       genres.Default(),
		References:    refs,
		Storage:       store,
		URLs:          urls,
		Notifications: notif,
		Projects:      projects.NewService(database, store, genres.Default(), bus, logger),
		Tracks:        tracks.NewService(database, urls, notif, logger),
		Analyzer:      analyzer.NewService(analyzer.Deps{DB: database, Storage: store, References: refs, Notifications: notif, Bus: bus}, logger),
		Discovery:     discovery.NewService(database, urls, notif, logger),
		Charts:        charts.NewService(database, nil, bus, logger),
		Artists:       artists.NewService(database, nil, nil, bus, logger),
		Spotlight:     spotlight.NewService(database, nil, nil, nil, logger),
		Spotify:       fakePreviewer{},
		Scanner:       fakeFinder{},
	}, logger)

	r := chi.NewRouter()
	a.Routes(r)
	return &testEnv{db: database, router: r}
}

func token(t *testing.T, uid, email string) string {
	t.Helper()
	tok, err := auth.Issue(testSecret, auth.Claims{UserID: uid, Email: email, Roles: []string{"artist"}}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, tok string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestLoginAndProfile(t *testing.T) {
	env := newTestEnv(t)
	hash, err := auth.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	env.db.Create(&models.Profile{ID: "u1", Email: "nova@tekkin.test", PasswordHash: hash, ArtistName: "Nova"})

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "Nova@tekkin.test", "password": "hunter22"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}
	tok, _ := decode(t, rec)["token"].(string)
	if tok == "" {
		t.Fatal("missing token")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/profile/me", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status=%d", rec.Code)
	}
	body := decode(t, rec)
	if body["is_admin"] != false || body["profile"].(map[string]any)["artist_name"] != "Nova" {
		t.Fatalf("profile body=%v", body)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "nova@tekkin.test", "password": "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status=%d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/v1/notifications/unread-count", "/api/v1/profile/me", "/api/v1/discovery/inbox"} {
		if rec := env.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s status=%d want 401", path, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/genres", "", nil); rec.Code != http.StatusOK {
		t.Errorf("genres status=%d want 200", rec.Code)
	}
}

func TestValidationCodes(t *testing.T) {
	env := newTestEnv(t)
	tok := token(t, "u1", "")
	tests := []struct {
		name string
		path string
		body any
		want string
	}{
		{"missing version", "/api/v1/tracks/toggle-like", map[string]string{}, "version_id_required"},
		{"bad kind", "/api/v1/discovery/request", map[string]string{"receiver_id": "u2", "project_id": "p", "kind": "remix"}, "kind_invalid"},
		{"bad visibility", "/api/v1/projects/set-visibility", map[string]string{"project_id": "p", "visibility": "hidden"}, "visibility_invalid"},
		{"camel field", "/api/v1/projects/update-version-profile-key", map[string]string{"profileKey": "x"}, "version_id_required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, tok, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			if got := decode(t, rec)["error"]; got != tt.want {
				t.Fatalf("error=%v want %s", got, tt.want)
			}
		})
	}
}

func TestCronGuards(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/v1/charts/rebuild", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("rebuild without secret status=%d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/v1/charts/rebuild", cronSecret, nil)
	if rec.Code != http.StatusOK || decode(t, rec)["ok"] != true {
		t.Fatalf("rebuild status=%d body=%s", rec.Code, rec.Body.String())
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/artists/sync", "", nil, CronHeader, "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("sync wrong secret status=%d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/artists/sync", "", nil, CronHeader, cronSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["processed"]; got != float64(0) {
		t.Fatalf("processed=%v", got)
	}
}

func TestAdminPlaylists(t *testing.T) {
	env := newTestEnv(t)
	artist := token(t, "u1", "nova@tekkin.test")
	admin := token(t, "u9", "boss@tekkin.test")

	if rec := env.do(t, http.MethodGet, "/api/v1/admin/playlists", artist, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin status=%d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/v1/admin/playlists", admin, map[string]any{"title": "Warehouse Heat"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	pl := decode(t, rec)["playlist"].(map[string]any)
	if pl["slug"] != "warehouse-heat" {
		t.Fatalf("slug=%v", pl["slug"])
	}

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/admin/playlists/%v", pl["id"]), admin, map[string]any{"is_active": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/v1/charts/playlists", "", nil)
	if items := decode(t, rec)["items"].([]any); len(items) != 0 {
		t.Fatalf("inactive playlist listed: %v", items)
	}
	if rec := env.do(t, http.MethodPatch, "/api/v1/admin/playlists/missing", admin, map[string]any{"title": "x"}); rec.Code != http.StatusNotFound {
		t.Fatalf("missing playlist status=%d", rec.Code)
	}
}

func TestPlayedCookie(t *testing.T) {
	env := newTestEnv(t)
	p := models.Project{UserID: "owner", Title: "Night Drive"}
	env.db.Create(&p)
	v := models.ProjectVersion{ProjectID: p.ID, VersionName: "v1", AudioPath: p.ID + "/a.wav", Visibility: models.VisibilityPublic}
	env.db.Create(&v)

	rec := env.do(t, http.MethodPost, "/api/v1/tracks/played", "", map[string]string{"version_id": v.ID})
	if rec.Code != http.StatusOK || decode(t, rec)["inserted"] != true {
		t.Fatalf("first play status=%d body=%s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != tracks.VisitorCookie || cookies[0].MaxAge != int(tracks.VisitorCookieMaxAge.Seconds()) {
		t.Fatalf("cookies=%v", cookies)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/tracks/played", "", map[string]string{"version_id": v.ID}, "Cookie", tracks.VisitorCookie+"="+cookies[0].Value)
	if decode(t, rec)["inserted"] != false {
		t.Fatalf("repeat play body=%s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/tracks/likes?version_ids="+v.ID, "", nil)
	m := decode(t, rec)["map"].(map[string]any)
	if _, ok := m[v.ID]; !ok {
		t.Fatalf("likes map=%v", m)
	}
}

func TestSetVisibilityConflict(t *testing.T) {
	env := newTestEnv(t)
	p := models.Project{UserID: "u1", Title: "Draft"}
	env.db.Create(&p)
	env.db.Create(&models.ProjectVersion{ProjectID: p.ID, VersionName: "v1", AudioPath: p.ID + "/a.wav", Visibility: models.VisibilityPrivateSecretLink})

	rec := env.do(t, http.MethodPost, "/api/v1/projects/set-visibility", token(t, "u1", ""),
		map[string]string{"project_id": p.ID, "visibility": "public"})
	if rec.Code != http.StatusConflict || decode(t, rec)["error"] != "no_publishable_version" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/projects/set-visibility", token(t, "stranger", ""),
		map[string]string{"project_id": p.ID, "visibility": "public"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger status=%d", rec.Code)
	}
}

func TestReferenceNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/reference/Deep-House!", token(t, "u1", ""), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	body := decode(t, rec)
	if body["error"] != "Reference not found" || body["profileKey"] != "deep_house" {
		t.Fatalf("body=%v", body)
	}
}

func TestSpotifyPreview(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		id     string
		status int
		want   string
	}{
		{"short", http.StatusBadRequest, "invalid_album_id"},
		{"0000000000000000000000", http.StatusNotFound, "no_preview"},
		{"4aawyAB9vmqN3uQ7FjRGTy", http.StatusOK, ""},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodGet, "/api/v1/spotify/preview?albumId="+tt.id, "", nil)
		if rec.Code != tt.status {
			t.Fatalf("%s status=%d want %d", tt.id, rec.Code, tt.status)
		}
		body := decode(t, rec)
		if tt.want != "" && body["error"] != tt.want {
			t.Fatalf("%s error=%v", tt.id, body["error"])
		}
		if tt.status == http.StatusOK && body["previewUrl"] == "" {
			t.Fatalf("missing preview: %v", body)
		}
	}
}

func TestScannerAndSpotlight(t *testing.T) {
	env := newTestEnv(t)
	tok := token(t, "u1", "")

	rec := env.do(t, http.MethodGet, "/api/v1/scanner/beatport?artist=Nova", tok, nil)
	if rec.Code != http.StatusOK || decode(t, rec)["url"] != "https://www.beatport.com/artist/nova/1" {
		t.Fatalf("scanner status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/scanner/beatport?artist=Nobody", tok, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown artist status=%d", rec.Code)
	}

	admin := token(t, "u9", "boss@tekkin.test")
	rec = env.do(t, http.MethodPost, "/api/v1/admin/spotlight/sync", admin, map[string]any{"mock": true})
	if rec.Code != http.StatusOK || decode(t, rec)["ok"] != true {
		t.Fatalf("spotlight sync status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/v1/spotlight/events", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("events status=%d", rec.Code)
	}
	items, _ := decode(t, rec)["items"].([]any)
	if len(items) == 0 {
		t.Fatalf("no events after mock sync: %s", rec.Body.String())
	}
	id, _ := items[0].(map[string]any)["id"].(string)

	rec = env.do(t, http.MethodGet, "/api/v1/spotlight/events/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("event status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ev := decode(t, rec)["event"].(map[string]any); ev["id"] != id {
		t.Fatalf("event=%v", ev)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/spotlight/events/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown event status=%d", rec.Code)
	}
}

func TestInviteRedemption(t *testing.T) {
	env := newTestEnv(t)
	artist := token(t, "u1", "nova@tekkin.test")
	admin := token(t, "u9", "boss@tekkin.test")

	invite := map[string]any{"code": "club-night", "max_uses": 1, "ttl_hours": 24}
	if rec := env.do(t, http.MethodPost, "/api/v1/admin/invite-codes", artist, invite); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin create status=%d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/v1/admin/invite-codes", admin, invite)
	if rec.Code != http.StatusCreated || decode(t, rec)["code"] != "CLUB-NIGHT" {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/access/me", artist, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("access before redeem status=%d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/access/redeem", artist, map[string]string{"code": "Club-Night"})
	if rec.Code != http.StatusOK || decode(t, rec)["ok"] != true {
		t.Fatalf("redeem status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/v1/access/me", artist, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("access status=%d", rec.Code)
	}
	if body := decode(t, rec); body["plan"] != models.AccessPlanPro || body["access_status"] != models.AccessStatusActive {
		t.Fatalf("access=%v", body)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/access/redeem", token(t, "u2", ""), map[string]string{"code": "CLUB-NIGHT"})
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != "invalid_input" {
		t.Fatalf("exhausted status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestUpdateProjectAndVersion(t *testing.T) {
	env := newTestEnv(t)
	owner := token(t, "u1", "")
	p := models.Project{UserID: "u1", Title: "Draft"}
	env.db.Create(&p)
	v := models.ProjectVersion{ProjectID: p.ID, VersionName: "v1", Visibility: models.VisibilityPrivateSecretLink}
	env.db.Create(&v)

	rec := env.do(t, http.MethodPost, "/api/v1/projects/update-project", owner, map[string]string{"project_id": p.ID, "title": "Sunrise"})
	if rec.Code != http.StatusOK || decode(t, rec)["project"].(map[string]any)["title"] != "Sunrise" {
		t.Fatalf("update project status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/projects/update-version", owner, map[string]string{"version_id": v.ID, "version_name": "club edit"})
	if rec.Code != http.StatusOK || decode(t, rec)["version"].(map[string]any)["version_name"] != "club edit" {
		t.Fatalf("update version status=%d body=%s", rec.Code, rec.Body.String())
	}

	stranger := token(t, "u2", "")
	if rec := env.do(t, http.MethodPost, "/api/v1/projects/update-project", stranger, map[string]string{"project_id": p.ID, "title": "Mine"}); rec.Code != http.StatusNotFound {
		t.Fatalf("stranger project status=%d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/projects/update-version", stranger, map[string]string{"version_id": v.ID, "version_name": "x"}); rec.Code != http.StatusNotFound {
		t.Fatalf("stranger version status=%d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/projects/update-project", owner, map[string]string{"project_id": p.ID}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing title status=%d", rec.Code)
	}
}

func TestSetVisibilityPremaster(t *testing.T) {
	env := newTestEnv(t)
	p := models.Project{UserID: "u1", Title: "Draft"}
	env.db.Create(&p)
	score := 82.0
	env.db.Create(&models.ProjectVersion{
		ProjectID: p.ID, VersionName: "v1", AudioPath: p.ID + "/a.wav",
		MixType: models.MixTypePremaster, OverallScore: &score, Visibility: models.VisibilityPrivateSecretLink,
	})

	rec := env.do(t, http.MethodPost, "/api/v1/projects/set-visibility", token(t, "u1", ""),
		map[string]string{"project_id": p.ID, "visibility": "public"})
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != "invalid_input" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAnalyzerArrays(t *testing.T) {
	env := newTestEnv(t)
	owner := token(t, "u1", "")
	p := models.Project{UserID: "u1", Title: "Draft"}
	env.db.Create(&p)
	v := models.ProjectVersion{ProjectID: p.ID, VersionName: "v1", Visibility: models.VisibilityPrivateSecretLink}
	env.db.Create(&v)
	path := "/api/v1/analyzer/arrays/" + v.ID

	if rec := env.do(t, http.MethodGet, path, owner, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("no arrays status=%d", rec.Code)
	}

	env.db.Model(&v).Updates(models.ProjectVersion{
		AnalyzerArrays: &models.VersionArrays{MomentaryLUFS: []float64{-9.5, -8.2}, ShortTermLUFS: []float64{-9}},
		WaveformPeaks:  []float64{0.2, 0.8},
	})
	rec := env.do(t, http.MethodGet, path, owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("arrays status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	stats := body["loudness_stats"].(map[string]any)
	if body["version_id"] != v.ID || len(stats["momentary_lufs"].([]any)) != 2 {
		t.Fatalf("body=%v", body)
	}

	if rec := env.do(t, http.MethodGet, path, token(t, "u2", ""), nil); rec.Code != http.StatusForbidden {
		t.Fatalf("private arrays for stranger status=%d", rec.Code)
	}
	env.db.Model(&v).Update("visibility", models.VisibilityPublic)
	if rec := env.do(t, http.MethodGet, path, token(t, "u2", ""), nil); rec.Code != http.StatusOK {
		t.Fatalf("public arrays for stranger status=%d", rec.Code)
	}
}

func TestWriteServiceError(t *testing.T) {
	a := New(Deps{}, zerolog.Nop())
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("load: %w", gorm.ErrRecordNotFound), http.StatusNotFound, "not_found"},
		{models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{models.ErrNoPublishableVersion, http.StatusConflict, "no_publishable_version"},
		{fmt.Errorf("%w: bad", models.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{fmt.Errorf("%w: 503", models.ErrUpstream), http.StatusBadGateway, "upstream_error"},
		{errors.New("boom"), http.StatusInternalServerError, "db_error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		a.writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, "db_error")
		if rec.Code != tt.status || !strings.Contains(rec.Body.String(), `"`+tt.code+`"`) {
			t.Errorf("%v -> %d %s", tt.err, rec.Code, rec.Body.String())
		}
	}
}
