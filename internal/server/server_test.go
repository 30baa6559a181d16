package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Environment:   "test",
		DBBackend:     config.DatabaseSQLite,
		DBDSN:         ":memory:",
		MediaRoot:     t.TempDir(),
		BaseURL:       "http://localhost:8080",
		JWTSigningKey: "test-signing-key",
		CronSecret:    "cron",
	}
	srv, err := New(cfg, zerolog.Nop(), WithoutWorkers())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestNew_WiresRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/genres", http.StatusOK},
		{http.MethodGet, "/api/v1/profile/me", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/spotify/preview?albumId=4aawyAB9vmqN3uQ7FjRGTy", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/v1/charts/rebuild", http.StatusUnauthorized},
		{http.MethodGet, "/media/tracks/missing.mp3", http.StatusForbidden},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		if rr.Code != tt.want {
			t.Errorf("%s %s: status=%d, want %d (%s)", tt.method, tt.path, rr.Code, tt.want, rr.Body.String())
		}
	}
}

func TestRunJob(t *testing.T) {
	srv := newTestServer(t)

	if err := srv.RunJob(context.Background(), JobChartsRebuild); err != nil {
		t.Fatalf("charts rebuild: %v", err)
	}
	if err := srv.RunJob(context.Background(), "unknown"); err == nil {
		t.Fatal("expected error for unknown job")
	}
	if srv.Scanner() != nil {
		t.Fatal("scanner should be disabled without a search url")
	}
}
