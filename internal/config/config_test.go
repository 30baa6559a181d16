package config

import "testing"

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("TEKKIN_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("TEKKIN_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("TEKKIN_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.EventBus != EventBusMemory {
		t.Fatalf("expected memory event bus by default, got %q", cfg.EventBus)
	}
	if cfg.ReferenceDir != "./reference_models" {
		t.Fatalf("unexpected reference dir %q", cfg.ReferenceDir)
	}
}

func TestLoadFallsBackToLegacyIntegrationKeys(t *testing.T) {
	t.Setenv("TEKKIN_DB_DSN", "file::memory:")
	t.Setenv("TEKKIN_DB_BACKEND", "sqlite")
	t.Setenv("TEKKIN_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("SPOTIFY_CLIENT_ID", "spotify-id")
	t.Setenv("BANDSINTOWN_APP_ID", "bit-app")
	t.Setenv("TEKKIN_ADMIN_EMAILS", " a@example.com, ,b@example.com ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SpotifyClientID != "spotify-id" {
		t.Fatalf("SpotifyClientID=%q", cfg.SpotifyClientID)
	}
	if cfg.BandsintownAppID != "bit-app" {
		t.Fatalf("BandsintownAppID=%q", cfg.BandsintownAppID)
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[1] != "b@example.com" {
		t.Fatalf("AdminEmails=%v", cfg.AdminEmails)
	}
}

func TestLoadRejectsUnknownEventBus(t *testing.T) {
	t.Setenv("TEKKIN_DB_DSN", "dsn")
	t.Setenv("TEKKIN_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("TEKKIN_EVENT_BUS", "kafka")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown event bus to fail")
	}
}

func TestLoadProductionRequiresCronSecret(t *testing.T) {
	t.Setenv("TEKKIN_DB_DSN", "dsn")
	t.Setenv("TEKKIN_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("TEKKIN_ENV", "production")
	t.Setenv("TEKKIN_CRON_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail without cron secret")
	}

	t.Setenv("TEKKIN_CRON_SECRET", "cron")
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config load to succeed: %v", err)
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("TEKKIN_DB_DSN", "dsn")
	t.Setenv("TEKKIN_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "legacy")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}
