/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// EventBusKind selects the event distribution backend.
type EventBusKind string

const (
	EventBusMemory EventBusKind = "memory"
	EventBusRedis  EventBusKind = "redis"
	EventBusNATS   EventBusKind = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment     string
	LogLevel        string
	HTTPBind        string
	HTTPPort        int
	BaseURL         string // Public base URL used for filesystem signed links
	DBBackend       DatabaseBackend
	DBDSN           string
	JWTSigningKey   string
	JWTTTL          time.Duration
	MaxUploadSizeMB int

	// Track storage
	MediaRoot         string
	StorageBucket     string // logical bucket name passed to the analyzer
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, R2, etc.)
	S3UsePathStyle    bool

	// Redis (cache and optional event bus)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Event distribution
	EventBus   EventBusKind
	NATSURL    string
	InstanceID string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// External analyzer
	AnalyzerURL     string
	AnalyzerSecret  string
	AnalyzerScript  string // optional: exec a local script instead of HTTP
	AnalyzerTimeout time.Duration
	AnalyzerWorkers int

	// Reference models
	ReferenceDir string

	// Third-party integrations
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRPS          float64
	BandsintownAppID    string
	BeatportSearchURL   string
	BrowserBin          string // optional chromium path for headless scraping

	// Access control
	CronSecret    string
	AdminEmails   []string
	AdminUserIDs  []string
	CORSOrigins   []string
	PlayRateLimit int // plays per minute per IP

	// Scheduled jobs (cron specs, empty disables)
	ChartsCron       string
	ArtistSyncCron   string
	SpotlightCron    string
	SpotlightArtists []string

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:     getEnvAny([]string{"TEKKIN_ENV", "NODE_ENV"}, "development"),
		LogLevel:        getEnvAny([]string{"TEKKIN_LOG_LEVEL", "LOG_LEVEL"}, ""),
		HTTPBind:        getEnvAny([]string{"TEKKIN_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:        getEnvIntAny([]string{"TEKKIN_HTTP_PORT", "PORT"}, 8080),
		BaseURL:         getEnvAny([]string{"TEKKIN_BASE_URL", "NEXT_PUBLIC_SITE_URL"}, "http://localhost:8080"),
		DBBackend:       DatabaseBackend(getEnvAny([]string{"TEKKIN_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:           getEnvAny([]string{"TEKKIN_DB_DSN", "DATABASE_URL"}, ""),
		JWTSigningKey:   getEnvAny([]string{"TEKKIN_JWT_SIGNING_KEY"}, ""),
		JWTTTL:          time.Duration(getEnvIntAny([]string{"TEKKIN_JWT_TTL_HOURS"}, 24*7)) * time.Hour,
		MaxUploadSizeMB: getEnvIntAny([]string{"TEKKIN_MAX_UPLOAD_SIZE_MB"}, 200),

		MediaRoot:         getEnvAny([]string{"TEKKIN_MEDIA_ROOT"}, "./media"),
		StorageBucket:     getEnvAny([]string{"TEKKIN_STORAGE_BUCKET"}, "tracks"),
		S3AccessKeyID:     getEnvAny([]string{"TEKKIN_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"TEKKIN_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"TEKKIN_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"TEKKIN_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"TEKKIN_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"TEKKIN_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		RedisAddr:     getEnvAny([]string{"TEKKIN_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"TEKKIN_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"TEKKIN_REDIS_DB"}, 0),

		EventBus:   EventBusKind(getEnvAny([]string{"TEKKIN_EVENT_BUS"}, string(EventBusMemory))),
		NATSURL:    getEnvAny([]string{"TEKKIN_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),
		InstanceID: getEnvAny([]string{"TEKKIN_INSTANCE_ID", "HOSTNAME"}, ""),

		TracingEnabled:    getEnvBoolAny([]string{"TEKKIN_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"TEKKIN_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"TEKKIN_TRACING_SAMPLE_RATE"}, 1.0),

		AnalyzerURL:     getEnvAny([]string{"TEKKIN_ANALYZER_URL"}, ""),
		AnalyzerSecret:  getEnvAny([]string{"TEKKIN_ANALYZER_SECRET"}, ""),
		AnalyzerScript:  getEnvAny([]string{"TEKKIN_ANALYZER_SCRIPT"}, ""),
		AnalyzerTimeout: time.Duration(getEnvIntAny([]string{"TEKKIN_ANALYZER_TIMEOUT_SECONDS"}, 300)) * time.Second,
		AnalyzerWorkers: getEnvIntAny([]string{"TEKKIN_ANALYZER_WORKERS"}, 1),

		ReferenceDir: getEnvAny([]string{"TEKKIN_REFERENCE_DIR"}, "./reference_models"),

		SpotifyClientID:     getEnvAny([]string{"TEKKIN_SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_ID"}, ""),
		SpotifyClientSecret: getEnvAny([]string{"TEKKIN_SPOTIFY_CLIENT_SECRET", "SPOTIFY_CLIENT_SECRET"}, ""),
		SpotifyRPS:          getEnvFloatAny([]string{"TEKKIN_SPOTIFY_RPS"}, 5),
		BandsintownAppID:    getEnvAny([]string{"TEKKIN_BANDSINTOWN_APP_ID", "BANDSINTOWN_APP_ID"}, ""),
		BeatportSearchURL:   getEnvAny([]string{"TEKKIN_BEATPORT_SEARCH_URL"}, "https://www.beatport.com/search/artists"),
		BrowserBin:          getEnvAny([]string{"TEKKIN_BROWSER_BIN"}, ""),

		CronSecret:    getEnvAny([]string{"TEKKIN_CRON_SECRET"}, ""),
		AdminEmails:   getEnvListAny([]string{"TEKKIN_ADMIN_EMAILS"}),
		AdminUserIDs:  getEnvListAny([]string{"TEKKIN_ADMIN_USER_IDS"}),
		CORSOrigins:   getEnvListAny([]string{"TEKKIN_CORS_ORIGINS"}),
		PlayRateLimit: getEnvIntAny([]string{"TEKKIN_PLAY_RATE_LIMIT"}, 60),

		ChartsCron:       getEnvAny([]string{"TEKKIN_CHARTS_CRON"}, "0 3 * * 1"),
		ArtistSyncCron:   getEnvAny([]string{"TEKKIN_ARTIST_SYNC_CRON"}, "15 * * * *"),
		SpotlightCron:    getEnvAny([]string{"TEKKIN_SPOTLIGHT_CRON"}, "30 4 * * *"),
		SpotlightArtists: getEnvListAny([]string{"TEKKIN_SPOTLIGHT_ARTISTS"}),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.EventBus != EventBusMemory && cfg.EventBus != EventBusRedis && cfg.EventBus != EventBusNATS {
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("TEKKIN_DB_DSN or DATABASE_URL must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("TEKKIN_JWT_SIGNING_KEY must be provided")
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.CronSecret == "" {
			return nil, fmt.Errorf("TEKKIN_CRON_SECRET must be set in production")
		}
		if cfg.AnalyzerURL != "" && cfg.AnalyzerSecret == "" {
			return nil, fmt.Errorf("TEKKIN_ANALYZER_SECRET is required when TEKKIN_ANALYZER_URL is set in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"SUPABASE_SERVICE_ROLE_KEY":     "hosted storage is no longer used; configure TEKKIN_S3_* or TEKKIN_MEDIA_ROOT",
		"NEXT_PUBLIC_SUPABASE_URL":      "hosted storage is no longer used; configure TEKKIN_DB_DSN",
		"NEXT_PUBLIC_SUPABASE_ANON_KEY": "use TEKKIN_JWT_SIGNING_KEY for bearer tokens",
		"TEKKIN_ADMIN_EMAIL":            "use TEKKIN_ADMIN_EMAILS (comma separated)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// MaxUploadSizeBytes returns the configured upload limit in bytes.
func (c *Config) MaxUploadSizeBytes() int64 {
	if c == nil || c.MaxUploadSizeMB <= 0 {
		return 200 << 20
	}
	return int64(c.MaxUploadSizeMB) << 20
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvListAny splits the first set variable on commas, dropping blanks.
func getEnvListAny(keys []string) []string {
	raw := getEnvAny(keys, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
