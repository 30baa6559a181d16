/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"

	"github.com/friendsincode/tekkin/internal/config"
	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/telemetry"
)

// SecretHeader authenticates Tekkin to the analyzer service.
const SecretHeader = "x-analyzer-secret"

// maxResponseBytes bounds analyzer responses; arrays can be large.
const maxResponseBytes = 64 << 20

// Request is the payload sent to the analyzer.
type Request struct {
	VersionID        string `json:"version_id"`
	ProjectID        string `json:"project_id"`
	AudioURL         string `json:"audio_url"`
	ProfileKey       string `json:"profile_key"`
	Mode             string `json:"mode"`
	Lang             string `json:"lang"`
	UploadArraysBlob bool   `json:"upload_arrays_blob"`
	StorageBucket    string `json:"storage_bucket"`
	StorageBasePath  string `json:"storage_base_path"`
}

// Runner executes one analysis and returns the raw JSON result.
type Runner interface {
	Run(ctx context.Context, req Request) ([]byte, error)
	Name() string
}

// NewRunner picks the transport from configuration. A script wins over a
// URL. It returns nil when neither is configured.
func NewRunner(cfg *config.Config, logger zerolog.Logger) Runner {
	switch {
	case cfg.AnalyzerScript != "":
		return NewScriptRunner(cfg.AnalyzerScript, cfg.AnalyzerTimeout, logger)
	case cfg.AnalyzerURL != "":
		return NewHTTPRunner(cfg.AnalyzerURL, cfg.AnalyzerSecret, cfg.AnalyzerTimeout, logger)
	default:
		return nil
	}
}

// HTTPRunner posts requests to a remote analyzer.
type HTTPRunner struct {
	url     string
	secret  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewHTTPRunner creates a runner for the analyzer at url.
func NewHTTPRunner(url, secret string, timeout time.Duration, logger zerolog.Logger) *HTTPRunner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPRunner{
		url:     url,
		secret:  secret,
		client:  telemetry.HTTPClient(timeout),
		breaker: telemetry.NewBreaker[[]byte]("analyzer", telemetry.DefaultBreakerSettings(), logger),
	}
}

// Name implements Runner.
func (r *HTTPRunner) Name() string { return "http" }

// Run implements Runner.
func (r *HTTPRunner) Run(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode analyzer request: %w", err)
	}

	out, err := r.breaker.Execute(func() ([]byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if r.secret != "" {
			httpReq.Header.Set(SecretHeader, r.secret)
		}

		resp, err := r.client.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("analyzer status %d: %s", resp.StatusCode, truncate(data, 300))
		}
		return data, nil
	})
	telemetry.ObserveUpstream("analyzer", err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	if !gjson.ValidBytes(out) || !gjson.ParseBytes(out).IsObject() {
		return nil, fmt.Errorf("%w: analyzer returned non-JSON body", models.ErrUpstream)
	}
	return out, nil
}

// ScriptRunner invokes a local analyzer script. The request is written
// to stdin as JSON and the result is read from stdout.
type ScriptRunner struct {
	script  string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewScriptRunner creates a runner for a local script.
func NewScriptRunner(script string, timeout time.Duration, logger zerolog.Logger) *ScriptRunner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ScriptRunner{script: script, timeout: timeout, logger: logger}
}

// Name implements Runner.
func (r *ScriptRunner) Name() string { return "script" }

// Run implements Runner.
func (r *ScriptRunner) Run(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode analyzer request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.script)
	cmd.Stdin = bytes.NewReader(body)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		r.logger.Debug().Str("stderr", truncate(stderr.Bytes(), 500)).Msg("analyzer script failed")
		return nil, fmt.Errorf("%w: analyzer script: %v", models.ErrUpstream, err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if !gjson.ValidBytes(out) || !gjson.ParseBytes(out).IsObject() {
		return nil, fmt.Errorf("%w: analyzer script returned non-JSON output", models.ErrUpstream)
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
