/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scanner resolves an artist's Beatport page from their name.
package scanner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/telemetry"
)

// DefaultSearchURL is Beatport's artist search page.
const DefaultSearchURL = "https://www.beatport.com/search/artists"

const (
	beatportBase = "https://www.beatport.com"
	userAgent    = "Mozilla/5.0 (Tekkin Identity Sync)"
)

// Sources of a match.
const (
	SourceStatic   = "static"
	SourceHeadless = "headless"
)

var artistLink = regexp.MustCompile(`(?i)/artist/([^/"'\s?#<>]+)/(\d+)`)

// Match is a resolved Beatport artist page.
type Match struct {
	URL    string `json:"url"`
	Slug   string `json:"slug"`
	ID     string `json:"id"`
	Source string `json:"source"`
}

// ExtractArtistURL finds the first /artist/<slug>/<id> link in html.
func ExtractArtistURL(html string) (*Match, bool) {
	m := artistLink.FindStringSubmatch(html)
	if m == nil {
		return nil, false
	}
	slug := strings.ToLower(m[1])
	return &Match{
		URL:  fmt.Sprintf("%s/artist/%s/%s", beatportBase, slug, m[2]),
		Slug: slug,
		ID:   m[2],
	}, true
}

// Renderer returns the HTML of a page after client-side rendering.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// Beatport searches Beatport for artist pages.
type Beatport struct {
	searchURL string
	client    *http.Client
	renderer  Renderer
	logger    zerolog.Logger
}

// NewBeatport creates a scanner. renderer may be nil to disable the
// headless fallback.
func NewBeatport(searchURL string, renderer Renderer, logger zerolog.Logger) *Beatport {
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	return &Beatport{
		searchURL: searchURL,
		client:    telemetry.HTTPClient(15 * time.Second),
		renderer:  renderer,
		logger:    logger.With().Str("component", "scanner").Logger(),
	}
}

func (b *Beatport) pageURL(name string) string {
	sep := "?"
	if strings.Contains(b.searchURL, "?") {
		sep = "&"
	}
	return b.searchURL + sep + "q=" + url.QueryEscape(name)
}

// FindArtist looks the artist up in the static search HTML first and falls
// back to a headless render, since the search page is mostly client-side.
func (b *Beatport) FindArtist(ctx context.Context, name string) (*Match, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: artist name required", models.ErrInvalidInput)
	}
	page := b.pageURL(name)

	html, err := b.fetch(ctx, page)
	telemetry.ObserveUpstream("beatport", err)
	if err != nil {
		b.logger.Debug().Err(err).Str("artist", name).Msg("static beatport search failed")
	} else if m, ok := ExtractArtistURL(html); ok {
		m.Source = SourceStatic
		return m, nil
	}

	if b.renderer == nil {
		return nil, models.ErrNotFound
	}
	html, err = b.renderer.Render(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("%w: headless render: %v", models.ErrUpstream, err)
	}
	if m, ok := ExtractArtistURL(html); ok {
		m.Source = SourceHeadless
		return m, nil
	}
	return nil, models.ErrNotFound
}

func (b *Beatport) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("beatport status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RodRenderer renders pages in a headless Chromium driven by go-rod.
type RodRenderer struct {
	Bin     string
	Timeout time.Duration
}

// Render implements Renderer. Each call launches and closes its own browser.
func (r RodRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	l := launcher.New().Context(ctx).Headless(true)
	if r.Bin != "" {
		l = l.Bin(r.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	// Results hydrate after load; give the first artist link a moment.
	_, _ = page.Timeout(5 * time.Second).Element(`a[href*="/artist/"]`)
	return page.HTML()
}
