/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package spotify is a small client-credentials Spotify Web API client
// used for album previews and artist metrics.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/telemetry"
)

const (
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	DefaultBaseURL  = "https://api.spotify.com/v1"

	serviceName      = "spotify"
	defaultMarket    = "US"
	maxResponseBytes = 4 << 20
)

var (
	// ErrNotConfigured is returned when client credentials are missing.
	ErrNotConfigured = errors.New("spotify credentials not configured")
	// ErrNoPreview is returned when no track of an album has a preview.
	ErrNoPreview = errors.New("no_preview")
)

var albumIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)

// Config configures the client.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	// RequestsPerSecond throttles outgoing calls. Zero means 5/s.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client talks to the Spotify Web API.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[response]
	logger  zerolog.Logger
	now     func() time.Time
}

type response struct {
	status int
	body   []byte
}

// New creates a client. It fails with ErrNotConfigured without credentials.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// The token source caches and refreshes the token for the client's lifetime.
	base := context.WithValue(context.Background(), oauth2.HTTPClient, telemetry.HTTPClient(cfg.Timeout))
	httpClient := cc.Client(base)
	httpClient.Timeout = cfg.Timeout

	logger = logger.With().Str("component", "spotify").Logger()
	return &Client{
		http:    httpClient,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: telemetry.NewBreaker[response](serviceName, telemetry.DefaultBreakerSettings(), logger),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// get performs a throttled GET. 4xx responses are returned to the caller
// and do not count against the breaker.
func (c *Client) get(ctx context.Context, path string, query url.Values) (response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return response{}, err
	}
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := c.breaker.Execute(func() (response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return response{}, err
		}
		req.Header.Set("Accept", "application/json")
		res, err := c.http.Do(req)
		if err != nil {
			return response{}, err
		}
		defer res.Body.Close()
		body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
		if err != nil {
			return response{}, err
		}
		if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
			return response{}, fmt.Errorf("spotify status %d", res.StatusCode)
		}
		return response{status: res.StatusCode, body: body}, nil
	})
	telemetry.ObserveUpstream(serviceName, err)
	if err != nil {
		return response{}, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	switch {
	case resp.status == http.StatusNotFound || resp.status == http.StatusBadRequest:
		return resp, fmt.Errorf("%w: spotify %s", models.ErrNotFound, path)
	case resp.status < 200 || resp.status > 299:
		return resp, fmt.Errorf("%w: spotify status %d: %s", models.ErrUpstream, resp.status,
			gjson.GetBytes(resp.body, "error.message").String())
	}
	return resp, nil
}

// AlbumID extracts a 22 character album id from a bare id, a spotify:album
// URI or an open.spotify.com album link.
func AlbumID(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "spotify:album:") {
		s = strings.TrimPrefix(s, "spotify:album:")
	} else if u, err := url.Parse(s); err == nil && strings.HasSuffix(u.Hostname(), "open.spotify.com") {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 && parts[len(parts)-2] == "album" {
			s = parts[len(parts)-1]
		}
	}
	if !albumIDPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// Preview is the first playable preview of an album.
type Preview struct {
	PreviewURL string `json:"previewUrl"`
	TrackName  string `json:"trackName"`
}

// AlbumPreview returns the first track of the album that has a preview_url.
func (c *Client) AlbumPreview(ctx context.Context, albumID string) (*Preview, error) {
	id, ok := AlbumID(albumID)
	if !ok {
		return nil, fmt.Errorf("%w: invalid album id", models.ErrInvalidInput)
	}
	resp, err := c.get(ctx, "/albums/"+id, url.Values{"market": {defaultMarket}})
	if err != nil {
		return nil, err
	}
	var out *Preview
	gjson.GetBytes(resp.body, "tracks.items").ForEach(func(_, item gjson.Result) bool {
		if p := item.Get("preview_url").String(); p != "" {
			out = &Preview{PreviewURL: p, TrackName: item.Get("name").String()}
			return false
		}
		return true
	})
	if out == nil {
		return nil, ErrNoPreview
	}
	return out, nil
}

// ArtistMetrics are the catalog figures collected for an artist.
type ArtistMetrics struct {
	Followers       int64
	Popularity      int64
	TotalReleases   int64
	ReleasesLast12m int64
}

// Artist fetches followers, popularity and release counts of an artist.
func (c *Client) Artist(ctx context.Context, artistID string) (*ArtistMetrics, error) {
	artistID = strings.TrimSpace(artistID)
	if artistID == "" {
		return nil, fmt.Errorf("%w: spotify artist id missing", models.ErrInvalidInput)
	}
	resp, err := c.get(ctx, "/artists/"+url.PathEscape(artistID), nil)
	if err != nil {
		return nil, err
	}
	m := &ArtistMetrics{
		Followers:  gjson.GetBytes(resp.body, "followers.total").Int(),
		Popularity: gjson.GetBytes(resp.body, "popularity").Int(),
	}

	resp, err = c.get(ctx, "/artists/"+url.PathEscape(artistID)+"/albums", url.Values{
		"include_groups": {"album,single"},
		"market":         {defaultMarket},
		"limit":          {"50"},
	})
	if err != nil {
		return nil, err
	}
	m.TotalReleases = gjson.GetBytes(resp.body, "total").Int()
	cutoff := c.now().AddDate(-1, 0, 0)
	gjson.GetBytes(resp.body, "items").ForEach(func(_, item gjson.Result) bool {
		if d, ok := releaseDate(item.Get("release_date").String(), item.Get("release_date_precision").String()); ok && d.After(cutoff) {
			m.ReleasesLast12m++
		}
		return true
	})
	return m, nil
}

// releaseDate parses Spotify's day, month or year precision dates.
func releaseDate(value, precision string) (time.Time, bool) {
	layouts := map[string]string{"day": "2006-01-02", "month": "2006-01", "year": "2006"}
	layout, ok := layouts[precision]
	if !ok {
		switch len(value) {
		case 10:
			layout = layouts["day"]
		case 7:
			layout = layouts["month"]
		default:
			layout = layouts["year"]
		}
	}
	t, err := time.Parse(layout, value)
	return t, err == nil
}

var embedTypes = map[string]bool{
	"track": true, "album": true, "playlist": true,
	"artist": true, "episode": true, "show": true,
}

// EmbedURL converts spotify: URIs and open.spotify.com links to the embed
// player URL. It returns "" for anything it cannot convert.
func EmbedURL(input string) string {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "spotify:") {
		var parts []string
		for _, p := range strings.Split(raw, ":") {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) >= 3 && embedTypes[parts[1]] {
			return "https://open.spotify.com/embed/" + parts[1] + "/" + parts[2]
		}
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || !strings.HasSuffix(u.Hostname(), "open.spotify.com") {
		return ""
	}
	if strings.HasPrefix(u.Path, "/embed/") {
		out := "https://open.spotify.com" + u.Path
		if u.RawQuery != "" {
			out += "?" + u.RawQuery
		}
		return out
	}
	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) >= 2 && embedTypes[parts[0]] {
		return "https://open.spotify.com/embed/" + parts[0] + "/" + parts[1]
	}
	return ""
}
