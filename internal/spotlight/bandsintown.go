/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package spotlight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"

	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/telemetry"
)

// DefaultBandsintownURL is the public REST endpoint.
const DefaultBandsintownURL = "https://rest.bandsintown.com"

// ProviderBandsintown names events pulled from Bandsintown.
const ProviderBandsintown = "bandsintown"

// ErrMissingAppID is returned when no Bandsintown app id is configured.
var ErrMissingAppID = errors.New("missing_app_id")

// UpstreamError carries the status of a failed provider call.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("upstream %d", e.Status) }

// Unwrap lets callers match models.ErrUpstream.
func (e *UpstreamError) Unwrap() error { return models.ErrUpstream }

// Bandsintown fetches artist events.
type Bandsintown struct {
	appID   string
	base    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewBandsintown creates a client. An empty baseURL uses the public API.
func NewBandsintown(appID, baseURL string, timeout time.Duration, logger zerolog.Logger) *Bandsintown {
	if baseURL == "" {
		baseURL = DefaultBandsintownURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Bandsintown{
		appID:   appID,
		base:    strings.TrimRight(baseURL, "/"),
		client:  telemetry.HTTPClient(timeout),
		breaker: telemetry.NewBreaker[[]byte](ProviderBandsintown, telemetry.DefaultBreakerSettings(), logger),
	}
}

// Name implements EventSource.
func (b *Bandsintown) Name() string { return ProviderBandsintown }

// Events returns every event (past and upcoming) listed for artist.
func (b *Bandsintown) Events(ctx context.Context, artist string) ([]models.SpotlightEvent, error) {
	if b.appID == "" {
		return nil, ErrMissingAppID
	}
	u := fmt.Sprintf("%s/artists/%s/events?app_id=%s&date=all",
		b.base, url.PathEscape(artist), url.QueryEscape(b.appID))

	var status int
	body, err := b.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := b.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		status = resp.StatusCode
		data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return nil, err
		}
		if status >= 500 {
			return nil, &UpstreamError{Status: status}
		}
		return data, nil
	})
	telemetry.ObserveUpstream(ProviderBandsintown, err)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			return nil, ue
		}
		return nil, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	if status < 200 || status > 299 {
		return nil, &UpstreamError{Status: status}
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		// Unknown artists come back as an object.
		return nil, nil
	}
	var out []models.SpotlightEvent
	parsed.ForEach(func(_, item gjson.Result) bool {
		out = append(out, ParseEvent(item, artist))
		return true
	})
	return out, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func parseDate(s string) *time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstString(item gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := item.Get(p); v.Exists() && v.Type != gjson.Null && v.Type != gjson.JSON {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// ParseEvent normalizes one provider event.
func ParseEvent(item gjson.Result, artist string) models.SpotlightEvent {
	when := firstString(item, "datetime", "startsAt", "date")
	id := firstString(item, "id", "eventId")
	if id == "" {
		suffix := when
		if suffix == "" {
			suffix = uuid.NewString()
		}
		id = artist + "-" + suffix
	}
	if artist == "" {
		artist = firstString(item, "artist.name", "artist")
	}

	ev := models.SpotlightEvent{
		Provider:        ProviderBandsintown,
		ProviderEventID: id,
		Artist:          artist,
		Venue:           firstString(item, "venue.name", "venue"),
		City:            firstString(item, "venue.city", "city"),
		Country:         firstString(item, "venue.country", "country"),
		EventURL:        firstString(item, "url", "eventUrl"),
		ImageURL:        firstString(item, "artist.image_url", "thumbnail_url"),
	}
	if when != "" {
		ev.EventDate = parseDate(when)
	}
	if raw, ok := item.Value().(map[string]any); ok {
		ev.Raw = raw
	}
	return ev
}
