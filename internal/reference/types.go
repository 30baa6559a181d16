/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package reference loads genre reference models and compares analyzed
// versions against them.
package reference

import "encoding/json"

// BandKeys lists the normalized energy bands in display order.
var BandKeys = []string{"sub", "low", "lowmid", "mid", "presence", "high", "air"}

// Percentiles is a p10/p50/p90 triple. Any member may be missing.
type Percentiles struct {
	P10 *float64 `json:"p10"`
	P50 *float64 `json:"p50"`
	P90 *float64 `json:"p90"`
}

// IsZero reports whether no percentile is set.
func (p *Percentiles) IsZero() bool {
	return p == nil || (p.P10 == nil && p.P50 == nil && p.P90 == nil)
}

// StatPair is a mean/std summary. Either member may be null.
type StatPair struct {
	Mean *float64 `json:"mean,omitempty"`
	Std  *float64 `json:"std,omitempty"`
}

// BandSchema describes the frequency span of one band.
type BandSchema struct {
	Key  string  `json:"key"`
	FMin float64 `json:"fmin"`
	FMax float64 `json:"fmax"`
}

// Model is a genre reference built from a corpus of tracks. Unknown keys
// survive in Raw and are reachable through the gjson helpers.
type Model struct {
	ProfileKey   string       `json:"profile_key"`
	SamplesCount int          `json:"samples_count"`
	FilesTotal   int          `json:"files_total"`
	Skipped      int          `json:"skipped"`
	BuiltAt      string       `json:"built_at"`
	Engine       string       `json:"engine"`
	SR           int          `json:"sr"`
	BandsSchema  []BandSchema `json:"bands_schema,omitempty"`

	BandsNormStats       map[string]StatPair    `json:"bands_norm_stats,omitempty"`
	BandsNormPercentiles map[string]Percentiles `json:"bands_norm_percentiles,omitempty"`
	FeaturesStats        map[string]StatPair    `json:"features_stats,omitempty"`
	FeaturesPercentiles  map[string]Percentiles `json:"features_percentiles,omitempty"`

	TracksJSONL string `json:"tracks_jsonl,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Decode parses a reference model and keeps its raw bytes.
func Decode(raw []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m.Raw = append(json.RawMessage(nil), raw...)
	return &m, nil
}
