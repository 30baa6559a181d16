/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package reference

import (
	"math"

	"github.com/tidwall/gjson"
)

// Ranges are the reference percentiles a version is ranked against. Nil
// members mean the model does not describe that metric.
type Ranges struct {
	Bands map[string]*Percentiles

	LUFS       *Percentiles
	LRA        *Percentiles
	SamplePeak *Percentiles

	Spectral   map[string]*Percentiles // spectral_centroid_hz, spectral_bandwidth_hz, ...
	Transients map[string]*Percentiles // strength, density, crest_factor_db, log_attack_time
	Rhythm     map[string]*Percentiles // bpm, stability, danceability

	StereoWidth *Percentiles
}

// HasLoudness reports whether any loudness percentile is present.
func (r *Ranges) HasLoudness() bool {
	return r != nil && (r.LUFS != nil || r.LRA != nil || r.SamplePeak != nil)
}

func numberOf(res gjson.Result) *float64 {
	if res.Type != gjson.Number {
		return nil
	}
	v := res.Float()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// pick returns the first path that resolves to a non-null value.
func pick(raw []byte, paths ...string) gjson.Result {
	for _, p := range paths {
		res := gjson.GetBytes(raw, p)
		if res.Exists() && res.Type != gjson.Null {
			return res
		}
	}
	return gjson.Result{}
}

func rangeOf(res gjson.Result) *Percentiles {
	if !res.IsObject() {
		return nil
	}
	p := &Percentiles{
		P10: numberOf(res.Get("p10")),
		P50: numberOf(res.Get("p50")),
		P90: numberOf(res.Get("p90")),
	}
	if p.IsZero() {
		return nil
	}
	return p
}

type aliasedKey struct {
	key   string
	alias string
}

func rangeGroup(raw []byte, groupPaths []string, keys []aliasedKey) map[string]*Percentiles {
	group := pick(raw, groupPaths...)
	if !group.IsObject() {
		return nil
	}
	out := make(map[string]*Percentiles)
	for _, k := range keys {
		paths := []string{gjson.Escape(k.key)}
		if k.alias != "" {
			paths = append(paths, gjson.Escape(k.alias))
		}
		if r := rangeOf(pick([]byte(group.Raw), paths...)); r != nil {
			out[k.key] = r
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ExtractRanges reads every percentile group the ranker understands,
// accepting both snake_case and camelCase group names.
func ExtractRanges(m *Model) *Ranges {
	if m == nil || len(m.Raw) == 0 {
		return nil
	}
	raw := []byte(m.Raw)
	r := &Ranges{}

	if bands := gjson.GetBytes(raw, "bands_norm_percentiles"); bands.IsObject() {
		r.Bands = make(map[string]*Percentiles)
		for _, key := range BandKeys {
			if p := rangeOf(bands.Get(key)); p != nil {
				r.Bands[key] = p
			}
		}
		if len(r.Bands) == 0 {
			r.Bands = nil
		}
	}

	r.LUFS = rangeOf(pick(raw, "features_percentiles.lufs", "loudness_percentiles.integrated_lufs"))
	r.LRA = rangeOf(pick(raw, "features_percentiles.lra", "loudness_percentiles.lra"))
	r.SamplePeak = rangeOf(pick(raw, "features_percentiles.sample_peak_db", "loudness_percentiles.sample_peak_db"))

	r.Spectral = rangeGroup(raw, []string{"spectral_percentiles", "spectralPercentiles"}, []aliasedKey{
		{"spectral_centroid_hz", "spectralCentroidHz"},
		{"spectral_bandwidth_hz", "spectralBandwidthHz"},
		{"spectral_rolloff_hz", "spectralRolloffHz"},
		{"spectral_flatness", "spectralFlatness"},
		{"zero_crossing_rate", "zeroCrossingRate"},
	})
	r.Transients = rangeGroup(raw, []string{"transients_percentiles", "transientsPercentiles"}, []aliasedKey{
		{"crest_factor_db", "crestFactorDb"},
		{"strength", ""},
		{"density", ""},
		{"log_attack_time", "logAttackTime"},
	})
	r.Rhythm = rangeGroup(raw, []string{"rhythm_percentiles", "rhythmPercentiles"}, []aliasedKey{
		{"bpm", ""},
		{"stability", ""},
		{"danceability", ""},
	})
	r.StereoWidth = rangeOf(gjson.GetBytes(raw, "stereo_percentiles.stereo_width"))

	return r
}
