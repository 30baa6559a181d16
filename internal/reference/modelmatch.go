/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package reference

import (
	"math"

	"github.com/tidwall/gjson"
)

// MatchMetrics are the version values compared by ComputeModelMatch.
type MatchMetrics struct {
	BPM                *float64
	IntegratedLUFS     *float64
	StereoWidth        *float64
	SpectralCentroidHz *float64
	BandEnergyNorm     map[string]float64
}

// MatchResult summarizes how close a version is to a model.
type MatchResult struct {
	MatchRatio   float64            `json:"matchRatio"`
	MeanAbsError float64            `json:"meanAbsError"`
	Deltas       map[string]float64 `json:"deltas"`
	MatchPercent float64            `json:"matchPercent"`
}

// Target resolves the reference target for a scalar metric, trying the
// model sections in a fixed order of preference.
func Target(m *Model, key string) *float64 {
	if m == nil || len(m.Raw) == 0 {
		return nil
	}
	raw := []byte(m.Raw)
	k := gjson.Escape(key)
	get := func(path string) *float64 { return numberOf(gjson.GetBytes(raw, path)) }

	if v := get("targets." + k); v != nil {
		return v
	}
	if v := get("features_percentiles." + k + ".p50"); v != nil {
		return v
	}
	if key == "integrated_lufs" {
		if v := get("features_percentiles.lufs.p50"); v != nil {
			return v
		}
	}
	if v := get("loudness_percentiles." + k + ".p50"); v != nil {
		return v
	}
	if v := get("spectral_percentiles." + k + ".p50"); v != nil {
		return v
	}
	if key == "bpm" {
		if v := get("rhythm_percentiles.bpm.p50"); v != nil {
			return v
		}
	}
	if key == "stereo_width" {
		if v := get("stereo_percentiles.stereo_width.p50"); v != nil {
			return v
		}
	}
	if v := get("features_stats." + k + ".mean"); v != nil {
		return v
	}
	if key == "integrated_lufs" {
		return get("features_stats.lufs.mean")
	}
	return nil
}

// bandTargets returns per-band p50 values, falling back to band means.
func bandTargets(m *Model) map[string]float64 {
	out := make(map[string]float64)
	raw := []byte(m.Raw)
	gjson.GetBytes(raw, "bands_norm_percentiles").ForEach(func(k, v gjson.Result) bool {
		if n := numberOf(v.Get("p50")); n != nil {
			out[k.String()] = *n
		}
		return true
	})
	if len(out) > 0 {
		return out
	}
	gjson.GetBytes(raw, "bands_norm_stats").ForEach(func(k, v gjson.Result) bool {
		if n := numberOf(v.Get("mean")); n != nil {
			out[k.String()] = *n
		}
		return true
	})
	return out
}

// ComputeModelMatch returns nil when the model is nil or no metric could
// be paired with a target.
func ComputeModelMatch(metrics MatchMetrics, m *Model) *MatchResult {
	if m == nil {
		return nil
	}

	deltas := make(map[string]float64)
	pair := func(key string, v *float64) {
		if !finite(v) {
			return
		}
		if t := Target(m, key); t != nil {
			deltas[key] = *v - *t
		}
	}
	pair("bpm", metrics.BPM)
	pair("integrated_lufs", metrics.IntegratedLUFS)
	pair("stereo_width", metrics.StereoWidth)
	pair("spectral_centroid_hz", metrics.SpectralCentroidHz)

	if metrics.BandEnergyNorm != nil {
		for key, target := range bandTargets(m) {
			v, ok := metrics.BandEnergyNorm[key]
			if ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
				deltas["band_"+key] = v - target
			}
		}
	}

	if len(deltas) == 0 {
		return nil
	}

	var sum float64
	for _, d := range deltas {
		sum += math.Abs(d)
	}
	mae := sum / float64(len(deltas))
	ratio := math.Max(0, math.Min(1, 1/(1+mae)))

	return &MatchResult{
		MatchRatio:   ratio,
		MeanAbsError: mae,
		Deltas:       deltas,
		MatchPercent: ratio * 100,
	}
}
