/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analyzer

import (
	"encoding/json"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/reference"
)

// Result is the subset of an analyzer response Tekkin persists.
type Result struct {
	LUFS                *float64
	OverallScore        *float64
	BPM                 *float64
	Key                 string
	SpectralCentroidHz  *float64
	SpectralRolloffHz   *float64
	SpectralBandwidthHz *float64
	SpectralFlatness    *float64
	ZeroCrossingRate    *float64
	StereoWidth         *float64
	LRA                 *float64
	SamplePeakDB        *float64
	BandsNorm           map[string]float64
	Arrays              *models.VersionArrays
	WaveformPeaks       []float64
	Transients          *models.Transients
	Rhythm              *models.Rhythm
	ModelMatchPercent   *float64
	Warnings            []string
	Raw                 map[string]any
}

func number(res gjson.Result) *float64 {
	if res.Type != gjson.Number {
		return nil
	}
	v := res.Float()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// first returns the first path holding a finite number.
func first(raw []byte, paths ...string) *float64 {
	for _, p := range paths {
		if v := number(gjson.GetBytes(raw, p)); v != nil {
			return v
		}
	}
	return nil
}

func floats(res gjson.Result) []float64 {
	if !res.IsArray() {
		return nil
	}
	var out []float64
	res.ForEach(func(_, v gjson.Result) bool {
		if n := number(v); n != nil {
			out = append(out, *n)
		}
		return true
	})
	return out
}

// EffectiveBPM reconciles the top-level bpm with the structural bpm.
// When they disagree by more than 1.5 the structural one wins, otherwise
// they are averaged. The result is rounded half up.
func EffectiveBPM(bpm, structure *float64) *float64 {
	var v float64
	switch {
	case bpm != nil && structure != nil:
		if math.Abs(*bpm-*structure) > 1.5 {
			v = *structure
		} else {
			v = (*bpm + *structure) / 2
		}
	case structure != nil:
		v = *structure
	case bpm != nil:
		v = *bpm
	default:
		return nil
	}
	v = math.Floor(v + 0.5)
	return &v
}

// ParseResult extracts the persisted fields from a raw analyzer response.
// Field lookups are tolerant: each value is looked up at every path the
// analyzer has used for it.
func ParseResult(raw []byte) (*Result, error) {
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, err
	}

	r := &Result{
		LUFS:         first(raw, "lufs", "loudness_stats.integrated_lufs", "loudness.integrated_lufs"),
		OverallScore: first(raw, "overall_score"),
		BPM: EffectiveBPM(
			first(raw, "bpm", "rhythm.bpm"),
			first(raw, "mix_v1.metrics.structure.bpm"),
		),
		Key:                 gjson.GetBytes(raw, "key").String(),
		SpectralCentroidHz:  first(raw, "spectral_centroid_hz", "spectral.spectral_centroid_hz"),
		SpectralRolloffHz:   first(raw, "spectral_rolloff_hz", "spectral.spectral_rolloff_hz"),
		SpectralBandwidthHz: first(raw, "spectral_bandwidth_hz", "spectral.spectral_bandwidth_hz"),
		SpectralFlatness:    first(raw, "spectral_flatness", "spectral.spectral_flatness"),
		ZeroCrossingRate:    first(raw, "zero_crossing_rate", "spectral.zero_crossing_rate"),
		StereoWidth:         first(raw, "stereo_width", "stereo.stereo_width", "mix_v1.metrics.stereo.width"),
		LRA:                 first(raw, "loudness_stats.lra", "lra"),
		SamplePeakDB:        first(raw, "loudness_stats.sample_peak_db", "sample_peak_db"),
		ModelMatchPercent:   first(raw, "reference_ai.model_match.match_percent"),
		Raw:                 asMap,
	}

	if r.ModelMatchPercent == nil {
		if ratio := first(raw, "reference_ai.match_ratio", "model_match.match_ratio"); ratio != nil {
			pct := *ratio * 100
			r.ModelMatchPercent = &pct
		}
	}

	for _, path := range []string{"band_energy_norm", "bands_norm", "spectral.band_norm"} {
		res := gjson.GetBytes(raw, path)
		if !res.IsObject() {
			continue
		}
		bands := make(map[string]float64, len(reference.BandKeys))
		for _, k := range reference.BandKeys {
			if v := number(res.Get(k)); v != nil {
				bands[k] = *v
			}
		}
		if len(bands) > 0 {
			r.BandsNorm = bands
			break
		}
	}

	momentary := floats(gjson.GetBytes(raw, "loudness_stats.momentary_lufs"))
	if momentary == nil {
		momentary = floats(gjson.GetBytes(raw, "arrays.momentary_lufs"))
	}
	shortTerm := floats(gjson.GetBytes(raw, "loudness_stats.short_term_lufs"))
	if shortTerm == nil {
		shortTerm = floats(gjson.GetBytes(raw, "arrays.short_term_lufs"))
	}
	if len(momentary) > 0 || len(shortTerm) > 0 {
		r.Arrays = &models.VersionArrays{MomentaryLUFS: momentary, ShortTermLUFS: shortTerm}
	}

	r.WaveformPeaks = floats(gjson.GetBytes(raw, "waveform_peaks"))

	if t := gjson.GetBytes(raw, "transients"); t.IsObject() {
		tr := &models.Transients{
			Strength:      number(t.Get("strength")),
			Density:       number(t.Get("density")),
			CrestFactorDB: number(t.Get("crest_factor_db")),
			LogAttackTime: number(t.Get("log_attack_time")),
		}
		if tr.Strength != nil || tr.Density != nil || tr.CrestFactorDB != nil || tr.LogAttackTime != nil {
			r.Transients = tr
		}
	}
	if d := first(raw, "rhythm.danceability", "danceability"); d != nil {
		r.Rhythm = &models.Rhythm{Danceability: d, Stability: first(raw, "rhythm.stability")}
	}

	gjson.GetBytes(raw, "warnings").ForEach(func(_, w gjson.Result) bool {
		if s := w.String(); s != "" {
			r.Warnings = append(r.Warnings, s)
		}
		return true
	})

	return r, nil
}

// Apply copies the result onto a version. Scalar metrics are replaced
// as a whole, so one missing from this run is cleared. Bands, arrays,
// waveform peaks and features keep their previous value when absent.
func (r *Result) Apply(v *models.ProjectVersion, now time.Time) {
	v.LUFS = r.LUFS
	v.OverallScore = r.OverallScore
	v.AnalyzerBPM = r.BPM
	v.AnalyzerKey = r.Key
	v.SpectralCentroidHz = r.SpectralCentroidHz
	v.SpectralRolloffHz = r.SpectralRolloffHz
	v.SpectralBandwidthHz = r.SpectralBandwidthHz
	v.SpectralFlatness = r.SpectralFlatness
	v.ZeroCrossingRate = r.ZeroCrossingRate
	v.StereoWidth = r.StereoWidth
	v.LRA = r.LRA
	v.SamplePeakDB = r.SamplePeakDB
	v.ModelMatchPercent = r.ModelMatchPercent
	if r.BandsNorm != nil {
		v.AnalyzerBandsNorm = r.BandsNorm
	}
	if r.Arrays != nil {
		v.AnalyzerArrays = r.Arrays
	}
	if len(r.WaveformPeaks) > 0 {
		v.WaveformPeaks = r.WaveformPeaks
	}
	if r.Transients != nil || r.Rhythm != nil {
		v.AnalyzerFeatures = &models.VersionFeatures{Transients: r.Transients, Rhythm: r.Rhythm}
	}
	v.AnalyzerRaw = r.Raw
	v.AnalyzerUpdatedAt = &now
}
