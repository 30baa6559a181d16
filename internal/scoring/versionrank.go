/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scoring

import (
	"fmt"
	"math"

	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/reference"
)

// VersionRankInput is what the ranker reads from an analyzed version.
type VersionRankInput struct {
	BPM                 *float64
	LUFS                *float64
	LRA                 *float64
	SamplePeakDB        *float64
	SpectralCentroidHz  *float64
	SpectralBandwidthHz *float64
	SpectralRolloffHz   *float64
	SpectralFlatness    *float64
	ZeroCrossingRate    *float64
	StereoWidth         *float64
	BandsNorm           map[string]float64
	Transients          *models.Transients
	Danceability        *float64
}

// VersionRankInputFrom copies the relevant analyzer fields of a version.
func VersionRankInputFrom(v *models.ProjectVersion) VersionRankInput {
	if v == nil {
		return VersionRankInput{}
	}
	in := VersionRankInput{
		BPM:                 v.AnalyzerBPM,
		LUFS:                v.LUFS,
		LRA:                 v.LRA,
		SamplePeakDB:        v.SamplePeakDB,
		SpectralCentroidHz:  v.SpectralCentroidHz,
		SpectralBandwidthHz: v.SpectralBandwidthHz,
		SpectralRolloffHz:   v.SpectralRolloffHz,
		SpectralFlatness:    v.SpectralFlatness,
		ZeroCrossingRate:    v.ZeroCrossingRate,
		StereoWidth:         v.StereoWidth,
		BandsNorm:           v.AnalyzerBandsNorm,
	}
	if f := v.AnalyzerFeatures; f != nil {
		in.Transients = f.Transients
		if f.Rhythm != nil {
			in.Danceability = f.Rhythm.Danceability
		}
	}
	return in
}

type rangeStats struct {
	mid, halfWidth float64
}

func statsOf(r *reference.Percentiles) (rangeStats, bool) {
	if r == nil {
		return rangeStats{}, false
	}
	low := firstOf(r.P10, r.P50, r.P90)
	high := firstOf(r.P90, r.P50, r.P10)
	if low == nil || high == nil {
		return rangeStats{}, false
	}
	mid := (*low + *high) / 2
	if r.P50 != nil {
		mid = *r.P50
	}
	half := math.Abs(*high-*low) / 2
	if half <= 0 {
		half = math.Max(math.Abs(mid)*0.15, 1)
	}
	return rangeStats{mid: mid, halfWidth: half}, true
}

func boundsOf(r *reference.Percentiles) (lower, upper float64, ok bool) {
	if r == nil {
		return 0, 0, false
	}
	lo := firstOf(r.P10, r.P50, r.P90)
	hi := firstOf(r.P90, r.P50, r.P10)
	if lo == nil || hi == nil {
		return 0, 0, false
	}
	return math.Min(*lo, *hi), math.Max(*lo, *hi), true
}

func firstOf(vals ...*float64) *float64 {
	for _, v := range vals {
		if isFinite(v) {
			return v
		}
	}
	return nil
}

func normalizedDiff(v float64, r *reference.Percentiles, clampToOne bool) (float64, bool) {
	st, ok := statsOf(r)
	if !ok {
		return 0, false
	}
	n := math.Abs(v-st.mid) / st.halfWidth
	if clampToOne {
		n = math.Min(n, 1)
	}
	return n, true
}

func scoreAgainstRange(v *float64, r *reference.Percentiles) *float64 {
	if !isFinite(v) || r == nil {
		return nil
	}
	if lo, hi, ok := boundsOf(r); ok && *v >= lo && *v <= hi {
		return ptr(100)
	}
	n, ok := normalizedDiff(*v, r, true)
	if !ok {
		return nil
	}
	return ptr(clamp((1-math.Pow(n, 1.4))*100, 0, 100))
}

func scoreAgainstRangeSoft(v *float64, r *reference.Percentiles) *float64 {
	if !isFinite(v) {
		return nil
	}
	lo, hi, ok := boundsOf(r)
	if !ok {
		return nil
	}
	if *v >= lo && *v <= hi {
		return ptr(100)
	}
	n, ok := normalizedDiff(*v, r, false)
	if !ok {
		return nil
	}
	outside := math.Max(0, n-1)
	return ptr(clamp(85-outside*55, 0, 100))
}

func scoreInRangeOnly(v *float64, r *reference.Percentiles, tol float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	lo, hi, ok := boundsOf(r)
	if !ok {
		return nil
	}
	pad := math.Max(hi-lo, 1e-4) * tol
	if *v >= lo-pad && *v <= hi+pad {
		return ptr(100)
	}
	return ptr(0)
}

// closeness is 1 at the median and falls to 0 at either bound. It is nil
// only when there is nothing to compare; a range without usable bounds
// counts as 0.
func closeness(v *float64, r *reference.Percentiles) *float64 {
	if !isFinite(v) || r == nil {
		return nil
	}
	lo, hi, ok := boundsOf(r)
	if !ok {
		return ptr(0)
	}
	if *v < lo || *v > hi {
		return ptr(0)
	}
	st, _ := statsOf(r)
	denom := math.Max(st.mid-lo, 1e-4)
	if *v >= st.mid {
		denom = math.Max(hi-st.mid, 1e-4)
	}
	return ptr(clamp(1-math.Abs(*v-st.mid)/denom, 0, 1))
}

func average(vals ...*float64) *float64 {
	var sum float64
	var n int
	for _, v := range vals {
		if !isFinite(v) {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil
	}
	return ptr(sum / float64(n))
}

func describeRange(label, unit string, v *float64, r *reference.Percentiles, tol float64) string {
	lo, hi, ok := boundsOf(r)
	if !isFinite(v) || !ok {
		return label + ": n/a"
	}
	pad := math.Max(hi-lo, 1e-4) * tol
	switch {
	case *v >= lo-pad && *v <= hi+pad:
		return fmt.Sprintf("%s: ok (%.1f%s in %.1f / %.1f)", label, *v, unit, lo, hi)
	case *v < lo:
		return fmt.Sprintf("%s: below by %.2f (%.1f vs %.1f / %.1f)", label, lo-*v, *v, lo, hi)
	default:
		return fmt.Sprintf("%s: above by %.2f (%.1f vs %.1f / %.1f)", label, *v-hi, *v, lo, hi)
	}
}

type group struct {
	key, label, description string
	weight                  float64
	score                   *float64
	closeness               *float64
	details                 []string
}

const (
	maxPrecisionBonus = 3.0
	maxPenaltyTotal   = 0.45
	loudnessDeadZone  = 1.1
	loudnessTolerance = 0.05
)

// CalculateVersionRank ranks an analyzed version against reference ranges.
// With no ranges the rank falls back to the quick mix score.
func CalculateVersionRank(in VersionRankInput, ranges *reference.Ranges) VersionRankDetails {
	if ranges == nil {
		ranges = &reference.Ranges{}
	}

	var tonalScores, tonalClose []*float64
	for _, key := range reference.BandKeys {
		v := bandValue(in.BandsNorm, key)
		r := ranges.Bands[key]
		tonalScores = append(tonalScores, scoreAgainstRange(v, r))
		tonalClose = append(tonalClose, closeness(v, r))
	}

	var loudScore, loudClose *float64
	var loudDetails []string
	if ranges.LUFS != nil || ranges.LRA != nil {
		if isFinite(in.LUFS) || isFinite(in.LRA) {
			loudScore = average(scoreInRangeOnly(in.LUFS, ranges.LUFS, loudnessTolerance), scoreInRangeOnly(in.LRA, ranges.LRA, loudnessTolerance))
			loudClose = average(closeness(in.LUFS, ranges.LUFS), closeness(in.LRA, ranges.LRA))
		}
		loudDetails = []string{
			describeRange("LUFS", " LUFS", in.LUFS, ranges.LUFS, loudnessTolerance),
			describeRange("LRA", " LU", in.LRA, ranges.LRA, loudnessTolerance),
		}
	}

	spectralValues := map[string]*float64{
		"spectral_centroid_hz":  in.SpectralCentroidHz,
		"spectral_bandwidth_hz": in.SpectralBandwidthHz,
		"spectral_rolloff_hz":   in.SpectralRolloffHz,
		"spectral_flatness":     in.SpectralFlatness,
		"zero_crossing_rate":    in.ZeroCrossingRate,
	}
	var specScores, specClose []*float64
	for _, key := range []string{"spectral_centroid_hz", "spectral_bandwidth_hz", "spectral_rolloff_hz", "spectral_flatness", "zero_crossing_rate"} {
		specScores = append(specScores, scoreAgainstRangeSoft(spectralValues[key], ranges.Spectral[key]))
		specClose = append(specClose, closeness(spectralValues[key], ranges.Spectral[key]))
	}

	var tr models.Transients
	if in.Transients != nil {
		tr = *in.Transients
	}
	transientValues := map[string]*float64{
		"strength":        tr.Strength,
		"density":         tr.Density,
		"crest_factor_db": tr.CrestFactorDB,
		"log_attack_time": tr.LogAttackTime,
	}
	var trScores, trClose []*float64
	for _, key := range []string{"strength", "density", "crest_factor_db", "log_attack_time"} {
		trScores = append(trScores, scoreAgainstRange(transientValues[key], ranges.Transients[key]))
		trClose = append(trClose, closeness(transientValues[key], ranges.Transients[key]))
	}

	rhythmScore := average(
		scoreAgainstRange(in.BPM, ranges.Rhythm["bpm"]),
		scoreAgainstRange(in.Danceability, ranges.Rhythm["danceability"]),
	)
	rhythmClose := average(
		closeness(in.BPM, ranges.Rhythm["bpm"]),
		closeness(in.Danceability, ranges.Rhythm["danceability"]),
	)

	groups := []group{
		{"tonal", "Tonal balance", "Energy per band against the genre reference.", 0.35, average(tonalScores...), average(tonalClose...), nil},
		{"loudness", "Loudness", "Integrated loudness and loudness range.", 0.25, loudScore, loudClose, loudDetails},
		{"spectral", "Spectrum", "Centroid, bandwidth, rolloff, flatness and zero crossings.", 0.15, average(specScores...), average(specClose...), nil},
		{"transients", "Transients", "Attack strength, density and crest factor.", 0.15, average(trScores...), average(trClose...), nil},
		{"rhythm", "Rhythm", "Tempo and danceability.", 0.1, rhythmScore, rhythmClose, nil},
	}

	var fitSum, fitWeight float64
	for _, g := range groups {
		if g.score != nil {
			fitSum += *g.score * g.weight
			fitWeight += g.weight
		}
	}

	out := VersionRankDetails{
		Components:         make([]VersionRankComponent, 0, len(groups)),
		Penalties:          []VersionRankPenalty{},
		PrecisionBreakdown: make([]VersionRankPrecision, 0, len(groups)),
	}
	if fitWeight > 0 {
		out.ReferenceFit = ptr(fitSum / fitWeight)
	}

	var closeSum, closeWeight float64
	for _, g := range groups {
		c := VersionRankComponent{
			Key:         g.key,
			Label:       g.label,
			Description: g.description,
			Weight:      g.weight,
			Score:       g.score,
			HasData:     g.score != nil,
			DetailLines: g.details,
		}
		if g.score != nil && fitWeight > 0 {
			c.Contribution = ptr(*g.score * g.weight / fitWeight)
		}
		out.Components = append(out.Components, c)

		out.PrecisionBreakdown = append(out.PrecisionBreakdown, VersionRankPrecision{Key: g.key, Label: g.label, Closeness: g.closeness})
		if g.closeness != nil {
			closeSum += *g.closeness * g.weight
		}
		closeWeight += g.weight
	}
	if closeWeight > 0 {
		out.PrecisionBonus = math.Min(maxPrecisionBonus, maxPrecisionBonus*closeSum/closeWeight)
	}

	var penaltyTotal float64
	if isFinite(in.LUFS) {
		if n, ok := normalizedDiff(*in.LUFS, ranges.LUFS, false); ok && n > loudnessDeadZone {
			amount := math.Min(0.25, (n-loudnessDeadZone)*0.18)
			lo, hi, _ := boundsOf(ranges.LUFS)
			out.Penalties = append(out.Penalties, VersionRankPenalty{
				Key:     "loudness_range",
				Label:   "LUFS off target",
				Amount:  amount,
				Points:  amount * 100,
				Details: fmt.Sprintf("Integrated %.1f vs target %.1f / %.1f", *in.LUFS, lo, hi),
			})
			penaltyTotal += amount
		}
	}
	penaltyTotal = math.Min(penaltyTotal, maxPenaltyTotal)

	mix := ComputeMixScores(MixInput{
		LUFS:               in.LUFS,
		LRA:                in.LRA,
		SamplePeakDB:       in.SamplePeakDB,
		SpectralCentroidHz: in.SpectralCentroidHz,
		SpectralRolloffHz:  in.SpectralRolloffHz,
		SpectralFlatness:   in.SpectralFlatness,
		StereoWidth:        in.StereoWidth,
		BandsNorm:          in.BandsNorm,
	})
	if mix.OverallScore != nil {
		out.BaseQuality = ptr(clamp(*mix.OverallScore, 0, 100))
	}

	candidate := 50.0
	switch {
	case out.ReferenceFit != nil:
		candidate = *out.ReferenceFit
	case out.BaseQuality != nil:
		candidate = *out.BaseQuality
	}
	candidate += out.PrecisionBonus

	out.PrePenaltyScore = clamp(candidate, 1, 100)
	out.Score = round(clamp(candidate-penaltyTotal*100, 1, 100))
	return out
}
