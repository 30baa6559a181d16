/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scoring

import "math"

// MixInput carries the analyzer values the mix sub-scores read.
type MixInput struct {
	LUFS               *float64
	LRA                *float64
	SamplePeakDB       *float64
	SpectralCentroidHz *float64
	SpectralRolloffHz  *float64
	SpectralFlatness   *float64
	StereoWidth        *float64
	BandsNorm          map[string]float64
	ModelMatchPercent  *float64
}

// MixScores are 0..100 sub-scores. A nil score means its inputs were missing.
type MixScores struct {
	OverallScore *float64 `json:"overall_score"`
	SubClarity   *float64 `json:"sub_clarity"`
	HiEnd        *float64 `json:"hi_end"`
	Dynamics     *float64 `json:"dynamics"`
	StereoImage  *float64 `json:"stereo_image"`
	Tonality     *float64 `json:"tonality"`
}

// penaltyOutside is 0 inside [lo,hi] and grows with the distance outside it
// relative to the crossed bound, saturating at 1. The bound keeps its sign, so
// ranges with negative bounds (LUFS, peak dB) clamp to 0 on either side.
func penaltyOutside(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < lo {
		return clamp((lo-v)/divisor(lo), 0, 1)
	}
	if v > hi {
		return clamp((v-hi)/divisor(hi), 0, 1)
	}
	return 0
}

func divisor(bound float64) float64 {
	if bound == 0 {
		return 1
	}
	return bound
}

func scoreFromDistance(d float64) float64 {
	return clamp(round(lerp(100, 0, clamp(d, 0, 1))), 0, 100)
}

func penIf(v *float64, lo, hi float64) float64 {
	if v == nil {
		return 0
	}
	return penaltyOutside(*v, lo, hi)
}

// ComputeMixScores derives the quick mix sub-scores and an overall score.
func ComputeMixScores(in MixInput) MixScores {
	lufs, lra, peak := finiteOrNil(in.LUFS), finiteOrNil(in.LRA), finiteOrNil(in.SamplePeakDB)
	centroid, rolloff := finiteOrNil(in.SpectralCentroidHz), finiteOrNil(in.SpectralRolloffHz)
	flatness, width := finiteOrNil(in.SpectralFlatness), finiteOrNil(in.StereoWidth)
	match := finiteOrNil(in.ModelMatchPercent)

	hasAny := lufs != nil || lra != nil || centroid != nil || width != nil || len(in.BandsNorm) > 0 || match != nil
	if !hasAny {
		return MixScores{}
	}

	var out MixScores

	sub, low, lowmid := bandValue(in.BandsNorm, "sub"), bandValue(in.BandsNorm, "low"), bandValue(in.BandsNorm, "lowmid")
	if sub != nil && low != nil && lowmid != nil {
		// sub sits 0.15 under low; lowmid above 0.55 is mud.
		d1 := math.Abs((*sub - *low) + 0.15)
		d2 := math.Max(0, *lowmid-0.55)
		flatPen := penIf(flatness, 0.03, 0.18)
		out.SubClarity = ptr(scoreFromDistance(clamp(d1*1.2+d2+flatPen*0.6, 0, 1)))
	}

	presence, high, air := bandValue(in.BandsNorm, "presence"), bandValue(in.BandsNorm, "high"), bandValue(in.BandsNorm, "air")
	if (presence != nil && high != nil && air != nil) || centroid != nil {
		centroidPen := penIf(centroid, 1800, 4200)

		var bandDist float64
		var n int
		if presence != nil && high != nil {
			bandDist += math.Abs((*high - *presence) + 0.05)
			n++
		}
		if air != nil && high != nil {
			bandDist += math.Abs((*air - *high) + 0.08)
			n++
		}
		avg := 0.25
		if n > 0 {
			avg = bandDist / float64(n)
		}
		out.HiEnd = ptr(scoreFromDistance(clamp(avg*1.4+centroidPen*0.8, 0, 1)))
	}

	if lra != nil || peak != nil || lufs != nil {
		d := penIf(lra, 4, 14)*0.9 + penIf(peak, -9, -0.2)*0.6 + penIf(lufs, -14.5, -7)*0.8
		out.Dynamics = ptr(scoreFromDistance(clamp(d, 0, 1)))
	}

	if width != nil {
		out.StereoImage = ptr(scoreFromDistance(clamp(penaltyOutside(*width, 0.02, 0.35)*1.2, 0, 1)))
	}

	if flatness != nil || rolloff != nil {
		d := penIf(flatness, 0.03, 0.20) + penIf(rolloff, 1500, 8000)*0.6
		out.Tonality = ptr(scoreFromDistance(clamp(d, 0, 1)))
	}

	parts := []struct {
		v *float64
		w float64
	}{
		{out.SubClarity, 1.1},
		{out.HiEnd, 1.0},
		{out.Dynamics, 1.0},
		{out.StereoImage, 0.8},
		{out.Tonality, 0.9},
	}
	var sum, sumW float64
	for _, p := range parts {
		if p.v == nil {
			continue
		}
		sum += *p.v * p.w
		sumW += p.w
	}
	if sumW > 0 {
		overall := round(sum / sumW)
		if match != nil {
			overall = round(lerp(overall, clamp(*match, 0, 100), 0.25))
		}
		out.OverallScore = ptr(clamp(overall, 0, 100))
	}
	return out
}

func finiteOrNil(v *float64) *float64 {
	if isFinite(v) {
		return v
	}
	return nil
}
