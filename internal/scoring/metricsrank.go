/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scoring

import "math"

// DailyMetrics are the collected external signals of an artist.
type DailyMetrics struct {
	SpotifyFollowers        *float64
	SpotifyMonthlyListeners *float64
	SpotifyPopularity       *float64
	BeatportCharts          *float64
	BeatportHypeCharts      *float64
	ShowsLast90Days         *float64
}

func normalizeLog(v *float64, lo, hi, mid float64) float64 {
	if !isFinite(v) {
		return mid
	}
	x := clamp(*v, lo, hi)
	t := (math.Log10(x+10) - math.Log10(lo+10)) / (math.Log10(hi+10) - math.Log10(lo+10))
	return round(10 + t*80)
}

func normalizeLinear(v *float64, lo, hi, mid float64) float64 {
	if !isFinite(v) {
		return mid
	}
	x := clamp(*v, lo, hi)
	return round(10 + (x-lo)/(hi-lo)*80)
}

func metricsLevel(score float64) string {
	switch {
	case score >= 85:
		return "Elite Form"
	case score >= 70:
		return "High Form"
	case score >= 50:
		return "Mid Form"
	default:
		return "Low Motion"
	}
}

// CalculateArtistRankFromMetrics blends normalized followers, listeners,
// popularity, charts and shows into a 20..95 score.
func CalculateArtistRankFromMetrics(m *DailyMetrics) ArtistRank {
	rank := FallbackRank()
	if m == nil {
		return rank
	}

	f := normalizeLog(m.SpotifyFollowers, 100, 200000, 55)
	l := normalizeLog(m.SpotifyMonthlyListeners, 500, 500000, 60)
	p := normalizeLinear(m.SpotifyPopularity, 0, 100, 60)
	// Missing chart counts mean no charts, not an unknown value.
	c := normalizeLinear(ptr(orZero(m.BeatportCharts)+orZero(m.BeatportHypeCharts)), 0, 30, 55)
	s := normalizeLinear(m.ShowsLast90Days, 0, 20, 50)

	score := round(clamp(0.25*f+0.25*l+0.15*p+0.2*c+0.15*s, 20, 95))

	rank.TekkinScore = score
	rank.Level = metricsLevel(score)
	rank.Release = round(0.4*f + 0.4*l + 0.2*p)
	rank.Support = round(0.6*c + 0.4*p)
	rank.Activity = round(0.7*s + 0.3*f)
	rank.Branding = round(0.7*p + 0.3*f)
	return rank
}
