/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scoring

import (
	"math"
	"time"
)

// DefaultPublicMultiplier scales a chart score into its public figure.
const DefaultPublicMultiplier = 5.0

// ChartWeights are the global chart weights and reference totals.
type ChartWeights struct {
	Analyzer, Likes, Plays, Downloads float64
	LikesRef, PlaysRef, DownloadsRef  float64
}

// DefaultChartWeights mirrors the seeded global rank profile.
func DefaultChartWeights() ChartWeights {
	return ChartWeights{
		Analyzer: 0.55, Likes: 0.2, Plays: 0.15, Downloads: 0.1,
		LikesRef: 200, PlaysRef: 3000, DownloadsRef: 30,
	}
}

// WithOverrides applies weight and ref overrides from a rank profile.
func (w ChartWeights) WithOverrides(weights, refs map[string]float64) ChartWeights {
	set := func(dst *float64, m map[string]float64, key string) {
		if v, ok := m[key]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			*dst = v
		}
	}
	set(&w.Analyzer, weights, "analyzer")
	set(&w.Likes, weights, "likes")
	set(&w.Plays, weights, "plays")
	set(&w.Downloads, weights, "downloads")
	set(&w.LikesRef, refs, "likes")
	set(&w.PlaysRef, refs, "plays")
	set(&w.DownloadsRef, refs, "downloads")
	return w
}

// NormMetric maps a count onto 0..100 on a log scale where ref scores 100.
// A non-positive ref falls back to 1.
func NormMetric(v, ref float64) float64 {
	if v <= 0 {
		return 0
	}
	if ref <= 0 {
		ref = 1
	}
	return clamp(100*math.Log1p(v)/math.Log1p(ref), 0, 100)
}

// ChartCounters are the totals one candidate is scored on.
type ChartCounters struct {
	AnalyzerScore float64
	Likes         int64
	Plays         int64
	Downloads     int64
}

// GlobalChartScore blends the analyzer score with engagement, clamped to 0..100.
func GlobalChartScore(c ChartCounters, w ChartWeights) float64 {
	score := w.Analyzer*clamp(c.AnalyzerScore, 0, 100) +
		w.Likes*NormMetric(float64(c.Likes), w.LikesRef) +
		w.Plays*NormMetric(float64(c.Plays), w.PlaysRef) +
		w.Downloads*NormMetric(float64(c.Downloads), w.DownloadsRef)
	return clamp(score, 0, 100)
}

// QualityChartScore is the analyzer score alone.
func QualityChartScore(c ChartCounters) float64 {
	return clamp(c.AnalyzerScore, 0, 100)
}

// PublicScore scales a chart score. A nil multiplier uses the default; any
// configured value, zero included, is used as is.
func PublicScore(score float64, multiplier *float64) int64 {
	m := DefaultPublicMultiplier
	if multiplier != nil {
		m = *multiplier
	}
	return int64(round(score * m))
}

// WeekBounds returns the Monday and Sunday (UTC dates) of the week holding t.
func WeekBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	start = time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 0, 6)
	return start, end
}
