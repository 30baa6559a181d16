/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scoring holds the pure scoring functions: analyzer availability,
// mix sub-scores, version rank against a reference, artist ranks and chart
// scores. Nothing here touches the database or the network.
package scoring

import "math"

// round rounds half up, so 2.5 -> 3 and -2.5 -> -2.
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func isFinite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func ptr(v float64) *float64 { return &v }

func bandValue(bands map[string]float64, key string) *float64 {
	if bands == nil {
		return nil
	}
	v, ok := bands[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
