/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package reference

import "math"

// BandStatus grades one band against the reference.
type BandStatus string

const (
	BandOK          BandStatus = "ok"
	BandWarn        BandStatus = "warn"
	BandOff         BandStatus = "off"
	BandNoReference BandStatus = "no_reference"
	BandNoValue     BandStatus = "no_value"
)

// warnGuard is the share of the p10..p90 span treated as "near the edge".
const warnGuard = 0.06

// BandCompare is the comparison of one band.
type BandCompare struct {
	Key    string     `json:"key"`
	Artist *float64   `json:"artist"`
	P10    *float64   `json:"p10"`
	P50    *float64   `json:"p50"`
	P90    *float64   `json:"p90"`
	Status BandStatus `json:"status"`
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// CompareBands grades the artist's normalized band energies against the
// reference percentiles, in BandKeys order.
func CompareBands(artist map[string]float64, ref *Model) []BandCompare {
	out := make([]BandCompare, 0, len(BandKeys))
	for _, key := range BandKeys {
		row := BandCompare{Key: key}
		if ref != nil {
			if p, ok := ref.BandsNormPercentiles[key]; ok {
				row.P10, row.P50, row.P90 = p.P10, p.P50, p.P90
			}
		}

		if v, ok := artist[key]; ok && finite(&v) {
			val := v
			row.Artist = &val
		}

		row.Status = grade(row.Artist, row.P10, row.P50, row.P90)
		out = append(out, row)
	}
	return out
}

func grade(artist, p10, p50, p90 *float64) BandStatus {
	switch {
	case artist == nil:
		return BandNoValue
	case !finite(p10) || !finite(p50) || !finite(p90):
		return BandNoReference
	}
	a, lo, hi := *artist, *p10, *p90
	guard := (hi - lo) * warnGuard
	switch {
	case a < lo || a > hi:
		return BandOff
	case a < lo+guard || a > hi-guard:
		return BandWarn
	default:
		return BandOK
	}
}

// LoudnessMetrics are the measured values CompareLoudness grades.
type LoudnessMetrics struct {
	LUFS         *float64
	LRA          *float64
	SamplePeakDB *float64
	StereoWidth  *float64
}

// CompareLoudness grades loudness and stereo width against the reference
// ranges with the same edges as CompareBands. It returns nil when the
// reference carries none of these ranges.
func CompareLoudness(m LoudnessMetrics, r *Ranges) []BandCompare {
	if !r.HasLoudness() && (r == nil || r.StereoWidth == nil) {
		return nil
	}
	rows := []struct {
		key   string
		value *float64
		p     *Percentiles
	}{
		{"lufs", m.LUFS, r.LUFS},
		{"lra", m.LRA, r.LRA},
		{"sample_peak_db", m.SamplePeakDB, r.SamplePeak},
		{"stereo_width", m.StereoWidth, r.StereoWidth},
	}
	out := make([]BandCompare, 0, len(rows))
	for _, row := range rows {
		cmp := BandCompare{Key: row.key}
		if finite(row.value) {
			cmp.Artist = row.value
		}
		if row.p != nil {
			cmp.P10, cmp.P50, cmp.P90 = row.p.P10, row.p.P50, row.p.P90
		}
		cmp.Status = grade(cmp.Artist, cmp.P10, cmp.P50, cmp.P90)
		out = append(out, cmp)
	}
	return out
}
