/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scoring

import "math"

// ArtistMetrics are the inputs of the phase-based artist rank.
type ArtistMetrics struct {
	SpotifyFollowers       *float64
	SpotifyFollowers30dAgo *float64
	SpotifyFollowersDiff30 *float64
	SpotifyPopularity      *float64
	ReleasesLast12m        *float64
	TotalReleases          *float64
	AnalyzedVersions       *float64
}

var phaseLevels = map[ArtistPhase]string{
	PhaseBuilding:    "Building phase",
	PhaseRising:      "Rising",
	PhaseEstablished: "Established",
	PhaseHighForm:    "High Form",
}

func orZero(v *float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return *v
}

// PhaseFor buckets a 0..100 score.
func PhaseFor(score float64) ArtistPhase {
	switch {
	case score < 25:
		return PhaseBuilding
	case score < 50:
		return PhaseRising
	case score < 75:
		return PhaseEstablished
	default:
		return PhaseHighForm
	}
}

func activityPoints(analyzed float64) float64 {
	switch {
	case analyzed <= 0:
		return 0
	case analyzed <= 2:
		return 5
	case analyzed <= 5:
		return 10
	default:
		return 15
	}
}

// ComputeArtistRank scores growth, presence, catalog and activity. Nil
// metrics give a zero rank in the building phase.
func ComputeArtistRank(m *ArtistMetrics) ArtistRank {
	if m == nil {
		return ArtistRank{Phase: PhaseBuilding, Level: phaseLevels[PhaseBuilding]}
	}

	followers := orZero(m.SpotifyFollowers)
	var diff30 float64
	if isFinite(m.SpotifyFollowersDiff30) {
		diff30 = *m.SpotifyFollowersDiff30
	} else {
		past := followers
		if isFinite(m.SpotifyFollowers30dAgo) {
			past = *m.SpotifyFollowers30dAgo
		}
		diff30 = math.Max(followers-past, 0)
	}
	pop := orZero(m.SpotifyPopularity)
	rel12m := orZero(m.ReleasesLast12m)
	total := orZero(m.TotalReleases)

	growth := clamp(math.Min(round(diff30/20), 20)+math.Min(round(pop/3), 10), 0, 30)
	presence := clamp(math.Min(round(followers/50), 20)+math.Min(round(pop/10), 5), 0, 25)
	catalog := clamp(math.Min(round(rel12m), 20)+math.Min(round(total/10), 10), 0, 30)
	activity := activityPoints(orZero(m.AnalyzedVersions))

	partial := growth + presence + catalog + activity
	if partial > 0 {
		partial += 4
	}
	score := clamp(round(partial), 0, 100)
	phase := PhaseFor(score)

	return ArtistRank{
		TekkinScore: score,
		Phase:       phase,
		Level:       phaseLevels[phase],
		Growth:      growth,
		Presence:    presence,
		Catalog:     catalog,
		Activity:    activity,
	}
}
