/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scoring

// VersionRankComponent is one weighted group of the version rank.
type VersionRankComponent struct {
	Key          string   `json:"key"`
	Label        string   `json:"label"`
	Description  string   `json:"description"`
	Weight       float64  `json:"weight"`
	Score        *float64 `json:"score"`
	Contribution *float64 `json:"contribution"`
	HasData      bool     `json:"hasData"`
	DetailLines  []string `json:"detailLines,omitempty"`
}

// VersionRankPenalty is subtracted from the candidate score.
type VersionRankPenalty struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Amount  float64 `json:"amount"`
	Points  float64 `json:"points"`
	Details string  `json:"details,omitempty"`
}

// VersionRankPrecision reports how close to the median a group sits (0..1).
type VersionRankPrecision struct {
	Key       string   `json:"key"`
	Label     string   `json:"label"`
	Closeness *float64 `json:"closeness"`
}

// VersionRankDetails is the full breakdown of a version rank.
type VersionRankDetails struct {
	Score              float64                `json:"score"`
	ReferenceFit       *float64               `json:"referenceFit"`
	BaseQuality        *float64               `json:"baseQuality"`
	PrePenaltyScore    float64                `json:"prePenaltyScore"`
	Components         []VersionRankComponent `json:"components"`
	Penalties          []VersionRankPenalty   `json:"penalties"`
	PrecisionBonus     float64                `json:"precisionBonus"`
	PrecisionBreakdown []VersionRankPrecision `json:"precisionBreakdown"`
}

// ArtistPhase buckets the phase-based artist score.
type ArtistPhase string

const (
	PhaseBuilding    ArtistPhase = "building"
	PhaseRising      ArtistPhase = "rising"
	PhaseEstablished ArtistPhase = "established"
	PhaseHighForm    ArtistPhase = "high_form"
)

// ArtistRank is the dashboard rank of an artist.
type ArtistRank struct {
	TekkinScore float64     `json:"tekkin_score"`
	Phase       ArtistPhase `json:"phase"`
	Level       string      `json:"level"`
	Growth      float64     `json:"growth_score"`
	Presence    float64     `json:"presence_score"`
	Catalog     float64     `json:"catalog_score"`
	Activity    float64     `json:"activity_score"`
	Release     float64     `json:"release_score"`
	Support     float64     `json:"support_score"`
	Production  float64     `json:"production_score"`
	Branding    float64     `json:"branding_score"`
}

// FallbackRank is returned when no metrics were collected yet.
func FallbackRank() ArtistRank {
	return ArtistRank{
		TekkinScore: 50,
		Phase:       PhaseBuilding,
		Level:       "Building phase",
		Growth:      10,
		Presence:    15,
		Catalog:     15,
		Activity:    10,
	}
}
