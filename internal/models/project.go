/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Visibility values shared by projects and versions.
const (
	VisibilityPublic            = "public"
	VisibilityPrivate           = "private" // legacy, rewritten by db.Migrate
	VisibilityPrivateSecretLink = "private_with_secret_link"
)

// Mix types.
const (
	MixTypeMaster    = "master"
	MixTypePremaster = "premaster"
)

// Project is a track owned by an artist.
type Project struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Title       string    `gorm:"type:varchar(255)" json:"title"`
	Genre       string    `gorm:"type:varchar(64)" json:"genre,omitempty"`
	MixType     string    `gorm:"type:varchar(16)" json:"mix_type,omitempty"`
	CoverURL    string    `gorm:"type:text" json:"cover_url,omitempty"`
	CoverLink   string    `gorm:"type:text" json:"cover_link,omitempty"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Visibility  string    `gorm:"type:varchar(32);default:private_with_secret_link" json:"visibility"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id when missing.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProjectCollaborator grants a non-owner access to a project.
type ProjectCollaborator struct {
	ProjectID string    `gorm:"type:varchar(36);primaryKey" json:"project_id"`
	UserID    string    `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	Role      string    `gorm:"type:varchar(32)" json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VersionArrays holds per-frame analyzer series.
type VersionArrays struct {
	MomentaryLUFS []float64 `json:"momentary_lufs,omitempty"`
	ShortTermLUFS []float64 `json:"short_term_lufs,omitempty"`
}

// VersionFeatures carries analyzer descriptors without a dedicated column.
type VersionFeatures struct {
	Transients *Transients `json:"transients,omitempty"`
	Rhythm     *Rhythm     `json:"rhythm,omitempty"`
}

// Transients descriptors.
type Transients struct {
	Strength      *float64 `json:"strength,omitempty"`
	Density       *float64 `json:"density,omitempty"`
	CrestFactorDB *float64 `json:"crest_factor_db,omitempty"`
	LogAttackTime *float64 `json:"log_attack_time,omitempty"`
}

// Rhythm descriptors.
type Rhythm struct {
	Danceability *float64 `json:"danceability,omitempty"`
	Stability    *float64 `json:"stability,omitempty"`
}

// ProjectVersion is one uploaded revision of a project plus its analysis.
// Numeric analyzer fields are pointers: absent and zero are different states.
type ProjectVersion struct {
	ID          string `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID   string `gorm:"type:varchar(36);index;not null" json:"project_id"`
	VersionName string `gorm:"type:varchar(128)" json:"version_name"`
	AudioPath   string `gorm:"type:text" json:"audio_path,omitempty"`
	AudioURL    string `gorm:"type:text" json:"audio_url,omitempty"`
	Visibility  string `gorm:"type:varchar(32);default:private_with_secret_link" json:"visibility"`
	MixType     string `gorm:"type:varchar(16)" json:"mix_type,omitempty"`

	LUFS               *float64 `json:"lufs"`
	OverallScore       *float64 `json:"overall_score"`
	AnalyzerBPM        *float64 `gorm:"column:analyzer_bpm" json:"analyzer_bpm"`
	AnalyzerKey        string   `gorm:"type:varchar(16)" json:"analyzer_key,omitempty"`
	AnalyzerProfileKey string   `gorm:"type:varchar(64)" json:"analyzer_profile_key,omitempty"`
	ReferenceModelKey  string   `gorm:"type:varchar(64)" json:"reference_model_key,omitempty"`
	AnalyzerMode       string   `gorm:"type:varchar(16)" json:"analyzer_mode,omitempty"`

	SpectralCentroidHz  *float64 `json:"spectral_centroid_hz"`
	SpectralRolloffHz   *float64 `json:"spectral_rolloff_hz"`
	SpectralBandwidthHz *float64 `json:"spectral_bandwidth_hz"`
	SpectralFlatness    *float64 `json:"spectral_flatness"`
	ZeroCrossingRate    *float64 `json:"zero_crossing_rate"`
	StereoWidth         *float64 `json:"stereo_width"`
	LRA                 *float64 `gorm:"column:lra" json:"lra"`
	SamplePeakDB        *float64 `gorm:"column:sample_peak_db" json:"sample_peak_db"`
	ModelMatchPercent   *float64 `json:"model_match_percent"`

	AnalyzerBandsNorm map[string]float64 `gorm:"type:text;serializer:json" json:"analyzer_bands_norm"`
	AnalyzerArrays    *VersionArrays     `gorm:"type:text;serializer:json" json:"analyzer_arrays,omitempty"`
	AnalyzerFeatures  *VersionFeatures   `gorm:"type:text;serializer:json" json:"analyzer_features,omitempty"`
	WaveformPeaks     []float64          `gorm:"type:text;serializer:json" json:"waveform_peaks,omitempty"`
	AnalyzerRaw       map[string]any     `gorm:"type:text;serializer:json" json:"-"`
	AnalyzerUpdatedAt *time.Time         `json:"analyzer_updated_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id when missing.
func (v *ProjectVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// HasAudio reports whether the version points at an audio object.
func (v *ProjectVersion) HasAudio() bool {
	return v != nil && (v.AudioPath != "" || v.AudioURL != "")
}

// Publishable reports whether the version is a candidate for going public:
// it must be analyzed and carry audio. Premasters are candidates too but are
// refused by IsMaster when promoted.
func (v *ProjectVersion) Publishable() bool {
	return v != nil && v.OverallScore != nil && v.HasAudio()
}

// IsMaster reports whether the version is a master. An unset mix type
// counts as master.
func (v *ProjectVersion) IsMaster() bool {
	return v != nil && v.MixType != MixTypePremaster
}

// StoragePath returns the object key of the audio, preferring audio_path.
func (v *ProjectVersion) StoragePath() string {
	if v.AudioPath != "" {
		return v.AudioPath
	}
	return v.AudioURL
}
