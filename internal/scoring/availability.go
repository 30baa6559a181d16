/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scoring

import "github.com/friendsincode/tekkin/internal/models"

// ReadyLevel describes how much analyzer data a version carries.
type ReadyLevel string

const (
	ReadyNone  ReadyLevel = "none"
	ReadyQuick ReadyLevel = "quick"
	ReadyPro   ReadyLevel = "pro"
)

// Availability flags which analyzer outputs are present on a version.
type Availability struct {
	HasBase       bool       `json:"hasBase"`
	HasArrays     bool       `json:"hasArrays"`
	HasBands      bool       `json:"hasBands"`
	HasProfileKey bool       `json:"hasProfileKey"`
	HasReference  bool       `json:"hasReference"`
	ReadyLevel    ReadyLevel `json:"readyLevel"`
}

// AnalyzerAvailability inspects a version. A nil version has nothing.
func AnalyzerAvailability(v *models.ProjectVersion) Availability {
	if v == nil {
		return Availability{ReadyLevel: ReadyNone}
	}

	a := Availability{
		HasBase:       v.LUFS != nil && v.OverallScore != nil && v.AnalyzerBPM != nil && v.AnalyzerKey != "",
		HasArrays:     v.AnalyzerArrays != nil && len(v.AnalyzerArrays.MomentaryLUFS) > 0,
		HasBands:      v.AnalyzerBandsNorm != nil,
		HasProfileKey: v.AnalyzerProfileKey != "",
		ReadyLevel:    ReadyNone,
	}
	a.HasReference = a.HasProfileKey && v.ReferenceModelKey != ""

	if a.HasBase {
		a.ReadyLevel = ReadyQuick
		if a.HasArrays || a.HasBands {
			a.ReadyLevel = ReadyPro
		}
	}
	return a
}
