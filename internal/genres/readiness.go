/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package genres

import (
	"fmt"
	"math"
)

// Readiness is the release readiness of a mix for its genre.
type Readiness string

const (
	ReadinessReady   Readiness = "ready"
	ReadinessAlmost  Readiness = "almost"
	ReadinessWork    Readiness = "work"
	ReadinessEarly   Readiness = "early"
	ReadinessUnknown Readiness = "unknown"
)

// ReadinessInput carries what the evaluation needs. Nil means unknown.
type ReadinessInput struct {
	ProfileKey    string
	Mode          string
	MatchPercent  *float64
	LUFS          *float64
	LUFSInTarget  *bool
	CrestInTarget *bool
}

// ReadinessResult is a status plus human readable reasons.
type ReadinessResult struct {
	Status  Readiness `json:"status"`
	Label   string    `json:"label"`
	Reasons []string  `json:"reasons"`
}

// Evaluate grades a mix against the genre's thresholds.
func (c *Catalog) Evaluate(in ReadinessInput) ReadinessResult {
	profile := c.Profile(in.ProfileKey)
	mode := "master"
	if in.Mode == "premaster" {
		mode = "premaster"
	}
	cfg := profile.Mode(mode)

	if in.MatchPercent == nil || math.IsNaN(*in.MatchPercent) {
		return result(ReadinessUnknown, "Match not available.")
	}
	match := *in.MatchPercent

	lufsOK := false
	if in.LUFS != nil && !math.IsNaN(*in.LUFS) && !math.IsInf(*in.LUFS, 0) {
		lufsOK = *in.LUFS >= cfg.LUFSMin && *in.LUFS <= cfg.LUFSMax
	}
	if in.LUFSInTarget != nil {
		lufsOK = *in.LUFSInTarget
	}
	crestOK := in.CrestInTarget != nil && *in.CrestInTarget

	switch {
	case match >= cfg.ReadyMatch && lufsOK && crestOK:
		return result(ReadinessReady,
			fmt.Sprintf("Match %.1f%% above the READY threshold (%.0f%%).", match, cfg.ReadyMatch),
			fmt.Sprintf("LUFS in range for %s (%s).", profile.Label, mode),
			"Crest factor on target.",
		)
	case match >= cfg.OKMatch && (lufsOK || crestOK):
		reasons := []string{fmt.Sprintf("Match %.1f%% above the ALMOST threshold (%.0f%%).", match, cfg.OKMatch)}
		if lufsOK {
			reasons = append(reasons, "LUFS already in range, small touches on dynamics and tonal balance.")
		} else {
			reasons = append(reasons, "Good match, but LUFS outside the range recommended for the genre.")
		}
		if !crestOK {
			reasons = append(reasons, "Crest off target, work on mix and limiting.")
		}
		return result(ReadinessAlmost, reasons...)
	case match >= cfg.OKMatch-15:
		return result(ReadinessWork,
			fmt.Sprintf("Moderate match (%.1f%%), good base but not yet consistent with the profile.", match),
			"Tonal balance, loudness and dynamics need work.",
		)
	default:
		return result(ReadinessEarly,
			fmt.Sprintf("Low match (%.1f%%), track still far from the %s profile.", match, profile.Label),
			"Use bands and targeted fixes to rebalance the mix toward the references.",
		)
	}
}

func result(status Readiness, reasons ...string) ReadinessResult {
	return ReadinessResult{Status: status, Label: ReadinessLabel(status), Reasons: reasons}
}

// ReadinessLabel is the badge text for a status.
func ReadinessLabel(s Readiness) string {
	switch s {
	case ReadinessReady:
		return "TEKKIN READY"
	case ReadinessAlmost:
		return "ALMOST"
	case ReadinessWork:
		return "WORK IN PROGRESS"
	case ReadinessEarly:
		return "EARLY"
	default:
		return "UNKNOWN"
	}
}
