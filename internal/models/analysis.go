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

// AnalysisStatus is the lifecycle state of an analysis job.
type AnalysisStatus string

const (
	AnalysisPending AnalysisStatus = "pending"
	AnalysisRunning AnalysisStatus = "running"
	AnalysisDone    AnalysisStatus = "done"
	AnalysisFailed  AnalysisStatus = "failed"
)

// AnalysisJob queues an asynchronous analyzer run for a version.
type AnalysisJob struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	VersionID   string         `gorm:"type:varchar(36);index;not null" json:"version_id"`
	RequestedBy string         `gorm:"type:varchar(36)" json:"requested_by"`
	Status      AnalysisStatus `gorm:"type:varchar(16);index;default:pending" json:"status"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	Attempts    int            `gorm:"default:0" json:"attempts"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// BeforeCreate assigns an id when missing.
func (j *AnalysisJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = AnalysisPending
	}
	return nil
}
