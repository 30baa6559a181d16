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

// Discovery request kinds.
const (
	DiscoveryKindCollab = "collab"
	DiscoveryKindPromo  = "promo"
)

// Discovery request statuses.
const (
	DiscoveryPending  = "pending"
	DiscoveryAccepted = "accepted"
	DiscoveryRejected = "rejected"
)

// DiscoveryTrack is a track an artist made available to discovery.
type DiscoveryTrack struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID    string    `gorm:"type:varchar(36);index" json:"project_id"`
	UserID       string    `gorm:"type:varchar(36);index" json:"user_id"`
	Genre        string    `gorm:"type:varchar(64);index" json:"genre,omitempty"`
	HasVocals    bool      `json:"has_vocals"`
	OverallScore *float64  `json:"overall_score"`
	AudioPath    string    `gorm:"type:text" json:"audio_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// BeforeCreate assigns an id when missing.
func (t *DiscoveryTrack) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// DiscoveryRequest is an anonymized collab or promo request. The sender
// stays hidden from the receiver until the request is accepted.
type DiscoveryRequest struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	SenderID   string     `gorm:"type:varchar(36);index;not null" json:"sender_id"`
	ReceiverID string     `gorm:"type:varchar(36);index;not null" json:"receiver_id"`
	ProjectID  string     `gorm:"type:varchar(36);index" json:"project_id"`
	TrackID    *string    `gorm:"type:varchar(36)" json:"track_id,omitempty"`
	Kind       string     `gorm:"type:varchar(16);not null" json:"kind"`
	Message    string     `gorm:"type:text" json:"message,omitempty"`
	Status     string     `gorm:"type:varchar(16);index;default:pending" json:"status"`
	RevealedAt *time.Time `json:"revealed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BeforeCreate assigns an id when missing.
func (r *DiscoveryRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// DiscoveryMessage is a message exchanged on a discovery request thread.
type DiscoveryMessage struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	RequestID string    `gorm:"type:varchar(36);index;not null" json:"request_id"`
	SenderID  string    `gorm:"type:varchar(36);not null" json:"sender_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns an id when missing.
func (m *DiscoveryMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// DiscoveryReport flags a project for moderation.
type DiscoveryReport struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ReporterID string    `gorm:"type:varchar(36);index" json:"reporter_id"`
	ProjectID  string    `gorm:"type:varchar(36);index" json:"project_id"`
	Reason     string    `gorm:"type:text" json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate assigns an id when missing.
func (r *DiscoveryReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
