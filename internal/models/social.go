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

// TrackLike records one user liking one version.
type TrackLike struct {
	VersionID string    `gorm:"type:varchar(36);primaryKey" json:"version_id"`
	UserID    string    `gorm:"type:varchar(36);primaryKey;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TrackPlay records an anonymous or authenticated play.
type TrackPlay struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	VersionID string    `gorm:"type:varchar(36);index;not null" json:"version_id"`
	VisitorID string    `gorm:"type:varchar(64);index" json:"visitor_id"`
	UserID    *string   `gorm:"type:varchar(36)" json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns an id when missing.
func (p *TrackPlay) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// NotificationType names a notification category.
type NotificationType string

const (
	NotificationSignalReceived NotificationType = "signal_received"
	NotificationSignalAccepted NotificationType = "signal_accepted"
	NotificationSignalRejected NotificationType = "signal_rejected"
	NotificationSignalMessage  NotificationType = "signal_message"
	NotificationTrackLiked     NotificationType = "track_liked"
	NotificationAnalysisReady  NotificationType = "analysis_ready"
)

// Notification is an in-app message for a single user.
type Notification struct {
	ID        string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string           `gorm:"type:varchar(36);index:idx_notifications_user_created;not null" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(64);not null" json:"type"`
	Title     string           `gorm:"type:varchar(255)" json:"title"`
	Body      string           `gorm:"type:text" json:"body,omitempty"`
	Href      string           `gorm:"type:text" json:"href,omitempty"`
	Data      map[string]any   `gorm:"type:text;serializer:json" json:"data,omitempty"`
	ReadAt    *time.Time       `gorm:"index" json:"read_at"`
	CreatedAt time.Time        `gorm:"index:idx_notifications_user_created" json:"created_at"`
}

// BeforeCreate assigns an id when missing.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
