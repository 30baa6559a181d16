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

// Artist access values granted by invite codes.
const (
	AccessPlanPro      = "pro"
	AccessStatusActive = "active"
	AccessSourceInvite = "invite"
)

// InviteCode grants artist access until it runs out of uses or expires.
type InviteCode struct {
	Code      string     `gorm:"type:varchar(64);primaryKey" json:"code"`
	MaxUses   int        `gorm:"not null;default:1" json:"max_uses"`
	UsedCount int        `gorm:"not null;default:0" json:"used_count"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// InviteRedemption records one user redeeming one code.
type InviteRedemption struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(64);uniqueIndex:idx_invite_redemption;not null" json:"code"`
	UserID    string    `gorm:"type:varchar(36);uniqueIndex:idx_invite_redemption;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns an id when missing.
func (r *InviteRedemption) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ArtistAccess is the plan a user holds on the artist side.
type ArtistAccess struct {
	UserID       string    `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	Plan         string    `gorm:"type:varchar(32);not null" json:"plan"`
	AccessStatus string    `gorm:"type:varchar(32);not null" json:"access_status"`
	Source       string    `gorm:"type:varchar(32)" json:"source,omitempty"`
	InviteCode   string    `gorm:"type:varchar(64)" json:"invite_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
