/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleName enumerates the RBAC roles.
type RoleName string

const (
	RoleAdmin  RoleName = "admin"
	RoleArtist RoleName = "artist"
)

// Profile is an authenticated artist account.
type Profile struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255)" json:"-"`
	ArtistName   string    `gorm:"type:varchar(255)" json:"artist_name"`
	AvatarURL    string    `gorm:"type:text" json:"avatar_url,omitempty"`
	Genre        string    `gorm:"type:varchar(64)" json:"genre,omitempty"`
	Roles        string    `gorm:"type:varchar(255)" json:"-"` // comma separated
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id when missing.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// RoleList splits the stored role string.
func (p *Profile) RoleList() []string {
	if p == nil || p.Roles == "" {
		return []string{string(RoleArtist)}
	}
	var out []string
	for _, r := range strings.Split(p.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// PublicProfile is the subset of a profile revealed to other artists.
type PublicProfile struct {
	ID         string `json:"id"`
	ArtistName string `json:"artist_name"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	Genre      string `json:"genre,omitempty"`
}

// Public strips private fields.
func (p *Profile) Public() PublicProfile {
	return PublicProfile{ID: p.ID, ArtistName: p.ArtistName, AvatarURL: p.AvatarURL, Genre: p.Genre}
}
