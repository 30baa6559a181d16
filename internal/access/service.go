/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package access grants artist plans through invite codes.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/tekkin/internal/models"
)

// Redemption failures. Each wraps models.ErrInvalidInput.
var (
	ErrUnknownCode     = fmt.Errorf("%w: invalid code", models.ErrInvalidInput)
	ErrCodeExpired     = fmt.Errorf("%w: code expired", models.ErrInvalidInput)
	ErrCodeExhausted   = fmt.Errorf("%w: code exhausted", models.ErrInvalidInput)
	ErrAlreadyRedeemed = fmt.Errorf("%w: code already redeemed", models.ErrInvalidInput)
)

// Service redeems and issues invite codes.
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates an access service.
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "access").Logger(),
		now:    time.Now,
	}
}

// NormalizeCode trims and upper-cases a code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem spends one use of code and grants userID the pro plan.
func (s *Service) Redeem(ctx context.Context, userID, code string) (*models.ArtistAccess, error) {
	code = NormalizeCode(code)
	if userID == "" || code == "" {
		return nil, fmt.Errorf("%w: missing code", models.ErrInvalidInput)
	}

	grant := models.ArtistAccess{
		UserID:       userID,
		Plan:         models.AccessPlanPro,
		AccessStatus: models.AccessStatusActive,
		Source:       models.AccessSourceInvite,
		InviteCode:   code,
	}
	now := s.now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite models.InviteCode
		if err := tx.First(&invite, "code = ?", code).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownCode
			}
			return err
		}
		if invite.ExpiresAt != nil && invite.ExpiresAt.Before(now) {
			return ErrCodeExpired
		}

		var seen int64
		if err := tx.Model(&models.InviteRedemption{}).
			Where("code = ? AND user_id = ?", code, userID).
			Count(&seen).Error; err != nil {
			return err
		}
		if seen > 0 {
			return ErrAlreadyRedeemed
		}

		// The guarded increment keeps concurrent redemptions within max_uses.
		res := tx.Model(&models.InviteCode{}).
			Where("code = ? AND used_count < max_uses", code).
			Update("used_count", gorm.Expr("used_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCodeExhausted
		}

		if err := tx.Create(&models.InviteRedemption{Code: code, UserID: userID}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"plan", "access_status", "source", "invite_code", "updated_at"}),
		}).Create(&grant).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("redeem invite: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("code", code).Msg("invite redeemed")
	return &grant, nil
}

// Status returns the access of userID, or ErrNotFound when none was granted.
func (s *Service) Status(ctx context.Context, userID string) (*models.ArtistAccess, error) {
	var acc models.ArtistAccess
	if err := s.db.WithContext(ctx).First(&acc, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load access: %w", err)
	}
	return &acc, nil
}

// CreateCode issues a new invite code. A zero ttl never expires.
func (s *Service) CreateCode(ctx context.Context, code string, maxUses int, ttl time.Duration) (*models.InviteCode, error) {
	code = NormalizeCode(code)
	if code == "" || maxUses < 1 {
		return nil, fmt.Errorf("%w: code and a positive max_uses are required", models.ErrInvalidInput)
	}
	invite := models.InviteCode{Code: code, MaxUses: maxUses}
	if ttl > 0 {
		exp := s.now().UTC().Add(ttl)
		invite.ExpiresAt = &exp
	}
	if err := s.db.WithContext(ctx).Create(&invite).Error; err != nil {
		return nil, fmt.Errorf("create invite code: %w", err)
	}
	return &invite, nil
}
