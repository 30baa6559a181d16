/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/models"
)

// List limits.
const (
	DefaultListLimit = 30
	MaxListLimit     = 50
)

// Service persists in-app notifications and announces changes on the bus.
type Service struct {
	db     *gorm.DB
	bus    events.Broker
	logger zerolog.Logger
}

// NewService creates a new notification service.
func NewService(db *gorm.DB, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "notifications").Logger(),
	}
}

// Notification is the input of Notify.
type Notification struct {
	UserID string
	Type   models.NotificationType
	Title  string
	Body   string
	Href   string
	Data   map[string]any
}

// Notify inserts a notification and publishes notification.created.
func (s *Service) Notify(ctx context.Context, n Notification) (*models.Notification, error) {
	if n.UserID == "" || n.Type == "" {
		return nil, fmt.Errorf("notify: %w", models.ErrInvalidInput)
	}

	row := &models.Notification{
		UserID: n.UserID,
		Type:   n.Type,
		Title:  n.Title,
		Body:   n.Body,
		Href:   n.Href,
		Data:   n.Data,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	s.bus.Publish(events.EventNotificationCreated, events.Payload{
		"user_id": row.UserID,
		"id":      row.ID,
		"type":    string(row.Type),
	})
	s.logger.Debug().Str("user_id", row.UserID).Str("type", string(row.Type)).Msg("notification created")
	return row, nil
}

// ClampLimit applies the list bounds.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

// List returns the newest notifications of a user.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var rows []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(ClampLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return rows, nil
}

// UnreadCount counts unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read. Marking an
// already read notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("find notification: %w", err)
	}
	if count == 0 {
		return models.ErrNotFound
	}

	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	s.bus.Publish(events.EventNotificationRead, events.Payload{"user_id": userID})
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	s.bus.Publish(events.EventNotificationRead, events.Payload{"user_id": userID})
	return nil
}
