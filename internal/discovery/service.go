/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package discovery implements anonymized collab and promo requests
// between artists. A receiver never learns who sent a request until
// accepting it.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/tekkin/internal/models"
	"github.com/friendsincode/tekkin/internal/notifications"
	"github.com/friendsincode/tekkin/internal/storage"
)

// Actions accepted by Respond.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// Service implements the discovery workflow.
type Service struct {
	db       *gorm.DB
	urls     *storage.URLCache
	notifier *notifications.Service
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a discovery service.
func NewService(db *gorm.DB, urls *storage.URLCache, notifier *notifications.Service, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		urls:     urls,
		notifier: notifier,
		logger:   logger.With().Str("component", "discovery").Logger(),
		now:      time.Now,
	}
}

func (s *Service) notify(ctx context.Context, n notifications.Notification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn().Err(err).Str("user_id", n.UserID).Str("type", string(n.Type)).Msg("discovery notification failed")
	}
}

// RequestInput is a new collab or promo request.
type RequestInput struct {
	ReceiverID string
	ProjectID  string
	TrackID    string
	Kind       string
	Message    string
}

// Request sends a request from senderID about one of the sender's projects.
func (s *Service) Request(ctx context.Context, senderID string, in RequestInput) (*models.DiscoveryRequest, error) {
	if in.ReceiverID == "" || in.ProjectID == "" || in.Kind == "" {
		return nil, fmt.Errorf("%w: receiver_id, project_id and kind are required", models.ErrInvalidInput)
	}
	if in.Kind != models.DiscoveryKindCollab && in.Kind != models.DiscoveryKindPromo {
		return nil, fmt.Errorf("%w: kind must be collab or promo", models.ErrInvalidInput)
	}
	if in.ReceiverID == senderID {
		return nil, fmt.Errorf("%w: cannot send a request to yourself", models.ErrInvalidInput)
	}

	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", in.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if project.UserID != senderID {
		return nil, models.ErrForbidden
	}

	req := models.DiscoveryRequest{
		SenderID:   senderID,
		ReceiverID: in.ReceiverID,
		ProjectID:  in.ProjectID,
		Kind:       in.Kind,
		Message:    strings.TrimSpace(in.Message),
		Status:     models.DiscoveryPending,
	}
	if in.TrackID != "" {
		req.TrackID = &in.TrackID
	}
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.notify(ctx, notifications.Notification{
		UserID: in.ReceiverID,
		Type:   models.NotificationSignalReceived,
		Title:  "New signal",
		Body:   "You received a new " + in.Kind + " request.",
		Href:   "/discovery/inbox",
		Data:   map[string]any{"request_id": req.ID, "kind": req.Kind},
	})
	return &req, nil
}

// RespondResult is the outcome of Respond.
type RespondResult struct {
	RequestID string                `json:"request_id"`
	Status    string                `json:"status"`
	Kind      string                `json:"kind"`
	Already   bool                  `json:"already,omitempty"`
	Sender    *models.PublicProfile `json:"sender,omitempty"`
}

// Respond accepts or rejects a pending request addressed to receiverID.
// Accepting reveals the sender.
func (s *Service) Respond(ctx context.Context, receiverID, requestID, action string) (*RespondResult, error) {
	if requestID == "" || (action != ActionAccept && action != ActionReject) {
		return nil, fmt.Errorf("%w: invalid parameters", models.ErrInvalidInput)
	}

	var req models.DiscoveryRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if req.ReceiverID != receiverID {
		return nil, models.ErrForbidden
	}
	if req.Status != models.DiscoveryPending {
		return &RespondResult{RequestID: req.ID, Status: req.Status, Kind: req.Kind, Already: true}, nil
	}

	next := models.DiscoveryRejected
	updates := map[string]any{"status": next, "updated_at": s.now()}
	if action == ActionAccept {
		next = models.DiscoveryAccepted
		updates["status"] = next
		updates["revealed_at"] = s.now().UTC()
	}

	res := s.db.WithContext(ctx).Model(&models.DiscoveryRequest{}).
		Where("id = ? AND status = ?", req.ID, models.DiscoveryPending).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost a race with a concurrent response.
		var current models.DiscoveryRequest
		if err := s.db.WithContext(ctx).First(&current, "id = ?", req.ID).Error; err != nil {
			return nil, err
		}
		return &RespondResult{RequestID: current.ID, Status: current.Status, Kind: current.Kind, Already: true}, nil
	}

	out := &RespondResult{RequestID: req.ID, Status: next, Kind: req.Kind}
	if next == models.DiscoveryAccepted {
		var sender models.Profile
		err := s.db.WithContext(ctx).First(&sender, "id = ?", req.SenderID).Error
		switch {
		case err == nil:
			pub := sender.Public()
			out.Sender = &pub
		case !errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.Warn().Err(err).Str("sender_id", req.SenderID).Msg("sender profile lookup failed")
		}
	}

	n := notifications.Notification{
		UserID: req.SenderID,
		Type:   models.NotificationSignalRejected,
		Title:  "Signal rejected",
		Body:   "Your signal was rejected.",
		Href:   "/artist/projects/signal-report?project_id=" + req.ProjectID,
		Data:   map[string]any{"request_id": req.ID, "project_id": req.ProjectID, "status": next},
	}
	if next == models.DiscoveryAccepted {
		n.Type = models.NotificationSignalAccepted
		n.Title = "Signal accepted"
		n.Body = "Your signal was accepted."
	}
	s.notify(ctx, n)
	return out, nil
}

// PostMessage appends a message to a request thread. Only the sender and
// the receiver may post.
func (s *Service) PostMessage(ctx context.Context, userID, requestID, message string) (*models.DiscoveryMessage, error) {
	message = strings.TrimSpace(message)
	if requestID == "" || message == "" {
		return nil, fmt.Errorf("%w: request_id and message are required", models.ErrInvalidInput)
	}
	var req models.DiscoveryRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if userID != req.SenderID && userID != req.ReceiverID {
		return nil, models.ErrForbidden
	}

	msg := models.DiscoveryMessage{RequestID: req.ID, SenderID: userID, Message: message}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	other := req.ReceiverID
	if userID == req.ReceiverID {
		other = req.SenderID
	}
	s.notify(ctx, notifications.Notification{
		UserID: other,
		Type:   models.NotificationSignalMessage,
		Title:  "New message",
		Body:   message,
		Data:   map[string]any{"request_id": req.ID},
	})
	return &msg, nil
}
