/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/tekkin/internal/auth"
	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/telemetry"
)

const (
	pingInterval = 25 * time.Second
	writeTimeout = 5 * time.Second
	sendBuffer   = 8
)

// UnreadMessage is pushed to stream sessions.
type UnreadMessage struct {
	Type   string `json:"type"`
	Unread int64  `json:"unread"`
}

type session struct {
	userID string
	send   chan []byte
}

// Hub fans unread-count updates out to the websocket sessions of each user.
type Hub struct {
	svc     *Service
	bus     events.Broker
	origins []string
	logger  zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]map[*session]struct{}
}

// NewHub creates a realtime hub. allowedOrigins are the web origins allowed
// to open a stream from another host, in the same form as the CORS list.
// Same-origin requests are always accepted.
func NewHub(svc *Service, bus events.Broker, allowedOrigins []string, logger zerolog.Logger) *Hub {
	return &Hub{
		svc:      svc,
		bus:      bus,
		origins:  OriginPatterns(allowedOrigins),
		logger:   logger.With().Str("component", "realtime").Logger(),
		sessions: make(map[string]map[*session]struct{}),
	}
}

// OriginPatterns turns CORS origins such as "https://app.tekkin.it" into
// the host patterns the websocket handshake matches against.
func OriginPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		out = append(out, o)
	}
	return out
}

// Run listens for notification events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	created := h.bus.Subscribe(events.EventNotificationCreated)
	read := h.bus.Subscribe(events.EventNotificationRead)
	defer func() {
		h.bus.Unsubscribe(events.EventNotificationCreated, created)
		h.bus.Unsubscribe(events.EventNotificationRead, read)
	}()

	h.logger.Info().Msg("realtime hub started")
	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("realtime hub stopped")
			return
		case p, ok := <-created:
			if !ok {
				return
			}
			h.refresh(ctx, p.String("user_id"))
		case p, ok := <-read:
			if !ok {
				return
			}
			h.refresh(ctx, p.String("user_id"))
		}
	}
}

// SessionCount reports the open sessions of a user.
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[s.userID]
	if !ok {
		set = make(map[*session]struct{})
		h.sessions[s.userID] = set
	}
	set[s] = struct{}{}
	telemetry.RealtimeSessions.Inc()
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.sessions[s.userID]; ok {
		if _, ok := set[s]; ok {
			delete(set, s)
			telemetry.RealtimeSessions.Dec()
		}
		if len(set) == 0 {
			delete(h.sessions, s.userID)
		}
	}
}

// refresh recounts the unread total of a user and pushes it to every session.
func (h *Hub) refresh(ctx context.Context, userID string) {
	if userID == "" || h.SessionCount(userID) == 0 {
		return
	}
	unread, err := h.svc.UnreadCount(ctx, userID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("unread count failed")
		return
	}
	h.push(userID, unread)
}

func (h *Hub) push(userID string, unread int64) {
	data, _ := json.Marshal(UnreadMessage{Type: "unread", Unread: unread})

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions[userID] {
		select {
		case s.send <- data:
		default:
			h.logger.Debug().Str("user_id", userID).Msg("session buffer full, dropping update")
		}
	}
}

// ServeHTTP upgrades an authenticated request to the notification stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn().Err(err).Str("origin", r.Header.Get("Origin")).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	ctx := conn.CloseRead(r.Context())
	s := &session{userID: userID, send: make(chan []byte, sendBuffer)}
	h.register(s)
	defer h.unregister(s)

	if unread, err := h.svc.UnreadCount(ctx, userID); err == nil {
		data, _ := json.Marshal(UnreadMessage{Type: "unread", Unread: unread})
		s.send <- data
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.logger.Debug().Err(err).Str("user_id", userID).Msg("websocket ping failed")
				return
			}
		case data := <-s.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, ws.MessageText, data)
			cancel()
			if err != nil {
				h.logger.Debug().Err(err).Str("user_id", userID).Msg("websocket write failed")
				return
			}
		}
	}
}
