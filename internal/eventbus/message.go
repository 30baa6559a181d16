/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus distributes events between Tekkin instances over Redis
// pub/sub or NATS, keeping an in-process bus for local delivery.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/tekkin/internal/events"
)

// wireMessage is the envelope published on the wire.
type wireMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(wireMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalMessage(data []byte) (*wireMessage, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	return &msg, nil
}

// NodeID returns id when set, otherwise hostname plus a random suffix.
func NodeID(id string) string {
	if id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "tekkin"
	}
	return host + "-" + uuid.NewString()[:8]
}

// subscriberSet tracks local subscribers per event type.
type subscriberSet struct {
	mu   sync.RWMutex
	subs map[events.EventType][]events.Subscriber
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[events.EventType][]events.Subscriber)}
}

// add registers a new subscriber and reports whether it is the first one.
func (s *subscriberSet) add(eventType events.EventType) (events.Subscriber, bool) {
	sub := make(events.Subscriber, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.subs[eventType]) == 0
	s.subs[eventType] = append(s.subs[eventType], sub)
	return sub, first
}

// remove drops and closes a subscriber and reports whether none are left.
func (s *subscriberSet) remove(eventType events.EventType, sub events.Subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			s.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	return len(s.subs[eventType]) == 0
}

func (s *subscriberSet) deliver(eventType events.EventType, payload events.Payload) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return events.Deliver(s.subs[eventType], payload)
}
