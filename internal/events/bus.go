/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	// Realtime
	EventNotificationCreated EventType = "notification.created"
	EventNotificationRead    EventType = "notification.read"

	// Analyzer
	EventAnalysisQueued    EventType = "analysis.queued"
	EventAnalysisCompleted EventType = "analysis.completed"
	EventAnalysisFailed    EventType = "analysis.failed"

	// Cache invalidation
	EventVersionUpdated     EventType = "cache.version_updated"
	EventVersionDeleted     EventType = "cache.version_deleted"
	EventProjectDeleted     EventType = "cache.project_deleted"
	EventChartsRebuilt      EventType = "cache.charts_rebuilt"
	EventPlaylistsChanged   EventType = "cache.playlists_changed"
	EventArtistMetrics      EventType = "cache.artist_metrics"
	EventReferenceRefreshed EventType = "cache.reference_refreshed"
)

// Payload generic event payload.
type Payload map[string]any

// String returns a string field or "".
func (p Payload) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Subscriber receives event payloads.
type Subscriber chan Payload

// Broker is implemented by the in-process bus and the distributed buses.
type Broker interface {
	Subscribe(eventType EventType) Subscriber
	Publish(eventType EventType, payload Payload)
	Unsubscribe(eventType EventType, sub Subscriber)
	Close() error
}

// Bus implements a simple in-process pubsub. Slow subscribers drop events.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

var _ Broker = (*Bus)(nil)

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers without blocking. The read lock is
// held across the sends so Unsubscribe cannot close a channel mid-delivery.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	Deliver(b.subs[eventType], payload)
}

// Deliver hands payload to every subscriber that has room. Callers must
// keep the subscribers from being closed until it returns.
func Deliver(subs []Subscriber, payload Payload) int {
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
			dropped++
		}
	}
	return dropped
}

// Unsubscribe removes the subscriber and closes it.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close is a no-op for the in-process bus.
func (b *Bus) Close() error { return nil }
