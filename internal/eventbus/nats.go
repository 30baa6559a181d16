/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/events"
)

const natsSubjectPrefix = "tekkin.events."

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "tekkin",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus fans events out over core NATS subjects.
type NATSBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
	nodeID string
	local  *subscriberSet

	mu   sync.Mutex
	subs map[events.EventType]*nats.Subscription
}

var _ events.Broker = (*NATSBus)(nil)

// NewNATSBus connects to NATS. A failed connection keeps delivery local.
func NewNATSBus(cfg NATSConfig, nodeID string, logger zerolog.Logger) *NATSBus {
	logger = logger.With().Str("component", "eventbus").Str("backend", "nats").Logger()
	nb := &NATSBus{
		logger: logger,
		nodeID: NodeID(nodeID),
		local:  newSubscriberSet(),
		subs:   make(map[events.EventType]*nats.Subscription),
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS connection failed, events stay local")
		return nb
	}

	nb.conn = conn
	logger.Info().Str("url", conn.ConnectedUrl()).Str("node_id", nb.nodeID).Msg("NATS event bus initialized")
	return nb
}

// Subscribe registers a local subscriber and subscribes the subject once.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub, first := nb.local.add(eventType)
	if !first || nb.conn == nil {
		return sub
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()
	if _, ok := nb.subs[eventType]; ok {
		return sub
	}
	ns, err := nb.conn.Subscribe(natsSubjectPrefix+string(eventType), func(msg *nats.Msg) {
		wire, err := unmarshalMessage(msg.Data)
		if err != nil {
			nb.logger.Error().Err(err).Msg("failed to decode NATS event")
			return
		}
		if wire.NodeID == nb.nodeID {
			return
		}
		nb.local.deliver(eventType, wire.Payload)
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("NATS subscribe failed")
		return sub
	}
	nb.subs[eventType] = ns
	return sub
}

// Publish delivers locally and to every other node.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.deliver(eventType, payload)
	if nb.conn == nil || nb.conn.IsClosed() {
		return
	}

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to encode event")
		return
	}
	if err := nb.conn.Publish(natsSubjectPrefix+string(eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
	}
}

// Unsubscribe removes a subscriber and drops the subject when it was the last.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	if empty := nb.local.remove(eventType, sub); !empty {
		return
	}
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if ns, ok := nb.subs[eventType]; ok {
		if err := ns.Unsubscribe(); err != nil {
			nb.logger.Debug().Err(err).Msg("NATS unsubscribe failed")
		}
		delete(nb.subs, eventType)
	}
}

// Close drains the connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	return nb.conn.Drain()
}
