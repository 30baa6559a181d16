/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/events"
)

const redisChannelPrefix = "tekkin:events:"

// RedisBus fans events out over Redis pub/sub. Publishing always delivers
// locally first; messages from this node are not delivered twice.
type RedisBus struct {
	client *redis.Client
	logger zerolog.Logger
	nodeID string
	local  *subscriberSet

	mu          sync.Mutex
	channels    map[events.EventType]*redis.PubSub
	useFallback bool
	failCount   int
	maxFails    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ events.Broker = (*RedisBus)(nil)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFailures  int
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxFailures:  5,
	}
}

// NewRedisBus connects to Redis. When Redis is unreachable the bus runs
// local-only so a single instance keeps working.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) *RedisBus {
	logger = logger.With().Str("component", "eventbus").Str("backend", "redis").Logger()
	ctx, cancel := context.WithCancel(context.Background())

	rb := &RedisBus{
		logger:   logger,
		nodeID:   NodeID(nodeID),
		local:    newSubscriberSet(),
		channels: make(map[events.EventType]*redis.PubSub),
		maxFails: cfg.MaxFailures,
		ctx:      ctx,
		cancel:   cancel,
	}
	if rb.maxFails <= 0 {
		rb.maxFails = 5
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis connection failed, events stay local")
		client.Close()
		rb.useFallback = true
		return rb
	}

	rb.client = client
	logger.Info().Str("addr", cfg.Addr).Str("node_id", rb.nodeID).Msg("Redis event bus initialized")
	return rb
}

// Subscribe registers a local subscriber and joins the Redis channel once.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub, first := rb.local.add(eventType)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if first && !rb.useFallback {
		if _, exists := rb.channels[eventType]; !exists {
			pubsub := rb.client.Subscribe(rb.ctx, redisChannelPrefix+string(eventType))
			rb.channels[eventType] = pubsub
			rb.wg.Add(1)
			go rb.receive(eventType, pubsub)
		}
	}
	return sub
}

func (rb *RedisBus) receive(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()
	ch := pubsub.Channel()

	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			wire, err := unmarshalMessage([]byte(msg.Payload))
			if err != nil {
				rb.logger.Error().Err(err).Msg("failed to decode Redis event")
				continue
			}
			if wire.NodeID == rb.nodeID {
				continue
			}
			if dropped := rb.local.deliver(eventType, wire.Payload); dropped > 0 {
				rb.logger.Warn().Str("event_type", string(eventType)).Int("dropped", dropped).Msg("subscriber channel full, dropping event")
			}
		}
	}
}

// Publish delivers locally and to every other node.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.deliver(eventType, payload)

	rb.mu.Lock()
	fallback := rb.useFallback
	rb.mu.Unlock()
	if fallback {
		return
	}

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Publish(ctx, redisChannelPrefix+string(eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Unsubscribe removes a subscriber and leaves the channel when it was the last.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	if empty := rb.local.remove(eventType, sub); !empty {
		return
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if pubsub, ok := rb.channels[eventType]; ok {
		pubsub.Close()
		delete(rb.channels, eventType)
	}
}

// handleFailure switches to local-only delivery after repeated failures.
func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.useFallback {
		rb.logger.Warn().Int("fail_count", rb.failCount).Msg("Redis failure threshold reached, events stay local")
		rb.useFallback = true
	}
}

// Close stops receivers and closes the client.
func (rb *RedisBus) Close() error {
	rb.cancel()

	rb.mu.Lock()
	for eventType, pubsub := range rb.channels {
		pubsub.Close()
		delete(rb.channels, eventType)
	}
	rb.mu.Unlock()
	rb.wg.Wait()

	if rb.client != nil {
		if err := rb.client.Close(); err != nil {
			rb.logger.Error().Err(err).Msg("failed to close Redis client")
			return err
		}
	}
	return nil
}
