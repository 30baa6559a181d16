/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects one instance to run cluster-wide background jobs.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/telemetry"
)

const (
	defaultElectionKey     = "tekkin:leader:cron"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
)

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the lease only if we still own it.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Config configures the election.
type Config struct {
	ElectionKey     string
	LeaseDuration   time.Duration
	RenewalInterval time.Duration
	InstanceID      string
}

// Election is a Redis lease held by at most one instance at a time.
type Election struct {
	client     *redis.Client
	logger     zerolog.Logger
	config     Config
	instanceID string

	isLeader atomic.Bool
	leaderCh chan bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewElection creates an election on an existing Redis client.
func NewElection(client *redis.Client, cfg Config, logger zerolog.Logger) *Election {
	if cfg.ElectionKey == "" {
		cfg.ElectionKey = defaultElectionKey
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = defaultLeaseDuration
	}
	if cfg.RenewalInterval <= 0 || cfg.RenewalInterval >= cfg.LeaseDuration {
		cfg.RenewalInterval = cfg.LeaseDuration / 3
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	return &Election{
		client:     client,
		logger:     logger.With().Str("component", "leader_election").Str("instance_id", cfg.InstanceID).Logger(),
		config:     cfg,
		instanceID: cfg.InstanceID,
		leaderCh:   make(chan bool, 1),
	}
}

// Start campaigns in the background until ctx is cancelled or Stop is called.
func (e *Election) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	e.logger.Info().Dur("lease", e.config.LeaseDuration).Msg("starting leader election")
	go e.campaign(ctx)
}

// Stop ends the campaign and releases the lease if held.
func (e *Election) Stop(ctx context.Context) {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	if e.isLeader.Load() {
		if err := releaseScript.Run(ctx, e.client, []string{e.config.ElectionKey}, e.instanceID).Err(); err != nil {
			e.logger.Error().Err(err).Msg("failed to release leadership lock")
		} else {
			e.logger.Info().Msg("released leadership lock")
		}
		e.setLeader(false)
	}
}

// IsLeader reports whether this instance currently holds the lease.
func (e *Election) IsLeader() bool {
	return e.isLeader.Load()
}

// LeaderCh receives leadership transitions. Transitions are dropped when
// nobody reads.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

// Leader returns the instance id holding the lease, or "" when none does.
func (e *Election) Leader(ctx context.Context) (string, error) {
	id, err := e.client.Get(ctx, e.config.ElectionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return id, nil
}

func (e *Election) campaign(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.config.RenewalInterval)
	defer ticker.Stop()

	e.attempt(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.attempt(ctx)
		}
	}
}

func (e *Election) attempt(ctx context.Context) {
	held, err := e.acquire(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error().Err(err).Msg("leader election attempt failed")
		}
		e.setLeader(false)
		return
	}
	e.setLeader(held)
}

// acquire takes the lock when free, or renews it when we own it.
func (e *Election) acquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.config.ElectionKey, e.instanceID, e.config.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lock: %w", err)
	}
	if ok {
		return true, nil
	}
	renewed, err := renewScript.Run(ctx, e.client, []string{e.config.ElectionKey},
		e.instanceID, e.config.LeaseDuration.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	return renewed == 1, nil
}

func (e *Election) setLeader(leader bool) {
	if e.isLeader.Swap(leader) == leader {
		return
	}
	if leader {
		e.logger.Info().Msg("acquired leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(e.instanceID).Set(1)
		telemetry.LeaderElectionChanges.WithLabelValues(e.instanceID, "acquired").Inc()
	} else {
		e.logger.Warn().Msg("lost leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(e.instanceID).Set(0)
		telemetry.LeaderElectionChanges.WithLabelValues(e.instanceID, "lost").Inc()
	}
	select {
	case e.leaderCh <- leader:
	default:
	}
}
