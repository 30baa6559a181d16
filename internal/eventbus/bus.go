/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/config"
	"github.com/friendsincode/tekkin/internal/events"
)

// New returns the broker selected by configuration.
func New(cfg *config.Config, logger zerolog.Logger) events.Broker {
	switch cfg.EventBus {
	case config.EventBusRedis:
		rc := DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		return NewRedisBus(rc, cfg.InstanceID, logger)
	case config.EventBusNATS:
		nc := DefaultNATSConfig()
		nc.URL = cfg.NATSURL
		return NewNATSBus(nc, cfg.InstanceID, logger)
	default:
		return events.NewBus()
	}
}
