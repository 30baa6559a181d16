/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the log format and verbosity.
type Options struct {
	Environment string
	// Level overrides the environment default when it parses as a zerolog
	// level ("debug", "warn", ...).
	Level string
	Out   io.Writer
}

// Setup configures the process logger from the environment name and an
// optional level override.
func Setup(environment, level string) zerolog.Logger {
	return New(Options{Environment: environment, Level: level, Out: os.Stdout})
}

// SetupWithWriter is Setup writing to out with the environment default level.
func SetupWithWriter(environment string, out io.Writer) zerolog.Logger {
	return New(Options{Environment: environment, Out: out})
}

// New builds the logger and installs it as the zerolog global. Production
// emits JSON lines, anything else the console format.
func New(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if !strings.EqualFold(opts.Environment, "production") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).With().Timestamp().Str("service", "tekkin").Logger().Level(levelFor(opts))
	log.Logger = logger
	return logger
}

func levelFor(opts Options) zerolog.Level {
	if opts.Level != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil && lvl != zerolog.NoLevel {
			return lvl
		}
	}
	switch strings.ToLower(opts.Environment) {
	case "development", "dev":
		return zerolog.DebugLevel
	case "test":
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
