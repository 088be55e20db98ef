// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the structured logger used across the core.
//
// Persistence and sync failures in this codebase are deliberately best-effort:
// they are logged here and never surfaced to callers as blocking errors.
package logging

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.Mutex
	global = zerolog.New(io.Discard)
)

// Setup constructs the global logger from level and format configuration.
// Format is "json" or "console".
func Setup(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, err
	}

	var logger zerolog.Logger
	switch strings.ToLower(format) {
	case "json":
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	default:
		return zerolog.Logger{}, errors.New("unsupported log format: " + format)
	}

	mu.Lock()
	global = logger.Level(lvl)
	mu.Unlock()

	return For("core"), nil
}

// For returns a sub-logger tagged with the component name.
// Before Setup is called the logger discards everything, which keeps tests
// and library consumers quiet by default.
func For(component string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return global.With().Str("component", component).Logger()
}
