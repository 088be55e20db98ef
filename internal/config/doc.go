// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads client configuration from TOML with environment
// overrides.
//
// Load order: defaults, then the TOML file when present, then environment
// variables. Out-of-range values are clamped rather than rejected, so a bad
// edit degrades to safe behavior instead of refusing to start. A Watcher
// reloads the file on change with a debounce.
package config
