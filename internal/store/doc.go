// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the persisted client state: an ephemeral session
// tier and a durable SQLite-backed local tier, addressed through one
// key-value interface. Message logs, the quick-action marker and document
// selections all live here under composite keys.
package store
