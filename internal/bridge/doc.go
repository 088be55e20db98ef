// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bridge keeps the backend's conversation records in step with the
// local transcript.
//
// Writes are best-effort: the conversation keeps working when the backend
// is down, and failures are logged rather than surfaced mid-chat. The
// search index gets its own debounce so render-driven sync calls do not
// rewrite an unchanged index entry.
package bridge
