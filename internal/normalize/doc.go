// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package normalize extracts a single markdown display string from the
// loosely-typed JSON results the quick-action endpoints return.
//
// Extraction is data-driven: each action has an ordered table of candidate
// field paths tried in turn, so a new backend shape is an added rule, not a
// rewrite. The normalizer never fails: when nothing matches it falls back to
// rendering every substantial text field, and as a last resort emits a
// diagnostic block so the failure is debuggable without crashing the caller.
package normalize
