// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatlog maintains the in-memory transcript for one conversation.
//
// The log is the single source of truth for what the caller renders. All
// mutation goes through id-based upsert so a message can be updated in place
// without disturbing transcript order, and placeholder messages are swapped
// for their real content under the same rule. Every mutation is mirrored to
// the two-tier state store in the background; persistence failures are logged
// and never surface to the caller.
package chatlog
