// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package action runs quick actions as single-flight operations.
//
// A Coordinator owns the persisted in-progress marker, so a reload can
// recognize an action that was running before it, and stale markers from
// abandoned sessions are cleared rather than blocking forever. A Runner
// drives one action through its state machine and hands the raw result to
// the normalizer. A NavigationGuard lets the embedding surface refuse
// navigation while an action is running.
package action
