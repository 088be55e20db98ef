// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package selection tracks which client documents are selected for queries
// and quick actions.
//
// The selection is persisted synchronously on every change under both the
// shared key and the client-scoped key, with identical bytes, so either key
// restores the same selection after a reload.
package selection
