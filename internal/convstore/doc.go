// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package convstore keeps a local mirror of conversations as JSON files.
//
// The backend owns the canonical conversation records; the mirror exists so
// listing, search and export work offline and survive backend outages. One
// file per conversation, written atomically.
package convstore
