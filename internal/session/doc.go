// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session wires the chat pieces into one conversation session.
//
// A Session owns the transcript, the document selection, the quick-action
// machinery and the persistence bridge for one (client, conversation) pair.
// Sends and quick actions follow the same transcript discipline: a
// placeholder goes in immediately, and it is always replaced by the real
// response, an error message, or a cancellation notice.
package session
