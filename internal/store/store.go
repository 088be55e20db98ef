// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

// =============================================================================
// TIER INTERFACE
// =============================================================================

// Tier is a flat key-value storage tier. The session tier is fast and
// ephemeral; the local tier is durable and survives restarts.
type Tier interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) ([]byte, bool, error)

	// Put stores a value under a key, replacing any previous value.
	Put(key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases tier resources.
	Close() error
}

// =============================================================================
// COMPOSITE KEYS
// =============================================================================

// Storage keys mirror the browser-state layout: a per-(client, conversation)
// message log, a global action marker, and global plus per-client selection
// keys.
const (
	actionMarkerKey    = "quick_action_in_progress"
	globalSelectionKey = "selected_documents"
)

// MessageLogKey returns the composite key for a conversation's message log.
func MessageLogKey(clientID, conversationID string) string {
	return "messages:" + clientID + ":" + conversationID
}

// ActionMarkerKey returns the global quick-action marker key.
func ActionMarkerKey() string {
	return actionMarkerKey
}

// SelectionKey returns the global document-selection key.
func SelectionKey() string {
	return globalSelectionKey
}

// ClientSelectionKey returns the per-client document-selection key.
func ClientSelectionKey(clientID string) string {
	return globalSelectionKey + ":" + clientID
}
