// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONVERSATION IDENTITY
// =============================================================================

const (
	// PendingConversationID marks a conversation that has not yet been
	// assigned a durable id by the backend.
	PendingConversationID = "pending"

	// LocalConversationPrefix marks a locally generated fallback id used
	// when the backend could not be reached to create the conversation.
	LocalConversationPrefix = "local_"
)

// IsPendingConversationID reports whether an id is a local placeholder that
// still needs to be migrated to a backend-assigned id.
func IsPendingConversationID(id string) bool {
	return id == "" || id == PendingConversationID ||
		strings.HasPrefix(id, LocalConversationPrefix)
}

// IsLocalConversationID reports whether an id is a locally generated
// fallback that has no backend record behind it.
func IsLocalConversationID(id string) bool {
	return strings.HasPrefix(id, LocalConversationPrefix)
}

// NewLocalConversationID generates a fallback conversation id with the
// distinguishing local prefix.
func NewLocalConversationID() string {
	return LocalConversationPrefix + uuid.NewString()
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Status represents the lifecycle state of a conversation record.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// Conversation is the remote conversation record tied to a client.
type Conversation struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// TITLE AND SUMMARY DERIVATION
// =============================================================================

// titleMaxLen caps derived conversation titles.
const titleMaxLen = 50

// summaryMaxLen caps the rolling conversation summary.
const summaryMaxLen = 255

// summaryTailMessages is how many trailing messages feed the rolling summary.
const summaryTailMessages = 3

// summaryPerMessageLen caps each message's contribution to the summary.
const summaryPerMessageLen = 80

// DeriveTitle builds a conversation title from the first user message,
// truncated to 50 characters.
func DeriveTitle(messages []Message) string {
	for _, msg := range messages {
		if msg.Role == RoleUser && msg.Content != "" {
			return truncateRunes(flattenWhitespace(msg.Content), titleMaxLen)
		}
	}
	return "New conversation"
}

// RollingSummary builds a short summary from the last few messages, each
// truncated, concatenated, and capped at 255 characters overall.
func RollingSummary(messages []Message) string {
	start := len(messages) - summaryTailMessages
	if start < 0 {
		start = 0
	}

	var parts []string
	for _, msg := range messages[start:] {
		if msg.IsPlaceholder || msg.Content == "" {
			continue
		}
		part := msg.Role.DisplayName() + ": " +
			truncateRunes(flattenWhitespace(msg.Content), summaryPerMessageLen)
		parts = append(parts, part)
	}

	return truncateRunes(strings.Join(parts, " | "), summaryMaxLen)
}
