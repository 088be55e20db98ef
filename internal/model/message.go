// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// A message log holds exactly one message per ID: adding a message whose ID
// already exists replaces the earlier one in place.
type Message struct {
	// Identity
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`

	// Content (markdown)
	Content string `json:"content"`

	// Metadata carries structured extras from the backend: token usage,
	// failed-document lists, extracted dates, timelines.
	Metadata map[string]any `json:"metadata,omitempty"`

	// IsPlaceholder marks a transient "thinking" message that is later
	// replaced by the real response or an error message.
	IsPlaceholder bool `json:"is_placeholder,omitempty"`

	// IsError marks a message that carries a user-visible failure notice.
	IsError bool `json:"is_error,omitempty"`
}

// NewMessage creates a new message with a generated UUID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:             uuid.NewString(),
		Role:           role,
		Content:        content,
		Timestamp:      time.Now(),
		ConversationID: PendingConversationID,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewPlaceholderMessage creates a transient assistant message shown while a
// response is in flight.
func NewPlaceholderMessage(content string) Message {
	msg := NewMessage(RoleAssistant, content)
	msg.IsPlaceholder = true
	return msg
}

// NewErrorMessage creates a system message carrying a failure notice.
func NewErrorMessage(content string) Message {
	msg := NewMessage(RoleSystem, content)
	msg.IsError = true
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	return truncateRunes(m.Content, maxLen)
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// EstimateTokens gives a rough estimate of token count.
// Uses the approximation of ~4 characters per token.
func (m Message) EstimateTokens() int {
	return (len(m.Content) + 3) / 4
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// truncateRunes truncates a string to maxLen runes, appending "..." when
// content was dropped.
func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// flattenWhitespace collapses newlines so previews stay on one line.
func flattenWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}
