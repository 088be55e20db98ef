// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/Bederf/aimthelaw-sub002/internal/model"
)

// =============================================================================
// MARKDOWN EXPORT
// =============================================================================

// ExportMarkdown renders a conversation record as a markdown document with
// YAML frontmatter. Placeholder messages are omitted; they were never real
// content.
func ExportMarkdown(rec Record) ([]byte, error) {
	if rec.Conversation.ID == "" {
		return nil, fmt.Errorf("conversation has no id")
	}
	if len(rec.Messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	conv := rec.Conversation
	title := conv.Title
	if title == "" {
		title = model.DeriveTitle(rec.Messages)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(title)))
	sb.WriteString(fmt.Sprintf("client: %s\n", conv.ClientID))
	sb.WriteString(fmt.Sprintf("date: %s\n", conv.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("updated: %s\n", conv.UpdatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("messages: %d\n", len(rec.Messages)))
	sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
	sb.WriteString("---\n\n")

	sb.WriteString("# " + title + "\n")

	for _, msg := range rec.Messages {
		if msg.IsPlaceholder {
			continue
		}
		sb.WriteString("\n## " + roleHeading(msg) + "\n\n")
		if !msg.Timestamp.IsZero() {
			sb.WriteString("*" + msg.Timestamp.Format("2006-01-02 15:04") + "*\n\n")
		}
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n")
	}

	return []byte(sb.String()), nil
}

func roleHeading(msg model.Message) string {
	if msg.IsError {
		return "Error"
	}
	switch msg.Role {
	case model.RoleUser:
		return "You"
	case model.RoleAssistant:
		return "Assistant"
	default:
		return "System"
	}
}

// escapeYAML quotes a value when it would break naive YAML parsing.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#\"'\n") {
		return fmt.Sprintf("%q", strings.ReplaceAll(s, "\n", " "))
	}
	return s
}
