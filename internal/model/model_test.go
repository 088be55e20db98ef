// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage_GeneratesUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg := NewUserMessage("hello")
		if msg.ID == "" {
			t.Fatal("NewUserMessage() should generate an ID")
		}
		if seen[msg.ID] {
			t.Fatalf("duplicate message ID generated: %s", msg.ID)
		}
		seen[msg.ID] = true
	}
}

func TestNewPlaceholderMessage(t *testing.T) {
	msg := NewPlaceholderMessage("Thinking...")
	if !msg.IsPlaceholder {
		t.Error("placeholder message should have IsPlaceholder set")
	}
	if msg.Role != RoleAssistant {
		t.Errorf("placeholder role = %q, want assistant", msg.Role)
	}
	if msg.ConversationID != PendingConversationID {
		t.Errorf("new message conversation id = %q, want pending", msg.ConversationID)
	}
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("something failed")
	if !msg.IsError {
		t.Error("error message should have IsError set")
	}
	if msg.Role != RoleSystem {
		t.Errorf("error message role = %q, want system", msg.Role)
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"short content unchanged", "hello", 10, "hello"},
		{"long content truncated", strings.Repeat("a", 20), 10, "aaaaaaa..."},
		{"unicode safe", strings.Repeat("é", 20), 10, "ééééééé..."},
		{"zero max", "hello", 0, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewUserMessage(tc.content)
			if got := msg.Preview(tc.maxLen); got != tc.want {
				t.Errorf("Preview(%d) = %q, want %q", tc.maxLen, got, tc.want)
			}
		})
	}
}

// =============================================================================
// CONVERSATION ID TESTS
// =============================================================================

func TestIsPendingConversationID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", true},
		{"pending", true},
		{"local_9b2d", true},
		{"conv-123", false},
		{"9af31c00-0000-0000-0000-000000000000", false},
	}

	for _, tc := range tests {
		if got := IsPendingConversationID(tc.id); got != tc.want {
			t.Errorf("IsPendingConversationID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestNewLocalConversationID(t *testing.T) {
	id := NewLocalConversationID()
	if !strings.HasPrefix(id, LocalConversationPrefix) {
		t.Errorf("local id %q missing prefix %q", id, LocalConversationPrefix)
	}
	if !IsPendingConversationID(id) {
		t.Error("local fallback id should be treated as pending")
	}
}

// =============================================================================
// TITLE AND SUMMARY TESTS
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	t.Run("first user message wins", func(t *testing.T) {
		msgs := []Message{
			NewSystemMessage("system preamble"),
			NewUserMessage("What are the key dates in my contract?"),
			NewUserMessage("second question"),
		}
		got := DeriveTitle(msgs)
		if got != "What are the key dates in my contract?" {
			t.Errorf("DeriveTitle() = %q", got)
		}
	})

	t.Run("truncates to 50 chars", func(t *testing.T) {
		msgs := []Message{NewUserMessage(strings.Repeat("x", 100))}
		got := DeriveTitle(msgs)
		if len([]rune(got)) != 50 {
			t.Errorf("DeriveTitle() length = %d, want 50", len([]rune(got)))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("truncated title should end with ellipsis, got %q", got)
		}
	})

	t.Run("no user messages", func(t *testing.T) {
		if got := DeriveTitle(nil); got != "New conversation" {
			t.Errorf("DeriveTitle(nil) = %q", got)
		}
	})
}

func TestRollingSummary(t *testing.T) {
	msgs := []Message{
		NewUserMessage("first"),
		NewUserMessage("second"),
		NewUserMessage(strings.Repeat("a", 200)),
		NewAssistantMessage(strings.Repeat("b", 200)),
		NewUserMessage(strings.Repeat("c", 200)),
	}

	got := RollingSummary(msgs)
	if len([]rune(got)) > 255 {
		t.Errorf("RollingSummary() length = %d, want <= 255", len([]rune(got)))
	}
	if strings.Contains(got, "first") {
		t.Error("summary should only cover the trailing messages")
	}
	if !strings.Contains(got, "You: ") || !strings.Contains(got, "Assistant: ") {
		t.Errorf("summary should label roles, got %q", got)
	}
}

func TestRollingSummary_SkipsPlaceholders(t *testing.T) {
	msgs := []Message{
		NewUserMessage("real question"),
		NewPlaceholderMessage("Thinking..."),
	}
	got := RollingSummary(msgs)
	if strings.Contains(got, "Thinking") {
		t.Errorf("summary should skip placeholders, got %q", got)
	}
}

// =============================================================================
// DOCUMENT REF TESTS
// =============================================================================

func TestDocumentRef_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		ref  DocumentRef
		want string
	}{
		{"title preferred", DocumentRef{ID: "d1", Title: "Contract", FileName: "c.pdf"}, "Contract"},
		{"file name fallback", DocumentRef{ID: "d1", FileName: "c.pdf"}, "c.pdf"},
		{"id fallback", BareDocumentRef("d1"), "d1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ref.DisplayName(); got != tc.want {
				t.Errorf("DisplayName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDocumentIDs(t *testing.T) {
	refs := []DocumentRef{BareDocumentRef("a"), {ID: "b", Title: "B"}}
	got := DocumentIDs(refs)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("DocumentIDs() = %v", got)
	}
}

// =============================================================================
// QUICK ACTION TESTS
// =============================================================================

func TestQuickAction_Path(t *testing.T) {
	tests := []struct {
		action QuickAction
		want   string
	}{
		{ActionExtractDates, "/api/extract-dates"},
		{ActionSummarize, "/api/summarize"},
		{ActionPrepareForCourt, "/api/prepare-for-court"},
		{ActionReplyToLetter, "/api/reply-to-letter"},
		{QuickAction("custom"), "/api/custom"},
	}

	for _, tc := range tests {
		if got := tc.action.Path(); got != tc.want {
			t.Errorf("%s.Path() = %q, want %q", tc.action, got, tc.want)
		}
	}
}

func TestQuickAction_IsValid(t *testing.T) {
	for _, a := range QuickActions {
		if !a.IsValid() {
			t.Errorf("catalogue action %q should be valid", a)
		}
	}
	if QuickAction("bogus").IsValid() {
		t.Error("unknown action should not be valid")
	}
}
