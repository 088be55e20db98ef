// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convstore

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Bederf/aimthelaw-sub002/internal/model"
)

func testMirror(t *testing.T) *Mirror {
	t.Helper()
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func testConversation(id, clientID, title string) model.Conversation {
	return model.Conversation{
		ID:       id,
		ClientID: clientID,
		Title:    title,
		Status:   model.StatusActive,
	}
}

func TestSaveAndLoad(t *testing.T) {
	m := testMirror(t)
	msgs := []model.Message{
		model.NewUserMessage("What does clause four mean?"),
		model.NewAssistantMessage("Clause four governs termination."),
	}
	conv := testConversation("conv-1", "client-1", "Clause four")

	if err := m.Save(conv, msgs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := m.Load("conv-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Conversation.Title != "Clause four" {
		t.Errorf("title = %q", rec.Conversation.Title)
	}
	if len(rec.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(rec.Messages))
	}
	if rec.Conversation.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set on save")
	}
}

func TestSaveDerivesTitle(t *testing.T) {
	m := testMirror(t)
	msgs := []model.Message{model.NewUserMessage("Summarize the lease agreement for me")}

	if err := m.Save(testConversation("conv-1", "client-1", ""), msgs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := m.Load("conv-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasPrefix(rec.Conversation.Title, "Summarize the lease") {
		t.Errorf("derived title = %q", rec.Conversation.Title)
	}
}

func TestLoadNotFound(t *testing.T) {
	m := testMirror(t)
	if _, err := m.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	m := testMirror(t)
	if err := m.Save(testConversation("conv-1", "client-1", "t"), []model.Message{model.NewUserMessage("hi")}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := m.Delete("conv-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete("conv-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListMostRecentFirst(t *testing.T) {
	m := testMirror(t)
	for _, id := range []string{"conv-a", "conv-b", "conv-c"} {
		if err := m.Save(testConversation(id, "client-1", id), []model.Message{model.NewUserMessage("msg for " + id)}); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	metas, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("len = %d, want 3", len(metas))
	}
	if metas[0].ID != "conv-c" || metas[2].ID != "conv-a" {
		t.Errorf("order = %s, %s, %s", metas[0].ID, metas[1].ID, metas[2].ID)
	}
	if metas[0].MessageCount != 1 {
		t.Errorf("message count = %d", metas[0].MessageCount)
	}
}

func TestListForClient(t *testing.T) {
	m := testMirror(t)
	m.Save(testConversation("conv-1", "client-1", "a"), []model.Message{model.NewUserMessage("x")})
	m.Save(testConversation("conv-2", "client-2", "b"), []model.Message{model.NewUserMessage("y")})

	metas, err := m.ListForClient("client-2")
	if err != nil {
		t.Fatalf("ListForClient: %v", err)
	}
	if len(metas) != 1 || metas[0].ID != "conv-2" {
		t.Errorf("unexpected result: %+v", metas)
	}
}

func TestSearch(t *testing.T) {
	m := testMirror(t)
	m.Save(testConversation("conv-1", "client-1", "Lease review"), []model.Message{model.NewUserMessage("about the lease")})
	m.Save(testConversation("conv-2", "client-1", "Court dates"), []model.Message{model.NewUserMessage("hearing schedule")})

	results, err := m.Search("LEASE")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "conv-1" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestSearchMessages(t *testing.T) {
	m := testMirror(t)
	m.Save(testConversation("conv-1", "client-1", "One"), []model.Message{
		model.NewUserMessage("short"),
		model.NewAssistantMessage("The arbitration clause applies here."),
	})
	m.Save(testConversation("conv-2", "client-1", "Two"), []model.Message{model.NewUserMessage("unrelated")})

	results, err := m.SearchMessages("arbitration")
	if err != nil {
		t.Fatalf("SearchMessages: %v", err)
	}
	if len(results) != 1 || results[0].ID != "conv-1" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestEnforceLimit(t *testing.T) {
	m := testMirror(t)
	m.MaxConversations = 2
	for _, id := range []string{"conv-a", "conv-b", "conv-c"} {
		if err := m.Save(testConversation(id, "client-1", id), []model.Message{model.NewUserMessage("m")}); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	metas, _ := m.List()
	if len(metas) != 2 {
		t.Fatalf("len = %d, want 2", len(metas))
	}
	for _, meta := range metas {
		if meta.ID == "conv-a" {
			t.Error("oldest conversation should have been dropped")
		}
	}
}

func TestClear(t *testing.T) {
	m := testMirror(t)
	m.Save(testConversation("conv-1", "client-1", "a"), []model.Message{model.NewUserMessage("x")})

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	metas, _ := m.List()
	if len(metas) != 0 {
		t.Errorf("len = %d after Clear", len(metas))
	}
}

func TestExportMarkdown(t *testing.T) {
	conv := testConversation("conv-1", "client-1", "Lease review")
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt

	placeholder := model.NewPlaceholderMessage("Working...")
	rec := Record{
		Conversation: conv,
		Messages: []model.Message{
			model.NewUserMessage("Summarize the lease."),
			placeholder,
			model.NewAssistantMessage("The lease runs for two years."),
		},
	}

	out, err := ExportMarkdown(rec)
	if err != nil {
		t.Fatalf("ExportMarkdown: %v", err)
	}
	md := string(out)

	for _, want := range []string{"# Lease review", "## You", "## Assistant", "two years"} {
		if !strings.Contains(md, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if strings.Contains(md, "Working...") {
		t.Error("placeholder content must not be exported")
	}
}

func TestExportMarkdownEmpty(t *testing.T) {
	if _, err := ExportMarkdown(Record{Conversation: testConversation("c", "cl", "t")}); err == nil {
		t.Error("expected error for empty conversation")
	}
}
