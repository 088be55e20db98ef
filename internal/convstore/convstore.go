// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convstore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Bederf/aimthelaw-sub002/internal/model"
	"github.com/Bederf/aimthelaw-sub002/internal/util"
)

// ErrNotFound is returned when no mirror file exists for a conversation.
var ErrNotFound = errors.New("conversation not in local mirror")

// =============================================================================
// RECORD TYPES
// =============================================================================

// Record is the persisted form of one conversation and its transcript.
type Record struct {
	Conversation model.Conversation `json:"conversation"`
	Messages     []model.Message    `json:"messages"`
}

// Meta is the listing view of a mirrored conversation.
type Meta struct {
	ID           string       `json:"id"`
	ClientID     string       `json:"client_id"`
	Title        string       `json:"title"`
	Summary      string       `json:"summary"`
	Status       model.Status `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	MessageCount int          `json:"message_count"`

	// Preview is the first user message, truncated.
	Preview string `json:"preview"`
}

// =============================================================================
// MIRROR
// =============================================================================

// Mirror stores conversation records under a base directory, one JSON file
// per conversation.
type Mirror struct {
	// BaseDir is the directory holding the mirror files.
	BaseDir string

	// MaxConversations bounds the mirror; the oldest records are dropped
	// past the limit. Zero means unlimited.
	MaxConversations int
}

// New creates a mirror rooted at baseDir, creating the directory if needed.
func New(baseDir string) (*Mirror, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &Mirror{BaseDir: baseDir, MaxConversations: 200}, nil
}

// Save writes a conversation and its transcript to the mirror. A missing
// title is derived from the transcript, and UpdatedAt is refreshed.
func (m *Mirror) Save(conv model.Conversation, messages []model.Message) error {
	if conv.ID == "" {
		return errors.New("conversation id required")
	}
	if conv.Title == "" {
		conv.Title = model.DeriveTitle(messages)
	}
	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(Record{Conversation: conv, Messages: messages}, "", "  ")
	if err != nil {
		return err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(m.filePath(conv.ID), data, 0644); err != nil {
		return err
	}

	if m.MaxConversations > 0 {
		m.enforceLimit()
	}
	return nil
}

// Load reads one conversation record.
func (m *Mirror) Load(id string) (Record, error) {
	data, err := os.ReadFile(m.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete removes one conversation record.
func (m *Mirror) Delete(id string) error {
	if err := os.Remove(m.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Clear removes every record in the mirror.
func (m *Mirror) Clear() error {
	entries, err := os.ReadDir(m.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(m.BaseDir, entry.Name()))
		}
	}
	return nil
}

// =============================================================================
// LISTING AND SEARCH
// =============================================================================

// List returns metadata for every mirrored conversation, most recently
// updated first. Corrupted files are skipped.
func (m *Mirror) List() ([]Meta, error) {
	entries, err := os.ReadDir(m.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Meta{}, nil
		}
		return nil, err
	}

	var metas []Meta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		rec, err := m.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		metas = append(metas, metaOf(rec))
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// ListForClient returns the metadata for one client's conversations.
func (m *Mirror) ListForClient(clientID string) ([]Meta, error) {
	all, err := m.List()
	if err != nil {
		return nil, err
	}
	var metas []Meta
	for _, meta := range all {
		if meta.ClientID == clientID {
			metas = append(metas, meta)
		}
	}
	return metas, nil
}

// Search finds conversations whose title, summary or preview matches the
// query, case-insensitively.
func (m *Mirror) Search(query string) ([]Meta, error) {
	all, err := m.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []Meta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) ||
			strings.Contains(strings.ToLower(meta.Summary), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}
	return results, nil
}

// SearchMessages finds conversations with any message content matching the
// query. Slower than Search: every record is read in full.
func (m *Mirror) SearchMessages(query string) ([]Meta, error) {
	all, err := m.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []Meta
	for _, meta := range all {
		rec, err := m.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, msg := range rec.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func metaOf(rec Record) Meta {
	preview := ""
	for _, msg := range rec.Messages {
		if msg.Role == model.RoleUser {
			preview = msg.Preview(80)
			break
		}
	}
	return Meta{
		ID:           rec.Conversation.ID,
		ClientID:     rec.Conversation.ClientID,
		Title:        rec.Conversation.Title,
		Summary:      rec.Conversation.Summary,
		Status:       rec.Conversation.Status,
		CreatedAt:    rec.Conversation.CreatedAt,
		UpdatedAt:    rec.Conversation.UpdatedAt,
		MessageCount: len(rec.Messages),
		Preview:      preview,
	}
}

// enforceLimit drops the oldest records past the cap.
func (m *Mirror) enforceLimit() {
	metas, err := m.List()
	if err != nil || len(metas) <= m.MaxConversations {
		return
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.Before(metas[j].UpdatedAt)
	})
	for i := 0; i < len(metas)-m.MaxConversations; i++ {
		m.Delete(metas[i].ID)
	}
}

func (m *Mirror) filePath(id string) string {
	return filepath.Join(m.BaseDir, id+".json")
}
