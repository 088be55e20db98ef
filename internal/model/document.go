// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// DOCUMENT REFERENCE
// =============================================================================

// DocumentRef identifies a document attached to a query or quick action.
// A ref may be a bare id or carry the full record when the document list has
// already been fetched; uniqueness is always by ID.
type DocumentRef struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	FileType  string    `json:"file_type,omitempty"`
	Size      int64     `json:"size,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// BareDocumentRef returns a ref carrying only an id.
func BareDocumentRef(id string) DocumentRef {
	return DocumentRef{ID: id}
}

// DisplayName returns the best human-readable name for the document.
func (d DocumentRef) DisplayName() string {
	if d.Title != "" {
		return d.Title
	}
	if d.FileName != "" {
		return d.FileName
	}
	return d.ID
}

// IsBare reports whether the ref carries only an id.
func (d DocumentRef) IsBare() bool {
	return d.Title == "" && d.FileName == "" && d.FileType == "" &&
		d.Size == 0 && d.CreatedAt.IsZero()
}

// DocumentIDs extracts the id list from a slice of refs.
func DocumentIDs(refs []DocumentRef) []string {
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return ids
}
