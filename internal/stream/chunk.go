// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// =============================================================================
// CHUNK TYPES
// =============================================================================

// Control frame types. A control frame is a terminal single-shot message.
const (
	TypeWelcome  = "welcome"
	TypeComplete = "complete"
)

// Source is a retrieval source attached to a content chunk.
type Source struct {
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	SimilarityScore float64        `json:"similarity_score,omitempty"`
}

// Chunk is one decoded frame of a streaming response.
//
// Chunks arrive in wire order over one logical stream. The stream terminates
// on Done or on a terminal control Type; after a terminal chunk no further
// chunks are delivered.
type Chunk struct {
	Content string   `json:"content,omitempty"`
	Done    bool     `json:"done"`
	Type    string   `json:"type,omitempty"`
	Sources []Source `json:"sources,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// IsControl reports whether the chunk is a control frame.
func (c Chunk) IsControl() bool {
	return c.Type == TypeWelcome || c.Type == TypeComplete
}

// IsTerminal reports whether no further chunks follow this one.
func (c Chunk) IsTerminal() bool {
	return c.Done || c.IsControl() || c.Error != ""
}

// errorChunk builds the single terminal chunk emitted on transport failure.
func errorChunk(message string) Chunk {
	return Chunk{Error: message, Done: true}
}
