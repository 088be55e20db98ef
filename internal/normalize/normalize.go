// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package normalize

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Bederf/aimthelaw-sub002/internal/logging"
	"github.com/Bederf/aimthelaw-sub002/internal/model"
	"github.com/Bederf/aimthelaw-sub002/internal/util"
)

// diagnosticDumpLimit caps the raw JSON dump in the diagnostic block.
const diagnosticDumpLimit = 1000

// =============================================================================
// RESULT TYPE
// =============================================================================

// Result is the normalized display form of a backend response.
type Result struct {
	// Content is the markdown shown in the transcript.
	Content string

	// Metadata carries structured extras: token usage, failed documents,
	// extracted dates, timelines.
	Metadata map[string]any

	// IsError marks a best-effort fallback produced after a failure.
	IsError bool
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer turns heterogeneous quick-action results into chat messages.
// The docs map (id to record) resolves document display names; it may be nil.
type Normalizer struct {
	docs map[string]model.DocumentRef
	log  zerolog.Logger
}

// New creates a normalizer with an optional known-document map.
func New(docs map[string]model.DocumentRef) *Normalizer {
	return &Normalizer{
		docs: docs,
		log:  logging.For("normalize"),
	}
}

// Normalize extracts display content for an action result. It never panics
// or returns an error: the worst case is a diagnostic fallback with IsError
// set.
func (n *Normalizer) Normalize(action model.QuickAction, payload map[string]any) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error().Interface("panic", r).Str("action", action.String()).
				Msg("normalizer recovered")
			result = Result{
				Content: "The response could not be displayed. Please try the action again.",
				IsError: true,
			}
		}
	}()

	if payload == nil {
		return Result{
			Content: "The server returned an empty response.",
			IsError: true,
		}
	}

	metadata := extractMetadata(payload)

	var content string
	var ok bool
	switch action {
	case model.ActionExtractDates:
		content, ok = n.renderDates(payload, metadata)
	case model.ActionSummarize:
		content, ok = renderSummary(payload)
	}

	if !ok {
		content, ok = applyRules(payload, actionRules[action])
	}
	if !ok {
		content, ok = applyRules(payload, genericRules)
	}
	if !ok {
		content, ok = renderSubstantialFields(payload)
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	if !ok {
		return Result{
			Content:  diagnosticBlock(payload),
			Metadata: metadata,
			IsError:  true,
		}
	}

	return Result{Content: content, Metadata: metadata}
}

// =============================================================================
// GENERIC FALLBACK
// =============================================================================

// renderSubstantialFields renders every substantial text field under its own
// titled subsection: `{"weird_field": "long text"}` becomes a
// "### Weird field" section. Fields are emitted in sorted key order for
// deterministic output.
func renderSubstantialFields(payload map[string]any) (string, bool) {
	sections := collectSubstantialFields(payload)
	if data, ok := payload["data"].(map[string]any); ok {
		sections = append(sections, collectSubstantialFields(data)...)
	}
	if len(sections) == 0 {
		return "", false
	}

	sort.Slice(sections, func(i, j int) bool { return sections[i].key < sections[j].key })

	var sb strings.Builder
	for i, sec := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("### " + util.HumanizeField(sec.key) + "\n\n" + sec.text)
	}
	return sb.String(), true
}

type fieldSection struct {
	key  string
	text string
}

func collectSubstantialFields(m map[string]any) []fieldSection {
	var sections []fieldSection
	for key, v := range m {
		if excludedField(key) {
			continue
		}
		s := strings.TrimSpace(stringValue(v))
		if len(s) > minSubstantialLen {
			sections = append(sections, fieldSection{key: key, text: s})
		}
	}
	return sections
}

// diagnosticBlock renders the last-resort output: the field list and a
// truncated raw dump, so a bad response shape is debuggable from the
// transcript without crashing anything.
func diagnosticBlock(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("(unserializable response)")
	}

	var sb strings.Builder
	sb.WriteString("The response could not be displayed.\n\n")
	sb.WriteString("Fields received: " + strings.Join(keys, ", ") + "\n\n")
	sb.WriteString("```json\n" + util.Truncate(string(raw), diagnosticDumpLimit) + "\n```")
	return sb.String()
}

// =============================================================================
// METADATA EXTRACTION
// =============================================================================

// extractMetadata pulls structured extras out of a result payload.
func extractMetadata(payload map[string]any) map[string]any {
	metadata := make(map[string]any)

	for _, key := range []string{"token_usage", "usage"} {
		if v, ok := payload[key]; ok {
			metadata["token_usage"] = v
			break
		}
	}
	if v, ok := payload["failed_documents"]; ok {
		metadata["failed_documents"] = v
	}
	if data, ok := payload["data"].(map[string]any); ok {
		if v, ok := data["failed_documents"]; ok {
			metadata["failed_documents"] = v
		}
	}

	return metadata
}
