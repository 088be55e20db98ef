// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package normalize

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/Bederf/aimthelaw-sub002/internal/util"
)

// summaryFields are the payload fields checked for an embedded summary,
// in priority order. Backends that run the model output through a raw
// passthrough put the JSON in raw_text.
var summaryFields = []string{"raw_text", "summary", "content", "response", "result", "text"}

// summarySections are the recognized keys of an embedded summary object,
// in render order.
var summarySections = []string{"overview", "key_points", "legal_analysis"}

// renderSummary handles summarize payloads whose useful content is a JSON
// document embedded in a string field. Returns false when no embedded
// summary is found, so the ordinary field rules apply.
func renderSummary(payload map[string]any) (string, bool) {
	for _, field := range summaryFields {
		raw, ok := payload[field]
		if !ok {
			if data, inner := payload["data"].(map[string]any); inner {
				raw = data[field]
			}
		}
		s, ok := raw.(string)
		if !ok || s == "" {
			continue
		}
		if parsed, ok := parseEmbeddedSummary(s); ok {
			return formatSummary(parsed), true
		}
	}
	return "", false
}

// parseEmbeddedSummary tries the whole string as JSON first, then the
// outermost {...} substring. Model output often wraps the JSON in prose or
// a code fence.
func parseEmbeddedSummary(s string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(s)

	if parsed, ok := decodeSummary(trimmed); ok {
		return parsed, true
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if parsed, ok := decodeSummary(trimmed[start : end+1]); ok {
			return parsed, true
		}
	}

	return nil, false
}

// decodeSummary accepts a JSON object carrying at least one recognized
// summary section. Section values may be strings, lists or nested objects;
// the backend has shipped all three.
func decodeSummary(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	for _, key := range summarySections {
		if _, ok := m[key]; ok {
			return m, true
		}
	}
	return nil, false
}

func formatSummary(m map[string]any) string {
	var sb strings.Builder
	sb.WriteString("# Legal Document Summary\n")

	for _, key := range summarySections {
		body := summaryBody(m[key])
		if body == "" {
			continue
		}
		sb.WriteString("\n## " + util.HumanizeField(key) + "\n\n")
		sb.WriteString(body)
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// summaryBody flattens one section value into markdown.
func summaryBody(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		var lines []string
		for _, item := range t {
			if s := summaryBody(item); s != "" {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for key := range t {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var lines []string
		for _, key := range keys {
			if s := summaryBody(t[key]); s != "" {
				lines = append(lines, "**"+util.HumanizeField(key)+"**: "+s)
			}
		}
		return strings.Join(lines, "\n\n")
	default:
		return ""
	}
}
