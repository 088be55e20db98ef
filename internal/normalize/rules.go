// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package normalize

import (
	"strings"

	"github.com/Bederf/aimthelaw-sub002/internal/model"
)

// =============================================================================
// EXTRACTION RULES
// =============================================================================

// minSubstantialLen is the threshold below which a string field is not
// considered displayable content.
const minSubstantialLen = 20

// fieldRule is one candidate location for display content.
type fieldRule struct {
	path   []string
	minLen int
}

// actionRules lists the candidate locations per action, in priority order.
// The first rule yielding a non-empty string above its threshold wins.
// Backends have shipped several shapes per endpoint; new shapes get a new
// row here, not new conditionals.
var actionRules = map[model.QuickAction][]fieldRule{
	model.ActionSummarize: {
		{path: []string{"summary"}},
		{path: []string{"data", "summary"}},
		{path: []string{"content"}},
		{path: []string{"data", "content"}},
		{path: []string{"raw_text"}},
		{path: []string{"response"}},
		{path: []string{"result"}},
	},
	model.ActionPrepareForCourt: {
		{path: []string{"preparation"}},
		{path: []string{"data", "preparation"}},
		{path: []string{"strategy"}},
		{path: []string{"content"}},
		{path: []string{"data", "content"}},
		{path: []string{"response"}},
	},
	model.ActionReplyToLetter: {
		{path: []string{"reply"}},
		{path: []string{"data", "reply"}},
		{path: []string{"letter"}},
		{path: []string{"content"}},
		{path: []string{"data", "content"}},
		{path: []string{"response"}},
	},
}

// genericRules are tried for any action whose own rules all miss.
var genericRules = []fieldRule{
	{path: []string{"content"}},
	{path: []string{"data", "content"}},
	{path: []string{"response"}},
	{path: []string{"data", "response"}},
	{path: []string{"result"}},
	{path: []string{"answer"}},
	{path: []string{"text"}},
	{path: []string{"output"}},
	{path: []string{"message"}},
}

// lookup walks a field path through nested maps.
func lookup(payload map[string]any, path []string) (any, bool) {
	var current any = payload
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// stringValue flattens a candidate value into displayable text. Array-valued
// fields holding strings are joined into paragraphs.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var parts []string
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n\n")
	default:
		return ""
	}
}

// applyRules returns the first rule hit above its threshold.
func applyRules(payload map[string]any, rules []fieldRule) (string, bool) {
	for _, rule := range rules {
		v, ok := lookup(payload, rule.path)
		if !ok {
			continue
		}
		s := strings.TrimSpace(stringValue(v))
		minLen := rule.minLen
		if minLen == 0 {
			minLen = minSubstantialLen
		}
		if len(s) > minLen {
			return s, true
		}
	}
	return "", false
}

// excludedField reports whether a key names bookkeeping rather than content.
// Id, timestamp, model and token-named fields never become display sections.
func excludedField(key string) bool {
	lower := strings.ToLower(key)
	if lower == "id" || lower == "model" || lower == "status" || lower == "type" {
		return true
	}
	if strings.HasSuffix(lower, "_id") {
		return true
	}
	return strings.Contains(lower, "token") ||
		strings.Contains(lower, "timestamp") ||
		strings.Contains(lower, "created_at") ||
		strings.Contains(lower, "updated_at")
}
