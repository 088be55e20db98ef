// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// QUICK ACTION CATALOGUE
// =============================================================================

// QuickAction is a predefined, document-scoped AI operation distinct from
// free-form chat.
type QuickAction string

const (
	ActionExtractDates    QuickAction = "extract_dates"
	ActionSummarize       QuickAction = "summarize"
	ActionPrepareForCourt QuickAction = "prepare_for_court"
	ActionReplyToLetter   QuickAction = "reply_to_letter"
)

// QuickActions lists every known action in display order.
var QuickActions = []QuickAction{
	ActionExtractDates,
	ActionSummarize,
	ActionPrepareForCourt,
	ActionReplyToLetter,
}

// String returns the wire name of the action.
func (a QuickAction) String() string {
	return string(a)
}

// DisplayName returns a human-readable name for the action.
func (a QuickAction) DisplayName() string {
	switch a {
	case ActionExtractDates:
		return "Extract Dates"
	case ActionSummarize:
		return "Summarize Document"
	case ActionPrepareForCourt:
		return "Prepare for Court"
	case ActionReplyToLetter:
		return "Reply to Letter"
	default:
		return string(a)
	}
}

// Path returns the backend endpoint path for the action.
func (a QuickAction) Path() string {
	switch a {
	case ActionExtractDates:
		return "/api/extract-dates"
	case ActionSummarize:
		return "/api/summarize"
	case ActionPrepareForCourt:
		return "/api/prepare-for-court"
	case ActionReplyToLetter:
		return "/api/reply-to-letter"
	default:
		return "/api/" + string(a)
	}
}

// IsValid reports whether the action is part of the catalogue.
func (a QuickAction) IsValid() bool {
	switch a {
	case ActionExtractDates, ActionSummarize, ActionPrepareForCourt, ActionReplyToLetter:
		return true
	default:
		return false
	}
}
