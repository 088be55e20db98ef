// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Bederf/aimthelaw-sub002/internal/util"
)

// dateEntry is one extracted date event from the backend.
type dateEntry struct {
	Date       string
	Event      string
	DocumentID string
}

// renderDates formats an extract-dates payload as markdown. Events are
// grouped by source document, with an optional chronological timeline
// section when the backend supplies one. Returns false only when the
// payload carries no recognizable date fields at all, so the caller can
// fall through to the generic rules.
func (n *Normalizer) renderDates(payload, metadata map[string]any) (string, bool) {
	raw, ok := payload["dates"]
	if !ok {
		if data, inner := payload["data"].(map[string]any); inner {
			raw, ok = data["dates"]
		}
	}
	timeline := payload["structured_timeline"]
	if timeline == nil {
		if data, inner := payload["data"].(map[string]any); inner {
			timeline = data["structured_timeline"]
		}
	}
	if !ok && timeline == nil {
		return "", false
	}

	entries := parseDateEntries(raw)
	if raw != nil {
		metadata["dates"] = raw
	}
	if timeline != nil {
		metadata["structured_timeline"] = timeline
	}

	timelineBlock := renderTimeline(timeline)
	if len(entries) == 0 && timelineBlock == "" {
		return "No dates were found in the selected documents.", true
	}

	var sb strings.Builder
	sb.WriteString("# Extracted Dates\n")

	if len(entries) > 0 {
		for _, group := range n.groupByDocument(entries) {
			sb.WriteString("\n## ")
			sb.WriteString(group.name)
			sb.WriteString("\n\n")
			for _, e := range group.entries {
				sb.WriteString("- **")
				sb.WriteString(e.Date)
				sb.WriteString("**: ")
				sb.WriteString(e.Event)
				sb.WriteString("\n")
			}
		}
	}

	if timelineBlock != "" {
		sb.WriteString("\n## Timeline\n\n")
		sb.WriteString(timelineBlock)
	}

	return strings.TrimRight(sb.String(), "\n"), true
}

// parseDateEntries tolerates partially formed entries. An entry with no
// date keeps its event text under an "Unknown date" label rather than
// being dropped.
func parseDateEntries(raw any) []dateEntry {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	entries := make([]dateEntry, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := dateEntry{
			Date:       stringField(m, "date"),
			Event:      stringField(m, "event"),
			DocumentID: stringField(m, "document_id"),
		}
		if e.Event == "" {
			e.Event = stringField(m, "description")
		}
		if e.Date == "" && e.Event == "" {
			continue
		}
		if e.Date == "" {
			e.Date = "Unknown date"
		}
		entries = append(entries, e)
	}
	return entries
}

type documentGroup struct {
	name    string
	entries []dateEntry
}

// groupByDocument buckets entries under display names resolved from the
// known document set. Entries with no document land in a shared bucket,
// and group order follows first appearance in the payload.
func (n *Normalizer) groupByDocument(entries []dateEntry) []documentGroup {
	const generalBucket = "All Documents"

	order := make([]string, 0, 4)
	byName := make(map[string][]dateEntry)
	for _, e := range entries {
		name := generalBucket
		if e.DocumentID != "" {
			if doc, ok := n.docs[e.DocumentID]; ok {
				name = doc.DisplayName()
			} else {
				name = e.DocumentID
			}
		}
		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = append(byName[name], e)
	}

	groups := make([]documentGroup, 0, len(order))
	for _, name := range order {
		groups = append(groups, documentGroup{name: name, entries: byName[name]})
	}
	return groups
}

// monthOrder maps month labels the backend emits to their calendar
// position so timeline sections sort chronologically rather than
// alphabetically.
var monthOrder = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4,
	"may": 5, "june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// renderTimeline formats a structured_timeline value. The backend nests
// year -> month -> events, with a sibling unknown_dates bucket for
// events it could not place. Years and months render in chronological
// order with the unknown bucket last.
func renderTimeline(raw any) string {
	tl, ok := raw.(map[string]any)
	if !ok || len(tl) == 0 {
		return ""
	}

	years := make([]string, 0, len(tl))
	var unknown any
	for key := range tl {
		if strings.EqualFold(key, "unknown_dates") || strings.EqualFold(key, "unknown") {
			unknown = tl[key]
			continue
		}
		years = append(years, key)
	}
	sort.Strings(years)

	var sb strings.Builder
	for _, year := range years {
		months, ok := tl[year].(map[string]any)
		if !ok {
			writeTimelineEvents(&sb, fmt.Sprintf("**%s**", year), tl[year])
			continue
		}
		sb.WriteString("**")
		sb.WriteString(year)
		sb.WriteString("**\n")
		for _, month := range sortedMonths(months) {
			writeTimelineEvents(&sb, "  "+util.HumanizeField(month), months[month])
		}
		sb.WriteString("\n")
	}

	if unknown != nil {
		writeTimelineEvents(&sb, "**Undated**", unknown)
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func sortedMonths(months map[string]any) []string {
	keys := make([]string, 0, len(months))
	for key := range months {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := monthOrder[strings.ToLower(keys[i])]
		oj, jok := monthOrder[strings.ToLower(keys[j])]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return keys[i] < keys[j]
	})
	return keys
}

// writeTimelineEvents renders one timeline bucket. Events may arrive as
// a list of strings, a list of entry maps, or a bare string.
func writeTimelineEvents(sb *strings.Builder, label string, raw any) {
	var lines []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			switch e := item.(type) {
			case string:
				lines = append(lines, e)
			case map[string]any:
				date := stringField(e, "date")
				event := stringField(e, "event")
				if event == "" {
					event = stringField(e, "description")
				}
				switch {
				case date != "" && event != "":
					lines = append(lines, date+": "+event)
				case event != "":
					lines = append(lines, event)
				case date != "":
					lines = append(lines, date)
				}
			}
		}
	case string:
		if v != "" {
			lines = append(lines, v)
		}
	}
	if len(lines) == 0 {
		return
	}
	sb.WriteString(label)
	sb.WriteString("\n")
	for _, line := range lines {
		sb.WriteString("  - ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
