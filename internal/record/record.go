// Package record parses and serializes a day's plain-text record: one-off
// activities plus per-template override blocks for recurring instances.
//
// The grammar is line-oriented and deliberately permissive — day files may be
// hand-edited, so unrecognized lines are skipped rather than rejected:
//
//	# 2026-02-15
//
//	Activity: 09:00 | Standup [x]
//	- [x] prep
//	- [ ] notes
//
//	RecurringOverride: <templateId> [x]
//	- [ ] ad hoc item
//	ItemState: <templateId>|<itemKey>|x
package record

import (
	"bufio"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/daybook/internal/model"
)

const (
	activityPrefix  = "Activity:"
	overridePrefix  = "RecurringOverride:"
	itemStatePrefix = "ItemState:"
	itemPrefix      = "- "
	doneSuffix      = " [x]"
	notDoneMarker   = "[ ]"
)

// ParseResult holds everything a day's text encodes. Activities is the single
// source of truth for the day's one-off list; Overrides is extracted as a side
// effect and feeds the override store, never the display list directly.
type ParseResult struct {
	Activities []model.Activity
	Overrides  model.OverrideMap
}

// Parse decodes a day record. It never fails: malformed lines are ignored and
// an empty input yields an empty result.
func Parse(text string) ParseResult {
	res := ParseResult{Overrides: make(model.OverrideMap)}

	var curActivity *model.Activity
	var curOverride *model.DayOverride

	flush := func() {
		if curActivity != nil {
			res.Activities = append(res.Activities, *curActivity)
			curActivity = nil
		}
		curOverride = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, activityPrefix):
			flush()
			a := parseActivityHeader(strings.TrimPrefix(trimmed, activityPrefix))
			curActivity = &a

		case strings.HasPrefix(trimmed, overridePrefix):
			flush()
			id, done := splitDoneMarker(strings.TrimSpace(strings.TrimPrefix(trimmed, overridePrefix)))
			if id == "" {
				continue
			}
			ov := res.ensureOverride(id)
			ov.Done = ov.Done || done
			curOverride = ov

		case strings.HasPrefix(trimmed, itemStatePrefix):
			// ItemState lines may appear anywhere, not only inside the block
			// for their template.
			res.applyItemState(strings.TrimPrefix(trimmed, itemStatePrefix))

		case strings.HasPrefix(trimmed, itemPrefix):
			item := parseItemLine(strings.TrimPrefix(trimmed, itemPrefix))
			if curActivity != nil {
				curActivity.Items = append(curActivity.Items, item)
			} else if curOverride != nil {
				curOverride.ItemOverrides = append(curOverride.ItemOverrides, item)
			}
			// An item line outside any block is malformed: skip.

		default:
			// Comments, blank lines, and anything unrecognized.
		}
	}
	flush()

	return res
}

func (r *ParseResult) ensureOverride(templateID string) *model.DayOverride {
	if ov, ok := r.Overrides[templateID]; ok {
		return ov
	}
	ov := &model.DayOverride{}
	r.Overrides[templateID] = ov
	return ov
}

// applyItemState handles "<templateId>|<itemKey>|<x| >" after the prefix.
func (r *ParseResult) applyItemState(rest string) {
	parts := strings.SplitN(strings.TrimLeft(rest, " "), "|", 3)
	if len(parts) < 2 {
		return
	}
	templateID := strings.TrimSpace(parts[0])
	key := strings.TrimSpace(parts[1])
	if templateID == "" || key == "" {
		return
	}

	done := false
	if len(parts) == 3 && strings.TrimSpace(parts[2]) == "x" {
		done = true
	}

	ov := r.ensureOverride(templateID)
	if ov.ItemState == nil {
		ov.ItemState = make(map[string]bool)
	}
	ov.ItemState[key] = done
}

// parseActivityHeader decodes "[HH:MM | ]Title[ [x]]". Stored text carries no
// IDs, so each parse assigns a fresh one; identity is per render cycle.
func parseActivityHeader(rest string) model.Activity {
	body, done := splitDoneMarker(strings.TrimSpace(rest))

	var timeStr, title string
	if idx := strings.Index(body, "|"); idx >= 0 {
		timeStr = strings.TrimSpace(body[:idx])
		title = strings.TrimSpace(body[idx+1:])
	} else {
		title = body
	}

	return model.Activity{
		ID:    uuid.NewString(),
		Title: title,
		Time:  timeStr,
		Done:  done,
	}
}

// parseItemLine decodes "[x] text" or "[ ] text"; a bare "text" is tolerated
// as an unchecked item.
func parseItemLine(rest string) model.ChecklistItem {
	switch {
	case strings.HasPrefix(rest, "[x]"):
		return model.ChecklistItem{Text: strings.TrimSpace(rest[3:]), Done: true}
	case strings.HasPrefix(rest, "[ ]"):
		return model.ChecklistItem{Text: strings.TrimSpace(rest[3:])}
	default:
		return model.ChecklistItem{Text: strings.TrimSpace(rest)}
	}
}

// splitDoneMarker strips one trailing completion marker. "[ ]" is written by
// the serializer when a not-done title happens to end in a marker itself, so
// such titles survive a round trip.
func splitDoneMarker(s string) (string, bool) {
	if strings.HasSuffix(s, "[x]") {
		return strings.TrimSpace(strings.TrimSuffix(s, "[x]")), true
	}
	if strings.HasSuffix(s, notDoneMarker) {
		return strings.TrimSpace(strings.TrimSuffix(s, notDoneMarker)), false
	}
	return s, false
}

// Serialize renders a day record: a date header comment, every one-off
// activity, then one RecurringOverride block per override with non-default
// state. Recurring definitions themselves are never written here — only their
// per-day state — so the templates document stays the single home for them.
//
// Output is deterministic: override blocks and ItemState lines are sorted.
// Parse(Serialize(…)) reproduces the same logical content.
func Serialize(dayKey string, activities []model.Activity, overrides model.OverrideMap) string {
	var b strings.Builder

	b.WriteString("# ")
	b.WriteString(dayKey)
	b.WriteString("\n\n")

	for _, a := range activities {
		writeActivity(&b, a)
	}

	for _, templateID := range sortedOverrideIDs(overrides) {
		writeOverride(&b, templateID, overrides[templateID])
	}

	return b.String()
}

func writeActivity(b *strings.Builder, a model.Activity) {
	b.WriteString(activityPrefix)
	b.WriteString(" ")
	if a.Time != "" {
		b.WriteString(a.Time)
		b.WriteString(" | ")
	} else if strings.Contains(a.Title, "|") {
		// An untimed title with a pipe would re-parse as time|title; an
		// empty time slot keeps the split in front of the whole title.
		b.WriteString("| ")
	}
	b.WriteString(a.Title)
	switch {
	case a.Done:
		b.WriteString(doneSuffix)
	case strings.HasSuffix(a.Title, "[x]") || strings.HasSuffix(a.Title, notDoneMarker):
		b.WriteString(" " + notDoneMarker)
	}
	b.WriteString("\n")

	for _, item := range a.Items {
		writeItem(b, item)
	}
	b.WriteString("\n")
}

func writeOverride(b *strings.Builder, templateID string, ov *model.DayOverride) {
	if ov.IsDefault() {
		return
	}

	b.WriteString(overridePrefix)
	b.WriteString(" ")
	b.WriteString(templateID)
	if ov.Done {
		b.WriteString(doneSuffix)
	}
	b.WriteString("\n")

	for _, item := range ov.ItemOverrides {
		writeItem(b, item)
	}

	keys := make([]string, 0, len(ov.ItemState))
	for k := range ov.ItemState {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		state := " "
		if ov.ItemState[k] {
			state = "x"
		}
		b.WriteString(itemStatePrefix)
		b.WriteString(" ")
		b.WriteString(templateID)
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("|")
		b.WriteString(state)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeItem(b *strings.Builder, item model.ChecklistItem) {
	if item.Done {
		b.WriteString("- [x] ")
	} else {
		b.WriteString("- [ ] ")
	}
	b.WriteString(item.Text)
	b.WriteString("\n")
}

func sortedOverrideIDs(overrides model.OverrideMap) []string {
	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
