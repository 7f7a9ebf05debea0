package planner

import (
	"sort"
	"time"

	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/recurrence"
)

// BuildDisplay merges a day's one-off activities with the recurring templates
// that fire on that date, expanded with the day's override state, into one
// render-ready list. One-offs keep their stored order; recurring instances
// follow in template order; the whole list is then stably sorted by time with
// untimed entries after all timed ones.
//
// The result is a projection: mutating it has no effect. Edits go through
// Session intents and the list is rebuilt.
func BuildDisplay(day time.Time, oneOffs []model.Activity, templates []model.RecurringTemplate, overrides model.OverrideMap) []model.DisplayActivity {
	display := make([]model.DisplayActivity, 0, len(oneOffs)+len(templates))

	for _, a := range oneOffs {
		display = append(display, model.DisplayActivity{
			ID:    a.ID,
			Title: a.Title,
			Time:  a.Time,
			Items: append([]model.ChecklistItem(nil), a.Items...),
			Done:  a.Done,
		})
	}

	for _, tmpl := range templates {
		if !recurrence.AppliesOn(tmpl, day) {
			continue
		}
		display = append(display, expandInstance(tmpl, overrides[tmpl.ID]))
	}

	sort.SliceStable(display, func(i, j int) bool {
		return timeLess(display[i].Time, display[j].Time)
	})

	return display
}

// expandInstance builds the display entry for one fired template. Instance-
// level done cascades to every item, ad hoc ones included.
func expandInstance(tmpl model.RecurringTemplate, ov *model.DayOverride) model.DisplayActivity {
	done := ov != nil && ov.Done

	items := make([]model.ChecklistItem, 0, len(tmpl.Items))
	for _, ti := range tmpl.Items {
		key := ItemKey(ti)
		itemDone := done
		if !itemDone && ov != nil {
			itemDone = ov.ItemState[key]
		}
		items = append(items, model.ChecklistItem{Text: ti.Text, Done: itemDone, Key: key})
	}

	if ov != nil {
		for _, extra := range ov.ItemOverrides {
			item := extra
			if done {
				item.Done = true
			}
			items = append(items, item)
		}
	}

	return model.DisplayActivity{
		ID:          tmpl.ID,
		TemplateID:  tmpl.ID,
		Title:       tmpl.Title,
		Time:        tmpl.Time,
		Items:       items,
		Done:        done,
		IsRecurring: true,
	}
}

// ItemKey returns the stable key a day's item state uses for a template item:
// the item's ID when one was generated, otherwise its text. Old templates
// predate item IDs.
func ItemKey(ti model.TemplateItem) string {
	if ti.ID != "" {
		return ti.ID
	}
	return ti.Text
}

// timeLess orders HH:MM strings ascending with untimed entries last.
// Zero-padded times compare correctly as strings.
func timeLess(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	return a < b
}
