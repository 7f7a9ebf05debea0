package planner

import (
	"testing"
	"time"

	"github.com/dukerupert/daybook/internal/model"
)

func d(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

func dailyTemplate(id, title, timeStr string, items ...string) model.RecurringTemplate {
	tmpl := model.RecurringTemplate{
		ID:         id,
		Title:      title,
		Time:       timeStr,
		Recurrence: model.Recurrence{Type: model.RecurDaily, Interval: 1},
	}
	for i, text := range items {
		tmpl.Items = append(tmpl.Items, model.TemplateItem{ID: id + "-item-" + string(rune('a'+i)), Text: text})
	}
	return tmpl
}

func TestBuildDisplayOrdering(t *testing.T) {
	oneOffs := []model.Activity{
		{ID: "a1", Title: "Untimed one-off"},
		{ID: "a2", Title: "Lunch", Time: "12:00"},
	}
	templates := []model.RecurringTemplate{
		dailyTemplate("rec1", "Morning routine", "08:00"),
		dailyTemplate("rec2", "Evening review", ""),
	}

	display := BuildDisplay(d(2026, 2, 15), oneOffs, templates, nil)

	if len(display) != 4 {
		t.Fatalf("got %d entries, want 4", len(display))
	}

	wantTitles := []string{"Morning routine", "Lunch", "Untimed one-off", "Evening review"}
	for i, want := range wantTitles {
		if display[i].Title != want {
			t.Errorf("display[%d] = %q, want %q", i, display[i].Title, want)
		}
	}
}

func TestBuildDisplayStableAmongEqualTimes(t *testing.T) {
	oneOffs := []model.Activity{
		{ID: "a1", Title: "First untimed"},
		{ID: "a2", Title: "Second untimed"},
	}
	display := BuildDisplay(d(2026, 2, 15), oneOffs, nil, nil)

	if display[0].Title != "First untimed" || display[1].Title != "Second untimed" {
		t.Errorf("relative order not preserved: %q, %q", display[0].Title, display[1].Title)
	}
}

func TestBuildDisplaySkipsNonFiringTemplates(t *testing.T) {
	weekly := model.RecurringTemplate{
		ID:    "rec1",
		Title: "Monday thing",
		Recurrence: model.Recurrence{
			Type: model.RecurWeekly, Interval: 1, DaysOfWeek: []int{1},
		},
	}

	// 2026-02-15 is a Sunday.
	display := BuildDisplay(d(2026, 2, 15), nil, []model.RecurringTemplate{weekly}, nil)
	if len(display) != 0 {
		t.Errorf("non-firing template produced %d entries", len(display))
	}

	// 2026-02-16 is a Monday.
	display = BuildDisplay(d(2026, 2, 16), nil, []model.RecurringTemplate{weekly}, nil)
	if len(display) != 1 || !display[0].IsRecurring {
		t.Errorf("expected one recurring instance, got %+v", display)
	}
}

func TestExpandItemState(t *testing.T) {
	tmpl := dailyTemplate("rec1", "Routine", "", "stretch", "meditate")
	overrides := model.OverrideMap{
		"rec1": {ItemState: map[string]bool{"rec1-item-a": true}},
	}

	display := BuildDisplay(d(2026, 2, 15), nil, []model.RecurringTemplate{tmpl}, overrides)
	if len(display) != 1 {
		t.Fatalf("got %d entries, want 1", len(display))
	}

	items := display[0].Items
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if !items[0].Done {
		t.Error("stretch should be done from item state")
	}
	if items[1].Done {
		t.Error("meditate should default to not done")
	}
	if items[0].Key != "rec1-item-a" {
		t.Errorf("item key = %q, want rec1-item-a", items[0].Key)
	}
}

func TestDoneCascadesToAllItems(t *testing.T) {
	tmpl := dailyTemplate("rec1", "Routine", "", "stretch", "meditate")
	overrides := model.OverrideMap{
		"rec1": {
			Done:          true,
			ItemState:     map[string]bool{"rec1-item-a": false},
			ItemOverrides: []model.ChecklistItem{{Text: "ad hoc", Done: false}},
		},
	}

	display := BuildDisplay(d(2026, 2, 15), nil, []model.RecurringTemplate{tmpl}, overrides)
	if !display[0].Done {
		t.Fatal("instance should be done")
	}
	for i, item := range display[0].Items {
		if !item.Done {
			t.Errorf("item[%d] %q should be done via cascade", i, item.Text)
		}
	}
}

func TestAdHocItemsAppended(t *testing.T) {
	tmpl := dailyTemplate("rec1", "Routine", "", "stretch")
	overrides := model.OverrideMap{
		"rec1": {ItemOverrides: []model.ChecklistItem{{Text: "one-day extra", Done: true}}},
	}

	display := BuildDisplay(d(2026, 2, 15), nil, []model.RecurringTemplate{tmpl}, overrides)
	items := display[0].Items
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	last := items[len(items)-1]
	if last.Text != "one-day extra" || !last.Done || last.Key != "" {
		t.Errorf("ad hoc item = %+v", last)
	}
}

func TestOrphanedOverrideIsInert(t *testing.T) {
	// Override for a template that no longer exists: stays stored, never renders.
	overrides := model.OverrideMap{
		"deleted-template": {Done: true},
	}
	display := BuildDisplay(d(2026, 2, 15), nil, nil, overrides)
	if len(display) != 0 {
		t.Errorf("orphaned override produced %d entries", len(display))
	}
	if _, ok := overrides["deleted-template"]; !ok {
		t.Error("orphaned override should not be purged")
	}
}

func TestItemKeyFallsBackToText(t *testing.T) {
	if got := ItemKey(model.TemplateItem{ID: "id1", Text: "water plants"}); got != "id1" {
		t.Errorf("ItemKey = %q, want id1", got)
	}
	if got := ItemKey(model.TemplateItem{Text: "water plants"}); got != "water plants" {
		t.Errorf("ItemKey = %q, want text fallback", got)
	}
}
