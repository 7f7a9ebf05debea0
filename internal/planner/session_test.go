package planner

import (
	"testing"

	"github.com/dukerupert/daybook/internal/model"
)

const testDayKey = "2026-02-15"

func newTestSession(oneOffs []model.Activity, overrides model.OverrideMap) *Session {
	return NewSession(d(2026, 2, 15), testDayKey, oneOffs, overrides)
}

func TestToggleOneOffCascades(t *testing.T) {
	sess := newTestSession([]model.Activity{
		{ID: "a1", Title: "Pack", Items: []model.ChecklistItem{
			{Text: "clothes"}, {Text: "charger"},
		}},
	}, nil)

	if !sess.ToggleOneOff("a1", true) {
		t.Fatal("toggle should find the activity")
	}

	a := sess.Activities()[0]
	if !a.Done {
		t.Error("activity should be done")
	}
	for i, item := range a.Items {
		if !item.Done {
			t.Errorf("item[%d] should be done via cascade", i)
		}
	}

	// Unmarking leaves item state alone.
	sess.ToggleOneOff("a1", false)
	a = sess.Activities()[0]
	if a.Done {
		t.Error("activity should be not done")
	}
	if !a.Items[0].Done {
		t.Error("items should keep their state when unmarking")
	}
}

func TestToggleOneOffUnknownID(t *testing.T) {
	sess := newTestSession(nil, nil)
	if sess.ToggleOneOff("nope", true) {
		t.Error("unknown activity should report false")
	}
}

func TestOneOffCRUD(t *testing.T) {
	sess := newTestSession(nil, nil)

	a := sess.AddOneOff("  Dentist ", "14:30")
	if a.ID == "" {
		t.Fatal("new activity should get an ID")
	}
	if a.Title != "Dentist" || a.Time != "14:30" {
		t.Errorf("got %+v", a)
	}

	if !sess.AddOneOffItem(a.ID, "bring insurance card") {
		t.Fatal("add item failed")
	}
	if !sess.EditOneOff(a.ID, "Dentist appt", "15:00", sess.Activities()[0].Items) {
		t.Fatal("edit failed")
	}
	got := sess.Activities()[0]
	if got.Title != "Dentist appt" || got.Time != "15:00" || len(got.Items) != 1 {
		t.Errorf("after edit: %+v", got)
	}

	if !sess.ToggleOneOffItem(a.ID, 0, true) {
		t.Fatal("toggle item failed")
	}
	if !sess.Activities()[0].Items[0].Done {
		t.Error("item should be done")
	}

	if !sess.DeleteOneOffItem(a.ID, 0) {
		t.Fatal("delete item failed")
	}
	if sess.DeleteOneOffItem(a.ID, 0) {
		t.Error("delete out of range should report false")
	}

	if !sess.DeleteOneOff(a.ID) {
		t.Fatal("delete activity failed")
	}
	if len(sess.Activities()) != 0 {
		t.Errorf("activities = %d, want 0", len(sess.Activities()))
	}
}

func TestToggleRecurringInstanceCascade(t *testing.T) {
	tmpl := dailyTemplate("rec1", "Routine", "", "stretch", "meditate")
	sess := newTestSession(nil, model.OverrideMap{
		"rec1": {ItemState: map[string]bool{"rec1-item-a": false}},
	})

	sess.ToggleRecurringInstance("rec1", true)

	display := sess.Display([]model.RecurringTemplate{tmpl})
	if len(display) != 1 || !display[0].Done {
		t.Fatalf("display = %+v, want one done instance", display)
	}
	for i, item := range display[0].Items {
		if !item.Done {
			t.Errorf("item[%d] should report done regardless of prior state", i)
		}
	}
}

func TestToggleRecurringItemIgnoredWhileInstanceDone(t *testing.T) {
	sess := newTestSession(nil, nil)
	sess.ToggleRecurringInstance("rec1", true)
	sess.ToggleRecurringItem("rec1", "k1", false)

	ov := sess.Overrides()["rec1"]
	if ov == nil {
		t.Fatal("override missing")
	}
	if _, ok := ov.ItemState["k1"]; ok {
		t.Error("item toggle should be ignored while instance is done")
	}

	// After unmarking the instance, item toggles apply again.
	sess.ToggleRecurringInstance("rec1", false)
	sess.ToggleRecurringItem("rec1", "k1", true)
	if !sess.Overrides()["rec1"].ItemState["k1"] {
		t.Error("item toggle should apply after instance unmarked")
	}
}

func TestAdHocItems(t *testing.T) {
	sess := newTestSession(nil, nil)

	sess.AddAdHocItem("rec1", "extra errand")
	sess.AddAdHocItem("rec1", "another")

	ov := sess.Overrides()["rec1"]
	if len(ov.ItemOverrides) != 2 {
		t.Fatalf("itemOverrides = %d, want 2", len(ov.ItemOverrides))
	}

	sess.ToggleAdHocItem("rec1", 1, true)
	if !sess.Overrides()["rec1"].ItemOverrides[1].Done {
		t.Error("ad hoc item should be done")
	}

	sess.DeleteAdHocItem("rec1", 0)
	ov = sess.Overrides()["rec1"]
	if len(ov.ItemOverrides) != 1 || ov.ItemOverrides[0].Text != "another" {
		t.Errorf("after delete: %+v", ov.ItemOverrides)
	}

	// Out-of-range delete is a no-op.
	sess.DeleteAdHocItem("rec1", 5)
	if len(sess.Overrides()["rec1"].ItemOverrides) != 1 {
		t.Error("out-of-range delete should not change the list")
	}
}

func TestOverridesReturnsCopy(t *testing.T) {
	sess := newTestSession(nil, nil)
	sess.AddAdHocItem("rec1", "thing")

	snapshot := sess.Overrides()
	snapshot["rec1"].ItemOverrides[0].Text = "mutated"

	if sess.Overrides()["rec1"].ItemOverrides[0].Text != "thing" {
		t.Error("mutating the snapshot should not affect session state")
	}
}

func TestOverrideStoreDefaults(t *testing.T) {
	store := NewOverrideStore()

	// Absent day resolves to an empty map, not nil.
	m := store.Get("2026-01-01")
	if m == nil || len(m) != 0 {
		t.Fatalf("got %v, want empty map", m)
	}

	// Deleting from an absent override is a no-op.
	store.DeleteOverrideItem("2026-01-01", "recX", 0)

	done := true
	store.Set("2026-01-01", "recX", Patch{Done: &done})
	if !store.Get("2026-01-01")["recX"].Done {
		t.Error("patch should create and set override")
	}
}
