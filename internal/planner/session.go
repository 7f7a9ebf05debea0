package planner

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/daybook/internal/model"
)

// Session is one day's editable state: the day's one-off activities plus its
// slice of the override store. Every mutation intent runs synchronously to
// completion; the display list is rebuilt afterward rather than patched.
type Session struct {
	day       time.Time
	dayKey    string
	oneOffs   []model.Activity
	overrides *OverrideStore
}

// NewSession creates a session for one day, seeding the override store with
// the day's stored override map.
func NewSession(day time.Time, dayKey string, oneOffs []model.Activity, overrides model.OverrideMap) *Session {
	store := NewOverrideStore()
	store.Load(dayKey, overrides)
	return &Session{
		day:       day,
		dayKey:    dayKey,
		oneOffs:   oneOffs,
		overrides: store,
	}
}

// Display builds the current merged view against the given template list.
func (s *Session) Display(templates []model.RecurringTemplate) []model.DisplayActivity {
	return BuildDisplay(s.day, s.oneOffs, templates, s.overrides.Get(s.dayKey))
}

// Activities returns the day's one-off list for persistence.
func (s *Session) Activities() []model.Activity {
	return s.oneOffs
}

// Overrides returns a copy of the day's override map for persistence.
func (s *Session) Overrides() model.OverrideMap {
	return s.overrides.Get(s.dayKey).Clone()
}

// --- One-off intents ---

// ToggleOneOff flips an activity's done flag. Marking done cascades to its
// items; unmarking leaves item state alone. Unknown IDs are a no-op.
func (s *Session) ToggleOneOff(activityID string, done bool) bool {
	a := s.findOneOff(activityID)
	if a == nil {
		return false
	}
	a.Done = done
	if done {
		for i := range a.Items {
			a.Items[i].Done = true
		}
	}
	return true
}

// AddOneOff appends a new one-off activity and returns it.
func (s *Session) AddOneOff(title, timeStr string) model.Activity {
	a := model.Activity{
		ID:    uuid.NewString(),
		Title: strings.TrimSpace(title),
		Time:  strings.TrimSpace(timeStr),
	}
	s.oneOffs = append(s.oneOffs, a)
	return a
}

// EditOneOff replaces an activity's title, time, and items wholesale.
func (s *Session) EditOneOff(activityID, title, timeStr string, items []model.ChecklistItem) bool {
	a := s.findOneOff(activityID)
	if a == nil {
		return false
	}
	a.Title = strings.TrimSpace(title)
	a.Time = strings.TrimSpace(timeStr)
	a.Items = items
	return true
}

// DeleteOneOff removes an activity from the day.
func (s *Session) DeleteOneOff(activityID string) bool {
	for i := range s.oneOffs {
		if s.oneOffs[i].ID == activityID {
			s.oneOffs = append(s.oneOffs[:i], s.oneOffs[i+1:]...)
			return true
		}
	}
	return false
}

// AddOneOffItem appends a checklist item to an activity.
func (s *Session) AddOneOffItem(activityID, text string) bool {
	a := s.findOneOff(activityID)
	if a == nil {
		return false
	}
	a.Items = append(a.Items, model.ChecklistItem{Text: strings.TrimSpace(text)})
	return true
}

// DeleteOneOffItem removes an activity's item by position; out of range is a
// no-op.
func (s *Session) DeleteOneOffItem(activityID string, index int) bool {
	a := s.findOneOff(activityID)
	if a == nil || index < 0 || index >= len(a.Items) {
		return false
	}
	a.Items = append(a.Items[:index], a.Items[index+1:]...)
	return true
}

// ToggleOneOffItem flips one item's done flag by position.
func (s *Session) ToggleOneOffItem(activityID string, index int, done bool) bool {
	a := s.findOneOff(activityID)
	if a == nil || index < 0 || index >= len(a.Items) {
		return false
	}
	a.Items[index].Done = done
	return true
}

func (s *Session) findOneOff(activityID string) *model.Activity {
	for i := range s.oneOffs {
		if s.oneOffs[i].ID == activityID {
			return &s.oneOffs[i]
		}
	}
	return nil
}

// --- Recurring instance intents ---

// ToggleRecurringInstance sets the instance-level done flag for a template on
// this day. Done state cascades to all expanded items at display time.
func (s *Session) ToggleRecurringInstance(templateID string, done bool) {
	s.overrides.Set(s.dayKey, templateID, Patch{Done: &done})
}

// ToggleRecurringItem sets per-item completion for a template-defined item.
// Ignored while the instance-level done flag is set: the cascade wins.
func (s *Session) ToggleRecurringItem(templateID, itemKey string, done bool) {
	if ov := s.overrides.Get(s.dayKey)[templateID]; ov != nil && ov.Done {
		return
	}
	s.overrides.Set(s.dayKey, templateID, Patch{ItemState: map[string]bool{itemKey: done}})
}

// AddAdHocItem adds an item to this day's instance only; the shared template
// is never touched.
func (s *Session) AddAdHocItem(templateID, text string) {
	s.overrides.Set(s.dayKey, templateID, Patch{
		AppendItems: []model.ChecklistItem{{Text: strings.TrimSpace(text)}},
	})
}

// DeleteAdHocItem removes an ad hoc item by position within the day.
func (s *Session) DeleteAdHocItem(templateID string, index int) {
	s.overrides.DeleteOverrideItem(s.dayKey, templateID, index)
}

// ToggleAdHocItem flips an ad hoc item's done flag by position. Ignored while
// the instance-level done flag is set.
func (s *Session) ToggleAdHocItem(templateID string, index int, done bool) {
	m := s.overrides.Get(s.dayKey)
	ov := m[templateID]
	if ov == nil || ov.Done || index < 0 || index >= len(ov.ItemOverrides) {
		return
	}
	ov.ItemOverrides[index].Done = done
}
