// Package planner combines one-off activities, fired recurring templates, and
// per-day override state into the ordered display list, and owns the mutation
// intents that edit it.
package planner

import (
	"github.com/dukerupert/daybook/internal/model"
)

// Patch is a partial update merged into a day's override for one template.
// Nil/empty fields leave the existing state alone.
type Patch struct {
	Done        *bool
	ItemState   map[string]bool
	AppendItems []model.ChecklistItem
}

// OverrideStore holds per-template override state keyed by calendar day.
// All operations are total: absent days and templates resolve to defaults.
// Mutations are last-write-wins on the whole per-day map; callers serialize
// writes (see Service).
type OverrideStore struct {
	days map[string]model.OverrideMap
}

func NewOverrideStore() *OverrideStore {
	return &OverrideStore{days: make(map[string]model.OverrideMap)}
}

// Load seeds a day's override map, replacing anything already held for it.
func (s *OverrideStore) Load(dayKey string, m model.OverrideMap) {
	if m == nil {
		m = make(model.OverrideMap)
	}
	s.days[dayKey] = m
}

// Get returns the day's override map. The returned map is live store state;
// callers that persist it should Clone first.
func (s *OverrideStore) Get(dayKey string) model.OverrideMap {
	if m, ok := s.days[dayKey]; ok {
		return m
	}
	m := make(model.OverrideMap)
	s.days[dayKey] = m
	return m
}

// Set merges a patch into the template's override for the day, creating a
// default override if none exists.
func (s *OverrideStore) Set(dayKey, templateID string, patch Patch) {
	m := s.Get(dayKey)
	ov, ok := m[templateID]
	if !ok {
		ov = &model.DayOverride{}
		m[templateID] = ov
	}

	if patch.Done != nil {
		ov.Done = *patch.Done
	}
	if len(patch.ItemState) > 0 {
		if ov.ItemState == nil {
			ov.ItemState = make(map[string]bool, len(patch.ItemState))
		}
		for k, v := range patch.ItemState {
			ov.ItemState[k] = v
		}
	}
	if len(patch.AppendItems) > 0 {
		ov.ItemOverrides = append(ov.ItemOverrides, patch.AppendItems...)
	}
}

// DeleteOverrideItem removes an ad hoc item by position. Out-of-range indexes
// are a no-op.
func (s *OverrideStore) DeleteOverrideItem(dayKey, templateID string, index int) {
	m := s.Get(dayKey)
	ov, ok := m[templateID]
	if !ok || index < 0 || index >= len(ov.ItemOverrides) {
		return
	}
	ov.ItemOverrides = append(ov.ItemOverrides[:index], ov.ItemOverrides[index+1:]...)
}
