package model

// DayOverride is per-day, per-template state that customizes one instance of
// a recurring template without altering the template itself.
//
// ItemState holds completion keyed by template item ID, only for items the
// template still defines. ItemOverrides holds items added ad hoc to this one
// day's instance; they are identified by position within the day.
type DayOverride struct {
	Done          bool            `json:"done"`
	ItemState     map[string]bool `json:"itemState,omitempty"`
	ItemOverrides []ChecklistItem `json:"itemOverrides,omitempty"`
}

// OverrideMap is a day's full override state, keyed by template ID.
type OverrideMap map[string]*DayOverride

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (m OverrideMap) Clone() OverrideMap {
	out := make(OverrideMap, len(m))
	for id, ov := range m {
		c := &DayOverride{Done: ov.Done}
		if ov.ItemState != nil {
			c.ItemState = make(map[string]bool, len(ov.ItemState))
			for k, v := range ov.ItemState {
				c.ItemState[k] = v
			}
		}
		if len(ov.ItemOverrides) > 0 {
			c.ItemOverrides = append([]ChecklistItem(nil), ov.ItemOverrides...)
		}
		out[id] = c
	}
	return out
}

// IsDefault reports whether the override carries no state worth persisting.
func (o *DayOverride) IsDefault() bool {
	return o == nil || (!o.Done && len(o.ItemState) == 0 && len(o.ItemOverrides) == 0)
}
