package model

// ChecklistItem is a single checkbox line inside an activity. Key identifies
// an item that originates from a recurring template's fixed item list and is
// stable across days; it is empty for one-off and ad hoc items.
type ChecklistItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
	Key  string `json:"key,omitempty"`
}

// Activity is a one-off entry owned by a single day's record.
type Activity struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Time  string          `json:"time,omitempty"` // HH:MM, empty = untimed
	Items []ChecklistItem `json:"items,omitempty"`
	Done  bool            `json:"done"`
}
