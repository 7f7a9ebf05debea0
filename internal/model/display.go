package model

// DisplayActivity is the merged, read-only projection used for rendering:
// either a one-off activity or one recurring instance with override state
// expanded. The display list is regenerated on every change; edits go through
// planner session intents, never through this struct.
type DisplayActivity struct {
	ID          string          `json:"id"` // activity ID, or template ID for recurring instances
	TemplateID  string          `json:"templateId,omitempty"`
	Title       string          `json:"title"`
	Time        string          `json:"time,omitempty"`
	Items       []ChecklistItem `json:"items,omitempty"`
	Done        bool            `json:"done"`
	IsRecurring bool            `json:"isRecurring"`
}
