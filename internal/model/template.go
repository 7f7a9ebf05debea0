package model

// Recurrence types understood by the engine. Anything else is tolerated in
// stored data but never fires.
const (
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
)

// Recurrence describes when a template fires.
type Recurrence struct {
	Type        string `json:"type"`
	Interval    int    `json:"interval"`
	DaysOfWeek  []int  `json:"daysOfWeek,omitempty"`  // 0=Sunday .. 6=Saturday
	DaysOfMonth []int  `json:"daysOfMonth,omitempty"` // 1..31
}

// TemplateItem is a fixed checklist entry defined on a template. ID is the
// stable key that per-day completion state references.
type TemplateItem struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// RecurringTemplate is a recurring event definition, independent of any day.
// Its ID is generated once at creation and never changes; day overrides
// reference it by this ID.
//
// StartDate and EndDate are YYYY-MM-DD day keys; empty means unbounded.
type RecurringTemplate struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Time       string         `json:"time,omitempty"` // HH:MM
	Items      []TemplateItem `json:"items,omitempty"`
	Recurrence Recurrence     `json:"recurrence"`
	StartDate  string         `json:"startDate,omitempty"`
	EndDate    string         `json:"endDate,omitempty"`

	// Legacy flat shape written by old versions. Normalized into Recurrence
	// when the templates document is loaded, never written back.
	LegacyType       string `json:"type,omitempty"`
	LegacyInterval   int    `json:"interval,omitempty"`
	LegacyDayOfWeek  *int   `json:"dayOfWeek,omitempty"`
	LegacyDayOfMonth *int   `json:"dayOfMonth,omitempty"`
}
