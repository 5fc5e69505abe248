package domain

import "time"

// Timeline item kinds. Time entries started through the legacy task routes
// always reference items of type task.
const (
	ItemTypeTask     = "task"
	ItemTypeActivity = "activity"
	ItemTypeHabit    = "habit"
)

// TimelineItem is the unit of work a time entry tracks.
type TimelineItem struct {
	ID            string
	UserID        string
	Type          string
	Title         string
	CategoryName  *string
	CategoryColor *string
	CreatedAt     time.Time
}

// ValidItemType reports whether t is a known timeline item kind.
func ValidItemType(t string) bool {
	switch t {
	case ItemTypeTask, ItemTypeActivity, ItemTypeHabit:
		return true
	}
	return false
}
