package domain

import "time"

// Provenance of a time entry.
const (
	SourceTimer  = "timer"
	SourceManual = "manual"
)

// TimeEntry represents one interval during which a user timed a timeline
// item. A nil EndAt means the entry is currently running; at most one
// running entry may exist per user, which the store enforces.
type TimeEntry struct {
	ID               string
	UserID           string
	TimelineItemID   string
	TimelineItemType string
	StartAt          time.Time
	EndAt            *time.Time
	DurationMinutes  *int
	Note             *string
	Source           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Running reports whether the entry is still open.
func (e *TimeEntry) Running() bool { return e.EndAt == nil }

// OverlapsWindow reports whether the entry's interval overlaps [from, to).
// A running entry extends to now for overlap purposes. Must stay in
// agreement with the SQL overlap clause used by the store.
func (e *TimeEntry) OverlapsWindow(from, to, now time.Time) bool {
	end := now
	if e.EndAt != nil {
		end = *e.EndAt
	}
	return e.StartAt.Before(to) && !end.Before(from)
}

// EntryPatch carries the editable fields of a time entry. Nil fields are
// left untouched.
type EntryPatch struct {
	StartAt *time.Time
	EndAt   *time.Time
	Note    *string
}

// EntryWithItem is a window-query row: the entry plus display fields joined
// from its timeline item. The item fields are nil when the item was deleted
// after the entry was recorded.
type EntryWithItem struct {
	TimeEntry
	ItemTitle     *string
	CategoryName  *string
	CategoryColor *string
}
