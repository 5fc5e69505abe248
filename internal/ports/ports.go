package ports

import (
	"context"
	"time"

	"timekeeper/internal/domain"
)

// EntryStore persists time entries. The store is the authoritative enforcer
// of the single-running-timer invariant: InsertEntry must report an insert
// that loses the race for the running slot as apperr.CodeTimerConflict,
// distinct from other failures.
type EntryStore interface {
	// RunningEntry returns the user's running entry, or nil when none.
	RunningEntry(ctx context.Context, userID string) (*domain.TimeEntry, error)
	// InsertEntry creates a new entry. A running entry (nil EndAt) that
	// collides with an existing running entry fails with CodeTimerConflict.
	InsertEntry(ctx context.Context, entry *domain.TimeEntry) error
	// CloseEntry sets end_at and duration on a still-running entry and
	// returns the closed row. Closing an already-closed entry is a no-op
	// that returns the row as stored.
	CloseEntry(ctx context.Context, userID, entryID string, endAt time.Time, durationMinutes int) (*domain.TimeEntry, error)
	// EntryByID returns the entry scoped to its owner, or
	// CodeEntryNotFound.
	EntryByID(ctx context.Context, userID, entryID string) (*domain.TimeEntry, error)
	// UpdateEntry writes the entry's mutable columns, scoped to its owner.
	UpdateEntry(ctx context.Context, entry *domain.TimeEntry) error
	// DeleteEntry removes the entry scoped to its owner; zero rows affected
	// fails with CodeEntryNotFound.
	DeleteEntry(ctx context.Context, userID, entryID string) error
	// EntriesOverlapping returns entries overlapping [from, to) ordered by
	// start_at ascending, with display fields joined from timeline items.
	// Running entries extend to now for overlap purposes.
	EntriesOverlapping(ctx context.Context, userID string, from, to, now time.Time) ([]domain.EntryWithItem, error)
}

// ItemStore reads and creates timeline items, serving ownership checks and
// day-view display joins.
type ItemStore interface {
	// ItemByID returns the item scoped to its owner, or
	// CodeTimelineItemNotFound.
	ItemByID(ctx context.Context, userID, itemID string) (*domain.TimelineItem, error)
	InsertItem(ctx context.Context, item *domain.TimelineItem) error
}
