package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"timekeeper/internal/apperr"
	"timekeeper/internal/domain"
)

// fakeStore is an in-memory EntryStore/ItemStore that mirrors the MySQL
// adapter's contract, including the conflict on inserting a second running
// entry for the same user.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*domain.TimeEntry
	items   map[string]*domain.TimelineItem
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: make(map[string]*domain.TimeEntry),
		items:   make(map[string]*domain.TimelineItem),
	}
}

func (f *fakeStore) addItem(item domain.TimelineItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := item
	f.items[item.ID] = &cp
}

func (f *fakeStore) RunningEntry(_ context.Context, userID string) (*domain.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.UserID == userID && e.EndAt == nil {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertEntry(_ context.Context, entry *domain.TimeEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.EndAt == nil {
		for _, e := range f.entries {
			if e.UserID == entry.UserID && e.EndAt == nil {
				return apperr.New(apperr.CodeTimerConflict, "another timer is running")
			}
		}
	}
	cp := *entry
	f.entries[entry.ID] = &cp
	return nil
}

func (f *fakeStore) CloseEntry(_ context.Context, userID, entryID string, endAt time.Time, durationMinutes int) (*domain.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok || e.UserID != userID {
		return nil, apperr.New(apperr.CodeEntryNotFound, "time entry not found")
	}
	if e.EndAt == nil {
		end := endAt
		e.EndAt = &end
		d := durationMinutes
		e.DurationMinutes = &d
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) EntryByID(_ context.Context, userID, entryID string) (*domain.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok || e.UserID != userID {
		return nil, apperr.New(apperr.CodeEntryNotFound, "time entry not found")
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) UpdateEntry(_ context.Context, entry *domain.TimeEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entry.ID]
	if !ok || e.UserID != entry.UserID {
		return apperr.New(apperr.CodeEntryNotFound, "time entry not found")
	}
	cp := *entry
	f.entries[entry.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteEntry(_ context.Context, userID, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok || e.UserID != userID {
		return apperr.New(apperr.CodeEntryNotFound, "time entry not found")
	}
	delete(f.entries, entryID)
	return nil
}

func (f *fakeStore) EntriesOverlapping(_ context.Context, userID string, from, to, now time.Time) ([]domain.EntryWithItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EntryWithItem
	for _, e := range f.entries {
		if e.UserID != userID || !e.OverlapsWindow(from, to, now) {
			continue
		}
		row := domain.EntryWithItem{TimeEntry: *e}
		if item, ok := f.items[e.TimelineItemID]; ok {
			title := item.Title
			row.ItemTitle = &title
			row.CategoryName = item.CategoryName
			row.CategoryColor = item.CategoryColor
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (f *fakeStore) ItemByID(_ context.Context, userID, itemID string) (*domain.TimelineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok || item.UserID != userID {
		return nil, apperr.New(apperr.CodeTimelineItemNotFound, "timeline item not found")
	}
	cp := *item
	return &cp, nil
}

func (f *fakeStore) InsertItem(_ context.Context, item *domain.TimelineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *item
	f.items[item.ID] = &cp
	return nil
}

// blindStore hides the running entry from the pre-check read so tests can
// drive the lost-insert race path: the read sees nothing running while the
// insert still collides.
type blindStore struct {
	*fakeStore
}

func (b *blindStore) RunningEntry(context.Context, string) (*domain.TimeEntry, error) {
	return nil, nil
}
