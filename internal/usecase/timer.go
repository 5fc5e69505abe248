package usecase

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"timekeeper/internal/apperr"
	"timekeeper/internal/domain"
	"timekeeper/internal/ports"
)

// TimerService enforces the single-running-timer invariant: for every user,
// at most one time entry has no end time. The pre-check read here is an
// optimization for early rejection; the store's unique key is the actual
// invariant enforcer under concurrent starts.
type TimerService struct {
	Log     *slog.Logger
	Entries ports.EntryStore
	Items   ports.ItemStore
	Now     func() time.Time
}

func (s *TimerService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// StartOptions controls Start behavior.
type StartOptions struct {
	// AutoSwitch stops any other running timer instead of failing with a
	// conflict.
	AutoSwitch bool
	// OverrideStartAt backdates the new entry. Must not be in the future.
	OverrideStartAt *time.Time
}

// Start opens a timer on the given timeline item. Starting an item whose
// timer is already running returns the running entry unchanged.
func (s *TimerService) Start(ctx context.Context, userID, itemID string, opts StartOptions) (*domain.TimeEntry, error) {
	item, err := s.Items.ItemByID(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	startAt := now
	if opts.OverrideStartAt != nil {
		o := opts.OverrideStartAt.UTC()
		if o.After(now) {
			return nil, apperr.New(apperr.CodeInvalidBounds, "start_at must not be in the future")
		}
		startAt = o
	}

	running, err := s.Entries.RunningEntry(ctx, userID)
	if err != nil {
		return nil, err
	}
	if running != nil {
		if running.TimelineItemID == itemID {
			// Repeated start on the same item is a no-op success.
			return running, nil
		}
		if !opts.AutoSwitch {
			return nil, apperr.WithMetadata(apperr.CodeTimerConflict, "another timer is running",
				map[string]string{
					"entry_id":         running.ID,
					"timeline_item_id": running.TimelineItemID,
				})
		}
		if _, err := s.closeEntry(ctx, running, now); err != nil {
			return nil, err
		}
		s.Log.Info("auto-switched timer",
			slog.String("user_id", userID),
			slog.String("from_item", running.TimelineItemID),
			slog.String("to_item", itemID))
	}

	entry := &domain.TimeEntry{
		ID:               uuid.NewString(),
		UserID:           userID,
		TimelineItemID:   item.ID,
		TimelineItemType: item.Type,
		StartAt:          startAt,
		Source:           domain.SourceTimer,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	// A concurrent start that won the insert between the read above and this
	// write surfaces here as CodeTimerConflict from the store.
	if err := s.Entries.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	s.Log.Info("timer started",
		slog.String("user_id", userID),
		slog.String("entry_id", entry.ID),
		slog.String("timeline_item_id", itemID))
	return entry, nil
}

// StopOptions controls Stop behavior.
type StopOptions struct {
	// OverrideEndAt closes the entry at an explicit time instead of now.
	// Must be strictly after the entry's start and not in the future.
	OverrideEndAt *time.Time
}

// Stop closes the running timer for the given item. Stopping when nothing
// runs returns (nil, nil): it is an idempotent no-op, not an error. Stopping
// while a different item's timer runs fails with
// CodeNoRunningTimerForItem — a caller may only stop the timer it believes
// is running.
func (s *TimerService) Stop(ctx context.Context, userID, itemID string, opts StopOptions) (*domain.TimeEntry, error) {
	running, err := s.Entries.RunningEntry(ctx, userID)
	if err != nil {
		return nil, err
	}
	if running == nil {
		return nil, nil
	}
	if running.TimelineItemID != itemID {
		return nil, apperr.New(apperr.CodeNoRunningTimerForItem, "no running timer for this item")
	}

	now := s.now()
	endAt := now
	if opts.OverrideEndAt != nil {
		o := opts.OverrideEndAt.UTC()
		if o.After(now) {
			return nil, apperr.New(apperr.CodeInvalidBounds, "end_at must not be in the future")
		}
		if !o.After(running.StartAt) {
			return nil, apperr.New(apperr.CodeInvalidBounds, "end_at must be strictly after start_at")
		}
		endAt = o
	}

	entry, err := s.closeEntry(ctx, running, endAt)
	if err != nil {
		return nil, err
	}
	s.Log.Info("timer stopped",
		slog.String("user_id", userID),
		slog.String("entry_id", entry.ID),
		slog.String("timeline_item_id", itemID))
	return entry, nil
}

// Running returns the user's running entry, or nil. Pure read.
func (s *TimerService) Running(ctx context.Context, userID string) (*domain.TimeEntry, error) {
	return s.Entries.RunningEntry(ctx, userID)
}

// Edit corrects an entry's boundaries or note. Setting end_at on a running
// entry closes it. The resulting end must be strictly after the resulting
// start.
func (s *TimerService) Edit(ctx context.Context, userID, entryID string, patch domain.EntryPatch) (*domain.TimeEntry, error) {
	entry, err := s.Entries.EntryByID(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if patch.StartAt != nil {
		entry.StartAt = patch.StartAt.UTC()
	}
	if patch.EndAt != nil {
		t := patch.EndAt.UTC()
		entry.EndAt = &t
	}
	if patch.Note != nil {
		entry.Note = patch.Note
	}
	if entry.EndAt != nil {
		if !entry.EndAt.After(entry.StartAt) {
			return nil, apperr.New(apperr.CodeInvalidBounds, "end_at must be strictly after start_at")
		}
		d := durationMinutes(entry.StartAt, *entry.EndAt)
		entry.DurationMinutes = &d
	}
	entry.UpdatedAt = s.now()
	if err := s.Entries.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes an entry owned by the user.
func (s *TimerService) Delete(ctx context.Context, userID, entryID string) error {
	return s.Entries.DeleteEntry(ctx, userID, entryID)
}

// EntriesInWindow returns entries overlapping [from, to), ascending by
// start. Running entries count as extending to now.
func (s *TimerService) EntriesInWindow(ctx context.Context, userID string, from, to time.Time) ([]domain.EntryWithItem, error) {
	if !to.After(from) {
		return nil, apperr.New(apperr.CodeValidation, "to must be after from")
	}
	return s.Entries.EntriesOverlapping(ctx, userID, from.UTC(), to.UTC(), s.now())
}

func (s *TimerService) closeEntry(ctx context.Context, entry *domain.TimeEntry, endAt time.Time) (*domain.TimeEntry, error) {
	return s.Entries.CloseEntry(ctx, entry.UserID, entry.ID, endAt, durationMinutes(entry.StartAt, endAt))
}

func durationMinutes(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}
