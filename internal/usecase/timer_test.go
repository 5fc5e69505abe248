package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timekeeper/internal/apperr"
	"timekeeper/internal/domain"
)

const testUser = "user-1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store *fakeStore
	svc   *TimerService
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newFakeStore(),
		now:   time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = &TimerService{
		Log:     testLogger(),
		Entries: f.store,
		Items:   f.store,
		Now:     func() time.Time { return f.now },
	}
	f.store.addItem(domain.TimelineItem{ID: "task-1", UserID: testUser, Type: domain.ItemTypeTask, Title: "Write report"})
	f.store.addItem(domain.TimelineItem{ID: "task-2", UserID: testUser, Type: domain.ItemTypeTask, Title: "Review PRs"})
	f.store.addItem(domain.TimelineItem{ID: "habit-1", UserID: testUser, Type: domain.ItemTypeHabit, Title: "Stretch"})
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestStartCreatesRunningEntry(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Nil(t, entry.EndAt)
	assert.Equal(t, "task-1", entry.TimelineItemID)
	assert.Equal(t, domain.ItemTypeTask, entry.TimelineItemType)
	assert.Equal(t, domain.SourceTimer, entry.Source)
	assert.Equal(t, f.now, entry.StartAt)
}

func TestStartIsIdempotentOnSameItem(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)
	f.advance(5 * time.Minute)
	second, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.StartAt, second.StartAt)
	assert.Len(t, f.store.entries, 1)
}

func TestStartConflictWithoutAutoSwitch(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)

	_, err = f.svc.Start(context.Background(), testUser, "task-2", StartOptions{AutoSwitch: false})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTimerConflict, apperr.CodeOf(err))

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, first.ID, ae.Metadata["entry_id"])
	assert.Equal(t, "task-1", ae.Metadata["timeline_item_id"])

	// The original timer must be untouched.
	running, err := f.svc.Running(context.Background(), testUser)
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, first.ID, running.ID)
	assert.Nil(t, running.EndAt)
}

func TestStartAutoSwitchStopsPreviousTimer(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)
	f.advance(30 * time.Minute)

	second, err := f.svc.Start(context.Background(), testUser, "task-2", StartOptions{AutoSwitch: true})
	require.NoError(t, err)
	assert.Nil(t, second.EndAt)
	assert.Equal(t, "task-2", second.TimelineItemID)

	closed, err := f.store.EntryByID(context.Background(), testUser, first.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.EndAt)
	assert.Equal(t, f.now, *closed.EndAt)
	require.NotNil(t, closed.DurationMinutes)
	assert.Equal(t, 30, *closed.DurationMinutes)

	running, err := f.svc.Running(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, second.ID, running.ID)
}

func TestStartUnknownItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), testUser, "nope", StartOptions{})
	assert.Equal(t, apperr.CodeTimelineItemNotFound, apperr.CodeOf(err))

	// Items owned by someone else are indistinguishable from absent ones.
	_, err = f.svc.Start(context.Background(), "user-2", "task-1", StartOptions{})
	assert.Equal(t, apperr.CodeTimelineItemNotFound, apperr.CodeOf(err))
}

func TestStartOverrideStartAt(t *testing.T) {
	f := newFixture(t)

	future := f.now.Add(time.Minute)
	_, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{OverrideStartAt: &future})
	assert.Equal(t, apperr.CodeInvalidBounds, apperr.CodeOf(err))

	past := f.now.Add(-10 * time.Minute)
	entry, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{OverrideStartAt: &past})
	require.NoError(t, err)
	assert.Equal(t, past, entry.StartAt)
}

func TestStartLostInsertRaceSurfacesConflict(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)

	// Hide the running entry from the pre-check; the insert must still
	// collide and report the same conflict code the pre-check would have.
	blind := &TimerService{
		Log:     testLogger(),
		Entries: &blindStore{f.store},
		Items:   f.store,
		Now:     f.svc.Now,
	}
	_, err = blind.Start(context.Background(), testUser, "task-2", StartOptions{})
	assert.Equal(t, apperr.CodeTimerConflict, apperr.CodeOf(err))
}

func TestStopIsIdempotentWhenNothingRuns(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		entry, err := f.svc.Stop(context.Background(), testUser, "task-1", StopOptions{})
		require.NoError(t, err)
		assert.Nil(t, entry)
	}
}

func TestStopWrongItemRejected(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)

	_, err = f.svc.Stop(context.Background(), testUser, "task-2", StopOptions{})
	assert.Equal(t, apperr.CodeNoRunningTimerForItem, apperr.CodeOf(err))

	running, err := f.svc.Running(context.Background(), testUser)
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, first.ID, running.ID)
}

func TestStopComputesDuration(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)
	f.advance(47 * time.Minute)

	entry, err := f.svc.Stop(context.Background(), testUser, "task-1", StopOptions{})
	require.NoError(t, err)
	require.NotNil(t, entry.EndAt)
	assert.Equal(t, f.now, *entry.EndAt)
	require.NotNil(t, entry.DurationMinutes)
	assert.Equal(t, 47, *entry.DurationMinutes)
}

func TestStopOverrideEndAtBounds(t *testing.T) {
	f := newFixture(t)

	start, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)
	f.advance(time.Hour)

	before := start.StartAt.Add(-time.Minute)
	_, err = f.svc.Stop(context.Background(), testUser, "task-1", StopOptions{OverrideEndAt: &before})
	assert.Equal(t, apperr.CodeInvalidBounds, apperr.CodeOf(err))

	// Equal to start_at is also rejected: strictly after is required.
	equal := start.StartAt
	_, err = f.svc.Stop(context.Background(), testUser, "task-1", StopOptions{OverrideEndAt: &equal})
	assert.Equal(t, apperr.CodeInvalidBounds, apperr.CodeOf(err))

	future := f.now.Add(time.Minute)
	_, err = f.svc.Stop(context.Background(), testUser, "task-1", StopOptions{OverrideEndAt: &future})
	assert.Equal(t, apperr.CodeInvalidBounds, apperr.CodeOf(err))

	override := start.StartAt.Add(25 * time.Minute)
	entry, err := f.svc.Stop(context.Background(), testUser, "task-1", StopOptions{OverrideEndAt: &override})
	require.NoError(t, err)
	assert.Equal(t, override, *entry.EndAt)
	assert.Equal(t, 25, *entry.DurationMinutes)
}

func TestEditValidatesBounds(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)
	f.advance(time.Hour)
	stopped, err := f.svc.Stop(context.Background(), testUser, "task-1", StopOptions{})
	require.NoError(t, err)

	bad := stopped.StartAt.Add(-time.Minute)
	_, err = f.svc.Edit(context.Background(), testUser, stopped.ID, domain.EntryPatch{EndAt: &bad})
	assert.Equal(t, apperr.CodeInvalidBounds, apperr.CodeOf(err))

	note := "pairing session"
	newEnd := stopped.StartAt.Add(90 * time.Minute)
	edited, err := f.svc.Edit(context.Background(), testUser, stopped.ID, domain.EntryPatch{EndAt: &newEnd, Note: &note})
	require.NoError(t, err)
	assert.Equal(t, newEnd, *edited.EndAt)
	assert.Equal(t, 90, *edited.DurationMinutes)
	assert.Equal(t, note, *edited.Note)
}

func TestEditClosesRunningEntry(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)
	f.advance(20 * time.Minute)

	end := entry.StartAt.Add(15 * time.Minute)
	edited, err := f.svc.Edit(context.Background(), testUser, entry.ID, domain.EntryPatch{EndAt: &end})
	require.NoError(t, err)
	require.NotNil(t, edited.EndAt)
	assert.Equal(t, 15, *edited.DurationMinutes)

	running, err := f.svc.Running(context.Background(), testUser)
	require.NoError(t, err)
	assert.Nil(t, running)
}

func TestEditScopedToOwner(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)

	note := "not yours"
	_, err = f.svc.Edit(context.Background(), "user-2", entry.ID, domain.EntryPatch{Note: &note})
	assert.Equal(t, apperr.CodeEntryNotFound, apperr.CodeOf(err))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)

	assert.Equal(t, apperr.CodeEntryNotFound,
		apperr.CodeOf(f.svc.Delete(context.Background(), "user-2", entry.ID)))
	require.NoError(t, f.svc.Delete(context.Background(), testUser, entry.ID))
	assert.Equal(t, apperr.CodeEntryNotFound,
		apperr.CodeOf(f.svc.Delete(context.Background(), testUser, entry.ID)))
}

func TestEntriesInWindowValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.EntriesInWindow(context.Background(), testUser, f.now, f.now)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestEntriesInWindowJoinsItemFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), testUser, "task-1", StartOptions{})
	require.NoError(t, err)
	f.advance(30 * time.Minute)
	_, err = f.svc.Stop(context.Background(), testUser, "task-1", StopOptions{})
	require.NoError(t, err)

	rows, err := f.svc.EntriesInWindow(context.Background(), testUser,
		f.now.Add(-time.Hour), f.now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ItemTitle)
	assert.Equal(t, "Write report", *rows[0].ItemTitle)
}

// TestStartStopScenario walks the full switch flow: start task-1, conflict
// on task-2 without auto-switch, switch to task-2, stop task-2.
func TestStartStopScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e1, err := f.svc.Start(ctx, testUser, "task-1", StartOptions{})
	require.NoError(t, err)
	assert.Nil(t, e1.EndAt)

	f.advance(10 * time.Minute)
	_, err = f.svc.Start(ctx, testUser, "task-2", StartOptions{AutoSwitch: false})
	assert.Equal(t, apperr.CodeTimerConflict, apperr.CodeOf(err))

	e2, err := f.svc.Start(ctx, testUser, "task-2", StartOptions{AutoSwitch: true})
	require.NoError(t, err)
	assert.Nil(t, e2.EndAt)

	e1Closed, err := f.store.EntryByID(ctx, testUser, e1.ID)
	require.NoError(t, err)
	require.NotNil(t, e1Closed.EndAt)

	f.advance(5 * time.Minute)
	e2Stopped, err := f.svc.Stop(ctx, testUser, "task-2", StopOptions{})
	require.NoError(t, err)
	require.NotNil(t, e2Stopped.EndAt)
	assert.Equal(t, 5, *e2Stopped.DurationMinutes)

	running, err := f.svc.Running(ctx, testUser)
	require.NoError(t, err)
	assert.Nil(t, running)
}
