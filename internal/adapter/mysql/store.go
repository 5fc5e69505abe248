package mysql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	"timekeeper/internal/apperr"
	"timekeeper/internal/domain"
)

const mysqlErrDuplicateKey = 1062

// Store implements ports.EntryStore and ports.ItemStore on MySQL.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// NewStore opens a MySQL connection using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
func NewStore(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	// Conservative pool defaults; can be adjusted via env later.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying DB. Not wired via interface to keep ports minimal.
func (s *Store) Close() error { return s.db.Close() }

const entryColumns = `id, user_id, timeline_item_id, timeline_item_type,
    start_at, end_at, duration_minutes, note, source, created_at, updated_at`

// RunningEntry returns the user's running entry, or nil when no timer runs.
func (s *Store) RunningEntry(ctx context.Context, userID string) (*domain.TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+`
        FROM time_entries WHERE user_id = ? AND end_at IS NULL`, userID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "query running entry", err)
	}
	return entry, nil
}

// InsertEntry creates a new entry. An insert racing for the running slot
// loses on the uniq_running_per_user key and is reported as a timer
// conflict, never as a generic storage failure.
func (s *Store) InsertEntry(ctx context.Context, e *domain.TimeEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO time_entries
        (id, user_id, timeline_item_id, timeline_item_type, start_at, end_at,
         duration_minutes, note, source, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.TimelineItemID, e.TimelineItemType,
		e.StartAt.UTC(), nullTime(e.EndAt), nullInt(e.DurationMinutes),
		nullString(e.Note), e.Source, e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return apperr.Wrap(apperr.CodeTimerConflict, "another timer is running", err)
	}
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, "insert entry", err)
	}
	s.log.Debug("entry inserted",
		slog.String("entry_id", e.ID),
		slog.String("user_id", e.UserID))
	return nil
}

// CloseEntry sets end_at and duration on a still-running entry. The guard on
// end_at IS NULL makes a repeated close a no-op; the row is re-read either
// way so the caller observes whatever close actually won.
func (s *Store) CloseEntry(ctx context.Context, userID, entryID string, endAt time.Time, durationMinutes int) (*domain.TimeEntry, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE time_entries
        SET end_at = ?, duration_minutes = ?, updated_at = ?
        WHERE id = ? AND user_id = ? AND end_at IS NULL`,
		endAt.UTC(), durationMinutes, time.Now().UTC(), entryID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "close entry", err)
	}
	return s.EntryByID(ctx, userID, entryID)
}

// EntryByID returns the entry scoped to its owner.
func (s *Store) EntryByID(ctx context.Context, userID, entryID string) (*domain.TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+`
        FROM time_entries WHERE id = ? AND user_id = ?`, entryID, userID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.CodeEntryNotFound, "time entry not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "query entry", err)
	}
	return entry, nil
}

// UpdateEntry writes the entry's mutable columns, scoped to its owner.
func (s *Store) UpdateEntry(ctx context.Context, e *domain.TimeEntry) error {
	res, err := s.db.ExecContext(ctx, `UPDATE time_entries
        SET start_at = ?, end_at = ?, duration_minutes = ?, note = ?, updated_at = ?
        WHERE id = ? AND user_id = ?`,
		e.StartAt.UTC(), nullTime(e.EndAt), nullInt(e.DurationMinutes),
		nullString(e.Note), e.UpdatedAt.UTC(), e.ID, e.UserID)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, "update entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, "update entry", err)
	}
	if n == 0 {
		return apperr.New(apperr.CodeEntryNotFound, "time entry not found")
	}
	return nil
}

// DeleteEntry removes the entry scoped to its owner.
func (s *Store) DeleteEntry(ctx context.Context, userID, entryID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM time_entries WHERE id = ? AND user_id = ?`, entryID, userID)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, "delete entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, "delete entry", err)
	}
	if n == 0 {
		return apperr.New(apperr.CodeEntryNotFound, "time entry not found")
	}
	return nil
}

// EntriesOverlapping returns entries overlapping [from, to), running entries
// extending to now. The SQL clause mirrors domain.TimeEntry.OverlapsWindow.
func (s *Store) EntriesOverlapping(ctx context.Context, userID string, from, to, now time.Time) ([]domain.EntryWithItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
        e.id, e.user_id, e.timeline_item_id, e.timeline_item_type,
        e.start_at, e.end_at, e.duration_minutes, e.note, e.source,
        e.created_at, e.updated_at,
        t.title, t.category_name, t.category_color
        FROM time_entries e
        LEFT JOIN timeline_items t
          ON t.id = e.timeline_item_id AND t.user_id = e.user_id
        WHERE e.user_id = ?
          AND e.start_at < ?
          AND COALESCE(e.end_at, ?) >= ?
        ORDER BY e.start_at ASC`,
		userID, to.UTC(), now.UTC(), from.UTC())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "query entries in window", err)
	}
	defer rows.Close()

	var out []domain.EntryWithItem
	for rows.Next() {
		var (
			e                     domain.TimeEntry
			endAt                 sql.NullTime
			duration              sql.NullInt64
			note                  sql.NullString
			title, catName, catHx sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.TimelineItemID, &e.TimelineItemType,
			&e.StartAt, &endAt, &duration, &note, &e.Source,
			&e.CreatedAt, &e.UpdatedAt, &title, &catName, &catHx); err != nil {
			return nil, apperr.Wrap(apperr.CodeStorage, "scan entry row", err)
		}
		applyNullable(&e, endAt, duration, note)
		out = append(out, domain.EntryWithItem{
			TimeEntry:     e,
			ItemTitle:     stringPtr(title),
			CategoryName:  stringPtr(catName),
			CategoryColor: stringPtr(catHx),
		})
	}
	return out, rows.Err()
}

// ItemByID returns the timeline item scoped to its owner.
func (s *Store) ItemByID(ctx context.Context, userID, itemID string) (*domain.TimelineItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, type, title,
        category_name, category_color, created_at
        FROM timeline_items WHERE id = ? AND user_id = ?`, itemID, userID)
	var (
		item            domain.TimelineItem
		catName, catHex sql.NullString
	)
	err := row.Scan(&item.ID, &item.UserID, &item.Type, &item.Title,
		&catName, &catHex, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.CodeTimelineItemNotFound, "timeline item not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "query timeline item", err)
	}
	item.CategoryName = stringPtr(catName)
	item.CategoryColor = stringPtr(catHex)
	return &item, nil
}

// InsertItem creates a timeline item.
func (s *Store) InsertItem(ctx context.Context, item *domain.TimelineItem) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO timeline_items
        (id, user_id, type, title, category_name, category_color, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.Type, item.Title,
		nullString(item.CategoryName), nullString(item.CategoryColor),
		item.CreatedAt.UTC())
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, "insert timeline item", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.TimeEntry, error) {
	var (
		e        domain.TimeEntry
		endAt    sql.NullTime
		duration sql.NullInt64
		note     sql.NullString
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.TimelineItemID, &e.TimelineItemType,
		&e.StartAt, &endAt, &duration, &note, &e.Source,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	applyNullable(&e, endAt, duration, note)
	return &e, nil
}

func applyNullable(e *domain.TimeEntry, endAt sql.NullTime, duration sql.NullInt64, note sql.NullString) {
	if endAt.Valid {
		t := endAt.Time.UTC()
		e.EndAt = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		e.DurationMinutes = &d
	}
	if note.Valid {
		n := note.String
		e.Note = &n
	}
	e.StartAt = e.StartAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDuplicateKey
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
