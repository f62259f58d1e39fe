package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"member-archive/internal/models"
)

// StorageError marks an unrecoverable persistence fault (I/O, corruption,
// closed handle). Duplicate keys are never a StorageError; replacement is the
// intended outcome of re-observing a member.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store is the durable, deduplicating member archive. Rows are keyed by
// (id, source_group): re-observing the same member under the same group
// replaces the row, the same id under another group is a separate row.
//
// Every operation is serialized behind a single mutex. Write volume is
// bounded by upstream scrape rate, not storage throughput, so one writer
// section is enough and keeps concurrent callers consistent.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS scraped_members (
	internal_id INTEGER PRIMARY KEY AUTOINCREMENT,
	id INTEGER NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	is_premium INTEGER NOT NULL DEFAULT 0,
	source_group TEXT NOT NULL,
	last_online INTEGER NOT NULL DEFAULT 0,
	first_recorded_at TEXT NOT NULL,
	last_seen_at TEXT NOT NULL,
	UNIQUE(id, source_group)
);
CREATE INDEX IF NOT EXISTS idx_scraped_members_group ON scraped_members(source_group);
`

// Open creates the database file if absent and ensures the schema exists.
// Safe to call repeatedly against the same path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	// a single writer section guards the handle anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &StorageError{Op: "pragma", Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &StorageError{Op: "ensure_schema", Err: err}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Upsert inserts or fully replaces the row for (m.ID, m.SourceGroup).
// first_recorded_at is assigned on the first insert and preserved on every
// replacement. A nil return means the row is durable.
func (s *Store) Upsert(ctx context.Context, m models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scraped_members
			(id, username, first_name, last_name, phone, is_premium, source_group, last_online, first_recorded_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, source_group) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			phone = excluded.phone,
			is_premium = excluded.is_premium,
			last_online = excluded.last_online,
			last_seen_at = excluded.last_seen_at`,
		m.ID,
		m.Username,
		m.FirstName,
		m.LastName,
		m.Phone,
		boolToInt(m.IsPremium),
		m.SourceGroup,
		m.LastOnline,
		now,
		now,
	)
	if err != nil {
		return &StorageError{Op: "upsert", Err: err}
	}
	return nil
}

// Count returns the total live rows across all source groups.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scraped_members`).Scan(&count)
	if err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return count, nil
}

// CountByGroup returns the live rows for one source group.
func (s *Store) CountByGroup(ctx context.Context, group string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scraped_members WHERE source_group = ?`, group,
	).Scan(&count)
	if err != nil {
		return 0, &StorageError{Op: "count_by_group", Err: err}
	}
	return count, nil
}

// MembersByGroup returns up to limit rows for one source group, newest
// observation first.
func (s *Store) MembersByGroup(ctx context.Context, group string, limit int) ([]models.StoredMember, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, first_name, last_name, phone, is_premium, source_group, last_online, first_recorded_at, last_seen_at
		FROM scraped_members
		WHERE source_group = ?
		ORDER BY last_seen_at DESC, internal_id DESC
		LIMIT ?`,
		group, limit,
	)
	if err != nil {
		return nil, &StorageError{Op: "members_by_group", Err: err}
	}
	defer rows.Close()

	var members []models.StoredMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan_member", Err: err}
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "members_by_group", Err: err}
	}
	return members, nil
}

// Get returns the single live row for (id, group), or sql.ErrNoRows wrapped
// in a StorageError when absent.
func (s *Store) Get(ctx context.Context, id int64, group string) (models.StoredMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, first_name, last_name, phone, is_premium, source_group, last_online, first_recorded_at, last_seen_at
		FROM scraped_members
		WHERE id = ? AND source_group = ?`,
		id, group,
	)
	m, err := scanMember(row)
	if err != nil {
		return models.StoredMember{}, &StorageError{Op: "get", Err: err}
	}
	return m, nil
}

// GroupStats aggregates row counts per source group.
func (s *Store) GroupStats(ctx context.Context) ([]models.GroupStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_group, COUNT(*), COALESCE(SUM(is_premium), 0), COALESCE(MAX(last_seen_at), '')
		FROM scraped_members
		GROUP BY source_group
		ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, &StorageError{Op: "group_stats", Err: err}
	}
	defer rows.Close()

	var stats []models.GroupStats
	for rows.Next() {
		var gs models.GroupStats
		var lastSeen string
		if err := rows.Scan(&gs.SourceGroup, &gs.MemberCount, &gs.PremiumCount, &lastSeen); err != nil {
			return nil, &StorageError{Op: "scan_group_stats", Err: err}
		}
		gs.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeen)
		stats = append(stats, gs)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "group_stats", Err: err}
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (models.StoredMember, error) {
	var m models.StoredMember
	var premium int
	var firstRecorded, lastSeen string

	err := row.Scan(
		&m.ID,
		&m.Username,
		&m.FirstName,
		&m.LastName,
		&m.Phone,
		&premium,
		&m.SourceGroup,
		&m.LastOnline,
		&firstRecorded,
		&lastSeen,
	)
	if err != nil {
		return models.StoredMember{}, err
	}

	m.IsPremium = premium == 1
	m.FirstRecordedAt, _ = time.Parse(time.RFC3339, firstRecorded)
	m.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeen)
	return m, nil
}

// boolToInt converts a boolean to SQLite integer (0 or 1).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
