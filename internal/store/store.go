package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed Adapter. It also keeps the audit event log.
type Store struct {
	db *sql.DB
}

var (
	_ Adapter    = (*Store)(nil)
	_ Revisioner = (*Store)(nil)
)

// Open opens (or creates) the SQLite database at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets readers proceed while an operator commits.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		key         TEXT PRIMARY KEY,
		value       BLOB NOT NULL,
		revision    INTEGER NOT NULL,
		updated_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		task_no     TEXT DEFAULT '',
		user        TEXT DEFAULT '',
		level       TEXT NOT NULL DEFAULT 'info',
		event_type  TEXT NOT NULL,
		content     TEXT DEFAULT '',
		timestamp   DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Columns added after the first release.
	s.addColumnIfMissing("documents", "updated_by", "TEXT DEFAULT ''")
	s.addColumnIfMissing("documents", "origin", "TEXT DEFAULT ''")

	return nil
}

// addColumnIfMissing adds a column to a table if it doesn't exist yet.
func (s *Store) addColumnIfMissing(table, column, colDef string) {
	rows, err := s.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue *string
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return
		}
		if name == column {
			return
		}
	}

	s.db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + colDef)
}

// Get returns the document stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, revision, updated_at, updated_by, origin FROM documents WHERE key = ?`, key,
	)
	var d Document
	err := row.Scan(&d.Key, &d.Value, &d.Revision, &d.UpdatedAt, &d.UpdatedBy, &d.Origin)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", key, err)
	}
	return d, nil
}

// CompareAndSwap writes value under key if the stored revision still equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, key string, expected int64, value []byte, meta WriteMeta) (bool, error) {
	now := time.Now().UTC()

	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (key, value, revision, updated_at, updated_by, origin)
			 VALUES (?, ?, 1, ?, ?, ?) ON CONFLICT(key) DO NOTHING`,
			key, value, now, meta.User, meta.Origin,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE documents SET value = ?, revision = revision + 1, updated_at = ?, updated_by = ?, origin = ?
			 WHERE key = ? AND revision = ?`,
			value, now, meta.User, meta.Origin, key, expected,
		)
	}
	if err != nil {
		return false, fmt.Errorf("write document %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write document %s: %w", key, err)
	}
	return n == 1, nil
}

// Revision returns the current revision of key, 0 when absent.
func (s *Store) Revision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM documents WHERE key = ?`, key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get revision %s: %w", key, err)
	}
	return rev, nil
}

// AddEvent records an audit event.
func (s *Store) AddEvent(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Level == "" {
		e.Level = "info"
	}
	_, err := s.db.Exec(
		`INSERT INTO events (task_no, user, level, event_type, content, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		e.TaskNo, e.User, e.Level, e.Type, e.Content, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// GetEvents returns all events recorded for a task number.
func (s *Store) GetEvents(taskNo string) ([]Event, error) {
	return s.queryEvents(
		`SELECT id, task_no, user, level, event_type, content, timestamp FROM events WHERE task_no = ? ORDER BY id`,
		taskNo,
	)
}

// RecentEvents returns the newest events across all tasks, newest last.
func (s *Store) RecentEvents(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	events, err := s.queryEvents(
		`SELECT id, task_no, user, level, event_type, content, timestamp FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (s *Store) queryEvents(query string, args ...any) ([]Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TaskNo, &e.User, &e.Level, &e.Type, &e.Content, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
