// Package store keeps the local host state for the connector: the contents
// written so far and a history of update runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/xsync/internal/reconcile"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// Content is one stored content unit.
type Content struct {
	ID        string
	Body      string
	WrittenAt time.Time
}

// Run summarizes one applied update.
type Run struct {
	ID         int64
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Added      int
	Deleted    int
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Apply runs in a single transaction; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	return nil
}

// Existing returns every stored content id with its write time in unix milliseconds.
func (s *Store) Existing(ctx context.Context) (map[string]int64, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, written_at FROM contents")
	if err != nil {
		return nil, fmt.Errorf("query existing: %w", err)
	}
	defer func() { _ = rows.Close() }()

	existing := make(map[string]int64)
	for rows.Next() {
		var (
			id        string
			writtenAt int64
		)
		if err := rows.Scan(&id, &writtenAt); err != nil {
			return nil, fmt.Errorf("scan existing: %w", err)
		}
		existing[id] = writtenAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing: %w", err)
	}
	return existing, nil
}

// Apply writes adds and removes deletes in one transaction. Adds for an id
// that already exists overwrite it. Deleting an unknown id is not an error
// and is not counted.
func (s *Store) Apply(ctx context.Context, updates reconcile.UpdateMap, writtenAt time.Time) (added, deleted int, err error) {
	if err := s.ready(); err != nil {
		return 0, 0, err
	}

	ids := make([]string, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin apply: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ts := writtenAt.UnixMilli()
	for _, id := range ids {
		u := updates[id]
		switch u.Action {
		case reconcile.ActionAdd:
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO contents (id, content, written_at) VALUES (?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					content = excluded.content,
					written_at = excluded.written_at
			`, id, u.Content, ts); err != nil {
				return 0, 0, fmt.Errorf("write %s: %w", id, err)
			}
			added++
		case reconcile.ActionDelete:
			var res sql.Result
			res, err = tx.ExecContext(ctx, "DELETE FROM contents WHERE id = ?", id)
			if err != nil {
				return 0, 0, fmt.Errorf("delete %s: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				deleted++
			}
		default:
			err = fmt.Errorf("unknown action %q for %s", u.Action, id)
			return 0, 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit apply: %w", err)
	}
	return added, deleted, nil
}

// LastUsed returns the start time of the latest recorded run in unix
// milliseconds, or 0 when the connector has never run.
func (s *Store) LastUsed(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(started_at) FROM runs").Scan(&last); err != nil {
		return 0, fmt.Errorf("query last run: %w", err)
	}
	return last.Int64, nil
}

func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if err := s.ready(); err != nil {
		return err
	}
	if run.StartedAt.IsZero() {
		return errors.New("started_at is required")
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, finished_at, added, deleted)
		VALUES (?, ?, ?, ?, ?)
	`, run.RunID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Added, run.Deleted)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs first. A limit of zero or less returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := "SELECT id, run_id, started_at, finished_at, added, deleted FROM runs ORDER BY started_at DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &started, &finished, &r.Added, &r.Deleted); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Contents lists stored contents, newest first.
func (s *Store) Contents(ctx context.Context) ([]Content, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, content, written_at FROM contents ORDER BY written_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("query contents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contents []Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contents: %w", err)
	}
	return contents, nil
}

// Content returns one stored content, or ErrNotFound.
func (s *Store) Content(ctx context.Context, id string) (Content, error) {
	if err := s.ready(); err != nil {
		return Content{}, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT id, content, written_at FROM contents WHERE id = ?", id)
	c, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Content{}, fmt.Errorf("content %s: %w", id, ErrNotFound)
	}
	return c, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(scanner rowScanner) (Content, error) {
	var (
		c         Content
		writtenAt int64
	)
	if err := scanner.Scan(&c.ID, &c.Body, &writtenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Content{}, err
		}
		return Content{}, fmt.Errorf("scan content: %w", err)
	}
	c.WrittenAt = time.UnixMilli(writtenAt).UTC()
	return c, nil
}
