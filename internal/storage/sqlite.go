package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/regclause/internal/models"
)

// SQLiteClauseCache stores the clause snapshot in a SQLite database.
// The clauses table holds one row per clause keyed by index position; the
// snapshot_meta table records the clause count of the last completed Save.
type SQLiteClauseCache struct {
	db   *sql.DB
	path string
}

// NewSQLiteClauseCache opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteClauseCache(dbPath string) (*SQLiteClauseCache, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %v", ErrCacheCorrupt, err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %v", ErrCacheCorrupt, err)
	}

	return &SQLiteClauseCache{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS clauses (
		position INTEGER PRIMARY KEY,
		source TEXT NOT NULL,
		filename TEXT NOT NULL,
		page INTEGER NOT NULL,
		reference TEXT NOT NULL,
		text TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Load returns the last saved snapshot in position order.
func (s *SQLiteClauseCache) Load(ctx context.Context) ([]models.Clause, error) {
	var rawCount string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM snapshot_meta WHERE key = 'count'`).Scan(&rawCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot meta: %v", ErrCacheCorrupt, err)
	}
	want, err := strconv.Atoi(rawCount)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot count %q", ErrCacheCorrupt, rawCount)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, filename, page, reference, text FROM clauses ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: query clauses: %v", ErrCacheCorrupt, err)
	}
	defer rows.Close()

	clauses := make([]models.Clause, 0, want)
	for rows.Next() {
		var c models.Clause
		if err := rows.Scan(&c.Source, &c.Filename, &c.Page, &c.Reference, &c.Text); err != nil {
			return nil, fmt.Errorf("%w: scan clause: %v", ErrCacheCorrupt, err)
		}
		clauses = append(clauses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate clauses: %v", ErrCacheCorrupt, err)
	}
	if len(clauses) != want {
		return nil, fmt.Errorf("%w: snapshot has %d clauses, meta says %d", ErrCacheCorrupt, len(clauses), want)
	}
	if err := validateClauses(clauses); err != nil {
		return nil, err
	}
	return clauses, nil
}

// Save replaces the snapshot in a single transaction.
func (s *SQLiteClauseCache) Save(ctx context.Context, clauses []models.Clause) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clauses`); err != nil {
		return fmt.Errorf("clear clauses: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO clauses (position, source, filename, page, reference, text)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range clauses {
		if _, err := stmt.ExecContext(ctx, i, c.Source, c.Filename, c.Page, c.Reference, c.Text); err != nil {
			return fmt.Errorf("insert clause %d: %w", i, err)
		}
	}
	meta := map[string]string{
		"count":    strconv.Itoa(len(clauses)),
		"saved_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("write snapshot meta: %w", err)
		}
	}
	return tx.Commit()
}

// Path returns the database path.
func (s *SQLiteClauseCache) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteClauseCache) Close() error {
	return s.db.Close()
}
