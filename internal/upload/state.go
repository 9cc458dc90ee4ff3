package upload

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const stateSchema = `CREATE TABLE IF NOT EXISTS sent_files (
	rel_path TEXT PRIMARY KEY,
	size     INTEGER NOT NULL,
	sha256   TEXT NOT NULL,
	records  INTEGER NOT NULL DEFAULT 0,
	sent_at  TEXT NOT NULL
)`

// SentFile is the state row for one export file.
type SentFile struct {
	RelPath string
	Size    int64
	SHA256  string
	Records int
	SentAt  time.Time
}

// Matches reports whether the row describes the file's current content.
func (f SentFile) Matches(size int64, sum string) bool {
	return f.Size == size && f.SHA256 == sum
}

// StateDB remembers which export files reached the server, keyed by path
// relative to the export directory.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens or creates dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	// SQLite allows one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sent_files: %w", err)
	}
	return &StateDB{db: db}, nil
}

// Lookup returns the row for relPath, if any.
func (s *StateDB) Lookup(relPath string) (SentFile, bool, error) {
	row := SentFile{RelPath: relPath}
	var sentAt string
	err := s.db.QueryRow(
		`SELECT size, sha256, records, sent_at FROM sent_files WHERE rel_path = ?`, relPath,
	).Scan(&row.Size, &row.SHA256, &row.Records, &sentAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return SentFile{}, false, nil
	case err != nil:
		return SentFile{}, false, fmt.Errorf("looking up %s: %w", relPath, err)
	}
	row.SentAt, _ = time.Parse(time.RFC3339, sentAt)
	return row, true, nil
}

// MarkSent upserts the row for f, stamping SentAt when unset.
func (s *StateDB) MarkSent(f SentFile) error {
	if f.SentAt.IsZero() {
		f.SentAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO sent_files (rel_path, size, sha256, records, sent_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(rel_path) DO UPDATE SET
		   size = excluded.size, sha256 = excluded.sha256,
		   records = excluded.records, sent_at = excluded.sent_at`,
		f.RelPath, f.Size, f.SHA256, f.Records, f.SentAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("marking %s: %w", f.RelPath, err)
	}
	return nil
}

// Totals returns how many files and records have been sent so far.
func (s *StateDB) Totals() (files, records int, err error) {
	err = s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(records), 0) FROM sent_files`).Scan(&files, &records)
	return files, records, err
}

func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
