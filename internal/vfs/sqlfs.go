package vfs

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS documents (
    path TEXT PRIMARY KEY,
    content BLOB NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// SQLMount is a mount whose files live in a SQLite database. Directories
// are implied by the paths of the stored files.
type SQLMount struct {
	db       *sql.DB
	readOnly bool
}

// OpenSQLMount creates or opens the database at path.
func OpenSQLMount(path string, readOnly bool) (*SQLMount, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return newSQLMount(db, readOnly)
}

// OpenSQLMemory creates an in-memory mount (useful for testing).
func OpenSQLMemory() (*SQLMount, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	return newSQLMount(db, false)
}

func newSQLMount(db *sql.DB, readOnly bool) (*SQLMount, error) {
	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &SQLMount{db: db, readOnly: readOnly}, nil
}

func (m *SQLMount) Close() error { return m.db.Close() }

func (m *SQLMount) Read(ctx context.Context, rel string) ([]byte, error) {
	rel, err := cleanSQLPath(rel)
	if err != nil {
		return nil, err
	}
	var content []byte
	err = m.db.QueryRowContext(ctx, `SELECT content FROM documents WHERE path = ?`, rel).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return content, nil
}

func (m *SQLMount) Write(ctx context.Context, rel string, data []byte) error {
	if m.readOnly {
		return ErrReadOnly
	}
	rel, err := cleanSQLPath(rel)
	if err != nil {
		return err
	}
	if rel == "" {
		return fmt.Errorf("cannot write the mount root")
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO documents (path, content) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET content = excluded.content, updated_at = datetime('now')`,
		rel, data)
	if err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

func (m *SQLMount) Open(ctx context.Context, rel string) (io.ReadCloser, error) {
	b, err := m.Read(ctx, rel)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *SQLMount) Stat(ctx context.Context, rel string) (DirectoryEntry, error) {
	rel, err := cleanSQLPath(rel)
	if err != nil {
		return DirectoryEntry{}, err
	}
	if rel == "" {
		return DirectoryEntry{Path: "", IsDir: true}, nil
	}
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE path = ?`, rel).Scan(&n); err != nil {
		return DirectoryEntry{}, err
	}
	if n > 0 {
		return DirectoryEntry{Name: Base(rel), Path: rel}, nil
	}
	lo, hi := prefixRange(rel)
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE path >= ? AND path < ?`, lo, hi).Scan(&n); err != nil {
		return DirectoryEntry{}, err
	}
	if n > 0 {
		return DirectoryEntry{Name: Base(rel), Path: rel, IsDir: true}, nil
	}
	return DirectoryEntry{}, ErrNotFound
}

// List returns the immediate children of rel, directories first.
func (m *SQLMount) List(ctx context.Context, rel string) ([]DirectoryEntry, error) {
	rel, err := cleanSQLPath(rel)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if rel == "" {
		rows, err = m.db.QueryContext(ctx, `SELECT path FROM documents ORDER BY path`)
	} else {
		lo, hi := prefixRange(rel)
		rows, err = m.db.QueryContext(ctx, `SELECT path FROM documents WHERE path >= ? AND path < ? ORDER BY path`, lo, hi)
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", rel, err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var out []DirectoryEntry
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		rest := p
		if rel != "" {
			rest = strings.TrimPrefix(p, rel+"/")
		}
		name, _, nested := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, DirectoryEntry{Name: name, Path: JoinSegments(rel, name), IsDir: nested})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 && rel != "" {
		if _, err := m.Stat(ctx, rel); err != nil {
			return nil, err
		}
		return nil, ErrNotDirectory
	}
	sortEntries(out)
	return out, nil
}

// Import copies every visible file below dir into the mount and returns the
// number of files stored.
func (m *SQLMount) Import(ctx context.Context, dir string, rules *IgnoreRules) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rules.Excluded(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if err := m.Write(ctx, rel, data); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("importing %s: %w", dir, err)
	}
	return count, nil
}

// prefixRange returns the half-open key range holding every path below dir.
func prefixRange(dir string) (string, string) {
	return dir + "/", dir + "0"
}

// cleanSQLPath canonicalizes rel. ".." segments are resolved; a path that
// climbs above the mount root is rejected.
func cleanSQLPath(rel string) (string, error) {
	rel = path.Clean(Normalize(rel))
	switch {
	case rel == ".":
		return "", nil
	case rel == ".." || strings.HasPrefix(rel, "../"):
		return "", ErrOutsideRoot
	}
	return rel, nil
}
