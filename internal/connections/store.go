package connections

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// timeFormat is the ISO 8601 format used for timestamps in SQLite.
const timeFormat = "2006-01-02T15:04:05.000Z"

// Store persists connection metadata in SQLite. Credentials never touch
// this database; see SecretStore.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the connections database at path and
// initializes the schema.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening connections database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing connections database: %w", err)
	}
	return s, nil
}

// initDB applies PRAGMAs and creates the schema. Idempotent via
// IF NOT EXISTS.
func (s *Store) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS connections (
			name       TEXT PRIMARY KEY,
			endpoint   TEXT NOT NULL,
			region     TEXT NOT NULL DEFAULT 'us-east-1',
			created_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// List returns all saved connections ordered by name, without credentials.
func (s *Store) List(ctx context.Context) ([]Connection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, endpoint, region, created_at FROM connections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	var conns []Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

// Get returns the named connection without credentials, or false if it does
// not exist.
func (s *Store) Get(ctx context.Context, name string) (Connection, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, endpoint, region, created_at FROM connections WHERE name = ?`, name)
	conn, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return Connection{}, false, nil
	}
	if err != nil {
		return Connection{}, false, err
	}
	return conn, true, nil
}

// Save inserts or replaces the connection metadata record.
func (s *Store) Save(ctx context.Context, conn Connection) error {
	region := conn.Region
	if region == "" {
		region = "us-east-1"
	}
	createdAt := conn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (name, endpoint, region, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET endpoint = excluded.endpoint, region = excluded.region`,
		conn.Name, conn.Endpoint, region, createdAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("saving connection %q: %w", conn.Name, err)
	}
	return nil
}

// Delete removes the named connection. Returns false if it did not exist.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("deleting connection %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (Connection, error) {
	var conn Connection
	var createdAt string
	if err := row.Scan(&conn.Name, &conn.Endpoint, &conn.Region, &createdAt); err != nil {
		return Connection{}, err
	}
	if t, err := time.Parse(timeFormat, createdAt); err == nil {
		conn.CreatedAt = t
	}
	return conn, nil
}
