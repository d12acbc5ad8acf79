package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// options are the connection settings applied by openDB.
type options struct {
	wal         bool
	busyTimeout int
}

// Open opens (creating if needed) a SQLite conversation store at path with
// WAL mode and a 5 s busy timeout. The caller must Close the store.
func Open(path string, maxTurns int) (*Store, error) {
	db, err := openDB(path, options{wal: true, busyTimeout: defaultBusyTimeout})
	if err != nil {
		return nil, err
	}
	return newStore(db, maxTurns), nil
}

// openDB opens the database with a single connection (SQLite serialises
// writes, and PRAGMAs then apply consistently) and migrates the schema.
func openDB(path string, opts options) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if opts.wal {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", opts.busyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
