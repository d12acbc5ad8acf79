package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
)

// timeLayout is fixed-width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements conversation.Store backed by SQLite. Append and truncate
// run in one transaction, so the bound holds for every committed state.
type Store struct {
	db       *sql.DB
	maxTurns int
	now      func() time.Time
}

func newStore(db *sql.DB, maxTurns int) *Store {
	if maxTurns < 1 {
		maxTurns = conversation.DefaultMaxTurns
	}
	return &Store{db: db, maxTurns: maxTurns, now: time.Now}
}

// MaxTurns returns the per-user history bound.
func (s *Store) MaxTurns() int { return s.maxTurns }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Append implements conversation.Store.
func (s *Store) Append(userID string, turn conversation.Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}

	// Store interface does not carry context; use TODO as placeholder.
	ctx := context.TODO()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, last_active) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET last_active = excluded.last_active`,
		userID, s.now().UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("sqlite: touch user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (user_id, seq, role, text)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM turns WHERE user_id = ?), 0) + 1, ?, ?)`,
		userID, userID, string(turn.Role), turn.Text,
	); err != nil {
		return fmt.Errorf("sqlite: append turn: %w", err)
	}

	if err := truncate(ctx, tx, userID, s.maxTurns); err != nil {
		return err
	}

	return tx.Commit()
}

// Truncate implements conversation.Store.
func (s *Store) Truncate(userID string) error {
	return truncate(context.TODO(), s.db, userID, s.maxTurns)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func truncate(ctx context.Context, db execer, userID string, maxTurns int) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM turns
		WHERE user_id = ?
		  AND seq <= (SELECT MAX(seq) FROM turns WHERE user_id = ?) - ?`,
		userID, userID, maxTurns,
	)
	if err != nil {
		return fmt.Errorf("sqlite: truncate turns: %w", err)
	}
	return nil
}

// Get implements conversation.Store.
func (s *Store) Get(userID string) ([]conversation.Turn, error) {
	rows, err := s.db.QueryContext(context.TODO(), `
		SELECT role, text
		FROM turns
		WHERE user_id = ?
		ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []conversation.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: get turns rows: %w", err)
	}

	return turns, nil
}

// Purge implements conversation.Store.
func (s *Store) Purge(userID string) error {
	ctx := context.TODO()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM turns WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("sqlite: purge turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("sqlite: purge user: %w", err)
	}

	return tx.Commit()
}

// Prune implements conversation.Store.
func (s *Store) Prune(maxIdle time.Duration) (int, error) {
	ctx := context.TODO()
	cutoff := s.now().Add(-maxIdle).UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin prune tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM turns
		WHERE user_id IN (SELECT user_id FROM users WHERE last_active < ?)`,
		cutoff,
	); err != nil {
		return 0, fmt.Errorf("sqlite: prune turns: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE last_active < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune users: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit prune: %w", err)
	}
	return int(n), nil
}

// Users implements conversation.Store.
func (s *Store) Users() ([]conversation.UserInfo, error) {
	rows, err := s.db.QueryContext(context.TODO(), `
		SELECT u.user_id, u.last_active, COUNT(t.seq)
		FROM users u
		LEFT JOIN turns t ON t.user_id = u.user_id
		GROUP BY u.user_id, u.last_active
		ORDER BY u.user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []conversation.UserInfo{}
	for rows.Next() {
		var (
			info       conversation.UserInfo
			lastActive string
		)
		if err := rows.Scan(&info.UserID, &lastActive, &info.Turns); err != nil {
			return nil, fmt.Errorf("sqlite: scan user: %w", err)
		}
		t, err := time.Parse(timeLayout, lastActive)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse last_active %q: %w", lastActive, err)
		}
		info.LastActive = t
		users = append(users, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list users rows: %w", err)
	}

	return users, nil
}

// Len implements conversation.Store.
func (s *Store) Len() (int, error) {
	var count int
	if err := s.db.QueryRowContext(context.TODO(), "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count users: %w", err)
	}
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(s scanner) (conversation.Turn, error) {
	var (
		turn conversation.Turn
		role string
	)
	if err := s.Scan(&role, &turn.Text); err != nil {
		return turn, fmt.Errorf("sqlite: scan turn: %w", err)
	}
	turn.Role = conversation.Role(role)
	return turn, nil
}
