// Package sqlite provides SQLite-based persistent storage for Astra.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/astra-mentor/astra/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

var _ domain.GamificationStore = (*DB)(nil)
var _ domain.NotificationStore = (*DB)(nil)

// Open creates or opens the SQLite database at dir/astra.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "astra.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Progression state, one row per child
		`CREATE TABLE IF NOT EXISTS child_stats (
			user_id            TEXT PRIMARY KEY,
			xp_balance         INTEGER NOT NULL DEFAULT 0,
			current_level      INTEGER NOT NULL DEFAULT 1,
			total_xp_earned    INTEGER NOT NULL DEFAULT 0 CHECK (total_xp_earned >= 0),
			current_streak     INTEGER NOT NULL DEFAULT 0,
			longest_streak     INTEGER NOT NULL DEFAULT 0,
			last_activity_date TEXT,
			version            INTEGER NOT NULL DEFAULT 0,
			created_at         INTEGER NOT NULL,
			updated_at         INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS skills (
			user_id          TEXT NOT NULL,
			skill_name       TEXT NOT NULL,
			current_level    INTEGER NOT NULL DEFAULT 1,
			xp_in_level      INTEGER NOT NULL DEFAULT 0,
			xp_to_next_level INTEGER NOT NULL DEFAULT 100,
			updated_at       INTEGER NOT NULL,
			PRIMARY KEY (user_id, skill_name)
		)`,

		// Static catalog
		`CREATE TABLE IF NOT EXISTS badge_definitions (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			description       TEXT NOT NULL DEFAULT '',
			icon              TEXT NOT NULL DEFAULT '',
			category          TEXT NOT NULL,
			requirement_type  TEXT NOT NULL,
			requirement_value INTEGER NOT NULL
		)`,

		// Append-only ledgers
		`CREATE TABLE IF NOT EXISTS user_badges (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL,
			badge_id  TEXT NOT NULL REFERENCES badge_definitions(id),
			earned_at INTEGER NOT NULL,
			UNIQUE (user_id, badge_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_badges_user ON user_badges(user_id)`,

		`CREATE TABLE IF NOT EXISTS xp_transactions (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			amount         INTEGER NOT NULL CHECK (amount > 0),
			reason         TEXT NOT NULL,
			skill_affected TEXT,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_tx_user ON xp_transactions(user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			shown      BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user ON notifications(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// ─── Transactions ───────────────────────────────────────────────────────────

// InTx runs fn inside a single transaction. Any error from fn rolls back.
func (d *DB) InTx(ctx context.Context, fn func(tx domain.GamificationTx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&Tx{ctx: ctx, tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Tx is the transactional view handed to InTx callbacks.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

var _ domain.GamificationTx = (*Tx)(nil)

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func fromUnix(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}
