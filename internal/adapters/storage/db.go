package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqlitePragmas are appended to file DSNs: WAL for concurrent readers, a busy
// timeout so writers queue instead of failing, and enforced foreign keys.
const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"

// migration is one forward-only schema step.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations are applied in order. Never edit a released step; append a new one.
var migrations = []migration{
	{
		version: 1,
		name:    "store",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS store (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				region TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL,
				active INTEGER NOT NULL DEFAULT 1,
				phone_number TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL UNIQUE,
				latitude REAL NOT NULL DEFAULT 0,
				longitude REAL NOT NULL DEFAULT 0,
				store_type TEXT NOT NULL DEFAULT '',
				rating INTEGER NOT NULL DEFAULT 0,
				delivery_fee INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS store_owner (
				store_id TEXT NOT NULL,
				owner_id TEXT NOT NULL,
				position INTEGER NOT NULL,
				PRIMARY KEY (store_id, position),
				FOREIGN KEY (store_id) REFERENCES store(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_store_owner_owner ON store_owner(owner_id)`,
			`CREATE INDEX IF NOT EXISTS idx_store_active ON store(active)`,
		},
	},
	{
		version: 2,
		name:    "outbox",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS outbox (
				id TEXT PRIMARY KEY,
				action_type TEXT NOT NULL,
				topic TEXT NOT NULL,
				msg_key TEXT NOT NULL DEFAULT '',
				payload TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 5,
				last_attempted_at TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				external_id TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, created_at)`,
		},
	},
	{
		version: 3,
		name:    "outbox_next_attempt",
		stmts: []string{
			`ALTER TABLE outbox ADD COLUMN next_attempt_at TEXT NOT NULL DEFAULT ''`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_due ON outbox(status, next_attempt_at)`,
		},
	},
}

// LatestSchemaVersion returns the highest migration version known to this build.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// OpenSQLite opens a SQLite database at path with the standard pragmas.
// PRE: path is a file path or ":memory:"
// POST: Returns a pinged connection pool
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else if strings.Contains(path, "?") {
		dsn = path + "&" + sqlitePragmas
	} else {
		dsn = path + "?" + sqlitePragmas
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

// CurrentSchemaVersion returns the highest applied migration, or 0 for a fresh database.
func CurrentSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB applies every migration newer than the recorded schema version.
// PRE: db is a valid database connection
// POST: schema_version records LatestSchemaVersion(); each step ran in its own transaction
func MigrateDB(ctx context.Context, db *sql.DB) error {
	current, err := CurrentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		slog.Info("schema_migrated", "version", m.version, "name", m.name)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}
