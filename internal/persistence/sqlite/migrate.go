package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration pairs a monotonically increasing version with the statements that
// bring the schema to it.
type migration struct {
	version    int
	statements []string
}

// migrations is the ordered schema history. Entries are append-only; applied
// versions are recorded in schema_migrations and never re-run.
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				national_id TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				phone TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				active INTEGER NOT NULL DEFAULT 1,
				plan TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS dependents (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				national_id TEXT NOT NULL,
				relationship TEXT NOT NULL DEFAULT '',
				card_number TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS units (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				address TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS specialties (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS doctors (
				id TEXT PRIMARY KEY,
				unit_id TEXT NOT NULL REFERENCES units(id),
				specialty_id TEXT NOT NULL REFERENCES specialties(id),
				name TEXT NOT NULL,
				active INTEGER NOT NULL DEFAULT 1
			)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS slots (
				doctor_id TEXT NOT NULL REFERENCES doctors(id),
				date TEXT NOT NULL,
				time TEXT NOT NULL,
				booked INTEGER NOT NULL DEFAULT 0,
				UNIQUE (doctor_id, date, time)
			)`,
			`CREATE TABLE IF NOT EXISTS appointments (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				dependent_id TEXT REFERENCES dependents(id),
				doctor_id TEXT NOT NULL REFERENCES doctors(id),
				unit_id TEXT NOT NULL,
				specialty_id TEXT NOT NULL,
				date TEXT NOT NULL,
				time TEXT NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('SCHEDULED','COMPLETED','CANCELLED','NO_SHOW')),
				notes TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			// Backstop against double-booking: a lost race surfaces as a
			// constraint violation instead of a second SCHEDULED row.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_scheduled_slot
				ON appointments (doctor_id, date, time)
				WHERE status = 'SCHEDULED'`,
			`CREATE INDEX IF NOT EXISTS idx_appointments_user
				ON appointments (user_id, date, time)`,
		},
	},
	{
		version: 3,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS auth_sessions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				purpose TEXT NOT NULL CHECK (purpose IN ('login','password_reset')),
				code TEXT NOT NULL,
				channel TEXT NOT NULL DEFAULT '',
				expires_at TEXT NOT NULL,
				verified INTEGER NOT NULL DEFAULT 0,
				resend_count INTEGER NOT NULL DEFAULT 0,
				refresh_token TEXT UNIQUE,
				refresh_expires_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_auth_sessions_user
				ON auth_sessions (user_id)`,
			`CREATE TABLE IF NOT EXISTS otp_attempts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id TEXT NOT NULL,
				requested_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_otp_attempts_user
				ON otp_attempts (user_id, requested_at)`,
		},
	},
}

// Migrate applies every pending migration in order, recording each applied
// version inside the same transaction as its statements.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	if _, err := cp.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("sqlite: failed to initialise schema_migrations: %w", err)
	}

	current := 0
	err := cp.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("sqlite: failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := cp.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("sqlite: migration %d failed: %w", m.version, err)
		}
	}
	return nil
}

func (cp *ConnectionPool) applyMigration(ctx context.Context, m migration) error {
	return cp.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		_, err := tx.Exec(
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))`,
			m.version,
		)
		return err
	})
}
