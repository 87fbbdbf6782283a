package sqlstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Migration is one versioned schema change. Statements run in order inside
// a single transaction.
type Migration struct {
	Version int64
	Name    string
	Up      []string
}

// Migrations is the schema history of the store. The DDL is shared by
// SQLite and PostgreSQL; booleans are stored as 0/1 integers.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create_content_tables",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS sites (
	hostname TEXT NOT NULL,
	port INTEGER NOT NULL,
	root_page_id INTEGER NOT NULL,
	is_default INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (hostname, port)
)`,
			`CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	slug TEXT NOT NULL,
	path TEXT NOT NULL UNIQUE,
	depth INTEGER NOT NULL,
	parent_id INTEGER NOT NULL DEFAULT 0,
	live INTEGER NOT NULL DEFAULT 1,
	restricted INTEGER NOT NULL DEFAULT 0,
	fields TEXT NOT NULL DEFAULT '{}',
	tags TEXT NOT NULL DEFAULT '[]',
	children TEXT NOT NULL DEFAULT '{}'
)`,
			`CREATE INDEX IF NOT EXISTS idx_pages_parent_id ON pages(parent_id)`,
			`CREATE TABLE IF NOT EXISTS images (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	file TEXT NOT NULL DEFAULT '',
	fields TEXT NOT NULL DEFAULT '{}',
	tags TEXT NOT NULL DEFAULT '[]'
)`,
			`CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	file TEXT NOT NULL DEFAULT '',
	fields TEXT NOT NULL DEFAULT '{}',
	tags TEXT NOT NULL DEFAULT '[]'
)`,
		},
	},
	{
		Version: 2,
		Name:    "create_lookup_tables",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS field_values (
	kind TEXT NOT NULL,
	object_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	text_value TEXT NOT NULL,
	num_value DOUBLE PRECISION,
	PRIMARY KEY (kind, object_id, name)
)`,
			`CREATE TABLE IF NOT EXISTS tags (
	kind TEXT NOT NULL,
	object_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (kind, object_id, name)
)`,
			`CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(kind, name)`,
		},
	},
}

// MigrationState reports whether one migration has been applied
type MigrationState struct {
	Migration
	Applied bool
}

func (s *Store) initMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TEXT NOT NULL
)`); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}
	return nil
}

// MigrationStatus lists every known migration in version order
func (s *Store) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	if err := s.initMigrations(ctx); err != nil {
		return nil, err
	}
	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, len(Migrations))
	for i, m := range Migrations {
		states[i] = MigrationState{Migration: m, Applied: applied[m.Version]}
	}
	return states, nil
}

// Migrate applies pending migrations, recording each in schema_migrations
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.initMigrations(ctx); err != nil {
		return err
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	pending := 0
	for _, m := range Migrations {
		if applied[m.Version] {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
		s.logger.Info("applied migration", zap.Int64("version", m.Version), zap.String("name", m.Name))
		pending++
	}
	if pending == 0 {
		s.logger.Debug("no pending migrations")
	}
	return nil
}

// appliedVersions reports the recorded migration versions
func (s *Store) appliedVersions(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (s *Store) apply(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer s.rollback(tx)

	for _, stmt := range m.Up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
	}

	record := fmt.Sprintf("INSERT INTO schema_migrations (version, name, applied_at) VALUES (%s, %s, %s)",
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3))
	if _, err := tx.ExecContext(ctx, record, m.Version, m.Name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
